// Package storage builds and parses storage keys: the 128-bit twox hash of
// the module and item names followed by each key argument run through the
// hasher metadata declares for it.
package storage
