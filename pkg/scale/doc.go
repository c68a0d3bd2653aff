// Package scale implements the SCALE codec against a type registry.
//
// A Registry maps TypeIDs to TypeDefs. Registries are built with a Builder
// and published once; a published Registry is immutable and can be shared by
// any number of goroutines. Runtime upgrades extend an existing registry
// rather than copy it, so the static preset types and previously seen
// runtime types stay shared.
//
// Values are dynamic: Decode turns bytes into a Value tree shaped by the
// registry, and Encode walks a Value against a TypeID to produce bytes.
package scale
