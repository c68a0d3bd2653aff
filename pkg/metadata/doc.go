// Package metadata decodes runtime metadata (V14 and V15) into a Runtime:
// the pallets with their storage entries, calls, events, errors and
// constants, plus a scale.Registry holding every portable type.
//
// The metadata is itself SCALE encoded. It is decoded with a small
// bootstrap registry describing the metadata layout, then each portable
// type is registered under its decimal id on top of the chain's preset.
//
// A Resolver fetches metadata from a node once per spec version, shares
// concurrent fetches and can persist the raw bytes in a GormStore.
package metadata
