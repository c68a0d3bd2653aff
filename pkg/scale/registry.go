package scale

import (
	"fmt"
)

// maxAliasDepth bounds alias chains so a cyclic preset cannot hang a lookup.
const maxAliasDepth = 64

// EntryKind selects which pallet index of the registry an entry belongs to.
type EntryKind uint8

const (
	EntryCall EntryKind = iota
	EntryStorage
	EntryEvent
	EntryError
	EntryConstant
)

func (k EntryKind) String() string {
	switch k {
	case EntryCall:
		return "call"
	case EntryStorage:
		return "storage"
	case EntryEvent:
		return "event"
	case EntryError:
		return "error"
	case EntryConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// EntryKey addresses a pallet item by module and item name.
type EntryKey struct {
	Kind   EntryKind
	Module string
	Name   string
}

// Registry maps TypeIDs to TypeDefs and (module, item) pairs to TypeIDs.
//
// A Registry is immutable once published and safe for concurrent readers.
// New runtime versions are built with Extend, which layers new types on top
// of the receiver without copying or touching it.
type Registry struct {
	parent  *Registry
	types   map[TypeID]*TypeDef
	entries map[EntryKey]TypeID
	size    int
}

// Lookup returns the definition registered under id.
func (r *Registry) Lookup(id TypeID) (*TypeDef, error) {
	for reg := r; reg != nil; reg = reg.parent {
		if def, ok := reg.types[id]; ok {
			return def, nil
		}
	}
	return nil, &UnknownTypeError{TypeID: id}
}

// Has reports whether id is defined anywhere in the registry chain.
func (r *Registry) Has(id TypeID) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// Resolve follows aliases starting at id and returns the first non-alias
// definition together with its identifier.
func (r *Registry) Resolve(id TypeID) (TypeID, *TypeDef, error) {
	for range maxAliasDepth {
		def, err := r.Lookup(id)
		if err != nil {
			return id, nil, err
		}
		if def.Kind != KindAlias {
			return id, def, nil
		}
		id = def.Elem
	}
	return id, nil, fmt.Errorf("%w at %q", ErrAliasCycle, string(id))
}

// Entry returns the type recorded for a pallet item.
func (r *Registry) Entry(kind EntryKind, module, name string) (TypeID, bool) {
	key := EntryKey{Kind: kind, Module: module, Name: name}
	for reg := r; reg != nil; reg = reg.parent {
		if id, ok := reg.entries[key]; ok {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of type definitions visible through the registry.
func (r *Registry) Len() int {
	return r.size
}

// Parent returns the registry this one extends, nil for the root.
func (r *Registry) Parent() *Registry {
	return r.parent
}

// Extend starts a builder whose published registry layers on top of r.
func (r *Registry) Extend() *Builder {
	return &Builder{
		parent:  r,
		types:   make(map[TypeID]*TypeDef),
		entries: make(map[EntryKey]TypeID),
	}
}

// Builder accumulates definitions for a new Registry. It is not safe for
// concurrent use and cannot be used after Publish.
type Builder struct {
	parent    *Registry
	types     map[TypeID]*TypeDef
	entries   map[EntryKey]TypeID
	published bool
}

// NewBuilder starts a registry on top of the built-in primitives.
func NewBuilder() *Builder {
	return baseRegistry.Extend()
}

// Add registers def under id. Redefining an id inside the same builder fails
// with ErrDuplicateType; shadowing an id of the parent chain is allowed so
// presets can refine their base.
func (b *Builder) Add(id TypeID, def *TypeDef) error {
	if b.published {
		return ErrRegistryPublished
	}
	if id == "" || def == nil {
		return fmt.Errorf("%w: empty definition", ErrInvalidTypeExpr)
	}
	if _, ok := b.types[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, string(id))
	}
	b.types[id] = def
	return nil
}

// AddAlias registers name as an alias of target.
func (b *Builder) AddAlias(name, target TypeID) error {
	return b.Add(name, &TypeDef{Kind: KindAlias, Elem: target})
}

// SetEntry records the type of a pallet item.
func (b *Builder) SetEntry(kind EntryKind, module, name string, id TypeID) {
	b.entries[EntryKey{Kind: kind, Module: module, Name: name}] = id
}

// Lookup resolves id against the pending definitions and the parent chain.
func (b *Builder) Lookup(id TypeID) (*TypeDef, bool) {
	if def, ok := b.types[id]; ok {
		return def, true
	}
	if b.parent == nil {
		return nil, false
	}
	def, err := b.parent.Lookup(id)
	return def, err == nil
}

// Publish freezes the builder into a Registry.
func (b *Builder) Publish() *Registry {
	b.published = true

	size := len(b.types)
	if b.parent != nil {
		size += b.parent.size
		for id := range b.types {
			if b.parent.Has(id) {
				size--
			}
		}
	}

	return &Registry{
		parent:  b.parent,
		types:   b.types,
		entries: b.entries,
		size:    size,
	}
}

var baseRegistry = newBaseRegistry()

func newBaseRegistry() *Registry {
	b := &Builder{
		types:   make(map[TypeID]*TypeDef),
		entries: make(map[EntryKey]TypeID),
	}
	for i := range primitiveNames {
		p := Primitive(i)
		b.types[TypeID(p.String())] = &TypeDef{Kind: KindPrimitive, Primitive: p}
	}
	b.types["()"] = &TypeDef{Kind: KindTuple}
	b.types["Vec<u8>"] = &TypeDef{Kind: KindSequence, Elem: "u8"}
	for alias, target := range map[TypeID]TypeID{
		"String": "str",
		"Text":   "str",
		"Bytes":  "Vec<u8>",
		"Null":   "()",
	} {
		b.types[alias] = &TypeDef{Kind: KindAlias, Elem: target}
	}
	return b.Publish()
}

// Base returns the root registry holding the primitive types.
func Base() *Registry {
	return baseRegistry
}
