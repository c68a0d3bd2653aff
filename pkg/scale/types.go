package scale

import (
	"strconv"
)

// TypeID identifies a type inside a Registry. Named preset types use their
// name ("AccountId"), structural types their canonical expression
// ("Vec<u8>", "[u8; 32]") and runtime metadata types their decimal
// portable id ("42").
type TypeID string

// PortableID returns the TypeID of a metadata portable registry entry.
func PortableID(id uint32) TypeID {
	return TypeID(strconv.FormatUint(uint64(id), 10))
}

// Kind is the structural category of a TypeDef.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindCompact
	KindArray
	KindSequence
	KindTuple
	KindComposite
	KindVariant
	KindOption
	KindBitSequence
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindCompact:
		return "compact"
	case KindArray:
		return "array"
	case KindSequence:
		return "sequence"
	case KindTuple:
		return "tuple"
	case KindComposite:
		return "composite"
	case KindVariant:
		return "variant"
	case KindOption:
		return "option"
	case KindBitSequence:
		return "bitsequence"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// Primitive enumerates the terminal types of the SCALE type system.
type Primitive uint8

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

var primitiveNames = [...]string{
	PrimBool: "bool", PrimChar: "char", PrimStr: "str",
	PrimU8: "u8", PrimU16: "u16", PrimU32: "u32", PrimU64: "u64", PrimU128: "u128", PrimU256: "u256",
	PrimI8: "i8", PrimI16: "i16", PrimI32: "i32", PrimI64: "i64", PrimI128: "i128", PrimI256: "i256",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "primitive(" + strconv.Itoa(int(p)) + ")"
}

// Size is the encoded width in bytes of fixed-width primitives, 0 for str.
func (p Primitive) Size() int {
	switch p {
	case PrimBool, PrimU8, PrimI8:
		return 1
	case PrimU16, PrimI16:
		return 2
	case PrimChar, PrimU32, PrimI32:
		return 4
	case PrimU64, PrimI64:
		return 8
	case PrimU128, PrimI128:
		return 16
	case PrimU256, PrimI256:
		return 32
	default:
		return 0
	}
}

// IsInteger reports whether p is one of the fixed-width integer types.
func (p Primitive) IsInteger() bool {
	return p >= PrimU8 && p <= PrimI256
}

// Signed reports whether p is a signed integer.
func (p Primitive) Signed() bool {
	return p >= PrimI8 && p <= PrimI256
}

// ParsePrimitive maps a primitive name to its Primitive.
func ParsePrimitive(name string) (Primitive, bool) {
	for i, n := range primitiveNames {
		if n == name {
			return Primitive(i), true
		}
	}
	return 0, false
}

// Field is a member of a composite, a tuple element or a variant payload
// member. Tuple elements have no name.
type Field struct {
	Name     string
	Type     TypeID
	TypeName string
}

// Variant is one arm of an enum.
type Variant struct {
	Name   string
	Index  uint8
	Fields []Field
}

// TypeParam is a generic parameter recorded by runtime metadata. Type is
// empty when the parameter was erased.
type TypeParam struct {
	Name string
	Type TypeID
}

// TypeDef describes how one type is laid out on the wire. Which members are
// meaningful depends on Kind:
//
//   - KindPrimitive: Primitive
//   - KindCompact, KindSequence, KindOption, KindAlias: Elem
//   - KindArray: Elem and Len
//   - KindTuple, KindComposite: Fields
//   - KindVariant: Variants
//   - KindBitSequence: Elem (store type) and Order (bit order type)
//
// References between types are TypeIDs resolved through the registry when
// needed, so recursive types need no special construction.
type TypeDef struct {
	Kind      Kind
	Path      []string
	Params    []TypeParam
	Primitive Primitive
	Elem      TypeID
	Order     TypeID
	Len       uint32
	Fields    []Field
	Variants  []Variant
}

// VariantByIndex returns the variant with the given tag.
func (d *TypeDef) VariantByIndex(index uint8) (*Variant, bool) {
	for i := range d.Variants {
		if d.Variants[i].Index == index {
			return &d.Variants[i], true
		}
	}
	return nil, false
}

// VariantByName returns the variant called name.
func (d *TypeDef) VariantByName(name string) (*Variant, bool) {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return &d.Variants[i], true
		}
	}
	return nil, false
}

// Param returns the type bound to the generic parameter name.
func (d *TypeDef) Param(name string) (TypeID, bool) {
	for _, p := range d.Params {
		if p.Name == name && p.Type != "" {
			return p.Type, true
		}
	}
	return "", false
}

// namedFields reports whether every field carries a name.
func namedFields(fields []Field) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if f.Name == "" {
			return false
		}
	}
	return true
}
