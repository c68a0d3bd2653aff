package scale

import (
	"bytes"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ValueKind is the dynamic shape of a Value.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueBool
	ValueUint
	ValueInt
	ValueBig
	ValueString
	ValueBytes
	ValueSequence
	ValueComposite
	ValueVariant
)

func (k ValueKind) String() string {
	switch k {
	case ValueBool:
		return "bool"
	case ValueUint:
		return "uint"
	case ValueInt:
		return "int"
	case ValueBig:
		return "bigint"
	case ValueString:
		return "string"
	case ValueBytes:
		return "bytes"
	case ValueSequence:
		return "sequence"
	case ValueComposite:
		return "composite"
	case ValueVariant:
		return "variant"
	default:
		return "invalid"
	}
}

// Value is a dynamically typed SCALE value. Decoding produces Values and
// encoding consumes them; the TypeDef in the registry decides the wire form.
//
// Integers that fit 64 bits are held as ValueUint or ValueInt, wider ones as
// ValueBig. Byte arrays and Vec<u8> decode to ValueBytes. Tuples are
// composites without names. Option decodes to the variants None and Some.
type Value struct {
	kind    ValueKind
	b       bool
	u       uint64
	i       int64
	big     *big.Int
	s       string
	bytes   []byte
	items   []Value
	names   []string
	variant string
	index   uint8
}

// maxExactFloat is the largest magnitude below which every integer has
// an exact float64 form.
const maxExactFloat = 1 << 53

// NamedValue pairs a field name with its value.
type NamedValue struct {
	Name  string
	Value Value
}

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// Uint wraps an unsigned integer. It encodes to any integer type it fits.
func Uint(u uint64) Value { return Value{kind: ValueUint, u: u} }

// Int wraps a signed integer.
func Int(i int64) Value { return Value{kind: ValueInt, i: i} }

// String wraps text. Besides str it encodes to byte sequences and to
// integers written in decimal or 0x-hex.
func String(s string) Value { return Value{kind: ValueString, s: s} }

// Bytes wraps raw bytes for [u8; N], Vec<u8> and str types.
func Bytes(b []byte) Value { return Value{kind: ValueBytes, bytes: b} }

// Sequence builds a Vec or fixed array value.
func Sequence(v ...Value) Value { return Value{kind: ValueSequence, items: v} }

// Tuple builds a tuple value, a composite without field names.
func Tuple(v ...Value) Value { return Value{kind: ValueComposite, items: v} }

// Named builds a NamedValue for Composite and VariantValue.
func Named(name string, v Value) NamedValue { return NamedValue{Name: name, Value: v} }

// BigInt wraps an arbitrary precision integer. Values that fit 64 bits are
// normalised to ValueUint or ValueInt.
func BigInt(x *big.Int) Value {
	if x == nil {
		return Uint(0)
	}
	if x.IsUint64() {
		return Uint(x.Uint64())
	}
	if x.IsInt64() {
		return Int(x.Int64())
	}
	return Value{kind: ValueBig, big: new(big.Int).Set(x)}
}

// Composite builds a struct value with named fields.
func Composite(fields ...NamedValue) Value {
	v := Value{kind: ValueComposite, items: make([]Value, len(fields)), names: make([]string, len(fields))}
	for i, f := range fields {
		v.items[i] = f.Value
		v.names[i] = f.Name
	}
	return v
}

// VariantValue builds an enum value selected by name. Fields may be named or
// positional; mixing is not meaningful.
func VariantValue(name string, fields ...NamedValue) Value {
	inner := Composite(fields...)
	return Value{kind: ValueVariant, variant: name, items: inner.items, names: inner.names}
}

// VariantTuple builds an enum value with positional fields.
func VariantTuple(name string, fields ...Value) Value {
	return Value{kind: ValueVariant, variant: name, items: fields}
}

func variantAt(name string, index uint8, items []Value, names []string) Value {
	return Value{kind: ValueVariant, variant: name, index: index, items: items, names: names}
}

// None is the empty Option.
func None() Value { return Value{kind: ValueVariant, variant: "None"} }

// Some is the populated Option.
func Some(v Value) Value {
	return Value{kind: ValueVariant, variant: "Some", index: 1, items: []Value{v}}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsValid() bool   { return v.kind != ValueInvalid }

// Uint64 returns the value as an unsigned integer. Single-field composites
// and newtype variants are unwrapped.
func (v Value) Uint64() (uint64, bool) {
	v = v.unwrapNewtype()
	switch v.kind {
	case ValueUint:
		return v.u, true
	case ValueInt:
		if v.i >= 0 {
			return uint64(v.i), true
		}
	case ValueBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Int64 returns the value as a signed integer.
func (v Value) Int64() (int64, bool) {
	v = v.unwrapNewtype()
	switch v.kind {
	case ValueInt:
		return v.i, true
	case ValueUint:
		if v.u <= 1<<63-1 {
			return int64(v.u), true
		}
	}
	return 0, false
}

// BigInt returns any integer value as a big.Int.
func (v Value) BigInt() (*big.Int, bool) {
	v = v.unwrapNewtype()
	switch v.kind {
	case ValueUint:
		return new(big.Int).SetUint64(v.u), true
	case ValueInt:
		return big.NewInt(v.i), true
	case ValueBig:
		return new(big.Int).Set(v.big), true
	}
	return nil, false
}

func (v Value) AsBool() (bool, bool) {
	v = v.unwrapNewtype()
	return v.b, v.kind == ValueBool
}

func (v Value) Str() (string, bool) {
	v = v.unwrapNewtype()
	return v.s, v.kind == ValueString
}

// AsBytes returns the raw bytes of a ValueBytes or of a sequence of u8
// sized integers. A string is read as 0x-hex when it carries the prefix
// and as its UTF-8 bytes otherwise.
func (v Value) AsBytes() ([]byte, bool) {
	v = v.unwrapNewtype()
	switch v.kind {
	case ValueBytes:
		return v.bytes, true
	case ValueSequence, ValueComposite:
		if len(v.names) > 0 {
			return nil, false
		}
		out := make([]byte, len(v.items))
		for i, it := range v.items {
			u, ok := it.Uint64()
			if !ok || u > 0xff {
				return nil, false
			}
			out[i] = byte(u)
		}
		return out, true
	case ValueString:
		if !has0xPrefix(v.s) {
			return []byte(v.s), true
		}
		if b, err := hexutil.Decode(v.s); err == nil {
			return b, true
		}
	}
	return nil, false
}

// Field returns the member called name of a composite or variant.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != ValueComposite && v.kind != ValueVariant {
		return Value{}, false
	}
	for i, n := range v.names {
		if n == name {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Index returns the i-th element of a sequence, tuple, composite or variant.
func (v Value) Index(i int) (Value, bool) {
	if i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

func (v Value) Items() []Value  { return v.items }
func (v Value) Names() []string { return v.names }
func (v Value) Len() int {
	if v.kind == ValueBytes {
		return len(v.bytes)
	}
	return len(v.items)
}

// Variant returns the selected variant name and tag of an enum value.
func (v Value) Variant() (string, uint8, bool) {
	return v.variant, v.index, v.kind == ValueVariant
}

// IsNone reports whether v is the empty Option.
func (v Value) IsNone() bool {
	return v.kind == ValueVariant && v.variant == "None" && len(v.items) == 0
}

// Unwrap returns the payload of Some, or v itself for any other value.
func (v Value) Unwrap() Value {
	if v.kind == ValueVariant && v.variant == "Some" && len(v.items) == 1 {
		return v.items[0]
	}
	return v
}

func (v Value) unwrapNewtype() Value {
	for range maxAliasDepth {
		if (v.kind == ValueComposite || v.kind == ValueVariant && v.variant == "Some") && len(v.items) == 1 {
			v = v.items[0]
			continue
		}
		return v
	}
	return v
}

// Equal reports deep equality. Integers compare by numeric value regardless
// of their representation.
func (v Value) Equal(o Value) bool {
	if v.isNumber() && o.isNumber() {
		a, _ := v.BigInt()
		b, _ := o.BigInt()
		return a.Cmp(b) == 0
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueInvalid:
		return true
	case ValueBool:
		return v.b == o.b
	case ValueString:
		return v.s == o.s
	case ValueBytes:
		return bytes.Equal(v.bytes, o.bytes)
	case ValueVariant:
		if v.variant != o.variant {
			return false
		}
	}
	if len(v.items) != len(o.items) || len(v.names) != len(o.names) {
		return false
	}
	for i := range v.names {
		if v.names[i] != o.names[i] {
			return false
		}
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}

func (v Value) isNumber() bool {
	return v.kind == ValueUint || v.kind == ValueInt || v.kind == ValueBig
}

// Interface converts v to plain Go values suitable for JSON: maps for named
// composites and variants with payload, slices for sequences and tuples,
// 0x-prefixed hex for bytes and decimal strings for integers above 64 bits.
func (v Value) Interface() any {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueUint:
		return v.u
	case ValueInt:
		return v.i
	case ValueBig:
		return v.big.String()
	case ValueString:
		return v.s
	case ValueBytes:
		return hexutil.Encode(v.bytes)
	case ValueSequence:
		return interfaceItems(v.items)
	case ValueComposite:
		if len(v.names) == 0 {
			return interfaceItems(v.items)
		}
		return interfaceFields(v.names, v.items)
	case ValueVariant:
		if len(v.items) == 0 {
			return v.variant
		}
		var payload any
		switch {
		case len(v.names) > 0 && v.names[0] != "":
			payload = interfaceFields(v.names, v.items)
		case len(v.items) == 1:
			payload = v.items[0].Interface()
		default:
			payload = interfaceItems(v.items)
		}
		return map[string]any{v.variant: payload}
	default:
		return nil
	}
}

func interfaceItems(items []Value) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.Interface()
	}
	return out
}

func interfaceFields(names []string, items []Value) map[string]any {
	out := make(map[string]any, len(items))
	for i, it := range items {
		out[names[i]] = it.Interface()
	}
	return out
}

func (v Value) String() string {
	return fmt.Sprintf("%v", v.Interface())
}

// FromInterface builds a Value from plain Go data: bools, integers, strings,
// byte slices, slices and string keyed maps. Maps become named composites;
// the encoder accepts a single-key map where an enum is expected. A float64,
// as produced by encoding/json, must be integral and at most 2^53 in
// magnitude.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Tuple(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float64:
		if t != math.Trunc(t) {
			return Value{}, fmt.Errorf("%w: non-integer number %v", ErrShapeMismatch, t)
		}
		if math.Abs(t) > maxExactFloat {
			return Value{}, fmt.Errorf("%w: number %v is not exact, pass an integer type or a string", ErrOutOfRange, t)
		}
		return Int(int64(t)), nil
	case *big.Int:
		return BigInt(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			v, err := FromInterface(it)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Sequence(items...), nil
	case map[string]any:
		fields := make([]NamedValue, 0, len(t))
		for k, it := range t {
			v, err := FromInterface(it)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Named(k, v))
		}
		return Composite(fields...), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported Go type %T", ErrShapeMismatch, x)
	}
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
