package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// Encode serialises v as type id.
func Encode(v Value, id TypeID, reg *Registry) ([]byte, error) {
	return AppendEncode(nil, v, id, reg)
}

// AppendEncode appends the encoding of v as type id to dst.
func AppendEncode(dst []byte, v Value, id TypeID, reg *Registry) ([]byte, error) {
	e := &encoder{buf: dst, reg: reg}
	if err := e.encode(v, id); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encoder struct {
	buf   []byte
	reg   *Registry
	depth int
}

func (e *encoder) fail(id TypeID, err error) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return err
	}
	return &EncodeError{TypeID: id, Err: err}
}

func (e *encoder) encode(v Value, id TypeID) error {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > MaxDepth {
		return e.fail(id, ErrRecursionLimit)
	}

	_, def, err := e.reg.Resolve(id)
	if err != nil {
		return e.fail(id, err)
	}
	if err := e.encodeDef(v, def); err != nil {
		return e.fail(id, err)
	}
	return nil
}

func (e *encoder) encodeDef(v Value, def *TypeDef) error {
	switch def.Kind {
	case KindPrimitive:
		return e.encodePrimitive(v, def.Primitive)
	case KindCompact:
		return e.encodeCompact(v, def.Elem)
	case KindArray:
		return e.encodeArray(v, def.Elem, int(def.Len))
	case KindSequence:
		return e.encodeArray(v, def.Elem, -1)
	case KindTuple, KindComposite:
		return e.encodeFields(v, def.Fields)
	case KindVariant:
		return e.encodeVariant(v, def)
	case KindOption:
		return e.encodeOption(v, def.Elem)
	case KindBitSequence:
		return e.encodeBits(v, def)
	}
	return ErrShapeMismatch
}

// integer extracts an integer from numeric values and from decimal or 0x
// prefixed strings.
func integer(v Value) (*big.Int, bool) {
	if x, ok := v.BigInt(); ok {
		return x, true
	}
	if s, ok := v.Str(); ok {
		x, ok := new(big.Int).SetString(s, 0)
		return x, ok
	}
	return nil, false
}

func (e *encoder) encodePrimitive(v Value, p Primitive) error {
	switch p {
	case PrimBool:
		b, ok := v.AsBool()
		if !ok {
			return fmt.Errorf("%w: want bool, got %s", ErrShapeMismatch, v.Kind())
		}
		if b {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
		return nil
	case PrimChar:
		var r rune
		if s, ok := v.Str(); ok && utf8.RuneCountInString(s) == 1 {
			r, _ = utf8.DecodeRuneInString(s)
		} else if u, ok := v.Uint64(); ok && u <= utf8.MaxRune {
			r = rune(u)
		} else {
			return fmt.Errorf("%w: want char, got %s", ErrShapeMismatch, v.Kind())
		}
		if !utf8.ValidRune(r) {
			return ErrInvalidUTF8
		}
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(r))
		return nil
	case PrimStr:
		s, ok := v.Str()
		if !ok {
			b, isBytes := v.AsBytes()
			if !isBytes || v.Kind() != ValueBytes {
				return fmt.Errorf("%w: want string, got %s", ErrShapeMismatch, v.Kind())
			}
			s = string(b)
		}
		if !utf8.ValidString(s) {
			return ErrInvalidUTF8
		}
		e.buf = AppendCompact(e.buf, uint64(len(s)))
		e.buf = append(e.buf, s...)
		return nil
	}

	x, ok := integer(v)
	if !ok {
		return fmt.Errorf("%w: want %s, got %s", ErrShapeMismatch, p, v.Kind())
	}
	return e.appendInt(x, p)
}

func (e *encoder) appendInt(x *big.Int, p Primitive) error {
	bits := uint(8 * p.Size())
	if p.Signed() {
		limit := new(big.Int).Lsh(big.NewInt(1), bits-1)
		if x.Cmp(limit) >= 0 || x.Cmp(new(big.Int).Neg(limit)) < 0 {
			return fmt.Errorf("%w: %s does not fit %s", ErrOutOfRange, x, p)
		}
		if x.Sign() < 0 {
			x = new(big.Int).Add(x, new(big.Int).Lsh(big.NewInt(1), bits))
		}
	} else if x.Sign() < 0 || x.BitLen() > int(bits) {
		return fmt.Errorf("%w: %s does not fit %s", ErrOutOfRange, x, p)
	}

	le := make([]byte, p.Size())
	be := x.Bytes()
	for i := range be {
		le[len(be)-1-i] = be[i]
	}
	e.buf = append(e.buf, le...)
	return nil
}

func (e *encoder) encodeCompact(v Value, elem TypeID) error {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > MaxDepth {
		return ErrRecursionLimit
	}

	_, def, err := e.reg.Resolve(elem)
	if err != nil {
		return err
	}
	switch {
	case def.Kind == KindPrimitive && def.Primitive.IsInteger():
		x, ok := integer(v)
		if !ok {
			return fmt.Errorf("%w: want compact integer, got %s", ErrShapeMismatch, v.Kind())
		}
		if x.Sign() < 0 || x.BitLen() > 8*def.Primitive.Size() {
			return fmt.Errorf("%w: %s does not fit Compact<%s>", ErrOutOfRange, x, def.Primitive)
		}
		e.buf, err = appendCompactBig(e.buf, x)
		return err
	case (def.Kind == KindComposite || def.Kind == KindTuple) && len(def.Fields) == 0:
		return nil
	case (def.Kind == KindComposite || def.Kind == KindTuple) && len(def.Fields) == 1:
		if v.Kind() == ValueComposite && v.Len() == 1 {
			v = v.items[0]
		}
		return e.encodeCompact(v, def.Fields[0].Type)
	}
	return ErrShapeMismatch
}

func (e *encoder) isByte(id TypeID) bool {
	_, def, err := e.reg.Resolve(id)
	return err == nil && def.Kind == KindPrimitive && def.Primitive == PrimU8
}

// encodeArray writes a fixed array when n >= 0 and a length-prefixed
// sequence otherwise.
func (e *encoder) encodeArray(v Value, elem TypeID, n int) error {
	if e.isByte(elem) {
		if b, ok := v.AsBytes(); ok {
			if n >= 0 && len(b) != n {
				return fmt.Errorf("%w: want %d bytes, got %d", ErrLengthMismatch, n, len(b))
			}
			if n < 0 {
				e.buf = AppendCompact(e.buf, uint64(len(b)))
			}
			e.buf = append(e.buf, b...)
			return nil
		}
	}

	if v.Kind() != ValueSequence && !(v.Kind() == ValueComposite && len(v.names) == 0) {
		return fmt.Errorf("%w: want sequence, got %s", ErrShapeMismatch, v.Kind())
	}
	if n >= 0 && len(v.items) != n {
		return fmt.Errorf("%w: want %d elements, got %d", ErrLengthMismatch, n, len(v.items))
	}
	if n < 0 {
		e.buf = AppendCompact(e.buf, uint64(len(v.items)))
	}
	for _, it := range v.items {
		if err := e.encode(it, elem); err != nil {
			return err
		}
	}
	return nil
}

// encodeFields writes the members of a composite, tuple or variant payload.
// Named fields are matched by name when the value carries names and by
// position otherwise. A single field type also accepts the bare field value.
func (e *encoder) encodeFields(v Value, fields []Field) error {
	if len(fields) == 0 {
		if v.Len() != 0 && v.Kind() != ValueInvalid {
			return fmt.Errorf("%w: want unit, got %s", ErrShapeMismatch, v.Kind())
		}
		return nil
	}

	container := v.Kind() == ValueComposite || v.Kind() == ValueSequence || v.Kind() == ValueVariant
	named := container && len(v.names) > 0 && v.names[0] != ""

	switch {
	case named && namedFields(fields):
		for _, f := range fields {
			fv, ok := v.Field(f.Name)
			if !ok {
				if len(fields) == 1 && len(v.names) == 1 {
					// A struct wrapping a struct: the value describes the
					// inner one.
					return e.encode(v, f.Type)
				}
				return fmt.Errorf("%w: %q", ErrMissingField, f.Name)
			}
			if err := e.encode(fv, f.Type); err != nil {
				return err
			}
		}
		if len(v.names) > len(fields) {
			for _, n := range v.names {
				if !hasField(fields, n) {
					return fmt.Errorf("%w: %q", ErrUnexpectedField, n)
				}
			}
		}
		return nil
	case container && !named && len(v.items) == len(fields) && (v.Kind() != ValueSequence || len(fields) > 1):
		for i, f := range fields {
			if err := e.encode(v.items[i], f.Type); err != nil {
				return err
			}
		}
		return nil
	case len(fields) == 1:
		return e.encode(v, fields[0].Type)
	}
	return fmt.Errorf("%w: want %d fields, got %s of %d", ErrLengthMismatch, len(fields), v.Kind(), v.Len())
}

func hasField(fields []Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (e *encoder) encodeVariant(v Value, def *TypeDef) error {
	var (
		variant *Variant
		payload Value
		ok      bool
	)
	switch v.Kind() {
	case ValueVariant:
		if v.variant != "" {
			variant, ok = def.VariantByName(v.variant)
		} else {
			variant, ok = def.VariantByIndex(v.index)
		}
		payload = Value{kind: ValueComposite, items: v.items, names: v.names}
	case ValueString:
		variant, ok = def.VariantByName(v.s)
		payload = Tuple()
	case ValueUint:
		if v.u <= 0xff {
			variant, ok = def.VariantByIndex(uint8(v.u))
		}
		payload = Tuple()
	case ValueComposite:
		if len(v.names) == 1 {
			variant, ok = def.VariantByName(v.names[0])
			payload = v.items[0]
		}
	}
	if !ok {
		name, _, _ := v.Variant()
		if name == "" {
			name = v.String()
		}
		return fmt.Errorf("%w: %s", ErrUnknownVariant, name)
	}

	e.buf = append(e.buf, variant.Index)
	if len(variant.Fields) == 0 {
		if payload.Len() != 0 {
			return fmt.Errorf("%w: variant %s has no fields", ErrUnexpectedField, variant.Name)
		}
		return nil
	}
	return e.encodeFields(payload, variant.Fields)
}

func (e *encoder) encodeOption(v Value, elem TypeID) error {
	if v.Kind() == ValueInvalid || v.IsNone() {
		e.buf = append(e.buf, 0)
		return nil
	}
	inner := v
	if name, _, isVariant := v.Variant(); isVariant && name == "Some" && len(v.items) == 1 {
		inner = v.items[0]
	}

	if _, def, err := e.reg.Resolve(elem); err == nil && def.Kind == KindPrimitive && def.Primitive == PrimBool {
		b, ok := inner.AsBool()
		if !ok {
			return fmt.Errorf("%w: want bool, got %s", ErrShapeMismatch, inner.Kind())
		}
		if b {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 2)
		}
		return nil
	}

	e.buf = append(e.buf, 1)
	return e.encode(inner, elem)
}

// encodeBits accepts the {bits, data} composite produced by the decoder or
// plain bytes, in which case every bit of every store word counts.
func (e *encoder) encodeBits(v Value, def *TypeDef) error {
	size, err := bitStoreSize(e.reg, def.Elem)
	if err != nil {
		return err
	}

	var (
		bits uint64
		data []byte
	)
	if b, ok := v.Field("data"); ok {
		data, ok = b.AsBytes()
		if !ok {
			return fmt.Errorf("%w: bit data", ErrShapeMismatch)
		}
		n, ok := v.Field("bits")
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingField, "bits")
		}
		if bits, ok = n.Uint64(); !ok {
			return fmt.Errorf("%w: bit count", ErrShapeMismatch)
		}
	} else if b, ok := v.AsBytes(); ok {
		data = b
		bits = uint64(len(b)) * 8
	} else {
		return fmt.Errorf("%w: want bit sequence, got %s", ErrShapeMismatch, v.Kind())
	}

	storeBits := uint64(size * 8)
	if want := (bits + storeBits - 1) / storeBits * uint64(size); uint64(len(data)) != want {
		return fmt.Errorf("%w: %d bits need %d bytes, got %d", ErrLengthMismatch, bits, want, len(data))
	}
	e.buf = AppendCompact(e.buf, bits)
	e.buf = append(e.buf, data...)
	return nil
}
