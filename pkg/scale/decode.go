package scale

import (
	"encoding/binary"
	"errors"
	"math/big"
	"unicode/utf8"
)

// MaxDepth bounds type nesting during decoding and encoding.
const MaxDepth = 256

// maxUncheckedLen is the largest sequence length accepted without the input
// holding at least that many bytes. Zero sized elements make the byte count
// an imprecise bound, so small lengths are let through.
const maxUncheckedLen = 1 << 20

// Decode reads one value of type id from the start of data. It returns the
// value and the number of bytes consumed; trailing bytes are left alone.
func Decode(data []byte, id TypeID, reg *Registry) (Value, int, error) {
	d := &decoder{data: data, reg: reg}
	v, err := d.decode(id)
	if err != nil {
		return Value{}, 0, err
	}
	return v, d.pos, nil
}

// DecodeAll decodes data as exactly one value of type id.
func DecodeAll(data []byte, id TypeID, reg *Registry) (Value, error) {
	v, n, err := Decode(data, id, reg)
	if err != nil {
		return Value{}, err
	}
	if n != len(data) {
		return Value{}, &DecodeError{TypeID: id, Offset: n, Err: ErrTrailingBytes}
	}
	return v, nil
}

type decoder struct {
	data  []byte
	pos   int
	reg   *Registry
	depth int
}

func (d *decoder) fail(id TypeID, offset int, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{TypeID: id, Offset: offset, Err: err}
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) compactLen() (uint64, error) {
	n, size, err := DecodeCompact(d.data[d.pos:])
	if err != nil {
		return 0, err
	}
	d.pos += size
	return n, nil
}

func (d *decoder) decode(id TypeID) (Value, error) {
	start := d.pos
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxDepth {
		return Value{}, d.fail(id, start, ErrRecursionLimit)
	}

	_, def, err := d.reg.Resolve(id)
	if err != nil {
		return Value{}, d.fail(id, start, err)
	}

	v, err := d.decodeDef(id, def)
	if err != nil {
		return Value{}, d.fail(id, start, err)
	}
	return v, nil
}

func (d *decoder) decodeDef(id TypeID, def *TypeDef) (Value, error) {
	switch def.Kind {
	case KindPrimitive:
		return d.decodePrimitive(def.Primitive)
	case KindCompact:
		return d.decodeCompact(def.Elem)
	case KindArray:
		return d.decodeArray(def.Elem, uint64(def.Len))
	case KindSequence:
		start := d.pos
		n, err := d.compactLen()
		if err != nil {
			return Value{}, err
		}
		if n > uint64(len(d.data)-d.pos) && n > maxUncheckedLen {
			d.pos = start
			return Value{}, ErrTruncated
		}
		return d.decodeArray(def.Elem, n)
	case KindTuple, KindComposite:
		items, names, err := d.decodeFields(def.Fields)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: ValueComposite, items: items, names: names}, nil
	case KindVariant:
		tag, err := d.take(1)
		if err != nil {
			return Value{}, err
		}
		variant, ok := def.VariantByIndex(tag[0])
		if !ok {
			d.pos--
			return Value{}, ErrInvalidVariant
		}
		items, names, err := d.decodeFields(variant.Fields)
		if err != nil {
			return Value{}, err
		}
		return variantAt(variant.Name, variant.Index, items, names), nil
	case KindOption:
		return d.decodeOption(def.Elem)
	case KindBitSequence:
		return d.decodeBits(def)
	default:
		return Value{}, &UnknownTypeError{TypeID: id}
	}
}

func (d *decoder) decodeFields(fields []Field) ([]Value, []string, error) {
	if len(fields) == 0 {
		return nil, nil, nil
	}
	items := make([]Value, len(fields))
	for i, f := range fields {
		v, err := d.decode(f.Type)
		if err != nil {
			return nil, nil, err
		}
		items[i] = v
	}
	if !namedFields(fields) {
		return items, nil, nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return items, names, nil
}

func (d *decoder) decodeArray(elem TypeID, n uint64) (Value, error) {
	if d.isByte(elem) {
		if n > uint64(len(d.data)-d.pos) {
			return Value{}, ErrTruncated
		}
		b, _ := d.take(int(n))
		return Bytes(append([]byte(nil), b...)), nil
	}

	items := make([]Value, 0, min(n, uint64(len(d.data)-d.pos)))
	for range n {
		v, err := d.decode(elem)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return Sequence(items...), nil
}

func (d *decoder) isByte(id TypeID) bool {
	_, def, err := d.reg.Resolve(id)
	return err == nil && def.Kind == KindPrimitive && def.Primitive == PrimU8
}

func (d *decoder) decodePrimitive(p Primitive) (Value, error) {
	switch p {
	case PrimBool:
		b, err := d.take(1)
		if err != nil {
			return Value{}, err
		}
		switch b[0] {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		}
		d.pos--
		return Value{}, ErrInvalidBool
	case PrimChar:
		b, err := d.take(4)
		if err != nil {
			return Value{}, err
		}
		r := rune(binary.LittleEndian.Uint32(b))
		if !utf8.ValidRune(r) {
			d.pos -= 4
			return Value{}, ErrInvalidUTF8
		}
		return String(string(r)), nil
	case PrimStr:
		n, err := d.compactLen()
		if err != nil {
			return Value{}, err
		}
		if n > uint64(len(d.data)-d.pos) {
			return Value{}, ErrTruncated
		}
		b, _ := d.take(int(n))
		if !utf8.Valid(b) {
			return Value{}, ErrInvalidUTF8
		}
		return String(string(b)), nil
	}

	b, err := d.take(p.Size())
	if err != nil {
		return Value{}, err
	}
	switch p {
	case PrimU8:
		return Uint(uint64(b[0])), nil
	case PrimU16:
		return Uint(uint64(binary.LittleEndian.Uint16(b))), nil
	case PrimU32:
		return Uint(uint64(binary.LittleEndian.Uint32(b))), nil
	case PrimU64:
		return Uint(binary.LittleEndian.Uint64(b)), nil
	case PrimI8:
		return Int(int64(int8(b[0]))), nil
	case PrimI16:
		return Int(int64(int16(binary.LittleEndian.Uint16(b)))), nil
	case PrimI32:
		return Int(int64(int32(binary.LittleEndian.Uint32(b)))), nil
	case PrimI64:
		return Int(int64(binary.LittleEndian.Uint64(b))), nil
	}
	return BigInt(leToBig(b, p.Signed())), nil
}

// leToBig interprets little-endian bytes as an unsigned or two's complement
// integer.
func leToBig(le []byte, signed bool) *big.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	x := new(big.Int).SetBytes(be)
	if signed && len(be) > 0 && be[0]&0x80 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(8*len(le))))
	}
	return x
}

// decodeCompact reads Compact<T>. T may be an integer primitive, a
// single-field wrapper around one, or the unit type.
func (d *decoder) decodeCompact(elem TypeID) (Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxDepth {
		return Value{}, ErrRecursionLimit
	}

	_, def, err := d.reg.Resolve(elem)
	if err != nil {
		return Value{}, err
	}
	switch {
	case def.Kind == KindPrimitive && def.Primitive.IsInteger():
		x, n, err := DecodeCompactBig(d.data[d.pos:])
		if err != nil {
			return Value{}, err
		}
		if x.BitLen() > 8*def.Primitive.Size() {
			return Value{}, ErrOutOfRange
		}
		d.pos += n
		return BigInt(x), nil
	case (def.Kind == KindComposite || def.Kind == KindTuple) && len(def.Fields) == 0:
		return Tuple(), nil
	case (def.Kind == KindComposite || def.Kind == KindTuple) && len(def.Fields) == 1:
		inner, err := d.decodeCompact(def.Fields[0].Type)
		if err != nil {
			return Value{}, err
		}
		if def.Fields[0].Name != "" {
			return Composite(Named(def.Fields[0].Name, inner)), nil
		}
		return Tuple(inner), nil
	}
	return Value{}, ErrShapeMismatch
}

func (d *decoder) decodeOption(elem TypeID) (Value, error) {
	tag, err := d.take(1)
	if err != nil {
		return Value{}, err
	}

	if _, def, err := d.reg.Resolve(elem); err == nil && def.Kind == KindPrimitive && def.Primitive == PrimBool {
		switch tag[0] {
		case 0:
			return None(), nil
		case 1:
			return Some(Bool(true)), nil
		case 2:
			return Some(Bool(false)), nil
		}
		d.pos--
		return Value{}, ErrInvalidOption
	}

	switch tag[0] {
	case 0:
		return None(), nil
	case 1:
		v, err := d.decode(elem)
		if err != nil {
			return Value{}, err
		}
		return Some(v), nil
	}
	d.pos--
	return Value{}, ErrInvalidOption
}

func bitStoreSize(reg *Registry, store TypeID) (int, error) {
	_, def, err := reg.Resolve(store)
	if err != nil {
		return 0, err
	}
	if def.Kind != KindPrimitive {
		return 0, ErrUnsupportedBitType
	}
	switch def.Primitive {
	case PrimU8, PrimU16, PrimU32, PrimU64:
		return def.Primitive.Size(), nil
	}
	return 0, ErrUnsupportedBitType
}

// decodeBits reads a BitVec as {bits, data}: the bit count and the raw store
// words in wire order.
func (d *decoder) decodeBits(def *TypeDef) (Value, error) {
	size, err := bitStoreSize(d.reg, def.Elem)
	if err != nil {
		return Value{}, err
	}
	bits, err := d.compactLen()
	if err != nil {
		return Value{}, err
	}
	storeBits := uint64(size * 8)
	words := (bits + storeBits - 1) / storeBits
	if words > uint64(len(d.data)-d.pos)/uint64(size) {
		return Value{}, ErrTruncated
	}
	b, err := d.take(int(words) * size)
	if err != nil {
		return Value{}, err
	}
	return Composite(
		Named("bits", Uint(bits)),
		Named("data", Bytes(append([]byte(nil), b...))),
	), nil
}
