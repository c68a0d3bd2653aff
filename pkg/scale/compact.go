package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Compact integers use the two low bits of the first byte as a mode:
// 0b00 single byte (6 bits), 0b01 two bytes (14 bits), 0b10 four bytes
// (30 bits), 0b11 big-integer mode where the upper six bits give the byte
// length minus four.
const (
	compactSingleMax = 1<<6 - 1
	compactTwoMax    = 1<<14 - 1
	compactFourMax   = 1<<30 - 1
	compactMaxBytes  = 67
)

// EncodeCompact returns the compact encoding of n.
func EncodeCompact(n uint64) []byte {
	return AppendCompact(nil, n)
}

// AppendCompact appends the compact encoding of n to dst.
func AppendCompact(dst []byte, n uint64) []byte {
	switch {
	case n <= compactSingleMax:
		return append(dst, byte(n<<2))
	case n <= compactTwoMax:
		return binary.LittleEndian.AppendUint16(dst, uint16(n<<2)|0b01)
	case n <= compactFourMax:
		return binary.LittleEndian.AppendUint32(dst, uint32(n<<2)|0b10)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	size := 8
	for size > 4 && buf[size-1] == 0 {
		size--
	}
	dst = append(dst, byte((size-4)<<2)|0b11)
	return append(dst, buf[:size]...)
}

// EncodeCompactBig returns the compact encoding of a non-negative integer of
// at most 536 bits.
func EncodeCompactBig(x *big.Int) ([]byte, error) {
	return appendCompactBig(nil, x)
}

func appendCompactBig(dst []byte, x *big.Int) ([]byte, error) {
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative compact", ErrOutOfRange)
	}
	if x.IsUint64() {
		return AppendCompact(dst, x.Uint64()), nil
	}
	be := x.Bytes()
	if len(be) > compactMaxBytes {
		return nil, ErrCompactOverflow
	}
	dst = append(dst, byte((len(be)-4)<<2)|0b11)
	for i := len(be) - 1; i >= 0; i-- {
		dst = append(dst, be[i])
	}
	return dst, nil
}

// DecodeCompact reads a compact integer that must fit 64 bits and returns it
// together with the number of bytes consumed. Non-canonical encodings are
// rejected with ErrNonCanonical.
func DecodeCompact(data []byte) (uint64, int, error) {
	x, n, err := DecodeCompactBig(data)
	if err != nil {
		return 0, 0, err
	}
	if !x.IsUint64() {
		return 0, 0, ErrCompactOverflow
	}
	return x.Uint64(), n, nil
}

// DecodeCompactBig reads a compact integer of any supported width.
func DecodeCompactBig(data []byte) (*big.Int, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrTruncated
	}
	switch data[0] & 0b11 {
	case 0b00:
		return big.NewInt(int64(data[0] >> 2)), 1, nil
	case 0b01:
		if len(data) < 2 {
			return nil, 0, ErrTruncated
		}
		v := uint64(binary.LittleEndian.Uint16(data) >> 2)
		if v <= compactSingleMax {
			return nil, 0, ErrNonCanonical
		}
		return new(big.Int).SetUint64(v), 2, nil
	case 0b10:
		if len(data) < 4 {
			return nil, 0, ErrTruncated
		}
		v := uint64(binary.LittleEndian.Uint32(data) >> 2)
		if v <= compactTwoMax {
			return nil, 0, ErrNonCanonical
		}
		return new(big.Int).SetUint64(v), 4, nil
	}

	size := int(data[0]>>2) + 4
	if len(data) < 1+size {
		return nil, 0, ErrTruncated
	}
	le := data[1 : 1+size]
	if le[size-1] == 0 {
		// A zero top byte means a shorter length would have sufficed.
		return nil, 0, ErrNonCanonical
	}
	be := make([]byte, size)
	for i := range le {
		be[size-1-i] = le[i]
	}
	x := new(big.Int).SetBytes(be)
	if size == 4 && x.Uint64() <= compactFourMax {
		return nil, 0, ErrNonCanonical
	}
	return x, 1 + size, nil
}

// CompactLen returns the encoded size of n without encoding it.
func CompactLen(n uint64) int {
	switch {
	case n <= compactSingleMax:
		return 1
	case n <= compactTwoMax:
		return 2
	case n <= compactFourMax:
		return 4
	}
	size := 8
	for size > 4 && n>>(8*(size-1)) == 0 {
		size--
	}
	return 1 + size
}
