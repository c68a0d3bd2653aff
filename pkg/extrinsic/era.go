package extrinsic

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

const (
	minEraPeriod = 4
	maxEraPeriod = 1 << 16
)

// Era is the validity window of a transaction. The zero value is the
// immortal era. A mortal era is valid for Period blocks starting at the
// first block whose number is congruent to Phase modulo Period.
type Era struct {
	Period uint64
	Phase  uint64
}

// Immortal returns the era of a transaction that never expires.
func Immortal() Era { return Era{} }

// NewMortalEra returns an era starting at block current and lasting about
// period blocks. The period is rounded up to a power of two between 4 and
// 65536, and the phase is quantized to what the two byte encoding can hold.
func NewMortalEra(current, period uint64) Era {
	if period < minEraPeriod {
		period = minEraPeriod
	}
	if period > maxEraPeriod {
		period = maxEraPeriod
	}
	if period&(period-1) != 0 {
		period = 1 << bits.Len64(period)
	}

	q := quantizeFactor(period)
	phase := current % period / q * q
	return Era{Period: period, Phase: phase}
}

func quantizeFactor(period uint64) uint64 {
	return max(period>>12, 1)
}

// IsImmortal reports whether the era never expires.
func (e Era) IsImmortal() bool { return e.Period == 0 }

// Birth returns the first block of the era window that contains current.
func (e Era) Birth(current uint64) uint64 {
	if e.IsImmortal() {
		return 0
	}
	return (max(current, e.Phase)-e.Phase)/e.Period*e.Period + e.Phase
}

// Death returns the first block after the window that contains current.
func (e Era) Death(current uint64) uint64 {
	if e.IsImmortal() {
		return math.MaxUint64
	}
	return e.Birth(current) + e.Period
}

// Encode returns the SCALE encoding: a single zero byte for the immortal
// era, otherwise two little endian bytes packing the period exponent and
// the quantized phase.
func (e Era) Encode() []byte {
	return e.AppendEncode(nil)
}

func (e Era) AppendEncode(dst []byte) []byte {
	if e.IsImmortal() {
		return append(dst, 0)
	}
	low := min(max(bits.TrailingZeros64(e.Period)-1, 1), 15)
	high := e.Phase / quantizeFactor(e.Period) << 4
	return binary.LittleEndian.AppendUint16(dst, uint16(low)|uint16(high))
}

func (e Era) String() string {
	if e.IsImmortal() {
		return "immortal"
	}
	return fmt.Sprintf("mortal(period=%d, phase=%d)", e.Period, e.Phase)
}

// DecodeEra parses an encoded era and returns the number of bytes consumed.
func DecodeEra(data []byte) (Era, int, error) {
	if len(data) == 0 {
		return Era{}, 0, fmt.Errorf("%w: empty input", ErrInvalidEra)
	}
	if data[0] == 0 {
		return Immortal(), 1, nil
	}
	if len(data) < 2 {
		return Era{}, 0, fmt.Errorf("%w: truncated mortal era", ErrInvalidEra)
	}

	encoded := uint64(binary.LittleEndian.Uint16(data))
	period := uint64(2) << (encoded % (1 << 4))
	phase := (encoded >> 4) * quantizeFactor(period)
	if period < minEraPeriod || phase >= period {
		return Era{}, 0, fmt.Errorf("%w: period %d phase %d", ErrInvalidEra, period, phase)
	}
	return Era{Period: period, Phase: phase}, 2, nil
}
