package storage

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Hasher is a storage key hashing scheme. The values follow the order of
// the StorageHasher enum in runtime metadata.
type Hasher uint8

const (
	Blake2_128 Hasher = iota
	Blake2_256
	Blake2_128Concat
	Twox128
	Twox256
	Twox64Concat
	Identity
)

var hasherNames = [...]string{
	Blake2_128:       "Blake2_128",
	Blake2_256:       "Blake2_256",
	Blake2_128Concat: "Blake2_128Concat",
	Twox128:          "Twox128",
	Twox256:          "Twox256",
	Twox64Concat:     "Twox64Concat",
	Identity:         "Identity",
}

func (h Hasher) String() string {
	if int(h) < len(hasherNames) {
		return hasherNames[h]
	}
	return fmt.Sprintf("Hasher(%d)", uint8(h))
}

// ParseHasher accepts metadata names case-insensitively, with or without
// underscores.
func ParseHasher(name string) (Hasher, error) {
	norm := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	for i, n := range hasherNames {
		if strings.ToLower(strings.ReplaceAll(n, "_", "")) == norm {
			return Hasher(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
}

// Valid reports whether h is a known scheme.
func (h Hasher) Valid() bool {
	return int(h) < len(hasherNames)
}

// Transparent reports whether the hashed output is followed by the encoded
// key, which makes the key recoverable from storage keys.
func (h Hasher) Transparent() bool {
	return h == Blake2_128Concat || h == Twox64Concat || h == Identity
}

// DigestLen is the length of the hash part of the output.
func (h Hasher) DigestLen() int {
	switch h {
	case Blake2_128, Blake2_128Concat, Twox128:
		return 16
	case Blake2_256, Twox256:
		return 32
	case Twox64Concat:
		return 8
	default:
		return 0
	}
}

// Hash applies the scheme to data.
func (h Hasher) Hash(data []byte) []byte {
	switch h {
	case Blake2_128:
		return Blake2b128(data)
	case Blake2_256:
		return Blake2b256(data)
	case Blake2_128Concat:
		return append(Blake2b128(data), data...)
	case Twox128:
		return TwoX128(data)
	case Twox256:
		return TwoX256(data)
	case Twox64Concat:
		return append(TwoX64(data), data...)
	default:
		return append([]byte(nil), data...)
	}
}

// Blake2b128 returns the 16-byte blake2b digest of data.
func Blake2b128(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return h.Sum(nil)
}

// Blake2b256 returns the 32-byte blake2b digest of data.
func Blake2b256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

func xxh64(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}

// TwoX64 is xxhash64 with seed 0, little-endian.
func TwoX64(data []byte) []byte {
	return binary.LittleEndian.AppendUint64(nil, xxh64(data, 0))
}

// TwoX128 concatenates xxhash64 of data under seeds 0 and 1.
func TwoX128(data []byte) []byte {
	return twox(data, 2)
}

// TwoX256 concatenates xxhash64 of data under seeds 0 through 3.
func TwoX256(data []byte) []byte {
	return twox(data, 4)
}

func twox(data []byte, rounds int) []byte {
	out := make([]byte, 0, 8*rounds)
	for seed := range rounds {
		out = binary.LittleEndian.AppendUint64(out, xxh64(data, uint64(seed)))
	}
	return out
}
