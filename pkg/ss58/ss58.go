// Package ss58 encodes public keys and account ids as ss58 addresses.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidAddress is returned for any address that fails to decode:
// bad base-58, unknown length, reserved prefix or checksum mismatch.
var ErrInvalidAddress = errors.New("invalid ss58 address")

// MaxPrefix is the largest network prefix the format can carry.
const MaxPrefix = 16383

// Well known network prefixes.
const (
	PrefixPolkadot  uint16 = 0
	PrefixKusama    uint16 = 2
	PrefixSubstrate uint16 = 42
	PrefixBittensor        = PrefixSubstrate
)

var checksumPrefix = []byte("SS58PRE")

func checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(checksumPrefix)
	h.Write(data)
	return h.Sum(nil)
}

// checksumLen returns how many checksum bytes follow a payload of n bytes.
func checksumLen(n int) (int, bool) {
	switch n {
	case 1, 2, 4, 8:
		return 1, true
	case 32, 33:
		return 2, true
	}
	return 0, false
}

// ValidPrefix reports whether prefix may be used for an address. 46 and 47
// are reserved.
func ValidPrefix(prefix uint16) bool {
	return prefix <= MaxPrefix && prefix != 46 && prefix != 47
}

// Encode returns the ss58 address of key under the network prefix. Keys of
// 32 bytes (account ids, ed25519 and sr25519 keys) and 33 bytes (compressed
// ecdsa keys) get a two byte checksum; 1, 2, 4 and 8 byte account indices a
// single byte.
func Encode(key []byte, prefix uint16) (string, error) {
	if !ValidPrefix(prefix) {
		return "", fmt.Errorf("%w: prefix %d", ErrInvalidAddress, prefix)
	}
	n, ok := checksumLen(len(key))
	if !ok {
		return "", fmt.Errorf("%w: key length %d", ErrInvalidAddress, len(key))
	}

	var data []byte
	if prefix < 64 {
		data = append(data, byte(prefix))
	} else {
		data = append(data,
			byte((prefix&0xfc)>>2)|0x40,
			byte(prefix>>8)|byte((prefix&0x03)<<6),
		)
	}
	data = append(data, key...)
	data = append(data, checksum(data)[:n]...)
	return base58.Encode(data), nil
}

// Decode returns the key and network prefix carried by address.
func Decode(address string) ([]byte, uint16, error) {
	data, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("%w: too short", ErrInvalidAddress)
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case data[0] < 64:
		prefix, prefixLen = uint16(data[0]), 1
	case data[0] < 128:
		if len(data) < 3 {
			return nil, 0, fmt.Errorf("%w: too short", ErrInvalidAddress)
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %#x", ErrInvalidAddress, data[0])
	}
	if !ValidPrefix(prefix) {
		return nil, 0, fmt.Errorf("%w: prefix %d", ErrInvalidAddress, prefix)
	}

	body := len(data) - prefixLen
	var n int
	for _, keyLen := range []int{32, 33, 1, 2, 4, 8} {
		if c, _ := checksumLen(keyLen); keyLen+c == body {
			n = c
			break
		}
	}
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(data))
	}

	payload := data[:len(data)-n]
	if !bytes.Equal(checksum(payload)[:n], data[len(data)-n:]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return append([]byte(nil), payload[prefixLen:]...), prefix, nil
}

// DecodeWithPrefix decodes address and requires it to carry prefix.
func DecodeWithPrefix(address string, prefix uint16) ([]byte, error) {
	key, got, err := Decode(address)
	if err != nil {
		return nil, err
	}
	if got != prefix {
		return nil, fmt.Errorf("%w: prefix %d, want %d", ErrInvalidAddress, got, prefix)
	}
	return key, nil
}

// IsValid reports whether address decodes, optionally under one prefix.
func IsValid(address string, prefix ...uint16) bool {
	_, got, err := Decode(address)
	if err != nil {
		return false
	}
	return len(prefix) == 0 || prefix[0] == got
}
