package storage

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
)

// Key is a raw storage key.
type Key []byte

// Hex returns the 0x-prefixed form used on the wire.
func (k Key) Hex() string {
	return hexutil.Encode(k)
}

func (k Key) String() string {
	return k.Hex()
}

// ParseKey decodes a 0x-prefixed storage key.
func ParseKey(s string) (Key, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	return Key(b), nil
}

// Item describes a storage entry as declared in runtime metadata. Plain
// values have no hashers; maps carry one hasher and one key type per key
// argument, in declaration order.
type Item struct {
	Module   string
	Name     string
	Hashers  []Hasher
	KeyTypes []scale.TypeID
}

// Prefix returns twox128(module) || twox128(item).
func (it Item) Prefix() Key {
	return PrefixFor(it.Module, it.Name)
}

// PrefixFor returns the storage prefix shared by all keys of an item.
func PrefixFor(module, item string) Key {
	k := make(Key, 0, 32)
	k = append(k, TwoX128([]byte(module))...)
	k = append(k, TwoX128([]byte(item))...)
	return k
}

// Key builds the full key of the entry addressed by args. The number of
// arguments must match the number of hashers.
func (it Item) Key(reg *scale.Registry, args ...scale.Value) (Key, error) {
	if len(args) != len(it.Hashers) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrArgCount, it.Module, it.Name, len(it.Hashers), len(args))
	}
	return it.PrefixKey(reg, args...)
}

// PrefixKey builds a key from the leading args only, for iterating the
// entries of a map that share those arguments.
func (it Item) PrefixKey(reg *scale.Registry, args ...scale.Value) (Key, error) {
	if len(args) > len(it.Hashers) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrArgCount, it.Module, it.Name, len(it.Hashers), len(args))
	}
	if len(it.KeyTypes) != len(it.Hashers) {
		return nil, fmt.Errorf("%w: %s.%s declares %d hashers for %d key types", ErrArgCount, it.Module, it.Name, len(it.Hashers), len(it.KeyTypes))
	}

	key := it.Prefix()
	for i, arg := range args {
		enc, err := scale.Encode(arg, it.KeyTypes[i], reg)
		if err != nil {
			return nil, fmt.Errorf("%s.%s key %d: %w", it.Module, it.Name, i, err)
		}
		key = append(key, it.Hashers[i].Hash(enc)...)
	}
	return key, nil
}

// DecodeKeyArgs recovers the key arguments of a full storage key. Arguments
// behind opaque hashers come back as their digest bytes and the partial
// result is returned together with ErrOpaqueKey.
func (it Item) DecodeKeyArgs(reg *scale.Registry, key Key) ([]scale.Value, error) {
	prefix := it.Prefix()
	if !bytes.HasPrefix(key, prefix) {
		return nil, fmt.Errorf("%w: %s.%s", ErrKeyMismatch, it.Module, it.Name)
	}
	if len(it.KeyTypes) != len(it.Hashers) {
		return nil, fmt.Errorf("%w: %s.%s declares %d hashers for %d key types", ErrArgCount, it.Module, it.Name, len(it.Hashers), len(it.KeyTypes))
	}

	rest := key[len(prefix):]
	args := make([]scale.Value, len(it.Hashers))
	opaque := false
	for i, h := range it.Hashers {
		n := h.DigestLen()
		if len(rest) < n {
			return nil, fmt.Errorf("%w: %s.%s key %d truncated", ErrKeyMismatch, it.Module, it.Name, i)
		}
		digest := rest[:n]
		rest = rest[n:]

		if !h.Transparent() {
			args[i] = scale.Bytes(append([]byte(nil), digest...))
			opaque = true
			continue
		}

		v, consumed, err := scale.Decode(rest, it.KeyTypes[i], reg)
		if err != nil {
			return nil, fmt.Errorf("%s.%s key %d: %w", it.Module, it.Name, i, err)
		}
		if h != Identity && !bytes.Equal(digest, h.Hash(rest[:consumed])[:n]) {
			return nil, fmt.Errorf("%w: %s.%s key %d digest mismatch", ErrKeyMismatch, it.Module, it.Name, i)
		}
		args[i] = v
		rest = rest[consumed:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %s.%s has %d trailing bytes", ErrKeyMismatch, it.Module, it.Name, len(rest))
	}
	if opaque {
		return args, ErrOpaqueKey
	}
	return args, nil
}
