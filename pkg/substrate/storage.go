package substrate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/ss58"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/storage"
)

// DefaultPageSize is the number of keys QueryMap fetches per request.
const DefaultPageSize = 100

// MapEntry is one key-value pair of a storage map.
type MapEntry struct {
	Key storage.Key
	// Args are the key arguments recovered from Key. Arguments behind
	// opaque hashers are their digest bytes.
	Args  []scale.Value
	Value scale.Value
}

// QueryStorage reads module.item at blockHash, or at the best block when
// blockHash is empty. args are the map keys of the entry, as Go values or
// scale.Values; account ids may be given as ss58 addresses.
//
// found reports whether the value is stored. A missing value of an entry
// with a default comes back as that default; otherwise it is the zero
// Value.
func (c *Client) QueryStorage(ctx context.Context, module, item string, args []any, blockHash string) (value scale.Value, found bool, err error) {
	rt, err := c.Runtime(ctx, blockHash)
	if err != nil {
		return scale.Value{}, false, err
	}
	entry, err := rt.StorageEntry(module, item)
	if err != nil {
		return scale.Value{}, false, err
	}
	if len(args) != len(entry.KeyTypes) {
		return scale.Value{}, false, fmt.Errorf("%w: %s.%s takes %d key arguments, got %d",
			ErrInvalidArgument, module, item, len(entry.KeyTypes), len(args))
	}

	keyArgs, err := keyValues(rt.Registry, entry, args)
	if err != nil {
		return scale.Value{}, false, err
	}
	key, err := entry.Item().Key(rt.Registry, keyArgs...)
	if err != nil {
		return scale.Value{}, false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	var raw *hexutil.Bytes
	if err := c.Call(ctx, "state_getStorage", append([]any{key.Hex()}, atBlock(blockHash)...), &raw); err != nil {
		return scale.Value{}, false, err
	}

	if raw == nil {
		if entry.Modifier != metadata.ModifierDefault {
			return scale.Value{}, false, nil
		}
		v, err := scale.DecodeAll(entry.Default, entry.ValueType, rt.Registry)
		if err != nil {
			return scale.Value{}, false, fmt.Errorf("failed to decode default of %s.%s: %w", module, item, err)
		}
		return v, false, nil
	}

	v, err := scale.DecodeAll(*raw, entry.ValueType, rt.Registry)
	if err != nil {
		return scale.Value{}, false, fmt.Errorf("failed to decode %s.%s: %w", module, item, err)
	}
	return v, true, nil
}

type storageChangeSet struct {
	Block   string       `json:"block"`
	Changes [][2]*string `json:"changes"`
}

// QueryMap lists the entries of the storage map module.item whose keys
// start with prefixArgs. Keys are paged pageSize at a time
// (DefaultPageSize when zero) and all pages are read at one block.
func (c *Client) QueryMap(ctx context.Context, module, item string, prefixArgs []any, blockHash string, pageSize int) ([]MapEntry, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if blockHash == "" {
		// Pin the block so pages are consistent.
		header, err := c.Header(ctx, "")
		if err != nil {
			return nil, err
		}
		if blockHash, err = c.BlockHash(ctx, uint64(header.Number)); err != nil {
			return nil, err
		}
	}

	rt, err := c.Runtime(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	entry, err := rt.StorageEntry(module, item)
	if err != nil {
		return nil, err
	}
	if !entry.IsMap() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotAMap, module, item)
	}
	if len(prefixArgs) >= len(entry.KeyTypes) {
		return nil, fmt.Errorf("%w: %s.%s takes fewer than %d prefix arguments",
			ErrInvalidArgument, module, item, len(entry.KeyTypes))
	}

	keyArgs, err := keyValues(rt.Registry, entry, prefixArgs)
	if err != nil {
		return nil, err
	}
	layout := entry.Item()
	prefix, err := layout.PrefixKey(rt.Registry, keyArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	var (
		entries  []MapEntry
		startKey *string
	)
	for {
		var keys []string
		params := []any{prefix.Hex(), pageSize, startKey, blockHash}
		if err := c.Call(ctx, "state_getKeysPaged", params, &keys); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			break
		}

		var sets []storageChangeSet
		if err := c.Call(ctx, "state_queryStorageAt", []any{keys, blockHash}, &sets); err != nil {
			return nil, err
		}
		for _, set := range sets {
			for _, change := range set.Changes {
				e, ok, err := mapEntry(rt, entry, change)
				if err != nil {
					return nil, err
				}
				if ok {
					entries = append(entries, e)
				}
			}
		}

		if len(keys) < pageSize {
			break
		}
		last := keys[len(keys)-1]
		startKey = &last
	}
	return entries, nil
}

func mapEntry(rt *metadata.Runtime, entry *metadata.StorageEntry, change [2]*string) (MapEntry, bool, error) {
	if change[0] == nil || change[1] == nil {
		// Removed between listing and reading.
		return MapEntry{}, false, nil
	}
	key, err := storage.ParseKey(*change[0])
	if err != nil {
		return MapEntry{}, false, err
	}
	args, err := entry.Item().DecodeKeyArgs(rt.Registry, key)
	if err != nil && !errors.Is(err, storage.ErrOpaqueKey) {
		return MapEntry{}, false, fmt.Errorf("failed to decode key %s of %s.%s: %w", key, entry.Pallet, entry.Name, err)
	}
	raw, err := hexutil.Decode(*change[1])
	if err != nil {
		return MapEntry{}, false, err
	}
	v, err := scale.DecodeAll(raw, entry.ValueType, rt.Registry)
	if err != nil {
		return MapEntry{}, false, fmt.Errorf("failed to decode %s.%s at %s: %w", entry.Pallet, entry.Name, key, err)
	}
	return MapEntry{Key: key, Args: args, Value: v}, true, nil
}

// Constant returns the value of a pallet constant in the best block's
// runtime.
func (c *Client) Constant(ctx context.Context, module, name string) (scale.Value, error) {
	rt, err := c.Runtime(ctx, "")
	if err != nil {
		return scale.Value{}, err
	}
	return rt.ConstantValue(module, name)
}

func keyValues(reg *scale.Registry, entry *metadata.StorageEntry, args []any) ([]scale.Value, error) {
	out := make([]scale.Value, len(args))
	for i, arg := range args {
		v, err := argValue(reg, entry.KeyTypes[i], arg)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d of %s.%s: %w", ErrInvalidArgument, i, entry.Pallet, entry.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// argValue converts x into a value of type id. Account ids and ss58
// addresses are accepted where an account id, or an enum with an Id
// variant holding one, is expected, at any depth of maps and slices.
func argValue(reg *scale.Registry, id scale.TypeID, x any) (scale.Value, error) {
	var account []byte
	switch t := x.(type) {
	case sign.AccountID:
		account = t.Bytes()
	case sign.Address:
		if addr, err := sign.ParseAddress(t.String()); err == nil {
			account = addr.ID.Bytes()
		}
	case string:
		if pub, _, err := ss58.Decode(t); err == nil && len(pub) == len(sign.AccountID{}) && accountLike(reg, id) {
			account = pub
		}
	}
	if account != nil {
		if _, def, err := reg.Resolve(id); err == nil && def.Kind == scale.KindVariant && idVariant(reg, def) {
			return scale.VariantTuple("Id", scale.Bytes(account)), nil
		}
		return scale.Bytes(account), nil
	}

	_, def, err := reg.Resolve(id)
	if err != nil {
		return scale.FromInterface(x)
	}
	if _, isValue := x.(scale.Value); def.Kind == scale.KindOption && !isValue {
		return optionValue(reg, def.Elem, x)
	}
	switch t := x.(type) {
	case []any:
		switch def.Kind {
		case scale.KindSequence, scale.KindArray:
			items := make([]scale.Value, len(t))
			for i, it := range t {
				if items[i], err = argValue(reg, def.Elem, it); err != nil {
					return scale.Value{}, fmt.Errorf("element %d: %w", i, err)
				}
			}
			return scale.Sequence(items...), nil
		case scale.KindTuple, scale.KindComposite:
			return fieldsValue(reg, def.Fields, x)
		}
	case map[string]any:
		switch def.Kind {
		case scale.KindComposite, scale.KindTuple:
			return fieldsValue(reg, def.Fields, x)
		case scale.KindVariant:
			if len(t) != 1 {
				break
			}
			for name, payload := range t {
				v, ok := def.VariantByName(name)
				if !ok || len(v.Fields) == 0 {
					break
				}
				p, err := fieldsValue(reg, v.Fields, payload)
				if err != nil {
					return scale.Value{}, fmt.Errorf("variant %s: %w", name, err)
				}
				return scale.Composite(scale.Named(name, p)), nil
			}
		}
	}
	return scale.FromInterface(x)
}

// optionValue converts x into an Option of elem. Nil is None, and a single
// key map of Some or None is taken as the Option itself.
func optionValue(reg *scale.Registry, elem scale.TypeID, x any) (scale.Value, error) {
	if x == nil {
		return scale.None(), nil
	}
	if m, ok := x.(map[string]any); ok && len(m) == 1 {
		if _, ok := m["None"]; ok {
			return scale.None(), nil
		}
		if some, ok := m["Some"]; ok {
			x = some
		}
	}
	v, err := argValue(reg, elem, x)
	if err != nil {
		return scale.Value{}, err
	}
	return scale.Some(v), nil
}

// fieldsValue converts x into the members of a composite, tuple or enum
// payload described by fields. Maps are matched by field name, slices by
// position; a lone field also takes the bare value.
func fieldsValue(reg *scale.Registry, fields []scale.Field, x any) (scale.Value, error) {
	switch t := x.(type) {
	case map[string]any:
		if len(fields) != 1 || hasFieldNamed(fields, t) {
			named := make([]scale.NamedValue, 0, len(t))
			for _, name := range slices.Sorted(maps.Keys(t)) {
				var (
					v   scale.Value
					err error
				)
				if i := slices.IndexFunc(fields, func(f scale.Field) bool { return f.Name == name }); i >= 0 {
					v, err = argValue(reg, fields[i].Type, t[name])
				} else {
					v, err = scale.FromInterface(t[name])
				}
				if err != nil {
					return scale.Value{}, fmt.Errorf("field %s: %w", name, err)
				}
				named = append(named, scale.Named(name, v))
			}
			return scale.Composite(named...), nil
		}
	case []any:
		if len(fields) != 1 && len(t) == len(fields) {
			items := make([]scale.Value, len(t))
			for i, it := range t {
				var err error
				if items[i], err = argValue(reg, fields[i].Type, it); err != nil {
					return scale.Value{}, fmt.Errorf("field %d: %w", i, err)
				}
			}
			return scale.Tuple(items...), nil
		}
	}
	if len(fields) == 1 {
		return argValue(reg, fields[0].Type, x)
	}
	return scale.FromInterface(x)
}

func hasFieldNamed(fields []scale.Field, m map[string]any) bool {
	for _, f := range fields {
		if _, ok := m[f.Name]; ok && f.Name != "" {
			return true
		}
	}
	return false
}

// accountLike reports whether id holds a 32 byte account id, directly or
// through an Id variant.
func accountLike(reg *scale.Registry, id scale.TypeID) bool {
	_, def, err := reg.Resolve(id)
	if err != nil {
		return false
	}
	switch def.Kind {
	case scale.KindArray:
		return def.Len == uint32(len(sign.AccountID{}))
	case scale.KindComposite:
		return len(def.Fields) == 1 && accountLike(reg, def.Fields[0].Type)
	case scale.KindVariant:
		return idVariant(reg, def)
	}
	return false
}

func idVariant(reg *scale.Registry, def *scale.TypeDef) bool {
	for _, v := range def.Variants {
		if v.Name == "Id" && len(v.Fields) == 1 {
			return accountLike(reg, v.Fields[0].Type)
		}
	}
	return false
}
