package metadata

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/storage"
)

// Decode parses encoded RuntimeMetadataPrefixed. The runtime's portable
// types are layered on top of base, which is normally a preset registry;
// nil means the bare primitives.
func Decode(raw []byte, base *scale.Registry) (*Runtime, error) {
	if len(raw) < 5 || !bytes.Equal(raw[:4], Magic[:]) {
		return nil, fmt.Errorf("%w: missing magic number", ErrMetadataDecode)
	}
	version := raw[4]
	root, err := rootType(version)
	if err != nil {
		return nil, err
	}
	boot, err := Bootstrap()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
	}
	v, err := scale.DecodeAll(raw[5:], root, boot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
	}

	if base == nil {
		base = scale.Base()
	}
	rt, err := build(v, version, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
	}
	return rt, nil
}

// runtimeBuilder collects the registry of a runtime while its metadata is
// converted.
type runtimeBuilder struct {
	reg *scale.Builder
	// docs of enum variants by type and variant index; the registry's
	// Variant does not keep them.
	docs map[scale.TypeID]map[uint8][]string
}

// build turns the decoded metadata value into a Runtime and its registry.
func build(v scale.Value, version uint8, base *scale.Registry) (*Runtime, error) {
	rb := &runtimeBuilder{reg: base.Extend(), docs: make(map[scale.TypeID]map[uint8][]string)}
	if err := rb.addPortableTypes(field(v, "types")); err != nil {
		return nil, err
	}

	rt := &Runtime{MetadataVersion: version, Type: typeRef(field(v, "type"))}
	for _, pv := range field(v, "pallets").Items() {
		p, err := rb.buildPallet(pv)
		if err != nil {
			return nil, err
		}
		rt.Pallets = append(rt.Pallets, p)
	}

	ext, err := rb.buildExtrinsic(field(v, "extrinsic"), version)
	if err != nil {
		return nil, err
	}
	rt.Extrinsic = ext

	for _, av := range field(v, "apis").Items() {
		api := &RuntimeAPI{Name: text(field(av, "name")), Docs: texts(field(av, "docs"))}
		for _, mv := range field(av, "methods").Items() {
			m := RuntimeAPIMethod{
				Name:   text(field(mv, "name")),
				Output: typeRef(field(mv, "output")),
				Docs:   texts(field(mv, "docs")),
			}
			for _, in := range field(mv, "inputs").Items() {
				m.Inputs = append(m.Inputs, scale.Field{Name: text(field(in, "name")), Type: typeRef(field(in, "type"))})
			}
			api.Methods = append(api.Methods, m)
		}
		rt.APIs = append(rt.APIs, api)
	}

	rt.Registry = rb.reg.Publish()
	rt.index()
	return rt, nil
}

func (rb *runtimeBuilder) addPortableTypes(types scale.Value) error {
	paths := make(map[string][]scale.TypeID)
	for _, pt := range types.Items() {
		id64, _ := field(pt, "id").Uint64()
		id := scale.PortableID(uint32(id64))
		def, err := rb.portableDef(id, field(pt, "type"))
		if err != nil {
			return fmt.Errorf("type %s: %w", id, err)
		}
		if err := rb.reg.Add(id, def); err != nil {
			return err
		}
		if len(def.Path) > 0 {
			p := strings.Join(def.Path, "::")
			paths[p] = append(paths[p], id)
		}
	}

	// Paths name a type only when no generic instantiations share them.
	for p, ids := range paths {
		if len(ids) != 1 {
			continue
		}
		if err := rb.reg.AddAlias(scale.TypeID(p), ids[0]); err != nil {
			return err
		}
	}
	return nil
}

func (rb *runtimeBuilder) portableDef(id scale.TypeID, t scale.Value) (*scale.TypeDef, error) {
	def := &scale.TypeDef{Path: texts(field(t, "path"))}
	for _, pv := range field(t, "params").Items() {
		param := scale.TypeParam{Name: text(field(pv, "name"))}
		if ty := field(pv, "type"); !ty.IsNone() {
			param.Type = typeRef(ty.Unwrap())
		}
		def.Params = append(def.Params, param)
	}

	d := field(t, "def")
	kind, _, _ := d.Variant()
	body, _ := d.Index(0)
	switch kind {
	case "Composite":
		def.Kind = scale.KindComposite
		def.Fields = fields(field(body, "fields"))
	case "Variant":
		def.Kind = scale.KindVariant
		docs := make(map[uint8][]string)
		for _, vv := range field(body, "variants").Items() {
			index, _ := field(vv, "index").Uint64()
			def.Variants = append(def.Variants, scale.Variant{
				Name:   text(field(vv, "name")),
				Index:  uint8(index),
				Fields: fields(field(vv, "fields")),
			})
			if d := texts(field(vv, "docs")); len(d) > 0 {
				docs[uint8(index)] = d
			}
		}
		rb.docs[id] = docs
	case "Sequence":
		def.Kind = scale.KindSequence
		def.Elem = typeRef(field(body, "type"))
	case "Array":
		n, _ := field(body, "len").Uint64()
		def.Kind = scale.KindArray
		def.Len = uint32(n)
		def.Elem = typeRef(field(body, "type"))
	case "Tuple":
		def.Kind = scale.KindTuple
		for _, id := range body.Items() {
			def.Fields = append(def.Fields, scale.Field{Type: typeRef(id)})
		}
	case "Primitive":
		_, index, _ := body.Variant()
		def.Kind = scale.KindPrimitive
		def.Primitive = scale.Primitive(index)
	case "Compact":
		def.Kind = scale.KindCompact
		def.Elem = typeRef(field(body, "type"))
	case "BitSequence":
		def.Kind = scale.KindBitSequence
		def.Elem = typeRef(field(body, "bit_store_type"))
		def.Order = typeRef(field(body, "bit_order_type"))
	default:
		return nil, fmt.Errorf("unknown type definition %q", kind)
	}

	// Option gets its own kind so Option<bool> keeps its one byte form.
	if def.Kind == scale.KindVariant && len(def.Path) == 1 && def.Path[0] == "Option" {
		if elem, ok := def.Param("T"); ok {
			def.Kind = scale.KindOption
			def.Elem = elem
			def.Variants = nil
		}
	}
	return def, nil
}

func (rb *runtimeBuilder) buildPallet(pv scale.Value) (*Pallet, error) {
	index, _ := field(pv, "index").Uint64()
	p := &Pallet{
		Name:  text(field(pv, "name")),
		Index: uint8(index),
		Docs:  texts(field(pv, "docs")),
	}

	if sv := field(pv, "storage"); !sv.IsNone() {
		sv = sv.Unwrap()
		p.StoragePrefix = text(field(sv, "prefix"))
		for _, ev := range field(sv, "entries").Items() {
			e, err := rb.buildStorageEntry(p, ev)
			if err != nil {
				return nil, fmt.Errorf("storage %s: %w", p.Name, err)
			}
			p.Storage = append(p.Storage, e)
			rb.reg.SetEntry(scale.EntryStorage, p.Name, e.Name, e.ValueType)
		}
	}

	if cv := field(pv, "calls"); !cv.IsNone() {
		p.CallType = typeRef(field(cv.Unwrap(), "type"))
		variants, err := rb.enumVariants(p.CallType)
		if err != nil {
			return nil, fmt.Errorf("calls of %s: %w", p.Name, err)
		}
		for _, v := range variants {
			c := &Call{
				Pallet:      p.Name,
				PalletIndex: p.Index,
				Name:        v.Name,
				Index:       v.Index,
				Args:        v.Fields,
				ArgsType:    entryType(scale.EntryCall, p.Name, v.Name),
				Docs:        rb.docs[p.CallType][v.Index],
			}
			if err := rb.registerEntry(scale.EntryCall, p.Name, v.Name, v.Fields); err != nil {
				return nil, err
			}
			p.Calls = append(p.Calls, c)
		}
	}

	if ev := field(pv, "event"); !ev.IsNone() {
		p.EventType = typeRef(field(ev.Unwrap(), "type"))
		variants, err := rb.enumVariants(p.EventType)
		if err != nil {
			return nil, fmt.Errorf("events of %s: %w", p.Name, err)
		}
		for _, v := range variants {
			p.Events = append(p.Events, &Event{
				Pallet:      p.Name,
				PalletIndex: p.Index,
				Name:        v.Name,
				Index:       v.Index,
				Fields:      v.Fields,
				Docs:        rb.docs[p.EventType][v.Index],
			})
			if err := rb.registerEntry(scale.EntryEvent, p.Name, v.Name, v.Fields); err != nil {
				return nil, err
			}
		}
	}

	if ev := field(pv, "error"); !ev.IsNone() {
		p.ErrorType = typeRef(field(ev.Unwrap(), "type"))
		variants, err := rb.enumVariants(p.ErrorType)
		if err != nil {
			return nil, fmt.Errorf("errors of %s: %w", p.Name, err)
		}
		for _, v := range variants {
			p.Errors = append(p.Errors, &ModuleError{
				Pallet:      p.Name,
				PalletIndex: p.Index,
				Name:        v.Name,
				Index:       v.Index,
				Docs:        rb.docs[p.ErrorType][v.Index],
			})
			if err := rb.registerEntry(scale.EntryError, p.Name, v.Name, v.Fields); err != nil {
				return nil, err
			}
		}
	}

	for _, cv := range field(pv, "constants").Items() {
		c := &Constant{
			Pallet: p.Name,
			Name:   text(field(cv, "name")),
			Type:   typeRef(field(cv, "type")),
			Docs:   texts(field(cv, "docs")),
		}
		c.Value, _ = field(cv, "value").AsBytes()
		p.Constants = append(p.Constants, c)
		rb.reg.SetEntry(scale.EntryConstant, p.Name, c.Name, c.Type)
	}
	return p, nil
}

func (rb *runtimeBuilder) buildStorageEntry(p *Pallet, ev scale.Value) (*StorageEntry, error) {
	e := &StorageEntry{
		Pallet: p.Name,
		Prefix: p.StoragePrefix,
		Name:   text(field(ev, "name")),
		Docs:   texts(field(ev, "docs")),
	}
	if modifier, _, _ := field(ev, "modifier").Variant(); modifier == "Default" {
		e.Modifier = ModifierDefault
	}
	e.Default, _ = field(ev, "default").AsBytes()

	ty := field(ev, "type")
	kind, _, _ := ty.Variant()
	body, _ := ty.Index(0)
	if kind == "Plain" {
		e.ValueType = typeRef(body)
		return e, nil
	}

	for _, hv := range field(body, "hashers").Items() {
		_, index, _ := hv.Variant()
		h := storage.Hasher(index)
		if !h.Valid() {
			return nil, fmt.Errorf("%s: %w", e.Name, storage.ErrUnknownHasher)
		}
		e.Hashers = append(e.Hashers, h)
	}
	e.ValueType = typeRef(field(body, "value"))

	key := typeRef(field(body, "key"))
	if len(e.Hashers) == 1 {
		e.KeyTypes = []scale.TypeID{key}
		return e, nil
	}
	def, ok := rb.reg.Lookup(key)
	if !ok || def.Kind != scale.KindTuple || len(def.Fields) != len(e.Hashers) {
		return nil, fmt.Errorf("%s: key type %s does not match %d hashers", e.Name, key, len(e.Hashers))
	}
	for _, f := range def.Fields {
		e.KeyTypes = append(e.KeyTypes, f.Type)
	}
	return e, nil
}

func (rb *runtimeBuilder) buildExtrinsic(ev scale.Value, version uint8) (ExtrinsicInfo, error) {
	n, _ := field(ev, "version").Uint64()
	info := ExtrinsicInfo{Version: uint8(n)}
	for _, sv := range field(ev, "signed_extensions").Items() {
		info.SignedExtensions = append(info.SignedExtensions, SignedExtension{
			Identifier:       text(field(sv, "identifier")),
			Type:             typeRef(field(sv, "type")),
			AdditionalSigned: typeRef(field(sv, "additional_signed")),
		})
	}

	if version >= 15 {
		info.AddressType = typeRef(field(ev, "address_type"))
		info.CallType = typeRef(field(ev, "call_type"))
		info.SignatureType = typeRef(field(ev, "signature_type"))
		info.ExtraType = typeRef(field(ev, "extra_type"))
		return info, nil
	}

	// V14 only names the UncheckedExtrinsic type; its generic parameters
	// carry the parts.
	info.Type = typeRef(field(ev, "type"))
	def, ok := rb.reg.Lookup(info.Type)
	if !ok {
		return info, fmt.Errorf("extrinsic type %s not in registry", info.Type)
	}
	params := map[string]*scale.TypeID{
		"Address":   &info.AddressType,
		"Call":      &info.CallType,
		"Signature": &info.SignatureType,
		"Extra":     &info.ExtraType,
	}
	for name, dst := range params {
		if id, ok := def.Param(name); ok {
			*dst = id
		}
	}
	return info, nil
}

func (rb *runtimeBuilder) enumVariants(id scale.TypeID) ([]scale.Variant, error) {
	def, ok := rb.reg.Lookup(id)
	if !ok {
		return nil, &scale.UnknownTypeError{TypeID: id}
	}
	if def.Kind != scale.KindVariant {
		return nil, fmt.Errorf("type %s is a %s, not an enum", id, def.Kind)
	}
	return def.Variants, nil
}

// entryType is the registry id of the argument composite of a call, event
// or error.
func entryType(kind scale.EntryKind, module, name string) scale.TypeID {
	return scale.TypeID(kind.String() + ":" + module + "." + name)
}

func (rb *runtimeBuilder) registerEntry(kind scale.EntryKind, module, name string, fields []scale.Field) error {
	id := entryType(kind, module, name)
	if err := rb.reg.Add(id, &scale.TypeDef{Kind: scale.KindComposite, Path: []string{module, name}, Fields: fields}); err != nil {
		return err
	}
	rb.reg.SetEntry(kind, module, name, id)
	return nil
}

func field(v scale.Value, name string) scale.Value {
	f, _ := v.Field(name)
	return f
}

// text reads a string, or the string inside Some. None reads as "".
func text(v scale.Value) string {
	s, _ := v.Str()
	return s
}

func texts(v scale.Value) []string {
	if v.Len() == 0 {
		return nil
	}
	out := make([]string, 0, v.Len())
	for _, it := range v.Items() {
		out = append(out, text(it))
	}
	return out
}

func typeRef(v scale.Value) scale.TypeID {
	n, _ := v.Uint64()
	return scale.PortableID(uint32(n))
}

func fields(v scale.Value) []scale.Field {
	if v.Len() == 0 {
		return nil
	}
	out := make([]scale.Field, 0, v.Len())
	for _, fv := range v.Items() {
		out = append(out, scale.Field{
			Name:     text(field(fv, "name")),
			Type:     typeRef(field(fv, "type")),
			TypeName: text(field(fv, "type_name")),
		})
	}
	return out
}
