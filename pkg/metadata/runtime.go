package metadata

import (
	"fmt"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/storage"
)

// Runtime is the decoded metadata of one runtime version together with the
// registry its types live in. A Runtime is read-only once returned and may
// be shared between goroutines.
type Runtime struct {
	// MetadataVersion is the metadata format version (14 or 15).
	MetadataVersion uint8
	// Version is the runtime version the metadata was fetched for. It is
	// zero for runtimes decoded directly with Decode.
	Version RuntimeVersion
	// GenesisHash identifies the chain, 0x-prefixed.
	GenesisHash string

	Registry  *scale.Registry
	Pallets   []*Pallet
	Extrinsic ExtrinsicInfo
	APIs      []*RuntimeAPI
	Type      scale.TypeID

	byName  map[string]*Pallet
	byIndex map[uint8]*Pallet
}

// Pallet is one module of the runtime.
type Pallet struct {
	Name          string
	Index         uint8
	StoragePrefix string
	Storage       []*StorageEntry
	Calls         []*Call
	Events        []*Event
	Errors        []*ModuleError
	Constants     []*Constant
	CallType      scale.TypeID
	EventType     scale.TypeID
	ErrorType     scale.TypeID
	Docs          []string
}

// Modifier tells what a storage query returns for a missing key.
type Modifier uint8

const (
	// ModifierOptional entries return nothing for missing keys.
	ModifierOptional Modifier = iota
	// ModifierDefault entries return their declared default value.
	ModifierDefault
)

func (m Modifier) String() string {
	if m == ModifierDefault {
		return "Default"
	}
	return "Optional"
}

// StorageEntry describes one storage item.
type StorageEntry struct {
	Pallet string
	// Prefix is the storage prefix hashed into keys, normally the pallet
	// name.
	Prefix    string
	Name      string
	Modifier  Modifier
	Hashers   []storage.Hasher
	KeyTypes  []scale.TypeID
	ValueType scale.TypeID
	Default   []byte
	Docs      []string
}

// IsMap reports whether the entry takes key arguments.
func (e *StorageEntry) IsMap() bool {
	return len(e.Hashers) > 0
}

// Item returns the key layout of the entry.
func (e *StorageEntry) Item() storage.Item {
	return storage.Item{
		Module:   e.Prefix,
		Name:     e.Name,
		Hashers:  e.Hashers,
		KeyTypes: e.KeyTypes,
	}
}

// Call is a dispatchable function.
type Call struct {
	Pallet      string
	PalletIndex uint8
	Name        string
	Index       uint8
	Args        []scale.Field
	// ArgsType is a composite of Args registered in the runtime registry.
	ArgsType scale.TypeID
	Docs     []string
}

// Event is an event a pallet deposits.
type Event struct {
	Pallet      string
	PalletIndex uint8
	Name        string
	Index       uint8
	Fields      []scale.Field
	Docs        []string
}

// ModuleError is a dispatch error a pallet may return.
type ModuleError struct {
	Pallet      string
	PalletIndex uint8
	Name        string
	Index       uint8
	Docs        []string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s.%s", e.Pallet, e.Name)
}

// Constant is a pallet constant with its SCALE encoded value.
type Constant struct {
	Pallet string
	Name   string
	Type   scale.TypeID
	Value  []byte
	Docs   []string
}

// ExtrinsicInfo describes the extrinsic format of the runtime.
type ExtrinsicInfo struct {
	Version          uint8
	Type             scale.TypeID
	AddressType      scale.TypeID
	CallType         scale.TypeID
	SignatureType    scale.TypeID
	ExtraType        scale.TypeID
	SignedExtensions []SignedExtension
}

// SignedExtension is one transaction extension. Type is what the extrinsic
// carries, AdditionalSigned what only the signing payload carries.
type SignedExtension struct {
	Identifier       string
	Type             scale.TypeID
	AdditionalSigned scale.TypeID
}

// RuntimeAPI is a runtime api trait listed by metadata V15.
type RuntimeAPI struct {
	Name    string
	Methods []RuntimeAPIMethod
	Docs    []string
}

// RuntimeAPIMethod is one method of a runtime api, callable through
// state_call as "<api>_<method>".
type RuntimeAPIMethod struct {
	Name   string
	Inputs []scale.Field
	Output scale.TypeID
	Docs   []string
}

// Pallet returns the pallet called name.
func (r *Runtime) Pallet(name string) (*Pallet, error) {
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

// PalletByIndex returns the pallet with the given index.
func (r *Runtime) PalletByIndex(index uint8) (*Pallet, error) {
	if p, ok := r.byIndex[index]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: index %d", ErrModuleNotFound, index)
}

// StorageEntry returns the storage item module.name.
func (r *Runtime) StorageEntry(module, name string) (*StorageEntry, error) {
	p, err := r.Pallet(module)
	if err != nil {
		return nil, err
	}
	for _, e := range p.Storage {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrStorageNotFound, module, name)
}

// Call returns the call module.name.
func (r *Runtime) Call(module, name string) (*Call, error) {
	p, err := r.Pallet(module)
	if err != nil {
		return nil, err
	}
	for _, c := range p.Calls {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrCallNotFound, module, name)
}

// CallByIndex returns the call with the given pallet and call index.
func (r *Runtime) CallByIndex(pallet, index uint8) (*Call, error) {
	p, err := r.PalletByIndex(pallet)
	if err != nil {
		return nil, err
	}
	for _, c := range p.Calls {
		if c.Index == index {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s call %d", ErrCallNotFound, p.Name, index)
}

// Constant returns the constant module.name.
func (r *Runtime) Constant(module, name string) (*Constant, error) {
	p, err := r.Pallet(module)
	if err != nil {
		return nil, err
	}
	for _, c := range p.Constants {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrConstantNotFound, module, name)
}

// ConstantValue decodes the value of the constant module.name.
func (r *Runtime) ConstantValue(module, name string) (scale.Value, error) {
	c, err := r.Constant(module, name)
	if err != nil {
		return scale.Value{}, err
	}
	return scale.DecodeAll(c.Value, c.Type, r.Registry)
}

// EventFor returns the event a (pallet index, event index) pair names.
func (r *Runtime) EventFor(pallet, index uint8) (*Event, error) {
	p, err := r.PalletByIndex(pallet)
	if err != nil {
		return nil, err
	}
	for _, e := range p.Events {
		if e.Index == index {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s event %d", ErrEventNotFound, p.Name, index)
}

// ErrorFor returns the module error a DispatchError::Module carries.
func (r *Runtime) ErrorFor(pallet, index uint8) (*ModuleError, error) {
	p, err := r.PalletByIndex(pallet)
	if err != nil {
		return nil, err
	}
	for _, e := range p.Errors {
		if e.Index == index {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s error %d", ErrErrorNotFound, p.Name, index)
}

// API returns the runtime api method api.method.
func (r *Runtime) API(api, method string) (*RuntimeAPIMethod, error) {
	for _, a := range r.APIs {
		if a.Name != api {
			continue
		}
		for i := range a.Methods {
			if a.Methods[i].Name == method {
				return &a.Methods[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s_%s", ErrAPINotFound, api, method)
}

// HasSignedExtension reports whether the runtime uses the named extension.
func (r *Runtime) HasSignedExtension(identifier string) bool {
	for _, ext := range r.Extrinsic.SignedExtensions {
		if ext.Identifier == identifier {
			return true
		}
	}
	return false
}

func (r *Runtime) index() {
	r.byName = make(map[string]*Pallet, len(r.Pallets))
	r.byIndex = make(map[uint8]*Pallet, len(r.Pallets))
	for _, p := range r.Pallets {
		r.byName[p.Name] = p
		r.byIndex[p.Index] = p
	}
}
