package scale

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Preset is a static type registry in the scalecodec layout:
//
//	extends: default
//	types:
//	  Balance: u64
//	  AxonInfo:
//	    type: struct
//	    type_mapping:
//	      - [block, u64]
//	  Pays:
//	    type: enum
//	    value_list: [Yes, No]
//
// JSON presets parse as well since JSON is a subset of YAML.
type Preset struct {
	Extends string              `yaml:"extends"`
	Types   map[string]typeSpec `yaml:"types"`
}

type typeSpec struct {
	Alias       string
	Type        string     `yaml:"type"`
	TypeMapping [][]string `yaml:"type_mapping"`
	ValueList   yaml.Node  `yaml:"value_list"`
}

func (t *typeSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Alias = node.Value
		return nil
	}
	type plain typeSpec
	return node.Decode((*plain)(t))
}

// ParsePreset reads a preset document.
func ParsePreset(r io.Reader) (*Preset, error) {
	var p Preset
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedPreset, err)
	}
	return &p, nil
}

// PresetNames lists the embedded presets.
func PresetNames() []string {
	entries, _ := presetFS.ReadDir("presets")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// LoadPreset builds a registry from an embedded preset and the presets it
// extends.
func LoadPreset(name string) (*Registry, error) {
	return loadPreset(name, nil)
}

// LoadPresetFile builds a registry from a preset file on disk. Its extends
// key may name an embedded preset.
func LoadPresetFile(file string) (*Registry, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParsePreset(f)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", file, err)
	}
	return p.build(nil)
}

func loadPreset(name string, seen []string) (*Registry, error) {
	for _, s := range seen {
		if s == name {
			return nil, fmt.Errorf("%w: preset %q extends itself", ErrUnsupportedPreset, name)
		}
	}
	f, err := presetFS.Open("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	defer f.Close()

	p, err := ParsePreset(f)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	reg, err := p.build(append(seen, name))
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return reg, nil
}

func (p *Preset) build(seen []string) (*Registry, error) {
	base := Base()
	if p.Extends != "" {
		var err error
		if base, err = loadPreset(p.Extends, seen); err != nil {
			return nil, err
		}
	}
	b := base.Extend()
	if err := p.Apply(b); err != nil {
		return nil, err
	}
	return b.Publish(), nil
}

// Apply registers the preset's types in b. The extends key is ignored; the
// caller chooses the builder's parent.
func (p *Preset) Apply(b *Builder) error {
	names := make([]string, 0, len(p.Types))
	for name := range p.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := p.Types[name]
		if err := spec.register(b, TypeID(name)); err != nil {
			return fmt.Errorf("type %s: %w", name, err)
		}
	}
	return nil
}

func (t *typeSpec) register(b *Builder, name TypeID) error {
	switch {
	case t.Alias != "":
		target, err := b.AddExpr(t.Alias)
		if err != nil {
			return err
		}
		if target == name {
			return nil
		}
		return b.AddAlias(name, target)
	case t.Type == "struct":
		fields := make([]Field, 0, len(t.TypeMapping))
		for _, m := range t.TypeMapping {
			if len(m) != 2 {
				return fmt.Errorf("%w: struct field %v", ErrUnsupportedPreset, m)
			}
			id, err := b.AddExpr(m[1])
			if err != nil {
				return err
			}
			fields = append(fields, Field{Name: m[0], Type: id, TypeName: m[1]})
		}
		return b.Add(name, &TypeDef{Kind: KindComposite, Path: []string{string(name)}, Fields: fields})
	case t.Type == "enum":
		variants, err := t.variants(b)
		if err != nil {
			return err
		}
		return b.Add(name, &TypeDef{Kind: KindVariant, Path: []string{string(name)}, Variants: variants})
	case t.Type == "":
		return fmt.Errorf("%w: empty definition", ErrUnsupportedPreset)
	default:
		// Plain strings are expressions; the type key of a mapping only
		// names structural forms.
		return fmt.Errorf("%w: type %q", ErrUnsupportedPreset, t.Type)
	}
}

func (t *typeSpec) variants(b *Builder) ([]Variant, error) {
	switch {
	case len(t.TypeMapping) > 0:
		if len(t.TypeMapping) > 256 {
			return nil, fmt.Errorf("%w: more than 256 variants", ErrUnsupportedPreset)
		}
		variants := make([]Variant, 0, len(t.TypeMapping))
		for i, m := range t.TypeMapping {
			if len(m) != 2 {
				return nil, fmt.Errorf("%w: enum variant %v", ErrUnsupportedPreset, m)
			}
			v := Variant{Name: m[0], Index: uint8(i)}
			id, err := b.AddExpr(m[1])
			if err != nil {
				return nil, err
			}
			if _, def, err := resolveBuilder(b, id); err != nil || !isUnit(def) {
				v.Fields = []Field{{Type: id, TypeName: m[1]}}
			}
			variants = append(variants, v)
		}
		return variants, nil
	case t.ValueList.Kind == yaml.SequenceNode:
		var names []string
		if err := t.ValueList.Decode(&names); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedPreset, err)
		}
		if len(names) > 256 {
			return nil, fmt.Errorf("%w: more than 256 variants", ErrUnsupportedPreset)
		}
		variants := make([]Variant, len(names))
		for i, n := range names {
			variants[i] = Variant{Name: n, Index: uint8(i)}
		}
		return variants, nil
	case t.ValueList.Kind == yaml.MappingNode:
		var indexed map[string]uint8
		if err := t.ValueList.Decode(&indexed); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedPreset, err)
		}
		variants := make([]Variant, 0, len(indexed))
		for n, i := range indexed {
			variants = append(variants, Variant{Name: n, Index: i})
		}
		sort.Slice(variants, func(i, j int) bool { return variants[i].Index < variants[j].Index })
		return variants, nil
	}
	return nil, fmt.Errorf("%w: enum without variants", ErrUnsupportedPreset)
}

// resolveBuilder follows aliases through a builder that is not yet
// published.
func resolveBuilder(b *Builder, id TypeID) (TypeID, *TypeDef, error) {
	for range maxAliasDepth {
		def, ok := b.Lookup(id)
		if !ok {
			return id, nil, &UnknownTypeError{TypeID: id}
		}
		if def.Kind != KindAlias {
			return id, def, nil
		}
		id = def.Elem
	}
	return id, nil, fmt.Errorf("%w at %q", ErrAliasCycle, string(id))
}

func isUnit(def *TypeDef) bool {
	return def != nil && (def.Kind == KindTuple || def.Kind == KindComposite) && len(def.Fields) == 0
}
