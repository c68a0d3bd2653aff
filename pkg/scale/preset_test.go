package scale

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"bittensor", "default"}, PresetNames())

	def, err := LoadPreset("default")
	require.NoError(t, err)
	bt, err := LoadPreset("bittensor")
	require.NoError(t, err)

	_, balance, err := def.Resolve("Balance")
	require.NoError(t, err)
	assert.Equal(t, PrimU128, balance.Primitive)

	_, balance, err = bt.Resolve("BalanceOf")
	require.NoError(t, err)
	assert.Equal(t, PrimU64, balance.Primitive, "bittensor overrides the default balance")

	for _, name := range []TypeID{"NeuronInfo", "NeuronInfoLite", "DelegateInfo", "SubnetInfo", "SubnetHyperparameters", "StakeInfo", "AxonInfo"} {
		_, d, err := bt.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, KindComposite, d.Kind, name)
	}

	_, err = LoadPreset("kusama")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestLoadPreset_EveryReferenceResolves(t *testing.T) {
	t.Parallel()

	for _, name := range PresetNames() {
		reg, err := LoadPreset(name)
		require.NoError(t, err)

		for r := reg; r != nil; r = r.Parent() {
			for id, def := range r.types {
				refs := []TypeID{def.Elem}
				for _, f := range def.Fields {
					refs = append(refs, f.Type)
				}
				for _, v := range def.Variants {
					for _, f := range v.Fields {
						refs = append(refs, f.Type)
					}
				}
				for _, ref := range refs {
					if ref == "" {
						continue
					}
					_, _, err := reg.Resolve(ref)
					assert.NoError(t, err, "%s: %s references %s", name, id, ref)
				}
			}
		}
	}
}

func TestPreset_DecodeNeuronInfoLite(t *testing.T) {
	t.Parallel()

	reg, err := LoadPreset("bittensor")
	require.NoError(t, err)

	hotkey := strings.Repeat("11", 32)
	coldkey := strings.Repeat("22", 32)
	data := mustHex(t, "0x"+hotkey+coldkey+
		"04"+ // uid 1
		"0c"+ // netuid 3
		"01"+ // active
		"0100000000000000"+"02000000"+"00000000000000000000000000000000"+"0000"+"04"+"00"+"00"+"00"+ // axon
		"0000000000000000"+"00000000"+"00000000000000000000000000000000"+"0000"+"04"+ // prometheus
		"04"+coldkey+"0b00407a10f35a"+ // stake 100000000000000
		"00"+"00"+"00"+"00"+"00"+"00"+"00"+ // rank..dividends
		"a10f"+ // last_update 1000
		"00"+ // validator_permit
		"00") // pruning_score

	v, err := DecodeAll(data, "NeuronInfoLite", reg)
	require.NoError(t, err)

	uid, _ := v.Field("uid")
	n, ok := uid.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(1), n)

	stake, _ := v.Field("stake")
	require.Equal(t, 1, stake.Len())
	entry, _ := stake.Index(0)
	amount, _ := entry.Index(1)
	n, ok = amount.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(100000000000000), n)

	lastUpdate, _ := v.Field("last_update")
	n, _ = lastUpdate.Uint64()
	assert.Equal(t, uint64(1000), n)
}

func TestLoadPresetFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"extends": "bittensor",
		"types": {
			"Weights": "Vec<(Compact<u16>, Compact<u16>)>",
			"Mode": {"type": "enum", "value_list": {"Off": 0, "On": 4}},
			"Pair": {"type": "struct", "type_mapping": [["a", "u8"], ["b", "Option<u8>"]]}
		}
	}`), 0o600))

	reg, err := LoadPresetFile(file)
	require.NoError(t, err)

	assert.True(t, reg.Has("NeuronInfo"))

	enc, err := Encode(String("On"), "Mode", reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, enc)

	enc, err = Encode(Composite(Named("a", Uint(1)), Named("b", None())), "Pair", reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, enc)

	_, def, err := reg.Resolve("Weights")
	require.NoError(t, err)
	assert.Equal(t, KindSequence, def.Kind)
}

func TestParsePreset_Unsupported(t *testing.T) {
	t.Parallel()

	p, err := ParsePreset(strings.NewReader("types:\n  Flags:\n    type: set\n    value_type: u8\n"))
	require.NoError(t, err)
	err = p.Apply(NewBuilder())
	assert.ErrorIs(t, err, ErrUnsupportedPreset)

	_, err = ParsePreset(strings.NewReader("types: [1, 2"))
	assert.ErrorIs(t, err, ErrUnsupportedPreset)
}
