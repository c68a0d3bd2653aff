package substrate

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/sign"
)

func TestArgValue_Nested(t *testing.T) {
	t.Parallel()

	base, err := scale.LoadPreset("default")
	require.NoError(t, err)
	b := base.Extend()
	require.NoError(t, b.Add("Payout", &scale.TypeDef{Kind: scale.KindComposite, Fields: []scale.Field{
		{Name: "who", Type: "AccountId"},
		{Name: "share", Type: "u16"},
	}}))
	ids := map[string]scale.TypeID{}
	for _, expr := range []string{
		"(AccountId, u16)",
		"Vec<AccountId>",
		"Option<AccountId>",
		"Vec<MultiAddress>",
		"Vec<Payout>",
	} {
		id, err := b.AddExpr(expr)
		require.NoError(t, err)
		ids[expr] = id
	}
	ids["Payout"] = "Payout"
	ids["MultiAddress"] = "MultiAddress"
	ids["u32"] = "u32"
	reg := b.Publish()

	var who sign.AccountID
	for i := range who {
		who[i] = byte(i + 1)
	}
	addr := who.SS58(42)
	raw := strings.TrimPrefix(hexutil.Encode(who.Bytes()), "0x")

	tcs := []struct {
		name string
		typ  string
		arg  any
		want string
	}{
		{"enum payload", "MultiAddress", map[string]any{"Id": addr}, "00" + raw},
		{"tuple", "(AccountId, u16)", []any{addr, 7}, raw + "0700"},
		{"sequence", "Vec<AccountId>", []any{addr, who}, "08" + raw + raw},
		{"sequence of enums", "Vec<MultiAddress>", []any{addr}, "04" + "00" + raw},
		{"struct by name", "Payout", map[string]any{"who": addr, "share": 3}, raw + "0300"},
		{"struct by position", "Payout", []any{addr, 3}, raw + "0300"},
		{"structs in a sequence", "Vec<Payout>", []any{map[string]any{"share": 1, "who": addr}}, "04" + raw + "0100"},
		{"option", "Option<AccountId>", addr, "01" + raw},
		{"explicit some", "Option<AccountId>", map[string]any{"Some": addr}, "01" + raw},
		{"explicit none", "Option<AccountId>", map[string]any{"None": nil}, "00"},
		{"nil option", "Option<AccountId>", nil, "00"},
		{"plain value", "u32", 5, "05000000"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v, err := argValue(reg, ids[tc.typ], tc.arg)
			require.NoError(t, err)
			enc, err := scale.Encode(v, ids[tc.typ], reg)
			require.NoError(t, err)
			assert.Equal(t, "0x"+tc.want, hexutil.Encode(enc))
		})
	}

	t.Run("not an address", func(t *testing.T) {
		t.Parallel()

		v, err := argValue(reg, ids["Vec<AccountId>"], []any{"alice"})
		require.NoError(t, err)
		_, err = scale.Encode(v, ids["Vec<AccountId>"], reg)
		assert.ErrorIs(t, err, scale.ErrLengthMismatch)
	})
}
