package scale

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Accessors(t *testing.T) {
	t.Parallel()

	v := Composite(
		Named("free", Uint(10)),
		Named("owner", Bytes([]byte{0xde, 0xad})),
		Named("memo", Some(String("hi"))),
		Named("votes", Sequence(Uint(1), Uint(2))),
	)

	free, ok := v.Field("free")
	require.True(t, ok)
	n, ok := free.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(10), n)

	owner, _ := v.Field("owner")
	b, ok := owner.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad}, b)

	memo, _ := v.Field("memo")
	assert.False(t, memo.IsNone())
	s, ok := memo.Unwrap().Str()
	require.True(t, ok)
	assert.Equal(t, "hi", s)

	votes, _ := v.Field("votes")
	assert.Equal(t, 2, votes.Len())
	second, ok := votes.Index(1)
	require.True(t, ok)
	assert.True(t, second.Equal(Int(2)))

	_, ok = v.Field("missing")
	assert.False(t, ok)
	_, ok = votes.Index(5)
	assert.False(t, ok)
}

func TestValue_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, Uint(5).Equal(Int(5)))
	assert.True(t, BigInt(big.NewInt(5)).Equal(Uint(5)))
	assert.False(t, Uint(5).Equal(Int(-5)))
	assert.False(t, String("a").Equal(Bytes([]byte("a"))))
	assert.True(t, None().Equal(None()))
	assert.False(t, None().Equal(Some(Uint(0))))
	assert.False(t, Composite(Named("a", Uint(1))).Equal(Composite(Named("b", Uint(1)))))
}

func TestValue_Interface(t *testing.T) {
	t.Parallel()

	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	v := Composite(
		Named("id", VariantTuple("Id", Bytes([]byte{1, 2}))),
		Named("class", VariantValue("Normal")),
		Named("amount", BigInt(huge)),
		Named("pair", Tuple(Bool(true), Int(-3))),
	)

	assert.Equal(t, map[string]any{
		"id":     map[string]any{"Id": "0x0102"},
		"class":  "Normal",
		"amount": huge.String(),
		"pair":   []any{true, int64(-3)},
	}, v.Interface())
}

func TestFromInterface(t *testing.T) {
	t.Parallel()

	v, err := FromInterface(map[string]any{
		"dest":  map[string]any{"Id": "0x" + "00"},
		"value": float64(12),
		"list":  []any{1, "two"},
	})
	require.NoError(t, err)

	value, ok := v.Field("value")
	require.True(t, ok)
	assert.True(t, value.Equal(Uint(12)))

	list, _ := v.Field("list")
	assert.Equal(t, 2, list.Len())

	_, err = FromInterface(1.5)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = FromInterface(math.NaN())
	assert.ErrorIs(t, err, ErrShapeMismatch)

	exact, err := FromInterface(float64(1 << 53))
	require.NoError(t, err)
	assert.True(t, exact.Equal(Uint(1<<53)))
	for _, f := range []float64{1 << 60, -(1 << 60), math.Inf(1)} {
		_, err = FromInterface(f)
		assert.ErrorIs(t, err, ErrOutOfRange, "%v", f)
	}
	_, err = FromInterface(struct{}{})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
