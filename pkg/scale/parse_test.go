package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		id   TypeID
		kind Kind
	}{
		{"u32", "u32", KindPrimitive},
		{"Vec<u8>", "Vec<u8>", KindSequence},
		{"Compact<u64>", "Compact<u64>", KindCompact},
		{"Option<Vec<u32>>", "Option<Vec<u32>>", KindOption},
		{"[u8;32]", "[u8; 32]", KindArray},
		{"(u8,  bool)", "(u8, bool)", KindTuple},
		{"()", "()", KindTuple},
		{"Box<u16>", "u16", KindPrimitive},
		{"BTreeMap<u16, u64>", "Vec<(u16, u64)>", KindSequence},
		{"BTreeSet<u16>", "Vec<u16>", KindSequence},
		{"BoundedVec<u8, T::MaxLen>", "Vec<u8>", KindSequence},
		{"T::Balance", "Balance", KindAlias},
		{"<T as Config>::Balance", "Balance", KindAlias},
		{"Vec<<T as frame_system::Config>::AccountId>", "Vec<AccountId>", KindSequence},
		{"&'static str", "str", KindPrimitive},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			b := NewBuilder()
			require.NoError(t, b.AddAlias("Balance", "u64"))
			id, err := b.AddExpr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)

			def, ok := b.Lookup(id)
			require.True(t, ok)
			assert.Equal(t, tt.kind, def.Kind)
		})
	}
}

func TestAddExpr_Nested(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	id, err := b.AddExpr("Vec<(u16, Compact<u64>)>")
	require.NoError(t, err)
	reg := b.Publish()

	_, def, err := reg.Resolve(id)
	require.NoError(t, err)
	require.Equal(t, KindSequence, def.Kind)
	assert.Equal(t, TypeID("(u16, Compact<u64>)"), def.Elem)

	_, tuple, err := reg.Resolve(def.Elem)
	require.NoError(t, err)
	require.Len(t, tuple.Fields, 2)
	assert.Equal(t, TypeID("Compact<u64>"), tuple.Fields[1].Type)
	assert.True(t, reg.Has("Compact<u64>"))
}

func TestAddExpr_Invalid(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"", "Vec<u8", "[u8; x]", "(u8, bool", "Vec<>", "u8>", "Option<u8, u16>"} {
		b := NewBuilder()
		_, err := b.AddExpr(expr)
		assert.ErrorIs(t, err, ErrInvalidTypeExpr, expr)
	}
}
