package objects

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
)

func newTable() *Table {
	return NewTable(budget.New(budget.DefaultLimits(), budget.DefaultCostModel(), nil))
}

func errIs(t *testing.T, err error, cat types.ErrorCategory, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.Error{Category: cat, Code: code})
}

func TestHandlesAreDenseAndNeverReused(t *testing.T) {
	tbl := newTable()
	f := tbl.PushFrame()
	for i := 0; i < 3; i++ {
		v, err := tbl.AddBytes([]byte{byte(i)})
		require.NoError(t, err)
		ot, idx, ok := v.AsObject()
		require.True(t, ok)
		assert.Equal(t, types.ObjBytes, ot)
		assert.Equal(t, uint32(i), idx)
	}
	tbl.PopFrame(f)

	tbl.PushFrame()
	v, err := tbl.AddBytes(nil)
	require.NoError(t, err)
	_, idx, _ := v.AsObject()
	assert.Equal(t, uint32(3), idx)
}

func TestStaleAndForeignHandles(t *testing.T) {
	tbl := newTable()
	parent := tbl.PushFrame()
	pv, err := tbl.AddString("parent")
	require.NoError(t, err)

	child := tbl.PushFrame()
	cv, err := tbl.AddString("child")
	require.NoError(t, err)

	_, err = tbl.String(pv)
	errIs(t, err, types.ErrObject, types.CodeInvalidHandle)

	tbl.PopFrame(child)
	_, err = tbl.String(cv)
	errIs(t, err, types.ErrObject, types.CodeStaleHandle)

	s, err := tbl.String(pv)
	require.NoError(t, err)
	assert.Equal(t, "parent", s)

	forged, _ := types.ValFromObject(types.ObjString, 99)
	_, err = tbl.String(forged)
	errIs(t, err, types.ErrObject, types.CodeInvalidHandle)

	_, err = tbl.Bytes(pv)
	errIs(t, err, types.ErrValue, types.CodeInvalidTag)

	tbl.PopFrame(parent)
}

func TestIntegersPreferInlineForm(t *testing.T) {
	tbl := newTable()
	tbl.PushFrame()

	v, err := tbl.U64Val(7)
	require.NoError(t, err)
	assert.True(t, v.Is(types.TagU64Small))

	v, err = tbl.U64Val(math.MaxUint64)
	require.NoError(t, err)
	assert.True(t, v.IsObject())
	u, err := tbl.U64(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u)

	v, err = tbl.I64Val(-5)
	require.NoError(t, err)
	assert.True(t, v.Is(types.TagI64Small))
	i, err := tbl.I64(v)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), i)

	v, err = tbl.I128Val(types.I128{Hi: -1, Lo: math.MaxUint64 - 1})
	require.NoError(t, err)
	assert.True(t, v.Is(types.TagI128Small))
	i128, err := tbl.I128(v)
	require.NoError(t, err)
	assert.Equal(t, types.I128{Hi: -1, Lo: math.MaxUint64 - 1}, i128)

	big := types.NewU256(new(uint256.Int).Lsh(uint256.NewInt(1), 200))
	v, err = tbl.U256Val(big)
	require.NoError(t, err)
	assert.True(t, v.IsObject())

	v, err = tbl.I256Val(types.I256FromInt64(-3))
	require.NoError(t, err)
	assert.True(t, v.Is(types.TagI256Small))
	i256, err := tbl.I256(v)
	require.NoError(t, err)
	assert.Equal(t, types.I256FromInt64(-3), i256)
}

func TestSymbols(t *testing.T) {
	tbl := newTable()
	tbl.PushFrame()

	v, err := tbl.SymbolVal("short")
	require.NoError(t, err)
	assert.True(t, v.Is(types.TagSymbolSmall))

	v, err = tbl.SymbolVal("a_much_longer_symbol")
	require.NoError(t, err)
	assert.True(t, v.IsObject())
	s, err := tbl.Symbol(v)
	require.NoError(t, err)
	assert.Equal(t, "a_much_longer_symbol", s)

	_, err = tbl.SymbolVal("bad symbol")
	errIs(t, err, types.ErrValue, types.CodeInvalidInput)
}

func TestMapSortedAndUnique(t *testing.T) {
	tbl := newTable()
	tbl.PushFrame()

	k := func(s string) types.Val {
		v, err := tbl.SymbolVal(s)
		require.NoError(t, err)
		return v
	}
	m, err := tbl.AddMap([]MapEntry{
		{Key: k("c"), Val: types.ValFromU32(3)},
		{Key: k("a"), Val: types.ValFromU32(1)},
		{Key: k("b"), Val: types.ValFromU32(2)},
	})
	require.NoError(t, err)
	entries, err := tbl.Map(m)
	require.NoError(t, err)
	got := []string{}
	for _, e := range entries {
		s, _ := tbl.Symbol(e.Key)
		got = append(got, s)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	idx, found, err := tbl.MapFind(entries, k("b"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, idx)
	idx, found, err = tbl.MapFind(entries, k("bb"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, idx)

	_, err = tbl.AddMap([]MapEntry{
		{Key: k("a"), Val: types.VoidVal},
		{Key: k("a"), Val: types.TrueVal},
	})
	errIs(t, err, types.ErrObject, types.CodeDuplicateKey)
}

func TestCompareFollowsContent(t *testing.T) {
	tbl := newTable()
	tbl.PushFrame()

	a, err := tbl.AddBytes([]byte("same"))
	require.NoError(t, err)
	b, err := tbl.AddBytes([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	c, err := tbl.Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	small, _ := tbl.U64Val(1)
	large, _ := tbl.U64Val(math.MaxUint64)
	c, err = tbl.Compare(small, large)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	// u32 ranks below u64 regardless of magnitude.
	c, err = tbl.Compare(types.ValFromU32(math.MaxUint32), small)
	require.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestScValRoundTrip(t *testing.T) {
	tbl := newTable()
	tbl.PushFrame()

	var id types.Hash
	id[5] = 5
	in := types.Vec{
		types.U63(9),
		types.I32(-4),
		types.U64(math.MaxUint64),
		types.I128{Hi: 3, Lo: 1},
		types.String("text"),
		types.Symbol("a_longer_symbol_value"),
		types.Map{
			{Key: types.U32(1), Val: types.Bytes{1, 2}},
			{Key: types.U32(2), Val: types.Vec{types.Bool(true)}},
		},
		types.ContractAddress(id),
		types.MuxedAddress{Account: id, ID: 1},
		types.Error{Category: types.ErrContract, Code: 5},
	}
	v, err := tbl.FromScVal(in)
	require.NoError(t, err)
	out, err := tbl.ToScVal(v)
	require.NoError(t, err)
	assert.True(t, codec.Equal(in, out))
}

func TestAddVecRejectsForeignElements(t *testing.T) {
	tbl := newTable()
	f := tbl.PushFrame()
	b, err := tbl.AddBytes([]byte{1})
	require.NoError(t, err)
	tbl.PopFrame(f)

	tbl.PushFrame()
	_, err = tbl.AddVec([]types.Val{b})
	errIs(t, err, types.ErrObject, types.CodeStaleHandle)
}

func TestAllocationCharges(t *testing.T) {
	limits := budget.DefaultLimits()
	limits.CPUInstructions = 1000
	tbl := NewTable(budget.New(limits, budget.DefaultCostModel(), nil))
	tbl.PushFrame()
	_, err := tbl.AddBytes(make([]byte, 4096))
	errIs(t, err, types.ErrBudget, types.CodeBudgetExceeded)
}
