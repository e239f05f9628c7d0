package types

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallPositive(t *testing.T) {
	v, ok := ValFromSmallPositive(12345)
	require.True(t, ok)
	assert.True(t, v.IsSmallPositive())
	got, ok := v.AsSmallPositive()
	require.True(t, ok)
	assert.Equal(t, uint64(12345), got)

	v, ok = ValFromSmallPositive(MaxSmallPositive)
	require.True(t, ok)
	got, _ = v.AsSmallPositive()
	assert.Equal(t, MaxSmallPositive, got)

	_, ok = ValFromSmallPositive(MaxSmallPositive + 1)
	assert.False(t, ok)
}

func TestTaggedScalars(t *testing.T) {
	assert.Equal(t, TagVoid, VoidVal.Tag())
	assert.NoError(t, VoidVal.Check())

	b, ok := TrueVal.AsBool()
	require.True(t, ok)
	assert.True(t, b)
	b, ok = ValFromBool(false).AsBool()
	require.True(t, ok)
	assert.False(t, b)

	u, ok := ValFromU32(math.MaxUint32).AsU32()
	require.True(t, ok)
	assert.Equal(t, uint32(math.MaxUint32), u)

	i, ok := ValFromI32(math.MinInt32).AsI32()
	require.True(t, ok)
	assert.Equal(t, int32(math.MinInt32), i)

	_, ok = ValFromU32(1).AsI32()
	assert.False(t, ok, "u32 must not read as i32")
}

func TestSmallIntegers(t *testing.T) {
	v, ok := SmallUnsigned(TagU64Small, MaxSmallU64)
	require.True(t, ok)
	assert.Equal(t, MaxSmallU64, v.SmallUnsignedBody())
	_, ok = SmallUnsigned(TagU64Small, MaxSmallU64+1)
	assert.False(t, ok)

	for _, n := range []int64{0, 1, -1, MinSmallI64, MaxSmallI64, -123456789} {
		v, ok := SmallSigned(TagI64Small, n)
		require.True(t, ok, "%d", n)
		assert.Equal(t, n, v.SmallSignedBody(), "%d", n)
		assert.True(t, v.Is(TagI64Small))
	}
	_, ok = SmallSigned(TagI64Small, MaxSmallI64+1)
	assert.False(t, ok)
	_, ok = SmallSigned(TagI64Small, MinSmallI64-1)
	assert.False(t, ok)
}

func TestErrorVal(t *testing.T) {
	e := Error{Category: ErrStorage, Code: CodeMissingValue}
	v := ValFromError(e)
	require.NoError(t, v.Check())
	got, ok := v.AsError()
	require.True(t, ok)
	assert.Equal(t, e, got)
	assert.Equal(t, "Error(Storage, MissingValue)", got.String())

	c := ContractError(42)
	got, _ = ValFromError(c).AsError()
	assert.Equal(t, "Error(Contract, #42)", got.String())
}

func TestObjectHandle(t *testing.T) {
	v, ok := ValFromObject(ObjVec, 77)
	require.True(t, ok)
	assert.True(t, v.IsObject())
	ot, idx, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, ObjVec, ot)
	assert.Equal(t, uint32(77), idx)

	_, ok = ValFromObject(ObjBytes, MaxObjectIndex+1)
	assert.False(t, ok)
	_, ok = ValFromObject(ObjectType(ObjectTypeCount), 0)
	assert.False(t, ok)
}

func TestCheckRejectsMalformed(t *testing.T) {
	cases := []Val{
		fromBody(TagVoid, 1),
		fromBody(TagBool, 2),
		fromBody(TagU32, 1<<32),
		fromBody(TagError, uint64(errorCategoryCount)<<32),
		fromBody(Tag(100), 0),
		fromBody(TagObject, uint64(ObjectTypeCount)<<ObjectIndexBits),
	}
	for _, v := range cases {
		err := v.Check()
		require.Error(t, err, "%#x", uint64(v))
		assert.ErrorIs(t, err, Error{Category: ErrValue, Code: CodeInvalidTag})
	}
}

func TestSmallSymbol(t *testing.T) {
	for _, s := range []string{"", "a", "Z9_", "transfer", "abcdefghi"} {
		v, ok := SmallSymbol(s)
		require.True(t, ok, s)
		require.NoError(t, v.Check())
		got, ok := v.AsSmallSymbol()
		require.True(t, ok)
		assert.Equal(t, s, got)
	}

	_, ok := SmallSymbol("abcdefghij")
	assert.False(t, ok, "ten characters do not fit")
	_, ok = SmallSymbol("a-b")
	assert.False(t, ok)

	assert.NoError(t, ValidateSymbol("a_long_symbol_that_is_still_ok"))
	assert.Error(t, ValidateSymbol("this_symbol_is_longer_than_32_chars"))
	assert.Error(t, ValidateSymbol("sp ace"))
}

func TestSmallSymbolRejectsEmptySlot(t *testing.T) {
	// 'a' followed by a zero slot then 'b'.
	body := uint64(38)<<12 | uint64(39)
	err := fromBody(TagSymbolSmall, body).Check()
	assert.Error(t, err)
}

func TestHostErrorMatching(t *testing.T) {
	err := fmt.Errorf("outer: %w", Errorf(ErrAuth, CodeNonceReplay, "nonce %d", 1))
	assert.ErrorIs(t, err, Error{Category: ErrAuth, Code: CodeNonceReplay})
	assert.NotErrorIs(t, err, Error{Category: ErrAuth, Code: CodeInvalidAction})

	he := AsHostError(err)
	assert.Equal(t, ErrAuth, he.Err.Category)

	internal := AsHostError(errors.New("boom"))
	assert.Equal(t, Error{Category: ErrContext, Code: CodeInternal}, internal.Err)
	assert.False(t, IsRecoverable(internal))
	assert.False(t, IsRecoverable(Errorf(ErrBudget, CodeBudgetExceeded, "cpu")))
	assert.True(t, IsRecoverable(Errorf(ErrContract, CodeInternal, "contract code 0")))
	assert.True(t, IsRecoverable(Errorf(ErrStorage, CodeMissingValue, "")))
}

func TestStrkey(t *testing.T) {
	var id Hash
	for i := range id {
		id[i] = byte(i)
	}
	for _, a := range []Address{AccountAddress(id), ContractAddress(id)} {
		s, err := EncodeStrkey(a)
		require.NoError(t, err)
		got, err := DecodeStrkey(s)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	m := MuxedAddress{Account: id, ID: 99}
	got, err := DecodeMuxedStrkey(EncodeMuxedStrkey(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = DecodeStrkey("not-a-key")
	assert.ErrorIs(t, err, Error{Category: ErrValue, Code: CodeInvalidEncoding})

	_, err = AccountAddress(id).ContractID()
	assert.ErrorIs(t, err, ErrNotContract)
}

func TestDurabilityFromVal(t *testing.T) {
	d, err := DurabilityFromVal(ValFromU32(1))
	require.NoError(t, err)
	assert.Equal(t, Persistent, d)

	_, err = DurabilityFromVal(ValFromU32(5))
	assert.Error(t, err)
	_, err = DurabilityFromVal(TrueVal)
	assert.Error(t, err)
}
