package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/govm-net/vmhost/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleValues() []types.ScVal {
	var h1, h2 types.Hash
	h1[0] = 1
	h2[31] = 9
	return []types.ScVal{
		types.Bool(false),
		types.Bool(true),
		types.Void{},
		types.Error{Category: types.ErrContract, Code: 7},
		types.Error{Category: types.ErrAuth, Code: types.CodeNonceReplay},
		types.U63(0),
		types.U63(types.MaxSmallPositive),
		types.U32(0),
		types.U32(math.MaxUint32),
		types.I32(math.MinInt32),
		types.I32(-1),
		types.I32(0),
		types.I32(math.MaxInt32),
		types.U64(42),
		types.I64(math.MinInt64),
		types.I64(-5),
		types.I64(5),
		types.Timepoint(1700000000),
		types.Duration(60),
		types.U128{Hi: 0, Lo: 1},
		types.U128{Hi: 1, Lo: 0},
		types.I128{Hi: -1, Lo: math.MaxUint64},
		types.I128{Hi: 0, Lo: 0},
		types.NewU256(uint256.NewInt(3)),
		types.NewU256(new(uint256.Int).Lsh(uint256.NewInt(1), 255)),
		types.I256FromInt64(-2),
		types.I256FromInt64(-1),
		types.I256FromInt64(0),
		types.I256FromInt64(2),
		types.Bytes{},
		types.Bytes{0},
		types.Bytes{0, 0},
		types.Bytes{0, 1},
		types.Bytes{1},
		types.String(""),
		types.String("a"),
		types.String("a\x00b"),
		types.String("ab"),
		types.Symbol("a"),
		types.Symbol("balance"),
		types.Symbol("long_symbol_name_1"),
		types.Vec{},
		types.Vec{types.U32(1)},
		types.Vec{types.U32(1), types.Bytes{0}},
		types.Vec{types.U32(1), types.Bytes{0, 0}},
		types.Vec{types.U32(2)},
		types.Map{},
		types.Map{{Key: types.Symbol("a"), Val: types.U32(1)}},
		types.Map{{Key: types.Symbol("a"), Val: types.U32(1)}, {Key: types.Symbol("b"), Val: types.Void{}}},
		types.AccountAddress(h2),
		types.AccountAddress(h1),
		types.ContractAddress(h1),
		types.MuxedAddress{Account: h1, ID: 3},
		types.ContractExecutable{Kind: types.ExecutableWasm, Hash: h2},
		types.ContractExecutable{Kind: types.ExecutableNative, Hash: h1},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, v := range sampleValues() {
		b, err := Serialize(v)
		require.NoError(t, err, "serialize %#v", v)
		got, err := Deserialize(b)
		require.NoError(t, err, "deserialize %#v", v)
		assert.Equal(t, 0, Compare(v, got), "round trip of %#v gave %#v", v, got)

		again, err := Serialize(got)
		require.NoError(t, err)
		assert.Equal(t, b, again)
	}
}

func TestOrderMatchesEncoding(t *testing.T) {
	vals := sampleValues()
	for _, a := range vals {
		ea := MustSerialize(a)
		for _, b := range vals {
			eb := MustSerialize(b)
			assert.Equal(t, bytes.Compare(ea, eb), Compare(a, b), "%#v vs %#v", a, b)
		}
	}
}

func TestSampleValuesAscending(t *testing.T) {
	vals := sampleValues()
	for i := 1; i < len(vals); i++ {
		assert.Equal(t, -1, Compare(vals[i-1], vals[i]), "%#v should sort before %#v", vals[i-1], vals[i])
	}
}

func TestDeserializeRejectsNonCanonical(t *testing.T) {
	boolTrue := MustSerialize(types.Bool(true))
	vec := MustSerialize(types.Vec{types.U32(1)})
	sym := MustSerialize(types.Symbol("ok"))

	cases := map[string][]byte{
		"empty":          {},
		"zero type byte": {0x00},
		"unknown type":   {0xf0},
		"bad bool":       {boolTrue[0], 2},
		"trailing bytes": append(append([]byte{}, boolTrue...), 0),
		"truncated u32":  {typeByte(types.ScvU32), 0, 0},
		"unterminated":   vec[:len(vec)-1],
		"bad symbol":     append([]byte{sym[0]}, '-', 0),
		"u63 overflow":   {typeByte(types.ScvU63), 0x80, 0, 0, 0, 0, 0, 0, 0},
		"address kind":   append([]byte{typeByte(types.ScvAddress), 7}, make([]byte, 32)...),
		"error category": {typeByte(types.ScvError), 0, 0, 0, 99, 0, 0, 0, 0},
	}

	// Map with descending keys.
	k1 := MustSerialize(types.U32(2))
	k2 := MustSerialize(types.U32(1))
	v := MustSerialize(types.Void{})
	bad := []byte{typeByte(types.ScvMap)}
	bad = append(bad, k1...)
	bad = append(bad, v...)
	bad = append(bad, k2...)
	bad = append(bad, v...)
	cases["unsorted map"] = append(bad, terminator)

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize(b)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.Error{Category: types.ErrValue, Code: types.CodeInvalidEncoding})
		})
	}
}

func TestDepthLimit(t *testing.T) {
	var v types.ScVal = types.Void{}
	for i := 0; i < MaxDepth; i++ {
		v = types.Vec{v}
	}
	_, err := Serialize(v)
	require.NoError(t, err)

	_, err = Serialize(types.Vec{v})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrValue, Code: types.CodeExceededLimit})
}

func TestSerializeRejectsUnsortedMap(t *testing.T) {
	m := types.Map{
		{Key: types.Symbol("b"), Val: types.Void{}},
		{Key: types.Symbol("a"), Val: types.Void{}},
	}
	_, err := Serialize(m)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrObject, Code: types.CodeDuplicateKey})

	assert.True(t, SortMap(m))
	_, err = Serialize(m)
	assert.NoError(t, err)

	dup := types.Map{
		{Key: types.U32(1), Val: types.Void{}},
		{Key: types.U32(1), Val: types.Bool(true)},
	}
	assert.False(t, SortMap(dup))
}

func TestEscapedBytes(t *testing.T) {
	b := MustSerialize(types.Bytes{0, 'x'})
	assert.Equal(t, []byte{typeByte(types.ScvBytes), 0x00, 0xff, 'x', 0x00}, b)
}
