package abi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/types"
)

func tokenABI() *ABI {
	return &ABI{
		EnvMeta: &EnvMeta{Protocol: 22},
		Meta:    map[string]string{"rsver": "1.80", MetaAllowReentry: "true"},
		Functions: []Function{
			{Name: "transfer", Doc: "Moves tokens.", Inputs: []Parameter{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "amount", Type: "i128"},
			}, Error: "TokenError"},
			{Name: "set_point", Inputs: []Parameter{{Name: "p", Type: "Point"}}},
			{Name: "pick", Inputs: []Parameter{{Name: "c", Type: "Choice"}, {Name: "m", Type: "option<Mode>"}}},
			{Name: "balances", Inputs: []Parameter{{Name: "who", Type: "map<address,vec<u64>>"}}, Output: "bytesN<32>"},
		},
		Structs: []Struct{{Name: "Point", Fields: []Parameter{{Name: "x", Type: "i32"}, {Name: "y", Type: "i32"}}}},
		Unions: []Union{{Name: "Choice", Cases: []UnionCase{
			{Name: "None"},
			{Name: "Some", Payload: []string{"u32"}},
		}}},
		Enums:      []Enum{{Name: "Mode", Cases: []EnumCase{{Name: "Fast", Value: 1}, {Name: "Slow", Value: 2}}}},
		ErrorEnums: []Enum{{Name: "TokenError", Cases: []EnumCase{{Name: "Insufficient", Value: 7}}}},
		Events: []Event{{
			Name:         "transfer",
			PrefixTopics: []string{"transfer"},
			Topics:       []Parameter{{Name: "from", Type: "address"}, {Name: "to", Type: "address"}},
			Data:         []Parameter{{Name: "amount", Type: "i128"}},
			DataFormat:   DataSingleValue,
		}},
	}
}

func sections(t *testing.T, a *ABI) []Section {
	t.Helper()
	meta, err := EncodeMeta(a.Meta)
	require.NoError(t, err)
	spec, err := EncodeSpec(a)
	require.NoError(t, err)
	return []Section{
		{Name: SectionEnvMeta, Data: EncodeEnvMeta(*a.EnvMeta)},
		{Name: SectionMeta, Data: meta},
		{Name: SectionSpec, Data: spec},
		{Name: "name", Data: []byte("ignored")},
	}
}

func TestSectionsRoundTrip(t *testing.T) {
	want := tokenABI()
	got, err := Parse(sections(t, want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.AllowsReentry())

	j, err := got.JSON()
	require.NoError(t, err)
	var back ABI
	require.NoError(t, json.Unmarshal(j, &back))
	assert.Equal(t, want.Functions, back.Functions)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]Section{{Name: SectionEnvMeta, Data: []byte{1, 2, 3}}})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule})

	_, err = Parse([]Section{{Name: SectionSpec, Data: []byte{0, 0, 0, 9, 1}}})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule})

	env := EncodeEnvMeta(EnvMeta{Protocol: 1})
	_, err = Parse([]Section{{Name: SectionEnvMeta, Data: env}, {Name: SectionEnvMeta, Data: env}})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule})
}

func TestVerify(t *testing.T) {
	a := tokenABI()
	exports := []string{"transfer", "set_point", "pick", "balances", "__constructor", "_helper"}
	host := EnvMeta{Protocol: 22}
	require.NoError(t, a.Verify(host, exports))

	err := a.Verify(EnvMeta{Protocol: 21}, exports)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeVersionUnsupported})

	err = a.Verify(host, exports[1:])
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule}, "declared but not exported")

	err = a.Verify(host, append(exports, "mint"))
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule}, "exported but not declared")

	bad := tokenABI()
	bad.Functions[0].Inputs[2].Type = "Amount"
	err = bad.Verify(host, exports)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule}, "undefined user type")

	pre := tokenABI()
	pre.EnvMeta = &EnvMeta{Protocol: 22, PreRelease: 3}
	err = pre.Verify(host, exports)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeVersionUnsupported})
	require.NoError(t, pre.Verify(EnvMeta{Protocol: 22, PreRelease: 3}, exports))

	none := &ABI{EnvMeta: &EnvMeta{Protocol: 1}}
	err = none.Verify(host, []string{"anything"})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeInvalidModule}, "exports without a spec")
	require.NoError(t, none.Verify(host, []string{"_start", "__check_auth"}))
	require.NoError(t, none.Verify(host, nil))
	assert.Error(t, (&ABI{}).Verify(host, nil))
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"u32", "vec<address>", "map<symbol,i128>", "option<vec<Point>>", "bytesN<32>", "val", "Point"} {
		typ, err := ParseType(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, typ.String())
	}
	for _, s := range []string{"", "vec", "vec<u32", "map<u32>", "bytesN<0>", "float", "u32 u32"} {
		_, err := ParseType(s)
		assert.Error(t, err, s)
	}
	typ, err := ParseType("map< symbol , u32 >")
	require.NoError(t, err)
	assert.Equal(t, KindMap, typ.Kind)
}

func TestCheckArgs(t *testing.T) {
	a := tokenABI()
	alice := types.AccountAddress(types.Hash{1})
	bob := types.AccountAddress(types.Hash{2})

	require.NoError(t, a.CheckArgs("transfer", []types.ScVal{alice, bob, types.I128{Lo: 5}}))
	err := a.CheckArgs("transfer", []types.ScVal{alice, bob})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeArityMismatch})
	err = a.CheckArgs("transfer", []types.ScVal{alice, bob, types.U32(5)})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeTypeMismatch})

	point := types.Map{
		{Key: types.Symbol("x"), Val: types.I32(1)},
		{Key: types.Symbol("y"), Val: types.I32(-1)},
	}
	require.NoError(t, a.CheckArgs("set_point", []types.ScVal{point}))
	err = a.CheckArgs("set_point", []types.ScVal{point[:1]})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeTypeMismatch})

	require.NoError(t, a.CheckArgs("pick", []types.ScVal{types.Vec{types.Symbol("Some"), types.U32(3)}, types.Void{}}))
	require.NoError(t, a.CheckArgs("pick", []types.ScVal{types.Vec{types.Symbol("None")}, types.U32(2)}))
	err = a.CheckArgs("pick", []types.ScVal{types.Vec{types.Symbol("Some")}, types.Void{}})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeTypeMismatch})
	err = a.CheckArgs("pick", []types.ScVal{types.Vec{types.Symbol("None")}, types.U32(9)})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeTypeMismatch})

	balances := types.Map{{Key: alice, Val: types.Vec{types.U64(1), types.U64(2)}}}
	require.NoError(t, a.CheckArgs("balances", []types.ScVal{balances}))
	err = a.CheckArgs("balances", []types.ScVal{types.Map{{Key: alice, Val: types.Vec{types.U32(1)}}}})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeTypeMismatch})

	require.NoError(t, a.CheckArgs("undeclared", []types.ScVal{types.Void{}}))

	require.NoError(t, a.CheckValue("TokenError", types.ContractError(7)))
	assert.Error(t, a.CheckValue("TokenError", types.ContractError(8)))
	require.NoError(t, a.CheckValue("bytesN<2>", types.Bytes{1, 2}))
	assert.Error(t, a.CheckValue("bytesN<2>", types.Bytes{1}))
}

func TestBindings(t *testing.T) {
	code, err := NewBindingGenerator(tokenABI(), "token").Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "// Code generated"))
	assert.Contains(t, code, "package token")
	assert.Contains(t, code, "// Moves tokens.\nfunc (c *Client) Transfer(from types.Address, to types.Address, amount types.I128) (types.ScVal, error) {")
	assert.Contains(t, code, `types.Symbol("set_point")`)
	assert.Contains(t, code, "func (c *Client) SetPoint(p types.ScVal)")
	assert.Contains(t, code, "func (c *Client) Balances(who types.ScVal)")
}
