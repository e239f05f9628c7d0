package host

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/types"
)

// calls runs host functions in sequence and keeps the first error.
type calls struct {
	ctx context.Context
	h   *Host
	err error
}

func (c *calls) do(module, name string, args ...types.Val) types.Val {
	if c.err != nil {
		return 0
	}
	v, err := c.h.Call(c.ctx, module, name, args...)
	c.err = err
	return v
}

func (c *calls) keep(v types.Val, err error) types.Val {
	if c.err == nil {
		c.err = err
	}
	return v
}

func (c *calls) bytes(b []byte) types.Val { return c.keep(c.h.Objects().AddBytes(b)) }
func (c *calls) str(s string) types.Val   { return c.keep(c.h.Objects().AddString(s)) }
func (c *calls) vec(vs ...types.Val) types.Val {
	return c.keep(c.h.Objects().AddVec(append([]types.Val{}, vs...)))
}

// runBody runs body as the only function of a fresh native contract.
func runBody(t *testing.T, body func(c *calls) types.Val) (types.ScVal, error) {
	t.Helper()
	f := newFixture(t)
	addr := f.native("runBody", NativeFuncs{
		"run": fn(0, func(ctx context.Context, h *Host, _ []types.Val) (types.Val, error) {
			c := &calls{ctx: ctx, h: h}
			v := body(c)
			if c.err != nil {
				return 0, c.err
			}
			return v, nil
		}),
	})
	return f.host().Invoke(ctx, addr, "run", nil)
}

func u32(u uint32) types.Val { return types.ValFromU32(u) }

func u256(c *calls, hiHi, hiLo, loHi, loLo uint64) types.Val {
	return c.do(types.ModuleInt, "obj_from_u256_pieces", types.Val(hiHi), types.Val(hiLo), types.Val(loHi), types.Val(loLo))
}

func i256(c *calls, i int64) types.Val {
	return c.keep(c.h.Objects().I256Val(types.I256FromInt64(i)))
}

func TestU64Objects(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		small := c.do(types.ModuleInt, "obj_from_u64", 5)
		big := c.do(types.ModuleInt, "obj_from_u64", math.MaxUint64)
		back := c.do(types.ModuleInt, "obj_to_u64", big)
		if uint64(back) != math.MaxUint64 {
			return 0
		}
		neg := c.do(types.ModuleInt, "obj_from_i64", types.Val(uint64(1)<<63))
		return c.vec(small, big, neg)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{types.U64(5), types.U64(math.MaxUint64), types.I64(math.MinInt64)}, res)
}

func TestU128Pieces(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		v := c.do(types.ModuleInt, "obj_from_u128_pieces", 1, 2)
		hi := c.do(types.ModuleInt, "obj_to_u128_hi64", v)
		lo := c.do(types.ModuleInt, "obj_to_u128_lo64", v)
		return c.vec(v, u32(uint32(hi)), u32(uint32(lo)))
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{types.U128{Hi: 1, Lo: 2}, types.U32(1), types.U32(2)}, res)
}

func TestU256Arithmetic(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		a := u256(c, 0, 0, 0, 5)
		b := u256(c, 1, 0, 0, 0)
		sum := c.do(types.ModuleInt, "u256_add", a, b)
		prod := c.do(types.ModuleInt, "u256_mul", a, a)
		quo := c.do(types.ModuleInt, "u256_div", sum, b)
		rem := c.do(types.ModuleInt, "u256_rem_euclid", sum, b)
		pow := c.do(types.ModuleInt, "u256_pow", u256(c, 0, 0, 0, 2), u32(255))
		shr := c.do(types.ModuleInt, "u256_shr", pow, u32(254))
		hiHi := c.do(types.ModuleInt, "obj_to_u256_hi_hi", pow)
		return c.vec(sum, prod, quo, rem, shr, c.do(types.ModuleInt, "obj_from_u64", hiHi))
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.NewU256(&uint256.Int{5, 0, 0, 1}),
		types.NewU256(uint256.NewInt(25)),
		types.NewU256(uint256.NewInt(1)),
		types.NewU256(uint256.NewInt(5)),
		types.NewU256(uint256.NewInt(2)),
		types.U64(1 << 63),
	}, res)
}

func TestU256DomainErrors(t *testing.T) {
	const max = math.MaxUint64
	cases := map[string]func(c *calls) types.Val{
		"add overflow": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_add", u256(c, max, max, max, max), u256(c, 0, 0, 0, 1))
		},
		"sub underflow": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_sub", u256(c, 0, 0, 0, 0), u256(c, 0, 0, 0, 1))
		},
		"mul overflow": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_mul", u256(c, 1, 0, 0, 0), u256(c, 1, 0, 0, 0))
		},
		"div by zero": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_div", u256(c, 0, 0, 0, 1), u256(c, 0, 0, 0, 0))
		},
		"rem by zero": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_rem_euclid", u256(c, 0, 0, 0, 1), u256(c, 0, 0, 0, 0))
		},
		"pow overflow": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_pow", u256(c, 0, 0, 0, 2), u32(256))
		},
		"wide shift": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "u256_shl", u256(c, 0, 0, 0, 1), u32(256))
		},
		"i256 overflow": func(c *calls) types.Val {
			min := c.do(types.ModuleInt, "obj_from_i256_pieces", types.Val(uint64(1)<<63), 0, 0, 0)
			return c.do(types.ModuleInt, "i256_mul", min, i256(c, -1))
		},
		"i256 div by zero": func(c *calls) types.Val {
			return c.do(types.ModuleInt, "i256_div", i256(c, 1), i256(c, 0))
		},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runBody(t, body)
			errIs(t, err, types.ErrValue, types.CodeArithDomain)
		})
	}
}

func TestI256Arithmetic(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		return c.vec(
			c.do(types.ModuleInt, "i256_div", i256(c, -5), i256(c, 2)),
			c.do(types.ModuleInt, "i256_rem_euclid", i256(c, -5), i256(c, 2)),
			c.do(types.ModuleInt, "i256_shr", i256(c, -8), u32(1)),
			c.do(types.ModuleInt, "i256_shl", i256(c, -1), u32(4)),
			c.do(types.ModuleInt, "i256_pow", i256(c, -3), u32(3)),
			c.do(types.ModuleInt, "i256_sub", i256(c, 3), i256(c, 10)),
		)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.I256FromInt64(-2),
		types.I256FromInt64(1),
		types.I256FromInt64(-4),
		types.I256FromInt64(-16),
		types.I256FromInt64(-27),
		types.I256FromInt64(-7),
	}, res)
}

func TestU256BigEndianBytes(t *testing.T) {
	be := make([]byte, 32)
	be[0], be[31] = 0x80, 0x01
	res, err := runBody(t, func(c *calls) types.Val {
		v := c.do(types.ModuleInt, "u256_val_from_be_bytes", c.bytes(be))
		return c.vec(v, c.do(types.ModuleInt, "u256_val_to_be_bytes", v))
	})
	require.NoError(t, err)
	want := new(uint256.Int).SetBytes32(be)
	assert.Equal(t, types.Vec{types.NewU256(want), types.Bytes(be)}, res)

	_, err = runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleInt, "i256_val_from_be_bytes", c.bytes([]byte{1}))
	})
	errIs(t, err, types.ErrValue, types.CodeUnexpectedSize)
}

func TestBytesEditing(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		b := c.bytes([]byte{1, 2, 3})
		return c.vec(
			c.do(types.ModuleBuf, "bytes_push", b, u32(4)),
			c.do(types.ModuleBuf, "bytes_put", b, u32(0), u32(9)),
			c.do(types.ModuleBuf, "bytes_del", b, u32(1)),
			c.do(types.ModuleBuf, "bytes_insert", b, u32(3), u32(7)),
			c.do(types.ModuleBuf, "bytes_slice", b, u32(1), u32(3)),
			c.do(types.ModuleBuf, "bytes_append", b, b),
			c.do(types.ModuleBuf, "bytes_pop", b),
			c.do(types.ModuleBuf, "bytes_front", b),
			c.do(types.ModuleBuf, "bytes_back", b),
			c.do(types.ModuleBuf, "bytes_get", b, u32(1)),
			c.do(types.ModuleBuf, "bytes_len", b),
			b,
		)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.Bytes{1, 2, 3, 4},
		types.Bytes{9, 2, 3},
		types.Bytes{1, 3},
		types.Bytes{1, 2, 3, 7},
		types.Bytes{2, 3},
		types.Bytes{1, 2, 3, 1, 2, 3},
		types.Bytes{1, 2},
		types.U32(1),
		types.U32(3),
		types.U32(2),
		types.U32(3),
		types.Bytes{1, 2, 3},
	}, res, "edits return new objects and leave the original intact")
}

func TestBytesBounds(t *testing.T) {
	cases := map[string]struct {
		body func(c *calls) types.Val
		cat  types.ErrorCategory
		code types.ErrorCode
	}{
		"get past end": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_get", c.bytes([]byte{1}), u32(1))
		}, types.ErrObject, types.CodeIndexBounds},
		"pop empty": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_pop", c.do(types.ModuleBuf, "bytes_new"))
		}, types.ErrObject, types.CodeIndexBounds},
		"front empty": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_front", c.do(types.ModuleBuf, "bytes_new"))
		}, types.ErrObject, types.CodeIndexBounds},
		"inverted slice": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_slice", c.bytes([]byte{1, 2}), u32(2), u32(1))
		}, types.ErrObject, types.CodeIndexBounds},
		"not a byte": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_push", c.bytes(nil), u32(256))
		}, types.ErrValue, types.CodeInvalidInput},
		"wrong object": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_len", c.str("s"))
		}, types.ErrValue, types.CodeInvalidTag},
		"no guest memory": {func(c *calls) types.Val {
			return c.do(types.ModuleBuf, "bytes_new_from_linear_memory", u32(0), u32(4))
		}, types.ErrWasmVm, types.CodeMemoryBounds},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runBody(t, tc.body)
			errIs(t, err, tc.cat, tc.code)
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		v := c.vec(u32(1), c.str("s"), sym("k"))
		b := c.do(types.ModuleBuf, "serialize_to_bytes", v)
		back := c.do(types.ModuleBuf, "deserialize_from_bytes", b)
		eq := c.do(types.ModuleContext, "obj_cmp", v, back)
		return c.vec(back, eq)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.Vec{types.U32(1), types.String("s"), types.Symbol("k")},
		types.I32(0),
	}, res)

	_, err = runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleBuf, "deserialize_from_bytes", c.bytes([]byte{0xff, 0xff}))
	})
	require.Error(t, err)
}

func TestStringsAndSymbols(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		long := c.keep(c.h.Objects().SymbolVal("a_symbol_longer_than_nine"))
		return c.vec(
			c.do(types.ModuleBuf, "string_len", c.str("hello")),
			c.do(types.ModuleBuf, "symbol_len", sym("abc")),
			c.do(types.ModuleBuf, "symbol_len", long),
			c.do(types.ModuleBuf, "string_new_from_linear_memory", u32(0), u32(0)),
		)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{types.U32(5), types.U32(3), types.U32(25), types.String("")}, res)
}

func TestVecOperations(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		v := c.vec(u32(1), u32(2), u32(3))
		return c.vec(
			c.do(types.ModuleVec, "vec_put", v, u32(0), u32(9)),
			c.do(types.ModuleVec, "vec_del", v, u32(2)),
			c.do(types.ModuleVec, "vec_push_front", v, u32(0)),
			c.do(types.ModuleVec, "vec_pop_front", v),
			c.do(types.ModuleVec, "vec_pop_back", v),
			c.do(types.ModuleVec, "vec_insert", v, u32(1), u32(7)),
			c.do(types.ModuleVec, "vec_append", v, v),
			c.do(types.ModuleVec, "vec_slice", v, u32(1), u32(1)),
			c.do(types.ModuleVec, "vec_front", v),
			c.do(types.ModuleVec, "vec_back", v),
			c.do(types.ModuleVec, "vec_get", v, u32(1)),
			c.do(types.ModuleVec, "vec_len", v),
			c.do(types.ModuleVec, "vec_first_index_of", v, u32(3)),
			c.do(types.ModuleVec, "vec_first_index_of", v, u32(4)),
		)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.Vec{types.U32(9), types.U32(2), types.U32(3)},
		types.Vec{types.U32(1), types.U32(2)},
		types.Vec{types.U32(0), types.U32(1), types.U32(2), types.U32(3)},
		types.Vec{types.U32(2), types.U32(3)},
		types.Vec{types.U32(1), types.U32(2)},
		types.Vec{types.U32(1), types.U32(7), types.U32(2), types.U32(3)},
		types.Vec{types.U32(1), types.U32(2), types.U32(3), types.U32(1), types.U32(2), types.U32(3)},
		types.Vec{},
		types.U32(1),
		types.U32(3),
		types.U32(2),
		types.U32(3),
		types.U32(2),
		types.Void{},
	}, res)
}

func TestVecBounds(t *testing.T) {
	for name, body := range map[string]func(c *calls) types.Val{
		"get":    func(c *calls) types.Val { return c.do(types.ModuleVec, "vec_get", c.vec(), u32(0)) },
		"put":    func(c *calls) types.Val { return c.do(types.ModuleVec, "vec_put", c.vec(u32(1)), u32(1), u32(0)) },
		"insert": func(c *calls) types.Val { return c.do(types.ModuleVec, "vec_insert", c.vec(), u32(1), u32(0)) },
		"pop":    func(c *calls) types.Val { return c.do(types.ModuleVec, "vec_pop_back", c.vec()) },
		"back":   func(c *calls) types.Val { return c.do(types.ModuleVec, "vec_back", c.vec()) },
		"slice":  func(c *calls) types.Val { return c.do(types.ModuleVec, "vec_slice", c.vec(u32(1)), u32(0), u32(2)) },
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runBody(t, body)
			errIs(t, err, types.ErrObject, types.CodeIndexBounds)
		})
	}
}

func TestMapPutGet(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		m := c.do(types.ModuleMap, "map_new")
		m1 := c.do(types.ModuleMap, "map_put", m, sym("b"), u32(2))
		m2 := c.do(types.ModuleMap, "map_put", m1, sym("a"), u32(1))
		m3 := c.do(types.ModuleMap, "map_put", m2, sym("a"), u32(3))
		return c.vec(
			c.do(types.ModuleMap, "map_get", m3, sym("a")),
			c.do(types.ModuleMap, "map_get", m2, sym("a")),
			c.do(types.ModuleMap, "map_len", m2),
			c.do(types.ModuleMap, "map_len", m3),
			c.do(types.ModuleMap, "map_has", m3, sym("c")),
			c.do(types.ModuleMap, "map_keys", m3),
			c.do(types.ModuleMap, "map_values", m3),
			c.do(types.ModuleMap, "map_key_by_pos", m3, u32(1)),
			c.do(types.ModuleMap, "map_val_by_pos", m3, u32(0)),
			c.do(types.ModuleMap, "map_del", m3, sym("a")),
			m,
		)
	})
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.U32(3),
		types.U32(1),
		types.U32(2),
		types.U32(2),
		types.Bool(false),
		types.Vec{types.Symbol("a"), types.Symbol("b")},
		types.Vec{types.U32(3), types.U32(2)},
		types.Symbol("b"),
		types.U32(3),
		types.Map{{Key: types.Symbol("b"), Val: types.U32(2)}},
		types.Map{},
	}, res)
}

func TestMapMissingKey(t *testing.T) {
	for _, name := range []string{"map_get", "map_del"} {
		_, err := runBody(t, func(c *calls) types.Val {
			m := c.do(types.ModuleMap, "map_put", c.do(types.ModuleMap, "map_new"), sym("a"), u32(1))
			return c.do(types.ModuleMap, name, m, sym("z"))
		})
		errIs(t, err, types.ErrObject, types.CodeMissingKey)
	}
	_, err := runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleMap, "map_key_by_pos", c.do(types.ModuleMap, "map_new"), u32(0))
	})
	errIs(t, err, types.ErrObject, types.CodeIndexBounds)
}

func TestAddressConversions(t *testing.T) {
	contract := types.ContractAddress(types.Hash{1, 2, 3})
	muxed := types.MuxedAddress{Account: types.Hash{4}, ID: 42}
	res, err := runBody(t, func(c *calls) types.Val {
		a := c.keep(c.h.Objects().AddAddress(contract))
		s := c.do(types.ModuleAddress, "address_to_strkey", a)
		back := c.do(types.ModuleAddress, "strkey_to_address", s)
		m := c.keep(c.h.Objects().AddMuxedAddress(muxed))
		return c.vec(
			s, back,
			c.do(types.ModuleAddress, "get_address_from_muxed_address", m),
			c.do(types.ModuleAddress, "get_id_from_muxed_address", m),
			c.do(types.ModuleAddress, "get_address_from_muxed_address", a),
			c.do(types.ModuleAddress, "get_id_from_muxed_address", a),
		)
	})
	require.NoError(t, err)
	sk, err := types.EncodeStrkey(contract)
	require.NoError(t, err)
	assert.Equal(t, types.Vec{
		types.String(sk), contract,
		types.AccountAddress(types.Hash{4}), types.U64(42),
		contract, types.Void{},
	}, res)

	_, err = runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleAddress, "strkey_to_address", c.str("not a strkey"))
	})
	errIs(t, err, types.ErrValue, types.CodeInvalidEncoding)
}

func TestHashes(t *testing.T) {
	res, err := runBody(t, func(c *calls) types.Val {
		return c.vec(
			c.do(types.ModuleCrypto, "compute_hash_sha256", c.bytes([]byte("abc"))),
			c.do(types.ModuleCrypto, "compute_hash_keccak256", c.bytes(nil)),
		)
	})
	require.NoError(t, err)
	sum := sha256.Sum256([]byte("abc"))
	keccak, _ := hex.DecodeString("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	assert.Equal(t, types.Vec{types.Bytes(sum[:]), types.Bytes(keccak)}, res)
}

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	msg := []byte("payload")
	sig := ed25519.Sign(priv, msg)
	verify := func(pk, m, s []byte) error {
		_, err := runBody(t, func(c *calls) types.Val {
			return c.do(types.ModuleCrypto, "verify_sig_ed25519", c.bytes(pk), c.bytes(m), c.bytes(s))
		})
		return err
	}
	require.NoError(t, verify(pub, msg, sig))
	errIs(t, verify(pub, []byte("other"), sig), types.ErrCrypto, types.CodeSignatureInvalid)
	errIs(t, verify(pub[:31], msg, sig), types.ErrCrypto, types.CodeInvalidInput)
	errIs(t, verify(pub, msg, sig[:63]), types.ErrCrypto, types.CodeInvalidInput)
}

func TestRecoverSecp256k1(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("message"))
	compact := secpecdsa.SignCompact(priv, digest[:], false)
	recID := uint32(compact[0] - 27)

	res, err := runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleCrypto, "recover_key_ecdsa_secp256k1", c.bytes(digest[:]), c.bytes(compact[1:]), u32(recID))
	})
	require.NoError(t, err)
	assert.Equal(t, types.Bytes(priv.PubKey().SerializeUncompressed()), res)

	_, err = runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleCrypto, "recover_key_ecdsa_secp256k1", c.bytes(digest[:]), c.bytes(compact[1:]), u32(4))
	})
	errIs(t, err, types.ErrCrypto, types.CodeInvalidInput)

	// The same signature with s replaced by n - s is rejected.
	var s secp256k1.ModNScalar
	s.SetByteSlice(compact[33:])
	s.Negate()
	high := append([]byte{}, compact[1:33]...)
	sb := s.Bytes()
	high = append(high, sb[:]...)
	_, err = runBody(t, func(c *calls) types.Val {
		return c.do(types.ModuleCrypto, "recover_key_ecdsa_secp256k1", c.bytes(digest[:]), c.bytes(high), u32(recID^1))
	})
	errIs(t, err, types.ErrCrypto, types.CodeInvalidInput)
}

func TestVerifySecp256r1(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("message"))
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	if s.Cmp(p256HalfOrder) > 0 {
		s = new(big.Int).Sub(elliptic.P256().Params().N, s)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	pk, err := priv.PublicKey.ECDH()
	require.NoError(t, err)

	verify := func(key, d, sg []byte) error {
		_, err := runBody(t, func(c *calls) types.Val {
			return c.do(types.ModuleCrypto, "verify_sig_ecdsa_secp256r1", c.bytes(key), c.bytes(d), c.bytes(sg))
		})
		return err
	}
	require.NoError(t, verify(pk.Bytes(), digest[:], sig))

	other := sha256.Sum256([]byte("other"))
	errIs(t, verify(pk.Bytes(), other[:], sig), types.ErrCrypto, types.CodeSignatureInvalid)

	offCurve := append([]byte{4}, make([]byte, 64)...)
	errIs(t, verify(offCurve, digest[:], sig), types.ErrCrypto, types.CodeInvalidPoint)

	high := append([]byte{}, sig[:32]...)
	high = append(high, new(big.Int).Sub(elliptic.P256().Params().N, s).FillBytes(make([]byte, 32))...)
	errIs(t, verify(pk.Bytes(), digest[:], high), types.ErrCrypto, types.CodeInvalidInput)
}

func TestPrngRange(t *testing.T) {
	_, err := runBody(t, func(c *calls) types.Val {
		return c.do(types.ModulePrng, "prng_u64_in_inclusive_range", 9, 0)
	})
	errIs(t, err, types.ErrValue, types.CodeInvalidInput)

	_, err = runBody(t, func(c *calls) types.Val {
		return c.do(types.ModulePrng, "prng_reseed", c.bytes([]byte{1, 2}))
	})
	errIs(t, err, types.ErrValue, types.CodeUnexpectedSize)

	res, err := runBody(t, func(c *calls) types.Val {
		seed := c.bytes(make([]byte, 32))
		c.do(types.ModulePrng, "prng_reseed", seed)
		a := c.do(types.ModulePrng, "prng_bytes_new", u32(8))
		c.do(types.ModulePrng, "prng_reseed", seed)
		b := c.do(types.ModulePrng, "prng_bytes_new", u32(8))
		return c.do(types.ModuleContext, "obj_cmp", a, b)
	})
	require.NoError(t, err)
	assert.Equal(t, types.I32(0), res, "reseeding restarts the stream")
}
