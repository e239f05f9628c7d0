package host

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
)

func init() {
	register(types.ModuleInt, map[string]hostFn{
		"obj_from_u64": func(h *Host, c *hostCall) (types.Val, error) { return h.objects.U64Val(c.raw(0)) },
		"obj_to_u64": func(h *Host, c *hostCall) (types.Val, error) {
			u, err := h.objects.U64(c.arg(0))
			return types.Val(u), err
		},
		"obj_from_i64": func(h *Host, c *hostCall) (types.Val, error) { return h.objects.I64Val(int64(c.raw(0))) },
		"obj_to_i64": func(h *Host, c *hostCall) (types.Val, error) {
			i, err := h.objects.I64(c.arg(0))
			return types.Val(uint64(i)), err
		},
		"timepoint_obj_from_u64": func(h *Host, c *hostCall) (types.Val, error) { return h.objects.TimepointVal(c.raw(0)) },
		"timepoint_obj_to_u64": func(h *Host, c *hostCall) (types.Val, error) {
			u, err := h.objects.Timepoint(c.arg(0))
			return types.Val(u), err
		},
		"duration_obj_from_u64": func(h *Host, c *hostCall) (types.Val, error) { return h.objects.DurationVal(c.raw(0)) },
		"duration_obj_to_u64": func(h *Host, c *hostCall) (types.Val, error) {
			u, err := h.objects.Duration(c.arg(0))
			return types.Val(u), err
		},

		"obj_from_u128_pieces": func(h *Host, c *hostCall) (types.Val, error) {
			return h.objects.U128Val(types.U128{Hi: c.raw(0), Lo: c.raw(1)})
		},
		"obj_to_u128_lo64": func(h *Host, c *hostCall) (types.Val, error) {
			u, err := h.objects.U128(c.arg(0))
			return types.Val(u.Lo), err
		},
		"obj_to_u128_hi64": func(h *Host, c *hostCall) (types.Val, error) {
			u, err := h.objects.U128(c.arg(0))
			return types.Val(u.Hi), err
		},
		"obj_from_i128_pieces": func(h *Host, c *hostCall) (types.Val, error) {
			return h.objects.I128Val(types.I128{Hi: int64(c.raw(0)), Lo: c.raw(1)})
		},
		"obj_to_i128_lo64": func(h *Host, c *hostCall) (types.Val, error) {
			i, err := h.objects.I128(c.arg(0))
			return types.Val(i.Lo), err
		},
		"obj_to_i128_hi64": func(h *Host, c *hostCall) (types.Val, error) {
			i, err := h.objects.I128(c.arg(0))
			return types.Val(uint64(i.Hi)), err
		},

		"obj_from_u256_pieces": func(h *Host, c *hostCall) (types.Val, error) {
			return h.objects.U256Val(types.U256(pieces(c)))
		},
		"u256_val_from_be_bytes": func(h *Host, c *hostCall) (types.Val, error) {
			z, err := fromBE(h, c.arg(0))
			if err != nil {
				return 0, err
			}
			return h.objects.U256Val(types.NewU256(z))
		},
		"u256_val_to_be_bytes": func(h *Host, c *hostCall) (types.Val, error) {
			u, err := h.objects.U256(c.arg(0))
			if err != nil {
				return 0, err
			}
			b := u.Int().Bytes32()
			return h.objects.AddBytes(b[:])
		},
		"obj_to_u256_hi_hi": u256Limb(3),
		"obj_to_u256_hi_lo": u256Limb(2),
		"obj_to_u256_lo_hi": u256Limb(1),
		"obj_to_u256_lo_lo": u256Limb(0),

		"obj_from_i256_pieces": func(h *Host, c *hostCall) (types.Val, error) {
			return h.objects.I256Val(types.I256(pieces(c)))
		},
		"i256_val_from_be_bytes": func(h *Host, c *hostCall) (types.Val, error) {
			z, err := fromBE(h, c.arg(0))
			if err != nil {
				return 0, err
			}
			return h.objects.I256Val(types.NewI256(z))
		},
		"i256_val_to_be_bytes": func(h *Host, c *hostCall) (types.Val, error) {
			i, err := h.objects.I256(c.arg(0))
			if err != nil {
				return 0, err
			}
			b := i.Int().Bytes32()
			return h.objects.AddBytes(b[:])
		},
		"obj_to_i256_hi_hi": i256Limb(3),
		"obj_to_i256_hi_lo": i256Limb(2),
		"obj_to_i256_lo_hi": i256Limb(1),
		"obj_to_i256_lo_lo": i256Limb(0),

		"u256_add":        u256Op(u256Add),
		"u256_sub":        u256Op(u256Sub),
		"u256_mul":        u256Op(u256Mul),
		"u256_div":        u256Op(u256Div),
		"u256_rem_euclid": u256Op(u256Rem),
		"u256_pow":        u256Shift(u256Pow),
		"u256_shl":        u256Shift(u256Shl),
		"u256_shr":        u256Shift(u256Shr),
		"i256_add":        i256Op(false, func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }),
		"i256_sub":        i256Op(false, func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }),
		"i256_mul":        i256Op(false, func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) }),
		"i256_div":        i256Op(true, func(a, b *big.Int) *big.Int { return new(big.Int).Quo(a, b) }),
		"i256_rem_euclid": i256Op(true, func(a, b *big.Int) *big.Int { return new(big.Int).Mod(a, b) }),
		"i256_pow":        i256Pow,
		"i256_shl":        i256Shl,
		"i256_shr":        i256Shr,
	})
}

func arithDomain(format string, args ...any) error {
	return types.Errorf(types.ErrValue, types.CodeArithDomain, format, args...)
}

// pieces assembles four 64-bit limbs given most significant first.
func pieces(c *hostCall) uint256.Int {
	return uint256.Int{c.raw(3), c.raw(2), c.raw(1), c.raw(0)}
}

func fromBE(h *Host, v types.Val) (*uint256.Int, error) {
	b, err := h.objects.Bytes(v)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, types.Errorf(types.ErrValue, types.CodeUnexpectedSize, "256-bit integers take 32 bytes, got %d", len(b))
	}
	return new(uint256.Int).SetBytes32(b), nil
}

func u256Limb(i int) hostFn {
	return func(h *Host, c *hostCall) (types.Val, error) {
		u, err := h.objects.U256(c.arg(0))
		if err != nil {
			return 0, err
		}
		return types.Val(u.Int()[i]), nil
	}
}

func i256Limb(i int) hostFn {
	return func(h *Host, c *hostCall) (types.Val, error) {
		v, err := h.objects.I256(c.arg(0))
		if err != nil {
			return 0, err
		}
		return types.Val(v.Int()[i]), nil
	}
}

func u256Op(op func(a, b *uint256.Int) (*uint256.Int, error)) hostFn {
	return func(h *Host, c *hostCall) (types.Val, error) {
		if err := h.budget.Charge(budget.BigIntArith, 32); err != nil {
			return 0, err
		}
		a, err := h.objects.U256(c.arg(0))
		if err != nil {
			return 0, err
		}
		b, err := h.objects.U256(c.arg(1))
		if err != nil {
			return 0, err
		}
		z, err := op(a.Int(), b.Int())
		if err != nil {
			return 0, err
		}
		return h.objects.U256Val(types.NewU256(z))
	}
}

func u256Shift(op func(a *uint256.Int, n uint32) (*uint256.Int, error)) hostFn {
	return func(h *Host, c *hostCall) (types.Val, error) {
		n, err := u32Arg(c.arg(1))
		if err != nil {
			return 0, err
		}
		if err := h.budget.Charge(budget.BigIntArith, 32); err != nil {
			return 0, err
		}
		a, err := h.objects.U256(c.arg(0))
		if err != nil {
			return 0, err
		}
		z, err := op(a.Int(), n)
		if err != nil {
			return 0, err
		}
		return h.objects.U256Val(types.NewU256(z))
	}
}

func u256Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, arithDomain("u256 addition overflows")
	}
	return z, nil
}

func u256Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, arithDomain("u256 subtraction underflows")
	}
	return z, nil
}

func u256Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, arithDomain("u256 multiplication overflows")
	}
	return z, nil
}

func u256Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, arithDomain("u256 division by zero")
	}
	return new(uint256.Int).Div(a, b), nil
}

func u256Rem(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, arithDomain("u256 remainder by zero")
	}
	return new(uint256.Int).Mod(a, b), nil
}

func u256Pow(a *uint256.Int, exp uint32) (*uint256.Int, error) {
	result := uint256.NewInt(1)
	base := new(uint256.Int).Set(a)
	var overflow bool
	for exp > 0 {
		if exp&1 == 1 {
			if result, overflow = new(uint256.Int).MulOverflow(result, base); overflow {
				return nil, arithDomain("u256 power overflows")
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, overflow = new(uint256.Int).MulOverflow(base, base); overflow {
				return nil, arithDomain("u256 power overflows")
			}
		}
	}
	return result, nil
}

func u256Shl(a *uint256.Int, n uint32) (*uint256.Int, error) {
	if n >= 256 {
		return nil, arithDomain("shift by %d bits", n)
	}
	return new(uint256.Int).Lsh(a, uint(n)), nil
}

func u256Shr(a *uint256.Int, n uint32) (*uint256.Int, error) {
	if n >= 256 {
		return nil, arithDomain("shift by %d bits", n)
	}
	return new(uint256.Int).Rsh(a, uint(n)), nil
}

var (
	i256Min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	i256Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
)

func i256InRange(b *big.Int) bool {
	return b.Cmp(i256Min) >= 0 && b.Cmp(i256Max) <= 0
}

func i256FromBig(b *big.Int) (types.I256, error) {
	if !i256InRange(b) {
		return types.I256{}, arithDomain("result outside the i256 range")
	}
	if b.Sign() >= 0 {
		u, _ := uint256.FromBig(b)
		return types.NewI256(u), nil
	}
	u, _ := uint256.FromBig(new(big.Int).Neg(b))
	return types.NewI256(new(uint256.Int).Neg(u)), nil
}

// i256Op evaluates signed arithmetic exactly and rejects results that do not
// fit. Division and remainder by zero are rejected before op runs.
func i256Op(divides bool, op func(a, b *big.Int) *big.Int) hostFn {
	return func(h *Host, c *hostCall) (types.Val, error) {
		if err := h.budget.Charge(budget.BigIntArith, 32); err != nil {
			return 0, err
		}
		a, err := h.objects.I256(c.arg(0))
		if err != nil {
			return 0, err
		}
		b, err := h.objects.I256(c.arg(1))
		if err != nil {
			return 0, err
		}
		bb := b.Big()
		if divides && bb.Sign() == 0 {
			return 0, arithDomain("i256 division by zero")
		}
		z, err := i256FromBig(op(a.Big(), bb))
		if err != nil {
			return 0, err
		}
		return h.objects.I256Val(z)
	}
}

func i256Pow(h *Host, c *hostCall) (types.Val, error) {
	exp, err := u32Arg(c.arg(1))
	if err != nil {
		return 0, err
	}
	if err := h.budget.Charge(budget.BigIntArith, 32); err != nil {
		return 0, err
	}
	a, err := h.objects.I256(c.arg(0))
	if err != nil {
		return 0, err
	}
	result := big.NewInt(1)
	base := a.Big()
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, base)
			if !i256InRange(result) {
				return 0, arithDomain("i256 power overflows")
			}
		}
		exp >>= 1
		if exp > 0 {
			base = new(big.Int).Mul(base, base)
			if !i256InRange(base) {
				return 0, arithDomain("i256 power overflows")
			}
		}
	}
	z, err := i256FromBig(result)
	if err != nil {
		return 0, err
	}
	return h.objects.I256Val(z)
}

func i256Shl(h *Host, c *hostCall) (types.Val, error) {
	return i256Shift(h, c, func(a *uint256.Int, n uint) *uint256.Int { return new(uint256.Int).Lsh(a, n) })
}

// i256Shr is an arithmetic shift: the sign bit is replicated.
func i256Shr(h *Host, c *hostCall) (types.Val, error) {
	return i256Shift(h, c, func(a *uint256.Int, n uint) *uint256.Int { return new(uint256.Int).SRsh(a, n) })
}

func i256Shift(h *Host, c *hostCall, op func(a *uint256.Int, n uint) *uint256.Int) (types.Val, error) {
	n, err := u32Arg(c.arg(1))
	if err != nil {
		return 0, err
	}
	if n >= 256 {
		return 0, arithDomain("shift by %d bits", n)
	}
	if err := h.budget.Charge(budget.BigIntArith, 32); err != nil {
		return 0, err
	}
	a, err := h.objects.I256(c.arg(0))
	if err != nil {
		return 0, err
	}
	return h.objects.I256Val(types.NewI256(op(a.Int(), uint(n))))
}
