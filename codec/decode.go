package codec

import (
	"encoding/binary"

	"github.com/govm-net/vmhost/types"

	"github.com/holiman/uint256"
)

// Deserialize parses the canonical encoding of exactly one value.
func Deserialize(b []byte) (types.ScVal, error) {
	d := decoder{buf: b}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, d.fail("%d trailing bytes", len(d.buf)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) fail(format string, args ...any) error {
	return types.Errorf(types.ErrValue, types.CodeInvalidEncoding, format, args...)
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.pos < n {
		return nil, d.fail("unexpected end of input at %d", d.pos)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) hash() (types.Hash, error) {
	var h types.Hash
	b, err := d.take(len(h))
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// atTerminator consumes a sequence terminator if one is next.
func (d *decoder) atTerminator() (bool, error) {
	if d.pos >= len(d.buf) {
		return false, d.fail("unterminated sequence")
	}
	if d.buf[d.pos] == terminator {
		d.pos++
		return true, nil
	}
	return false, nil
}

func (d *decoder) escaped() ([]byte, error) {
	out := []byte{}
	for {
		if d.pos >= len(d.buf) {
			return nil, d.fail("unterminated byte string")
		}
		c := d.buf[d.pos]
		d.pos++
		if c != terminator {
			out = append(out, c)
			continue
		}
		if d.pos < len(d.buf) && d.buf[d.pos] == escape {
			d.pos++
			out = append(out, terminator)
			continue
		}
		return out, nil
	}
}

func (d *decoder) value(depth int) (types.ScVal, error) {
	if depth > MaxDepth {
		return nil, d.fail("value nesting exceeds %d", MaxDepth)
	}
	tb, err := d.take(1)
	if err != nil {
		return nil, err
	}
	if tb[0] == terminator || int(tb[0]-1) >= types.ScValTypeCount {
		return nil, d.fail("invalid type byte %#x", tb[0])
	}
	switch t := types.ScValType(tb[0] - 1); t {
	case types.ScvBool:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		if b[0] > 1 {
			return nil, d.fail("bool byte %#x", b[0])
		}
		return types.Bool(b[0] == 1), nil
	case types.ScvVoid:
		return types.Void{}, nil
	case types.ScvError:
		cat, err := d.u32()
		if err != nil {
			return nil, err
		}
		code, err := d.u32()
		if err != nil {
			return nil, err
		}
		if cat > uint32(types.ErrAuth) {
			return nil, d.fail("unknown error category %d", cat)
		}
		return types.Error{Category: types.ErrorCategory(cat), Code: types.ErrorCode(code)}, nil
	case types.ScvU63:
		u, err := d.u64()
		if err != nil {
			return nil, err
		}
		if u > types.MaxSmallPositive {
			return nil, d.fail("u63 out of range")
		}
		return types.U63(u), nil
	case types.ScvU32:
		u, err := d.u32()
		return types.U32(u), err
	case types.ScvI32:
		u, err := d.u32()
		return types.I32(int32(u ^ signBit32)), err
	case types.ScvU64:
		u, err := d.u64()
		return types.U64(u), err
	case types.ScvI64:
		u, err := d.u64()
		return types.I64(int64(u ^ signBit64)), err
	case types.ScvTimepoint:
		u, err := d.u64()
		return types.Timepoint(u), err
	case types.ScvDuration:
		u, err := d.u64()
		return types.Duration(u), err
	case types.ScvU128:
		hi, err := d.u64()
		if err != nil {
			return nil, err
		}
		lo, err := d.u64()
		return types.U128{Hi: hi, Lo: lo}, err
	case types.ScvI128:
		hi, err := d.u64()
		if err != nil {
			return nil, err
		}
		lo, err := d.u64()
		return types.I128{Hi: int64(hi ^ signBit64), Lo: lo}, err
	case types.ScvU256:
		b, err := d.take(32)
		if err != nil {
			return nil, err
		}
		return types.NewU256(new(uint256.Int).SetBytes32(b)), nil
	case types.ScvI256:
		b, err := d.take(32)
		if err != nil {
			return nil, err
		}
		var tmp [32]byte
		copy(tmp[:], b)
		tmp[0] ^= 0x80
		return types.NewI256(new(uint256.Int).SetBytes32(tmp[:])), nil
	case types.ScvBytes:
		b, err := d.escaped()
		return types.Bytes(b), err
	case types.ScvString:
		b, err := d.escaped()
		return types.String(b), err
	case types.ScvSymbol:
		b, err := d.escaped()
		if err != nil {
			return nil, err
		}
		if err := types.ValidateSymbol(string(b)); err != nil {
			return nil, d.fail("invalid symbol: %v", err)
		}
		return types.Symbol(b), nil
	case types.ScvVec:
		vec := types.Vec{}
		for {
			end, err := d.atTerminator()
			if err != nil {
				return nil, err
			}
			if end {
				return vec, nil
			}
			e, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			vec = append(vec, e)
		}
	case types.ScvMap:
		m := types.Map{}
		for {
			end, err := d.atTerminator()
			if err != nil {
				return nil, err
			}
			if end {
				return m, nil
			}
			k, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			if len(m) > 0 && Compare(m[len(m)-1].Key, k) >= 0 {
				return nil, d.fail("map keys not strictly ascending")
			}
			v, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			m = append(m, types.MapEntry{Key: k, Val: v})
		}
	case types.ScvAddress:
		kind, err := d.take(1)
		if err != nil {
			return nil, err
		}
		if types.AddressKind(kind[0]) > types.AddressContract {
			return nil, d.fail("unknown address kind %d", kind[0])
		}
		id, err := d.hash()
		return types.Address{Kind: types.AddressKind(kind[0]), ID: id}, err
	case types.ScvMuxedAddress:
		acc, err := d.hash()
		if err != nil {
			return nil, err
		}
		id, err := d.u64()
		return types.MuxedAddress{Account: acc, ID: id}, err
	case types.ScvContractExecutable:
		kind, err := d.take(1)
		if err != nil {
			return nil, err
		}
		if types.ExecutableKind(kind[0]) > types.ExecutableNative {
			return nil, d.fail("unknown executable kind %d", kind[0])
		}
		h, err := d.hash()
		return types.ContractExecutable{Kind: types.ExecutableKind(kind[0]), Hash: h}, err
	default:
		return nil, d.fail("unhandled type %s", t)
	}
}
