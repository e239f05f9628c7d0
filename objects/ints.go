package objects

import (
	"github.com/holiman/uint256"

	"github.com/govm-net/vmhost/types"
)

// Integer constructors pick the inline form whenever the value fits, so every
// number has exactly one Val representation.

// U64Val encodes u.
func (t *Table) U64Val(u uint64) (types.Val, error) {
	if v, ok := types.SmallUnsigned(types.TagU64Small, u); ok {
		return v, nil
	}
	return t.add(types.ObjU64, u, 8)
}

// U64 decodes an inline or object u64.
func (t *Table) U64(v types.Val) (uint64, error) {
	if v.Is(types.TagU64Small) {
		return v.SmallUnsignedBody(), nil
	}
	x, err := t.get(v, types.ObjU64)
	if err != nil {
		return 0, err
	}
	return x.(uint64), nil
}

// I64Val encodes i.
func (t *Table) I64Val(i int64) (types.Val, error) {
	if v, ok := types.SmallSigned(types.TagI64Small, i); ok {
		return v, nil
	}
	return t.add(types.ObjI64, i, 8)
}

// I64 decodes an inline or object i64.
func (t *Table) I64(v types.Val) (int64, error) {
	if v.Is(types.TagI64Small) {
		return v.SmallSignedBody(), nil
	}
	x, err := t.get(v, types.ObjI64)
	if err != nil {
		return 0, err
	}
	return x.(int64), nil
}

// TimepointVal encodes a timepoint.
func (t *Table) TimepointVal(u uint64) (types.Val, error) {
	if v, ok := types.SmallUnsigned(types.TagTimepointSmall, u); ok {
		return v, nil
	}
	return t.add(types.ObjTimepoint, u, 8)
}

// Timepoint decodes a timepoint.
func (t *Table) Timepoint(v types.Val) (uint64, error) {
	if v.Is(types.TagTimepointSmall) {
		return v.SmallUnsignedBody(), nil
	}
	x, err := t.get(v, types.ObjTimepoint)
	if err != nil {
		return 0, err
	}
	return x.(uint64), nil
}

// DurationVal encodes a duration.
func (t *Table) DurationVal(u uint64) (types.Val, error) {
	if v, ok := types.SmallUnsigned(types.TagDurationSmall, u); ok {
		return v, nil
	}
	return t.add(types.ObjDuration, u, 8)
}

// Duration decodes a duration.
func (t *Table) Duration(v types.Val) (uint64, error) {
	if v.Is(types.TagDurationSmall) {
		return v.SmallUnsignedBody(), nil
	}
	x, err := t.get(v, types.ObjDuration)
	if err != nil {
		return 0, err
	}
	return x.(uint64), nil
}

// U128Val encodes u.
func (t *Table) U128Val(u types.U128) (types.Val, error) {
	if u.FitsSmall() {
		v, _ := types.SmallUnsigned(types.TagU128Small, u.Lo)
		return v, nil
	}
	return t.add(types.ObjU128, u, 16)
}

// U128 decodes a u128.
func (t *Table) U128(v types.Val) (types.U128, error) {
	if v.Is(types.TagU128Small) {
		return types.U128{Lo: v.SmallUnsignedBody()}, nil
	}
	x, err := t.get(v, types.ObjU128)
	if err != nil {
		return types.U128{}, err
	}
	return x.(types.U128), nil
}

// I128Val encodes i.
func (t *Table) I128Val(i types.I128) (types.Val, error) {
	if i.FitsSmall() {
		v, _ := types.SmallSigned(types.TagI128Small, int64(i.Lo))
		return v, nil
	}
	return t.add(types.ObjI128, i, 16)
}

// I128 decodes an i128.
func (t *Table) I128(v types.Val) (types.I128, error) {
	if v.Is(types.TagI128Small) {
		n := v.SmallSignedBody()
		return types.I128{Hi: n >> 63, Lo: uint64(n)}, nil
	}
	x, err := t.get(v, types.ObjI128)
	if err != nil {
		return types.I128{}, err
	}
	return x.(types.I128), nil
}

// U256Val encodes u.
func (t *Table) U256Val(u types.U256) (types.Val, error) {
	if u.FitsSmall() {
		v, _ := types.SmallUnsigned(types.TagU256Small, u.Int().Uint64())
		return v, nil
	}
	return t.add(types.ObjU256, u, 32)
}

// U256 decodes a u256.
func (t *Table) U256(v types.Val) (types.U256, error) {
	if v.Is(types.TagU256Small) {
		return types.NewU256(uint256.NewInt(v.SmallUnsignedBody())), nil
	}
	x, err := t.get(v, types.ObjU256)
	if err != nil {
		return types.U256{}, err
	}
	return x.(types.U256), nil
}

// I256Val encodes i.
func (t *Table) I256Val(i types.I256) (types.Val, error) {
	if i.FitsSmall() {
		v, _ := types.SmallSigned(types.TagI256Small, int64(i.Int().Uint64()))
		return v, nil
	}
	return t.add(types.ObjI256, i, 32)
}

// I256 decodes an i256.
func (t *Table) I256(v types.Val) (types.I256, error) {
	if v.Is(types.TagI256Small) {
		return types.I256FromInt64(v.SmallSignedBody()), nil
	}
	x, err := t.get(v, types.ObjI256)
	if err != nil {
		return types.I256{}, err
	}
	return x.(types.I256), nil
}
