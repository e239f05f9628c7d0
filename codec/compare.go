package codec

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/govm-net/vmhost/types"
)

// Compare orders two values. Values of different variants order by variant
// rank; values of the same variant order by content. The result always agrees
// with bytes.Compare over the canonical encodings.
func Compare(a, b types.ScVal) int {
	if a.Type() != b.Type() {
		return cmp.Compare(a.Type(), b.Type())
	}
	switch x := a.(type) {
	case types.Bool:
		y := b.(types.Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		}
		return 1
	case types.Void:
		return 0
	case types.Error:
		y := b.(types.Error)
		if c := cmp.Compare(x.Category, y.Category); c != 0 {
			return c
		}
		return cmp.Compare(x.Code, y.Code)
	case types.U63:
		return cmp.Compare(x, b.(types.U63))
	case types.U32:
		return cmp.Compare(x, b.(types.U32))
	case types.I32:
		return cmp.Compare(x, b.(types.I32))
	case types.U64:
		return cmp.Compare(x, b.(types.U64))
	case types.I64:
		return cmp.Compare(x, b.(types.I64))
	case types.Timepoint:
		return cmp.Compare(x, b.(types.Timepoint))
	case types.Duration:
		return cmp.Compare(x, b.(types.Duration))
	case types.U128:
		y := b.(types.U128)
		if c := cmp.Compare(x.Hi, y.Hi); c != 0 {
			return c
		}
		return cmp.Compare(x.Lo, y.Lo)
	case types.I128:
		y := b.(types.I128)
		if c := cmp.Compare(x.Hi, y.Hi); c != 0 {
			return c
		}
		return cmp.Compare(x.Lo, y.Lo)
	case types.U256:
		y := b.(types.U256)
		return x.Int().Cmp(y.Int())
	case types.I256:
		y := b.(types.I256)
		xi, yi := x.Int(), y.Int()
		switch {
		case xi.Eq(yi):
			return 0
		case xi.Slt(yi):
			return -1
		}
		return 1
	case types.Bytes:
		return bytes.Compare(x, b.(types.Bytes))
	case types.String:
		return cmp.Compare(x, b.(types.String))
	case types.Symbol:
		return cmp.Compare(x, b.(types.Symbol))
	case types.Vec:
		y := b.(types.Vec)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(x), len(y))
	case types.Map:
		y := b.(types.Map)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i].Key, y[i].Key); c != 0 {
				return c
			}
			if c := Compare(x[i].Val, y[i].Val); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(x), len(y))
	case types.Address:
		y := b.(types.Address)
		if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
			return c
		}
		return bytes.Compare(x.ID[:], y.ID[:])
	case types.MuxedAddress:
		y := b.(types.MuxedAddress)
		if c := bytes.Compare(x.Account[:], y.Account[:]); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	case types.ContractExecutable:
		y := b.(types.ContractExecutable)
		if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
			return c
		}
		return bytes.Compare(x.Hash[:], y.Hash[:])
	}
	return 0
}

// Equal reports whether a and b are the same value.
func Equal(a, b types.ScVal) bool {
	return Compare(a, b) == 0
}

// SortMap orders the entries of m by key in place and reports whether all keys
// are distinct.
func SortMap(m types.Map) bool {
	slices.SortStableFunc(m, func(a, b types.MapEntry) int { return Compare(a.Key, b.Key) })
	for i := 1; i < len(m); i++ {
		if Compare(m[i-1].Key, m[i].Key) == 0 {
			return false
		}
	}
	return true
}
