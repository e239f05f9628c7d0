package objects

import (
	"cmp"
	"slices"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
)

var objectRank = [types.ObjectTypeCount]types.ScValType{
	types.ObjBytes:              types.ScvBytes,
	types.ObjString:             types.ScvString,
	types.ObjVec:                types.ScvVec,
	types.ObjMap:                types.ScvMap,
	types.ObjU64:                types.ScvU64,
	types.ObjI64:                types.ScvI64,
	types.ObjU128:               types.ScvU128,
	types.ObjI128:               types.ScvI128,
	types.ObjU256:               types.ScvU256,
	types.ObjI256:               types.ScvI256,
	types.ObjTimepoint:          types.ScvTimepoint,
	types.ObjDuration:           types.ScvDuration,
	types.ObjSymbol:             types.ScvSymbol,
	types.ObjAddress:            types.ScvAddress,
	types.ObjMuxedAddress:       types.ScvMuxedAddress,
	types.ObjContractExecutable: types.ScvContractExecutable,
}

// TypeOf returns the ScVal variant v denotes.
func (t *Table) TypeOf(v types.Val) (types.ScValType, error) {
	if v.IsSmallPositive() {
		return types.ScvU63, nil
	}
	switch v.Tag() {
	case types.TagVoid:
		return types.ScvVoid, nil
	case types.TagBool:
		return types.ScvBool, nil
	case types.TagError:
		return types.ScvError, nil
	case types.TagU32:
		return types.ScvU32, nil
	case types.TagI32:
		return types.ScvI32, nil
	case types.TagU64Small:
		return types.ScvU64, nil
	case types.TagI64Small:
		return types.ScvI64, nil
	case types.TagTimepointSmall:
		return types.ScvTimepoint, nil
	case types.TagDurationSmall:
		return types.ScvDuration, nil
	case types.TagU128Small:
		return types.ScvU128, nil
	case types.TagI128Small:
		return types.ScvI128, nil
	case types.TagU256Small:
		return types.ScvU256, nil
	case types.TagI256Small:
		return types.ScvI256, nil
	case types.TagSymbolSmall:
		return types.ScvSymbol, nil
	case types.TagObject:
		ot, err := t.ObjectType(v)
		if err != nil {
			return 0, err
		}
		return objectRank[ot], nil
	}
	return 0, types.Errorf(types.ErrValue, types.CodeInvalidTag, "unknown tag in %#x", uint64(v))
}

// Compare orders two values by content. Handles are followed, so two
// different handles to equal objects compare equal.
func (t *Table) Compare(a, b types.Val) (int, error) {
	return t.compare(a, b, 0)
}

func (t *Table) compare(a, b types.Val, depth int) (int, error) {
	if depth > codec.MaxDepth {
		return 0, types.Errorf(types.ErrValue, types.CodeExceededLimit, "comparison nesting exceeds %d", codec.MaxDepth)
	}
	if err := t.budget.Charge(budget.ValCompare, 1); err != nil {
		return 0, err
	}
	ra, err := t.TypeOf(a)
	if err != nil {
		return 0, err
	}
	rb, err := t.TypeOf(b)
	if err != nil {
		return 0, err
	}
	if ra != rb {
		return cmp.Compare(ra, rb), nil
	}
	switch ra {
	case types.ScvVec:
		x, err := t.Vec(a)
		if err != nil {
			return 0, err
		}
		y, err := t.Vec(b)
		if err != nil {
			return 0, err
		}
		for i := 0; i < len(x) && i < len(y); i++ {
			c, err := t.compare(x[i], y[i], depth+1)
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmp.Compare(len(x), len(y)), nil
	case types.ScvMap:
		x, err := t.Map(a)
		if err != nil {
			return 0, err
		}
		y, err := t.Map(b)
		if err != nil {
			return 0, err
		}
		for i := 0; i < len(x) && i < len(y); i++ {
			c, err := t.compare(x[i].Key, y[i].Key, depth+1)
			if err != nil || c != 0 {
				return c, err
			}
			c, err = t.compare(x[i].Val, y[i].Val, depth+1)
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmp.Compare(len(x), len(y)), nil
	}
	sa, err := t.ToScVal(a)
	if err != nil {
		return 0, err
	}
	sb, err := t.ToScVal(b)
	if err != nil {
		return 0, err
	}
	return codec.Compare(sa, sb), nil
}

func (t *Table) sortEntries(entries []MapEntry) ([]MapEntry, error) {
	out := slices.Clone(entries)
	var sortErr error
	slices.SortStableFunc(out, func(x, y MapEntry) int {
		c, err := t.Compare(x.Key, y.Key)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return nil, sortErr
	}
	for i := 1; i < len(out); i++ {
		c, err := t.Compare(out[i-1].Key, out[i].Key)
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return nil, types.Errorf(types.ErrObject, types.CodeDuplicateKey, "duplicate map key %s", out[i].Key)
		}
	}
	return out, nil
}

// MapFind locates key in the sorted entries and reports whether it is present.
// When absent the returned index is the insertion position.
func (t *Table) MapFind(entries []MapEntry, key types.Val) (int, bool, error) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		c, err := t.Compare(entries[mid].Key, key)
		if err != nil {
			return 0, false, err
		}
		switch {
		case c == 0:
			return mid, true, nil
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false, nil
}

// ToScVal resolves v and every handle it reaches into a host independent value.
func (t *Table) ToScVal(v types.Val) (types.ScVal, error) {
	return t.toScVal(v, 0)
}

func (t *Table) toScVal(v types.Val, depth int) (types.ScVal, error) {
	if depth > codec.MaxDepth {
		return nil, types.Errorf(types.ErrValue, types.CodeExceededLimit, "value nesting exceeds %d", codec.MaxDepth)
	}
	if err := v.Check(); err != nil {
		return nil, err
	}
	if u, ok := v.AsSmallPositive(); ok {
		return types.U63(u), nil
	}
	switch v.Tag() {
	case types.TagVoid:
		return types.Void{}, nil
	case types.TagBool:
		b, _ := v.AsBool()
		return types.Bool(b), nil
	case types.TagError:
		e, _ := v.AsError()
		return e, nil
	case types.TagU32:
		u, _ := v.AsU32()
		return types.U32(u), nil
	case types.TagI32:
		i, _ := v.AsI32()
		return types.I32(i), nil
	case types.TagU64Small:
		return types.U64(v.SmallUnsignedBody()), nil
	case types.TagI64Small:
		return types.I64(v.SmallSignedBody()), nil
	case types.TagTimepointSmall:
		return types.Timepoint(v.SmallUnsignedBody()), nil
	case types.TagDurationSmall:
		return types.Duration(v.SmallUnsignedBody()), nil
	case types.TagU128Small:
		return t.U128(v)
	case types.TagI128Small:
		return t.I128(v)
	case types.TagU256Small:
		return t.U256(v)
	case types.TagI256Small:
		return t.I256(v)
	case types.TagSymbolSmall:
		s, err := t.Symbol(v)
		return types.Symbol(s), err
	}

	ot, err := t.ObjectType(v)
	if err != nil {
		return nil, err
	}
	switch ot {
	case types.ObjBytes:
		b, err := t.Bytes(v)
		return types.Bytes(append([]byte{}, b...)), err
	case types.ObjString:
		s, err := t.String(v)
		return types.String(s), err
	case types.ObjSymbol:
		s, err := t.Symbol(v)
		return types.Symbol(s), err
	case types.ObjVec:
		elems, err := t.Vec(v)
		if err != nil {
			return nil, err
		}
		out := make(types.Vec, len(elems))
		for i, e := range elems {
			if out[i], err = t.toScVal(e, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	case types.ObjMap:
		entries, err := t.Map(v)
		if err != nil {
			return nil, err
		}
		out := make(types.Map, len(entries))
		for i, e := range entries {
			if out[i].Key, err = t.toScVal(e.Key, depth+1); err != nil {
				return nil, err
			}
			if out[i].Val, err = t.toScVal(e.Val, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	case types.ObjU64:
		u, err := t.U64(v)
		return types.U64(u), err
	case types.ObjI64:
		i, err := t.I64(v)
		return types.I64(i), err
	case types.ObjTimepoint:
		u, err := t.Timepoint(v)
		return types.Timepoint(u), err
	case types.ObjDuration:
		u, err := t.Duration(v)
		return types.Duration(u), err
	case types.ObjU128:
		return t.U128(v)
	case types.ObjI128:
		return t.I128(v)
	case types.ObjU256:
		return t.U256(v)
	case types.ObjI256:
		return t.I256(v)
	case types.ObjAddress:
		return t.Address(v)
	case types.ObjMuxedAddress:
		return t.MuxedAddress(v)
	case types.ObjContractExecutable:
		return t.Executable(v)
	}
	return nil, types.Errorf(types.ErrValue, types.CodeInvalidTag, "unknown object type %s", ot)
}

// FromScVal materializes sv in the current frame, allocating objects as needed.
func (t *Table) FromScVal(sv types.ScVal) (types.Val, error) {
	return t.fromScVal(sv, 0)
}

func (t *Table) fromScVal(sv types.ScVal, depth int) (types.Val, error) {
	if depth > codec.MaxDepth {
		return 0, types.Errorf(types.ErrValue, types.CodeExceededLimit, "value nesting exceeds %d", codec.MaxDepth)
	}
	switch x := sv.(type) {
	case nil:
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidInput, "nil value")
	case types.Bool:
		return types.ValFromBool(bool(x)), nil
	case types.Void:
		return types.VoidVal, nil
	case types.Error:
		v := types.ValFromError(x)
		if err := v.Check(); err != nil {
			return 0, err
		}
		return v, nil
	case types.U63:
		v, ok := types.ValFromSmallPositive(uint64(x))
		if !ok {
			return 0, types.Errorf(types.ErrValue, types.CodeInvalidInput, "u63 out of range")
		}
		return v, nil
	case types.U32:
		return types.ValFromU32(uint32(x)), nil
	case types.I32:
		return types.ValFromI32(int32(x)), nil
	case types.U64:
		return t.U64Val(uint64(x))
	case types.I64:
		return t.I64Val(int64(x))
	case types.Timepoint:
		return t.TimepointVal(uint64(x))
	case types.Duration:
		return t.DurationVal(uint64(x))
	case types.U128:
		return t.U128Val(x)
	case types.I128:
		return t.I128Val(x)
	case types.U256:
		return t.U256Val(x)
	case types.I256:
		return t.I256Val(x)
	case types.Bytes:
		return t.AddBytes(x)
	case types.String:
		return t.AddString(string(x))
	case types.Symbol:
		return t.SymbolVal(string(x))
	case types.Vec:
		elems := make([]types.Val, len(x))
		for i, e := range x {
			v, err := t.fromScVal(e, depth+1)
			if err != nil {
				return 0, err
			}
			elems[i] = v
		}
		return t.AddVec(elems)
	case types.Map:
		entries := make([]MapEntry, len(x))
		for i, e := range x {
			k, err := t.fromScVal(e.Key, depth+1)
			if err != nil {
				return 0, err
			}
			v, err := t.fromScVal(e.Val, depth+1)
			if err != nil {
				return 0, err
			}
			entries[i] = MapEntry{Key: k, Val: v}
		}
		return t.AddMap(entries)
	case types.Address:
		return t.AddAddress(x)
	case types.MuxedAddress:
		return t.AddMuxedAddress(x)
	case types.ContractExecutable:
		return t.AddExecutable(x)
	}
	return 0, types.Errorf(types.ErrValue, types.CodeInvalidInput, "unsupported value %T", sv)
}
