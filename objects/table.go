// Package objects implements the per-invocation object arena.
//
// Every object type has its own append-only slot vector. A handle is the pair
// (type, index) packed into a Val. Slots remember the frame that created them:
// a handle is only usable from its owning frame, and once that frame is popped
// the handle is stale forever. Indices are never reused.
package objects

import (
	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
)

// FrameID identifies a call frame for ownership checks. Zero is the host's own
// frame used outside of any contract call.
type FrameID uint32

type slot struct {
	owner FrameID
	value any
}

// MapEntry is a key/value pair of a map object. Keys are kept in ascending
// order by Compare.
type MapEntry struct {
	Key types.Val
	Val types.Val
}

// Table is the object arena of one top-level invocation.
type Table struct {
	slots  [types.ObjectTypeCount][]slot
	live   []bool // indexed by FrameID
	stack  []FrameID
	budget *budget.Budget
}

// NewTable creates an empty table charging allocations to b.
func NewTable(b *budget.Budget) *Table {
	return &Table{
		live:   []bool{true},
		stack:  []FrameID{0},
		budget: b,
	}
}

// Budget returns the budget the table charges.
func (t *Table) Budget() *budget.Budget {
	return t.budget
}

// PushFrame starts a new owning frame and makes it current.
func (t *Table) PushFrame() FrameID {
	id := FrameID(len(t.live))
	t.live = append(t.live, true)
	t.stack = append(t.stack, id)
	return id
}

// PopFrame ends the current frame. Handles it created become stale.
func (t *Table) PopFrame(id FrameID) {
	n := len(t.stack)
	if n <= 1 || t.stack[n-1] != id {
		panic("objects: frame pop out of order")
	}
	t.live[id] = false
	t.stack = t.stack[:n-1]
}

// Current returns the frame that owns newly created objects.
func (t *Table) Current() FrameID {
	return t.stack[len(t.stack)-1]
}

// Len returns the number of objects ever allocated of type ot.
func (t *Table) Len(ot types.ObjectType) int {
	return len(t.slots[ot])
}

func (t *Table) add(ot types.ObjectType, value any, size uint64) (types.Val, error) {
	if err := t.budget.Charge(budget.ObjectAlloc, size); err != nil {
		return 0, err
	}
	idx := len(t.slots[ot])
	if uint64(idx) > uint64(types.MaxObjectIndex) {
		return 0, types.Errorf(types.ErrObject, types.CodeExceededLimit, "%s table is full", ot)
	}
	v, ok := types.ValFromObject(ot, uint32(idx))
	if !ok {
		return 0, types.Errorf(types.ErrObject, types.CodeExceededLimit, "%s handle %d out of range", ot, idx)
	}
	t.slots[ot] = append(t.slots[ot], slot{owner: t.Current(), value: value})
	return v, nil
}

func (t *Table) get(v types.Val, want types.ObjectType) (any, error) {
	if !v.IsObject() {
		return nil, types.Errorf(types.ErrValue, types.CodeInvalidTag, "expected %s object, got %s", want, v)
	}
	ot, idx, ok := v.AsObject()
	if !ok {
		return nil, types.Errorf(types.ErrValue, types.CodeInvalidTag, "malformed object handle %#x", uint64(v))
	}
	if ot != want {
		return nil, types.Errorf(types.ErrValue, types.CodeInvalidTag, "expected %s object, got %s", want, ot)
	}
	s, err := t.slot(ot, idx)
	if err != nil {
		return nil, err
	}
	if err := t.budget.Charge(budget.ObjectAccess, 0); err != nil {
		return nil, err
	}
	return s.value, nil
}

func (t *Table) slot(ot types.ObjectType, idx uint32) (slot, error) {
	if int(idx) >= len(t.slots[ot]) {
		return slot{}, types.Errorf(types.ErrObject, types.CodeInvalidHandle, "%s handle %d was never issued", ot, idx)
	}
	s := t.slots[ot][idx]
	if s.owner != t.Current() {
		if !t.live[s.owner] {
			return slot{}, types.Errorf(types.ErrObject, types.CodeStaleHandle, "%s handle %d outlived its frame", ot, idx)
		}
		return slot{}, types.Errorf(types.ErrObject, types.CodeInvalidHandle, "%s handle %d belongs to another frame", ot, idx)
	}
	return s, nil
}

// Validate checks that v is well formed and, if it is a handle, that the
// current frame may use it.
func (t *Table) Validate(v types.Val) error {
	if err := v.Check(); err != nil {
		return err
	}
	if !v.IsObject() {
		return nil
	}
	ot, idx, _ := v.AsObject()
	_, err := t.slot(ot, idx)
	return err
}

// ObjectType returns the object type of a handle after validating it.
func (t *Table) ObjectType(v types.Val) (types.ObjectType, error) {
	if err := t.Validate(v); err != nil {
		return 0, err
	}
	ot, _, ok := v.AsObject()
	if !ok {
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidTag, "%s is not an object", v)
	}
	return ot, nil
}

// AddBytes stores a copy of b.
func (t *Table) AddBytes(b []byte) (types.Val, error) {
	return t.add(types.ObjBytes, append([]byte{}, b...), uint64(len(b)))
}

// Bytes returns the contents of a Bytes object. Callers must not modify it.
func (t *Table) Bytes(v types.Val) ([]byte, error) {
	x, err := t.get(v, types.ObjBytes)
	if err != nil {
		return nil, err
	}
	return x.([]byte), nil
}

// AddString stores a string object.
func (t *Table) AddString(s string) (types.Val, error) {
	return t.add(types.ObjString, s, uint64(len(s)))
}

// String returns the contents of a String object.
func (t *Table) String(v types.Val) (string, error) {
	x, err := t.get(v, types.ObjString)
	if err != nil {
		return "", err
	}
	return x.(string), nil
}

// SymbolVal returns a small symbol when s fits, otherwise a Symbol object.
func (t *Table) SymbolVal(s string) (types.Val, error) {
	if err := types.ValidateSymbol(s); err != nil {
		return 0, err
	}
	if v, ok := types.SmallSymbol(s); ok {
		return v, nil
	}
	return t.add(types.ObjSymbol, s, uint64(len(s)))
}

// Symbol reads a small or object symbol.
func (t *Table) Symbol(v types.Val) (string, error) {
	if s, ok := v.AsSmallSymbol(); ok {
		return s, nil
	}
	if v.Is(types.TagSymbolSmall) {
		return "", types.Errorf(types.ErrValue, types.CodeInvalidTag, "malformed small symbol")
	}
	x, err := t.get(v, types.ObjSymbol)
	if err != nil {
		return "", err
	}
	return x.(string), nil
}

// AddVec stores a vector. Every element must be usable by the current frame.
func (t *Table) AddVec(elems []types.Val) (types.Val, error) {
	for _, e := range elems {
		if err := t.Validate(e); err != nil {
			return 0, err
		}
	}
	return t.add(types.ObjVec, elems, uint64(len(elems)))
}

// Vec returns the elements of a Vec object. Callers must not modify it.
func (t *Table) Vec(v types.Val) ([]types.Val, error) {
	x, err := t.get(v, types.ObjVec)
	if err != nil {
		return nil, err
	}
	return x.([]types.Val), nil
}

// AddMap stores a map whose entries are already sorted with unique keys.
// Unsorted input is sorted; duplicate keys fail with Object/DuplicateKey.
func (t *Table) AddMap(entries []MapEntry) (types.Val, error) {
	for _, e := range entries {
		if err := t.Validate(e.Key); err != nil {
			return 0, err
		}
		if err := t.Validate(e.Val); err != nil {
			return 0, err
		}
	}
	sorted, err := t.sortEntries(entries)
	if err != nil {
		return 0, err
	}
	return t.add(types.ObjMap, sorted, uint64(len(entries)))
}

// Map returns the sorted entries of a Map object. Callers must not modify it.
func (t *Table) Map(v types.Val) ([]MapEntry, error) {
	x, err := t.get(v, types.ObjMap)
	if err != nil {
		return nil, err
	}
	return x.([]MapEntry), nil
}

// AddAddress stores an address object.
func (t *Table) AddAddress(a types.Address) (types.Val, error) {
	return t.add(types.ObjAddress, a, 0)
}

// Address reads an address object.
func (t *Table) Address(v types.Val) (types.Address, error) {
	x, err := t.get(v, types.ObjAddress)
	if err != nil {
		return types.Address{}, err
	}
	return x.(types.Address), nil
}

// AddMuxedAddress stores a muxed address object.
func (t *Table) AddMuxedAddress(m types.MuxedAddress) (types.Val, error) {
	return t.add(types.ObjMuxedAddress, m, 0)
}

// MuxedAddress reads a muxed address object.
func (t *Table) MuxedAddress(v types.Val) (types.MuxedAddress, error) {
	x, err := t.get(v, types.ObjMuxedAddress)
	if err != nil {
		return types.MuxedAddress{}, err
	}
	return x.(types.MuxedAddress), nil
}

// AddExecutable stores a contract executable object.
func (t *Table) AddExecutable(e types.ContractExecutable) (types.Val, error) {
	return t.add(types.ObjContractExecutable, e, 0)
}

// Executable reads a contract executable object.
func (t *Table) Executable(v types.Val) (types.ContractExecutable, error) {
	x, err := t.get(v, types.ObjContractExecutable)
	if err != nil {
		return types.ContractExecutable{}, err
	}
	return x.(types.ContractExecutable), nil
}
