package storage

import (
	"crypto/sha256"
	"slices"

	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/types"
)

// Instance is the ledger entry of a deployed contract: the code it runs and its
// instance storage. Instance storage shares the entry's TTL.
type Instance struct {
	Executable types.ContractExecutable
	Storage    types.Map
}

func encodeInstance(inst *Instance) ([]byte, error) {
	return codec.Serialize(types.Vec{inst.Executable, inst.Storage})
}

func decodeInstance(b []byte) (*Instance, error) {
	v, err := codec.Deserialize(b)
	if err != nil {
		return nil, err
	}
	vec, ok := v.(types.Vec)
	if !ok || len(vec) != 2 {
		return nil, types.Errorf(types.ErrStorage, types.CodeInternal, "malformed contract instance")
	}
	exec, ok1 := vec[0].(types.ContractExecutable)
	m, ok2 := vec[1].(types.Map)
	if !ok1 || !ok2 {
		return nil, types.Errorf(types.ErrStorage, types.CodeInternal, "malformed contract instance")
	}
	return &Instance{Executable: exec, Storage: m}, nil
}

func (s *Storage) checkLive(e *ledger.Entry, what string) error {
	if !s.live(e) {
		return types.Errorf(types.ErrStorage, types.CodeAccessExpired, "%s expired at ledger %d", what, e.LiveUntil)
	}
	return nil
}

// HasInstance reports whether a contract instance entry exists, live or not.
func (s *Storage) HasInstance(contract types.Hash) (bool, error) {
	e, err := s.load(ledger.InstanceKey(contract))
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

func (s *Storage) instanceEntry(contract types.Hash) (*ledger.Entry, *Instance, error) {
	e, err := s.load(ledger.InstanceKey(contract))
	if err != nil {
		return nil, nil, err
	}
	if e == nil {
		return nil, nil, types.Errorf(types.ErrStorage, types.CodeMissingValue, "contract %s not found", contract)
	}
	if err := s.checkLive(e, "contract "+contract.String()); err != nil {
		return nil, nil, err
	}
	inst, err := decodeInstance(e.Value)
	if err != nil {
		return nil, nil, err
	}
	return e, inst, nil
}

// Instance loads a live contract instance.
func (s *Storage) Instance(contract types.Hash) (*Instance, error) {
	_, inst, err := s.instanceEntry(contract)
	return inst, err
}

// PutInstance writes a contract instance. A new instance starts with the
// persistent minimum TTL; an existing one keeps its TTL.
func (s *Storage) PutInstance(contract types.Hash, inst *Instance) error {
	key := ledger.InstanceKey(contract)
	prev, err := s.load(key)
	if err != nil {
		return err
	}
	value, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	if limit := s.info.MaxInstanceSize; limit > 0 && uint64(len(value)) > uint64(limit) {
		return types.Errorf(types.ErrStorage, types.CodeExceededLimit,
			"contract instance is %d bytes, at most %d allowed", len(value), limit)
	}
	liveUntil := s.newLiveUntil(types.Persistent)
	if prev != nil {
		if err := s.checkLive(prev, "contract "+contract.String()); err != nil {
			return err
		}
		liveUntil = prev.LiveUntil
	}
	return s.store(key, &ledger.Entry{Value: value, LiveUntil: liveUntil})
}

// PutCode stores wasm under its sha256 hash. Uploading existing code is a
// no-op that returns the same hash.
func (s *Storage) PutCode(wasm []byte) (types.Hash, error) {
	hash := types.Hash(sha256.Sum256(wasm))
	key := ledger.CodeKey(hash)
	prev, err := s.load(key)
	if err != nil {
		return hash, err
	}
	if prev != nil {
		return hash, nil
	}
	return hash, s.store(key, &ledger.Entry{Value: append([]byte{}, wasm...), LiveUntil: s.newLiveUntil(types.Persistent)})
}

// Code loads live contract code by hash.
func (s *Storage) Code(hash types.Hash) ([]byte, error) {
	e, err := s.load(ledger.CodeKey(hash))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, types.Errorf(types.ErrStorage, types.CodeMissingValue, "code %s not found", hash)
	}
	if err := s.checkLive(e, "code "+hash.String()); err != nil {
		return nil, err
	}
	return e.Value, nil
}

// dataEntry resolves a persistent or temporary entry. Expired temporary
// entries read as absent; expired persistent entries trap.
func (s *Storage) dataEntry(contract types.Hash, d types.Durability, key types.ScVal) ([]byte, *ledger.Entry, error) {
	kb, err := codec.Serialize(key)
	if err != nil {
		return nil, nil, err
	}
	lk := ledger.DataKey(contract, d, kb)
	e, err := s.load(lk)
	if err != nil {
		return nil, nil, err
	}
	if e != nil && !s.live(e) {
		if d == types.Temporary {
			return lk, nil, nil
		}
		return nil, nil, types.Errorf(types.ErrStorage, types.CodeAccessExpired,
			"%s entry expired at ledger %d", d, e.LiveUntil)
	}
	return lk, e, nil
}

func findKey(m types.Map, key types.ScVal) (int, bool) {
	return slices.BinarySearchFunc(m, key, func(e types.MapEntry, k types.ScVal) int {
		return codec.Compare(e.Key, k)
	})
}

// Has reports whether key is present.
func (s *Storage) Has(contract types.Hash, d types.Durability, key types.ScVal) (bool, error) {
	if d == types.Instance {
		inst, err := s.Instance(contract)
		if err != nil {
			return false, err
		}
		_, ok := findKey(inst.Storage, key)
		return ok, nil
	}
	_, e, err := s.dataEntry(contract, d, key)
	return e != nil, err
}

// Get returns the value under key or Storage/MissingValue.
func (s *Storage) Get(contract types.Hash, d types.Durability, key types.ScVal) (types.ScVal, error) {
	if d == types.Instance {
		inst, err := s.Instance(contract)
		if err != nil {
			return nil, err
		}
		i, ok := findKey(inst.Storage, key)
		if !ok {
			return nil, types.Errorf(types.ErrStorage, types.CodeMissingValue, "instance key not found")
		}
		return inst.Storage[i].Val, nil
	}
	_, e, err := s.dataEntry(contract, d, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, types.Errorf(types.ErrStorage, types.CodeMissingValue, "%s key not found", d)
	}
	return codec.Deserialize(e.Value)
}

// Put writes val under key.
func (s *Storage) Put(contract types.Hash, d types.Durability, key, val types.ScVal) error {
	if d == types.Instance {
		inst, err := s.Instance(contract)
		if err != nil {
			return err
		}
		m := slices.Clone(inst.Storage)
		i, ok := findKey(m, key)
		if ok {
			m[i].Val = val
		} else {
			m = slices.Insert(m, i, types.MapEntry{Key: key, Val: val})
		}
		return s.PutInstance(contract, &Instance{Executable: inst.Executable, Storage: m})
	}
	lk, e, err := s.dataEntry(contract, d, key)
	if err != nil {
		return err
	}
	vb, err := codec.Serialize(val)
	if err != nil {
		return err
	}
	liveUntil := s.newLiveUntil(d)
	if e != nil {
		liveUntil = e.LiveUntil
	}
	return s.store(lk, &ledger.Entry{Value: vb, LiveUntil: liveUntil})
}

// Del removes key. Removing an absent key is a no-op.
func (s *Storage) Del(contract types.Hash, d types.Durability, key types.ScVal) error {
	if d == types.Instance {
		inst, err := s.Instance(contract)
		if err != nil {
			return err
		}
		i, ok := findKey(inst.Storage, key)
		if !ok {
			return nil
		}
		m := slices.Delete(slices.Clone(inst.Storage), i, i+1)
		return s.PutInstance(contract, &Instance{Executable: inst.Executable, Storage: m})
	}
	lk, e, err := s.dataEntry(contract, d, key)
	if err != nil || e == nil {
		return err
	}
	return s.store(lk, nil)
}

// ExtendTTL raises the live-until ledger of a persistent or temporary entry to
// sequence+extendTo when fewer than threshold ledgers remain.
func (s *Storage) ExtendTTL(contract types.Hash, d types.Durability, key types.ScVal, threshold, extendTo uint32) error {
	if d == types.Instance {
		return types.Errorf(types.ErrValue, types.CodeInvalidInput, "instance storage shares the contract TTL")
	}
	lk, e, err := s.dataEntry(contract, d, key)
	if err != nil {
		return err
	}
	if e == nil {
		return types.Errorf(types.ErrStorage, types.CodeMissingValue, "%s key not found", d)
	}
	next := e.Clone()
	changed, err := s.extend(next, d, threshold, extendTo)
	if err != nil || !changed {
		return err
	}
	return s.store(lk, next)
}

// LiveUntil returns the live-until ledger of an entry.
func (s *Storage) LiveUntil(contract types.Hash, d types.Durability, key types.ScVal) (uint32, error) {
	if d == types.Instance {
		e, _, err := s.instanceEntry(contract)
		if err != nil {
			return 0, err
		}
		return e.LiveUntil, nil
	}
	_, e, err := s.dataEntry(contract, d, key)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, types.Errorf(types.ErrStorage, types.CodeMissingValue, "%s key not found", d)
	}
	return e.LiveUntil, nil
}

// ExtendInstanceAndCodeTTL extends the contract instance and, for wasm
// contracts, the code entry it runs.
func (s *Storage) ExtendInstanceAndCodeTTL(contract types.Hash, threshold, extendTo uint32) error {
	e, inst, err := s.instanceEntry(contract)
	if err != nil {
		return err
	}
	next := e.Clone()
	changed, err := s.extend(next, types.Persistent, threshold, extendTo)
	if err != nil {
		return err
	}
	if changed {
		if err := s.store(ledger.InstanceKey(contract), next); err != nil {
			return err
		}
	}
	if inst.Executable.Kind != types.ExecutableWasm {
		return nil
	}
	ck := ledger.CodeKey(inst.Executable.Hash)
	ce, err := s.load(ck)
	if err != nil {
		return err
	}
	if ce == nil {
		return types.Errorf(types.ErrStorage, types.CodeMissingValue, "code %s not found", inst.Executable.Hash)
	}
	if err := s.checkLive(ce, "code "+inst.Executable.Hash.String()); err != nil {
		return err
	}
	nextCode := ce.Clone()
	changed, err = s.extend(nextCode, types.Persistent, threshold, extendTo)
	if err != nil || !changed {
		return err
	}
	return s.store(ck, nextCode)
}

// ConsumeNonce records that addr used nonce. The record lives until
// liveUntil, after which the signature it protects has expired anyway.
func (s *Storage) ConsumeNonce(addr types.Address, nonce int64, liveUntil uint32) error {
	key := ledger.NonceKey(addr, nonce)
	e, err := s.load(key)
	if err != nil {
		return err
	}
	if e != nil && s.live(e) {
		return types.Errorf(types.ErrAuth, types.CodeNonceReplay, "nonce %d of %s already used", nonce, addr)
	}
	if limit := s.info.MaxLiveUntil(); liveUntil > limit {
		liveUntil = limit
	}
	if liveUntil < s.info.Sequence {
		liveUntil = s.info.Sequence
	}
	return s.store(key, &ledger.Entry{Value: []byte{}, LiveUntil: liveUntil})
}
