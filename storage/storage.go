// Package storage is the journaled view of the ledger one top-level invocation
// reads and writes.
//
// Writes go to an in-memory overlay and are recorded in an undo journal. Call
// frames take a Mark on entry and Rollback to it on failure; the overlay is
// written to the ledger only by Commit after the top-level call succeeds.
package storage

import (
	"sort"

	"go.uber.org/zap"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/types"
)

type undo struct {
	key        string
	prev       *ledger.Entry
	hadOverlay bool
}

// Storage is the storage state of one top-level invocation. It is not safe for
// concurrent use.
type Storage struct {
	snap    ledger.Snapshot
	info    types.LedgerInfo
	budget  *budget.Budget
	logger  *zap.Logger
	overlay map[string]*ledger.Entry // nil value means deleted
	cache   map[string]*ledger.Entry
	written map[string]bool
	journal []undo
}

// New creates a storage view over snap.
func New(snap ledger.Snapshot, info types.LedgerInfo, b *budget.Budget, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		snap:    snap,
		info:    info,
		budget:  b,
		logger:  logger,
		overlay: make(map[string]*ledger.Entry),
		cache:   make(map[string]*ledger.Entry),
		written: make(map[string]bool),
	}
}

// Info returns the ledger the invocation runs against.
func (s *Storage) Info() types.LedgerInfo {
	return s.info
}

// Mark returns a journal position to roll back to.
func (s *Storage) Mark() int {
	return len(s.journal)
}

// Rollback undoes every write made after mark.
func (s *Storage) Rollback(mark int) {
	for i := len(s.journal) - 1; i >= mark; i-- {
		u := s.journal[i]
		if u.hadOverlay {
			s.overlay[u.key] = u.prev
		} else {
			delete(s.overlay, u.key)
		}
	}
	s.journal = s.journal[:mark]
}

// Changes returns the net writes of the invocation in key order.
func (s *Storage) Changes() []ledger.Change {
	keys := make([]string, 0, len(s.overlay))
	for k := range s.overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ledger.Change, 0, len(keys))
	for _, k := range keys {
		out = append(out, ledger.Change{Key: []byte(k), Entry: s.overlay[k].Clone()})
	}
	return out
}

// Commit writes the net changes to the ledger.
func (s *Storage) Commit() error {
	changes := s.Changes()
	if len(changes) == 0 {
		return nil
	}
	if err := s.snap.Apply(changes); err != nil {
		return types.WrapError(types.ErrStorage, types.CodeInternal, err, "commit %d changes", len(changes))
	}
	s.logger.Debug("storage committed", zap.Int("changes", len(changes)))
	return nil
}

// load returns the current entry for key, nil when absent. The result is
// shared and must not be modified.
func (s *Storage) load(key []byte) (*ledger.Entry, error) {
	k := string(key)
	if err := s.budget.Charge(budget.StorageAccess, uint64(len(key))); err != nil {
		return nil, err
	}
	if e, ok := s.overlay[k]; ok {
		return e, nil
	}
	if e, ok := s.cache[k]; ok {
		return e, nil
	}
	e, err := s.snap.Get(key)
	if err != nil {
		return nil, types.WrapError(types.ErrStorage, types.CodeInternal, err, "ledger read")
	}
	if err := s.budget.Add(budget.ReadEntries, 1); err != nil {
		return nil, err
	}
	size := uint64(len(key))
	if e != nil {
		size += uint64(len(e.Value))
	}
	if err := s.budget.Add(budget.ReadBytes, size); err != nil {
		return nil, err
	}
	s.cache[k] = e
	return e, nil
}

// store writes e (nil deletes) under key and journals the previous state.
func (s *Storage) store(key []byte, e *ledger.Entry) error {
	k := string(key)
	size := uint64(len(key))
	if e != nil {
		size += uint64(len(e.Value))
	}
	if err := s.budget.Charge(budget.StorageAccess, size); err != nil {
		return err
	}
	if !s.written[k] {
		s.written[k] = true
		if err := s.budget.Add(budget.WriteEntries, 1); err != nil {
			return err
		}
	}
	if err := s.budget.Add(budget.WriteBytes, size); err != nil {
		return err
	}
	prev, had := s.overlay[k]
	s.journal = append(s.journal, undo{key: k, prev: prev, hadOverlay: had})
	s.overlay[k] = e
	return nil
}

func (s *Storage) live(e *ledger.Entry) bool {
	return e != nil && e.LiveUntil >= s.info.Sequence
}

func (s *Storage) newLiveUntil(d types.Durability) uint32 {
	ttl := s.info.MinTTL(d)
	if ttl == 0 {
		ttl = 1
	}
	until := s.info.Sequence + ttl - 1
	if limit := s.info.MaxLiveUntil(); until > limit {
		until = limit
	}
	return until
}

// extend applies the extend-ttl rule to an entry of durability d and reports
// whether it changed.
func (s *Storage) extend(e *ledger.Entry, d types.Durability, threshold, extendTo uint32) (bool, error) {
	if threshold > extendTo {
		return false, types.Errorf(types.ErrValue, types.CodeInvalidInput,
			"threshold %d exceeds extend_to %d", threshold, extendTo)
	}
	if limit := s.info.MaxTTL(d); extendTo > limit {
		extendTo = limit
	}
	remaining := e.LiveUntil - s.info.Sequence
	if remaining >= threshold {
		return false, nil
	}
	target := s.info.Sequence + extendTo
	if limit := s.info.MaxLiveUntil(); target > limit {
		target = limit
	}
	if target <= e.LiveUntil {
		return false, nil
	}
	e.LiveUntil = target
	return true, nil
}
