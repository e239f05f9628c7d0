package memory

import (
	"sync"

	"github.com/govm-net/vmhost/ledger"
)

// Ledger keeps entries in a map. It is the default backend for tests and
// simulation.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*ledger.Entry
	closed  bool
}

func init() {
	if err := ledger.Register(ledger.MemoryBackend, func(map[string]any) (ledger.Snapshot, error) {
		return New(), nil
	}); err != nil {
		panic(err)
	}
}

// New creates an empty in-memory ledger
func New() *Ledger {
	return &Ledger{entries: make(map[string]*ledger.Entry)}
}

// Get implements ledger.Snapshot
func (l *Ledger) Get(key []byte) (*ledger.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ledger.ErrClosed
	}
	return l.entries[string(key)].Clone(), nil
}

// Apply implements ledger.Snapshot
func (l *Ledger) Apply(changes []ledger.Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ledger.ErrClosed
	}
	for _, c := range changes {
		if c.Entry == nil {
			delete(l.entries, string(c.Key))
			continue
		}
		l.entries[string(c.Key)] = c.Entry.Clone()
	}
	return nil
}

// Put writes one entry directly, bypassing any invocation. Used to seed state.
func (l *Ledger) Put(key []byte, e *ledger.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[string(key)] = e.Clone()
}

// Len returns the number of stored entries
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close implements ledger.Snapshot
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
