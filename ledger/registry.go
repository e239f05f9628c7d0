package ledger

import (
	"fmt"
	"sort"
	"sync"
)

// BackendType names a ledger backend implementation
type BackendType string

const (
	// MemoryBackend keeps the ledger in process memory
	MemoryBackend BackendType = "memory"
	// SQLiteBackend stores the ledger in a sqlite database through gorm
	SQLiteBackend BackendType = "sqlite"
	// LevelDBBackend stores the ledger in a leveldb directory
	LevelDBBackend BackendType = "leveldb"
)

// Constructor creates a backend from free-form parameters
type Constructor func(params map[string]any) (Snapshot, error)

// Registry manages the available ledger backends
type Registry interface {
	// Register adds a backend implementation
	Register(bt BackendType, constructor Constructor) error
	// SetDefault sets the default backend type
	SetDefault(bt BackendType) error
	// Open returns a new instance of the given backend
	Open(bt BackendType, params map[string]any) (Snapshot, error)
	// DefaultBackend returns the current default backend type
	DefaultBackend() BackendType
	// ListRegistered returns all registered backend types, sorted
	ListRegistered() []BackendType
}

type registry struct {
	mu        sync.RWMutex
	backends  map[BackendType]Constructor
	defaultBt BackendType
}

var defaultRegistry Registry = &registry{
	backends: make(map[BackendType]Constructor),
}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(bt BackendType, constructor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; exists {
		return fmt.Errorf("ledger backend %s already registered", bt)
	}
	r.backends[bt] = constructor
	return nil
}

func (r *registry) SetDefault(bt BackendType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; !exists {
		return fmt.Errorf("ledger backend %s not registered", bt)
	}
	r.defaultBt = bt
	return nil
}

func (r *registry) Open(bt BackendType, params map[string]any) (Snapshot, error) {
	r.mu.RLock()
	constructor, exists := r.backends[bt]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("ledger backend %s not found", bt)
	}
	snap, err := constructor(params)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", bt, err)
	}
	return snap, nil
}

func (r *registry) DefaultBackend() BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultBt == "" {
		return MemoryBackend
	}
	return r.defaultBt
}

func (r *registry) ListRegistered() []BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BackendType, 0, len(r.backends))
	for bt := range r.backends {
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register adds a backend to the global registry
func Register(bt BackendType, constructor Constructor) error {
	return GetRegistry().Register(bt, constructor)
}

// SetDefault sets the default backend of the global registry
func SetDefault(bt BackendType) error {
	return GetRegistry().SetDefault(bt)
}

// Open opens a backend from the global registry. An empty type opens the default.
func Open(bt BackendType, params map[string]any) (Snapshot, error) {
	if bt == "" {
		bt = GetRegistry().DefaultBackend()
	}
	return GetRegistry().Open(bt, params)
}

// ListRegistered returns the backends of the global registry
func ListRegistered() []BackendType {
	return GetRegistry().ListRegistered()
}
