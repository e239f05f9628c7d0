// Package host is the trusted side of the contract boundary.
//
// A Host runs one top-level invocation. It owns the object table, the storage
// journal, the event buffer, the authorization state, the PRNG and the
// budget; it keeps the call stack and dispatches every host function a guest
// imports. A Host is single threaded and must not be reused after its
// invocation has been committed or abandoned.
package host

import (
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/abi"
	"github.com/govm-net/vmhost/auth"
	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/events"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/objects"
	"github.com/govm-net/vmhost/prng"
	"github.com/govm-net/vmhost/storage"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

// DefaultMaxCallDepth bounds nested contract calls.
const DefaultMaxCallDepth = 20

// Config holds the per-invocation parameters.
type Config struct {
	Ledger types.LedgerInfo
	// MaxCallDepth defaults to DefaultMaxCallDepth when zero.
	MaxCallDepth int
	// Debug enables diagnostic logging from contracts.
	Debug bool
	// Seed seeds the base PRNG of the invocation.
	Seed prng.Seed
	// Source is the account that submitted the invocation.
	Source types.Address
}

// Options supplies the collaborators of a Host. Every field is optional.
type Options struct {
	// Budget defaults to the default limits and cost model.
	Budget *budget.Budget
	// Auth defaults to enforcing an empty authorization forest.
	Auth *auth.Manager
	// Engine runs wasm contracts. Without it only native contracts run.
	Engine *wasi.Engine
	// Natives maps native executable ids to their implementations.
	Natives map[types.Hash]NativeContract
	Logger  *zap.Logger
}

// frame is one active contract call.
type frame struct {
	contract types.Hash
	fn       string
	objects  objects.FrameID
	storage  int
	events   events.Mark
	auth     auth.Snapshot
	prng     *prng.PRNG
}

// Host executes one top-level invocation.
type Host struct {
	cfg     Config
	engine  *wasi.Engine
	natives map[types.Hash]NativeContract
	budget  *budget.Budget
	objects *objects.Table
	storage *storage.Storage
	events  *events.Buffer
	auth    *auth.Manager
	prng    *prng.PRNG
	frames  []*frame
	// parsed remembers which modules were charged for parsing.
	parsed map[types.Hash]bool
	logger *zap.Logger
}

// New creates a host over snap.
func New(snap ledger.Snapshot, cfg Config, opts Options) *Host {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	b := opts.Budget
	if b == nil {
		b = budget.New(budget.DefaultLimits(), budget.DefaultCostModel(), logger)
	}
	am := opts.Auth
	if am == nil {
		am = auth.NewEnforcing(nil, cfg.Source, logger)
	}
	natives := opts.Natives
	if natives == nil {
		natives = make(map[types.Hash]NativeContract)
	}
	h := &Host{
		cfg:     cfg,
		engine:  opts.Engine,
		natives: natives,
		budget:  b,
		objects: objects.NewTable(b),
		storage: storage.New(snap, cfg.Ledger, b, logger),
		events:  events.NewBuffer(b),
		auth:    am,
		prng:    prng.New(cfg.Seed),
		parsed:  make(map[types.Hash]bool),
		logger:  logger,
	}
	am.SetEnv(h)
	return h
}

// Info returns the ledger the invocation runs against.
func (h *Host) Info() types.LedgerInfo { return h.cfg.Ledger }

// Budget returns the invocation budget.
func (h *Host) Budget() *budget.Budget { return h.budget }

// Objects returns the object table.
func (h *Host) Objects() *objects.Table { return h.objects }

// Storage returns the storage journal.
func (h *Host) Storage() *storage.Storage { return h.storage }

// Events returns the event buffer.
func (h *Host) Events() *events.Buffer { return h.events }

// Auth returns the authorization manager.
func (h *Host) Auth() *auth.Manager { return h.auth }

// Logger returns the host logger.
func (h *Host) Logger() *zap.Logger { return h.logger }

// Depth is the number of active frames.
func (h *Host) Depth() int { return len(h.frames) }

// CurrentContract returns the contract of the top frame.
func (h *Host) CurrentContract() (types.Hash, error) {
	f, err := h.current()
	if err != nil {
		return types.Hash{}, err
	}
	return f.contract, nil
}

// Commit writes the storage changes of the invocation to the ledger. It must
// only be called once no frame is active.
func (h *Host) Commit() error {
	if len(h.frames) > 0 {
		return types.Errorf(types.ErrContext, types.CodeInternal, "commit with %d active frames", len(h.frames))
	}
	return h.storage.Commit()
}

func (h *Host) current() (*frame, error) {
	if len(h.frames) == 0 {
		return nil, types.Errorf(types.ErrContext, types.CodeInternal, "no contract is executing")
	}
	return h.frames[len(h.frames)-1], nil
}

// ConsumeNonce records an authorization nonce in the storage journal.
func (h *Host) ConsumeNonce(addr types.Address, nonce int64, liveUntil uint32) error {
	return h.storage.ConsumeNonce(addr, nonce, liveUntil)
}

// envMeta is the interface version modules are checked against.
func (h *Host) envMeta() abi.EnvMeta {
	return abi.EnvMeta{Protocol: h.cfg.Ledger.ProtocolVersion}
}
