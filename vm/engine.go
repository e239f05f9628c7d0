// Package vm runs top-level contract invocations against a ledger.
//
// An Engine owns the ledger backend and the compiled module cache. Every
// call builds a fresh host, runs one invocation in it and commits its storage
// changes when it succeeds. Invocations are serialized.
package vm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/api"
	"github.com/govm-net/vmhost/auth"
	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/host"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/metrics"
	"github.com/govm-net/vmhost/prng"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"

	// Ledger backends register themselves.
	_ "github.com/govm-net/vmhost/ledger/leveldb"
	_ "github.com/govm-net/vmhost/ledger/memory"
	_ "github.com/govm-net/vmhost/ledger/sqlite"
)

const tracerName = "github.com/govm-net/vmhost/vm"

// Options supplies optional collaborators of an Engine.
type Options struct {
	// Snapshot overrides the ledger backend named in the config. The engine
	// does not close a snapshot it did not open.
	Snapshot ledger.Snapshot
	// Natives registers contracts implemented in Go by executable id.
	Natives map[types.Hash]host.NativeContract
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Engine is the api.VM implementation.
type Engine struct {
	cfg       api.Config
	snap      ledger.Snapshot
	ownsSnap  bool
	wasm      *wasi.Engine
	natives   map[types.Hash]host.NativeContract
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	networkID types.Hash

	mu    sync.Mutex
	info  types.LedgerInfo
	count uint64
}

var _ api.VM = (*Engine)(nil)

// New validates cfg, opens the ledger and starts the wasm runtime.
func New(ctx context.Context, cfg api.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		snap:      opts.Snapshot,
		natives:   opts.Natives,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
		networkID: cfg.NetworkID(),
		info:      cfg.LedgerInfo(),
	}
	if e.snap == nil {
		snap, err := ledger.Open(cfg.Ledger.Backend, cfg.LedgerParams())
		if err != nil {
			return nil, fmt.Errorf("open %s ledger: %w", cfg.Ledger.Backend, err)
		}
		e.snap, e.ownsSnap = snap, true
	}
	wasm, err := wasi.NewEngine(ctx, cfg.Wasm, logger)
	if err != nil {
		_ = e.closeSnapshot()
		return nil, fmt.Errorf("start wasm runtime: %w", err)
	}
	e.wasm = wasm
	logger.Info("engine started",
		zap.String("backend", string(cfg.Ledger.Backend)),
		zap.Uint32("protocol", e.info.ProtocolVersion),
		zap.Stringer("network", e.networkID))
	return e, nil
}

func (e *Engine) closeSnapshot() error {
	if !e.ownsSnap {
		return nil
	}
	return e.snap.Close()
}

// Close stops the runtime and closes a ledger the engine opened.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.wasm.Close(ctx), e.closeSnapshot())
}

// Ledger returns the ledger parameters the next invocation runs against.
func (e *Engine) Ledger() types.LedgerInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// CloseLedger advances to the next ledger with the given close time.
func (e *Engine) CloseLedger(timestamp uint64) types.LedgerInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.info.Sequence++
	e.info.Timestamp = timestamp
	return e.info
}

// seed derives the PRNG seed of the next invocation. Caller holds mu.
func (e *Engine) seed() prng.Seed {
	e.count++
	var buf [len(types.Hash{}) + 12]byte
	n := copy(buf[:], e.networkID[:])
	binary.BigEndian.PutUint32(buf[n:], e.info.Sequence)
	binary.BigEndian.PutUint64(buf[n+4:], e.count)
	return sha256.Sum256(buf[:])
}

// newHost builds the host of one invocation. Caller holds mu.
func (e *Engine) newHost(source types.Address, am *auth.Manager) *host.Host {
	b := budget.New(e.cfg.Limits, budget.DefaultCostModel(), e.logger)
	return host.New(e.snap, host.Config{
		Ledger:       e.info,
		MaxCallDepth: e.cfg.MaxCallDepth,
		Debug:        e.cfg.Debug,
		Seed:         e.seed(),
		Source:       source,
	}, host.Options{
		Budget:  b,
		Auth:    am,
		Engine:  e.wasm,
		Natives: e.natives,
		Logger:  e.logger,
	})
}

// run executes body in a span and fills the result from the host state. The
// host is committed when body succeeds and commit is set.
func (e *Engine) run(ctx context.Context, kind string, attrs []attribute.KeyValue, h *host.Host, commit bool,
	body func(ctx context.Context) (types.ScVal, error)) *api.Result {
	ctx, span := e.tracer.Start(ctx, "vm."+kind, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	val, err := body(ctx)
	if err == nil && commit {
		err = h.Commit()
	}
	res := &api.Result{
		Value:       val,
		Diagnostics: h.Events().Diagnostics(),
		Budget:      h.Budget().Usage(),
		Err:         err,
	}
	if err == nil {
		res.Events = h.Events().Events()
	}
	e.metrics.ObserveInvocation(kind, time.Since(start), res.Budget, err)

	span.SetAttributes(attribute.Int64("cpu_instructions", int64(res.Budget.CPUInstructions)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("invocation failed", zap.String("kind", kind), zap.Error(err))
	}
	return res
}

// chargeTx adds the encoded size of what the transaction carries into the
// host to the tx_size_bytes counter.
func chargeTx(h *host.Host, args []types.ScVal, entries []types.AuthorizationEntry, extra int) error {
	n := uint64(extra)
	b, err := codec.Serialize(types.Vec(append([]types.ScVal{}, args...)))
	if err != nil {
		return err
	}
	n += uint64(len(b))
	for _, e := range entries {
		b, err := codec.Serialize(auth.EntryVal(e))
		if err != nil {
			return err
		}
		n += uint64(len(b))
	}
	return h.Budget().Add(budget.TxSizeBytes, n)
}

// UploadWasm implements api.VM.
func (e *Engine) UploadWasm(ctx context.Context, code []byte) (types.Hash, error) {
	if uint64(len(code)) > e.cfg.MaxCodeSize {
		return types.Hash{}, types.Errorf(types.ErrWasmVm, types.CodeExceededLimit,
			"code is %d bytes, at most %d allowed", len(code), e.cfg.MaxCodeSize)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.newHost(types.Address{}, nil)
	var hash types.Hash
	res := e.run(ctx, "upload", []attribute.KeyValue{attribute.Int("size", len(code))}, h, true,
		func(ctx context.Context) (types.ScVal, error) {
			if err := chargeTx(h, nil, nil, len(code)); err != nil {
				return nil, err
			}
			var err error
			hash, err = h.UploadWasm(ctx, code)
			return types.Bytes(hash[:]), err
		})
	if res.Err != nil {
		return types.Hash{}, res.Err
	}
	e.metrics.ObserveUpload()
	e.logger.Info("wasm uploaded", zap.Stringer("hash", hash), zap.Int("size", len(code)))
	return hash, nil
}

// Deploy implements api.VM.
func (e *Engine) Deploy(ctx context.Context, req api.DeployRequest) (types.Address, *api.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.newHost(req.Source, auth.NewEnforcing(req.Auth, req.Source, e.logger))
	var addr types.Address
	res := e.run(ctx, "deploy", []attribute.KeyValue{
		attribute.String("deployer", req.Deployer.String()),
		attribute.String("executable", req.Executable.Hash.String()),
	}, h, true, func(ctx context.Context) (types.ScVal, error) {
		if err := chargeTx(h, req.Args, req.Auth, len(req.Executable.Hash)+len(req.Salt)); err != nil {
			return nil, err
		}
		var err error
		addr, err = h.CreateContract(ctx, req.Deployer, req.Executable, req.Salt, req.Args)
		return addr, err
	})
	if res.Err != nil {
		return types.Address{}, res, res.Err
	}
	e.logger.Info("contract deployed", zap.Stringer("address", addr))
	return addr, res, nil
}

// Invoke implements api.VM. The returned error is the invocation error, also
// available as Result.Err.
func (e *Engine) Invoke(ctx context.Context, req api.InvokeRequest) (*api.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.newHost(req.Source, auth.NewEnforcing(req.Auth, req.Source, e.logger))
	res := e.run(ctx, "invoke", invokeAttrs(req), h, true, func(ctx context.Context) (types.ScVal, error) {
		if err := chargeTx(h, req.Args, req.Auth, len(req.Function)); err != nil {
			return nil, err
		}
		return h.Invoke(ctx, req.Contract, req.Function, req.Args)
	})
	if res.Err == nil && h.Auth().Unconsumed() > 0 {
		e.logger.Debug("authorization entries left unused", zap.Int("count", h.Auth().Unconsumed()))
	}
	return res, res.Err
}

// Simulate implements api.VM. Authorization is recorded instead of enforced
// and nothing is committed; the recorded forest is returned for the caller to
// sign.
func (e *Engine) Simulate(ctx context.Context, req api.InvokeRequest) (*api.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	am := auth.NewRecording(req.Source, e.logger)
	h := e.newHost(req.Source, am)
	res := e.run(ctx, "simulate", invokeAttrs(req), h, false, func(ctx context.Context) (types.ScVal, error) {
		if err := chargeTx(h, req.Args, req.Auth, len(req.Function)); err != nil {
			return nil, err
		}
		return h.Invoke(ctx, req.Contract, req.Function, req.Args)
	})
	if res.Err == nil {
		res.RecordedAuth = am.Recorded()
	}
	return res, res.Err
}

func invokeAttrs(req api.InvokeRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("contract", req.Contract.String()),
		attribute.String("function", req.Function),
		attribute.Int("args", len(req.Args)),
	}
}
