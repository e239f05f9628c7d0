package host

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

// target is a resolved contract executable.
type target struct {
	native    NativeContract
	module    *wasi.Module
	reentrant bool
}

func (t *target) arity(fn string) (int, bool) {
	if t.native != nil {
		n, ok := t.native.Functions()[fn]
		return n, ok
	}
	return t.module.Arity(fn)
}

func (h *Host) resolve(ctx context.Context, exec types.ContractExecutable) (*target, error) {
	switch exec.Kind {
	case types.ExecutableNative:
		c, ok := h.natives[exec.Hash]
		if !ok {
			return nil, types.Errorf(types.ErrStorage, types.CodeMissingValue, "native contract %s is not registered", exec.Hash)
		}
		t := &target{native: c}
		if r, ok := c.(Reentrant); ok {
			t.reentrant = r.AllowReentry()
		}
		return t, nil
	case types.ExecutableWasm:
		m, err := h.loadModule(ctx, exec.Hash)
		if err != nil {
			return nil, err
		}
		return &target{module: m, reentrant: m.ABI.AllowsReentry()}, nil
	}
	return nil, types.Errorf(types.ErrStorage, types.CodeInternal, "unknown executable kind %d", exec.Kind)
}

// loadModule compiles stored code. Parsing is charged once per module and
// invocation regardless of the engine cache.
func (h *Host) loadModule(ctx context.Context, hash types.Hash) (*wasi.Module, error) {
	if h.engine == nil {
		return nil, types.Errorf(types.ErrContext, types.CodeInternal, "host has no wasm engine")
	}
	code, err := h.storage.Code(hash)
	if err != nil {
		return nil, err
	}
	if !h.parsed[hash] {
		if err := h.budget.Charge(budget.ParseModule, uint64(len(code))); err != nil {
			return nil, err
		}
		h.parsed[hash] = true
	}
	return h.engine.Compile(ctx, code)
}

// Invoke calls fn on contract. A failure rolls back everything the call did
// and is returned as an error.
func (h *Host) Invoke(ctx context.Context, contract types.Address, fn string, args []types.ScVal) (types.ScVal, error) {
	id, err := contractID(contract)
	if err != nil {
		return nil, err
	}
	return h.call(ctx, id, fn, args, false)
}

// TryInvoke is Invoke for callers that recover from the callee failing.
// Recoverable failures are returned as an Error value with a nil error;
// budget exhaustion and internal errors are still returned as errors.
func (h *Host) TryInvoke(ctx context.Context, contract types.Address, fn string, args []types.ScVal) (types.ScVal, error) {
	res, err := h.Invoke(ctx, contract, fn, args)
	return recoverError(res, err)
}

func recoverError(res types.ScVal, err error) (types.ScVal, error) {
	if err == nil {
		return res, nil
	}
	if !types.IsRecoverable(err) {
		return nil, err
	}
	return types.AsHostError(err).Err, nil
}

func contractID(a types.Address) (types.Hash, error) {
	id, err := a.ContractID()
	if err != nil {
		return types.Hash{}, types.WrapError(types.ErrValue, types.CodeInvalidInput, err, "cannot call %s", a)
	}
	return id, nil
}

// call runs one frame. Reserved functions are only reachable when internal
// is set.
func (h *Host) call(ctx context.Context, id types.Hash, fn string, args []types.ScVal, internal bool) (types.ScVal, error) {
	if err := types.ValidateSymbol(fn); err != nil {
		return nil, err
	}
	if strings.HasPrefix(fn, "__") && !internal {
		return nil, types.Errorf(types.ErrContext, types.CodeInvalidAction, "%s cannot be invoked directly", fn)
	}
	if len(h.frames) >= h.cfg.MaxCallDepth {
		return nil, types.Errorf(types.ErrContext, types.CodeDepthExceeded, "call depth limit %d reached", h.cfg.MaxCallDepth)
	}
	inst, err := h.storage.Instance(id)
	if err != nil {
		return nil, err
	}
	t, err := h.resolve(ctx, inst.Executable)
	if err != nil {
		return nil, err
	}
	if !t.reentrant {
		for _, f := range h.frames {
			if f.contract == id {
				return nil, types.Errorf(types.ErrContext, types.CodeReentryRefused, "contract %s is already executing", id)
			}
		}
	}
	arity, ok := t.arity(fn)
	if !ok {
		return nil, types.Errorf(types.ErrContext, types.CodeMissingExport, "function %s is not exported", fn)
	}
	if arity != len(args) {
		return nil, types.Errorf(types.ErrContext, types.CodeArityMismatch, "%s takes %d arguments, got %d", fn, arity, len(args))
	}
	if t.module != nil {
		if err := t.module.ABI.CheckArgs(fn, args); err != nil {
			return nil, err
		}
	}
	if err := h.budget.Charge(budget.InvokeFrame, uint64(len(args))); err != nil {
		return nil, err
	}

	f := &frame{
		contract: id,
		fn:       fn,
		storage:  h.storage.Mark(),
		events:   h.events.Mark(),
		auth:     h.auth.Snapshot(),
	}
	f.objects = h.objects.PushFrame()
	h.frames = append(h.frames, f)
	h.auth.PushFrame(id, types.Symbol(fn), args)

	res, err := h.run(ctx, t, fn, args)

	h.auth.PopFrame()
	h.objects.PopFrame(f.objects)
	h.frames = h.frames[:len(h.frames)-1]
	if err != nil {
		h.storage.Rollback(f.storage)
		h.events.Rollback(f.events)
		h.auth.Restore(f.auth)
		h.logger.Debug("contract call failed",
			zap.Stringer("contract", id),
			zap.String("function", fn),
			zap.Int("depth", len(h.frames)),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// run executes the top frame and converts its result while the frame's
// objects are still live.
func (h *Host) run(ctx context.Context, t *target, fn string, args []types.ScVal) (types.ScVal, error) {
	vals := make([]types.Val, len(args))
	for i, a := range args {
		v, err := h.objects.FromScVal(a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	var (
		res types.Val
		err error
	)
	if t.native != nil {
		res, err = invokeNative(ctx, h, t.native, fn, vals)
	} else {
		res, err = h.runWasm(ctx, t.module, fn, vals)
	}
	if err != nil {
		return nil, err
	}
	if e, ok := res.AsError(); ok {
		return nil, types.Errorf(e.Category, e.Code, "%s returned an error", fn)
	}
	if err := h.objects.Validate(res); err != nil {
		return nil, err
	}
	return h.objects.ToScVal(res)
}

func (h *Host) runWasm(ctx context.Context, m *wasi.Module, fn string, args []types.Val) (types.Val, error) {
	if err := h.budget.Charge(budget.InstantiateModule, uint64(m.Size)); err != nil {
		return 0, err
	}
	if err := h.budget.Add(budget.MemoryBytes, m.MemoryBytes()); err != nil {
		return 0, err
	}
	inst, err := h.engine.Instantiate(ctx, m)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := inst.Close(ctx); cerr != nil {
			h.logger.Warn("failed to close instance", zap.Error(cerr))
		}
	}()
	return inst.Call(ctx, h, fn, args)
}

// Fuel implements wasi.Handler.
func (h *Host) Fuel() uint64 {
	return h.budget.Fuel()
}

// ConsumeFuel implements wasi.Handler.
func (h *Host) ConsumeFuel(n uint64) error {
	return h.budget.Charge(budget.WasmInsn, n)
}
