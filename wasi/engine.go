// Package wasi runs contract modules on wazero.
//
// An Engine owns one wazero runtime with every host import module registered.
// Modules are compiled once and cached by code hash. Each call frame gets a
// fresh anonymous instance, so guests never share mutable state. Host imports
// are dispatched to the Handler carried by the call context.
package wasi

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/abi"
	"github.com/govm-net/vmhost/types"
)

// PageSize is the wasm linear memory page size.
const PageSize = 65536

// Handler executes host imports on behalf of a running guest and pays for the
// guest instructions it runs.
type Handler interface {
	HostCall(ctx context.Context, fn types.HostFunction, mem Memory, args []uint64) (uint64, error)
	// Fuel is how many guest instructions may still run.
	Fuel() uint64
	// ConsumeFuel charges n executed guest instructions.
	ConsumeFuel(n uint64) error
}

// Config tunes the wazero runtime.
type Config struct {
	// Interpreter selects the interpreter instead of the compiler.
	Interpreter bool `yaml:"interpreter"`
	// MemoryLimitPages caps guest linear memory.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{Interpreter: true, MemoryLimitPages: 256}
}

// Engine compiles and instantiates contract modules.
type Engine struct {
	runtime wazero.Runtime
	logger  *zap.Logger

	mu       sync.Mutex
	compiled map[types.Hash]*Module
}

// NewEngine creates a runtime and registers the host import modules.
func NewEngine(ctx context.Context, cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := wazero.NewRuntimeConfig()
	if cfg.Interpreter {
		rc = wazero.NewRuntimeConfigInterpreter()
	}
	rc = rc.WithCustomSections(true).
		WithCloseOnContextDone(true).
		WithCoreFeatures(api.CoreFeaturesV2 &^ api.CoreFeatureSIMD)
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	e := &Engine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, rc),
		logger:   logger,
		compiled: make(map[types.Hash]*Module),
	}
	if err := e.registerHostModules(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

func (e *Engine) registerHostModules(ctx context.Context) error {
	builders := make(map[string]wazero.HostModuleBuilder)
	var order []string
	for _, fn := range types.HostFunctions {
		b, ok := builders[fn.Module]
		if !ok {
			b = e.runtime.NewHostModuleBuilder(fn.Module)
			builders[fn.Module] = b
			order = append(order, fn.Module)
		}
		params := make([]api.ValueType, fn.Args)
		for i := range params {
			params[i] = api.ValueTypeI64
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(hostFunc(fn), params, []api.ValueType{api.ValueTypeI64}).
			Export(fn.Name)
	}
	for _, name := range order {
		if _, err := builders[name].Instantiate(ctx); err != nil {
			return fmt.Errorf("failed to instantiate host module %s: %w", name, err)
		}
	}
	return nil
}

type callKey struct{}

// callState is the per-frame dispatch target.
type callState struct {
	handler Handler
	trap    error
	fuel    api.MutableGlobal
	// start is the fuel value at the last refuel or settle.
	start int64
}

// refuel hands the guest whatever the budget can still pay for.
func (cs *callState) refuel() {
	f := cs.handler.Fuel()
	if f > math.MaxInt64 {
		f = math.MaxInt64
	}
	cs.start = int64(f)
	cs.fuel.Set(f)
}

// settle charges the instructions run since the last refuel or settle. Fuel
// below zero means the metering function trapped and the charge exceeds the
// budget.
func (cs *callState) settle() error {
	left := int64(cs.fuel.Get())
	used := uint64(cs.start) - uint64(left)
	cs.start = left
	return cs.handler.ConsumeFuel(used)
}

func hostFunc(fn types.HostFunction) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		cs, ok := ctx.Value(callKey{}).(*callState)
		if !ok || cs.handler == nil {
			panic(types.Errorf(types.ErrContext, types.CodeInternal, "%s.%s called outside a contract call", fn.Module, fn.Name))
		}
		if err := cs.settle(); err != nil {
			cs.trap = err
			panic(err)
		}
		args := append([]uint64{}, stack[:fn.Args]...)
		res, err := cs.handler.HostCall(ctx, fn, NewMemory(mod.Memory()), args)
		if err != nil {
			cs.trap = err
			panic(err)
		}
		cs.refuel()
		stack[0] = res
	}
}

// Module is a compiled, verified contract module.
type Module struct {
	Hash     types.Hash
	Size     int
	ABI      *abi.ABI
	compiled wazero.CompiledModule
	// exports maps function name to parameter count.
	exports map[string]int
	// minPages is the initial linear memory size.
	minPages uint32
}

// Exports returns the exported function names.
func (m *Module) Exports() []string {
	out := make([]string, 0, len(m.exports))
	for name := range m.exports {
		out = append(out, name)
	}
	return out
}

// Arity returns the parameter count of an exported function.
func (m *Module) Arity(fn string) (int, bool) {
	n, ok := m.exports[fn]
	return n, ok
}

// MemoryBytes is the initial linear memory size of an instance.
func (m *Module) MemoryBytes() uint64 {
	return uint64(m.minPages) * PageSize
}

func invalidModule(format string, args ...any) error {
	return types.Errorf(types.ErrWasmVm, types.CodeInvalidModule, format, args...)
}

// Compile validates code, instruments it for metering and caches the compiled
// module. Only i64 parameters and a single i64 result are allowed on exports
// and imports, and every import must name a host function with the matching
// arity.
func (e *Engine) Compile(ctx context.Context, code []byte) (*Module, error) {
	hash := types.Hash(sha256.Sum256(code))
	e.mu.Lock()
	m, ok := e.compiled[hash]
	e.mu.Unlock()
	if ok {
		return m, nil
	}

	metered, err := instrument(code)
	if err != nil {
		return nil, err
	}
	cm, err := e.runtime.CompileModule(ctx, metered)
	if err != nil {
		return nil, types.WrapError(types.ErrWasmVm, types.CodeInvalidModule, err, "compile")
	}
	m, err = inspect(hash, len(code), cm)
	if err != nil {
		_ = cm.Close(ctx)
		return nil, err
	}

	e.mu.Lock()
	if prev, ok := e.compiled[hash]; ok {
		e.mu.Unlock()
		_ = cm.Close(ctx)
		return prev, nil
	}
	e.compiled[hash] = m
	e.mu.Unlock()
	e.logger.Debug("module compiled", zap.Stringer("hash", hash), zap.Int("size", len(code)))
	return m, nil
}

func i64Only(ts []api.ValueType) bool {
	for _, t := range ts {
		if t != api.ValueTypeI64 {
			return false
		}
	}
	return true
}

func inspect(hash types.Hash, size int, cm wazero.CompiledModule) (*Module, error) {
	for _, def := range cm.ImportedFunctions() {
		module, name, _ := def.Import()
		hf, ok := types.LookupHostFunction(module, name)
		if !ok {
			return nil, invalidModule("unknown import %s.%s", module, name)
		}
		if len(def.ParamTypes()) != hf.Args || !i64Only(def.ParamTypes()) ||
			len(def.ResultTypes()) != 1 || !i64Only(def.ResultTypes()) {
			return nil, invalidModule("import %s.%s has the wrong signature", module, name)
		}
	}
	if len(cm.ImportedMemories()) > 0 {
		return nil, invalidModule("modules may not import memory")
	}

	m := &Module{Hash: hash, Size: size, compiled: cm, exports: make(map[string]int)}
	for name, def := range cm.ExportedFunctions() {
		if !i64Only(def.ParamTypes()) || len(def.ResultTypes()) != 1 || !i64Only(def.ResultTypes()) {
			return nil, invalidModule("export %s must take i64 values and return one i64", name)
		}
		m.exports[name] = len(def.ParamTypes())
	}
	for _, mem := range cm.ExportedMemories() {
		m.minPages = mem.Min()
	}

	var sections []abi.Section
	for _, cs := range cm.CustomSections() {
		sections = append(sections, abi.Section{Name: cs.Name(), Data: cs.Data()})
	}
	a, err := abi.Parse(sections)
	if err != nil {
		return nil, err
	}
	m.ABI = a
	return m, nil
}

// Instance is one guest instance serving one call frame.
type Instance struct {
	mod    api.Module
	module *Module
	fuel   api.MutableGlobal
}

// Instantiate creates a fresh, anonymous instance of m.
func (e *Engine) Instantiate(ctx context.Context, m *Module) (*Instance, error) {
	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, classify(err, nil, "instantiate")
	}
	fuel, ok := mod.ExportedGlobal(FuelExport).(api.MutableGlobal)
	if !ok {
		_ = mod.Close(ctx)
		return nil, types.Errorf(types.ErrWasmVm, types.CodeInternal, "module %s is not instrumented", m.Hash)
	}
	return &Instance{mod: mod, module: m, fuel: fuel}, nil
}

// Memory returns the instance linear memory.
func (i *Instance) Memory() Memory {
	return NewMemory(i.mod.Memory())
}

// Call invokes an exported function with host imports dispatched to h.
func (i *Instance) Call(ctx context.Context, h Handler, fn string, args []types.Val) (types.Val, error) {
	arity, ok := i.module.exports[fn]
	if !ok {
		return 0, types.Errorf(types.ErrContext, types.CodeMissingExport, "function %s is not exported", fn)
	}
	if arity != len(args) {
		return 0, types.Errorf(types.ErrContext, types.CodeArityMismatch, "%s takes %d arguments, got %d", fn, arity, len(args))
	}
	params := make([]uint64, len(args))
	for j, a := range args {
		params[j] = uint64(a)
	}
	cs := &callState{handler: h, fuel: i.fuel}
	cs.refuel()
	res, err := i.mod.ExportedFunction(fn).Call(context.WithValue(ctx, callKey{}, cs), params...)
	if serr := cs.settle(); serr != nil {
		return 0, serr
	}
	if err != nil {
		return 0, classify(err, cs, fn)
	}
	return types.Val(res[0]), nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// classify maps a wazero failure to a host error. Host errors raised inside
// imports win over the wrapping wazero adds.
func classify(err error, cs *callState, what string) error {
	if cs != nil && cs.trap != nil {
		return cs.trap
	}
	var he *types.HostError
	if errors.As(err, &he) {
		return he
	}
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case sys.ExitCodeDeadlineExceeded, sys.ExitCodeContextCanceled:
			return types.WrapError(types.ErrContext, types.CodeInternal, err, "%s interrupted", what)
		}
	}
	return types.WrapError(types.ErrWasmVm, types.CodeTrap, err, "%s trapped", what)
}

// Close releases the runtime and every compiled module.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.compiled = make(map[types.Hash]*Module)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}
