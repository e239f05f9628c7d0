package vm

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/abi"
	"github.com/govm-net/vmhost/api"
	"github.com/govm-net/vmhost/host"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/ledger/memory"
	"github.com/govm-net/vmhost/metrics"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/vmtest"
)

var (
	ctx   = context.Background()
	owner = types.AccountAddress(types.Hash{0xaa})
)

func sym(s string) types.Val {
	v, ok := types.SmallSymbol(s)
	if !ok {
		panic(s)
	}
	return v
}

func durability(d types.Durability) types.Val { return types.ValFromU32(uint32(d)) }

// tally counts bumps made by the owner recorded at construction.
func tally() host.NativeFuncs {
	return host.NativeFuncs{
		types.FnConstructor: {Arity: 1, Fn: func(ctx context.Context, h *host.Host, args []types.Val) (types.Val, error) {
			return h.Call(ctx, types.ModuleLedger, "put_contract_data", sym("owner"), args[0], durability(types.Instance))
		}},
		"bump": {Arity: 1, Fn: func(ctx context.Context, h *host.Host, args []types.Val) (types.Val, error) {
			o, err := h.Call(ctx, types.ModuleLedger, "get_contract_data", sym("owner"), durability(types.Instance))
			if err != nil {
				return 0, err
			}
			if _, err := h.Call(ctx, types.ModuleAuth, "require_auth", o); err != nil {
				return 0, err
			}
			has, err := h.Call(ctx, types.ModuleLedger, "has_contract_data", sym("n"), durability(types.Persistent))
			if err != nil {
				return 0, err
			}
			var n uint32
			if ok, _ := has.AsBool(); ok {
				cur, err := h.Call(ctx, types.ModuleLedger, "get_contract_data", sym("n"), durability(types.Persistent))
				if err != nil {
					return 0, err
				}
				n, _ = cur.AsU32()
			}
			by, _ := args[0].AsU32()
			next := types.ValFromU32(n + by)
			if _, err := h.Call(ctx, types.ModuleLedger, "put_contract_data", sym("n"), next, durability(types.Persistent)); err != nil {
				return 0, err
			}
			topics, err := h.Objects().FromScVal(types.Vec{types.Symbol("bump")})
			if err != nil {
				return 0, err
			}
			if _, err := h.Call(ctx, types.ModuleContext, "contract_event", topics, next); err != nil {
				return 0, err
			}
			return next, nil
		}},
	}
}

func createEntry(exec types.ContractExecutable, salt types.Hash) types.AuthorizationEntry {
	return types.AuthorizationEntry{
		Credentials: types.Credentials{Kind: types.CredentialsSourceAccount},
		RootInvocation: types.AuthorizedInvocation{Function: types.AuthorizedFunction{
			Kind:     types.AuthCreateContract,
			Contract: owner,
			Function: "create_contract",
			Args:     []types.ScVal{exec, types.Bytes(salt[:])},
		}},
	}
}

func newEngine(t *testing.T, cfg api.Config, opts Options) *Engine {
	t.Helper()
	if opts.Natives == nil {
		opts.Natives = map[types.Hash]host.NativeContract{host.NativeID("tally"): tally()}
	}
	e, err := New(ctx, cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func deployTally(t *testing.T, e *Engine, salt types.Hash) types.Address {
	t.Helper()
	exec := types.ContractExecutable{Kind: types.ExecutableNative, Hash: host.NativeID("tally")}
	addr, res, err := e.Deploy(ctx, api.DeployRequest{
		Deployer:   owner,
		Executable: exec,
		Salt:       salt,
		Args:       []types.ScVal{owner},
		Source:     owner,
		Auth:       []types.AuthorizationEntry{createEntry(exec, salt)},
	})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	return addr
}

func TestInvokeCommitsOnSuccess(t *testing.T) {
	snap := memory.New()
	e := newEngine(t, api.DefaultConfig(), Options{Snapshot: snap})
	c := deployTally(t, e, types.Hash{1})

	cfg := api.DefaultConfig()
	want, err := host.ContractID(cfg.NetworkID(), owner, types.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, types.ContractAddress(want), c)

	req := api.InvokeRequest{Contract: c, Function: "bump", Args: []types.ScVal{types.U32(3)}, Source: owner}

	// The owner is the source account but no entry authorizes the call.
	res, err := e.Invoke(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrAuth, Code: types.CodeInvalidAction})
	assert.Empty(t, res.Events)
	assert.Positive(t, res.Budget.CPUInstructions)

	sim, err := e.Simulate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.U32(3), sim.Value)
	require.Len(t, sim.RecordedAuth, 1)
	assert.Equal(t, types.CredentialsSourceAccount, sim.RecordedAuth[0].Credentials.Kind)
	assert.Equal(t, types.Symbol("bump"), sim.RecordedAuth[0].RootInvocation.Function.Function)

	before := snap.Len()
	req.Auth = sim.RecordedAuth
	res, err = e.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.U32(3), res.Value, "the simulation committed nothing")
	require.Len(t, res.Events, 1)
	assert.Equal(t, []types.ScVal{types.Symbol("bump")}, res.Events[0].Topics)
	assert.Equal(t, types.U32(3), res.Events[0].Data)
	assert.Equal(t, before+1, snap.Len())

	res, err = e.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.U32(6), res.Value)
}

func TestDeployTwiceFails(t *testing.T) {
	e := newEngine(t, api.DefaultConfig(), Options{Snapshot: memory.New()})
	deployTally(t, e, types.Hash{2})

	exec := types.ContractExecutable{Kind: types.ExecutableNative, Hash: host.NativeID("tally")}
	_, res, err := e.Deploy(ctx, api.DeployRequest{
		Deployer: owner, Executable: exec, Salt: types.Hash{2}, Args: []types.ScVal{owner},
		Source: owner, Auth: []types.AuthorizationEntry{createEntry(exec, types.Hash{2})},
	})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrStorage, Code: types.CodeExistingValue})
	assert.Equal(t, err, res.Err)
}

// echo returns its u32 argument.
func echo(protocol uint32) []byte {
	m := vmtest.NewModule()
	m.ContractFunc("echo", 1, vmtest.LocalGet(0))
	m.Contract(abi.EnvMeta{Protocol: protocol}, nil, &abi.ABI{Functions: []abi.Function{{
		Name:   "echo",
		Inputs: []abi.Parameter{{Name: "x", Type: "u32"}},
		Output: "u32",
	}}})
	return m.Bytes()
}

func TestWasmContract(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	cfg := api.DefaultConfig()
	e := newEngine(t, cfg, Options{Snapshot: memory.New(), Metrics: m})

	hash, err := e.UploadWasm(ctx, echo(cfg.Ledger.ProtocolVersion))
	require.NoError(t, err)
	again, err := e.UploadWasm(ctx, echo(cfg.Ledger.ProtocolVersion))
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	exec := types.ContractExecutable{Kind: types.ExecutableWasm, Hash: hash}
	c, _, err := e.Deploy(ctx, api.DeployRequest{
		Deployer: owner, Executable: exec, Salt: types.Hash{3},
		Source: owner, Auth: []types.AuthorizationEntry{createEntry(exec, types.Hash{3})},
	})
	require.NoError(t, err)

	res, err := e.Invoke(ctx, api.InvokeRequest{Contract: c, Function: "echo", Args: []types.ScVal{types.U32(41)}})
	require.NoError(t, err)
	assert.Equal(t, types.U32(41), res.Value)

	_, err = e.Invoke(ctx, api.InvokeRequest{Contract: c, Function: "echo", Args: []types.ScVal{types.String("x")}})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrContext, Code: types.CodeTypeMismatch})

	_, err = e.UploadWasm(ctx, echo(cfg.Ledger.ProtocolVersion+1))
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeVersionUnsupported})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["vmhost_invocations_total"])
	assert.True(t, names["vmhost_wasm_uploads_total"])
	assert.True(t, names["vmhost_failures_total"])
}

func TestUploadSizeLimit(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.MaxCodeSize = 16
	e := newEngine(t, cfg, Options{Snapshot: memory.New()})
	_, err := e.UploadWasm(ctx, echo(cfg.Ledger.ProtocolVersion))
	assert.ErrorIs(t, err, types.Error{Category: types.ErrWasmVm, Code: types.CodeExceededLimit})
}

func TestBudgetLimitsFromConfig(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Limits.WriteEntries = 1
	e := newEngine(t, cfg, Options{Snapshot: memory.New()})

	exec := types.ContractExecutable{Kind: types.ExecutableNative, Hash: host.NativeID("tally")}
	c, _, err := e.Deploy(ctx, api.DeployRequest{
		Deployer: owner, Executable: exec, Salt: types.Hash{4}, Args: []types.ScVal{owner},
		Source: owner, Auth: []types.AuthorizationEntry{createEntry(exec, types.Hash{4})},
	})
	require.NoError(t, err, "deploying writes only the instance")

	_, err = e.Simulate(ctx, api.InvokeRequest{Contract: c, Function: "bump", Args: []types.ScVal{types.U32(1)}, Source: owner})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrBudget, Code: types.CodeBudgetExceeded})
}

func TestTxSizeLimit(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Limits.TxSizeBytes = 1024
	e := newEngine(t, cfg, Options{Snapshot: memory.New()})
	c := deployTally(t, e, types.Hash{6})

	req := api.InvokeRequest{Contract: c, Function: "bump", Args: []types.ScVal{types.Bytes(make([]byte, 1100))}, Source: owner}
	res, err := e.Simulate(ctx, req)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrBudget, Code: types.CodeBudgetExceeded})
	assert.Greater(t, res.Budget.TxSizeBytes, uint64(1100))

	_, err = e.UploadWasm(ctx, echo(cfg.Ledger.ProtocolVersion))
	require.NoError(t, err)
	_, err = e.UploadWasm(ctx, append(echo(cfg.Ledger.ProtocolVersion), make([]byte, 1100)...))
	assert.ErrorIs(t, err, types.Error{Category: types.ErrBudget, Code: types.CodeBudgetExceeded})
}

// spinner exports a function that loops without calling the host.
func spinner(protocol uint32) []byte {
	m := vmtest.NewModule()
	m.ContractFunc("spin", 0, vmtest.Loop(), vmtest.Br(0), vmtest.End(), vmtest.Void())
	m.Contract(abi.EnvMeta{Protocol: protocol}, nil, &abi.ABI{Functions: []abi.Function{{Name: "spin"}}})
	return m.Bytes()
}

func TestGuestLoopStopsAtBudget(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Limits.CPUInstructions = 2_000_000
	e := newEngine(t, cfg, Options{Snapshot: memory.New()})

	hash, err := e.UploadWasm(ctx, spinner(cfg.Ledger.ProtocolVersion))
	require.NoError(t, err)
	exec := types.ContractExecutable{Kind: types.ExecutableWasm, Hash: hash}
	c, _, err := e.Deploy(ctx, api.DeployRequest{
		Deployer: owner, Executable: exec, Salt: types.Hash{7},
		Source: owner, Auth: []types.AuthorizationEntry{createEntry(exec, types.Hash{7})},
	})
	require.NoError(t, err)

	res, err := e.Invoke(ctx, api.InvokeRequest{Contract: c, Function: "spin"})
	assert.ErrorIs(t, err, types.Error{Category: types.ErrBudget, Code: types.CodeBudgetExceeded})
	assert.Greater(t, res.Budget.CPUInstructions, cfg.Limits.CPUInstructions)
}

func TestCloseLedger(t *testing.T) {
	e := newEngine(t, api.DefaultConfig(), Options{Snapshot: memory.New()})
	seq := e.Ledger().Sequence
	info := e.CloseLedger(1_700_000_000)
	assert.Equal(t, seq+1, info.Sequence)
	assert.Equal(t, uint64(1_700_000_000), e.Ledger().Timestamp)
	def := api.DefaultConfig()
	assert.Equal(t, def.NetworkID(), info.NetworkID)
}

func TestStateSurvivesRestart(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Ledger.Backend = ledger.LevelDBBackend
	cfg.Ledger.Path = t.TempDir()

	e, err := New(ctx, cfg, Options{Natives: map[types.Hash]host.NativeContract{host.NativeID("tally"): tally()}})
	require.NoError(t, err)
	c := deployTally(t, e, types.Hash{5})
	require.NoError(t, e.Close(ctx))

	e = newEngine(t, cfg, Options{})
	res, err := e.Simulate(ctx, api.InvokeRequest{Contract: c, Function: "bump", Args: []types.ScVal{types.U32(2)}, Source: owner})
	require.NoError(t, err)
	assert.Equal(t, types.U32(2), res.Value)
}

func TestInvalidConfig(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.MaxCallDepth = 0
	_, err := New(ctx, cfg, Options{})
	assert.ErrorIs(t, err, api.ErrInvalidConfig)
}
