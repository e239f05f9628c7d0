package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/auth"
	"github.com/govm-net/vmhost/types"
)

// counter keeps the constructor argument in instance storage.
func counter() NativeFuncs {
	return NativeFuncs{
		types.FnConstructor: fn(1, func(ctx context.Context, h *Host, args []types.Val) (types.Val, error) {
			return h.Call(ctx, types.ModuleLedger, "put_contract_data", sym("n"), args[0], durability(types.Instance))
		}),
		"get": fn(0, func(ctx context.Context, h *Host, _ []types.Val) (types.Val, error) {
			return h.Call(ctx, types.ModuleLedger, "get_contract_data", sym("n"), durability(types.Instance))
		}),
	}
}

// createAuth authorizes deployer, as the source account, to create exec with
// salt once per entry.
func createAuth(deployer types.Address, exec types.ContractExecutable, salt types.Hash, n int) *auth.Manager {
	root := types.AuthorizedInvocation{Function: types.AuthorizedFunction{
		Kind:     types.AuthCreateContract,
		Contract: deployer,
		Function: "create_contract",
		Args:     []types.ScVal{exec, types.Bytes(salt[:])},
	}}
	entries := make([]types.AuthorizationEntry, n)
	for i := range entries {
		entries[i] = types.AuthorizationEntry{
			Credentials:    types.Credentials{Kind: types.CredentialsSourceAccount},
			RootInvocation: root,
		}
	}
	return auth.NewEnforcing(entries, deployer, nil)
}

func nativeExec(f *fixture, name string, c NativeContract) types.ContractExecutable {
	id := NativeID(name)
	f.natives[id] = c
	return types.ContractExecutable{Kind: types.ExecutableNative, Hash: id}
}

func TestCreateContractRunsConstructor(t *testing.T) {
	f := newFixture(t)
	exec := nativeExec(f, "counter", counter())
	deployer := types.AccountAddress(types.Hash{0xde})
	salt := types.Hash{1}
	f.cfg.Source = deployer

	h := f.host(func(o *Options) { o.Auth = createAuth(deployer, exec, salt, 2) })
	addr, err := h.CreateContract(ctx, deployer, exec, salt, []types.ScVal{types.U32(5)})
	require.NoError(t, err)

	want, err := ContractID(testLedger.NetworkID, deployer, salt)
	require.NoError(t, err)
	assert.Equal(t, types.ContractAddress(want), addr)

	got, err := h.Invoke(ctx, addr, "get", nil)
	require.NoError(t, err)
	assert.Equal(t, types.U32(5), got)

	_, err = h.CreateContract(ctx, deployer, exec, salt, []types.ScVal{types.U32(6)})
	errIs(t, err, types.ErrStorage, types.CodeExistingValue)

	_, err = h.Invoke(ctx, addr, types.FnConstructor, []types.ScVal{types.U32(7)})
	errIs(t, err, types.ErrContext, types.CodeInvalidAction)

	require.NoError(t, h.Commit())
	got, err = f.host().Invoke(ctx, addr, "get", nil)
	require.NoError(t, err)
	assert.Equal(t, types.U32(5), got, "the deployment survives commit")
}

func TestContractIDDependsOnEveryInput(t *testing.T) {
	base, err := ContractID(types.Hash{1}, types.AccountAddress(types.Hash{2}), types.Hash{3})
	require.NoError(t, err)
	for name, id := range map[string]func() (types.Hash, error){
		"network": func() (types.Hash, error) {
			return ContractID(types.Hash{9}, types.AccountAddress(types.Hash{2}), types.Hash{3})
		},
		"deployer": func() (types.Hash, error) {
			return ContractID(types.Hash{1}, types.AccountAddress(types.Hash{9}), types.Hash{3})
		},
		"kind": func() (types.Hash, error) {
			return ContractID(types.Hash{1}, types.ContractAddress(types.Hash{2}), types.Hash{3})
		},
		"salt": func() (types.Hash, error) {
			return ContractID(types.Hash{1}, types.AccountAddress(types.Hash{2}), types.Hash{9})
		},
	} {
		other, err := id()
		require.NoError(t, err)
		assert.NotEqual(t, base, other, name)
	}
}

func TestCreateContractFailures(t *testing.T) {
	deployer := types.AccountAddress(types.Hash{0xde})
	salt := types.Hash{2}

	t.Run("no authorization", func(t *testing.T) {
		f := newFixture(t)
		exec := nativeExec(f, "counter", counter())
		_, err := f.host().CreateContract(ctx, deployer, exec, salt, []types.ScVal{types.U32(1)})
		errIs(t, err, types.ErrAuth, types.CodeInvalidAction)
	})

	t.Run("arguments without constructor", func(t *testing.T) {
		f := newFixture(t)
		exec := nativeExec(f, "plain", NativeFuncs{"get": fn(0, func(context.Context, *Host, []types.Val) (types.Val, error) { return types.VoidVal, nil })})
		h := f.host(func(o *Options) { o.Auth = createAuth(deployer, exec, salt, 1) })
		_, err := h.CreateContract(ctx, deployer, exec, salt, []types.ScVal{types.U32(1)})
		errIs(t, err, types.ErrContext, types.CodeArityMismatch)
		require.NoError(t, h.Commit())
		assert.Zero(t, f.snap.Len())
	})

	t.Run("failing constructor", func(t *testing.T) {
		f := newFixture(t)
		exec := nativeExec(f, "broken", NativeFuncs{
			types.FnConstructor: fn(0, func(ctx context.Context, h *Host, _ []types.Val) (types.Val, error) {
				if _, err := h.Call(ctx, types.ModuleLedger, "put_contract_data", sym("k"), sym("v"), durability(types.Persistent)); err != nil {
					return 0, err
				}
				return h.Call(ctx, types.ModuleContext, "fail_with_error", types.ValFromError(types.ContractError(9)))
			}),
		})
		h := f.host(func(o *Options) { o.Auth = createAuth(deployer, exec, salt, 1) })
		_, err := h.CreateContract(ctx, deployer, exec, salt, nil)
		require.ErrorIs(t, err, types.ContractError(9))
		require.NoError(t, h.Commit())
		assert.Zero(t, f.snap.Len(), "neither the instance nor the constructor writes remain")
	})

	t.Run("unregistered native", func(t *testing.T) {
		f := newFixture(t)
		exec := types.ContractExecutable{Kind: types.ExecutableNative, Hash: NativeID("missing")}
		h := f.host(func(o *Options) { o.Auth = createAuth(deployer, exec, salt, 1) })
		_, err := h.CreateContract(ctx, deployer, exec, salt, nil)
		errIs(t, err, types.ErrStorage, types.CodeMissingValue)
	})
}

// account is a custom account contract accepting the signature "ok".
func account(seen *[]types.ScVal) NativeFuncs {
	return NativeFuncs{
		types.FnCheckAuth: fn(3, func(ctx context.Context, h *Host, args []types.Val) (types.Val, error) {
			sig, err := h.Objects().Bytes(args[1])
			if err != nil {
				return 0, err
			}
			contexts, err := h.Objects().ToScVal(args[2])
			if err != nil {
				return 0, err
			}
			*seen = append(*seen, contexts)
			if string(sig) != "ok" {
				return h.Call(ctx, types.ModuleContext, "fail_with_error", types.ValFromError(types.ContractError(1)))
			}
			return types.VoidVal, nil
		}),
	}
}

func TestCustomAccountAuthorization(t *testing.T) {
	for _, tc := range []struct {
		signature string
		ok        bool
	}{
		{"ok", true},
		{"forged", false},
	} {
		t.Run(tc.signature, func(t *testing.T) {
			f := newFixture(t)
			var seen []types.ScVal
			acct := f.native("account", account(&seen))
			guarded := f.native("guarded", NativeFuncs{
				"f": fn(0, func(ctx context.Context, h *Host, _ []types.Val) (types.Val, error) {
					a, err := h.Objects().AddAddress(acct)
					if err != nil {
						return 0, err
					}
					return h.Call(ctx, types.ModuleAuth, "require_auth", a)
				}),
			})
			root := types.AuthorizedInvocation{Function: types.AuthorizedFunction{
				Kind: types.AuthContractFn, Contract: guarded, Function: "f", Args: []types.ScVal{},
			}}
			am := auth.NewEnforcing([]types.AuthorizationEntry{{
				Credentials: types.Credentials{
					Kind:                      types.CredentialsAddress,
					Address:                   acct,
					Nonce:                     7,
					SignatureExpirationLedger: testLedger.Sequence,
					Signature:                 types.Bytes(tc.signature),
				},
				RootInvocation: root,
			}}, types.Address{}, nil)

			_, err := f.host(func(o *Options) { o.Auth = am }).Invoke(ctx, guarded, "f", []types.ScVal{})
			require.Len(t, seen, 1, "the account contract is consulted once")
			assert.Equal(t, types.Vec{auth.FunctionVal(root.Function)}, seen[0])
			if tc.ok {
				require.NoError(t, err)
				return
			}
			errIs(t, err, types.ErrAuth, types.CodeSignatureInvalid)
		})
	}
}

func TestExpiredSignatureIsRejected(t *testing.T) {
	f := newFixture(t)
	var seen []types.ScVal
	acct := f.native("account", account(&seen))
	guarded := f.native("guarded", NativeFuncs{
		"f": fn(0, func(ctx context.Context, h *Host, _ []types.Val) (types.Val, error) {
			a, err := h.Objects().AddAddress(acct)
			if err != nil {
				return 0, err
			}
			return h.Call(ctx, types.ModuleAuth, "require_auth", a)
		}),
	})
	am := auth.NewEnforcing([]types.AuthorizationEntry{{
		Credentials: types.Credentials{
			Kind:                      types.CredentialsAddress,
			Address:                   acct,
			SignatureExpirationLedger: testLedger.Sequence - 1,
			Signature:                 types.Bytes("ok"),
		},
		RootInvocation: types.AuthorizedInvocation{Function: types.AuthorizedFunction{
			Kind: types.AuthContractFn, Contract: guarded, Function: "f", Args: []types.ScVal{},
		}},
	}}, types.Address{}, nil)

	_, err := f.host(func(o *Options) { o.Auth = am }).Invoke(ctx, guarded, "f", []types.ScVal{})
	errIs(t, err, types.ErrAuth, types.CodeExpired)
	assert.Empty(t, seen)
}
