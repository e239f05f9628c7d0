package host

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/govm-net/vmhost/types"
)

// NativeContract is a contract implemented in Go. It runs inside a host frame
// exactly like a wasm contract: arguments and results are Vals owned by that
// frame, and host functions are reached through Host.Call.
type NativeContract interface {
	// Functions maps every callable function to its parameter count.
	Functions() map[string]int
	Invoke(ctx context.Context, h *Host, fn string, args []types.Val) (types.Val, error)
}

// Reentrant is implemented by native contracts that accept being called while
// already on the call stack.
type Reentrant interface {
	AllowReentry() bool
}

// NativeFunc is one function of a NativeFuncs contract.
type NativeFunc struct {
	Arity int
	Fn    func(ctx context.Context, h *Host, args []types.Val) (types.Val, error)
}

// NativeFuncs is a NativeContract assembled from functions.
type NativeFuncs map[string]NativeFunc

// Functions implements NativeContract.
func (n NativeFuncs) Functions() map[string]int {
	out := make(map[string]int, len(n))
	for name, f := range n {
		out[name] = f.Arity
	}
	return out
}

// Invoke implements NativeContract.
func (n NativeFuncs) Invoke(ctx context.Context, h *Host, fn string, args []types.Val) (types.Val, error) {
	f, ok := n[fn]
	if !ok {
		return 0, types.Errorf(types.ErrContext, types.CodeMissingExport, "function %s is not exported", fn)
	}
	return f.Fn(ctx, h, args)
}

// NativeID derives the executable id a native contract is registered under.
func NativeID(name string) types.Hash {
	return sha256.Sum256([]byte("native:" + name))
}

// invokeNative runs a native contract, turning a Go panic into an internal
// error so it cannot cross the boundary.
func invokeNative(ctx context.Context, h *Host, c NativeContract, fn string, args []types.Val) (res types.Val, err error) {
	defer func() {
		// Panics that are not host errors become Context/Internal, which
		// try_call does not recover.
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				if he := types.AsHostError(e); he.Err.Category != types.ErrContext || he.Err.Code != types.CodeInternal {
					err = he
					return
				}
			}
			err = types.Errorf(types.ErrContext, types.CodeInternal, "native contract panicked: %s", fmt.Sprint(r))
		}
	}()
	return c.Invoke(ctx, h, fn, args)
}
