package host

import (
	"context"
	"fmt"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

// hostCall carries one host function invocation.
type hostCall struct {
	ctx  context.Context
	mem  wasi.Memory
	args []types.Val
}

func (c *hostCall) arg(i int) types.Val { return c.args[i] }

// raw returns argument i as the plain 64-bit integer it is on the wasm side.
func (c *hostCall) raw(i int) uint64 { return uint64(c.args[i]) }

type hostFn func(h *Host, c *hostCall) (types.Val, error)

var hostFns = make(map[string]hostFn)

func fnKey(module, name string) string { return module + "." + name }

// register binds implementations to entries of the host function table.
func register(module string, fns map[string]hostFn) {
	for name, fn := range fns {
		if _, ok := types.LookupHostFunction(module, name); !ok {
			panic(fmt.Sprintf("host: %s.%s is not in the host function table", module, name))
		}
		hostFns[fnKey(module, name)] = fn
	}
}

// HostCall implements wasi.Handler. Every host function charges a call before
// doing any work.
func (h *Host) HostCall(ctx context.Context, fn types.HostFunction, mem wasi.Memory, args []uint64) (uint64, error) {
	impl, ok := hostFns[fnKey(fn.Module, fn.Name)]
	if !ok {
		return 0, types.Errorf(types.ErrContext, types.CodeInternal, "host function %s.%s is not implemented", fn.Module, fn.Name)
	}
	if len(args) != fn.Args {
		return 0, types.Errorf(types.ErrContext, types.CodeArityMismatch, "%s.%s takes %d arguments, got %d", fn.Module, fn.Name, fn.Args, len(args))
	}
	if err := h.budget.Charge(budget.HostFunctionCall, uint64(len(args))); err != nil {
		return 0, err
	}
	if _, err := h.current(); err != nil {
		return 0, err
	}
	vals := make([]types.Val, len(args))
	for i, a := range args {
		vals[i] = types.Val(a)
	}
	res, err := impl(h, &hostCall{ctx: ctx, mem: mem, args: vals})
	return uint64(res), err
}

// Call runs a host function by module and name for native contracts. There is
// no guest linear memory, so memory bridge functions fail with
// WasmVm/MemoryBounds for any non-empty access.
func (h *Host) Call(ctx context.Context, module, name string, args ...types.Val) (types.Val, error) {
	fn, ok := types.LookupHostFunction(module, name)
	if !ok {
		return 0, types.Errorf(types.ErrContext, types.CodeMissingExport, "unknown host function %s.%s", module, name)
	}
	raw := make([]uint64, len(args))
	for i, a := range args {
		raw[i] = uint64(a)
	}
	res, err := h.HostCall(ctx, fn, wasi.SliceMemory(nil), raw)
	return types.Val(res), err
}

func u32Arg(v types.Val) (uint32, error) {
	u, ok := v.AsU32()
	if !ok {
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidTag, "expected u32, got %s", v)
	}
	return u, nil
}

func u32Args(vs ...types.Val) ([]uint32, error) {
	out := make([]uint32, len(vs))
	for i, v := range vs {
		u, err := u32Arg(v)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func indexBounds(format string, args ...any) error {
	return types.Errorf(types.ErrObject, types.CodeIndexBounds, format, args...)
}

// checkRange validates the half-open range [lo, hi) against n.
func checkRange(lo, hi uint32, n int) error {
	if lo > hi || uint64(hi) > uint64(n) {
		return indexBounds("range [%d, %d) outside length %d", lo, hi, n)
	}
	return nil
}

// checkSpan validates [off, off+n) against size without overflowing.
func checkSpan(off, n uint32, size int) error {
	if uint64(off)+uint64(n) > uint64(size) {
		return indexBounds("span [%d, %d+%d) outside length %d", off, off, n, size)
	}
	return nil
}

func bytes32(h *Host, v types.Val, what string) (types.Hash, error) {
	b, err := h.objects.Bytes(v)
	if err != nil {
		return types.Hash{}, err
	}
	if len(b) != 32 {
		return types.Hash{}, types.Errorf(types.ErrValue, types.CodeUnexpectedSize, "%s must be 32 bytes, got %d", what, len(b))
	}
	var out types.Hash
	copy(out[:], b)
	return out, nil
}

func void() (types.Val, error) { return types.VoidVal, nil }
