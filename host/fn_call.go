package host

import (
	"context"

	"github.com/govm-net/vmhost/auth"
	"github.com/govm-net/vmhost/types"
)

func init() {
	register(types.ModuleCall, map[string]hostFn{
		"call": func(h *Host, c *hostCall) (types.Val, error) {
			res, err := contractCall(h, c)
			if err != nil {
				return 0, err
			}
			return h.objects.FromScVal(res)
		},
		"try_call": func(h *Host, c *hostCall) (types.Val, error) {
			res, err := recoverError(contractCall(h, c))
			if err != nil {
				return 0, err
			}
			if e, ok := res.(types.Error); ok {
				return types.ValFromError(e), nil
			}
			return h.objects.FromScVal(res)
		},
	})
	register(types.ModuleAuth, map[string]hostFn{
		"require_auth": func(h *Host, c *hostCall) (types.Val, error) {
			addr, err := h.objects.Address(c.arg(0))
			if err != nil {
				return 0, err
			}
			if err := h.auth.RequireAuth(c.ctx, addr, nil); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
		"require_auth_for_args": func(h *Host, c *hostCall) (types.Val, error) {
			addr, err := h.objects.Address(c.arg(0))
			if err != nil {
				return 0, err
			}
			args, err := scVals(h, c.arg(1))
			if err != nil {
				return 0, err
			}
			if err := h.auth.RequireAuth(c.ctx, addr, args); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
		"authorize_as_curr_contract": func(h *Host, c *hostCall) (types.Val, error) {
			entries, err := scVals(h, c.arg(0))
			if err != nil {
				return 0, err
			}
			invs := make([]types.AuthorizedInvocation, len(entries))
			for i, e := range entries {
				if invs[i], err = auth.ParseInvocation(e); err != nil {
					return 0, err
				}
			}
			if err := h.auth.AuthorizeAsCurrentContract(invs); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
	})
}

// contractCall runs a nested call with arguments (address, function, args).
// Arguments and result are copied between the caller and callee frames.
func contractCall(h *Host, c *hostCall) (types.ScVal, error) {
	addr, err := h.objects.Address(c.arg(0))
	if err != nil {
		return nil, err
	}
	fn, err := h.objects.Symbol(c.arg(1))
	if err != nil {
		return nil, err
	}
	args, err := scVals(h, c.arg(2))
	if err != nil {
		return nil, err
	}
	id, err := contractID(addr)
	if err != nil {
		return nil, err
	}
	return h.call(c.ctx, id, fn, args, false)
}

// CheckAuth implements auth.Env by calling the account contract's
// __check_auth with (payload, signature, contexts). Any successful return
// authorizes.
func (h *Host) CheckAuth(ctx context.Context, account types.Hash, payload types.Hash, signature types.ScVal, contexts []types.AuthorizedFunction) error {
	if signature == nil {
		signature = types.Void{}
	}
	cs := make(types.Vec, len(contexts))
	for i, f := range contexts {
		cs[i] = auth.FunctionVal(f)
	}
	args := []types.ScVal{types.Bytes(payload[:]), signature, cs}
	_, err := h.call(ctx, account, types.FnCheckAuth, args, true)
	return err
}
