package host

import (
	"github.com/govm-net/vmhost/types"
)

func init() {
	register(types.ModuleLedger, map[string]hostFn{
		"put_contract_data": func(h *Host, c *hostCall) (types.Val, error) {
			f, key, d, err := dataArgs(h, c.arg(0), c.arg(2))
			if err != nil {
				return 0, err
			}
			val, err := h.objects.ToScVal(c.arg(1))
			if err != nil {
				return 0, err
			}
			if err := h.storage.Put(f.contract, d, key, val); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
		"has_contract_data": func(h *Host, c *hostCall) (types.Val, error) {
			f, key, d, err := dataArgs(h, c.arg(0), c.arg(1))
			if err != nil {
				return 0, err
			}
			ok, err := h.storage.Has(f.contract, d, key)
			return types.ValFromBool(ok), err
		},
		"get_contract_data": func(h *Host, c *hostCall) (types.Val, error) {
			f, key, d, err := dataArgs(h, c.arg(0), c.arg(1))
			if err != nil {
				return 0, err
			}
			val, err := h.storage.Get(f.contract, d, key)
			if err != nil {
				return 0, err
			}
			return h.objects.FromScVal(val)
		},
		"del_contract_data": func(h *Host, c *hostCall) (types.Val, error) {
			f, key, d, err := dataArgs(h, c.arg(0), c.arg(1))
			if err != nil {
				return 0, err
			}
			if err := h.storage.Del(f.contract, d, key); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
		"extend_contract_data_ttl": func(h *Host, c *hostCall) (types.Val, error) {
			f, key, d, err := dataArgs(h, c.arg(0), c.arg(1))
			if err != nil {
				return 0, err
			}
			a, err := u32Args(c.arg(2), c.arg(3))
			if err != nil {
				return 0, err
			}
			if err := h.storage.ExtendTTL(f.contract, d, key, a[0], a[1]); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
		"extend_current_contract_instance_and_code_ttl": func(h *Host, c *hostCall) (types.Val, error) {
			a, err := u32Args(c.arg(0), c.arg(1))
			if err != nil {
				return 0, err
			}
			f, err := h.current()
			if err != nil {
				return 0, err
			}
			if err := h.storage.ExtendInstanceAndCodeTTL(f.contract, a[0], a[1]); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
		"upload_wasm": func(h *Host, c *hostCall) (types.Val, error) {
			code, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			hash, err := h.UploadWasm(c.ctx, code)
			if err != nil {
				return 0, err
			}
			return h.objects.AddBytes(hash[:])
		},
		"create_contract": createContract,
		"update_current_contract_wasm": func(h *Host, c *hostCall) (types.Val, error) {
			hash, err := bytes32(h, c.arg(0), "wasm hash")
			if err != nil {
				return 0, err
			}
			if err := h.updateWasm(c.ctx, hash); err != nil {
				return 0, err
			}
			return types.VoidVal, nil
		},
	})
}

// dataArgs resolves the executing contract, a storage key and its durability.
func dataArgs(h *Host, k, t types.Val) (*frame, types.ScVal, types.Durability, error) {
	d, err := types.DurabilityFromVal(t)
	if err != nil {
		return nil, nil, 0, err
	}
	key, err := h.objects.ToScVal(k)
	if err != nil {
		return nil, nil, 0, err
	}
	f, err := h.current()
	if err != nil {
		return nil, nil, 0, err
	}
	return f, key, d, nil
}

// createContract deploys uploaded wasm. Arguments are (deployer address, wasm
// hash, salt, constructor args vec).
func createContract(h *Host, c *hostCall) (types.Val, error) {
	deployer, err := h.objects.Address(c.arg(0))
	if err != nil {
		return 0, err
	}
	hash, err := bytes32(h, c.arg(1), "wasm hash")
	if err != nil {
		return 0, err
	}
	salt, err := bytes32(h, c.arg(2), "salt")
	if err != nil {
		return 0, err
	}
	args, err := scVals(h, c.arg(3))
	if err != nil {
		return 0, err
	}
	exec := types.ContractExecutable{Kind: types.ExecutableWasm, Hash: hash}
	addr, err := h.CreateContract(c.ctx, deployer, exec, salt, args)
	if err != nil {
		return 0, err
	}
	return h.objects.AddAddress(addr)
}

// scVals converts the elements of a vec argument for transfer to another frame.
func scVals(h *Host, v types.Val) ([]types.ScVal, error) {
	elems, err := h.objects.Vec(v)
	if err != nil {
		return nil, err
	}
	out := make([]types.ScVal, len(elems))
	for i, e := range elems {
		if out[i], err = h.objects.ToScVal(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}
