package host

import (
	"context"
	"crypto/sha256"

	"github.com/near/borsh-go"
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/storage"
	"github.com/govm-net/vmhost/types"
)

type contractIDPreimage struct {
	NetworkID    [32]byte
	DeployerKind uint8
	Deployer     [32]byte
	Salt         [32]byte
}

// ContractID derives the id of a contract created by deployer with salt.
func ContractID(networkID types.Hash, deployer types.Address, salt types.Hash) (types.Hash, error) {
	pre, err := borsh.Serialize(contractIDPreimage{
		NetworkID:    networkID,
		DeployerKind: uint8(deployer.Kind),
		Deployer:     deployer.ID,
		Salt:         salt,
	})
	if err != nil {
		return types.Hash{}, types.WrapError(types.ErrContext, types.CodeInternal, err, "contract id preimage")
	}
	return sha256.Sum256(pre), nil
}

// UploadWasm verifies code and stores it under its hash.
func (h *Host) UploadWasm(ctx context.Context, code []byte) (types.Hash, error) {
	if h.engine == nil {
		return types.Hash{}, types.Errorf(types.ErrContext, types.CodeInternal, "host has no wasm engine")
	}
	m, err := h.engine.Compile(ctx, code)
	if err != nil {
		return types.Hash{}, err
	}
	if err := m.ABI.Verify(h.envMeta(), m.Exports()); err != nil {
		return types.Hash{}, err
	}
	hash, err := h.storage.PutCode(code)
	if err != nil {
		return types.Hash{}, err
	}
	h.parsed[hash] = true
	h.logger.Debug("wasm uploaded", zap.Stringer("hash", hash), zap.Int("size", len(code)))
	return hash, nil
}

// CreateContract deploys exec under the id derived from deployer and salt and
// runs its constructor with args. The deployer must authorize the creation
// unless it is the executing contract.
func (h *Host) CreateContract(ctx context.Context, deployer types.Address, exec types.ContractExecutable, salt types.Hash, args []types.ScVal) (types.Address, error) {
	if err := h.auth.RequireAuthForCreate(ctx, deployer, exec, salt); err != nil {
		return types.Address{}, err
	}
	id, err := ContractID(h.cfg.Ledger.NetworkID, deployer, salt)
	if err != nil {
		return types.Address{}, err
	}
	exists, err := h.storage.HasInstance(id)
	if err != nil {
		return types.Address{}, err
	}
	if exists {
		return types.Address{}, types.Errorf(types.ErrStorage, types.CodeExistingValue, "contract %s already exists", id)
	}
	t, err := h.resolve(ctx, exec)
	if err != nil {
		return types.Address{}, err
	}

	mark := h.storage.Mark()
	if err := h.storage.PutInstance(id, &storage.Instance{Executable: exec, Storage: types.Map{}}); err != nil {
		return types.Address{}, err
	}
	if _, ok := t.arity(types.FnConstructor); ok {
		if _, err := h.call(ctx, id, types.FnConstructor, args, true); err != nil {
			h.storage.Rollback(mark)
			return types.Address{}, err
		}
	} else if len(args) > 0 {
		h.storage.Rollback(mark)
		return types.Address{}, types.Errorf(types.ErrContext, types.CodeArityMismatch,
			"contract has no constructor but %d arguments were given", len(args))
	}
	addr := types.ContractAddress(id)
	h.logger.Debug("contract created", zap.Stringer("address", addr), zap.Stringer("executable", exec.Hash))
	return addr, nil
}

// updateWasm replaces the code of the executing contract.
func (h *Host) updateWasm(ctx context.Context, hash types.Hash) error {
	f, err := h.current()
	if err != nil {
		return err
	}
	exec := types.ContractExecutable{Kind: types.ExecutableWasm, Hash: hash}
	if _, err := h.resolve(ctx, exec); err != nil {
		return err
	}
	inst, err := h.storage.Instance(f.contract)
	if err != nil {
		return err
	}
	if err := h.storage.PutInstance(f.contract, &storage.Instance{Executable: exec, Storage: inst.Storage}); err != nil {
		return err
	}
	return h.events.PublishSystem(f.contract,
		[]types.ScVal{types.Symbol("executable_update"), inst.Executable, exec}, types.Void{})
}
