package host

import (
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

func init() {
	register(types.ModuleContext, map[string]hostFn{
		"obj_cmp":                      objCmp,
		"get_ledger_sequence":          getLedgerSequence,
		"get_ledger_timestamp":         getLedgerTimestamp,
		"get_ledger_network_id":        getLedgerNetworkID,
		"get_current_contract_address": getCurrentContractAddress,
		"get_max_live_until_ledger":    getMaxLiveUntilLedger,
		"fail_with_error":              failWithError,
		"log_from_linear_memory":       logFromLinearMemory,
		"contract_event":               contractEvent,
	})
}

func objCmp(h *Host, c *hostCall) (types.Val, error) {
	n, err := h.objects.Compare(c.arg(0), c.arg(1))
	if err != nil {
		return 0, err
	}
	switch {
	case n < 0:
		n = -1
	case n > 0:
		n = 1
	}
	return types.ValFromI32(int32(n)), nil
}

func getLedgerSequence(h *Host, _ *hostCall) (types.Val, error) {
	return types.ValFromU32(h.cfg.Ledger.Sequence), nil
}

func getLedgerTimestamp(h *Host, _ *hostCall) (types.Val, error) {
	return h.objects.U64Val(h.cfg.Ledger.Timestamp)
}

func getLedgerNetworkID(h *Host, _ *hostCall) (types.Val, error) {
	return h.objects.AddBytes(h.cfg.Ledger.NetworkID[:])
}

func getCurrentContractAddress(h *Host, _ *hostCall) (types.Val, error) {
	f, err := h.current()
	if err != nil {
		return 0, err
	}
	return h.objects.AddAddress(types.ContractAddress(f.contract))
}

func getMaxLiveUntilLedger(h *Host, _ *hostCall) (types.Val, error) {
	return types.ValFromU32(h.cfg.Ledger.MaxLiveUntil()), nil
}

// failWithError traps with a contract error chosen by the guest.
func failWithError(h *Host, c *hostCall) (types.Val, error) {
	e, ok := c.arg(0).AsError()
	if !ok {
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidTag, "fail_with_error takes an error, got %s", c.arg(0))
	}
	if e.Category != types.ErrContract {
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidInput, "contracts may only fail with contract errors, got %s", e)
	}
	return 0, types.Errorf(e.Category, e.Code, "contract failed")
}

// logFromLinearMemory records a diagnostic message. It is charged whether or
// not debugging is enabled, so metering does not depend on the flag.
func logFromLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	a, err := u32Args(c.args...)
	if err != nil {
		return 0, err
	}
	msgPos, msgLen, valsPos, valsLen := a[0], a[1], a[2], a[3]
	if err := h.budget.Charge(budget.DebugLog, uint64(msgLen)+uint64(valsLen)); err != nil {
		return 0, err
	}
	if !h.cfg.Debug {
		return types.VoidVal, nil
	}
	msg, err := c.mem.Read(msgPos, msgLen)
	if err != nil {
		return 0, err
	}
	vals, err := wasi.ReadVals(c.mem, valsPos, valsLen)
	if err != nil {
		return 0, err
	}
	data := make(types.Vec, len(vals))
	for i, v := range vals {
		sv, err := h.objects.ToScVal(v)
		if err != nil {
			return 0, err
		}
		data[i] = sv
	}
	f, _ := h.current()
	if err := h.events.Diagnostic(f.contract, []types.ScVal{types.Symbol("log"), types.String(msg)}, data); err != nil {
		return 0, err
	}
	h.logger.Debug("contract log",
		zap.Stringer("contract", f.contract),
		zap.String("message", string(msg)),
		zap.Int("values", len(vals)))
	return types.VoidVal, nil
}

func contractEvent(h *Host, c *hostCall) (types.Val, error) {
	topics, err := h.objects.Vec(c.arg(0))
	if err != nil {
		return 0, err
	}
	ts := make([]types.ScVal, len(topics))
	for i, t := range topics {
		if ts[i], err = h.objects.ToScVal(t); err != nil {
			return 0, err
		}
	}
	data, err := h.objects.ToScVal(c.arg(1))
	if err != nil {
		return 0, err
	}
	f, err := h.current()
	if err != nil {
		return 0, err
	}
	if err := h.events.Publish(f.contract, ts, data); err != nil {
		return 0, err
	}
	return types.VoidVal, nil
}
