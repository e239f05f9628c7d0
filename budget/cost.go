package budget

import "fmt"

// CostType names a class of host work with its own cost parameters.
type CostType int

const (
	// HostFunctionCall is charged once on entry to every host function.
	HostFunctionCall CostType = iota
	// ObjectAlloc covers creating a host object; input is the element or byte count.
	ObjectAlloc
	// ObjectAccess covers reading an existing object.
	ObjectAccess
	// MemCopy covers moving bytes across the guest boundary; input is the byte count.
	MemCopy
	// ValSerialize and ValDeserialize are charged per encoded byte.
	ValSerialize
	ValDeserialize
	// ValCompare is charged per compared element.
	ValCompare
	// BigIntArith is charged for 128 and 256 bit arithmetic.
	BigIntArith
	ComputeSha256
	ComputeKeccak256
	VerifyEd25519
	RecoverSecp256k1
	VerifySecp256r1
	// PrngBytes is charged per generated byte.
	PrngBytes
	// ParseModule is charged per module byte at upload and first use.
	ParseModule
	// InstantiateModule is charged per module byte for every frame.
	InstantiateModule
	// InvokeFrame is charged for pushing a call frame.
	InvokeFrame
	StorageAccess
	AuthMatch
	EmitEvent
	DebugLog
	// WasmInsn is charged per executed guest instruction.
	WasmInsn

	costTypeCount
)

var costTypeNames = [...]string{
	HostFunctionCall:  "host_function_call",
	ObjectAlloc:       "object_alloc",
	ObjectAccess:      "object_access",
	MemCopy:           "mem_copy",
	ValSerialize:      "val_serialize",
	ValDeserialize:    "val_deserialize",
	ValCompare:        "val_compare",
	BigIntArith:       "bigint_arith",
	ComputeSha256:     "compute_sha256",
	ComputeKeccak256:  "compute_keccak256",
	VerifyEd25519:     "verify_ed25519",
	RecoverSecp256k1:  "recover_secp256k1",
	VerifySecp256r1:   "verify_secp256r1",
	PrngBytes:         "prng_bytes",
	ParseModule:       "parse_module",
	InstantiateModule: "instantiate_module",
	InvokeFrame:       "invoke_frame",
	StorageAccess:     "storage_access",
	AuthMatch:         "auth_match",
	EmitEvent:         "emit_event",
	DebugLog:          "debug_log",
	WasmInsn:          "wasm_insn",
}

func (c CostType) String() string {
	if c >= 0 && c < costTypeCount {
		return costTypeNames[c]
	}
	return fmt.Sprintf("CostType(%d)", int(c))
}

// CostTypeCount is the number of cost types.
const CostTypeCount = int(costTypeCount)

// CostParams is a linear cost: Const + Linear*input.
type CostParams struct {
	Const  uint64 `yaml:"const"`
	Linear uint64 `yaml:"linear"`
}

func (p CostParams) eval(input uint64) uint64 {
	return satAdd(p.Const, satMul(p.Linear, input))
}

// CostModel holds cpu and memory parameters for every cost type.
type CostModel struct {
	CPU [costTypeCount]CostParams
	Mem [costTypeCount]CostParams
}

// DefaultCostModel returns the cost parameters used when none are configured.
func DefaultCostModel() CostModel {
	var m CostModel
	set := func(ct CostType, cpuConst, cpuLin, memConst, memLin uint64) {
		m.CPU[ct] = CostParams{Const: cpuConst, Linear: cpuLin}
		m.Mem[ct] = CostParams{Const: memConst, Linear: memLin}
	}
	set(HostFunctionCall, 100, 0, 0, 0)
	set(ObjectAlloc, 200, 2, 32, 8)
	set(ObjectAccess, 50, 1, 0, 0)
	set(MemCopy, 40, 1, 0, 1)
	set(ValSerialize, 100, 4, 16, 1)
	set(ValDeserialize, 150, 6, 16, 2)
	set(ValCompare, 20, 10, 0, 0)
	set(BigIntArith, 300, 0, 32, 0)
	set(ComputeSha256, 3000, 30, 0, 0)
	set(ComputeKeccak256, 3500, 35, 0, 0)
	set(VerifyEd25519, 400000, 25, 0, 0)
	set(RecoverSecp256k1, 2300000, 0, 200, 0)
	set(VerifySecp256r1, 3000000, 0, 200, 0)
	set(PrngBytes, 1000, 12, 0, 1)
	set(ParseModule, 50000, 40, 1024, 2)
	set(InstantiateModule, 20000, 10, 65536, 1)
	set(InvokeFrame, 5000, 0, 512, 0)
	set(StorageAccess, 1000, 2, 64, 1)
	set(AuthMatch, 500, 50, 64, 8)
	set(EmitEvent, 500, 2, 64, 1)
	set(DebugLog, 300, 1, 0, 0)
	set(WasmInsn, 1, 4, 0, 0)
	return m
}

func satAdd(a, b uint64) uint64 {
	s := a + b
	if s < a {
		return ^uint64(0)
	}
	return s
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a {
		return ^uint64(0)
	}
	return p
}
