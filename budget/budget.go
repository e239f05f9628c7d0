// Package budget meters the resources one top-level invocation may consume.
//
// Counters only grow. Once any counter crosses its limit the budget is
// exhausted and every later charge fails with Budget/BudgetExceeded, so a
// contract cannot observe or recover from exhaustion.
package budget

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/govm-net/vmhost/types"
)

// Counter identifies one metered resource.
type Counter int

const (
	CPUInstructions Counter = iota
	MemoryBytes
	ReadEntries
	WriteEntries
	ReadBytes
	WriteBytes
	EventBytes
	TxSizeBytes

	counterCount
)

// CounterCount is the number of counters.
const CounterCount = int(counterCount)

var counterNames = [...]string{
	CPUInstructions: "cpu_instructions",
	MemoryBytes:     "memory_bytes",
	ReadEntries:     "read_entries",
	WriteEntries:    "write_entries",
	ReadBytes:       "read_bytes",
	WriteBytes:      "write_bytes",
	EventBytes:      "event_bytes",
	TxSizeBytes:     "tx_size_bytes",
}

func (c Counter) String() string {
	if c >= 0 && c < counterCount {
		return counterNames[c]
	}
	return fmt.Sprintf("Counter(%d)", int(c))
}

// Limits caps each counter for one top-level invocation.
type Limits struct {
	CPUInstructions uint64 `yaml:"cpu_instructions" json:"cpu_instructions"`
	MemoryBytes     uint64 `yaml:"memory_bytes" json:"memory_bytes"`
	ReadEntries     uint64 `yaml:"read_entries" json:"read_entries"`
	WriteEntries    uint64 `yaml:"write_entries" json:"write_entries"`
	ReadBytes       uint64 `yaml:"read_bytes" json:"read_bytes"`
	WriteBytes      uint64 `yaml:"write_bytes" json:"write_bytes"`
	EventBytes      uint64 `yaml:"event_bytes" json:"event_bytes"`
	TxSizeBytes     uint64 `yaml:"tx_size_bytes" json:"tx_size_bytes"`
}

// DefaultLimits returns limits generous enough for ordinary contracts.
func DefaultLimits() Limits {
	return Limits{
		CPUInstructions: 100_000_000,
		MemoryBytes:     40 * 1024 * 1024,
		ReadEntries:     40,
		WriteEntries:    25,
		ReadBytes:       200 * 1024,
		WriteBytes:      132 * 1024,
		EventBytes:      16 * 1024,
		TxSizeBytes:     132 * 1024,
	}
}

func (l Limits) array() [counterCount]uint64 {
	return [counterCount]uint64{
		CPUInstructions: l.CPUInstructions,
		MemoryBytes:     l.MemoryBytes,
		ReadEntries:     l.ReadEntries,
		WriteEntries:    l.WriteEntries,
		ReadBytes:       l.ReadBytes,
		WriteBytes:      l.WriteBytes,
		EventBytes:      l.EventBytes,
		TxSizeBytes:     l.TxSizeBytes,
	}
}

// Usage is a copy of the counter values.
type Usage Limits

// Get returns the value of one counter.
func (u Usage) Get(c Counter) uint64 {
	return Limits(u).array()[c]
}

// Budget tracks resource usage of one top-level invocation. It is not safe for
// concurrent use; an invocation runs on a single goroutine.
type Budget struct {
	limits    [counterCount]uint64
	used      [counterCount]uint64
	model     CostModel
	charges   [costTypeCount]uint64
	exhausted *types.HostError
	logger    *zap.Logger
}

// New creates a budget with the given limits and cost model.
func New(limits Limits, model CostModel, logger *zap.Logger) *Budget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Budget{
		limits: limits.array(),
		model:  model,
		logger: logger,
	}
}

// Unlimited returns a budget whose limits cannot be reached. Used for work the
// host does on its own behalf, such as inspecting modules off-chain.
func Unlimited() *Budget {
	var l Limits
	arr := [counterCount]uint64{}
	for i := range arr {
		arr[i] = ^uint64(0)
	}
	b := New(l, DefaultCostModel(), nil)
	b.limits = arr
	return b
}

// Charge applies the cost model of ct to input and adds the result to the cpu
// and memory counters.
func (b *Budget) Charge(ct CostType, input uint64) error {
	if err := b.Add(CPUInstructions, b.model.CPU[ct].eval(input)); err != nil {
		return err
	}
	if err := b.Add(MemoryBytes, b.model.Mem[ct].eval(input)); err != nil {
		return err
	}
	b.charges[ct]++
	return nil
}

// Add increases a counter by n.
func (b *Budget) Add(c Counter, n uint64) error {
	if b.exhausted != nil {
		return b.exhausted
	}
	b.used[c] = satAdd(b.used[c], n)
	if b.used[c] > b.limits[c] {
		b.exhausted = types.Errorf(types.ErrBudget, types.CodeBudgetExceeded,
			"%s limit exceeded: used %d, limit %d", c, b.used[c], b.limits[c])
		b.logger.Debug("budget exhausted",
			zap.Stringer("counter", c),
			zap.Uint64("used", b.used[c]),
			zap.Uint64("limit", b.limits[c]))
		return b.exhausted
	}
	return nil
}

// Used returns the current value of a counter.
func (b *Budget) Used(c Counter) uint64 {
	return b.used[c]
}

// Limit returns the limit of a counter.
func (b *Budget) Limit(c Counter) uint64 {
	return b.limits[c]
}

// Remaining returns how much of a counter is left.
func (b *Budget) Remaining(c Counter) uint64 {
	if b.used[c] >= b.limits[c] {
		return 0
	}
	return b.limits[c] - b.used[c]
}

// Fuel returns how many guest instructions one WasmInsn charge can still
// cover without exhausting the cpu counter.
func (b *Budget) Fuel() uint64 {
	if b.exhausted != nil {
		return 0
	}
	p := b.model.CPU[WasmInsn]
	rem := b.Remaining(CPUInstructions)
	if rem <= p.Const {
		return 0
	}
	if p.Linear == 0 {
		return ^uint64(0)
	}
	return (rem - p.Const) / p.Linear
}

// Exhausted returns the error that exhausted the budget, if any.
func (b *Budget) Exhausted() error {
	if b.exhausted == nil {
		return nil
	}
	return b.exhausted
}

// Charges returns how many times ct was charged.
func (b *Budget) Charges(ct CostType) uint64 {
	return b.charges[ct]
}

// Usage returns a copy of all counters.
func (b *Budget) Usage() Usage {
	return Usage{
		CPUInstructions: b.used[CPUInstructions],
		MemoryBytes:     b.used[MemoryBytes],
		ReadEntries:     b.used[ReadEntries],
		WriteEntries:    b.used[WriteEntries],
		ReadBytes:       b.used[ReadBytes],
		WriteBytes:      b.used[WriteBytes],
		EventBytes:      b.used[EventBytes],
		TxSizeBytes:     b.used[TxSizeBytes],
	}
}
