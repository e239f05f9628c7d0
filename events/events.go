// Package events buffers the events an invocation emits.
//
// Contract and system events are part of the invocation result and are
// truncated back to a frame's start offset when the frame fails. Diagnostic
// events are kept regardless, flagged with whether their frame failed, and are
// never part of a successful result.
package events

import (
	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
)

// MaxTopics is the largest number of topics an event may carry.
const MaxTopics = 4

// MaxTopicBytes bounds Bytes and String topics.
const MaxTopicBytes = 32

// Kind classifies an event.
type Kind uint8

const (
	KindContract Kind = iota
	KindSystem
	KindDiagnostic
)

func (k Kind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindSystem:
		return "system"
	case KindDiagnostic:
		return "diagnostic"
	}
	return "unknown"
}

// Event is one emitted record. Contract is the zero hash for host events.
type Event struct {
	Kind     Kind
	Contract types.Hash
	Topics   []types.ScVal
	Data     types.ScVal
	// FailedCall is set on diagnostic events whose frame later failed.
	FailedCall bool
}

// Buffer collects the events of one top-level invocation.
type Buffer struct {
	budget      *budget.Budget
	events      []Event
	diagnostics []Event
}

// NewBuffer creates an empty buffer.
func NewBuffer(b *budget.Budget) *Buffer {
	return &Buffer{budget: b}
}

// ValidateTopics checks the shape of event topics.
func ValidateTopics(topics []types.ScVal) error {
	if len(topics) > MaxTopics {
		return types.Errorf(types.ErrEvents, types.CodeTooManyTopics, "%d topics, at most %d allowed", len(topics), MaxTopics)
	}
	for i, t := range topics {
		switch x := t.(type) {
		case types.Vec, types.Map:
			return types.Errorf(types.ErrEvents, types.CodeInvalidTopic, "topic %d is a %s", i, t.Type())
		case types.Bytes:
			if len(x) > MaxTopicBytes {
				return types.Errorf(types.ErrEvents, types.CodeInvalidTopic, "topic %d is %d bytes long", i, len(x))
			}
		case types.String:
			if len(x) > MaxTopicBytes {
				return types.Errorf(types.ErrEvents, types.CodeInvalidTopic, "topic %d is %d bytes long", i, len(x))
			}
		}
	}
	return nil
}

func (b *Buffer) size(topics []types.ScVal, data types.ScVal) (uint64, error) {
	n, err := codec.Serialize(types.Vec(topics))
	if err != nil {
		return 0, err
	}
	d, err := codec.Serialize(data)
	if err != nil {
		return 0, err
	}
	return uint64(len(n) + len(d)), nil
}

// Publish appends a contract event after validating its topics.
func (b *Buffer) Publish(contract types.Hash, topics []types.ScVal, data types.ScVal) error {
	if err := ValidateTopics(topics); err != nil {
		return err
	}
	return b.append(KindContract, contract, topics, data)
}

// PublishSystem appends a host generated event such as a deployment record.
func (b *Buffer) PublishSystem(contract types.Hash, topics []types.ScVal, data types.ScVal) error {
	return b.append(KindSystem, contract, topics, data)
}

func (b *Buffer) append(kind Kind, contract types.Hash, topics []types.ScVal, data types.ScVal) error {
	n, err := b.size(topics, data)
	if err != nil {
		return err
	}
	if err := b.budget.Charge(budget.EmitEvent, n); err != nil {
		return err
	}
	if err := b.budget.Add(budget.EventBytes, n); err != nil {
		return err
	}
	b.events = append(b.events, Event{
		Kind:     kind,
		Contract: contract,
		Topics:   append([]types.ScVal{}, topics...),
		Data:     data,
	})
	return nil
}

// Diagnostic records a debug event. It is charged for cpu but not for
// event_bytes, which only counts events that can reach the result.
func (b *Buffer) Diagnostic(contract types.Hash, topics []types.ScVal, data types.ScVal) error {
	if err := b.budget.Charge(budget.DebugLog, uint64(len(topics))); err != nil {
		return err
	}
	b.diagnostics = append(b.diagnostics, Event{
		Kind:     KindDiagnostic,
		Contract: contract,
		Topics:   append([]types.ScVal{}, topics...),
		Data:     data,
	})
	return nil
}

// Mark is a buffer position a frame can roll back to.
type Mark struct {
	events      int
	diagnostics int
}

// Mark returns the current position.
func (b *Buffer) Mark() Mark {
	return Mark{events: len(b.events), diagnostics: len(b.diagnostics)}
}

// Rollback discards events published since m and flags diagnostics emitted
// since m as belonging to a failed call.
func (b *Buffer) Rollback(m Mark) {
	b.events = b.events[:m.events]
	for i := m.diagnostics; i < len(b.diagnostics); i++ {
		b.diagnostics[i].FailedCall = true
	}
}

// Events returns the contract and system events in emission order.
func (b *Buffer) Events() []Event {
	return append([]Event{}, b.events...)
}

// Diagnostics returns every diagnostic event.
func (b *Buffer) Diagnostics() []Event {
	return append([]Event{}, b.diagnostics...)
}
