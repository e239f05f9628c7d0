package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
)

func newBuffer() *Buffer {
	return NewBuffer(budget.New(budget.DefaultLimits(), budget.DefaultCostModel(), nil))
}

func TestTopicValidation(t *testing.T) {
	long := make(types.Bytes, MaxTopicBytes+1)
	cases := []struct {
		name   string
		topics []types.ScVal
		code   types.ErrorCode
	}{
		{"vec topic", []types.ScVal{types.Vec{}}, types.CodeInvalidTopic},
		{"map topic", []types.ScVal{types.Map{}}, types.CodeInvalidTopic},
		{"long bytes", []types.ScVal{long}, types.CodeInvalidTopic},
		{"long string", []types.ScVal{types.String(string(long))}, types.CodeInvalidTopic},
		{"five topics", []types.ScVal{types.U32(1), types.U32(2), types.U32(3), types.U32(4), types.U32(5)}, types.CodeTooManyTopics},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := newBuffer().Publish(types.Hash{}, tc.topics, types.Void{})
			require.Error(t, err)
			assert.ErrorIs(t, err, types.Error{Category: types.ErrEvents, Code: tc.code})
		})
	}

	ok := []types.ScVal{types.Symbol("transfer"), types.Bytes(make([]byte, MaxTopicBytes)), types.U64(1), types.AccountAddress(types.Hash{})}
	assert.NoError(t, newBuffer().Publish(types.Hash{}, ok, types.Vec{types.U32(1)}))
}

func TestRollbackDiscardsFrameEvents(t *testing.T) {
	b := newBuffer()
	require.NoError(t, b.Publish(types.Hash{1}, []types.ScVal{types.Symbol("E1")}, types.Void{}))

	m := b.Mark()
	require.NoError(t, b.Publish(types.Hash{2}, []types.ScVal{types.Symbol("E2")}, types.Void{}))
	require.NoError(t, b.Diagnostic(types.Hash{2}, []types.ScVal{types.Symbol("log")}, types.String("before trap")))
	b.Rollback(m)

	evs := b.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, types.Symbol("E1"), evs[0].Topics[0])

	diags := b.Diagnostics()
	require.Len(t, diags, 1)
	assert.True(t, diags[0].FailedCall)
	assert.Equal(t, KindDiagnostic, diags[0].Kind)
}

func TestEventBytesCharged(t *testing.T) {
	limits := budget.DefaultLimits()
	limits.EventBytes = 16
	b := NewBuffer(budget.New(limits, budget.DefaultCostModel(), nil))
	err := b.Publish(types.Hash{}, nil, types.Bytes(make([]byte, 64)))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrBudget, Code: types.CodeBudgetExceeded})
	assert.Empty(t, b.Events())
}
