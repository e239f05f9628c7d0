package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/ledger/ledgertest"
)

func TestConformance(t *testing.T) {
	ledgertest.Run(t, New())
}

func TestRegistered(t *testing.T) {
	snap, err := ledger.Open(ledger.MemoryBackend, nil)
	require.NoError(t, err)
	assert.IsType(t, &Ledger{}, snap)
	assert.Contains(t, ledger.ListRegistered(), ledger.MemoryBackend)
}

func TestClosed(t *testing.T) {
	l := New()
	require.NoError(t, l.Close())
	_, err := l.Get([]byte{1})
	assert.ErrorIs(t, err, ledger.ErrClosed)
}

func TestEntriesAreCopied(t *testing.T) {
	l := New()
	e := &ledger.Entry{Value: []byte("abc"), LiveUntil: 1}
	l.Put([]byte("k"), e)
	e.Value[0] = 'x'

	got, err := l.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got.Value)
	got.Value[1] = 'y'

	again, _ := l.Get([]byte("k"))
	assert.Equal(t, []byte("abc"), again.Value)
}
