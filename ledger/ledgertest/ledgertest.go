// Package ledgertest holds the conformance checks every ledger backend passes.
package ledgertest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/types"
)

// Run exercises a freshly opened, empty backend.
func Run(t *testing.T, snap ledger.Snapshot) {
	t.Helper()
	var contract types.Hash
	contract[0] = 0xcc
	k1 := ledger.DataKey(contract, types.Persistent, []byte{1, 2})
	k2 := ledger.DataKey(contract, types.Temporary, []byte{1, 2})
	k3 := ledger.CodeKey(contract)

	got, err := snap.Get(k1)
	require.NoError(t, err)
	assert.Nil(t, got, "absent key")

	err = snap.Apply([]ledger.Change{
		{Key: k1, Entry: &ledger.Entry{Value: []byte("persistent"), LiveUntil: 100}},
		{Key: k2, Entry: &ledger.Entry{Value: []byte("temporary"), LiveUntil: 20}},
		{Key: k3, Entry: &ledger.Entry{Value: []byte{}, LiveUntil: 7}},
	})
	require.NoError(t, err)

	got, err = snap.Get(k1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("persistent"), got.Value)
	assert.Equal(t, uint32(100), got.LiveUntil)

	got, err = snap.Get(k2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("temporary"), got.Value)

	got, err = snap.Get(k3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Value)

	// Overwrite and delete in one batch.
	err = snap.Apply([]ledger.Change{
		{Key: k1, Entry: &ledger.Entry{Value: []byte("updated"), LiveUntil: 200}},
		{Key: k2},
	})
	require.NoError(t, err)

	got, err = snap.Get(k1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("updated"), got.Value)
	assert.Equal(t, uint32(200), got.LiveUntil)

	got, err = snap.Get(k2)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, snap.Close())
}
