package prng

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/vmhost/types"
)

func draws(p *PRNG) [3]uint64 {
	var out [3]uint64
	for i := range out {
		out[i], _ = p.Uint64InRange(0, 9)
	}
	return out
}

func TestZeroSeedIsReproducible(t *testing.T) {
	a, b := New(Seed{}), New(Seed{})
	da, db := draws(a), draws(b)
	assert.Equal(t, da, db)
	for _, v := range da {
		assert.LessOrEqual(t, v, uint64(9))
	}

	perm := func(p *PRNG) []int {
		v := []int{1, 2, 3}
		p.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
		return v
	}
	pa, pb := perm(New(Seed{})), perm(New(Seed{}))
	assert.Equal(t, pa, pb)
	assert.ElementsMatch(t, []int{1, 2, 3}, pa)
}

func TestZeroSeedKnownAnswers(t *testing.T) {
	// First ChaCha20 block of the all-zero key and nonce.
	block, err := hex.DecodeString("76b8e0ada0f13d90405d6ae55386bd28bdd219b8a08ded1aa836efcc8b770dc7" +
		"da41597c5157488d7724e03fb8d84a376a43b8f41518a11cc387b669b2ee6586")
	require.NoError(t, err)
	assert.Equal(t, block, New(Seed{}).Bytes(64))

	p := New(Seed{})
	assert.Equal(t, []uint64{0x903df1a0ade0b876, 0x28bd8653e56a5d40, 0x1aed8da0b819d2bd},
		[]uint64{p.Uint64(), p.Uint64(), p.Uint64()})

	assert.Equal(t, [3]uint64{0, 8, 7}, draws(New(Seed{})))

	v := []int{1, 2, 3, 4, 5}
	New(Seed{}).Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
	assert.Equal(t, []int{2, 4, 3, 5, 1}, v)
}

func TestSubGeneratorsDiverge(t *testing.T) {
	base := New(Seed{})
	s1, s2 := base.Sub(), base.Sub()
	assert.NotEqual(t, s1.Bytes(32), s2.Bytes(32))

	again := New(Seed{})
	assert.Equal(t, New(Seed{}).Sub().Bytes(16), again.Sub().Bytes(16))
}

func TestReseed(t *testing.T) {
	var seed Seed
	seed[0] = 42
	p := New(Seed{})
	p.Bytes(100)
	p.Reseed(seed)
	assert.Equal(t, New(seed).Bytes(40), p.Bytes(40))

	_, err := SeedFromBytes(make([]byte, 31))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrValue, Code: types.CodeUnexpectedSize})
}

func TestRangeEdges(t *testing.T) {
	p := New(Seed{1})
	v, err := p.Uint64InRange(7, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = p.Uint64InRange(0, ^uint64(0))
	require.NoError(t, err)

	_, err = p.Uint64InRange(5, 4)
	assert.ErrorIs(t, err, types.Error{Category: types.ErrValue, Code: types.CodeInvalidInput})

	seen := map[uint64]bool{}
	for i := 0; i < 500; i++ {
		v, err := p.Uint64InRange(10, 13)
		require.NoError(t, err)
		require.True(t, v >= 10 && v <= 13)
		seen[v] = true
	}
	assert.Len(t, seen, 4)
}
