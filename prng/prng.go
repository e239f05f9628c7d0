// Package prng is the deterministic random source contracts may use.
//
// The generator is a ChaCha20 keystream. Output depends only on the seed and
// on the sequence of calls made against it; no external entropy is read.
package prng

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/chacha20"

	"github.com/govm-net/vmhost/types"
)

// SeedSize is the length of a seed in bytes.
const SeedSize = chacha20.KeySize

// Seed keys a generator.
type Seed [SeedSize]byte

var zeroNonce [chacha20.NonceSize]byte

// PRNG is a deterministic generator. It is not safe for concurrent use.
type PRNG struct {
	stream *chacha20.Cipher
}

// New creates a generator keyed with seed.
func New(seed Seed) *PRNG {
	p := &PRNG{}
	p.Reseed(seed)
	return p
}

// Reseed restarts the keystream from seed.
func (p *PRNG) Reseed(seed Seed) {
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], zeroNonce[:])
	if err != nil {
		// Key and nonce sizes are fixed at compile time.
		panic(err)
	}
	p.stream = c
}

// Fill overwrites dst with the next len(dst) keystream bytes.
func (p *PRNG) Fill(dst []byte) {
	clear(dst)
	p.stream.XORKeyStream(dst, dst)
}

// Bytes returns the next n keystream bytes.
func (p *PRNG) Bytes(n int) []byte {
	b := make([]byte, n)
	p.Fill(b)
	return b
}

// Uint64 returns the next eight keystream bytes as a little-endian integer.
func (p *PRNG) Uint64() uint64 {
	var b [8]byte
	p.Fill(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Uint64InRange returns a uniformly distributed integer in [lo, hi].
func (p *PRNG) Uint64InRange(lo, hi uint64) (uint64, error) {
	if lo > hi {
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidInput, "empty range [%d, %d]", lo, hi)
	}
	span := hi - lo
	if span == math.MaxUint64 {
		return p.Uint64(), nil
	}
	n := span + 1
	// Draws below 2^64 mod n would favour the low residues.
	threshold := -n % n
	for {
		x := p.Uint64()
		if x >= threshold {
			return lo + x%n, nil
		}
	}
}

// Shuffle permutes n elements with Fisher-Yates.
func (p *PRNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j, _ := p.Uint64InRange(0, uint64(i))
		swap(i, int(j))
	}
}

// Sub derives an independent generator seeded from the next SeedSize bytes.
func (p *PRNG) Sub() *PRNG {
	var seed Seed
	p.Fill(seed[:])
	return New(seed)
}

// SeedFromBytes converts a contract supplied seed.
func SeedFromBytes(b []byte) (Seed, error) {
	var s Seed
	if len(b) != SeedSize {
		return s, types.Errorf(types.ErrValue, types.CodeUnexpectedSize, "seed must be %d bytes, got %d", SeedSize, len(b))
	}
	copy(s[:], b)
	return s, nil
}
