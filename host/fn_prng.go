package host

import (
	"slices"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/prng"
	"github.com/govm-net/vmhost/types"
)

func init() {
	register(types.ModulePrng, map[string]hostFn{
		"prng_reseed": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			seed, err := prng.SeedFromBytes(b)
			if err != nil {
				return 0, err
			}
			p, err := h.framePRNG()
			if err != nil {
				return 0, err
			}
			p.Reseed(seed)
			return types.VoidVal, nil
		},
		"prng_bytes_new": func(h *Host, c *hostCall) (types.Val, error) {
			n, err := u32Arg(c.arg(0))
			if err != nil {
				return 0, err
			}
			if err := h.budget.Charge(budget.PrngBytes, uint64(n)); err != nil {
				return 0, err
			}
			p, err := h.framePRNG()
			if err != nil {
				return 0, err
			}
			return h.objects.AddBytes(p.Bytes(int(n)))
		},
		"prng_u64_in_inclusive_range": func(h *Host, c *hostCall) (types.Val, error) {
			if err := h.budget.Charge(budget.PrngBytes, 8); err != nil {
				return 0, err
			}
			p, err := h.framePRNG()
			if err != nil {
				return 0, err
			}
			u, err := p.Uint64InRange(c.raw(0), c.raw(1))
			return types.Val(u), err
		},
		"prng_vec_shuffle": func(h *Host, c *hostCall) (types.Val, error) {
			v, err := h.objects.Vec(c.arg(0))
			if err != nil {
				return 0, err
			}
			if err := h.budget.Charge(budget.PrngBytes, uint64(len(v))*8); err != nil {
				return 0, err
			}
			p, err := h.framePRNG()
			if err != nil {
				return 0, err
			}
			out := slices.Clone(v)
			p.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
			return h.objects.AddVec(out)
		},
	})
}

// framePRNG returns the generator of the executing frame, deriving it from
// the invocation's base generator on first use. Frames that never draw
// randomness do not advance the base stream.
func (h *Host) framePRNG() (*prng.PRNG, error) {
	f, err := h.current()
	if err != nil {
		return nil, err
	}
	if f.prng == nil {
		f.prng = h.prng.Sub()
	}
	return f.prng, nil
}
