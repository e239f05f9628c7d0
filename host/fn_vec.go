package host

import (
	"slices"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

func init() {
	register(types.ModuleVec, map[string]hostFn{
		"vec_new": func(h *Host, _ *hostCall) (types.Val, error) { return h.objects.AddVec([]types.Val{}) },
		"vec_put": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) {
				i, err := vecIndex(c.arg(1), len(v))
				if err != nil {
					return nil, err
				}
				v[i] = c.arg(2)
				return v, nil
			})
		},
		"vec_get": func(h *Host, c *hostCall) (types.Val, error) {
			v, err := h.objects.Vec(c.arg(0))
			if err != nil {
				return 0, err
			}
			i, err := vecIndex(c.arg(1), len(v))
			if err != nil {
				return 0, err
			}
			return v[i], nil
		},
		"vec_del": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) {
				i, err := vecIndex(c.arg(1), len(v))
				if err != nil {
					return nil, err
				}
				return slices.Delete(v, i, i+1), nil
			})
		},
		"vec_len": func(h *Host, c *hostCall) (types.Val, error) {
			v, err := h.objects.Vec(c.arg(0))
			return types.ValFromU32(uint32(len(v))), err
		},
		"vec_push_front": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) { return slices.Insert(v, 0, c.arg(1)), nil })
		},
		"vec_pop_front": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) {
				if len(v) == 0 {
					return nil, indexBounds("pop from empty vec")
				}
				return v[1:], nil
			})
		},
		"vec_push_back": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) { return append(v, c.arg(1)), nil })
		},
		"vec_pop_back": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) {
				if len(v) == 0 {
					return nil, indexBounds("pop from empty vec")
				}
				return v[:len(v)-1], nil
			})
		},
		"vec_front": func(h *Host, c *hostCall) (types.Val, error) { return vecEnd(h, c, true) },
		"vec_back":  func(h *Host, c *hostCall) (types.Val, error) { return vecEnd(h, c, false) },
		"vec_insert": func(h *Host, c *hostCall) (types.Val, error) {
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) {
				i, err := u32Arg(c.arg(1))
				if err != nil {
					return nil, err
				}
				if int(i) > len(v) {
					return nil, indexBounds("index %d outside length %d", i, len(v))
				}
				return slices.Insert(v, int(i), c.arg(2)), nil
			})
		},
		"vec_append": func(h *Host, c *hostCall) (types.Val, error) {
			other, err := h.objects.Vec(c.arg(1))
			if err != nil {
				return 0, err
			}
			return editVec(h, c, func(v []types.Val) ([]types.Val, error) { return append(v, other...), nil })
		},
		"vec_slice": func(h *Host, c *hostCall) (types.Val, error) {
			v, err := h.objects.Vec(c.arg(0))
			if err != nil {
				return 0, err
			}
			r, err := u32Args(c.arg(1), c.arg(2))
			if err != nil {
				return 0, err
			}
			if err := checkRange(r[0], r[1], len(v)); err != nil {
				return 0, err
			}
			return h.objects.AddVec(slices.Clone(v[r[0]:r[1]]))
		},
		"vec_first_index_of":          vecFirstIndexOf,
		"vec_new_from_linear_memory":  vecNewFromLinearMemory,
		"vec_unpack_to_linear_memory": vecUnpackToLinearMemory,
	})
}

func vecIndex(v types.Val, n int) (int, error) {
	i, err := u32Arg(v)
	if err != nil {
		return 0, err
	}
	if int(i) >= n {
		return 0, indexBounds("index %d outside length %d", i, n)
	}
	return int(i), nil
}

func vecEnd(h *Host, c *hostCall, front bool) (types.Val, error) {
	v, err := h.objects.Vec(c.arg(0))
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, indexBounds("empty vec")
	}
	if front {
		return v[0], nil
	}
	return v[len(v)-1], nil
}

// editVec applies edit to a private copy of argument 0 and stores the result
// as a new vec. Elements are validated against the current frame on insert.
func editVec(h *Host, c *hostCall, edit func([]types.Val) ([]types.Val, error)) (types.Val, error) {
	v, err := h.objects.Vec(c.arg(0))
	if err != nil {
		return 0, err
	}
	out, err := edit(slices.Clone(v))
	if err != nil {
		return 0, err
	}
	if out == nil {
		out = []types.Val{}
	}
	return h.objects.AddVec(out)
}

// vecFirstIndexOf returns the U32 position of the first element equal to
// argument 1, or Void.
func vecFirstIndexOf(h *Host, c *hostCall) (types.Val, error) {
	v, err := h.objects.Vec(c.arg(0))
	if err != nil {
		return 0, err
	}
	for i, e := range v {
		n, err := h.objects.Compare(e, c.arg(1))
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return types.ValFromU32(uint32(i)), nil
		}
	}
	return types.VoidVal, nil
}

func vecNewFromLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	a, err := u32Args(c.arg(0), c.arg(1))
	if err != nil {
		return 0, err
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(a[1])*8); err != nil {
		return 0, err
	}
	vals, err := wasi.ReadVals(c.mem, a[0], a[1])
	if err != nil {
		return 0, err
	}
	return h.objects.AddVec(vals)
}

func vecUnpackToLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	v, err := h.objects.Vec(c.arg(0))
	if err != nil {
		return 0, err
	}
	a, err := u32Args(c.arg(1), c.arg(2))
	if err != nil {
		return 0, err
	}
	if int(a[1]) != len(v) {
		return 0, types.Errorf(types.ErrObject, types.CodeUnexpectedSize, "vec has %d elements, buffer holds %d", len(v), a[1])
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(len(v))*8); err != nil {
		return 0, err
	}
	if err := wasi.WriteVals(c.mem, a[0], v); err != nil {
		return 0, err
	}
	return types.VoidVal, nil
}
