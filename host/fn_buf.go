package host

import (
	"slices"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

func init() {
	register(types.ModuleBuf, map[string]hostFn{
		"bytes_new": func(h *Host, _ *hostCall) (types.Val, error) { return h.objects.AddBytes(nil) },
		"bytes_new_from_linear_memory": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := readMemory(h, c, 0)
			if err != nil {
				return 0, err
			}
			return h.objects.AddBytes(b)
		},
		"bytes_copy_to_linear_memory": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			return copyToMemory(h, c, b)
		},
		"bytes_copy_from_linear_memory": bytesCopyFromLinearMemory,
		"bytes_len": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			return types.ValFromU32(uint32(len(b))), err
		},
		"bytes_get": func(h *Host, c *hostCall) (types.Val, error) {
			return bytesAt(h, c.arg(0), func(n int) (uint32, error) { return u32Arg(c.arg(1)) })
		},
		"bytes_put": func(h *Host, c *hostCall) (types.Val, error) {
			return editBytes(h, c, func(b []byte) ([]byte, error) {
				i, x, err := indexAndByte(c, 1, 2)
				if err != nil {
					return nil, err
				}
				if int(i) >= len(b) {
					return nil, indexBounds("index %d outside length %d", i, len(b))
				}
				b[i] = x
				return b, nil
			})
		},
		"bytes_del": func(h *Host, c *hostCall) (types.Val, error) {
			return editBytes(h, c, func(b []byte) ([]byte, error) {
				i, err := u32Arg(c.arg(1))
				if err != nil {
					return nil, err
				}
				if int(i) >= len(b) {
					return nil, indexBounds("index %d outside length %d", i, len(b))
				}
				return slices.Delete(b, int(i), int(i)+1), nil
			})
		},
		"bytes_push": func(h *Host, c *hostCall) (types.Val, error) {
			return editBytes(h, c, func(b []byte) ([]byte, error) {
				x, err := byteArg(c.arg(1))
				if err != nil {
					return nil, err
				}
				return append(b, x), nil
			})
		},
		"bytes_pop": func(h *Host, c *hostCall) (types.Val, error) {
			return editBytes(h, c, func(b []byte) ([]byte, error) {
				if len(b) == 0 {
					return nil, indexBounds("pop from empty bytes")
				}
				return b[:len(b)-1], nil
			})
		},
		"bytes_front": func(h *Host, c *hostCall) (types.Val, error) {
			return bytesAt(h, c.arg(0), func(int) (uint32, error) { return 0, nil })
		},
		"bytes_back": func(h *Host, c *hostCall) (types.Val, error) {
			return bytesAt(h, c.arg(0), func(n int) (uint32, error) { return uint32(n - 1), nil })
		},
		"bytes_insert": func(h *Host, c *hostCall) (types.Val, error) {
			return editBytes(h, c, func(b []byte) ([]byte, error) {
				i, x, err := indexAndByte(c, 1, 2)
				if err != nil {
					return nil, err
				}
				if int(i) > len(b) {
					return nil, indexBounds("index %d outside length %d", i, len(b))
				}
				return slices.Insert(b, int(i), x), nil
			})
		},
		"bytes_append": func(h *Host, c *hostCall) (types.Val, error) {
			other, err := h.objects.Bytes(c.arg(1))
			if err != nil {
				return 0, err
			}
			return editBytes(h, c, func(b []byte) ([]byte, error) { return append(b, other...), nil })
		},
		"bytes_slice": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			r, err := u32Args(c.arg(1), c.arg(2))
			if err != nil {
				return 0, err
			}
			if err := checkRange(r[0], r[1], len(b)); err != nil {
				return 0, err
			}
			return h.objects.AddBytes(b[r[0]:r[1]])
		},

		"string_new_from_linear_memory": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := readMemory(h, c, 0)
			if err != nil {
				return 0, err
			}
			return h.objects.AddString(string(b))
		},
		"string_copy_to_linear_memory": func(h *Host, c *hostCall) (types.Val, error) {
			s, err := h.objects.String(c.arg(0))
			if err != nil {
				return 0, err
			}
			return copyToMemory(h, c, []byte(s))
		},
		"string_len": func(h *Host, c *hostCall) (types.Val, error) {
			s, err := h.objects.String(c.arg(0))
			return types.ValFromU32(uint32(len(s))), err
		},

		"symbol_new_from_linear_memory": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := readMemory(h, c, 0)
			if err != nil {
				return 0, err
			}
			return h.objects.SymbolVal(string(b))
		},
		"symbol_copy_to_linear_memory": func(h *Host, c *hostCall) (types.Val, error) {
			s, err := h.objects.Symbol(c.arg(0))
			if err != nil {
				return 0, err
			}
			return copyToMemory(h, c, []byte(s))
		},
		"symbol_len": func(h *Host, c *hostCall) (types.Val, error) {
			s, err := h.objects.Symbol(c.arg(0))
			return types.ValFromU32(uint32(len(s))), err
		},
		"symbol_index_in_linear_memory": symbolIndexInLinearMemory,

		"serialize_to_bytes": func(h *Host, c *hostCall) (types.Val, error) {
			sv, err := h.objects.ToScVal(c.arg(0))
			if err != nil {
				return 0, err
			}
			b, err := codec.Serialize(sv)
			if err != nil {
				return 0, err
			}
			if err := h.budget.Charge(budget.ValSerialize, uint64(len(b))); err != nil {
				return 0, err
			}
			return h.objects.AddBytes(b)
		},
		"deserialize_from_bytes": func(h *Host, c *hostCall) (types.Val, error) {
			b, err := h.objects.Bytes(c.arg(0))
			if err != nil {
				return 0, err
			}
			if err := h.budget.Charge(budget.ValDeserialize, uint64(len(b))); err != nil {
				return 0, err
			}
			sv, err := codec.Deserialize(b)
			if err != nil {
				return 0, err
			}
			return h.objects.FromScVal(sv)
		},
	})
}

// readMemory reads the (pos, len) guest span starting at argument i.
func readMemory(h *Host, c *hostCall, i int) ([]byte, error) {
	a, err := u32Args(c.arg(i), c.arg(i+1))
	if err != nil {
		return nil, err
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(a[1])); err != nil {
		return nil, err
	}
	return c.mem.Read(a[0], a[1])
}

// copyToMemory writes src[pos:pos+len] to guest memory at lm_pos. The
// arguments after the object are (pos, lm_pos, len).
func copyToMemory(h *Host, c *hostCall, src []byte) (types.Val, error) {
	a, err := u32Args(c.arg(1), c.arg(2), c.arg(3))
	if err != nil {
		return 0, err
	}
	pos, lmPos, n := a[0], a[1], a[2]
	if err := checkSpan(pos, n, len(src)); err != nil {
		return 0, err
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(n)); err != nil {
		return 0, err
	}
	if err := c.mem.Write(lmPos, src[pos:pos+n]); err != nil {
		return 0, err
	}
	return types.VoidVal, nil
}

// bytesCopyFromLinearMemory returns a new Bytes with guest memory written at
// pos, growing the buffer when the span runs past its end.
func bytesCopyFromLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	b, err := h.objects.Bytes(c.arg(0))
	if err != nil {
		return 0, err
	}
	a, err := u32Args(c.arg(1), c.arg(2), c.arg(3))
	if err != nil {
		return 0, err
	}
	pos, lmPos, n := a[0], a[1], a[2]
	if int(pos) > len(b) {
		return 0, indexBounds("position %d outside length %d", pos, len(b))
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(n)); err != nil {
		return 0, err
	}
	src, err := c.mem.Read(lmPos, n)
	if err != nil {
		return 0, err
	}
	size := max(len(b), int(pos)+int(n))
	out := make([]byte, size)
	copy(out, b)
	copy(out[pos:], src)
	return h.objects.AddBytes(out)
}

func symbolIndexInLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	sym, err := h.objects.Symbol(c.arg(0))
	if err != nil {
		return 0, err
	}
	a, err := u32Args(c.arg(1), c.arg(2))
	if err != nil {
		return 0, err
	}
	spans, err := wasi.ReadSlices(c.mem, a[0], a[1])
	if err != nil {
		return 0, err
	}
	for i, s := range spans {
		if s[1] != uint32(len(sym)) {
			continue
		}
		if err := h.budget.Charge(budget.MemCopy, uint64(s[1])); err != nil {
			return 0, err
		}
		b, err := c.mem.Read(s[0], s[1])
		if err != nil {
			return 0, err
		}
		if string(b) == sym {
			return types.ValFromU32(uint32(i)), nil
		}
	}
	return 0, types.Errorf(types.ErrObject, types.CodeMissingValue, "symbol %q not found in %d slices", sym, len(spans))
}

func byteArg(v types.Val) (byte, error) {
	u, err := u32Arg(v)
	if err != nil {
		return 0, err
	}
	if u > 0xff {
		return 0, types.Errorf(types.ErrValue, types.CodeInvalidInput, "%d is not a byte", u)
	}
	return byte(u), nil
}

func indexAndByte(c *hostCall, i, x int) (uint32, byte, error) {
	idx, err := u32Arg(c.arg(i))
	if err != nil {
		return 0, 0, err
	}
	b, err := byteArg(c.arg(x))
	return idx, b, err
}

// bytesAt reads the byte at the index chosen by pick for the buffer length.
func bytesAt(h *Host, v types.Val, pick func(n int) (uint32, error)) (types.Val, error) {
	b, err := h.objects.Bytes(v)
	if err != nil {
		return 0, err
	}
	i, err := pick(len(b))
	if err != nil {
		return 0, err
	}
	if len(b) == 0 || int(i) >= len(b) {
		return 0, indexBounds("index %d outside length %d", i, len(b))
	}
	return types.ValFromU32(uint32(b[i])), nil
}

// editBytes applies edit to a private copy of argument 0 and stores the
// result as a new object. Bytes objects are immutable.
func editBytes(h *Host, c *hostCall, edit func([]byte) ([]byte, error)) (types.Val, error) {
	b, err := h.objects.Bytes(c.arg(0))
	if err != nil {
		return 0, err
	}
	out, err := edit(slices.Clone(b))
	if err != nil {
		return 0, err
	}
	return h.objects.AddBytes(out)
}
