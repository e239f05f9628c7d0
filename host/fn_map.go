package host

import (
	"slices"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/objects"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

func init() {
	register(types.ModuleMap, map[string]hostFn{
		"map_new": func(h *Host, _ *hostCall) (types.Val, error) { return h.objects.AddMap(nil) },
		"map_put": mapPut,
		"map_get": func(h *Host, c *hostCall) (types.Val, error) {
			m, i, err := mapLookup(h, c)
			if err != nil {
				return 0, err
			}
			return m[i].Val, nil
		},
		"map_del": func(h *Host, c *hostCall) (types.Val, error) {
			m, i, err := mapLookup(h, c)
			if err != nil {
				return 0, err
			}
			return h.objects.AddMap(slices.Delete(slices.Clone(m), i, i+1))
		},
		"map_len": func(h *Host, c *hostCall) (types.Val, error) {
			m, err := h.objects.Map(c.arg(0))
			return types.ValFromU32(uint32(len(m))), err
		},
		"map_has": func(h *Host, c *hostCall) (types.Val, error) {
			m, err := h.objects.Map(c.arg(0))
			if err != nil {
				return 0, err
			}
			_, ok, err := h.objects.MapFind(m, c.arg(1))
			return types.ValFromBool(ok), err
		},
		"map_key_by_pos": func(h *Host, c *hostCall) (types.Val, error) {
			e, err := mapAt(h, c)
			return e.Key, err
		},
		"map_val_by_pos": func(h *Host, c *hostCall) (types.Val, error) {
			e, err := mapAt(h, c)
			return e.Val, err
		},
		"map_keys": func(h *Host, c *hostCall) (types.Val, error) {
			return mapColumn(h, c, func(e objects.MapEntry) types.Val { return e.Key })
		},
		"map_values": func(h *Host, c *hostCall) (types.Val, error) {
			return mapColumn(h, c, func(e objects.MapEntry) types.Val { return e.Val })
		},
		"map_new_from_linear_memory":  mapNewFromLinearMemory,
		"map_unpack_to_linear_memory": mapUnpackToLinearMemory,
	})
}

func mapPut(h *Host, c *hostCall) (types.Val, error) {
	m, err := h.objects.Map(c.arg(0))
	if err != nil {
		return 0, err
	}
	i, ok, err := h.objects.MapFind(m, c.arg(1))
	if err != nil {
		return 0, err
	}
	out := slices.Clone(m)
	e := objects.MapEntry{Key: c.arg(1), Val: c.arg(2)}
	if ok {
		out[i] = e
	} else {
		out = slices.Insert(out, i, e)
	}
	return h.objects.AddMap(out)
}

// mapLookup finds argument 1 in map argument 0 or fails with Object/MissingKey.
func mapLookup(h *Host, c *hostCall) ([]objects.MapEntry, int, error) {
	m, err := h.objects.Map(c.arg(0))
	if err != nil {
		return nil, 0, err
	}
	i, ok, err := h.objects.MapFind(m, c.arg(1))
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, types.Errorf(types.ErrObject, types.CodeMissingKey, "map has no key %s", c.arg(1))
	}
	return m, i, nil
}

func mapAt(h *Host, c *hostCall) (objects.MapEntry, error) {
	m, err := h.objects.Map(c.arg(0))
	if err != nil {
		return objects.MapEntry{}, err
	}
	i, err := vecIndex(c.arg(1), len(m))
	if err != nil {
		return objects.MapEntry{}, err
	}
	return m[i], nil
}

func mapColumn(h *Host, c *hostCall, pick func(objects.MapEntry) types.Val) (types.Val, error) {
	m, err := h.objects.Map(c.arg(0))
	if err != nil {
		return 0, err
	}
	out := make([]types.Val, len(m))
	for i, e := range m {
		out[i] = pick(e)
	}
	return h.objects.AddVec(out)
}

// readKeys reads n symbol keys laid out as (ptr, len) slices.
func readKeys(h *Host, mem wasi.Memory, pos, n uint32) ([]string, error) {
	spans, err := wasi.ReadSlices(mem, pos, n)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(spans))
	for i, s := range spans {
		if err := h.budget.Charge(budget.MemCopy, uint64(s[1])); err != nil {
			return nil, err
		}
		b, err := mem.Read(s[0], s[1])
		if err != nil {
			return nil, err
		}
		keys[i] = string(b)
	}
	return keys, nil
}

func mapNewFromLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	a, err := u32Args(c.arg(0), c.arg(1), c.arg(2))
	if err != nil {
		return 0, err
	}
	keys, err := readKeys(h, c.mem, a[0], a[2])
	if err != nil {
		return 0, err
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(a[2])*8); err != nil {
		return 0, err
	}
	vals, err := wasi.ReadVals(c.mem, a[1], a[2])
	if err != nil {
		return 0, err
	}
	entries := make([]objects.MapEntry, len(keys))
	for i, k := range keys {
		kv, err := h.objects.SymbolVal(k)
		if err != nil {
			return 0, err
		}
		entries[i] = objects.MapEntry{Key: kv, Val: vals[i]}
	}
	return h.objects.AddMap(entries)
}

// mapUnpackToLinearMemory writes the value of each named key to the matching
// slot of the guest value buffer. Every map entry must be named.
func mapUnpackToLinearMemory(h *Host, c *hostCall) (types.Val, error) {
	m, err := h.objects.Map(c.arg(0))
	if err != nil {
		return 0, err
	}
	a, err := u32Args(c.arg(1), c.arg(2), c.arg(3))
	if err != nil {
		return 0, err
	}
	if int(a[2]) != len(m) {
		return 0, types.Errorf(types.ErrObject, types.CodeUnexpectedSize, "map has %d entries, buffer holds %d", len(m), a[2])
	}
	keys, err := readKeys(h, c.mem, a[0], a[2])
	if err != nil {
		return 0, err
	}
	vals := make([]types.Val, len(keys))
	for i, k := range keys {
		kv, err := h.objects.SymbolVal(k)
		if err != nil {
			return 0, err
		}
		j, ok, err := h.objects.MapFind(m, kv)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, types.Errorf(types.ErrObject, types.CodeMissingKey, "map has no key %q", k)
		}
		vals[i] = m[j].Val
	}
	if err := h.budget.Charge(budget.MemCopy, uint64(len(vals))*8); err != nil {
		return 0, err
	}
	if err := wasi.WriteVals(c.mem, a[1], vals); err != nil {
		return 0, err
	}
	return types.VoidVal, nil
}
