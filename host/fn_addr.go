package host

import (
	"github.com/govm-net/vmhost/types"
)

func init() {
	register(types.ModuleAddress, map[string]hostFn{
		"strkey_to_address": func(h *Host, c *hostCall) (types.Val, error) {
			s, err := textArg(h, c.arg(0))
			if err != nil {
				return 0, err
			}
			a, err := types.DecodeStrkey(s)
			if err != nil {
				return 0, err
			}
			return h.objects.AddAddress(a)
		},
		"address_to_strkey": func(h *Host, c *hostCall) (types.Val, error) {
			a, err := h.objects.Address(c.arg(0))
			if err != nil {
				return 0, err
			}
			s, err := types.EncodeStrkey(a)
			if err != nil {
				return 0, err
			}
			return h.objects.AddString(s)
		},
		"get_address_from_muxed_address": func(h *Host, c *hostCall) (types.Val, error) {
			ot, err := h.objects.ObjectType(c.arg(0))
			if err != nil {
				return 0, err
			}
			if ot == types.ObjAddress {
				return c.arg(0), nil
			}
			m, err := h.objects.MuxedAddress(c.arg(0))
			if err != nil {
				return 0, err
			}
			return h.objects.AddAddress(types.AccountAddress(m.Account))
		},
		"get_id_from_muxed_address": func(h *Host, c *hostCall) (types.Val, error) {
			ot, err := h.objects.ObjectType(c.arg(0))
			if err != nil {
				return 0, err
			}
			if ot == types.ObjAddress {
				return types.VoidVal, nil
			}
			m, err := h.objects.MuxedAddress(c.arg(0))
			if err != nil {
				return 0, err
			}
			return h.objects.U64Val(m.ID)
		},
	})
}

// textArg reads a String or Bytes object as text.
func textArg(h *Host, v types.Val) (string, error) {
	ot, err := h.objects.ObjectType(v)
	if err != nil {
		return "", err
	}
	if ot == types.ObjBytes {
		b, err := h.objects.Bytes(v)
		return string(b), err
	}
	return h.objects.String(v)
}
