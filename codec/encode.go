// Package codec implements the canonical byte form of values.
//
// The encoding is order preserving: for any two valid values a and b,
// bytes.Compare(Serialize(a), Serialize(b)) == Compare(a, b). Every value has
// exactly one encoding and Deserialize rejects anything else.
//
// Layout: one type byte (variant rank + 1, so 0x00 can terminate sequences),
// then the body. Integers are fixed-width big-endian with the sign bit flipped
// for signed types. Byte strings escape 0x00 as 0x00 0xFF and end with a single
// 0x00. Vec and Map bodies are their self-delimiting elements followed by 0x00.
package codec

import (
	"encoding/binary"

	"github.com/govm-net/vmhost/types"
)

// MaxDepth bounds the nesting of Vec and Map values.
const MaxDepth = 64

const (
	terminator = 0x00
	escape     = 0xff

	signBit32 = uint32(1) << 31
	signBit64 = uint64(1) << 63
)

func typeByte(t types.ScValType) byte {
	return byte(t) + 1
}

// Serialize returns the canonical encoding of v.
func Serialize(v types.ScVal) ([]byte, error) {
	return AppendSerialize(nil, v)
}

// AppendSerialize appends the canonical encoding of v to dst.
func AppendSerialize(dst []byte, v types.ScVal) ([]byte, error) {
	return appendVal(dst, v, 0)
}

// MustSerialize is Serialize for values known to be valid.
func MustSerialize(v types.ScVal) []byte {
	b, err := Serialize(v)
	if err != nil {
		panic(err)
	}
	return b
}

func appendVal(dst []byte, v types.ScVal, depth int) ([]byte, error) {
	if v == nil {
		return nil, types.Errorf(types.ErrValue, types.CodeInvalidInput, "nil value")
	}
	if depth > MaxDepth {
		return nil, types.Errorf(types.ErrValue, types.CodeExceededLimit, "value nesting exceeds %d", MaxDepth)
	}
	dst = append(dst, typeByte(v.Type()))
	switch x := v.(type) {
	case types.Bool:
		if x {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case types.Void:
		return dst, nil
	case types.Error:
		dst = binary.BigEndian.AppendUint32(dst, uint32(x.Category))
		return binary.BigEndian.AppendUint32(dst, uint32(x.Code)), nil
	case types.U63:
		if uint64(x) > types.MaxSmallPositive {
			return nil, types.Errorf(types.ErrValue, types.CodeInvalidInput, "u63 out of range")
		}
		return binary.BigEndian.AppendUint64(dst, uint64(x)), nil
	case types.U32:
		return binary.BigEndian.AppendUint32(dst, uint32(x)), nil
	case types.I32:
		return binary.BigEndian.AppendUint32(dst, uint32(x)^signBit32), nil
	case types.U64:
		return binary.BigEndian.AppendUint64(dst, uint64(x)), nil
	case types.I64:
		return binary.BigEndian.AppendUint64(dst, uint64(x)^signBit64), nil
	case types.Timepoint:
		return binary.BigEndian.AppendUint64(dst, uint64(x)), nil
	case types.Duration:
		return binary.BigEndian.AppendUint64(dst, uint64(x)), nil
	case types.U128:
		dst = binary.BigEndian.AppendUint64(dst, x.Hi)
		return binary.BigEndian.AppendUint64(dst, x.Lo), nil
	case types.I128:
		dst = binary.BigEndian.AppendUint64(dst, uint64(x.Hi)^signBit64)
		return binary.BigEndian.AppendUint64(dst, x.Lo), nil
	case types.U256:
		b := x.Int().Bytes32()
		return append(dst, b[:]...), nil
	case types.I256:
		b := x.Int().Bytes32()
		b[0] ^= 0x80
		return append(dst, b[:]...), nil
	case types.Bytes:
		return appendEscaped(dst, x), nil
	case types.String:
		return appendEscaped(dst, []byte(x)), nil
	case types.Symbol:
		if err := types.ValidateSymbol(string(x)); err != nil {
			return nil, err
		}
		return appendEscaped(dst, []byte(x)), nil
	case types.Vec:
		var err error
		for _, e := range x {
			if dst, err = appendVal(dst, e, depth+1); err != nil {
				return nil, err
			}
		}
		return append(dst, terminator), nil
	case types.Map:
		for i, e := range x {
			if i > 0 && Compare(x[i-1].Key, e.Key) >= 0 {
				return nil, types.Errorf(types.ErrObject, types.CodeDuplicateKey, "map keys not strictly ascending at %d", i)
			}
		}
		var err error
		for _, e := range x {
			if dst, err = appendVal(dst, e.Key, depth+1); err != nil {
				return nil, err
			}
			if dst, err = appendVal(dst, e.Val, depth+1); err != nil {
				return nil, err
			}
		}
		return append(dst, terminator), nil
	case types.Address:
		if x.Kind > types.AddressContract {
			return nil, types.Errorf(types.ErrValue, types.CodeInvalidInput, "unknown address kind %d", x.Kind)
		}
		dst = append(dst, byte(x.Kind))
		return append(dst, x.ID[:]...), nil
	case types.MuxedAddress:
		dst = append(dst, x.Account[:]...)
		return binary.BigEndian.AppendUint64(dst, x.ID), nil
	case types.ContractExecutable:
		if x.Kind > types.ExecutableNative {
			return nil, types.Errorf(types.ErrValue, types.CodeInvalidInput, "unknown executable kind %d", x.Kind)
		}
		dst = append(dst, byte(x.Kind))
		return append(dst, x.Hash[:]...), nil
	}
	return nil, types.Errorf(types.ErrValue, types.CodeInvalidInput, "unsupported value %T", v)
}

func appendEscaped(dst, b []byte) []byte {
	for _, c := range b {
		dst = append(dst, c)
		if c == terminator {
			dst = append(dst, escape)
		}
	}
	return append(dst, terminator)
}
