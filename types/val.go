// Package types contains shared type definitions and constants
// used by both the host environment and WebAssembly contracts
package types

import (
	"fmt"
)

// Val is the 64-bit word every host/guest boundary crossing uses.
//
// Bit 0 clear: the remaining 63 bits are a SmallPositiveInt.
// Bit 0 set: bits 1..7 hold a Tag and bits 8..63 hold a 56-bit body.
type Val uint64

// Tag names the variant of a tagged Val.
//
// IMPORTANT: tag values are part of the guest ABI. Contracts compiled against one
// numbering cannot run on a host using another.
type Tag uint8

const (
	TagVoid Tag = iota
	TagBool
	TagError
	TagU32
	TagI32
	TagU64Small
	TagI64Small
	TagTimepointSmall
	TagDurationSmall
	TagU128Small
	TagI128Small
	TagU256Small
	TagI256Small
	TagSymbolSmall
	TagObject

	tagCount
)

var tagNames = [...]string{
	TagVoid:           "Void",
	TagBool:           "Bool",
	TagError:          "Error",
	TagU32:            "U32",
	TagI32:            "I32",
	TagU64Small:       "U64Small",
	TagI64Small:       "I64Small",
	TagTimepointSmall: "TimepointSmall",
	TagDurationSmall:  "DurationSmall",
	TagU128Small:      "U128Small",
	TagI128Small:      "I128Small",
	TagU256Small:      "U256Small",
	TagI256Small:      "I256Small",
	TagSymbolSmall:    "SymbolSmall",
	TagObject:         "Object",
}

func (t Tag) String() string {
	if t < tagCount {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

const (
	tagShift  = 1
	tagMask   = 0x7f
	bodyShift = 8
	bodyBits  = 56

	// MaxSmallPositive is the largest integer a SmallPositiveInt holds.
	MaxSmallPositive = uint64(1)<<63 - 1
	// MaxSmallU64 is the largest unsigned value embedded in a 56-bit body.
	MaxSmallU64 = uint64(1)<<bodyBits - 1
	// MinSmallI64 and MaxSmallI64 bound signed values embedded in a 56-bit body.
	MinSmallI64 = -(int64(1) << (bodyBits - 1))
	MaxSmallI64 = int64(1)<<(bodyBits-1) - 1

	// ObjectIndexBits is the width of the per-type object table index.
	ObjectIndexBits = 28
	MaxObjectIndex  = uint32(1)<<ObjectIndexBits - 1
)

// Well known constant values.
var (
	VoidVal  = fromBody(TagVoid, 0)
	TrueVal  = fromBody(TagBool, 1)
	FalseVal = fromBody(TagBool, 0)
)

func fromBody(tag Tag, body uint64) Val {
	return Val(body<<bodyShift | uint64(tag)<<tagShift | 1)
}

// IsSmallPositive reports whether v is a SmallPositiveInt.
func (v Val) IsSmallPositive() bool {
	return v&1 == 0
}

// Tag returns the tag of a tagged Val. The result is meaningless for a
// SmallPositiveInt; check IsSmallPositive first.
func (v Val) Tag() Tag {
	return Tag((uint64(v) >> tagShift) & tagMask)
}

// Body returns the 56-bit payload of a tagged Val.
func (v Val) Body() uint64 {
	return uint64(v) >> bodyShift
}

// Is reports whether v is tagged with tag.
func (v Val) Is(tag Tag) bool {
	return !v.IsSmallPositive() && v.Tag() == tag
}

// Check validates the bit pattern of v without consulting any object table.
func (v Val) Check() error {
	if v.IsSmallPositive() {
		return nil
	}
	tag, body := v.Tag(), v.Body()
	switch tag {
	case TagVoid:
		if body != 0 {
			return Errorf(ErrValue, CodeInvalidTag, "void with non-zero body %#x", body)
		}
	case TagBool:
		if body > 1 {
			return Errorf(ErrValue, CodeInvalidTag, "bool with body %#x", body)
		}
	case TagError:
		if ErrorCategory(body>>32) >= errorCategoryCount {
			return Errorf(ErrValue, CodeInvalidTag, "error with unknown category %d", body>>32)
		}
	case TagU32, TagI32:
		if body>>32 != 0 {
			return Errorf(ErrValue, CodeInvalidTag, "%s with body %#x", tag, body)
		}
	case TagSymbolSmall:
		if _, err := decodeSmallSymbol(body); err != nil {
			return err
		}
	case TagObject:
		if body>>32 != 0 {
			return Errorf(ErrValue, CodeInvalidTag, "object handle with body %#x", body)
		}
		if ObjectType(body>>ObjectIndexBits) >= objectTypeCount {
			return Errorf(ErrValue, CodeInvalidTag, "object handle with type %d", body>>ObjectIndexBits)
		}
	case TagU64Small, TagI64Small, TagTimepointSmall, TagDurationSmall,
		TagU128Small, TagI128Small, TagU256Small, TagI256Small:
	default:
		return Errorf(ErrValue, CodeInvalidTag, "unknown tag %d", uint8(tag))
	}
	return nil
}

func (v Val) String() string {
	if v.IsSmallPositive() {
		return fmt.Sprintf("SmallPositive(%d)", uint64(v)>>1)
	}
	switch v.Tag() {
	case TagVoid:
		return "Void"
	case TagBool:
		return fmt.Sprintf("Bool(%t)", v.Body() == 1)
	case TagError:
		e, _ := v.AsError()
		return e.String()
	case TagSymbolSmall:
		s, err := decodeSmallSymbol(v.Body())
		if err != nil {
			return fmt.Sprintf("SymbolSmall(invalid %#x)", v.Body())
		}
		return fmt.Sprintf("Symbol(%s)", s)
	case TagObject:
		ot, idx, _ := v.AsObject()
		return fmt.Sprintf("Object(%s#%d)", ot, idx)
	default:
		return fmt.Sprintf("%s(%#x)", v.Tag(), v.Body())
	}
}

// ValFromSmallPositive embeds u, which must not exceed MaxSmallPositive.
func ValFromSmallPositive(u uint64) (Val, bool) {
	if u > MaxSmallPositive {
		return 0, false
	}
	return Val(u << 1), true
}

// AsSmallPositive extracts the SmallPositiveInt payload.
func (v Val) AsSmallPositive() (uint64, bool) {
	if !v.IsSmallPositive() {
		return 0, false
	}
	return uint64(v) >> 1, true
}

// ValFromBool returns TrueVal or FalseVal.
func ValFromBool(b bool) Val {
	if b {
		return TrueVal
	}
	return FalseVal
}

// AsBool extracts a Bool.
func (v Val) AsBool() (bool, bool) {
	if !v.Is(TagBool) || v.Body() > 1 {
		return false, false
	}
	return v.Body() == 1, true
}

// ValFromU32 embeds a u32.
func ValFromU32(u uint32) Val {
	return fromBody(TagU32, uint64(u))
}

// AsU32 extracts a U32.
func (v Val) AsU32() (uint32, bool) {
	if !v.Is(TagU32) || v.Body()>>32 != 0 {
		return 0, false
	}
	return uint32(v.Body()), true
}

// ValFromI32 embeds an i32.
func ValFromI32(i int32) Val {
	return fromBody(TagI32, uint64(uint32(i)))
}

// AsI32 extracts an I32.
func (v Val) AsI32() (int32, bool) {
	if !v.Is(TagI32) || v.Body()>>32 != 0 {
		return 0, false
	}
	return int32(uint32(v.Body())), true
}

// ValFromError embeds an Error.
func ValFromError(e Error) Val {
	return fromBody(TagError, uint64(e.Category)<<32|uint64(e.Code))
}

// AsError extracts an Error.
func (v Val) AsError() (Error, bool) {
	if !v.Is(TagError) {
		return Error{}, false
	}
	b := v.Body()
	return Error{Category: ErrorCategory(b >> 32), Code: ErrorCode(uint32(b))}, true
}

// SmallUnsigned embeds u with one of the unsigned small tags when it fits.
func SmallUnsigned(tag Tag, u uint64) (Val, bool) {
	if u > MaxSmallU64 {
		return 0, false
	}
	return fromBody(tag, u), true
}

// SmallSigned embeds i with one of the signed small tags when it fits.
func SmallSigned(tag Tag, i int64) (Val, bool) {
	if i < MinSmallI64 || i > MaxSmallI64 {
		return 0, false
	}
	return fromBody(tag, uint64(i)&MaxSmallU64), true
}

// SmallUnsignedBody returns the body of an unsigned small variant.
func (v Val) SmallUnsignedBody() uint64 {
	return v.Body()
}

// SmallSignedBody sign-extends the body of a signed small variant.
func (v Val) SmallSignedBody() int64 {
	return int64(uint64(v)) >> bodyShift
}

// ValFromObject builds an object handle.
func ValFromObject(t ObjectType, index uint32) (Val, bool) {
	if t >= objectTypeCount || index > MaxObjectIndex {
		return 0, false
	}
	return fromBody(TagObject, uint64(t)<<ObjectIndexBits|uint64(index)), true
}

// AsObject splits an object handle into its type and table index.
func (v Val) AsObject() (ObjectType, uint32, bool) {
	if !v.Is(TagObject) || v.Body()>>32 != 0 {
		return 0, 0, false
	}
	b := v.Body()
	t := ObjectType(b >> ObjectIndexBits)
	if t >= objectTypeCount {
		return 0, 0, false
	}
	return t, uint32(b) & MaxObjectIndex, true
}

// IsObject reports whether v refers to the object table.
func (v Val) IsObject() bool {
	return v.Is(TagObject)
}
