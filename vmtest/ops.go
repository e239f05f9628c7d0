package vmtest

import "github.com/govm-net/vmhost/types"

const (
	opUnreachable = 0x00
	opBlockVoid   = 0x40
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opI64Load     = 0x29
	opI64Store    = 0x37
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI64Eqz      = 0x50
	opI64Eq       = 0x51
	opI64Ne       = 0x52
	opI64Add      = 0x7c
	opI64Sub      = 0x7d
	opI64And      = 0x83
	opI64Or       = 0x84
	opI64Shl      = 0x86
	opI64ShrS     = 0x87
	opI64ShrU     = 0x88
	opI32WrapI64  = 0xa7
	opI64ExtendS  = 0xac
	opI64ExtendU  = 0xad
)

// Instructions. Each returns the encoded bytes of one instruction.

func Unreachable() []byte      { return []byte{opUnreachable} }
func Return() []byte           { return []byte{opReturn} }
func Drop() []byte             { return []byte{opDrop} }
func Else() []byte             { return []byte{opElse} }
func End() []byte              { return []byte{opEnd} }
func I64Eqz() []byte           { return []byte{opI64Eqz} }
func I64Eq() []byte            { return []byte{opI64Eq} }
func I64Ne() []byte            { return []byte{opI64Ne} }
func I64Add() []byte           { return []byte{opI64Add} }
func I64Sub() []byte           { return []byte{opI64Sub} }
func I64And() []byte           { return []byte{opI64And} }
func I64Or() []byte            { return []byte{opI64Or} }
func I64Shl() []byte           { return []byte{opI64Shl} }
func I64ShrS() []byte          { return []byte{opI64ShrS} }
func I64ShrU() []byte          { return []byte{opI64ShrU} }
func I32WrapI64() []byte       { return []byte{opI32WrapI64} }
func I64ExtendI32S() []byte    { return []byte{opI64ExtendS} }
func I64ExtendI32U() []byte    { return []byte{opI64ExtendU} }
func Call(f uint32) []byte     { return uleb([]byte{opCall}, uint64(f)) }
func Br(depth uint32) []byte   { return uleb([]byte{opBr}, uint64(depth)) }
func BrIf(depth uint32) []byte { return uleb([]byte{opBrIf}, uint64(depth)) }
func LocalGet(i uint32) []byte { return uleb([]byte{opLocalGet}, uint64(i)) }
func LocalSet(i uint32) []byte { return uleb([]byte{opLocalSet}, uint64(i)) }
func I32Const(v int32) []byte  { return sleb([]byte{opI32Const}, int64(v)) }
func I64Const(v int64) []byte  { return sleb([]byte{opI64Const}, v) }

// Loop starts a loop block without results.
func Loop() []byte { return []byte{opLoop, opBlockVoid} }

// If starts an if block without results.
func If() []byte { return []byte{opIf, opBlockVoid} }

// I64Load loads from the address on the stack plus offset.
func I64Load(offset uint32) []byte { return uleb([]byte{opI64Load, 3}, uint64(offset)) }

// I64Store stores to the address on the stack plus offset.
func I64Store(offset uint32) []byte { return uleb([]byte{opI64Store, 3}, uint64(offset)) }

// ValConst pushes a constant Val.
func ValConst(v types.Val) []byte { return I64Const(int64(v)) }

// Void pushes the Void value.
func Void() []byte { return ValConst(types.VoidVal) }

// U32Val pushes a U32 value.
func U32Val(u uint32) []byte { return ValConst(types.ValFromU32(u)) }

// Symbol pushes a small symbol.
func Symbol(s string) []byte {
	v, ok := types.SmallSymbol(s)
	if !ok {
		panic("vmtest: symbol does not fit inline: " + s)
	}
	return ValConst(v)
}
