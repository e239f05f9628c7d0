package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ScValType enumerates the variants of ScVal. The numeric value is the variant
// rank used for ordering values of different variants.
type ScValType uint8

const (
	ScvBool ScValType = iota
	ScvVoid
	ScvError
	ScvU63
	ScvU32
	ScvI32
	ScvU64
	ScvI64
	ScvTimepoint
	ScvDuration
	ScvU128
	ScvI128
	ScvU256
	ScvI256
	ScvBytes
	ScvString
	ScvSymbol
	ScvVec
	ScvMap
	ScvAddress
	ScvMuxedAddress
	ScvContractExecutable

	scValTypeCount
)

// ScValTypeCount is the number of ScVal variants.
const ScValTypeCount = int(scValTypeCount)

var scValTypeNames = [...]string{
	ScvBool:               "bool",
	ScvVoid:               "void",
	ScvError:              "error",
	ScvU63:                "u63",
	ScvU32:                "u32",
	ScvI32:                "i32",
	ScvU64:                "u64",
	ScvI64:                "i64",
	ScvTimepoint:          "timepoint",
	ScvDuration:           "duration",
	ScvU128:               "u128",
	ScvI128:               "i128",
	ScvU256:               "u256",
	ScvI256:               "i256",
	ScvBytes:              "bytes",
	ScvString:             "string",
	ScvSymbol:             "symbol",
	ScvVec:                "vec",
	ScvMap:                "map",
	ScvAddress:            "address",
	ScvMuxedAddress:       "muxed_address",
	ScvContractExecutable: "contract_executable",
}

func (t ScValType) String() string {
	if t < scValTypeCount {
		return scValTypeNames[t]
	}
	return fmt.Sprintf("ScValType(%d)", uint8(t))
}

// ScVal is the host independent form of a value: what a Val means once every
// object handle has been replaced by the object contents. The set of variants
// is closed.
type ScVal interface {
	Type() ScValType
	scVal()
}

type (
	Bool      bool
	Void      struct{}
	U63       uint64
	U32       uint32
	I32       int32
	U64       uint64
	I64       int64
	Timepoint uint64
	Duration  uint64
	Bytes     []byte
	String    string
	Symbol    string
	Vec       []ScVal
	Map       []MapEntry
)

// U128 is an unsigned 128-bit integer split in two halves.
type U128 struct {
	Hi, Lo uint64
}

// I128 is a signed 128-bit integer; Hi carries the sign.
type I128 struct {
	Hi int64
	Lo uint64
}

// U256 is an unsigned 256-bit integer.
type U256 uint256.Int

// I256 is a signed 256-bit integer in two's complement.
type I256 uint256.Int

// MapEntry is one key/value pair of a Map. Maps keep entries sorted by key.
type MapEntry struct {
	Key ScVal
	Val ScVal
}

// Hash is a 32-byte identifier.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromString parses a hex string, with or without a 0x prefix.
func HashFromString(str string) (Hash, error) {
	str = strings.TrimPrefix(str, "0x")
	b, err := hex.DecodeString(str)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %w", str, err)
	}
	if len(b) != len(Hash{}) {
		return Hash{}, fmt.Errorf("invalid hash length %d", len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// AddressKind distinguishes account and contract addresses.
type AddressKind uint8

const (
	AddressAccount AddressKind = iota
	AddressContract
)

func (k AddressKind) String() string {
	switch k {
	case AddressAccount:
		return "account"
	case AddressContract:
		return "contract"
	}
	return fmt.Sprintf("AddressKind(%d)", uint8(k))
}

// Address identifies an account (by ed25519 public key) or a contract (by id).
type Address struct {
	Kind AddressKind
	ID   Hash
}

// AccountAddress builds an account address from an ed25519 public key.
func AccountAddress(pub Hash) Address {
	return Address{Kind: AddressAccount, ID: pub}
}

// ContractAddress builds a contract address from a contract id.
func ContractAddress(id Hash) Address {
	return Address{Kind: AddressContract, ID: id}
}

func (a Address) String() string {
	if s, err := EncodeStrkey(a); err == nil {
		return s
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}

// MuxedAddress is an account address with a 64-bit sub-account id.
type MuxedAddress struct {
	Account Hash
	ID      uint64
}

// ExecutableKind distinguishes deployed bytecode from host-native contracts.
type ExecutableKind uint8

const (
	ExecutableWasm ExecutableKind = iota
	ExecutableNative
)

// ContractExecutable names the code a contract instance runs: a wasm code hash
// or the id of a registered native contract.
type ContractExecutable struct {
	Kind ExecutableKind
	Hash Hash
}

func (Bool) Type() ScValType               { return ScvBool }
func (Void) Type() ScValType               { return ScvVoid }
func (Error) Type() ScValType              { return ScvError }
func (U63) Type() ScValType                { return ScvU63 }
func (U32) Type() ScValType                { return ScvU32 }
func (I32) Type() ScValType                { return ScvI32 }
func (U64) Type() ScValType                { return ScvU64 }
func (I64) Type() ScValType                { return ScvI64 }
func (Timepoint) Type() ScValType          { return ScvTimepoint }
func (Duration) Type() ScValType           { return ScvDuration }
func (U128) Type() ScValType               { return ScvU128 }
func (I128) Type() ScValType               { return ScvI128 }
func (U256) Type() ScValType               { return ScvU256 }
func (I256) Type() ScValType               { return ScvI256 }
func (Bytes) Type() ScValType              { return ScvBytes }
func (String) Type() ScValType             { return ScvString }
func (Symbol) Type() ScValType             { return ScvSymbol }
func (Vec) Type() ScValType                { return ScvVec }
func (Map) Type() ScValType                { return ScvMap }
func (Address) Type() ScValType            { return ScvAddress }
func (MuxedAddress) Type() ScValType       { return ScvMuxedAddress }
func (ContractExecutable) Type() ScValType { return ScvContractExecutable }

func (Bool) scVal()               {}
func (Void) scVal()               {}
func (Error) scVal()              {}
func (U63) scVal()                {}
func (U32) scVal()                {}
func (I32) scVal()                {}
func (U64) scVal()                {}
func (I64) scVal()                {}
func (Timepoint) scVal()          {}
func (Duration) scVal()           {}
func (U128) scVal()               {}
func (I128) scVal()               {}
func (U256) scVal()               {}
func (I256) scVal()               {}
func (Bytes) scVal()              {}
func (String) scVal()             {}
func (Symbol) scVal()             {}
func (Vec) scVal()                {}
func (Map) scVal()                {}
func (Address) scVal()            {}
func (MuxedAddress) scVal()       {}
func (ContractExecutable) scVal() {}

// Int returns the value as a uint256.Int.
func (u U256) Int() *uint256.Int {
	v := uint256.Int(u)
	return &v
}

// Big returns the value as a big.Int.
func (u U256) Big() *big.Int {
	return u.Int().ToBig()
}

// Int returns the two's complement bit pattern.
func (i I256) Int() *uint256.Int {
	v := uint256.Int(i)
	return &v
}

// Big returns the signed value as a big.Int.
func (i I256) Big() *big.Int {
	v := i.Int()
	if v.Sign() >= 0 {
		return v.ToBig()
	}
	neg := new(uint256.Int).Neg(v)
	return new(big.Int).Neg(neg.ToBig())
}

// NewU256 wraps a uint256.Int.
func NewU256(v *uint256.Int) U256 {
	return U256(*v)
}

// NewI256 wraps a two's complement uint256.Int.
func NewI256(v *uint256.Int) I256 {
	return I256(*v)
}

// I256FromInt64 sign-extends i.
func I256FromInt64(i int64) I256 {
	v := uint256.NewInt(uint64(i))
	if i < 0 {
		v.Neg(uint256.NewInt(uint64(-i)))
	}
	return I256(*v)
}

// FitsSmall reports whether the value can be carried without an object.
func (u U128) FitsSmall() bool { return u.Hi == 0 && u.Lo <= MaxSmallU64 }

// FitsSmall reports whether the value can be carried without an object.
func (i I128) FitsSmall() bool {
	lo := int64(i.Lo)
	return ((i.Hi == 0 && lo >= 0) || (i.Hi == -1 && lo < 0)) && lo >= MinSmallI64 && lo <= MaxSmallI64
}

// FitsSmall reports whether the value can be carried without an object.
func (u U256) FitsSmall() bool {
	v := u.Int()
	return v.IsUint64() && v.Uint64() <= MaxSmallU64
}

// FitsSmall reports whether the value can be carried without an object.
func (i I256) FitsSmall() bool {
	v := i.Int()
	if v.Sign() >= 0 {
		return v.IsUint64() && v.Uint64() <= uint64(MaxSmallI64)
	}
	neg := new(uint256.Int).Neg(v)
	return neg.IsUint64() && neg.Uint64() <= uint64(-MinSmallI64)
}

// SymbolVal is a convenience constructor for Symbol values.
func SymbolVal(s string) Symbol { return Symbol(s) }

// VecOf builds a Vec from its elements.
func VecOf(elems ...ScVal) Vec { return Vec(elems) }
