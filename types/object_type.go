package types

import "fmt"

// ObjectType selects one of the per-type object tables. It occupies 4 bits of
// an object handle, so there are at most 16.
type ObjectType uint8

const (
	ObjBytes ObjectType = iota
	ObjString
	ObjVec
	ObjMap
	ObjU64
	ObjI64
	ObjU128
	ObjI128
	ObjU256
	ObjI256
	ObjTimepoint
	ObjDuration
	ObjSymbol
	ObjAddress
	ObjMuxedAddress
	ObjContractExecutable

	objectTypeCount
)

// ObjectTypeCount is the number of object tables.
const ObjectTypeCount = int(objectTypeCount)

var objectTypeNames = [...]string{
	ObjBytes:              "Bytes",
	ObjString:             "String",
	ObjVec:                "Vec",
	ObjMap:                "Map",
	ObjU64:                "U64",
	ObjI64:                "I64",
	ObjU128:               "U128",
	ObjI128:               "I128",
	ObjU256:               "U256",
	ObjI256:               "I256",
	ObjTimepoint:          "Timepoint",
	ObjDuration:           "Duration",
	ObjSymbol:             "Symbol",
	ObjAddress:            "Address",
	ObjMuxedAddress:       "MuxedAddress",
	ObjContractExecutable: "ContractExecutable",
}

func (t ObjectType) String() string {
	if t < objectTypeCount {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("ObjectType(%d)", uint8(t))
}
