// Package ledger defines the persistent key-value snapshot an invocation runs
// against, and a registry of backends selected by name.
package ledger

import (
	"encoding/binary"
	"errors"

	"github.com/govm-net/vmhost/types"
)

// Entry is a stored value together with the last ledger it is live for.
type Entry struct {
	Value     []byte
	LiveUntil uint32
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{Value: append([]byte{}, e.Value...), LiveUntil: e.LiveUntil}
}

// Change is one write of a committed invocation. A nil Entry deletes the key.
type Change struct {
	Key   []byte
	Entry *Entry
}

// Snapshot is a ledger backend. Get returns nil and no error for absent keys.
// Apply writes all changes atomically.
type Snapshot interface {
	Get(key []byte) (*Entry, error)
	Apply(changes []Change) error
	Close() error
}

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("ledger closed")

// Key spaces.
const (
	prefixContractData     byte = 0x01
	prefixContractCode     byte = 0x02
	prefixContractInstance byte = 0x03
	prefixNonce            byte = 0x04
)

// DataKey is the ledger key of a persistent or temporary contract data entry.
// key is the canonical encoding of the entry key.
func DataKey(contract types.Hash, d types.Durability, key []byte) []byte {
	out := make([]byte, 0, 2+len(contract)+len(key))
	out = append(out, prefixContractData)
	out = append(out, contract[:]...)
	out = append(out, byte(d))
	return append(out, key...)
}

// CodeKey is the ledger key of uploaded contract code.
func CodeKey(hash types.Hash) []byte {
	return append([]byte{prefixContractCode}, hash[:]...)
}

// InstanceKey is the ledger key of a contract instance.
func InstanceKey(contract types.Hash) []byte {
	return append([]byte{prefixContractInstance}, contract[:]...)
}

// NonceKey is the ledger key recording that addr used nonce.
func NonceKey(addr types.Address, nonce int64) []byte {
	out := make([]byte, 0, 2+len(addr.ID)+8)
	out = append(out, prefixNonce, byte(addr.Kind))
	out = append(out, addr.ID[:]...)
	return binary.BigEndian.AppendUint64(out, uint64(nonce))
}

// EncodeEntry is the byte form backends without columns store.
func EncodeEntry(e *Entry) []byte {
	out := make([]byte, 4, 4+len(e.Value))
	binary.BigEndian.PutUint32(out, e.LiveUntil)
	return append(out, e.Value...)
}

// DecodeEntry parses EncodeEntry output.
func DecodeEntry(b []byte) (*Entry, error) {
	if len(b) < 4 {
		return nil, errors.New("ledger entry too short")
	}
	return &Entry{
		LiveUntil: binary.BigEndian.Uint32(b),
		Value:     append([]byte{}, b[4:]...),
	}, nil
}
