package types

import "fmt"

// Durability is the storage lifetime class of a contract data entry.
type Durability uint8

const (
	Temporary Durability = iota
	Persistent
	Instance
)

func (d Durability) String() string {
	switch d {
	case Temporary:
		return "temporary"
	case Persistent:
		return "persistent"
	case Instance:
		return "instance"
	}
	return fmt.Sprintf("Durability(%d)", uint8(d))
}

// DurabilityFromVal decodes the durability argument of storage host functions.
func DurabilityFromVal(v Val) (Durability, error) {
	u, ok := v.AsU32()
	if !ok {
		if sp, ok2 := v.AsSmallPositive(); ok2 && sp <= uint64(Instance) {
			return Durability(sp), nil
		}
		return 0, Errorf(ErrValue, CodeInvalidTag, "durability must be a u32, got %s", v)
	}
	if u > uint32(Instance) {
		return 0, Errorf(ErrValue, CodeInvalidInput, "unknown durability %d", u)
	}
	return Durability(u), nil
}

// LedgerInfo is the ledger snapshot an invocation executes against.
type LedgerInfo struct {
	ProtocolVersion  uint32 `yaml:"protocol_version"`
	Sequence         uint32 `yaml:"sequence"`
	Timestamp        uint64 `yaml:"timestamp"`
	NetworkID        Hash   `yaml:"-"`
	MinTemporaryTTL  uint32 `yaml:"min_temporary_ttl"`
	MinPersistentTTL uint32 `yaml:"min_persistent_ttl"`
	MaxEntryTTL      uint32 `yaml:"max_entry_ttl"`
	// MaxTemporaryTTL and MaxPersistentTTL cap extend_to per durability.
	// Zero leaves only MaxEntryTTL.
	MaxTemporaryTTL  uint32 `yaml:"max_temporary_ttl"`
	MaxPersistentTTL uint32 `yaml:"max_persistent_ttl"`
	// MaxInstanceSize caps the encoded contract instance entry, instance
	// storage included. Zero disables the check.
	MaxInstanceSize uint32 `yaml:"max_instance_size"`
}

// MaxLiveUntil is the highest live-until ledger an entry may be extended to.
func (l LedgerInfo) MaxLiveUntil() uint32 {
	return l.Sequence + l.MaxEntryTTL - 1
}

// MaxTTL returns the largest extend_to an entry of durability d may reach.
// Instance entries use the persistent maximum.
func (l LedgerInfo) MaxTTL(d Durability) uint32 {
	var limit uint32
	if l.MaxEntryTTL > 0 {
		limit = l.MaxEntryTTL - 1
	}
	ns := l.MaxPersistentTTL
	if d == Temporary {
		ns = l.MaxTemporaryTTL
	}
	if ns != 0 && ns < limit {
		return ns
	}
	return limit
}

// MinTTL returns the initial TTL of a new entry of the given durability.
func (l LedgerInfo) MinTTL(d Durability) uint32 {
	if d == Temporary {
		return l.MinTemporaryTTL
	}
	return l.MinPersistentTTL
}
