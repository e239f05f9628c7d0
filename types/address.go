package types

import (
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Version bytes of the human readable key forms.
const (
	StrkeyVersionAccount  byte = 0x30
	StrkeyVersionContract byte = 0x12
	StrkeyVersionMuxed    byte = 0x60
)

// EncodeStrkey renders an address in its check-encoded text form.
func EncodeStrkey(a Address) (string, error) {
	switch a.Kind {
	case AddressAccount:
		return base58.CheckEncode(a.ID[:], StrkeyVersionAccount), nil
	case AddressContract:
		return base58.CheckEncode(a.ID[:], StrkeyVersionContract), nil
	}
	return "", Errorf(ErrValue, CodeInvalidInput, "unknown address kind %d", a.Kind)
}

// DecodeStrkey parses the text form of an account or contract address.
func DecodeStrkey(s string) (Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, WrapError(ErrValue, CodeInvalidEncoding, err, "invalid strkey %q", s)
	}
	if len(payload) != len(Hash{}) {
		return Address{}, Errorf(ErrValue, CodeInvalidEncoding, "strkey payload length %d", len(payload))
	}
	var id Hash
	copy(id[:], payload)
	switch version {
	case StrkeyVersionAccount:
		return AccountAddress(id), nil
	case StrkeyVersionContract:
		return ContractAddress(id), nil
	}
	return Address{}, Errorf(ErrValue, CodeInvalidEncoding, "unknown strkey version %#x", version)
}

// EncodeMuxedStrkey renders a muxed account.
func EncodeMuxedStrkey(m MuxedAddress) string {
	payload := make([]byte, 0, 40)
	payload = append(payload, m.Account[:]...)
	payload = binary.BigEndian.AppendUint64(payload, m.ID)
	return base58.CheckEncode(payload, StrkeyVersionMuxed)
}

// DecodeMuxedStrkey parses a muxed account strkey.
func DecodeMuxedStrkey(s string) (MuxedAddress, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return MuxedAddress{}, WrapError(ErrValue, CodeInvalidEncoding, err, "invalid muxed strkey %q", s)
	}
	if version != StrkeyVersionMuxed || len(payload) != 40 {
		return MuxedAddress{}, Errorf(ErrValue, CodeInvalidEncoding, "not a muxed strkey")
	}
	var m MuxedAddress
	copy(m.Account[:], payload[:32])
	m.ID = binary.BigEndian.Uint64(payload[32:])
	return m, nil
}

// ErrNotContract is returned when a contract address is required.
var ErrNotContract = errors.New("address is not a contract")

// ContractID returns the contract id of a contract address.
func (a Address) ContractID() (Hash, error) {
	if a.Kind != AddressContract {
		return Hash{}, ErrNotContract
	}
	return a.ID, nil
}
