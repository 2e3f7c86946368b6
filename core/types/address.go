package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// AddressLength is the size of a ledger address in bytes.
const AddressLength = 32

// Address identifies an account or derived record location on the ledger.
type Address [AddressLength]byte

// ErrInvalidAddress is returned when parsing a malformed address string.
var ErrInvalidAddress = errors.New("types: invalid address")

// ZeroAddress is the all-zero address. It is never a valid signer.
var ZeroAddress = Address{}

// ParseAddress decodes a 64-character hex string (optionally 0x-prefixed) into
// an Address.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(raw))
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// BytesToAddress copies the provided bytes into an Address, left-truncating or
// zero-padding on the left when the length differs.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(addr[AddressLength-len(b):], b)
	return addr
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the lowercase hex encoding of the address without a prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool { return a == ZeroAddress }
