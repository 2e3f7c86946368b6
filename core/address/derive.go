// Package address derives deterministic record locations from logical keys.
//
// Every persisted record lives at an address computed from a constant tag plus
// the components that identify it, so any caller can recompute where a record
// lives without a lookup table. The derivation searches a one-byte bump space
// so that the chosen address never lands on the reserved prefix used for
// wallet-controlled accounts.
package address

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"kaiwu/core/types"
)

// Seed tags for the record kinds known to the ledger.
const (
	TagConfig  = "config"
	TagItem    = "item"
	TagListing = "listing"
	TagReceipt = "receipt"
)

// marker domain-separates derived addresses from every other keccak use in the
// codebase. Changing it changes every derived address.
var marker = []byte("kaiwu/pda/v1")

// reservedPrefix marks the address range derivation must avoid.
const reservedPrefix byte = 0xff

// ErrExhausted signals that no bump value yielded a usable address. With a
// 256-value bump space this is practically unreachable.
var ErrExhausted = errors.New("address: derivation space exhausted")

// Derive maps a tag and its components to a unique storage address and the
// bump that produced it. The function is pure: the same inputs always yield
// the same output.
func Derive(tag string, components ...[]byte) (types.Address, uint8, error) {
	seeds := make([][]byte, 0, len(components)+3)
	seeds = append(seeds, []byte(tag))
	seeds = append(seeds, components...)
	for bump := 255; bump >= 0; bump-- {
		candidate := ethcrypto.Keccak256(append(seeds, []byte{byte(bump)}, marker)...)
		if candidate[0] == reservedPrefix {
			continue
		}
		return types.BytesToAddress(candidate), uint8(bump), nil
	}
	return types.Address{}, 0, ErrExhausted
}

// Config returns the address of the singleton Config record.
func Config() (types.Address, uint8, error) {
	return Derive(TagConfig)
}

// Item returns the address of the Item record for the given numeric id. The id
// is serialized as 8 little-endian bytes to match the canonical seed layout.
func Item(itemID uint64) (types.Address, uint8, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], itemID)
	return Derive(TagItem, buf[:])
}

// Listing returns the address of the Listing record attached to an item.
func Listing(item types.Address) (types.Address, uint8, error) {
	return Derive(TagListing, item.Bytes())
}

// Receipt returns the address of the Receipt record attached to an item.
func Receipt(item types.Address) (types.Address, uint8, error) {
	return Derive(TagReceipt, item.Bytes())
}
