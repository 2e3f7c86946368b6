package market

import (
	"fmt"

	"kaiwu/core/types"
)

// ItemStatus tracks where a physical item sits in its lifecycle. The order of
// the constants matches the on-wire enum encoding and must not change.
type ItemStatus uint8

const (
	StatusInVault ItemStatus = iota
	StatusListed
	StatusSold
	StatusRedeemPending
	StatusRedeemed
)

// Valid reports whether the status value is within the supported range.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusInVault, StatusListed, StatusSold, StatusRedeemPending, StatusRedeemed:
		return true
	default:
		return false
	}
}

func (s ItemStatus) String() string {
	switch s {
	case StatusInVault:
		return "inVault"
	case StatusListed:
		return "listed"
	case StatusSold:
		return "sold"
	case StatusRedeemPending:
		return "redeemPending"
	case StatusRedeemed:
		return "redeemed"
	default:
		return "unknown"
	}
}

// Config is the marketplace-wide parameter record. Exactly one exists per
// deployment, located at the well-known "config" derivation.
type Config struct {
	FeeBps     uint16
	Treasury   types.Address
	Governance types.Address
	Bump       uint8
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Item represents a single physical object held in the vault. The record is
// created once at intake and mutated, never deleted, for the rest of its life.
type Item struct {
	ItemID       uint64
	SKUHash      [32]byte
	VaultHash    [32]byte
	Status       ItemStatus
	CurrentOwner types.Address
	CreatedAt    int64
	Bump         uint8
}

// Clone returns a copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// Listing attaches an asking price to an item. An inactive listing persists
// for audit but does not authorize a purchase.
type Listing struct {
	Item          types.Address
	Seller        types.Address
	PriceLamports uint64
	ExpiresAt     int64
	Active        bool
	Bump          uint8
}

// Clone returns a copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Purchasable reports whether the listing authorizes a purchase at the given
// time. The stored Active flag alone is not sufficient: expiry is re-checked
// at execution time.
func (l *Listing) Purchasable(now int64) bool {
	return l != nil && l.Active && now < l.ExpiresAt
}

// Receipt mirrors an item's ownership and status. It is derived data anchored
// to the item, kept in sync within the same transition that mutates the item,
// and is never a second source of truth.
type Receipt struct {
	Item  types.Address
	Owner types.Address
	State ItemStatus
	Bump  uint8
}

// Clone returns a copy of the receipt.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// SanitizeItem validates an item record read back from storage.
func SanitizeItem(i *Item) (*Item, error) {
	if i == nil {
		return nil, fmt.Errorf("market: nil item")
	}
	if !i.Status.Valid() {
		return nil, fmt.Errorf("market: invalid item status: %d", i.Status)
	}
	return i.Clone(), nil
}

// SanitizeConfig validates a config record read back from storage.
func SanitizeConfig(c *Config) (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("market: nil config")
	}
	if c.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("market: config fee bps out of range: %d", c.FeeBps)
	}
	return c.Clone(), nil
}
