package state

import (
	"kaiwu/core/address"
	"kaiwu/core/types"
	"kaiwu/native/market"
)

// Market record accessors. Records are stored pre-encoded in the canonical
// binary layout so the bytes in the database are exactly the bytes an external
// auditor would hash.

// ConfigGet loads the singleton marketplace config.
func (m *Manager) ConfigGet() (*market.Config, bool) {
	addr, _, err := address.Config()
	if err != nil {
		return nil, false
	}
	data, err := m.db.Get(recordKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	cfg, err := market.DecodeConfig(data)
	if err != nil {
		return nil, false
	}
	return cfg, true
}

// ConfigPut persists the singleton marketplace config.
func (m *Manager) ConfigPut(cfg *market.Config) error {
	addr, _, err := address.Config()
	if err != nil {
		return err
	}
	encoded, err := market.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return m.db.Put(recordKey(addr), encoded)
}

// ItemGet loads the item record stored at the provided derived address.
func (m *Manager) ItemGet(addr types.Address) (*market.Item, bool) {
	data, err := m.db.Get(recordKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	item, err := market.DecodeItem(data)
	if err != nil {
		return nil, false
	}
	return item, true
}

// ItemPut persists the item record at the provided derived address.
func (m *Manager) ItemPut(addr types.Address, item *market.Item) error {
	encoded, err := market.EncodeItem(item)
	if err != nil {
		return err
	}
	return m.db.Put(recordKey(addr), encoded)
}

// ListingGet loads the listing record stored at the provided derived address.
func (m *Manager) ListingGet(addr types.Address) (*market.Listing, bool) {
	data, err := m.db.Get(recordKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	listing, err := market.DecodeListing(data)
	if err != nil {
		return nil, false
	}
	return listing, true
}

// ListingPut persists the listing record at the provided derived address.
func (m *Manager) ListingPut(addr types.Address, listing *market.Listing) error {
	encoded, err := market.EncodeListing(listing)
	if err != nil {
		return err
	}
	return m.db.Put(recordKey(addr), encoded)
}

// ReceiptGet loads the receipt record stored at the provided derived address.
func (m *Manager) ReceiptGet(addr types.Address) (*market.Receipt, bool) {
	data, err := m.db.Get(recordKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	receipt, err := market.DecodeReceipt(data)
	if err != nil {
		return nil, false
	}
	return receipt, true
}

// ReceiptPut persists the receipt record at the provided derived address.
func (m *Manager) ReceiptPut(addr types.Address, receipt *market.Receipt) error {
	encoded, err := market.EncodeReceipt(receipt)
	if err != nil {
		return err
	}
	return m.db.Put(recordKey(addr), encoded)
}
