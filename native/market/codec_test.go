package market

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := &Config{
		FeeBps:     250,
		Treasury:   newTestAddress(0x02),
		Governance: newTestAddress(0x01),
		Bump:       254,
	}
	data, err := EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("EncodeConfig: %v", err)
	}
	if len(data) != configEncodedLen {
		t.Fatalf("encoded length %d, want %d", len(data), configEncodedLen)
	}
	decoded, err := DecodeConfig(data)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if *decoded != *cfg {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, cfg)
	}
}

func TestItemRoundTrip(t *testing.T) {
	item := &Item{
		ItemID:       42,
		SKUHash:      [32]byte{0x11, 0x22},
		VaultHash:    [32]byte{0x33, 0x44},
		Status:       StatusListed,
		CurrentOwner: newTestAddress(0x0A),
		CreatedAt:    1_700_000_000,
		Bump:         251,
	}
	data, err := EncodeItem(item)
	if err != nil {
		t.Fatalf("EncodeItem: %v", err)
	}
	decoded, err := DecodeItem(data)
	if err != nil {
		t.Fatalf("DecodeItem: %v", err)
	}
	if *decoded != *item {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, item)
	}
}

func TestListingRoundTrip(t *testing.T) {
	listing := &Listing{
		Item:          newTestAddress(0x05),
		Seller:        newTestAddress(0x0A),
		PriceLamports: 1_000_000_000,
		ExpiresAt:     1_800_000_000,
		Active:        true,
		Bump:          249,
	}
	data, err := EncodeListing(listing)
	if err != nil {
		t.Fatalf("EncodeListing: %v", err)
	}
	decoded, err := DecodeListing(data)
	if err != nil {
		t.Fatalf("DecodeListing: %v", err)
	}
	if *decoded != *listing {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, listing)
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	receipt := &Receipt{
		Item:  newTestAddress(0x05),
		Owner: newTestAddress(0x0B),
		State: StatusSold,
		Bump:  253,
	}
	data, err := EncodeReceipt(receipt)
	if err != nil {
		t.Fatalf("EncodeReceipt: %v", err)
	}
	decoded, err := DecodeReceipt(data)
	if err != nil {
		t.Fatalf("DecodeReceipt: %v", err)
	}
	if *decoded != *receipt {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, receipt)
	}
}

func TestDecodeRejectsForeignDiscriminator(t *testing.T) {
	item := &Item{ItemID: 1, Status: StatusInVault, CurrentOwner: newTestAddress(0x0A)}
	data, err := EncodeItem(item)
	if err != nil {
		t.Fatalf("EncodeItem: %v", err)
	}
	if _, err := DecodeConfig(data); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if _, err := DecodeListing(data); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if _, err := DecodeReceipt(data); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestDecodeRejectsTruncatedRecord(t *testing.T) {
	cfg := &Config{FeeBps: 100, Treasury: newTestAddress(0x02), Governance: newTestAddress(0x01)}
	data, err := EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("EncodeConfig: %v", err)
	}
	if _, err := DecodeConfig(data[:len(data)-1]); err == nil {
		t.Fatalf("expected error for truncated record")
	}
	if _, err := DecodeConfig(data[:4]); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for sub-discriminator input, got %v", err)
	}
}

func TestDecodeRejectsInvalidStatus(t *testing.T) {
	item := &Item{ItemID: 1, Status: StatusInVault, CurrentOwner: newTestAddress(0x0A)}
	data, err := EncodeItem(item)
	if err != nil {
		t.Fatalf("EncodeItem: %v", err)
	}
	data[8+8+32+32] = 99
	if _, err := DecodeItem(data); err == nil {
		t.Fatalf("expected error for out-of-range status byte")
	}
}

func TestEncodeConfigRejectsExcessFee(t *testing.T) {
	cfg := &Config{FeeBps: MaxFeeBps + 1, Treasury: newTestAddress(0x02), Governance: newTestAddress(0x01)}
	if _, err := EncodeConfig(cfg); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh, got %v", err)
	}
}

func TestStringCodec(t *testing.T) {
	buf, err := AppendString(nil, "SHIP-001")
	if err != nil {
		t.Fatalf("AppendString: %v", err)
	}
	got, rest, err := ReadString(buf)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "SHIP-001" || len(rest) != 0 {
		t.Fatalf("unexpected result: %q rest=%d", got, len(rest))
	}

	if _, err := AppendString(nil, strings.Repeat("x", MaxStringLen+1)); err == nil {
		t.Fatalf("expected error for oversized string")
	}
	if _, _, err := ReadString([]byte{0x01, 0x00}); err == nil {
		t.Fatalf("expected error for truncated prefix")
	}
	if _, _, err := ReadString([]byte{0x05, 0x00, 0x00, 0x00, 'a'}); err == nil {
		t.Fatalf("expected error for truncated body")
	}
}
