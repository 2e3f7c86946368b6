package market

import (
	"encoding/binary"
	"fmt"
)

// Record discriminators. Each persisted record begins with one of these 8-byte
// prefixes so arbitrary storage can be decoded safely; the values match the
// deployed program's account discriminators and must never change.
var (
	discConfig  = [8]byte{155, 12, 170, 224, 30, 250, 204, 130}
	discItem    = [8]byte{92, 157, 163, 130, 72, 254, 86, 216}
	discListing = [8]byte{218, 32, 50, 73, 43, 134, 26, 58}
	discReceipt = [8]byte{39, 154, 73, 106, 80, 102, 145, 153}
)

// Encoded record sizes. All integers are little-endian, bools and enums are a
// single byte, and there is no padding.
const (
	configEncodedLen  = 8 + 2 + 32 + 32 + 1
	itemEncodedLen    = 8 + 8 + 32 + 32 + 1 + 32 + 8 + 1
	listingEncodedLen = 8 + 32 + 32 + 8 + 8 + 1 + 1
	receiptEncodedLen = 8 + 32 + 32 + 1 + 1
)

// MaxStringLen caps any length-prefixed string carried through the codec.
const MaxStringLen = 256

// EncodeConfig serializes a config record.
func EncodeConfig(c *Config) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("market: nil config")
	}
	if c.FeeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	buf := make([]byte, 0, configEncodedLen)
	buf = append(buf, discConfig[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, c.FeeBps)
	buf = append(buf, c.Treasury[:]...)
	buf = append(buf, c.Governance[:]...)
	buf = append(buf, c.Bump)
	return buf, nil
}

// DecodeConfig deserializes a config record, rejecting foreign discriminators.
func DecodeConfig(data []byte) (*Config, error) {
	rest, err := checkDiscriminator(data, discConfig, configEncodedLen)
	if err != nil {
		return nil, err
	}
	c := &Config{FeeBps: binary.LittleEndian.Uint16(rest[:2]), Bump: rest[66]}
	copy(c.Treasury[:], rest[2:34])
	copy(c.Governance[:], rest[34:66])
	return SanitizeConfig(c)
}

// EncodeItem serializes an item record.
func EncodeItem(i *Item) ([]byte, error) {
	if i == nil {
		return nil, fmt.Errorf("market: nil item")
	}
	if !i.Status.Valid() {
		return nil, fmt.Errorf("market: invalid item status: %d", i.Status)
	}
	buf := make([]byte, 0, itemEncodedLen)
	buf = append(buf, discItem[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, i.ItemID)
	buf = append(buf, i.SKUHash[:]...)
	buf = append(buf, i.VaultHash[:]...)
	buf = append(buf, byte(i.Status))
	buf = append(buf, i.CurrentOwner[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(i.CreatedAt))
	buf = append(buf, i.Bump)
	return buf, nil
}

// DecodeItem deserializes an item record.
func DecodeItem(data []byte) (*Item, error) {
	rest, err := checkDiscriminator(data, discItem, itemEncodedLen)
	if err != nil {
		return nil, err
	}
	i := &Item{
		ItemID:    binary.LittleEndian.Uint64(rest[:8]),
		Status:    ItemStatus(rest[72]),
		CreatedAt: int64(binary.LittleEndian.Uint64(rest[105:113])),
		Bump:      rest[113],
	}
	copy(i.SKUHash[:], rest[8:40])
	copy(i.VaultHash[:], rest[40:72])
	copy(i.CurrentOwner[:], rest[73:105])
	return SanitizeItem(i)
}

// EncodeListing serializes a listing record.
func EncodeListing(l *Listing) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	buf := make([]byte, 0, listingEncodedLen)
	buf = append(buf, discListing[:]...)
	buf = append(buf, l.Item[:]...)
	buf = append(buf, l.Seller[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, l.PriceLamports)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(l.ExpiresAt))
	if l.Active {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, l.Bump)
	return buf, nil
}

// DecodeListing deserializes a listing record.
func DecodeListing(data []byte) (*Listing, error) {
	rest, err := checkDiscriminator(data, discListing, listingEncodedLen)
	if err != nil {
		return nil, err
	}
	l := &Listing{
		PriceLamports: binary.LittleEndian.Uint64(rest[64:72]),
		ExpiresAt:     int64(binary.LittleEndian.Uint64(rest[72:80])),
		Active:        rest[80] == 1,
		Bump:          rest[81],
	}
	copy(l.Item[:], rest[:32])
	copy(l.Seller[:], rest[32:64])
	if rest[80] > 1 {
		return nil, fmt.Errorf("market: invalid listing active flag: %d", rest[80])
	}
	return l, nil
}

// EncodeReceipt serializes a receipt record.
func EncodeReceipt(r *Receipt) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("market: nil receipt")
	}
	if !r.State.Valid() {
		return nil, fmt.Errorf("market: invalid receipt state: %d", r.State)
	}
	buf := make([]byte, 0, receiptEncodedLen)
	buf = append(buf, discReceipt[:]...)
	buf = append(buf, r.Item[:]...)
	buf = append(buf, r.Owner[:]...)
	buf = append(buf, byte(r.State))
	buf = append(buf, r.Bump)
	return buf, nil
}

// DecodeReceipt deserializes a receipt record.
func DecodeReceipt(data []byte) (*Receipt, error) {
	rest, err := checkDiscriminator(data, discReceipt, receiptEncodedLen)
	if err != nil {
		return nil, err
	}
	r := &Receipt{State: ItemStatus(rest[64]), Bump: rest[65]}
	copy(r.Item[:], rest[:32])
	copy(r.Owner[:], rest[32:64])
	if !r.State.Valid() {
		return nil, fmt.Errorf("market: invalid receipt state: %d", rest[64])
	}
	return r, nil
}

// AppendString appends a 4-byte little-endian length prefix followed by the
// UTF-8 bytes of s. Strings above MaxStringLen fail to encode.
func AppendString(buf []byte, s string) ([]byte, error) {
	raw := []byte(s)
	if len(raw) > MaxStringLen {
		return nil, fmt.Errorf("market: string exceeds %d bytes", MaxStringLen)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(raw)))
	return append(buf, raw...), nil
}

// ReadString consumes a length-prefixed string from data, returning the string
// and the remaining bytes.
func ReadString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("market: truncated string length prefix")
	}
	n := binary.LittleEndian.Uint32(data[:4])
	if n > MaxStringLen {
		return "", nil, fmt.Errorf("market: string exceeds %d bytes", MaxStringLen)
	}
	if uint32(len(data)-4) < n {
		return "", nil, fmt.Errorf("market: truncated string body")
	}
	return string(data[4 : 4+n]), data[4+n:], nil
}

func checkDiscriminator(data []byte, disc [8]byte, wantLen int) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: record shorter than discriminator", ErrSchemaMismatch)
	}
	var got [8]byte
	copy(got[:], data[:8])
	if got != disc {
		return nil, fmt.Errorf("%w: got %v", ErrSchemaMismatch, got)
	}
	if len(data) != wantLen {
		return nil, fmt.Errorf("market: record length %d, expected %d", len(data), wantLen)
	}
	return data[8:], nil
}
