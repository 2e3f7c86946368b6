package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"kaiwu/core/address"
	"kaiwu/core/types"
	"kaiwu/native/market"
	"kaiwu/storage"
)

func testAddr(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestAccountLifecycle(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	owner := testAddr(0x0A)

	acc, err := mgr.GetAccount(owner)
	require.NoError(t, err)
	require.Equal(t, uint64(0), acc.Nonce)
	require.Zero(t, acc.BalanceLamports.Sign())

	acc.Nonce = 3
	acc.BalanceLamports = big.NewInt(1_000_000)
	require.NoError(t, mgr.PutAccount(owner, acc))

	loaded, err := mgr.GetAccount(owner)
	require.NoError(t, err)
	require.Equal(t, uint64(3), loaded.Nonce)
	require.Zero(t, loaded.BalanceLamports.Cmp(big.NewInt(1_000_000)))
}

func TestPutAccountRejectsNegativeBalance(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	acc := &types.Account{BalanceLamports: big.NewInt(-1)}
	require.Error(t, mgr.PutAccount(testAddr(0x0A), acc))
}

func TestRoles(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	op := testAddr(0x03)
	other := testAddr(0x04)

	require.False(t, mgr.HasRole(market.RoleOperator, op))
	require.NoError(t, mgr.SetRole(market.RoleOperator, op))
	require.True(t, mgr.HasRole(market.RoleOperator, op))
	require.False(t, mgr.HasRole(market.RoleOperator, other))
	require.False(t, mgr.HasRole("OTHER_ROLE", op))

	// Duplicate grants stay idempotent.
	require.NoError(t, mgr.SetRole(market.RoleOperator, op))
	require.NoError(t, mgr.SetRole(market.RoleOperator, other))
	members, err := mgr.RoleMembers(market.RoleOperator)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestSetRoleValidation(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.Error(t, mgr.SetRole("", testAddr(0x01)))
	require.Error(t, mgr.SetRole(market.RoleOperator, types.Address{}))
	require.False(t, mgr.HasRole(market.RoleOperator, types.Address{}))
}

func TestConfigRecord(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	_, ok := mgr.ConfigGet()
	require.False(t, ok)

	cfg := &market.Config{FeeBps: 250, Treasury: testAddr(0x02), Governance: testAddr(0x01), Bump: 254}
	require.NoError(t, mgr.ConfigPut(cfg))

	loaded, ok := mgr.ConfigGet()
	require.True(t, ok)
	require.Equal(t, cfg, loaded)
}

func TestItemListingReceiptRecords(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	itemAddr, itemBump, err := address.Item(9)
	require.NoError(t, err)

	_, ok := mgr.ItemGet(itemAddr)
	require.False(t, ok)

	item := &market.Item{
		ItemID:       9,
		SKUHash:      [32]byte{0x11},
		VaultHash:    [32]byte{0x22},
		Status:       market.StatusInVault,
		CurrentOwner: testAddr(0x0A),
		CreatedAt:    1_700_000_000,
		Bump:         itemBump,
	}
	require.NoError(t, mgr.ItemPut(itemAddr, item))
	loadedItem, ok := mgr.ItemGet(itemAddr)
	require.True(t, ok)
	require.Equal(t, item, loadedItem)

	listingAddr, listingBump, err := address.Listing(itemAddr)
	require.NoError(t, err)
	listing := &market.Listing{
		Item:          itemAddr,
		Seller:        testAddr(0x0A),
		PriceLamports: 1_000,
		ExpiresAt:     1_800_000_000,
		Active:        true,
		Bump:          listingBump,
	}
	require.NoError(t, mgr.ListingPut(listingAddr, listing))
	loadedListing, ok := mgr.ListingGet(listingAddr)
	require.True(t, ok)
	require.Equal(t, listing, loadedListing)

	receiptAddr, receiptBump, err := address.Receipt(itemAddr)
	require.NoError(t, err)
	receipt := &market.Receipt{Item: itemAddr, Owner: testAddr(0x0A), State: market.StatusInVault, Bump: receiptBump}
	require.NoError(t, mgr.ReceiptPut(receiptAddr, receipt))
	loadedReceipt, ok := mgr.ReceiptGet(receiptAddr)
	require.True(t, ok)
	require.Equal(t, receipt, loadedReceipt)

	// Records of different kinds never collide even at related addresses.
	_, ok = mgr.ItemGet(listingAddr)
	require.False(t, ok)
	_, ok = mgr.ListingGet(receiptAddr)
	require.False(t, ok)
}
