package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"kaiwu/core/address"
	"kaiwu/core/events"
	"kaiwu/core/types"
)

// RoleOperator gates intake and redemption confirmation.
const RoleOperator = "ROLE_OPERATOR"

var (
	errNilState = errors.New("market engine: state not configured")
)

// engineState is the storage surface the engine mutates. Every transition
// re-reads authoritative state through it immediately before writing; the
// engine holds no cache.
type engineState interface {
	ConfigGet() (*Config, bool)
	ConfigPut(*Config) error
	ItemGet(addr types.Address) (*Item, bool)
	ItemPut(addr types.Address, item *Item) error
	ListingGet(addr types.Address) (*Listing, bool)
	ListingPut(addr types.Address, listing *Listing) error
	ReceiptGet(addr types.Address) (*Receipt, bool)
	ReceiptPut(addr types.Address, receipt *Receipt) error
	GetAccount(addr types.Address) (*types.Account, error)
	PutAccount(addr types.Address, account *types.Account) error
	HasRole(role string, addr types.Address) bool
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine implements the item lifecycle state machine. Each exported method is
// a single transition: preconditions are evaluated against freshly-read record
// fields before any mutation, and exactly one event is emitted on success.
//
// The engine itself performs no locking. The hosting node is responsible for
// linearizing transitions that touch the same records.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a market engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// InitConfig creates the singleton marketplace config. The caller must sign as
// the governance address being installed.
func (e *Engine) InitConfig(caller types.Address, feeBps uint16, treasury, governance types.Address) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if feeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	if treasury.IsZero() || governance.IsZero() {
		return nil, fmt.Errorf("market: treasury and governance must be set")
	}
	if caller != governance {
		return nil, ErrUnauthorized
	}
	if _, ok := e.state.ConfigGet(); ok {
		return nil, ErrAlreadyExists
	}
	_, bump, err := address.Config()
	if err != nil {
		return nil, err
	}
	cfg := &Config{FeeBps: feeBps, Treasury: treasury, Governance: governance, Bump: bump}
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewConfigUpdatedEvent(cfg))
	return cfg.Clone(), nil
}

// UpdateConfig mutates the fee and treasury parameters. Only the stored
// governance address may call it.
func (e *Engine) UpdateConfig(caller types.Address, feeBps uint16, treasury types.Address) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok := e.state.ConfigGet()
	if !ok {
		return nil, ErrNotFound
	}
	if caller != cfg.Governance {
		return nil, ErrUnauthorized
	}
	if feeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	if treasury.IsZero() {
		return nil, fmt.Errorf("market: treasury must be set")
	}
	cfg.FeeBps = feeBps
	cfg.Treasury = treasury
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewConfigUpdatedEvent(cfg))
	return cfg.Clone(), nil
}

// IntakeItem registers a physical object on the ledger. It creates the Item in
// the InVault state together with its Receipt in a single transition.
func (e *Engine) IntakeItem(operator types.Address, itemID uint64, skuHash, vaultHash [32]byte, initialOwner types.Address) (*Item, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.state.HasRole(RoleOperator, operator) {
		return nil, ErrUnauthorized
	}
	if initialOwner.IsZero() {
		return nil, fmt.Errorf("market: initial owner must be set")
	}
	itemAddr, itemBump, err := address.Item(itemID)
	if err != nil {
		return nil, err
	}
	if _, ok := e.state.ItemGet(itemAddr); ok {
		return nil, ErrAlreadyExists
	}
	receiptAddr, receiptBump, err := address.Receipt(itemAddr)
	if err != nil {
		return nil, err
	}
	item := &Item{
		ItemID:       itemID,
		SKUHash:      skuHash,
		VaultHash:    vaultHash,
		Status:       StatusInVault,
		CurrentOwner: initialOwner,
		CreatedAt:    e.now(),
		Bump:         itemBump,
	}
	receipt := &Receipt{Item: itemAddr, Owner: initialOwner, State: StatusInVault, Bump: receiptBump}
	if err := e.state.ItemPut(itemAddr, item); err != nil {
		return nil, err
	}
	if err := e.state.ReceiptPut(receiptAddr, receipt); err != nil {
		return nil, err
	}
	e.emit(NewItemIntakedEvent(item))
	e.emit(NewReceiptMintedEvent(item))
	return item.Clone(), nil
}

// ListItem puts an in-vault item up for sale at a fixed lamport price.
func (e *Engine) ListItem(caller types.Address, itemID uint64, priceLamports uint64, expiresAt int64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	itemAddr, item, err := e.loadItem(itemID)
	if err != nil {
		return nil, err
	}
	if caller != item.CurrentOwner {
		return nil, ErrUnauthorized
	}
	if item.Status == StatusListed {
		return nil, ErrListingActive
	}
	if item.Status != StatusInVault {
		return nil, ErrInvalidState
	}
	if priceLamports == 0 {
		return nil, fmt.Errorf("market: price must be positive")
	}
	if expiresAt <= e.now() {
		return nil, ErrExpired
	}
	listingAddr, listingBump, err := address.Listing(itemAddr)
	if err != nil {
		return nil, err
	}
	// A prior delisted record at the same address is reactivated in place.
	listing := &Listing{
		Item:          itemAddr,
		Seller:        item.CurrentOwner,
		PriceLamports: priceLamports,
		ExpiresAt:     expiresAt,
		Active:        true,
		Bump:          listingBump,
	}
	item.Status = StatusListed
	if err := e.state.ListingPut(listingAddr, listing); err != nil {
		return nil, err
	}
	if err := e.state.ItemPut(itemAddr, item); err != nil {
		return nil, err
	}
	if err := e.syncReceipt(itemAddr, item); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(item, listing))
	return listing.Clone(), nil
}

// DelistItem withdraws an active listing, returning the item to the vault
// state. The list/delist loop may repeat without limit.
func (e *Engine) DelistItem(caller types.Address, itemID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	itemAddr, item, err := e.loadItem(itemID)
	if err != nil {
		return err
	}
	if caller != item.CurrentOwner {
		return ErrUnauthorized
	}
	if item.Status != StatusListed {
		return ErrInvalidState
	}
	listingAddr, listing, err := e.loadListing(itemAddr)
	if err != nil {
		return err
	}
	if !listing.Active {
		return ErrListingNotFound
	}
	if listing.Seller != caller {
		return ErrUnauthorized
	}
	listing.Active = false
	item.Status = StatusInVault
	if err := e.state.ListingPut(listingAddr, listing); err != nil {
		return err
	}
	if err := e.state.ItemPut(itemAddr, item); err != nil {
		return err
	}
	if err := e.syncReceipt(itemAddr, item); err != nil {
		return err
	}
	e.emit(NewDelistedEvent(item, listing))
	return nil
}

// BuyItem settles a purchase: the buyer pays the stored price, the seller
// receives the price minus the fee, the treasury receives the fee, and the
// item changes owner, all in one transition. offeredPrice guards the buyer
// against a listing repriced between quote and submission.
func (e *Engine) BuyItem(buyer types.Address, itemID uint64, offeredPrice uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, ok := e.state.ConfigGet()
	if !ok {
		return ErrNotFound
	}
	itemAddr, item, err := e.loadItem(itemID)
	if err != nil {
		return err
	}
	if item.Status != StatusListed {
		return ErrInvalidState
	}
	listingAddr, listing, err := e.loadListing(itemAddr)
	if err != nil {
		return err
	}
	if !listing.Active {
		return ErrListingNotFound
	}
	if e.now() >= listing.ExpiresAt {
		return ErrExpired
	}
	// A stale listing whose seller no longer owns the item must never settle.
	if listing.Seller != item.CurrentOwner {
		return ErrInvalidState
	}
	if buyer == listing.Seller {
		return ErrSelfDealNotAllowed
	}
	if offeredPrice != listing.PriceLamports {
		return ErrPriceMismatch
	}
	buyerAcc, err := e.state.GetAccount(buyer)
	if err != nil {
		return err
	}
	price := new(big.Int).SetUint64(listing.PriceLamports)
	if buyerAcc.BalanceLamports == nil || buyerAcc.BalanceLamports.Cmp(price) < 0 {
		return ErrInsufficientPayment
	}
	sellerAmount, feeAmount, err := Settle(listing.PriceLamports, cfg.FeeBps)
	if err != nil {
		return err
	}
	if err := e.transferLamports(buyer, listing.Seller, sellerAmount); err != nil {
		return err
	}
	if err := e.transferLamports(buyer, cfg.Treasury, feeAmount); err != nil {
		return err
	}
	seller := listing.Seller
	listing.Active = false
	item.Status = StatusSold
	item.CurrentOwner = buyer
	if err := e.state.ListingPut(listingAddr, listing); err != nil {
		return err
	}
	if err := e.state.ItemPut(itemAddr, item); err != nil {
		return err
	}
	if err := e.syncReceipt(itemAddr, item); err != nil {
		return err
	}
	e.emit(NewTradeSettledEvent(item, listing.PriceLamports, feeAmount, seller, buyer))
	return nil
}

// RedeemRequest starts physical delivery of an item the caller owns. Allowed
// from the vault (never listed or bought back in) or after a sale.
func (e *Engine) RedeemRequest(caller types.Address, itemID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	itemAddr, item, err := e.loadItem(itemID)
	if err != nil {
		return err
	}
	if caller != item.CurrentOwner {
		return ErrUnauthorized
	}
	if item.Status != StatusInVault && item.Status != StatusSold {
		return ErrInvalidState
	}
	item.Status = StatusRedeemPending
	if err := e.state.ItemPut(itemAddr, item); err != nil {
		return err
	}
	if err := e.syncReceipt(itemAddr, item); err != nil {
		return err
	}
	e.emit(NewRedeemRequestedEvent(item))
	return nil
}

// RedeemConfirm finalizes a redemption once the operator has shipped the
// physical item. warehouseRef is carried in the emitted event only, never
// persisted on the item.
func (e *Engine) RedeemConfirm(operator types.Address, itemID uint64, warehouseRef string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(RoleOperator, operator) {
		return ErrUnauthorized
	}
	if len(warehouseRef) > MaxStringLen {
		return fmt.Errorf("market: warehouse ref exceeds %d bytes", MaxStringLen)
	}
	itemAddr, item, err := e.loadItem(itemID)
	if err != nil {
		return err
	}
	if item.Status != StatusRedeemPending {
		return ErrInvalidState
	}
	item.Status = StatusRedeemed
	if err := e.state.ItemPut(itemAddr, item); err != nil {
		return err
	}
	if err := e.syncReceipt(itemAddr, item); err != nil {
		return err
	}
	e.emit(NewRedeemConfirmedEvent(item, warehouseRef))
	return nil
}

func (e *Engine) loadItem(itemID uint64) (types.Address, *Item, error) {
	itemAddr, _, err := address.Item(itemID)
	if err != nil {
		return types.Address{}, nil, err
	}
	item, ok := e.state.ItemGet(itemAddr)
	if !ok {
		return types.Address{}, nil, ErrNotFound
	}
	sanitized, err := SanitizeItem(item)
	if err != nil {
		return types.Address{}, nil, err
	}
	return itemAddr, sanitized, nil
}

func (e *Engine) loadListing(itemAddr types.Address) (types.Address, *Listing, error) {
	listingAddr, _, err := address.Listing(itemAddr)
	if err != nil {
		return types.Address{}, nil, err
	}
	listing, ok := e.state.ListingGet(listingAddr)
	if !ok {
		return types.Address{}, nil, ErrListingNotFound
	}
	return listingAddr, listing.Clone(), nil
}

// syncReceipt mirrors the item's owner and status onto its receipt within the
// same transition. Receipt state is derived data, never written independently.
func (e *Engine) syncReceipt(itemAddr types.Address, item *Item) error {
	receiptAddr, _, err := address.Receipt(itemAddr)
	if err != nil {
		return err
	}
	receipt, ok := e.state.ReceiptGet(receiptAddr)
	if !ok {
		return ErrNotFound
	}
	receipt.Owner = item.CurrentOwner
	receipt.State = item.Status
	return e.state.ReceiptPut(receiptAddr, receipt)
}

func (e *Engine) transferLamports(from, to types.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	amt := new(big.Int).SetUint64(amount)
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	if fromAcc.BalanceLamports.Cmp(amt) < 0 {
		return ErrInsufficientPayment
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	fromAcc.BalanceLamports = new(big.Int).Sub(fromAcc.BalanceLamports, amt)
	toAcc.BalanceLamports = new(big.Int).Add(toAcc.BalanceLamports, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return types.NewAccount()
	}
	if acc.BalanceLamports == nil {
		acc.BalanceLamports = big.NewInt(0)
	}
	return acc
}
