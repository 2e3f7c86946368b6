package core

import (
	"log/slog"
	"math/big"
	"sync"

	"kaiwu/core/address"
	"kaiwu/core/events"
	"kaiwu/core/state"
	"kaiwu/core/types"
	"kaiwu/native/market"
	"kaiwu/observability"
	"kaiwu/storage"
)

// Node hosts the marketplace ledger: it owns the state manager, the market
// engine, and the append-only event log, and it linearizes transitions so two
// concurrent calls against the same records can never both observe the same
// pre-transition state.
type Node struct {
	mu     sync.Mutex
	state  *state.Manager
	engine *market.Engine
	log    *events.Recorder
	logger *slog.Logger
}

// NewNode wires a node on top of the provided database.
func NewNode(db storage.Database, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	recorder := events.NewRecorder()
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(recorder)
	return &Node{state: manager, engine: engine, log: recorder, logger: logger}
}

// SetNowFunc overrides the engine's time source, for tests.
func (n *Node) SetNowFunc(now func() int64) { n.engine.SetNowFunc(now) }

// GrantOperator registers an address as an intake/redemption operator.
func (n *Node) GrantOperator(addr types.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.SetRole(market.RoleOperator, addr)
}

// FundAccount credits lamports to a wallet. Deployments use this for genesis
// allocations; tests use it to seed buyers.
func (n *Node) FundAccount(addr types.Address, lamports uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.BalanceLamports.Add(acc.BalanceLamports, new(big.Int).SetUint64(lamports))
	return n.state.PutAccount(addr, acc)
}

// InitConfig applies the init_config transition.
func (n *Node) InitConfig(caller types.Address, feeBps uint16, treasury, governance types.Address) (*market.Config, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cfg, err := n.engine.InitConfig(caller, feeBps, treasury, governance)
	n.finish("init_config", err)
	return cfg, err
}

// UpdateConfig applies the governance-gated config update transition.
func (n *Node) UpdateConfig(caller types.Address, feeBps uint16, treasury types.Address) (*market.Config, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cfg, err := n.engine.UpdateConfig(caller, feeBps, treasury)
	n.finish("update_config", err)
	return cfg, err
}

// IntakeItem applies the intake_item transition.
func (n *Node) IntakeItem(operator types.Address, itemID uint64, skuHash, vaultHash [32]byte, initialOwner types.Address) (*market.Item, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	item, err := n.engine.IntakeItem(operator, itemID, skuHash, vaultHash, initialOwner)
	n.finish("intake_item", err)
	return item, err
}

// ListItem applies the list_item transition.
func (n *Node) ListItem(caller types.Address, itemID uint64, priceLamports uint64, expiresAt int64) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	listing, err := n.engine.ListItem(caller, itemID, priceLamports, expiresAt)
	n.finish("list_item", err)
	return listing, err
}

// DelistItem applies the delist_item transition.
func (n *Node) DelistItem(caller types.Address, itemID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.engine.DelistItem(caller, itemID)
	n.finish("delist_item", err)
	return err
}

// BuyItem applies the buy_item transition.
func (n *Node) BuyItem(buyer types.Address, itemID uint64, offeredPrice uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.engine.BuyItem(buyer, itemID, offeredPrice)
	n.finish("buy_item", err)
	return err
}

// RedeemRequest applies the redeem_request transition.
func (n *Node) RedeemRequest(caller types.Address, itemID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.engine.RedeemRequest(caller, itemID)
	n.finish("redeem_request", err)
	return err
}

// RedeemConfirm applies the redeem_confirm transition.
func (n *Node) RedeemConfirm(operator types.Address, itemID uint64, warehouseRef string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.engine.RedeemConfirm(operator, itemID, warehouseRef)
	n.finish("redeem_confirm", err)
	return err
}

// GetConfig returns the marketplace config, if initialised.
func (n *Node) GetConfig() (*market.Config, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.ConfigGet()
}

// GetItem returns the item with the given id.
func (n *Node) GetItem(itemID uint64) (*market.Item, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addrItem, _, err := address.Item(itemID)
	if err != nil {
		return nil, false
	}
	return n.state.ItemGet(addrItem)
}

// GetListing returns the listing attached to the given item id.
func (n *Node) GetListing(itemID uint64) (*market.Listing, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addrItem, _, err := address.Item(itemID)
	if err != nil {
		return nil, false
	}
	addrListing, _, err := address.Listing(addrItem)
	if err != nil {
		return nil, false
	}
	return n.state.ListingGet(addrListing)
}

// GetReceipt returns the receipt attached to the given item id.
func (n *Node) GetReceipt(itemID uint64) (*market.Receipt, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addrItem, _, err := address.Item(itemID)
	if err != nil {
		return nil, false
	}
	addrReceipt, _, err := address.Receipt(addrItem)
	if err != nil {
		return nil, false
	}
	return n.state.ReceiptGet(addrReceipt)
}

// GetAccount returns the wallet account for the given address.
func (n *Node) GetAccount(addr types.Address) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.GetAccount(addr)
}

// Events returns all recorded events after the given sequence number.
func (n *Node) Events(sinceSeq uint64) []events.Recorded {
	return n.log.Since(sinceSeq)
}

func (n *Node) finish(op string, err error) {
	observability.Market().RecordTransition(op, err)
	if err != nil {
		n.logger.Info("transition rejected", "op", op, "error", err.Error())
		return
	}
	n.logger.Info("transition applied", "op", op)
}
