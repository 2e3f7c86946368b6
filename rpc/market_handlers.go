package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"kaiwu/core/events"
	"kaiwu/core/types"
	"kaiwu/native/market"
)

type initConfigParams struct {
	Caller     string `json:"caller"`
	FeeBps     uint16 `json:"feeBps"`
	Treasury   string `json:"treasury"`
	Governance string `json:"governance"`
}

type updateConfigParams struct {
	Caller   string `json:"caller"`
	FeeBps   uint16 `json:"feeBps"`
	Treasury string `json:"treasury"`
}

type intakeItemParams struct {
	Operator     string `json:"operator"`
	ItemID       uint64 `json:"itemId"`
	SKUHash      string `json:"skuHash"`
	VaultHash    string `json:"vaultHash"`
	InitialOwner string `json:"initialOwner"`
}

type listItemParams struct {
	Caller        string `json:"caller"`
	ItemID        uint64 `json:"itemId"`
	PriceLamports string `json:"priceLamports"`
	ExpiresAt     int64  `json:"expiresAt"`
}

type itemActorParams struct {
	Caller string `json:"caller"`
	ItemID uint64 `json:"itemId"`
}

type buyItemParams struct {
	Buyer         string `json:"buyer"`
	ItemID        uint64 `json:"itemId"`
	PriceLamports string `json:"priceLamports"`
}

type redeemConfirmParams struct {
	Operator     string `json:"operator"`
	ItemID       uint64 `json:"itemId"`
	WarehouseRef string `json:"warehouseRef"`
}

type itemIDParams struct {
	ItemID uint64 `json:"itemId"`
}

type accountParams struct {
	Address string `json:"address"`
}

type eventsParams struct {
	Since uint64 `json:"since"`
}

type configJSON struct {
	FeeBps     uint16 `json:"feeBps"`
	Treasury   string `json:"treasury"`
	Governance string `json:"governance"`
}

type itemJSON struct {
	ItemID       uint64 `json:"itemId"`
	SKUHash      string `json:"skuHash"`
	VaultHash    string `json:"vaultHash"`
	Status       string `json:"status"`
	CurrentOwner string `json:"currentOwner"`
	CreatedAt    int64  `json:"createdAt"`
}

type listingJSON struct {
	Seller        string `json:"seller"`
	PriceLamports string `json:"priceLamports"`
	ExpiresAt     int64  `json:"expiresAt"`
	Active        bool   `json:"active"`
}

type receiptJSON struct {
	Owner string `json:"owner"`
	State string `json:"state"`
}

type accountJSON struct {
	Address         string `json:"address"`
	Nonce           uint64 `json:"nonce"`
	BalanceLamports string `json:"balanceLamports"`
}

func (s *Server) handleInitConfig(params []json.RawMessage) (interface{}, *RPCError) {
	var p initConfigParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	treasury, err := parseAddr("treasury", p.Treasury)
	if err != nil {
		return nil, err
	}
	governance, err := parseAddr("governance", p.Governance)
	if err != nil {
		return nil, err
	}
	cfg, txErr := s.node.InitConfig(caller, p.FeeBps, treasury, governance)
	if txErr != nil {
		return nil, marketError(txErr)
	}
	return configView(cfg), nil
}

func (s *Server) handleUpdateConfig(params []json.RawMessage) (interface{}, *RPCError) {
	var p updateConfigParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	treasury, err := parseAddr("treasury", p.Treasury)
	if err != nil {
		return nil, err
	}
	cfg, txErr := s.node.UpdateConfig(caller, p.FeeBps, treasury)
	if txErr != nil {
		return nil, marketError(txErr)
	}
	return configView(cfg), nil
}

func (s *Server) handleIntakeItem(params []json.RawMessage) (interface{}, *RPCError) {
	var p intakeItemParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	operator, err := parseAddr("operator", p.Operator)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddr("initialOwner", p.InitialOwner)
	if err != nil {
		return nil, err
	}
	skuHash, err := parseHash("skuHash", p.SKUHash)
	if err != nil {
		return nil, err
	}
	vaultHash, err := parseHash("vaultHash", p.VaultHash)
	if err != nil {
		return nil, err
	}
	item, txErr := s.node.IntakeItem(operator, p.ItemID, skuHash, vaultHash, owner)
	if txErr != nil {
		return nil, marketError(txErr)
	}
	return itemView(item), nil
}

func (s *Server) handleListItem(params []json.RawMessage) (interface{}, *RPCError) {
	var p listItemParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	price, err := parseLamports("priceLamports", p.PriceLamports)
	if err != nil {
		return nil, err
	}
	listing, txErr := s.node.ListItem(caller, p.ItemID, price, p.ExpiresAt)
	if txErr != nil {
		return nil, marketError(txErr)
	}
	return listingView(listing), nil
}

func (s *Server) handleDelistItem(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemActorParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	if txErr := s.node.DelistItem(caller, p.ItemID); txErr != nil {
		return nil, marketError(txErr)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleBuyItem(params []json.RawMessage) (interface{}, *RPCError) {
	var p buyItemParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	buyer, err := parseAddr("buyer", p.Buyer)
	if err != nil {
		return nil, err
	}
	price, err := parseLamports("priceLamports", p.PriceLamports)
	if err != nil {
		return nil, err
	}
	if txErr := s.node.BuyItem(buyer, p.ItemID, price); txErr != nil {
		return nil, marketError(txErr)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleRedeemRequest(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemActorParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	if txErr := s.node.RedeemRequest(caller, p.ItemID); txErr != nil {
		return nil, marketError(txErr)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleRedeemConfirm(params []json.RawMessage) (interface{}, *RPCError) {
	var p redeemConfirmParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	operator, err := parseAddr("operator", p.Operator)
	if err != nil {
		return nil, err
	}
	if txErr := s.node.RedeemConfirm(operator, p.ItemID, p.WarehouseRef); txErr != nil {
		return nil, marketError(txErr)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetConfig(_ []json.RawMessage) (interface{}, *RPCError) {
	cfg, ok := s.node.GetConfig()
	if !ok {
		return nil, &RPCError{Code: codeMarketNotFound, Message: "config not initialised"}
	}
	return configView(cfg), nil
}

func (s *Server) handleGetItem(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	item, ok := s.node.GetItem(p.ItemID)
	if !ok {
		return nil, &RPCError{Code: codeMarketNotFound, Message: "item not found"}
	}
	return itemView(item), nil
}

func (s *Server) handleGetListing(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	listing, ok := s.node.GetListing(p.ItemID)
	if !ok {
		return nil, &RPCError{Code: codeMarketNotFound, Message: "listing not found"}
	}
	return listingView(listing), nil
}

func (s *Server) handleGetReceipt(params []json.RawMessage) (interface{}, *RPCError) {
	var p itemIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	receipt, ok := s.node.GetReceipt(p.ItemID)
	if !ok {
		return nil, &RPCError{Code: codeMarketNotFound, Message: "receipt not found"}
	}
	return receiptJSON{Owner: receipt.Owner.Hex(), State: receipt.State.String()}, nil
}

func (s *Server) handleGetAccount(params []json.RawMessage) (interface{}, *RPCError) {
	var p accountParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := parseAddr("address", p.Address)
	if err != nil {
		return nil, err
	}
	acc, accErr := s.node.GetAccount(addr)
	if accErr != nil {
		return nil, &RPCError{Code: codeMarketInternal, Message: accErr.Error()}
	}
	return accountJSON{Address: addr.Hex(), Nonce: acc.Nonce, BalanceLamports: acc.BalanceLamports.String()}, nil
}

func (s *Server) handleEvents(params []json.RawMessage) (interface{}, *RPCError) {
	p := eventsParams{}
	if len(params) > 0 {
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
	}
	recorded := s.node.Events(p.Since)
	if recorded == nil {
		recorded = []events.Recorded{}
	}
	return recorded, nil
}

func decodeParams(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parseAddr(field, value string) (types.Address, *RPCError) {
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.Address{}, &RPCError{Code: codeMarketInvalidParams, Message: fmt.Sprintf("%s: %v", field, err)}
	}
	return addr, nil
}

func parseHash(field, value string) ([32]byte, *RPCError) {
	var out [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != 32 {
		return out, &RPCError{Code: codeMarketInvalidParams, Message: fmt.Sprintf("%s: expected 32 hex-encoded bytes", field)}
	}
	copy(out[:], raw)
	return out, nil
}

func parseLamports(field, value string) (uint64, *RPCError) {
	amount, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, &RPCError{Code: codeMarketInvalidParams, Message: fmt.Sprintf("%s: expected unsigned decimal string", field)}
	}
	return amount, nil
}

func configView(cfg *market.Config) configJSON {
	return configJSON{FeeBps: cfg.FeeBps, Treasury: cfg.Treasury.Hex(), Governance: cfg.Governance.Hex()}
}

func itemView(item *market.Item) itemJSON {
	return itemJSON{
		ItemID:       item.ItemID,
		SKUHash:      hex.EncodeToString(item.SKUHash[:]),
		VaultHash:    hex.EncodeToString(item.VaultHash[:]),
		Status:       item.Status.String(),
		CurrentOwner: item.CurrentOwner.Hex(),
		CreatedAt:    item.CreatedAt,
	}
}

func listingView(listing *market.Listing) listingJSON {
	return listingJSON{
		Seller:        listing.Seller.Hex(),
		PriceLamports: strconv.FormatUint(listing.PriceLamports, 10),
		ExpiresAt:     listing.ExpiresAt,
		Active:        listing.Active,
	}
}

// marketError maps engine sentinels onto stable JSON-RPC error codes so
// clients can branch without parsing messages.
func marketError(err error) *RPCError {
	switch {
	case errors.Is(err, market.ErrNotFound), errors.Is(err, market.ErrListingNotFound):
		return &RPCError{Code: codeMarketNotFound, Message: err.Error()}
	case errors.Is(err, market.ErrUnauthorized), errors.Is(err, market.ErrSelfDealNotAllowed):
		return &RPCError{Code: codeMarketForbidden, Message: err.Error()}
	case errors.Is(err, market.ErrAlreadyExists),
		errors.Is(err, market.ErrInvalidState),
		errors.Is(err, market.ErrListingActive),
		errors.Is(err, market.ErrExpired),
		errors.Is(err, market.ErrPriceMismatch),
		errors.Is(err, market.ErrInsufficientPayment),
		errors.Is(err, market.ErrFeeTooHigh):
		return &RPCError{Code: codeMarketConflict, Message: err.Error()}
	default:
		return &RPCError{Code: codeMarketInternal, Message: err.Error()}
	}
}
