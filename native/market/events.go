package market

import (
	"strconv"

	"kaiwu/core/types"
)

// Event type identifiers for every successful transition. The names track the
// deployed program's event set.
const (
	EventTypeConfigUpdated   = "market.config.updated"
	EventTypeItemIntaked     = "market.item.intaked"
	EventTypeReceiptMinted   = "market.receipt.minted"
	EventTypeListed          = "market.item.listed"
	EventTypeDelisted        = "market.item.delisted"
	EventTypeTradeSettled    = "market.trade.settled"
	EventTypeRedeemRequested = "market.redeem.requested"
	EventTypeRedeemConfirmed = "market.redeem.confirmed"
)

// NewConfigUpdatedEvent returns the canonical payload emitted when the config
// is created or updated.
func NewConfigUpdatedEvent(c *Config) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["feeBps"] = strconv.FormatUint(uint64(c.FeeBps), 10)
		attrs["treasury"] = c.Treasury.Hex()
	}
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: attrs}
}

// NewItemIntakedEvent returns the canonical payload for a newly intaken item.
func NewItemIntakedEvent(i *Item) *types.Event {
	return newItemEvent(EventTypeItemIntaked, i)
}

// NewReceiptMintedEvent returns the payload emitted when an item's receipt is
// minted alongside it.
func NewReceiptMintedEvent(i *Item) *types.Event {
	return newItemEvent(EventTypeReceiptMinted, i)
}

// NewListedEvent returns the payload emitted when an item is listed for sale.
func NewListedEvent(i *Item, l *Listing) *types.Event {
	evt := newItemEvent(EventTypeListed, i)
	if l != nil {
		evt.Attributes["seller"] = l.Seller.Hex()
		evt.Attributes["priceLamports"] = strconv.FormatUint(l.PriceLamports, 10)
		evt.Attributes["expiresAt"] = strconv.FormatInt(l.ExpiresAt, 10)
	}
	return evt
}

// NewDelistedEvent returns the payload emitted when a listing is withdrawn.
func NewDelistedEvent(i *Item, l *Listing) *types.Event {
	evt := newItemEvent(EventTypeDelisted, i)
	if l != nil {
		evt.Attributes["seller"] = l.Seller.Hex()
	}
	return evt
}

// NewTradeSettledEvent returns the payload emitted when a purchase settles.
func NewTradeSettledEvent(i *Item, priceLamports, feeLamports uint64, seller, buyer types.Address) *types.Event {
	evt := newItemEvent(EventTypeTradeSettled, i)
	evt.Attributes["priceLamports"] = strconv.FormatUint(priceLamports, 10)
	evt.Attributes["feeLamports"] = strconv.FormatUint(feeLamports, 10)
	evt.Attributes["seller"] = seller.Hex()
	evt.Attributes["buyer"] = buyer.Hex()
	return evt
}

// NewRedeemRequestedEvent returns the payload emitted when redemption starts.
func NewRedeemRequestedEvent(i *Item) *types.Event {
	return newItemEvent(EventTypeRedeemRequested, i)
}

// NewRedeemConfirmedEvent returns the payload emitted when the operator
// confirms shipment. warehouseRef lives only in this event.
func NewRedeemConfirmedEvent(i *Item, warehouseRef string) *types.Event {
	evt := newItemEvent(EventTypeRedeemConfirmed, i)
	evt.Attributes["warehouseRef"] = warehouseRef
	return evt
}

func newItemEvent(eventType string, i *Item) *types.Event {
	attrs := make(map[string]string)
	if i != nil {
		attrs["itemId"] = strconv.FormatUint(i.ItemID, 10)
		attrs["owner"] = i.CurrentOwner.Hex()
		attrs["status"] = i.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
