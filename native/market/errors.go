package market

import "errors"

// Transition failures. Every precondition check maps to exactly one of these
// so callers can branch on errors.Is without parsing messages.
var (
	ErrUnauthorized        = errors.New("market: unauthorized")
	ErrInvalidState        = errors.New("market: invalid state")
	ErrAlreadyExists       = errors.New("market: already exists")
	ErrNotFound            = errors.New("market: not found")
	ErrListingActive       = errors.New("market: listing is active")
	ErrListingNotFound     = errors.New("market: listing not found")
	ErrSelfDealNotAllowed  = errors.New("market: self deal is not allowed")
	ErrInsufficientPayment = errors.New("market: insufficient payment")
	ErrPriceMismatch       = errors.New("market: price mismatch")
	ErrFeeTooHigh          = errors.New("market: fee basis points exceed limit")
	ErrExpired             = errors.New("market: listing expired")
	ErrSchemaMismatch      = errors.New("market: record discriminator mismatch")
)
