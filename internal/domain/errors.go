package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the engine matches at most one of
// these with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrFunds               = errors.New("funds error")
	ErrPersistence         = errors.New("persistence error")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrEntryNotFound   = errors.New("collection entry not found")
	ErrHoldNotFound    = errors.New("escrow hold not found")
	ErrAccountNotFound = errors.New("account not found")
)

var (
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidBuyout     = fmt.Errorf("%w: buyout price below start price", ErrValidation)
	ErrInvalidDuration   = fmt.Errorf("%w: duration out of range", ErrValidation)
	ErrInvalidItem       = fmt.Errorf("%w: item material required", ErrValidation)
	ErrTooManyListings   = fmt.Errorf("%w: active listing limit reached", ErrValidation)
	ErrListingNotActive  = fmt.Errorf("%w: listing is not active", ErrValidation)
	ErrListingEnded      = fmt.Errorf("%w: listing has ended", ErrValidation)
	ErrBidTooLow         = fmt.Errorf("%w: bid below minimum", ErrValidation)
	ErrOwnListing        = fmt.Errorf("%w: cannot buy or bid on own listing", ErrValidation)
	ErrAlreadyTopBidder  = fmt.Errorf("%w: already the highest bidder", ErrValidation)
	ErrNoBuyout          = fmt.Errorf("%w: listing has no buyout price", ErrValidation)
	ErrNoWinningBid      = fmt.Errorf("%w: listing has no winning bid", ErrValidation)
	ErrHasBids           = fmt.Errorf("%w: listing already has bids", ErrValidation)
	ErrNotSeller         = fmt.Errorf("%w: only the seller or an admin may cancel", ErrValidation)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient balance", ErrFunds)
	ErrWithdrawRefused   = fmt.Errorf("%w: withdrawal refused", ErrFunds)
	ErrAlreadySettled    = fmt.Errorf("%w: listing already settled", ErrConcurrencyConflict)
	ErrListingChanged    = fmt.Errorf("%w: listing changed concurrently", ErrConcurrencyConflict)
)

// PersistenceFailure wraps a failed durable write with the operation and
// listing it belongs to.
func PersistenceFailure(op, listingID string, cause error) error {
	return fmt.Errorf("%s listing %s: %w: %w", op, listingID, ErrPersistence, cause)
}
