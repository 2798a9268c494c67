package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowHold is money already taken from a bidder and not yet paid to anyone.
type EscrowHold struct {
	ListingID string
	BidderID  string
	Amount    decimal.Decimal
	CreatedAt time.Time
}
