package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingSold      ListingStatus = "SOLD"
	ListingExpired   ListingStatus = "EXPIRED"
	ListingCancelled ListingStatus = "CANCELLED"
)

// Terminal reports whether the status can no longer change.
func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingExpired || s == ListingCancelled
}

// Item is an opaque serialized item plus the metadata listings are indexed by.
type Item struct {
	Blob        []byte
	Material    string
	DisplayName string
	Category    string
}

// Listing is a timed auction for one item.
type Listing struct {
	ID                string
	SellerID          string
	SellerName        string
	Item              Item
	StartPrice        decimal.Decimal
	BuyoutPrice       decimal.NullDecimal
	CurrentBid        decimal.Decimal
	CurrentBidderID   string
	CurrentBidderName string
	BidCount          int
	LastBidAt         time.Time
	ExtensionsUsed    int
	ListedAt          time.Time
	ExpiresAt         time.Time
	Status            ListingStatus
	ListingFee        decimal.Decimal
	// Version is bumped on every write and used for compare-and-set updates.
	Version int64
}

func (l Listing) HasBid() bool { return l.CurrentBidderID != "" }

// MinimumBid is the lowest amount the next bid may carry.
func (l Listing) MinimumBid(incrementPct decimal.Decimal) decimal.Decimal {
	if !l.HasBid() {
		return l.StartPrice
	}
	return l.CurrentBid.Mul(decimal.NewFromInt(1).Add(incrementPct))
}

// Bid is an accepted bid. Bids are never updated or deleted.
type Bid struct {
	ID         string
	ListingID  string
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
	BidAt      time.Time
}
