package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CollectionKind string

const (
	CollectionMoney CollectionKind = "MONEY"
	CollectionItem  CollectionKind = "ITEM"
)

// Reasons recorded on mailbox entries.
const (
	ReasonSaleProceeds = "sale_proceeds"
	ReasonPurchase     = "purchase"
	ReasonAuctionWon   = "auction_won"
	ReasonExpired      = "listing_expired"
	ReasonCancelled    = "listing_cancelled"
	ReasonRefund       = "escrow_refund"
	ReasonFeeRefund    = "fee_refund"
)

// CollectionEntry is an asset waiting in a player's mailbox.
type CollectionEntry struct {
	ID        string
	OwnerID   string
	Kind      CollectionKind
	ItemBlob  []byte
	Amount    decimal.Decimal
	Reason    string
	ListingID string
	CreatedAt time.Time
}
