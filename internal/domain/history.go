package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateBucketLayout formats the UTC day a price point aggregates.
const DateBucketLayout = "2006-01-02"

// PriceHistoryPoint aggregates the sales of one material on one UTC day.
type PriceHistoryPoint struct {
	Material   string
	DateBucket string
	AvgPrice   decimal.Decimal
	MinPrice   decimal.Decimal
	MaxPrice   decimal.Decimal
	SaleCount  int
}

type TransactionKind string

const (
	TransactionBuyout TransactionKind = "BUYOUT"
	TransactionBidWin TransactionKind = "BID_WIN"
)

// Transaction records a completed sale.
type Transaction struct {
	ID        string
	ListingID string
	SellerID  string
	BuyerID   string
	Material  string
	Amount    decimal.Decimal
	Tax       decimal.Decimal
	Kind      TransactionKind
	CreatedAt time.Time
}
