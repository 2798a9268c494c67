package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

// Money goes over the wire as fixed two-decimal strings.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type listingView struct {
	ID             string    `json:"id"`
	SellerID       string    `json:"seller_id"`
	SellerName     string    `json:"seller_name"`
	Material       string    `json:"material"`
	DisplayName    string    `json:"display_name"`
	Category       string    `json:"category"`
	StartPrice     string    `json:"start_price"`
	BuyoutPrice    *string   `json:"buyout_price,omitempty"`
	CurrentBid     string    `json:"current_bid"`
	CurrentBidder  string    `json:"current_bidder,omitempty"`
	BidCount       int       `json:"bid_count"`
	MinimumBid     string    `json:"minimum_bid"`
	ExtensionsUsed int       `json:"extensions_used"`
	ListedAt       time.Time `json:"listed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Status         string    `json:"status"`
	ListingFee     string    `json:"listing_fee"`
}

func toListingView(l domain.Listing, increment decimal.Decimal) listingView {
	v := listingView{
		ID:             l.ID,
		SellerID:       l.SellerID,
		SellerName:     l.SellerName,
		Material:       l.Item.Material,
		DisplayName:    l.Item.DisplayName,
		Category:       l.Item.Category,
		StartPrice:     money(l.StartPrice),
		CurrentBid:     money(l.CurrentBid),
		CurrentBidder:  l.CurrentBidderName,
		BidCount:       l.BidCount,
		MinimumBid:     money(l.MinimumBid(increment)),
		ExtensionsUsed: l.ExtensionsUsed,
		ListedAt:       l.ListedAt,
		ExpiresAt:      l.ExpiresAt,
		Status:         string(l.Status),
		ListingFee:     money(l.ListingFee),
	}
	if l.BuyoutPrice.Valid {
		b := money(l.BuyoutPrice.Decimal)
		v.BuyoutPrice = &b
	}
	return v
}

func toListingViews(ls []domain.Listing, increment decimal.Decimal) []listingView {
	out := make([]listingView, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingView(l, increment))
	}
	return out
}

type bidView struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     string    `json:"amount"`
	BidAt      time.Time `json:"bid_at"`
}

func toBidView(b domain.Bid) bidView {
	return bidView{ID: b.ID, ListingID: b.ListingID, BidderID: b.BidderID, BidderName: b.BidderName, Amount: money(b.Amount), BidAt: b.BidAt}
}

type transactionView struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	SellerID  string    `json:"seller_id"`
	BuyerID   string    `json:"buyer_id"`
	Material  string    `json:"material"`
	Amount    string    `json:"amount"`
	Tax       string    `json:"tax"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransactionView(t domain.Transaction) transactionView {
	return transactionView{
		ID:        t.ID,
		ListingID: t.ListingID,
		SellerID:  t.SellerID,
		BuyerID:   t.BuyerID,
		Material:  t.Material,
		Amount:    money(t.Amount),
		Tax:       money(t.Tax),
		Kind:      string(t.Kind),
		CreatedAt: t.CreatedAt,
	}
}

type entryView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount,omitempty"`
	Item      []byte    `json:"item,omitempty"`
	Reason    string    `json:"reason"`
	ListingID string    `json:"listing_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toEntryView(e domain.CollectionEntry) entryView {
	v := entryView{ID: e.ID, Kind: string(e.Kind), Item: e.ItemBlob, Reason: e.Reason, ListingID: e.ListingID, CreatedAt: e.CreatedAt}
	if e.Kind == domain.CollectionMoney {
		v.Amount = money(e.Amount)
	}
	return v
}

func toEntryViews(es []domain.CollectionEntry) []entryView {
	out := make([]entryView, 0, len(es))
	for _, e := range es {
		out = append(out, toEntryView(e))
	}
	return out
}

type pricePointView struct {
	Date      string `json:"date"`
	AvgPrice  string `json:"avg_price"`
	MinPrice  string `json:"min_price"`
	MaxPrice  string `json:"max_price"`
	SaleCount int    `json:"sale_count"`
}

func toPricePointView(p domain.PriceHistoryPoint) pricePointView {
	return pricePointView{Date: p.DateBucket, AvgPrice: money(p.AvgPrice), MinPrice: money(p.MinPrice), MaxPrice: money(p.MaxPrice), SaleCount: p.SaleCount}
}
