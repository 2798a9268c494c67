package services

import (
	"context"
	"iter"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
)

// Deps are the collaborators an AuctionHouse runs against. Items and
// Permissions are optional.
type Deps struct {
	Repos       Repositories
	Economy     Economy
	Notifier    Notifier
	Items       ItemDeliverer
	Permissions Permissions
	Clock       clock.Clock
	Settings    Settings
}

// AuctionHouse wires the engine components together and exposes the
// operations the command and HTTP layers call.
type AuctionHouse struct {
	Listings   *ListingService
	Bids       *BidEngine
	Settlement *SettlementService
	Sweeper    *ExpirySweeper
	Escrow     *EscrowLedger
	Mailbox    *CollectionMailbox
	Prices     *PriceHistoryAggregator
	History    *TransactionHistory

	economy Economy
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string, map[string]any) {}

func NewAuctionHouse(d Deps) *AuctionHouse {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	settings := d.Settings.withDefaults()
	locks := NewListingLocks()

	mailbox := NewCollectionMailbox(d.Repos.Tx, d.Repos.Collection, d.Economy, d.Items, d.Clock, settings.CollectionNewestFirst)
	escrow := NewEscrowLedger(d.Repos.Escrow, d.Economy, mailbox, d.Clock)
	prices := NewPriceHistoryAggregator(d.Repos.Tx, d.Repos.Prices, d.Clock, settings.PriceHistoryRetention)
	settlement := NewSettlementService(d.Repos, escrow, mailbox, prices, d.Economy, d.Notifier, d.Permissions, locks, d.Clock, settings)

	return &AuctionHouse{
		Listings:   NewListingService(d.Repos.Listings, d.Repos.Bids, d.Economy, escrow, d.Clock, settings),
		Bids:       NewBidEngine(d.Repos, escrow, d.Economy, d.Notifier, locks, d.Clock, settings),
		Settlement: settlement,
		Sweeper:    NewExpirySweeper(d.Repos, escrow, settlement, prices, d.Economy, d.Notifier, locks, d.Clock, settings),
		Escrow:     escrow,
		Mailbox:    mailbox,
		Prices:     prices,
		History:    NewTransactionHistory(d.Repos.Transactions),
		economy:    d.Economy,
	}
}

func (h *AuctionHouse) CreateListing(ctx context.Context, in CreateListingInput) (domain.Listing, error) {
	return h.Listings.Create(ctx, in)
}

func (h *AuctionHouse) ActiveListings(ctx context.Context, category, sort string, page, size int) ([]domain.Listing, error) {
	return h.Listings.Active(ctx, category, sort, page, size)
}

func (h *AuctionHouse) SearchListings(ctx context.Context, text, sort string, page, size int) ([]domain.Listing, error) {
	return h.Listings.Search(ctx, text, sort, page, size)
}

func (h *AuctionHouse) SellerListings(ctx context.Context, sellerID, sort string, page, size int) ([]domain.Listing, error) {
	return h.Listings.BySeller(ctx, sellerID, sort, page, size)
}

func (h *AuctionHouse) Listing(ctx context.Context, id string) (domain.Listing, error) {
	return h.Listings.Get(ctx, id)
}

func (h *AuctionHouse) ListingBids(ctx context.Context, id string) ([]domain.Bid, error) {
	return h.Listings.Bids(ctx, id)
}

func (h *AuctionHouse) PlaceBid(ctx context.Context, in PlaceBidInput) (domain.Bid, error) {
	return h.Bids.PlaceBid(ctx, in)
}

func (h *AuctionHouse) BuyNow(ctx context.Context, in BuyNowInput) (domain.Transaction, error) {
	return h.Settlement.BuyNow(ctx, in)
}

func (h *AuctionHouse) CancelListing(ctx context.Context, in CancelInput) error {
	return h.Settlement.CancelListing(ctx, in)
}

func (h *AuctionHouse) Collection(ctx context.Context, playerID string) ([]domain.CollectionEntry, error) {
	return h.Mailbox.List(ctx, playerID)
}

func (h *AuctionHouse) PendingCollection(ctx context.Context, playerID string) (int, error) {
	return h.Mailbox.Pending(ctx, playerID)
}

func (h *AuctionHouse) ClaimCollectionEntry(ctx context.Context, playerID, entryID string) (domain.CollectionEntry, error) {
	return h.Mailbox.Claim(ctx, playerID, entryID)
}

func (h *AuctionHouse) ClaimAll(ctx context.Context, playerID string) ([]domain.CollectionEntry, error) {
	return h.Mailbox.ClaimAll(ctx, playerID)
}

func (h *AuctionHouse) TransactionHistory(ctx context.Context, playerID string, page, size int) ([]domain.Transaction, error) {
	return h.History.ForPlayer(ctx, playerID, page, size)
}

func (h *AuctionHouse) PriceHistory(ctx context.Context, material string, days int) iter.Seq2[domain.PriceHistoryPoint, error] {
	return h.Prices.Query(ctx, material, days)
}

func (h *AuctionHouse) PriceSummary(ctx context.Context, material string, days int) (domain.PriceHistoryPoint, error) {
	return h.Prices.Summary(ctx, material, days)
}

func (h *AuctionHouse) Balance(ctx context.Context, playerID string) (string, error) {
	bal, err := h.economy.Balance(ctx, playerID)
	if err != nil {
		return "", err
	}
	return h.economy.Format(bal), nil
}
