package services

import (
	"context"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

// Economy is the host's balance store. Each call is atomic on its own; pairs
// of calls are not, so the engine compensates explicitly.
type Economy interface {
	Has(ctx context.Context, playerID string, amount decimal.Decimal) (bool, error)
	// Withdraw fails with an error matching domain.ErrFunds when refused.
	Withdraw(ctx context.Context, playerID string, amount decimal.Decimal) error
	Deposit(ctx context.Context, playerID string, amount decimal.Decimal) error
	Balance(ctx context.Context, playerID string) (decimal.Decimal, error)
	Format(amount decimal.Decimal) string
}

// Notifier delivers player notifications. It must not block and its
// failures are not reported back.
type Notifier interface {
	Notify(ctx context.Context, playerID, event string, params map[string]any)
}

// ItemDeliverer puts a serialized item into a player's live inventory. It is
// called inside the claim's database transaction, as is Economy.Deposit; an
// implementation that touches the same store must use ctx.
type ItemDeliverer interface {
	GiveItem(ctx context.Context, playerID string, blob []byte) error
}

// Permissions answers permission checks. Optional.
type Permissions interface {
	Has(playerID, permission string) bool
}

// PermissionTaxExempt waives the sales tax for a seller.
const PermissionTaxExempt = "auctionhouse.tax.exempt"

// Notification event keys.
const (
	EventBidPlaced        = "bid.placed"
	EventOutbid           = "bid.outbid"
	EventBidRefunded      = "bid.refunded"
	EventListingExtended  = "listing.extended"
	EventListingSold      = "listing.sold"
	EventListingWon       = "listing.won"
	EventListingPurchased = "listing.purchased"
	EventListingExpired   = "listing.expired"
	EventListingCancelled = "listing.cancelled"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ListingRepository interface {
	Insert(ctx context.Context, l domain.Listing) error
	Get(ctx context.Context, id string) (domain.Listing, error)
	ListActive(ctx context.Context, category, sort string, limit, offset int) ([]domain.Listing, error)
	Search(ctx context.Context, text, sort string, limit, offset int) ([]domain.Listing, error)
	ListBySeller(ctx context.Context, sellerID, sort string, limit, offset int) ([]domain.Listing, error)
	CountActiveBySeller(ctx context.Context, sellerID string) (int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	UpdateBid(ctx context.Context, id string, expectedVersion int64, bid domain.Bid) error
	Extend(ctx context.Context, id string, expectedVersion int64, expiresAt time.Time) error
	Transition(ctx context.Context, id string, expectedVersion int64, to domain.ListingStatus) error
}

type BidRepository interface {
	Insert(ctx context.Context, b domain.Bid) error
	ListByListing(ctx context.Context, listingID string) ([]domain.Bid, error)
}

type EscrowRepository interface {
	Insert(ctx context.Context, h domain.EscrowHold) error
	Get(ctx context.Context, listingID, bidderID string) (domain.EscrowHold, error)
	Delete(ctx context.Context, listingID, bidderID string) (domain.EscrowHold, error)
	ListByListing(ctx context.Context, listingID string) ([]domain.EscrowHold, error)
	ListOrphaned(ctx context.Context, limit int) ([]domain.EscrowHold, error)
}

type CollectionRepository interface {
	Insert(ctx context.Context, e domain.CollectionEntry) error
	ListByOwner(ctx context.Context, ownerID string, newestFirst bool) ([]domain.CollectionEntry, error)
	ListByListing(ctx context.Context, listingID string) ([]domain.CollectionEntry, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	Delete(ctx context.Context, id, ownerID string) (domain.CollectionEntry, error)
}

type PriceHistoryRepository interface {
	Get(ctx context.Context, material, date string) (domain.PriceHistoryPoint, bool, error)
	Insert(ctx context.Context, p domain.PriceHistoryPoint) error
	Update(ctx context.Context, p domain.PriceHistoryPoint, expectedCount int) error
	Range(ctx context.Context, material, fromDate string) iter.Seq2[domain.PriceHistoryPoint, error]
	DeleteBefore(ctx context.Context, date string) (int64, error)
}

type TransactionRepository interface {
	Insert(ctx context.Context, t domain.Transaction) error
	ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]domain.Transaction, error)
}

// Repositories bundles the persistence the engine runs on.
type Repositories struct {
	Tx           TxRunner
	Listings     ListingRepository
	Bids         BidRepository
	Escrow       EscrowRepository
	Collection   CollectionRepository
	Prices       PriceHistoryRepository
	Transactions TransactionRepository
}
