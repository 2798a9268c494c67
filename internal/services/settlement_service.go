package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
)

type BuyNowInput struct {
	ListingID string
	BuyerID   string
	BuyerName string
}

type CancelInput struct {
	ListingID string
	ActorID   string
	Admin     bool
}

// SettlementService moves listings out of ACTIVE. Each path commits the
// status change, escrow consumption, mailbox deliveries, transaction record
// and price history in a single database transaction.
type SettlementService struct {
	repos       Repositories
	escrow      *EscrowLedger
	mailbox     *CollectionMailbox
	prices      *PriceHistoryAggregator
	economy     Economy
	notifier    Notifier
	permissions Permissions
	locks       *ListingLocks
	clock       clock.Clock
	settings    Settings
}

func NewSettlementService(
	repos Repositories,
	escrow *EscrowLedger,
	mailbox *CollectionMailbox,
	prices *PriceHistoryAggregator,
	economy Economy,
	notifier Notifier,
	permissions Permissions,
	locks *ListingLocks,
	clk clock.Clock,
	settings Settings,
) *SettlementService {
	return &SettlementService{
		repos:       repos,
		escrow:      escrow,
		mailbox:     mailbox,
		prices:      prices,
		economy:     economy,
		notifier:    notifier,
		permissions: permissions,
		locks:       locks,
		clock:       clk,
		settings:    settings,
	}
}

// BuyNow sells the listing to the buyer at its buyout price. Any standing bid
// is refunded in full.
func (s *SettlementService) BuyNow(ctx context.Context, in BuyNowInput) (domain.Transaction, error) {
	unlock := s.locks.Lock(in.ListingID)
	defer unlock()

	l, err := s.activeListing(ctx, in.ListingID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !l.BuyoutPrice.Valid {
		return domain.Transaction{}, domain.ErrNoBuyout
	}
	if !s.clock.Now().Before(l.ExpiresAt) {
		return domain.Transaction{}, domain.ErrListingEnded
	}
	if in.BuyerID == l.SellerID {
		return domain.Transaction{}, domain.ErrOwnListing
	}

	price := l.BuyoutPrice.Decimal
	if err := withdraw(ctx, s.economy, in.BuyerID, price); err != nil {
		return domain.Transaction{}, err
	}

	t, err := s.commitSale(ctx, l, in.BuyerID, domain.TransactionBuyout, func(context.Context) (decimal.Decimal, error) {
		return price, nil
	})
	if err != nil {
		if cerr := s.escrow.credit(ctx, in.BuyerID, l.ID, price, domain.ReasonRefund); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return domain.Transaction{}, s.failure("buy now", l.ID, err)
	}

	s.refundBidders(ctx, l)
	s.notifier.Notify(ctx, l.SellerID, EventListingSold, map[string]any{
		"listing_id": l.ID, "item": l.Item.DisplayName, "buyer": in.BuyerName,
		"amount": s.economy.Format(t.Amount), "tax": s.economy.Format(t.Tax),
	})
	s.notifier.Notify(ctx, in.BuyerID, EventListingPurchased, map[string]any{
		"listing_id": l.ID, "item": l.Item.DisplayName, "amount": s.economy.Format(t.Amount),
	})
	return t, nil
}

// CompleteBidWin sells the listing to its top bidder, paying with the
// bidder's escrow hold.
func (s *SettlementService) CompleteBidWin(ctx context.Context, listingID string) (domain.Transaction, error) {
	unlock := s.locks.Lock(listingID)
	defer unlock()

	l, err := s.activeListing(ctx, listingID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.completeBidWin(ctx, l)
}

// completeBidWin expects the listing lock to be held.
func (s *SettlementService) completeBidWin(ctx context.Context, l domain.Listing) (domain.Transaction, error) {
	if !l.HasBid() {
		return domain.Transaction{}, domain.ErrNoWinningBid
	}
	t, err := s.commitSale(ctx, l, l.CurrentBidderID, domain.TransactionBidWin, func(ctx context.Context) (decimal.Decimal, error) {
		return s.escrow.Consume(ctx, l.ID, l.CurrentBidderID)
	})
	if err != nil {
		return domain.Transaction{}, s.failure("complete bid win", l.ID, err)
	}

	s.refundBidders(ctx, l)
	s.notifier.Notify(ctx, l.SellerID, EventListingSold, map[string]any{
		"listing_id": l.ID, "item": l.Item.DisplayName, "buyer": l.CurrentBidderName,
		"amount": s.economy.Format(t.Amount), "tax": s.economy.Format(t.Tax),
	})
	s.notifier.Notify(ctx, l.CurrentBidderID, EventListingWon, map[string]any{
		"listing_id": l.ID, "item": l.Item.DisplayName, "amount": s.economy.Format(t.Amount),
	})
	return t, nil
}

// ExpireListing ends a listing unsold and returns the item to the seller.
// Any escrow still held against it is refunded.
func (s *SettlementService) ExpireListing(ctx context.Context, listingID string) error {
	unlock := s.locks.Lock(listingID)
	defer unlock()

	l, err := s.activeListing(ctx, listingID)
	if err != nil {
		return err
	}
	return s.expire(ctx, l)
}

// expire expects the listing lock to be held.
func (s *SettlementService) expire(ctx context.Context, l domain.Listing) error {
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Listings.Transition(ctx, l.ID, l.Version, domain.ListingExpired); err != nil {
			return err
		}
		_, err := s.mailbox.EnqueueItem(ctx, l.SellerID, l.ID, l.Item.Blob, domain.ReasonExpired)
		return err
	})
	if err != nil {
		return s.failure("expire", l.ID, err)
	}

	applog.Audit(nil, "listing.expired", map[string]any{"listing_id": l.ID, "seller_id": l.SellerID})
	s.refundBidders(ctx, l)
	s.notifier.Notify(ctx, l.SellerID, EventListingExpired, map[string]any{
		"listing_id": l.ID, "item": l.Item.DisplayName,
	})
	return nil
}

// CancelListing withdraws an ACTIVE listing. Sellers may cancel until the
// first bid; admins may cancel at any time. All escrow is refunded.
func (s *SettlementService) CancelListing(ctx context.Context, in CancelInput) error {
	unlock := s.locks.Lock(in.ListingID)
	defer unlock()

	l, err := s.activeListing(ctx, in.ListingID)
	if err != nil {
		return err
	}
	if !in.Admin {
		if in.ActorID != l.SellerID {
			return domain.ErrNotSeller
		}
		if l.HasBid() {
			return domain.ErrHasBids
		}
	}

	err = s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Listings.Transition(ctx, l.ID, l.Version, domain.ListingCancelled); err != nil {
			return err
		}
		_, err := s.mailbox.EnqueueItem(ctx, l.SellerID, l.ID, l.Item.Blob, domain.ReasonCancelled)
		return err
	})
	if err != nil {
		return s.failure("cancel", l.ID, err)
	}

	applog.Audit(nil, "listing.cancelled", map[string]any{
		"listing_id": l.ID, "seller_id": l.SellerID, "actor_id": in.ActorID, "admin": in.Admin,
	})
	s.refundBidders(ctx, l)
	s.notifier.Notify(ctx, l.SellerID, EventListingCancelled, map[string]any{
		"listing_id": l.ID, "item": l.Item.DisplayName,
	})
	return nil
}

// commitSale runs the SOLD transition. pay returns the amount the buyer paid
// and runs inside the transaction.
func (s *SettlementService) commitSale(
	ctx context.Context,
	l domain.Listing,
	buyerID string,
	kind domain.TransactionKind,
	pay func(ctx context.Context) (decimal.Decimal, error),
) (domain.Transaction, error) {
	t := domain.Transaction{
		ID:        uuid.NewString(),
		ListingID: l.ID,
		SellerID:  l.SellerID,
		BuyerID:   buyerID,
		Material:  l.Item.Material,
		Kind:      kind,
		CreatedAt: s.clock.Now(),
	}
	itemReason := domain.ReasonPurchase
	if kind == domain.TransactionBidWin {
		itemReason = domain.ReasonAuctionWon
	}

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Listings.Transition(ctx, l.ID, l.Version, domain.ListingSold); err != nil {
			return err
		}
		amount, err := pay(ctx)
		if err != nil {
			return err
		}
		t.Amount = amount
		t.Tax = s.tax(l.SellerID, amount)

		if _, err := s.mailbox.EnqueueItem(ctx, buyerID, l.ID, l.Item.Blob, itemReason); err != nil {
			return err
		}
		if proceeds := amount.Sub(t.Tax); proceeds.IsPositive() {
			if _, err := s.mailbox.EnqueueMoney(ctx, l.SellerID, l.ID, proceeds, domain.ReasonSaleProceeds); err != nil {
				return err
			}
		}
		if err := s.repos.Transactions.Insert(ctx, t); err != nil {
			return err
		}
		return s.prices.RecordSale(ctx, l.Item.Material, amount)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	applog.Audit(nil, "listing.sold", map[string]any{
		"listing_id": l.ID, "seller_id": l.SellerID, "buyer_id": buyerID, "kind": kind,
		"amount": t.Amount.String(), "tax": t.Tax.String(),
	})
	return t, nil
}

func (s *SettlementService) tax(sellerID string, amount decimal.Decimal) decimal.Decimal {
	if s.permissions != nil && s.permissions.Has(sellerID, PermissionTaxExempt) {
		return decimal.Zero
	}
	return amount.Mul(s.settings.TaxRate).Round(2)
}

// refundBidders pays back every hold left on a listing that just left ACTIVE.
// Failures are left for the sweeper's orphan recovery.
func (s *SettlementService) refundBidders(ctx context.Context, l domain.Listing) {
	paid, err := s.escrow.RefundAll(ctx, l.ID)
	if err != nil {
		applog.Error(nil, "escrow.refund_failed", err, map[string]any{"listing_id": l.ID})
	}
	for _, h := range paid {
		s.notifier.Notify(ctx, h.BidderID, EventBidRefunded, map[string]any{
			"listing_id": l.ID, "item": l.Item.DisplayName, "amount": s.economy.Format(h.Amount),
		})
	}
}

func (s *SettlementService) activeListing(ctx context.Context, id string) (domain.Listing, error) {
	l, err := s.repos.Listings.Get(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if l.Status.Terminal() {
		return domain.Listing{}, fmt.Errorf("%w (%s)", domain.ErrAlreadySettled, l.Status)
	}
	return l, nil
}

// failure classifies an error from a settlement transaction. Conflicts and
// validation errors pass through; anything else is a persistence failure.
func (s *SettlementService) failure(op, listingID string, err error) error {
	if errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	if errors.Is(err, domain.ErrHoldNotFound) {
		err = fmt.Errorf("winning hold missing: %w", err)
	}
	applog.Error(nil, "settlement.failed", err, map[string]any{"listing_id": listingID, "op": op})
	return domain.PersistenceFailure(op, listingID, err)
}
