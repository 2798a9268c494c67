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

type PlaceBidInput struct {
	ListingID  string
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
}

// BidEngine validates and applies bids.
type BidEngine struct {
	repos    Repositories
	escrow   *EscrowLedger
	economy  Economy
	notifier Notifier
	locks    *ListingLocks
	clock    clock.Clock
	settings Settings
}

func NewBidEngine(repos Repositories, escrow *EscrowLedger, economy Economy, notifier Notifier, locks *ListingLocks, clk clock.Clock, settings Settings) *BidEngine {
	return &BidEngine{repos: repos, escrow: escrow, economy: economy, notifier: notifier, locks: locks, clock: clk, settings: settings}
}

// PlaceBid moves the bid amount into escrow and makes it the listing's top
// bid. The previous top bidder is refunded once the new bid is committed.
func (b *BidEngine) PlaceBid(ctx context.Context, in PlaceBidInput) (domain.Bid, error) {
	if !in.Amount.IsPositive() {
		return domain.Bid{}, domain.ErrInvalidAmount
	}

	unlock := b.locks.Lock(in.ListingID)
	defer unlock()

	l, err := b.repos.Listings.Get(ctx, in.ListingID)
	if err != nil {
		return domain.Bid{}, err
	}
	if err := b.check(l, in); err != nil {
		return domain.Bid{}, err
	}

	if err := withdraw(ctx, b.economy, in.BidderID, in.Amount); err != nil {
		return domain.Bid{}, err
	}

	bid := domain.Bid{
		ID:         uuid.NewString(),
		ListingID:  l.ID,
		BidderID:   in.BidderID,
		BidderName: in.BidderName,
		Amount:     in.Amount,
		BidAt:      b.clock.Now(),
	}
	err = b.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := b.escrow.Hold(ctx, l.ID, in.BidderID, in.Amount); err != nil {
			return err
		}
		if err := b.repos.Bids.Insert(ctx, bid); err != nil {
			return err
		}
		return b.repos.Listings.UpdateBid(ctx, l.ID, l.Version, bid)
	})
	if err != nil {
		// Nothing was committed; only the withdrawal needs undoing.
		if cerr := b.escrow.credit(ctx, in.BidderID, l.ID, in.Amount, domain.ReasonRefund); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			applog.Warn(nil, "bid.conflict", err, map[string]any{"listing_id": l.ID, "bidder_id": in.BidderID})
			return domain.Bid{}, err
		}
		applog.Error(nil, "bid.persist_failed", err, map[string]any{"listing_id": l.ID, "bidder_id": in.BidderID, "amount": in.Amount.String()})
		return domain.Bid{}, domain.PersistenceFailure("place bid", l.ID, err)
	}

	applog.Audit(nil, "bid.placed", map[string]any{
		"listing_id": l.ID, "bid_id": bid.ID, "bidder_id": bid.BidderID, "amount": bid.Amount.String(),
	})

	if l.HasBid() {
		refunded, err := b.escrow.Refund(ctx, l.ID, l.CurrentBidderID)
		if err != nil {
			// The hold stays behind and the sweeper refunds it later.
			applog.Error(nil, "bid.outbid_refund_failed", err, map[string]any{"listing_id": l.ID, "bidder_id": l.CurrentBidderID})
		} else if refunded.IsPositive() {
			b.notifier.Notify(ctx, l.CurrentBidderID, EventOutbid, map[string]any{
				"listing_id": l.ID,
				"item":       l.Item.DisplayName,
				"amount":     b.economy.Format(bid.Amount),
				"refunded":   b.economy.Format(refunded),
				"bidder":     bid.BidderName,
			})
		}
	}
	b.notifier.Notify(ctx, l.SellerID, EventBidPlaced, map[string]any{
		"listing_id": l.ID,
		"item":       l.Item.DisplayName,
		"amount":     b.economy.Format(bid.Amount),
		"bidder":     bid.BidderName,
	})
	return bid, nil
}

func (b *BidEngine) check(l domain.Listing, in PlaceBidInput) error {
	if l.Status != domain.ListingActive {
		return domain.ErrListingNotActive
	}
	if !b.clock.Now().Before(l.ExpiresAt) {
		return domain.ErrListingEnded
	}
	if in.BidderID == l.SellerID {
		return domain.ErrOwnListing
	}
	if in.BidderID == l.CurrentBidderID {
		return domain.ErrAlreadyTopBidder
	}
	if minBid := l.MinimumBid(b.settings.BidIncrementPct); in.Amount.LessThan(minBid) {
		return fmt.Errorf("%w: minimum is %s", domain.ErrBidTooLow, b.economy.Format(minBid))
	}
	return nil
}
