package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
)

// ErrSweepInProgress is returned by RunPass when another pass is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

const pruneEvery = 24 * time.Hour

// SweepReport counts what one pass did.
type SweepReport struct {
	Extended        int
	Sold            int
	Expired         int
	Skipped         int
	Failed          int
	OrphansRefunded int
}

// ExpirySweeper periodically extends or settles listings that reached their
// expiry.
type ExpirySweeper struct {
	listings   ListingRepository
	holds      EscrowRepository
	escrow     *EscrowLedger
	settlement *SettlementService
	prices     *PriceHistoryAggregator
	economy    Economy
	notifier   Notifier
	locks      *ListingLocks
	clock      clock.Clock
	settings   Settings

	running   atomic.Bool
	lastPrune time.Time
}

func NewExpirySweeper(
	repos Repositories,
	escrow *EscrowLedger,
	settlement *SettlementService,
	prices *PriceHistoryAggregator,
	economy Economy,
	notifier Notifier,
	locks *ListingLocks,
	clk clock.Clock,
	settings Settings,
) *ExpirySweeper {
	return &ExpirySweeper{
		listings:   repos.Listings,
		holds:      repos.Escrow,
		escrow:     escrow,
		settlement: settlement,
		prices:     prices,
		economy:    economy,
		notifier:   notifier,
		locks:      locks,
		clock:      clk,
		settings:   settings,
	}
}

// Run sweeps every SweepInterval until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	applog.Info(nil, "sweeper.start", map[string]any{"interval": s.settings.SweepInterval.String()})
	t := time.NewTicker(s.settings.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			applog.Info(nil, "sweeper.stop", nil)
			return nil
		case <-t.C:
			report, err := s.RunPass(ctx)
			if err != nil && !errors.Is(err, ErrSweepInProgress) && !errors.Is(err, context.Canceled) {
				applog.Error(nil, "sweeper.pass_failed", err, nil)
			}
			if report.Extended+report.Sold+report.Expired+report.Failed+report.OrphansRefunded > 0 {
				applog.Info(nil, "sweeper.pass", map[string]any{
					"extended": report.Extended, "sold": report.Sold, "expired": report.Expired,
					"skipped": report.Skipped, "failed": report.Failed, "orphans": report.OrphansRefunded,
				})
			}
		}
	}
}

// RunPass handles every listing due at the current time. Passes never
// overlap. Cancellation is honoured between listings.
func (s *ExpirySweeper) RunPass(ctx context.Context) (SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepReport{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	var report SweepReport
	now := s.clock.Now()
	ids, err := s.listings.ListDue(ctx, now, s.settings.SweepBatch)
	if err != nil {
		return report, fmt.Errorf("list due listings: %w: %w", domain.ErrPersistence, err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.sweepListing(ctx, id, &report)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	s.recoverOrphans(ctx, &report)
	s.prune(ctx, now)
	return report, nil
}

func (s *ExpirySweeper) sweepListing(ctx context.Context, id string, report *SweepReport) {
	unlock := s.locks.Lock(id)
	defer unlock()

	l, err := s.listings.Get(ctx, id)
	if err != nil {
		report.Failed++
		applog.Error(nil, "sweeper.load_failed", err, map[string]any{"listing_id": id})
		return
	}
	// Settled, or extended, since the scan.
	if l.Status != domain.ListingActive || s.clock.Now().Before(l.ExpiresAt) {
		report.Skipped++
		return
	}

	if s.shouldExtend(l) {
		if err := s.extend(ctx, l); err != nil {
			s.record(report, l.ID, "extend", err)
			return
		}
		report.Extended++
		return
	}

	if l.HasBid() {
		_, err = s.settlement.completeBidWin(ctx, l)
		if err == nil {
			report.Sold++
		}
	} else {
		err = s.settlement.expire(ctx, l)
		if err == nil {
			report.Expired++
		}
	}
	if err != nil {
		s.record(report, l.ID, "settle", err)
	}
}

func (s *ExpirySweeper) record(report *SweepReport, listingID, op string, err error) {
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		report.Skipped++
		applog.Debug(nil, "sweeper.already_handled", map[string]any{"listing_id": listingID, "op": op})
		return
	}
	report.Failed++
	applog.Error(nil, "sweeper."+op+"_failed", err, map[string]any{"listing_id": listingID})
}

// shouldExtend reports whether the last bid landed inside the anti-snipe
// window and extensions remain.
func (s *ExpirySweeper) shouldExtend(l domain.Listing) bool {
	as := s.settings.AntiSnipe
	if !as.Enabled || !l.HasBid() || as.Extension <= 0 {
		return false
	}
	return l.ExpiresAt.Sub(l.LastBidAt) <= as.TriggerWindow && l.ExtensionsUsed < as.MaxExtensions
}

func (s *ExpirySweeper) extend(ctx context.Context, l domain.Listing) error {
	expiresAt := l.ExpiresAt.Add(s.settings.AntiSnipe.Extension)
	if err := s.listings.Extend(ctx, l.ID, l.Version, expiresAt); err != nil {
		return err
	}
	applog.Audit(nil, "listing.extended", map[string]any{
		"listing_id": l.ID, "expires_at": expiresAt, "extensions_used": l.ExtensionsUsed + 1,
	})
	params := map[string]any{
		"listing_id": l.ID,
		"item":       l.Item.DisplayName,
		"seconds":    int(s.settings.AntiSnipe.Extension.Seconds()),
		"expires_at": expiresAt,
	}
	s.notifier.Notify(ctx, l.SellerID, EventListingExtended, params)
	s.notifier.Notify(ctx, l.CurrentBidderID, EventListingExtended, params)
	return nil
}

// recoverOrphans refunds holds that no settlement will ever touch again:
// holds left on settled listings and holds of outbid bidders whose refund did
// not complete.
func (s *ExpirySweeper) recoverOrphans(ctx context.Context, report *SweepReport) {
	holds, err := s.holds.ListOrphaned(ctx, s.settings.SweepBatch)
	if err != nil {
		applog.Error(nil, "sweeper.orphans_failed", err, nil)
		return
	}
	for _, h := range holds {
		if ctx.Err() != nil {
			return
		}
		s.recoverOrphan(ctx, h, report)
	}
}

func (s *ExpirySweeper) recoverOrphan(ctx context.Context, h domain.EscrowHold, report *SweepReport) {
	unlock := s.locks.Lock(h.ListingID)
	defer unlock()

	l, err := s.listings.Get(ctx, h.ListingID)
	if err != nil {
		applog.Error(nil, "sweeper.orphan_load_failed", err, map[string]any{"listing_id": h.ListingID})
		return
	}
	// The bidder took the lead again after the scan.
	if l.Status == domain.ListingActive && l.CurrentBidderID == h.BidderID {
		return
	}
	amount, err := s.escrow.Refund(ctx, h.ListingID, h.BidderID)
	if err != nil {
		applog.Error(nil, "sweeper.orphan_refund_failed", err, map[string]any{"listing_id": h.ListingID, "bidder_id": h.BidderID})
		return
	}
	if amount.IsZero() {
		return
	}
	report.OrphansRefunded++
	applog.Audit(nil, "escrow.orphan_refunded", map[string]any{
		"listing_id": h.ListingID, "bidder_id": h.BidderID, "amount": amount.String(),
	})
	s.notifier.Notify(ctx, h.BidderID, EventBidRefunded, map[string]any{
		"listing_id": h.ListingID, "item": l.Item.DisplayName, "amount": s.economy.Format(amount),
	})
}

func (s *ExpirySweeper) prune(ctx context.Context, now time.Time) {
	if s.prices == nil || (!s.lastPrune.IsZero() && now.Sub(s.lastPrune) < pruneEvery) {
		return
	}
	s.lastPrune = now
	n, err := s.prices.Prune(ctx)
	if err != nil {
		applog.Error(nil, "sweeper.prune_failed", err, nil)
		return
	}
	if n > 0 {
		applog.Info(nil, "price_history.pruned", map[string]any{"rows": n})
	}
}
