package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
)

const (
	DefaultPageSize = 28
	MaxPageSize     = 100
)

// pageBounds turns a 1-based page and a page size into LIMIT/OFFSET.
func pageBounds(page, size int) (limit, offset int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	page = max(page, 1)
	return size, (page - 1) * size
}

type CreateListingInput struct {
	SellerID      string
	SellerName    string
	Item          domain.Item
	StartPrice    decimal.Decimal
	BuyoutPrice   decimal.NullDecimal
	DurationHours int
}

// ListingService creates listings and answers listing queries.
type ListingService struct {
	listings ListingRepository
	bids     BidRepository
	economy  Economy
	escrow   *EscrowLedger
	clock    clock.Clock
	settings Settings
}

func NewListingService(listings ListingRepository, bids BidRepository, economy Economy, escrow *EscrowLedger, clk clock.Clock, settings Settings) *ListingService {
	return &ListingService{listings: listings, bids: bids, economy: economy, escrow: escrow, clock: clk, settings: settings}
}

// Create charges the listing fee and stores the listing. A failed insert
// refunds the fee.
func (s *ListingService) Create(ctx context.Context, in CreateListingInput) (domain.Listing, error) {
	if err := s.validate(in); err != nil {
		return domain.Listing{}, err
	}
	if s.settings.MaxActiveListings > 0 {
		n, err := s.listings.CountActiveBySeller(ctx, in.SellerID)
		if err != nil {
			return domain.Listing{}, fmt.Errorf("count listings: %w: %w", domain.ErrPersistence, err)
		}
		if n >= s.settings.MaxActiveListings {
			return domain.Listing{}, fmt.Errorf("%w (%d)", domain.ErrTooManyListings, s.settings.MaxActiveListings)
		}
	}

	now := s.clock.Now()
	l := domain.Listing{
		ID:          uuid.NewString(),
		SellerID:    in.SellerID,
		SellerName:  in.SellerName,
		Item:        in.Item,
		StartPrice:  in.StartPrice,
		BuyoutPrice: in.BuyoutPrice,
		CurrentBid:  decimal.Zero,
		ListedAt:    now,
		ExpiresAt:   now.Add(time.Duration(in.DurationHours) * time.Hour),
		Status:      domain.ListingActive,
		ListingFee:  in.StartPrice.Mul(s.settings.ListingFeePct).Round(2),
	}

	if l.ListingFee.IsPositive() {
		if err := withdraw(ctx, s.economy, in.SellerID, l.ListingFee); err != nil {
			return domain.Listing{}, err
		}
	}

	if err := s.listings.Insert(ctx, l); err != nil {
		applog.Error(nil, "listing.create_failed", err, map[string]any{"listing_id": l.ID, "seller_id": l.SellerID})
		if cerr := s.escrow.credit(ctx, in.SellerID, l.ID, l.ListingFee, domain.ReasonFeeRefund); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return domain.Listing{}, domain.PersistenceFailure("create", l.ID, err)
	}

	applog.Audit(nil, "listing.created", map[string]any{
		"listing_id": l.ID, "seller_id": l.SellerID, "material": l.Item.Material,
		"start_price": l.StartPrice.String(), "fee": l.ListingFee.String(), "expires_at": l.ExpiresAt,
	})
	return l, nil
}

func (s *ListingService) validate(in CreateListingInput) error {
	if !in.StartPrice.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if in.BuyoutPrice.Valid && in.BuyoutPrice.Decimal.LessThan(in.StartPrice) {
		return domain.ErrInvalidBuyout
	}
	if strings.TrimSpace(in.Item.Material) == "" {
		return domain.ErrInvalidItem
	}
	d := time.Duration(in.DurationHours) * time.Hour
	if d < s.settings.MinDuration || d > s.settings.MaxDuration {
		return fmt.Errorf("%w: %dh not within %s..%s", domain.ErrInvalidDuration, in.DurationHours, s.settings.MinDuration, s.settings.MaxDuration)
	}
	return nil
}

func (s *ListingService) Get(ctx context.Context, id string) (domain.Listing, error) {
	return s.listings.Get(ctx, id)
}

func (s *ListingService) Active(ctx context.Context, category, sort string, page, size int) ([]domain.Listing, error) {
	limit, offset := pageBounds(page, size)
	return s.listings.ListActive(ctx, strings.TrimSpace(category), sort, limit, offset)
}

func (s *ListingService) Search(ctx context.Context, text, sort string, page, size int) ([]domain.Listing, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.Active(ctx, "", sort, page, size)
	}
	limit, offset := pageBounds(page, size)
	return s.listings.Search(ctx, text, sort, limit, offset)
}

func (s *ListingService) BySeller(ctx context.Context, sellerID, sort string, page, size int) ([]domain.Listing, error) {
	limit, offset := pageBounds(page, size)
	return s.listings.ListBySeller(ctx, sellerID, sort, limit, offset)
}

// Bids returns the bid trail of a listing, newest first.
func (s *ListingService) Bids(ctx context.Context, listingID string) ([]domain.Bid, error) {
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return nil, err
	}
	return s.bids.ListByListing(ctx, listingID)
}

// withdraw takes amount from playerID, reporting any refusal as a funds error.
func withdraw(ctx context.Context, economy Economy, playerID string, amount decimal.Decimal) error {
	ok, err := economy.Has(ctx, playerID, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWithdrawRefused, err)
	}
	if !ok {
		return fmt.Errorf("%w: needs %s", domain.ErrInsufficientFunds, economy.Format(amount))
	}
	if err := economy.Withdraw(ctx, playerID, amount); err != nil {
		if errors.Is(err, domain.ErrFunds) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrWithdrawRefused, err)
	}
	return nil
}
