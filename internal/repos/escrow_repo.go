package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

type EscrowRepo struct{ db *sqlx.DB }

func NewEscrowRepo(db *sqlx.DB) *EscrowRepo { return &EscrowRepo{db: db} }

type holdRow struct {
	ListingID string          `db:"listing_id"`
	BidderID  string          `db:"bidder_id"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt int64           `db:"created_at"`
}

func (r holdRow) toDomain() domain.EscrowHold {
	return domain.EscrowHold{
		ListingID: r.ListingID,
		BidderID:  r.BidderID,
		Amount:    r.Amount,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

func toHolds(rows []holdRow) []domain.EscrowHold {
	out := make([]domain.EscrowHold, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// Insert creates a hold. A second hold for the same (listing, bidder) is a
// conflict.
func (r *EscrowRepo) Insert(ctx context.Context, h domain.EscrowHold) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO escrow_holds(listing_id, bidder_id, amount, created_at)
	  VALUES(?, ?, ?, ?)
	`, h.ListingID, h.BidderID, h.Amount, millis(h.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: hold already exists for %s on %s", domain.ErrConcurrencyConflict, h.BidderID, h.ListingID)
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

func (r *EscrowRepo) Get(ctx context.Context, listingID, bidderID string) (domain.EscrowHold, error) {
	var row holdRow
	err := conn(ctx, r.db).GetContext(ctx, &row, `
	  SELECT listing_id, bidder_id, amount, created_at
	  FROM escrow_holds
	  WHERE listing_id = ? AND bidder_id = ?
	`, listingID, bidderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EscrowHold{}, domain.ErrHoldNotFound
		}
		return domain.EscrowHold{}, fmt.Errorf("get hold: %w", err)
	}
	return row.toDomain(), nil
}

// Delete removes a hold and returns what it held. Only one of several
// concurrent callers gets the row; the rest see ErrHoldNotFound.
func (r *EscrowRepo) Delete(ctx context.Context, listingID, bidderID string) (domain.EscrowHold, error) {
	var row holdRow
	err := conn(ctx, r.db).GetContext(ctx, &row, `
	  DELETE FROM escrow_holds
	  WHERE listing_id = ? AND bidder_id = ?
	  RETURNING listing_id, bidder_id, amount, created_at
	`, listingID, bidderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EscrowHold{}, domain.ErrHoldNotFound
		}
		return domain.EscrowHold{}, fmt.Errorf("delete hold: %w", err)
	}
	return row.toDomain(), nil
}

func (r *EscrowRepo) ListByListing(ctx context.Context, listingID string) ([]domain.EscrowHold, error) {
	var rows []holdRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT listing_id, bidder_id, amount, created_at
	  FROM escrow_holds
	  WHERE listing_id = ?
	  ORDER BY created_at
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	return toHolds(rows), nil
}

// ListOrphaned returns holds nobody will settle any more: holds on listings
// that left ACTIVE, and holds of bidders who were outbid.
func (r *EscrowRepo) ListOrphaned(ctx context.Context, limit int) ([]domain.EscrowHold, error) {
	var rows []holdRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT e.listing_id, e.bidder_id, e.amount, e.created_at
	  FROM escrow_holds e
	  JOIN listings l ON l.id = e.listing_id
	  WHERE l.status <> 'ACTIVE' OR e.bidder_id <> l.current_bidder_id
	  ORDER BY e.created_at
	  LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orphaned holds: %w", err)
	}
	return toHolds(rows), nil
}
