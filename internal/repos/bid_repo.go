package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

type BidRepo struct{ db *sqlx.DB }

func NewBidRepo(db *sqlx.DB) *BidRepo { return &BidRepo{db: db} }

type bidRow struct {
	ID         string          `db:"id"`
	ListingID  string          `db:"listing_id"`
	BidderID   string          `db:"bidder_id"`
	BidderName string          `db:"bidder_name"`
	Amount     decimal.Decimal `db:"amount"`
	BidAt      int64           `db:"bid_at"`
}

// Insert appends a bid to the audit trail.
func (r *BidRepo) Insert(ctx context.Context, b domain.Bid) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO bids(id, listing_id, bidder_id, bidder_name, amount, bid_at)
	  VALUES(?, ?, ?, ?, ?, ?)
	`, b.ID, b.ListingID, b.BidderID, b.BidderName, b.Amount, millis(b.BidAt))
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

// ListByListing returns the bids of a listing, newest first.
func (r *BidRepo) ListByListing(ctx context.Context, listingID string) ([]domain.Bid, error) {
	var rows []bidRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT id, listing_id, bidder_id, bidder_name, amount, bid_at
	  FROM bids
	  WHERE listing_id = ?
	  ORDER BY bid_at DESC, rowid DESC
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	out := make([]domain.Bid, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Bid{
			ID:         r.ID,
			ListingID:  r.ListingID,
			BidderID:   r.BidderID,
			BidderName: r.BidderName,
			Amount:     r.Amount,
			BidAt:      fromMillis(r.BidAt),
		})
	}
	return out, nil
}
