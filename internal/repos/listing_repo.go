package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

type ListingRepo struct{ db *sqlx.DB }

func NewListingRepo(db *sqlx.DB) *ListingRepo { return &ListingRepo{db: db} }

type listingRow struct {
	ID                string              `db:"id"`
	SellerID          string              `db:"seller_id"`
	SellerName        string              `db:"seller_name"`
	ItemBlob          []byte              `db:"item_blob"`
	Material          string              `db:"material"`
	DisplayName       string              `db:"display_name"`
	Category          string              `db:"category"`
	StartPrice        decimal.Decimal     `db:"start_price"`
	BuyoutPrice       decimal.NullDecimal `db:"buyout_price"`
	CurrentBid        decimal.Decimal     `db:"current_bid"`
	CurrentBidderID   string              `db:"current_bidder_id"`
	CurrentBidderName string              `db:"current_bidder_name"`
	BidCount          int                 `db:"bid_count"`
	LastBidAt         int64               `db:"last_bid_at"`
	ExtensionsUsed    int                 `db:"extensions_used"`
	ListedAt          int64               `db:"listed_at"`
	ExpiresAt         int64               `db:"expires_at"`
	Status            string              `db:"status"`
	ListingFee        decimal.Decimal     `db:"listing_fee"`
	Version           int64               `db:"version"`
}

func (r listingRow) toDomain() domain.Listing {
	return domain.Listing{
		ID:         r.ID,
		SellerID:   r.SellerID,
		SellerName: r.SellerName,
		Item: domain.Item{
			Blob:        r.ItemBlob,
			Material:    r.Material,
			DisplayName: r.DisplayName,
			Category:    r.Category,
		},
		StartPrice:        r.StartPrice,
		BuyoutPrice:       r.BuyoutPrice,
		CurrentBid:        r.CurrentBid,
		CurrentBidderID:   r.CurrentBidderID,
		CurrentBidderName: r.CurrentBidderName,
		BidCount:          r.BidCount,
		LastBidAt:         fromMillis(r.LastBidAt),
		ExtensionsUsed:    r.ExtensionsUsed,
		ListedAt:          fromMillis(r.ListedAt),
		ExpiresAt:         fromMillis(r.ExpiresAt),
		Status:            domain.ListingStatus(r.Status),
		ListingFee:        r.ListingFee,
		Version:           r.Version,
	}
}

func toListings(rows []listingRow) []domain.Listing {
	out := make([]domain.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

const listingColumns = `
    id, seller_id, seller_name, item_blob, material, display_name, category,
    start_price, buyout_price, current_bid, current_bidder_id, current_bidder_name,
    bid_count, last_bid_at, extensions_used, listed_at, expires_at, status, listing_fee, version`

// Sort keys accepted by the list queries. Unknown keys fall back to SortNewest.
const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortEndingSoon = "ending_soon"
)

const effectivePrice = `CAST(CASE WHEN bid_count > 0 THEN current_bid ELSE start_price END AS REAL)`

func orderBy(sort string) string {
	switch sort {
	case SortOldest:
		return `listed_at ASC, id`
	case SortPriceAsc:
		return effectivePrice + ` ASC, listed_at DESC`
	case SortPriceDesc:
		return effectivePrice + ` DESC, listed_at DESC`
	case SortEndingSoon:
		return `expires_at ASC, id`
	default:
		return `listed_at DESC, id`
	}
}

// Insert stores a new listing.
func (r *ListingRepo) Insert(ctx context.Context, l domain.Listing) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO listings
	    (id, seller_id, seller_name, item_blob, material, display_name, category,
	     start_price, buyout_price, current_bid, listed_at, expires_at, status, listing_fee, version)
	  VALUES
	    (?,  ?,         ?,           ?,         ?,        ?,            ?,
	     ?,           ?,            ?,           ?,         ?,          ?,      ?,           0)
	`, l.ID, l.SellerID, l.SellerName, l.Item.Blob, l.Item.Material, l.Item.DisplayName, l.Item.Category,
		l.StartPrice, l.BuyoutPrice, l.CurrentBid, millis(l.ListedAt), millis(l.ExpiresAt), string(l.Status), l.ListingFee)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) Get(ctx context.Context, id string) (domain.Listing, error) {
	var row listingRow
	err := conn(ctx, r.db).GetContext(ctx, &row, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return row.toDomain(), nil
}

// ListActive returns ACTIVE listings, optionally restricted to one category.
func (r *ListingRepo) ListActive(ctx context.Context, category, sort string, limit, offset int) ([]domain.Listing, error) {
	where := `status = 'ACTIVE'`
	args := []any{}
	if category != "" {
		where += ` AND LOWER(category) = LOWER(?)`
		args = append(args, category)
	}
	args = append(args, limit, offset)

	var rows []listingRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT `+listingColumns+`
	  FROM listings
	  WHERE `+where+`
	  ORDER BY `+orderBy(sort)+`
	  LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	return toListings(rows), nil
}

// Search matches ACTIVE listings whose display name or material contains text.
func (r *ListingRepo) Search(ctx context.Context, text, sort string, limit, offset int) ([]domain.Listing, error) {
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	var rows []listingRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT `+listingColumns+`
	  FROM listings
	  WHERE status = 'ACTIVE'
	    AND (LOWER(display_name) LIKE ? ESCAPE '\' OR LOWER(material) LIKE ? ESCAPE '\')
	  ORDER BY `+orderBy(sort)+`
	  LIMIT ? OFFSET ?`, pattern, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	return toListings(rows), nil
}

// ListBySeller returns every listing of a seller regardless of status.
func (r *ListingRepo) ListBySeller(ctx context.Context, sellerID, sort string, limit, offset int) ([]domain.Listing, error) {
	var rows []listingRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT `+listingColumns+`
	  FROM listings
	  WHERE seller_id = ?
	  ORDER BY `+orderBy(sort)+`
	  LIMIT ? OFFSET ?`, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list seller listings: %w", err)
	}
	return toListings(rows), nil
}

func (r *ListingRepo) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM listings WHERE seller_id = ? AND status = 'ACTIVE'`, sellerID)
	if err != nil {
		return 0, fmt.Errorf("count seller listings: %w", err)
	}
	return n, nil
}

// ListDue returns ids of ACTIVE listings whose expiry is at or before now,
// soonest first.
func (r *ListingRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := conn(ctx, r.db).SelectContext(ctx, &ids, `
	  SELECT id FROM listings
	  WHERE status = 'ACTIVE' AND expires_at <= ?
	  ORDER BY expires_at ASC
	  LIMIT ?`, millis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list due listings: %w", err)
	}
	return ids, nil
}

// UpdateBid records a new top bid if the listing is still ACTIVE at the
// expected version.
func (r *ListingRepo) UpdateBid(ctx context.Context, id string, expectedVersion int64, bid domain.Bid) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
	  UPDATE listings
	  SET current_bid = ?, current_bidder_id = ?, current_bidder_name = ?,
	      bid_count = bid_count + 1, last_bid_at = ?, version = version + 1
	  WHERE id = ? AND status = 'ACTIVE' AND version = ?
	`, bid.Amount, bid.BidderID, bid.BidderName, millis(bid.BidAt), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update bid: %w", err)
	}
	return r.checkCAS(ctx, res, id)
}

// Extend pushes the expiry out and counts the extension.
func (r *ListingRepo) Extend(ctx context.Context, id string, expectedVersion int64, expiresAt time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
	  UPDATE listings
	  SET expires_at = ?, extensions_used = extensions_used + 1, version = version + 1
	  WHERE id = ? AND status = 'ACTIVE' AND version = ?
	`, millis(expiresAt), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("extend listing: %w", err)
	}
	return r.checkCAS(ctx, res, id)
}

// Transition moves an ACTIVE listing at the expected version to a terminal
// status.
func (r *ListingRepo) Transition(ctx context.Context, id string, expectedVersion int64, to domain.ListingStatus) error {
	if !to.Terminal() {
		return fmt.Errorf("transition listing %s: %q is not terminal", id, to)
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, `
	  UPDATE listings
	  SET status = ?, version = version + 1
	  WHERE id = ? AND status = 'ACTIVE' AND version = ?
	`, string(to), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("transition listing: %w", err)
	}
	return r.checkCAS(ctx, res, id)
}

// checkCAS turns a zero-row conditional update into the matching conflict.
func (r *ListingRepo) checkCAS(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var status string
	if err := conn(ctx, r.db).GetContext(ctx, &status, `SELECT status FROM listings WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrListingNotFound
		}
		return fmt.Errorf("reload listing status: %w", err)
	}
	if domain.ListingStatus(status).Terminal() {
		return domain.ErrAlreadySettled
	}
	return domain.ErrListingChanged
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
