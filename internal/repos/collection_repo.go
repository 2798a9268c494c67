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

type CollectionRepo struct{ db *sqlx.DB }

func NewCollectionRepo(db *sqlx.DB) *CollectionRepo { return &CollectionRepo{db: db} }

type collectionRow struct {
	ID        string          `db:"id"`
	OwnerID   string          `db:"owner_id"`
	Kind      string          `db:"kind"`
	ItemBlob  []byte          `db:"item_blob"`
	Amount    decimal.Decimal `db:"amount"`
	Reason    string          `db:"reason"`
	ListingID string          `db:"listing_id"`
	CreatedAt int64           `db:"created_at"`
}

func (r collectionRow) toDomain() domain.CollectionEntry {
	return domain.CollectionEntry{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Kind:      domain.CollectionKind(r.Kind),
		ItemBlob:  r.ItemBlob,
		Amount:    r.Amount,
		Reason:    r.Reason,
		ListingID: r.ListingID,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

func toEntries(rows []collectionRow) []domain.CollectionEntry {
	out := make([]domain.CollectionEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

const collectionColumns = `id, owner_id, kind, item_blob, amount, reason, listing_id, created_at`

func (r *CollectionRepo) Insert(ctx context.Context, e domain.CollectionEntry) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO collection_entries(`+collectionColumns+`)
	  VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.OwnerID, string(e.Kind), e.ItemBlob, e.Amount, e.Reason, e.ListingID, millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert collection entry: %w", err)
	}
	return nil
}

func (r *CollectionRepo) ListByOwner(ctx context.Context, ownerID string, newestFirst bool) ([]domain.CollectionEntry, error) {
	order := `created_at ASC, rowid ASC`
	if newestFirst {
		order = `created_at DESC, rowid DESC`
	}
	var rows []collectionRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT `+collectionColumns+`
	  FROM collection_entries
	  WHERE owner_id = ?
	  ORDER BY `+order, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	return toEntries(rows), nil
}

func (r *CollectionRepo) ListByListing(ctx context.Context, listingID string) ([]domain.CollectionEntry, error) {
	var rows []collectionRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT `+collectionColumns+`
	  FROM collection_entries
	  WHERE listing_id = ?
	  ORDER BY created_at ASC, rowid ASC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list collection by listing: %w", err)
	}
	return toEntries(rows), nil
}

func (r *CollectionRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM collection_entries WHERE owner_id = ?`, ownerID); err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	return n, nil
}

// Delete removes the owner's entry and returns it. A missing, foreign or
// already-claimed entry is ErrEntryNotFound.
func (r *CollectionRepo) Delete(ctx context.Context, id, ownerID string) (domain.CollectionEntry, error) {
	var row collectionRow
	err := conn(ctx, r.db).GetContext(ctx, &row, `
	  DELETE FROM collection_entries
	  WHERE id = ? AND owner_id = ?
	  RETURNING `+collectionColumns, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CollectionEntry{}, domain.ErrEntryNotFound
		}
		return domain.CollectionEntry{}, fmt.Errorf("delete collection entry: %w", err)
	}
	return row.toDomain(), nil
}
