package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

type TransactionRepo struct{ db *sqlx.DB }

func NewTransactionRepo(db *sqlx.DB) *TransactionRepo { return &TransactionRepo{db: db} }

type transactionRow struct {
	ID        string          `db:"id"`
	ListingID string          `db:"listing_id"`
	SellerID  string          `db:"seller_id"`
	BuyerID   string          `db:"buyer_id"`
	Material  string          `db:"material"`
	Amount    decimal.Decimal `db:"amount"`
	Tax       decimal.Decimal `db:"tax"`
	Kind      string          `db:"kind"`
	CreatedAt int64           `db:"created_at"`
}

// Insert records a sale. A listing can only be sold once.
func (r *TransactionRepo) Insert(ctx context.Context, t domain.Transaction) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO transactions(id, listing_id, seller_id, buyer_id, material, amount, tax, kind, created_at)
	  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ListingID, t.SellerID, t.BuyerID, t.Material, t.Amount, t.Tax, string(t.Kind), millis(t.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadySettled
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByPlayer returns sales where the player bought or sold, newest first.
func (r *TransactionRepo) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]domain.Transaction, error) {
	var rows []transactionRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows, `
	  SELECT id, listing_id, seller_id, buyer_id, material, amount, tax, kind, created_at
	  FROM transactions
	  WHERE seller_id = ? OR buyer_id = ?
	  ORDER BY created_at DESC, rowid DESC
	  LIMIT ? OFFSET ?
	`, playerID, playerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Transaction{
			ID:        r.ID,
			ListingID: r.ListingID,
			SellerID:  r.SellerID,
			BuyerID:   r.BuyerID,
			Material:  r.Material,
			Amount:    r.Amount,
			Tax:       r.Tax,
			Kind:      domain.TransactionKind(r.Kind),
			CreatedAt: fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}
