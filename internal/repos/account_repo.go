package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

// AccountRepo stores player balances for the bundled economy.
type AccountRepo struct{ db *sqlx.DB }

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// WithTx runs fn in a transaction on the accounts database.
func (r *AccountRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

// Ensure creates the account with the given opening balance if it is missing.
func (r *AccountRepo) Ensure(ctx context.Context, playerID string, opening decimal.Decimal, now time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO accounts(player_id, balance, updated_at)
	  VALUES(?, ?, ?)
	  ON CONFLICT(player_id) DO NOTHING
	`, playerID, opening, millis(now))
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}

// Balance returns the current balance, or ErrAccountNotFound.
func (r *AccountRepo) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := conn(ctx, r.db).GetContext(ctx, &bal, `SELECT balance FROM accounts WHERE player_id = ?`, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// CompareAndSet replaces the balance only if it still equals old.
func (r *AccountRepo) CompareAndSet(ctx context.Context, playerID string, old, next decimal.Decimal, now time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
	  UPDATE accounts
	  SET balance = ?, updated_at = ?
	  WHERE player_id = ? AND balance = ?
	`, next, millis(now), playerID, old)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: balance of %s changed concurrently", domain.ErrConcurrencyConflict, playerID)
	}
	return nil
}
