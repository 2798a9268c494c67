package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	"auctionhouse/internal/repos"
)

// Ledger keeps balances in the accounts table. Accounts are opened lazily with
// the configured starting balance.
type Ledger struct {
	accounts *repos.AccountRepo
	clock    clock.Clock
	opening  decimal.Decimal
}

func NewLedger(accounts *repos.AccountRepo, clk clock.Clock, opening decimal.Decimal) *Ledger {
	return &Ledger{accounts: accounts, clock: clk, opening: opening}
}

func (l *Ledger) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	if err := l.accounts.Ensure(ctx, playerID, l.opening, l.clock.Now()); err != nil {
		return decimal.Zero, err
	}
	return l.accounts.Balance(ctx, playerID)
}

func (l *Ledger) Has(ctx context.Context, playerID string, amount decimal.Decimal) (bool, error) {
	bal, err := l.Balance(ctx, playerID)
	if err != nil {
		return false, err
	}
	return bal.GreaterThanOrEqual(amount), nil
}

// Withdraw debits amount, failing with ErrInsufficientFunds when the balance
// does not cover it.
func (l *Ledger) Withdraw(ctx context.Context, playerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	return l.accounts.WithTx(ctx, func(ctx context.Context) error {
		bal, err := l.Balance(ctx, playerID)
		if err != nil {
			return err
		}
		if bal.LessThan(amount) {
			return fmt.Errorf("%w: %s has %s, needs %s", domain.ErrInsufficientFunds, playerID, Format(bal), Format(amount))
		}
		return l.accounts.CompareAndSet(ctx, playerID, bal, bal.Sub(amount), l.clock.Now())
	})
}

func (l *Ledger) Deposit(ctx context.Context, playerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	return l.accounts.WithTx(ctx, func(ctx context.Context) error {
		bal, err := l.Balance(ctx, playerID)
		if err != nil {
			return err
		}
		err = l.accounts.CompareAndSet(ctx, playerID, bal, bal.Add(amount), l.clock.Now())
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return fmt.Errorf("deposit to %s: %w", playerID, err)
		}
		return err
	})
}

func (l *Ledger) Format(amount decimal.Decimal) string { return Format(amount) }
