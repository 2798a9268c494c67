package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

// ErrDepositRefused is returned by Memory while deposits are switched off.
var ErrDepositRefused = errors.New("deposit refused")

// Memory is a process-local economy. Deposits and withdrawals can be refused
// on demand, which is how tests exercise the engine's recovery paths.
type Memory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal

	refuseDeposits    map[string]bool
	refuseWithdrawals map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		balances:          make(map[string]decimal.Decimal),
		refuseDeposits:    make(map[string]bool),
		refuseWithdrawals: make(map[string]bool),
	}
}

// Set overwrites a balance.
func (m *Memory) Set(playerID string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[strings.Clone(playerID)] = amount
}

// RefuseDeposits makes every later deposit to playerID fail until re-enabled.
func (m *Memory) RefuseDeposits(playerID string, refuse bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refuseDeposits[strings.Clone(playerID)] = refuse
}

func (m *Memory) RefuseWithdrawals(playerID string, refuse bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refuseWithdrawals[strings.Clone(playerID)] = refuse
}

// Total sums every balance.
func (m *Memory) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, b := range m.balances {
		sum = sum.Add(b)
	}
	return sum
}

func (m *Memory) Balance(_ context.Context, playerID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[playerID], nil
}

func (m *Memory) Has(_ context.Context, playerID string, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[playerID].GreaterThanOrEqual(amount), nil
}

func (m *Memory) Withdraw(_ context.Context, playerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuseWithdrawals[playerID] {
		return domain.ErrWithdrawRefused
	}
	bal := m.balances[playerID]
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", domain.ErrInsufficientFunds, playerID, Format(bal), Format(amount))
	}
	m.balances[strings.Clone(playerID)] = bal.Sub(amount)
	return nil
}

func (m *Memory) Deposit(_ context.Context, playerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuseDeposits[playerID] {
		return fmt.Errorf("%w: %s", ErrDepositRefused, playerID)
	}
	m.balances[strings.Clone(playerID)] = m.balances[playerID].Add(amount)
	return nil
}

func (m *Memory) Format(amount decimal.Decimal) string { return Format(amount) }
