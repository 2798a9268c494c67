package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"auctionhouse/internal/domain"
)

func TestEscrow_RefundMissingHoldIsNoop(t *testing.T) {
	h := newHarness(t)
	amount, err := h.ah.Escrow.Refund(context.Background(), "nope", "alice")
	require.NoError(t, err)
	require.True(t, amount.IsZero())
}

func TestEscrow_ConsumeDoesNotRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.list(t, "10", "")
	require.NoError(t, h.ah.Escrow.Hold(ctx, l.ID, "alice", d("30")))

	err := h.ah.Escrow.Hold(ctx, l.ID, "alice", d("30"))
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	amount, err := h.ah.Escrow.Consume(ctx, l.ID, "alice")
	require.NoError(t, err)
	requireDecimal(t, "30", amount)
	require.True(t, h.balance(t, "alice").IsZero())

	_, err = h.ah.Escrow.Consume(ctx, l.ID, "alice")
	require.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestEscrow_RefundFallsBackToMailbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.list(t, "10", "")
	require.NoError(t, h.ah.Escrow.Hold(ctx, l.ID, "alice", d("30")))
	h.economy.RefuseDeposits("alice", true)

	amount, err := h.ah.Escrow.Refund(ctx, l.ID, "alice")
	require.NoError(t, err)
	requireDecimal(t, "30", amount)
	require.Empty(t, h.holds(t, l.ID))

	box := h.mailbox(t, "alice")
	require.Len(t, box, 1)
	require.Equal(t, domain.CollectionMoney, box[0].Kind)
	requireDecimal(t, "30", box[0].Amount)
	require.Equal(t, domain.ReasonRefund, box[0].Reason)
}

func TestEscrow_ConcurrentRefundsPayOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.list(t, "10", "")
	require.NoError(t, h.ah.Escrow.Hold(ctx, l.ID, "alice", d("30")))
	require.NoError(t, h.ah.Escrow.Hold(ctx, l.ID, "bob", d("40")))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.ah.Escrow.RefundAll(ctx, l.ID)
		}()
	}
	wg.Wait()

	requireDecimal(t, "30", h.balance(t, "alice"))
	requireDecimal(t, "40", h.balance(t, "bob"))
	require.Empty(t, h.holds(t, l.ID))
}
