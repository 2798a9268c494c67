package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"auctionhouse/internal/domain"
)

// One listing from creation to collection: two bidders, no buyout, settled by
// the sweeper at expiry.
func TestScenario_AuctionToCollection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund("seller", "1000")
	h.fund("A", "1000")
	h.fund("B", "1000")

	l := h.list(t, "100", "500")
	requireDecimal(t, "998", h.balance(t, "seller"))

	_, err := h.bid("A", l.ID, "100")
	require.NoError(t, err)
	requireDecimal(t, "100", h.listing(t, l.ID).CurrentBid)
	holds := h.holds(t, l.ID)
	require.Len(t, holds, 1)
	require.Equal(t, "A", holds[0].BidderID)
	requireDecimal(t, "100", holds[0].Amount)

	_, err = h.bid("B", l.ID, "150")
	require.NoError(t, err)
	requireDecimal(t, "1000", h.balance(t, "A"))
	holds = h.holds(t, l.ID)
	require.Len(t, holds, 1)
	require.Equal(t, "B", holds[0].BidderID)
	requireDecimal(t, "150", holds[0].Amount)
	requireDecimal(t, "150", h.listing(t, l.ID).CurrentBid)

	h.clock.Set(l.ExpiresAt)
	report, err := h.ah.Sweeper.RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Sold)

	got := h.listing(t, l.ID)
	require.Equal(t, domain.ListingSold, got.Status)
	require.Empty(t, h.holds(t, l.ID))
	requireDecimal(t, "850", h.balance(t, "B"))

	// 150 x (1 - 0.05)
	sellerBox := h.mailbox(t, "seller")
	require.Len(t, sellerBox, 1)
	requireDecimal(t, "142.5", sellerBox[0].Amount)

	_, err = h.ah.ClaimCollectionEntry(ctx, "seller", sellerBox[0].ID)
	require.NoError(t, err)
	requireDecimal(t, "1140.5", h.balance(t, "seller"))

	bBox := h.mailbox(t, "B")
	require.Len(t, bBox, 1)
	require.Equal(t, domain.ReasonAuctionWon, bBox[0].Reason)
	claimed, err := h.ah.ClaimAll(ctx, "B")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Len(t, h.items.items, 1)
	require.Equal(t, "B", h.items.items[0].Player)

	history, err := h.ah.TransactionHistory(ctx, "B", 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.TransactionBidWin, history[0].Kind)
	requireDecimal(t, "7.5", history[0].Tax)

	var points []domain.PriceHistoryPoint
	for p, err := range h.ah.PriceHistory(ctx, "DIAMOND_SWORD", 7) {
		require.NoError(t, err)
		points = append(points, p)
	}
	require.Len(t, points, 1)
	requireDecimal(t, "150", points[0].AvgPrice)
}
