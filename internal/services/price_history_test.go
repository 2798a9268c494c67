package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auctionhouse/internal/domain"
)

func collect(t *testing.T, h *harness, material string, days int) []domain.PriceHistoryPoint {
	t.Helper()
	var out []domain.PriceHistoryPoint
	for p, err := range h.ah.PriceHistory(context.Background(), material, days) {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestPriceHistory_IncrementalStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, p := range []string{"10", "20", "30"} {
		require.NoError(t, h.ah.Prices.RecordSale(ctx, "EMERALD", d(p)))
	}

	points := collect(t, h, "EMERALD", 1)
	require.Len(t, points, 1)
	p := points[0]
	require.Equal(t, "2026-03-14", p.DateBucket)
	require.Equal(t, 3, p.SaleCount)
	requireDecimal(t, "20", p.AvgPrice)
	requireDecimal(t, "10", p.MinPrice)
	requireDecimal(t, "30", p.MaxPrice)
}

func TestPriceHistory_WindowAndRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for day := 0; day < 5; day++ {
		require.NoError(t, h.ah.Prices.RecordSale(ctx, "IRON_INGOT", d("4")))
		require.NoError(t, h.ah.Prices.RecordSale(ctx, "GOLD_INGOT", d("9")))
		h.clock.Advance(24 * time.Hour)
	}
	h.clock.Advance(-24 * time.Hour)

	seq := h.ah.PriceHistory(ctx, "IRON_INGOT", 3)
	var first, second []string
	for p, err := range seq {
		require.NoError(t, err)
		first = append(first, p.DateBucket)
	}
	require.NoError(t, h.ah.Prices.RecordSale(ctx, "IRON_INGOT", d("6")))
	for p, err := range seq {
		require.NoError(t, err)
		second = append(second, p.DateBucket)
		if p.DateBucket == "2026-03-18" {
			require.Equal(t, 2, p.SaleCount)
		}
	}
	require.Equal(t, []string{"2026-03-16", "2026-03-17", "2026-03-18"}, first)
	require.Equal(t, first, second)

	// Stopping early is fine.
	n := 0
	for range seq {
		n++
		break
	}
	require.Equal(t, 1, n)
}

func TestPriceHistory_Summary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ah.Prices.RecordSale(ctx, "EMERALD", d("10")))
	require.NoError(t, h.ah.Prices.RecordSale(ctx, "EMERALD", d("20")))
	h.clock.Advance(24 * time.Hour)
	require.NoError(t, h.ah.Prices.RecordSale(ctx, "EMERALD", d("60")))

	s, err := h.ah.PriceSummary(ctx, "EMERALD", 7)
	require.NoError(t, err)
	require.Equal(t, 3, s.SaleCount)
	requireDecimal(t, "30", s.AvgPrice)
	requireDecimal(t, "10", s.MinPrice)
	requireDecimal(t, "60", s.MaxPrice)

	empty, err := h.ah.PriceSummary(ctx, "DIRT", 7)
	require.NoError(t, err)
	require.Zero(t, empty.SaleCount)
}

func TestPriceHistory_Prune(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ah.Prices.RecordSale(ctx, "EMERALD", d("10")))
	h.clock.Advance(100 * 24 * time.Hour)
	require.NoError(t, h.ah.Prices.RecordSale(ctx, "EMERALD", d("10")))

	n, err := h.ah.Prices.Prune(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Len(t, collect(t, h, "EMERALD", 365), 1)
}
