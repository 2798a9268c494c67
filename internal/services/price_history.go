package services

import (
	"context"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
)

const maxHistoryDays = 365

// PriceHistoryAggregator keeps one running statistics row per material and
// UTC day.
type PriceHistoryAggregator struct {
	tx        TxRunner
	points    PriceHistoryRepository
	clock     clock.Clock
	retention time.Duration
}

func NewPriceHistoryAggregator(tx TxRunner, points PriceHistoryRepository, clk clock.Clock, retention time.Duration) *PriceHistoryAggregator {
	return &PriceHistoryAggregator{tx: tx, points: points, clock: clk, retention: retention}
}

// RecordSale folds one sale into today's row for material. Joins the caller's
// transaction when there is one.
func (a *PriceHistoryAggregator) RecordSale(ctx context.Context, material string, price decimal.Decimal) error {
	date := a.clock.Now().UTC().Format(domain.DateBucketLayout)
	return a.tx.WithTx(ctx, func(ctx context.Context) error {
		p, ok, err := a.points.Get(ctx, material, date)
		if err != nil {
			return err
		}
		if !ok {
			return a.points.Insert(ctx, domain.PriceHistoryPoint{
				Material:   material,
				DateBucket: date,
				AvgPrice:   price,
				MinPrice:   price,
				MaxPrice:   price,
				SaleCount:  1,
			})
		}
		return a.points.Update(ctx, accumulate(p, price), p.SaleCount)
	})
}

func accumulate(p domain.PriceHistoryPoint, price decimal.Decimal) domain.PriceHistoryPoint {
	next := p
	next.SaleCount = p.SaleCount + 1
	next.AvgPrice = p.AvgPrice.Add(price.Sub(p.AvgPrice).Div(decimal.NewFromInt(int64(next.SaleCount))))
	next.MinPrice = decimal.Min(p.MinPrice, price)
	next.MaxPrice = decimal.Max(p.MaxPrice, price)
	return next
}

// Query returns the last days of history for material, oldest first. Nothing
// is read until the sequence is ranged over, and each range reads afresh.
func (a *PriceHistoryAggregator) Query(ctx context.Context, material string, days int) iter.Seq2[domain.PriceHistoryPoint, error] {
	return a.points.Range(ctx, material, a.fromDate(days))
}

// Summary collapses the window into a single point weighted by sale count.
// DateBucket holds the first day of the window.
func (a *PriceHistoryAggregator) Summary(ctx context.Context, material string, days int) (domain.PriceHistoryPoint, error) {
	out := domain.PriceHistoryPoint{Material: material, DateBucket: a.fromDate(days)}
	total := decimal.Zero
	for p, err := range a.Query(ctx, material, days) {
		if err != nil {
			return domain.PriceHistoryPoint{}, err
		}
		if out.SaleCount == 0 {
			out.MinPrice, out.MaxPrice = p.MinPrice, p.MaxPrice
		} else {
			out.MinPrice = decimal.Min(out.MinPrice, p.MinPrice)
			out.MaxPrice = decimal.Max(out.MaxPrice, p.MaxPrice)
		}
		total = total.Add(p.AvgPrice.Mul(decimal.NewFromInt(int64(p.SaleCount))))
		out.SaleCount += p.SaleCount
	}
	if out.SaleCount > 0 {
		out.AvgPrice = total.Div(decimal.NewFromInt(int64(out.SaleCount)))
	}
	return out, nil
}

// Prune drops rows older than the retention window.
func (a *PriceHistoryAggregator) Prune(ctx context.Context) (int64, error) {
	cutoff := a.clock.Now().UTC().Add(-a.retention).Format(domain.DateBucketLayout)
	return a.points.DeleteBefore(ctx, cutoff)
}

// fromDate is the first day of a window of days days ending today.
func (a *PriceHistoryAggregator) fromDate(days int) string {
	days = min(max(days, 1), maxHistoryDays)
	return a.clock.Now().UTC().AddDate(0, 0, -(days - 1)).Format(domain.DateBucketLayout)
}
