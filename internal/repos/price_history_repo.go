package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
)

type PriceHistoryRepo struct{ db *sqlx.DB }

func NewPriceHistoryRepo(db *sqlx.DB) *PriceHistoryRepo { return &PriceHistoryRepo{db: db} }

type priceRow struct {
	Material  string          `db:"material"`
	Date      string          `db:"date"`
	AvgPrice  decimal.Decimal `db:"avg_price"`
	MinPrice  decimal.Decimal `db:"min_price"`
	MaxPrice  decimal.Decimal `db:"max_price"`
	SaleCount int             `db:"sale_count"`
}

func (r priceRow) toDomain() domain.PriceHistoryPoint {
	return domain.PriceHistoryPoint{
		Material:   r.Material,
		DateBucket: r.Date,
		AvgPrice:   r.AvgPrice,
		MinPrice:   r.MinPrice,
		MaxPrice:   r.MaxPrice,
		SaleCount:  r.SaleCount,
	}
}

// Get returns the row for (material, date); ok is false when there is none.
func (r *PriceHistoryRepo) Get(ctx context.Context, material, date string) (p domain.PriceHistoryPoint, ok bool, err error) {
	var row priceRow
	err = conn(ctx, r.db).GetContext(ctx, &row, `
	  SELECT material, date, avg_price, min_price, max_price, sale_count
	  FROM price_history
	  WHERE material = ? AND date = ?
	`, material, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PriceHistoryPoint{}, false, nil
		}
		return domain.PriceHistoryPoint{}, false, fmt.Errorf("get price history: %w", err)
	}
	return row.toDomain(), true, nil
}

// Insert creates the first row of a day.
func (r *PriceHistoryRepo) Insert(ctx context.Context, p domain.PriceHistoryPoint) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO price_history(material, date, avg_price, min_price, max_price, sale_count)
	  VALUES(?, ?, ?, ?, ?, ?)
	`, p.Material, p.DateBucket, p.AvgPrice, p.MinPrice, p.MaxPrice, p.SaleCount)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: price history row %s/%s created concurrently", domain.ErrConcurrencyConflict, p.Material, p.DateBucket)
		}
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}

// Update overwrites a row if its sale count is still expectedCount.
func (r *PriceHistoryRepo) Update(ctx context.Context, p domain.PriceHistoryPoint, expectedCount int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
	  UPDATE price_history
	  SET avg_price = ?, min_price = ?, max_price = ?, sale_count = ?
	  WHERE material = ? AND date = ? AND sale_count = ?
	`, p.AvgPrice, p.MinPrice, p.MaxPrice, p.SaleCount, p.Material, p.DateBucket, expectedCount)
	if err != nil {
		return fmt.Errorf("update price history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: price history row %s/%s changed concurrently", domain.ErrConcurrencyConflict, p.Material, p.DateBucket)
	}
	return nil
}

// Range streams the rows of a material from fromDate (inclusive) onwards,
// oldest first. Rows are read lazily; every range over the result runs the
// query again. The connection is held until iteration stops, so the consumer
// must not issue other queries while ranging.
func (r *PriceHistoryRepo) Range(ctx context.Context, material, fromDate string) iter.Seq2[domain.PriceHistoryPoint, error] {
	return func(yield func(domain.PriceHistoryPoint, error) bool) {
		rows, err := conn(ctx, r.db).QueryxContext(ctx, `
		  SELECT material, date, avg_price, min_price, max_price, sale_count
		  FROM price_history
		  WHERE material = ? AND date >= ?
		  ORDER BY date ASC
		`, material, fromDate)
		if err != nil {
			yield(domain.PriceHistoryPoint{}, fmt.Errorf("query price history: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row priceRow
			if err := rows.StructScan(&row); err != nil {
				yield(domain.PriceHistoryPoint{}, fmt.Errorf("scan price history: %w", err))
				return
			}
			if !yield(row.toDomain(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.PriceHistoryPoint{}, fmt.Errorf("iterate price history: %w", err))
		}
	}
}

// DeleteBefore drops rows older than date and returns how many went.
func (r *PriceHistoryRepo) DeleteBefore(ctx context.Context, date string) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM price_history WHERE date < ?`, date)
	if err != nil {
		return 0, fmt.Errorf("prune price history: %w", err)
	}
	return res.RowsAffected()
}
