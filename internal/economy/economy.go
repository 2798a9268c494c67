// Package economy provides balance stores for the auction engine: a
// SQLite-backed ledger for standalone deployments and an in-memory one.
package economy

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Format renders an amount with thousands separators and two decimals,
// e.g. "$1,234.50".
func Format(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	w, err := decimal.NewFromString(whole)
	if err != nil {
		return sign + "$" + fixed
	}
	return sign + "$" + humanize.Comma(w.IntPart()) + "." + frac
}
