package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reQ        = regexp.MustCompile(`^[\p{L}0-9 _'%.-]{1,50}$`)
	reID       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reMaterial = regexp.MustCompile(`^[A-Z0-9_]{1,64}$`)
	reSort     = regexp.MustCompile(`^(newest|oldest|price_asc|price_desc|ending_soon)$`)
)

// Money bounds for any amount accepted over the API.
var (
	maxAmount = decimal.NewFromInt(1_000_000_000_000)
)

// Results are copied: fiber hands out strings backed by reused request
// buffers, and the engine keeps ids as map keys.

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.Clone(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if len(s) > 50 {
		s = s[:50]
	}
	return s, reQ.MatchString(s)
}

// ID validates a simple resource identifier (listing, entry and player ids).
func ID(s string) (string, bool) {
	s = strings.Clone(strings.TrimSpace(s))
	return s, s != "" && reID.MatchString(s)
}

// Material normalises an item material key to upper case.
func Material(s string) (string, bool) {
	s = strings.Clone(strings.ToUpper(strings.TrimSpace(s)))
	return s, reMaterial.MatchString(s)
}

// Category is optional; empty means all categories.
func Category(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return ID(s)
}

// Sort accepts the listing sort keys; empty keeps the default order.
func Sort(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s == "" || reSort.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.Clone(strings.TrimSpace(s))
	if s == "" || len(s) > 32 {
		return "", false
	}
	return s, true
}

// Page parses a 1-based page number; junk means page 1.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > 10_000 {
		return 10_000
	}
	return n
}

// Size parses a page size; 0 lets the engine pick its default.
func Size(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0
	}
	return min(n, 100)
}

// Days parses a history window, clamped to a year.
func Days(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 7
	}
	return min(n, 365)
}

// Amount parses a positive money amount with at most two decimals.
func Amount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() || d.GreaterThan(maxAmount) || d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Zero, false
	}
	return d, true
}

// Hours validates a listing duration in whole hours.
func Hours(n int) bool { return n >= 1 && n <= 24*30 }
