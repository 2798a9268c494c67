package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// AntiSnipe controls expiry extensions for bids landing near the deadline.
type AntiSnipe struct {
	Enabled       bool
	TriggerWindow time.Duration
	Extension     time.Duration
	MaxExtensions int
}

// Settings are the engine's tunables. Percentages are fractions (0.05 = 5%).
type Settings struct {
	ListingFeePct     decimal.Decimal
	TaxRate           decimal.Decimal
	BidIncrementPct   decimal.Decimal
	MinDuration       time.Duration
	MaxDuration       time.Duration
	MaxActiveListings int
	AntiSnipe         AntiSnipe
	SweepInterval     time.Duration
	// SweepBatch caps how many due listings one pass handles.
	SweepBatch            int
	CollectionNewestFirst bool
	PriceHistoryRetention time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ListingFeePct:     decimal.RequireFromString("0.02"),
		TaxRate:           decimal.RequireFromString("0.05"),
		BidIncrementPct:   decimal.RequireFromString("0.05"),
		MinDuration:       time.Hour,
		MaxDuration:       72 * time.Hour,
		MaxActiveListings: 10,
		AntiSnipe: AntiSnipe{
			Enabled:       true,
			TriggerWindow: 30 * time.Second,
			Extension:     30 * time.Second,
			MaxExtensions: 2,
		},
		SweepInterval:         time.Second,
		SweepBatch:            200,
		PriceHistoryRetention: 90 * 24 * time.Hour,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.SweepInterval <= 0 {
		s.SweepInterval = d.SweepInterval
	}
	if s.SweepBatch <= 0 {
		s.SweepBatch = d.SweepBatch
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = d.MaxDuration
	}
	if s.MinDuration <= 0 {
		s.MinDuration = d.MinDuration
	}
	if s.PriceHistoryRetention <= 0 {
		s.PriceHistoryRetention = d.PriceHistoryRetention
	}
	return s
}
