package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/services"
)

type Config struct {
	Port     string
	DBDSN    string
	LogFile  string
	LogLevel string

	ListingFeePct     decimal.Decimal
	TaxRate           decimal.Decimal
	BidIncrementPct   decimal.Decimal
	MinDurationHours  int
	MaxDurationHours  int
	MaxActiveListings int

	AntiSnipeEnabled   bool
	AntiSnipeTrigger   time.Duration
	AntiSnipeExtension time.Duration
	AntiSnipeMaxExt    int
	SweepInterval      time.Duration

	CollectionNewestFirst bool
	StartingBalance       decimal.Decimal

	NotifyBackends   []string
	NATSURL          string
	RedisAddr        string
	AdminKeyHash     string
	TaxExemptPlayers []string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "auctionhouse.db"
	} // sqlite file in project root
	logFile, ok := os.LookupEnv("LOG_FILE")
	if !ok {
		logFile = "./auctionhouse.log"
	}

	cfg := Config{
		Port:     port,
		DBDSN:    dsn,
		LogFile:  logFile,
		LogLevel: str("LOG_LEVEL", "info"),

		ListingFeePct:     dec("LISTING_FEE_PCT", "0.02"),
		TaxRate:           dec("TAX_RATE", "0.05"),
		BidIncrementPct:   dec("BID_INCREMENT_PCT", "0.05"),
		MinDurationHours:  integer("MIN_DURATION_HOURS", 1),
		MaxDurationHours:  integer("MAX_DURATION_HOURS", 72),
		MaxActiveListings: integer("MAX_ACTIVE_LISTINGS", 10),

		AntiSnipeEnabled:   boolean("ANTISNIPE_ENABLED", true),
		AntiSnipeTrigger:   time.Duration(integer("ANTISNIPE_TRIGGER_SECONDS", 30)) * time.Second,
		AntiSnipeExtension: time.Duration(integer("ANTISNIPE_EXTENSION_SECONDS", 30)) * time.Second,
		AntiSnipeMaxExt:    integer("ANTISNIPE_MAX_EXTENSIONS", 2),
		SweepInterval:      duration("SWEEP_INTERVAL", time.Second),

		CollectionNewestFirst: boolean("COLLECTION_NEWEST_FIRST", false),
		StartingBalance:       dec("STARTING_BALANCE", "0"),

		NotifyBackends:   list("NOTIFY_BACKENDS", "log"),
		NATSURL:          str("NATS_URL", "nats://127.0.0.1:4222"),
		RedisAddr:        str("REDIS_ADDR", "127.0.0.1:6379"),
		AdminKeyHash:     os.Getenv("ADMIN_KEY_HASH"),
		TaxExemptPlayers: list("TAX_EXEMPT_PLAYERS", ""),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s NOTIFY=%v TAX=%s FEE=%s INCREMENT=%s ANTISNIPE=%v(%s/%s x%d) SWEEP=%s",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.NotifyBackends, cfg.TaxRate, cfg.ListingFeePct, cfg.BidIncrementPct,
		cfg.AntiSnipeEnabled, cfg.AntiSnipeTrigger, cfg.AntiSnipeExtension, cfg.AntiSnipeMaxExt, cfg.SweepInterval)
	return cfg
}

// Engine derives the engine settings from the loaded configuration.
func (c Config) Engine() services.Settings {
	return services.Settings{
		ListingFeePct:     c.ListingFeePct,
		TaxRate:           c.TaxRate,
		BidIncrementPct:   c.BidIncrementPct,
		MinDuration:       time.Duration(c.MinDurationHours) * time.Hour,
		MaxDuration:       time.Duration(c.MaxDurationHours) * time.Hour,
		MaxActiveListings: c.MaxActiveListings,
		AntiSnipe: services.AntiSnipe{
			Enabled:       c.AntiSnipeEnabled,
			TriggerWindow: c.AntiSnipeTrigger,
			Extension:     c.AntiSnipeExtension,
			MaxExtensions: c.AntiSnipeMaxExt,
		},
		SweepInterval:         c.SweepInterval,
		CollectionNewestFirst: c.CollectionNewestFirst,
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func dec(key, def string) decimal.Decimal {
	raw := str(key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		log.Printf("[warn] %s=%q is not a valid non-negative decimal, using %s", key, raw, def)
		return decimal.RequireFromString(def)
	}
	return d
}

func integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		log.Printf("[warn] %s=%q is not a valid non-negative integer, using %d", key, raw, def)
		return def
	}
	return n
}

func boolean(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("[warn] %s=%q is not a valid bool, using %v", key, raw, def)
		return def
	}
	return b
}

func duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		log.Printf("[warn] %s=%q is not a valid duration, using %s", key, raw, def)
		return def
	}
	return d
}

func list(key, def string) []string {
	raw := str(key, def)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

type taxExempt map[string]struct{}

func (t taxExempt) Has(playerID, permission string) bool {
	if permission != services.PermissionTaxExempt {
		return false
	}
	_, ok := t[playerID]
	return ok
}

// Permissions grants the sales tax exemption to TAX_EXEMPT_PLAYERS.
func (c Config) Permissions() services.Permissions {
	t := make(taxExempt, len(c.TaxExemptPlayers))
	for _, p := range c.TaxExemptPlayers {
		t[p] = struct{}{}
	}
	return t
}
