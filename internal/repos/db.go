package repos

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite database and makes sure the schema exists.
// Safe to call on every start.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer; one connection also keeps :memory: databases
	// shared between callers.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Listings (money columns hold exact decimal strings, times are unix millis)
CREATE TABLE IF NOT EXISTS listings(
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  seller_name TEXT NOT NULL DEFAULT '',
  item_blob BLOB,
  material TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  start_price TEXT NOT NULL,
  buyout_price TEXT,
  current_bid TEXT NOT NULL DEFAULT '0',
  current_bidder_id TEXT NOT NULL DEFAULT '',
  current_bidder_name TEXT NOT NULL DEFAULT '',
  bid_count INTEGER NOT NULL DEFAULT 0,
  last_bid_at INTEGER NOT NULL DEFAULT 0,
  extensions_used INTEGER NOT NULL DEFAULT 0,
  listed_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('ACTIVE','SOLD','EXPIRED','CANCELLED')),
  listing_fee TEXT NOT NULL DEFAULT '0',
  version INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_listings_status_expires ON listings(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_listings_seller         ON listings(seller_id, status);
CREATE INDEX IF NOT EXISTS idx_listings_category       ON listings(category, status);
CREATE INDEX IF NOT EXISTS idx_listings_listed_at      ON listings(listed_at);

-- Bids (append-only)
CREATE TABLE IF NOT EXISTS bids(
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE RESTRICT,
  bidder_id TEXT NOT NULL,
  bidder_name TEXT NOT NULL DEFAULT '',
  amount TEXT NOT NULL,
  bid_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bids_listing ON bids(listing_id, bid_at);

-- Escrow: at most one hold per (listing, bidder)
CREATE TABLE IF NOT EXISTS escrow_holds(
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE RESTRICT,
  bidder_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY(listing_id, bidder_id)
);

-- Collection mailbox
CREATE TABLE IF NOT EXISTS collection_entries(
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  kind TEXT NOT NULL CHECK (kind IN ('MONEY','ITEM')),
  item_blob BLOB,
  amount TEXT NOT NULL DEFAULT '0',
  reason TEXT NOT NULL,
  listing_id TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collection_owner ON collection_entries(owner_id, created_at);

-- Daily price history
CREATE TABLE IF NOT EXISTS price_history(
  material TEXT NOT NULL,
  date TEXT NOT NULL,
  avg_price TEXT NOT NULL,
  min_price TEXT NOT NULL,
  max_price TEXT NOT NULL,
  sale_count INTEGER NOT NULL,
  PRIMARY KEY(material, date)
);

-- Completed sales
CREATE TABLE IF NOT EXISTS transactions(
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL UNIQUE,
  seller_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  material TEXT NOT NULL,
  amount TEXT NOT NULL,
  tax TEXT NOT NULL,
  kind TEXT NOT NULL CHECK (kind IN ('BUYOUT','BID_WIN')),
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_seller ON transactions(seller_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_buyer  ON transactions(buyer_id, created_at);

-- Player balances for the bundled economy
CREATE TABLE IF NOT EXISTS accounts(
  player_id TEXT PRIMARY KEY,
  balance TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}
