package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/config"
	"auctionhouse/internal/economy"
	"auctionhouse/internal/http/handlers"
	"auctionhouse/internal/repos"
	"auctionhouse/internal/services"
)

const adminKey = "letmein"

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type inbox struct {
	mu    sync.Mutex
	items map[string][][]byte
}

func (b *inbox) GiveItem(_ context.Context, playerID string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items == nil {
		b.items = map[string][][]byte{}
	}
	b.items[playerID] = append(b.items[playerID], blob)
	return nil
}

type api struct {
	app     *fiber.App
	economy *economy.Memory
	clock   *clock.Manual
	items   *inbox
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db, err := repos.OpenDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin key: %v", err)
	}
	cfg := config.Config{
		BidIncrementPct: decimal.RequireFromString("0.05"),
		AdminKeyHash:    string(hash),
	}

	a := &api{economy: economy.NewMemory(), clock: clock.NewManual(t0), items: &inbox{}}
	ah := services.NewAuctionHouse(services.Deps{
		Repos: services.Repositories{
			Tx:           repos.NewStore(db),
			Listings:     repos.NewListingRepo(db),
			Bids:         repos.NewBidRepo(db),
			Escrow:       repos.NewEscrowRepo(db),
			Collection:   repos.NewCollectionRepo(db),
			Prices:       repos.NewPriceHistoryRepo(db),
			Transactions: repos.NewTransactionRepo(db),
		},
		Economy:  a.economy,
		Items:    a.items,
		Clock:    a.clock,
		Settings: services.DefaultSettings(),
	})

	a.app = fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler, Immutable: true})
	a.app.Server().MaxRequestBodySize = 1 << 20
	a.app.Use(requestid.New())
	handlers.Register(a.app, handlers.NewDeps(ah, cfg))
	return a
}

func (a *api) fund(player, amount string) {
	a.economy.Set(player, decimal.RequireFromString(amount))
}

func (a *api) balance(t *testing.T, player string) string {
	t.Helper()
	bal, err := a.economy.Balance(context.Background(), player)
	if err != nil {
		t.Fatalf("balance %s: %v", player, err)
	}
	return bal.StringFixed(2)
}

// call sends a request as player (empty for anonymous) and decodes the JSON
// response.
func (a *api) call(t *testing.T, method, path, player string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if player != "" {
		req.Header.Set("X-Player-ID", player)
		req.Header.Set("X-Player-Name", strings.ToUpper(player[:1])+player[1:])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v; body=%s", method, path, err, raw)
		}
	}
	return resp.StatusCode, out
}

// list creates a 24h listing of a diamond sword and returns its id.
func (a *api) list(t *testing.T, seller, start, buyout string) string {
	t.Helper()
	status, body := a.call(t, "POST", "/api/v1/listings", seller, map[string]any{
		"material":       "diamond_sword",
		"display_name":   "Sharp Sword",
		"category":       "weapons",
		"item":           []byte("sword-nbt"),
		"start_price":    start,
		"buyout_price":   buyout,
		"duration_hours": 24,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create listing: status %d body=%v", status, body)
	}
	return body["id"].(string)
}

func entries(t *testing.T, body map[string]any, key string) []map[string]any {
	t.Helper()
	raw, ok := body[key].([]any)
	if !ok {
		t.Fatalf("%s missing from %v", key, body)
	}
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]any))
	}
	return out
}
