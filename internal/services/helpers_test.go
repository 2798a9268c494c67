package services_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	"auctionhouse/internal/economy"
	"auctionhouse/internal/repos"
	"auctionhouse/internal/services"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type note struct {
	Player string
	Event  string
	Params map[string]any
}

// recorder is a Notifier that remembers what it was asked to send.
type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(_ context.Context, playerID, event string, params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{Player: playerID, Event: event, Params: params})
}

func (r *recorder) events(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.Player == playerID {
			out = append(out, n.Event)
		}
	}
	return out
}

type delivered struct {
	Player string
	Blob   []byte
}

type itemBox struct {
	mu    sync.Mutex
	items []delivered
	err   error
}

func (b *itemBox) GiveItem(_ context.Context, playerID string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.items = append(b.items, delivered{Player: playerID, Blob: blob})
	return nil
}

type permSet map[string]bool

func (p permSet) Has(playerID, permission string) bool {
	return p[playerID+"|"+permission]
}

type harness struct {
	db       *sqlx.DB
	clock    *clock.Manual
	economy  *economy.Memory
	notes    *recorder
	items    *itemBox
	perms    permSet
	repos    services.Repositories
	settings services.Settings
	ah       *services.AuctionHouse
}

type option func(*harness)

func withSettings(fn func(*services.Settings)) option {
	return func(h *harness) { fn(&h.settings) }
}

// withRepos lets a test swap repositories, typically for failure injection.
func withRepos(fn func(*services.Repositories)) option {
	return func(h *harness) { fn(&h.repos) }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	db, err := repos.OpenDB(filepath.Join(t.TempDir(), "auctionhouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:       db,
		clock:    clock.NewManual(t0),
		economy:  economy.NewMemory(),
		notes:    &recorder{},
		items:    &itemBox{},
		perms:    permSet{},
		repos:    sqlRepositories(db),
		settings: services.DefaultSettings(),
	}
	for _, o := range opts {
		o(h)
	}
	h.ah = services.NewAuctionHouse(services.Deps{
		Repos:       h.repos,
		Economy:     h.economy,
		Notifier:    h.notes,
		Items:       h.items,
		Permissions: h.perms,
		Clock:       h.clock,
		Settings:    h.settings,
	})
	return h
}

func sqlRepositories(db *sqlx.DB) services.Repositories {
	return services.Repositories{
		Tx:           repos.NewStore(db),
		Listings:     repos.NewListingRepo(db),
		Bids:         repos.NewBidRepo(db),
		Escrow:       repos.NewEscrowRepo(db),
		Collection:   repos.NewCollectionRepo(db),
		Prices:       repos.NewPriceHistoryRepo(db),
		Transactions: repos.NewTransactionRepo(db),
	}
}

func (h *harness) fund(player, amount string) { h.economy.Set(player, d(amount)) }

func (h *harness) balance(t *testing.T, player string) decimal.Decimal {
	t.Helper()
	b, err := h.economy.Balance(context.Background(), player)
	require.NoError(t, err)
	return b
}

// list creates a one hour listing of a diamond sword owned by "seller".
func (h *harness) list(t *testing.T, start string, buyout string) domain.Listing {
	t.Helper()
	in := services.CreateListingInput{
		SellerID:   "seller",
		SellerName: "Seller",
		Item: domain.Item{
			Blob:        []byte("diamond-sword-nbt"),
			Material:    "DIAMOND_SWORD",
			DisplayName: "Diamond Sword",
			Category:    "weapons",
		},
		StartPrice:    d(start),
		DurationHours: 1,
	}
	if buyout != "" {
		in.BuyoutPrice = decimal.NewNullDecimal(d(buyout))
	}
	if h.balance(t, "seller").IsZero() {
		h.fund("seller", "1000")
	}
	l, err := h.ah.CreateListing(context.Background(), in)
	require.NoError(t, err)
	return l
}

func (h *harness) bid(player, listingID, amount string) (domain.Bid, error) {
	return h.ah.PlaceBid(context.Background(), services.PlaceBidInput{
		ListingID:  listingID,
		BidderID:   player,
		BidderName: player,
		Amount:     d(amount),
	})
}

func (h *harness) listing(t *testing.T, id string) domain.Listing {
	t.Helper()
	l, err := h.ah.Listing(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (h *harness) holds(t *testing.T, listingID string) []domain.EscrowHold {
	t.Helper()
	hs, err := h.ah.Escrow.Outstanding(context.Background(), listingID)
	require.NoError(t, err)
	return hs
}

func (h *harness) mailbox(t *testing.T, player string) []domain.CollectionEntry {
	t.Helper()
	es, err := h.ah.Collection(context.Background(), player)
	require.NoError(t, err)
	return es
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}
