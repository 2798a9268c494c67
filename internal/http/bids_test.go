package handlers_test

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestBidStatuses(t *testing.T) {
	a := newAPI(t)
	a.fund("seller", "10")
	a.fund("alice", "1000")
	a.fund("bob", "50")
	id := a.list(t, "seller", "100", "")

	bid := func(player, amount string) (int, map[string]any) {
		return a.call(t, "POST", "/api/v1/listings/"+id+"/bids", player, map[string]any{"amount": amount})
	}

	if status, body := bid("alice", "99"); status != fiber.StatusBadRequest {
		t.Fatalf("below start: got %d %v", status, body)
	}
	if status, body := bid("seller", "100"); status != fiber.StatusBadRequest {
		t.Fatalf("own listing: got %d %v", status, body)
	}
	if status, body := bid("bob", "100"); status != fiber.StatusPaymentRequired {
		t.Fatalf("insufficient funds: got %d %v", status, body)
	}
	status, body := bid("alice", "100")
	if status != fiber.StatusCreated || body["amount"] != "100.00" || body["bidder_name"] != "Alice" {
		t.Fatalf("valid bid: got %d %v", status, body)
	}
	if status, body := bid("alice", "200"); status != fiber.StatusBadRequest {
		t.Fatalf("already top bidder: got %d %v", status, body)
	}
	if got := a.balance(t, "alice"); got != "900.00" {
		t.Fatalf("bid not escrowed: %s", got)
	}

	status, body = a.call(t, "GET", "/api/v1/listings/"+id, "", nil)
	if status != fiber.StatusOK || body["minimum_bid"] != "105.00" || body["current_bidder"] != "Alice" {
		t.Fatalf("listing after bid: %d %v", status, body)
	}
	status, body = a.call(t, "GET", "/api/v1/listings/"+id+"/bids", "", nil)
	if status != fiber.StatusOK || len(entries(t, body, "bids")) != 1 {
		t.Fatalf("bids: %d %v", status, body)
	}
}

func TestOutbidRefundsPreviousBidder(t *testing.T) {
	a := newAPI(t)
	a.fund("seller", "10")
	a.fund("alice", "500")
	a.fund("bob", "500")
	id := a.list(t, "seller", "100", "")

	a.call(t, "POST", "/api/v1/listings/"+id+"/bids", "alice", map[string]any{"amount": "100"})
	status, body := a.call(t, "POST", "/api/v1/listings/"+id+"/bids", "bob", map[string]any{"amount": "105"})
	if status != fiber.StatusCreated {
		t.Fatalf("outbid: %d %v", status, body)
	}
	if got := a.balance(t, "alice"); got != "500.00" {
		t.Fatalf("alice not refunded: %s", got)
	}
	if got := a.balance(t, "bob"); got != "395.00" {
		t.Fatalf("bob not charged: %s", got)
	}
}

func TestBuyNowSettlesAndFillsMailboxes(t *testing.T) {
	a := newAPI(t)
	a.fund("seller", "10")
	a.fund("buyer", "1000")
	id := a.list(t, "seller", "100", "500")

	status, body := a.call(t, "POST", "/api/v1/listings/"+id+"/buy", "buyer", nil)
	if status != fiber.StatusOK {
		t.Fatalf("buy: %d %v", status, body)
	}
	if body["kind"] != "BUYOUT" || body["amount"] != "500.00" || body["tax"] != "25.00" {
		t.Fatalf("unexpected transaction %v", body)
	}
	if got := a.balance(t, "buyer"); got != "500.00" {
		t.Fatalf("buyer balance %s", got)
	}

	status, body = a.call(t, "POST", "/api/v1/listings/"+id+"/buy", "buyer", nil)
	if status != fiber.StatusConflict {
		t.Fatalf("second buy: expected 409, got %d %v", status, body)
	}

	// Buyer claims the item.
	status, body = a.call(t, "GET", "/api/v1/collection", "buyer", nil)
	items := entries(t, body, "entries")
	if status != fiber.StatusOK || len(items) != 1 || items[0]["kind"] != "ITEM" {
		t.Fatalf("buyer collection: %d %v", status, body)
	}
	status, body = a.call(t, "POST", "/api/v1/collection/"+items[0]["id"].(string)+"/claim", "buyer", nil)
	if status != fiber.StatusOK || body["reason"] != "purchase" {
		t.Fatalf("claim: %d %v", status, body)
	}
	if got := a.items.items["buyer"]; len(got) != 1 || string(got[0]) != "sword-nbt" {
		t.Fatalf("item not delivered: %v", got)
	}
	status, _ = a.call(t, "POST", "/api/v1/collection/"+items[0]["id"].(string)+"/claim", "buyer", nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("double claim: expected 404, got %d", status)
	}

	// Seller collects the proceeds.
	status, body = a.call(t, "POST", "/api/v1/collection/claim-all", "seller", nil)
	claimed := entries(t, body, "claimed")
	if status != fiber.StatusOK || len(claimed) != 1 || claimed[0]["amount"] != "475.00" || body["incomplete"] != false {
		t.Fatalf("claim-all: %d %v", status, body)
	}
	status, body = a.call(t, "GET", "/api/v1/balance", "seller", nil)
	if status != fiber.StatusOK || body["balance"] != "$483.00" {
		t.Fatalf("seller balance: %d %v", status, body)
	}

	status, body = a.call(t, "GET", "/api/v1/transactions", "buyer", nil)
	if status != fiber.StatusOK || len(entries(t, body, "transactions")) != 1 {
		t.Fatalf("transactions: %d %v", status, body)
	}

	status, body = a.call(t, "GET", "/api/v1/prices/diamond_sword?days=7", "", nil)
	points := entries(t, body, "points")
	if status != fiber.StatusOK || len(points) != 1 || points[0]["avg_price"] != "500.00" || points[0]["sale_count"] != float64(1) {
		t.Fatalf("prices: %d %v", status, body)
	}
	status, body = a.call(t, "GET", "/api/v1/prices/DIAMOND_SWORD/summary", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("summary: %d %v", status, body)
	}
}

func TestBalancesSurviveManyRequests(t *testing.T) {
	a := newAPI(t)
	a.fund("seller", "10")
	players := []string{"alice", "bob", "carol", "dave"}
	for _, p := range players {
		a.fund(p, "1000")
	}
	first := a.list(t, "seller", "100", "")
	second := a.list(t, "seller", "100", "")

	// Round robin: every bid outbids the previous player on that listing.
	amount := 100
	top := map[string]string{}
	for round := 0; round < 3; round++ {
		for i, p := range players {
			id := first
			if i%2 == 1 {
				id = second
			}
			status, body := a.call(t, "POST", "/api/v1/listings/"+id+"/bids", p, map[string]any{"amount": fmt.Sprint(amount)})
			if status != fiber.StatusCreated {
				t.Fatalf("round %d %s: %d %v", round, p, status, body)
			}
			top[id] = p
			amount += 10
		}
	}

	// Last bids: carol 200 on first, dave 210 on second.
	want := map[string]string{"alice": "1000.00", "bob": "1000.00", "carol": "800.00", "dave": "790.00"}
	if top[first] != "carol" || top[second] != "dave" {
		t.Fatalf("unexpected top bidders %v", top)
	}
	for p, w := range want {
		if got := a.balance(t, p); got != w {
			t.Fatalf("%s: balance %s, want %s", p, got, w)
		}
	}
}
