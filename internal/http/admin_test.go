package handlers_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestCancelRules(t *testing.T) {
	a := newAPI(t)
	a.fund("seller", "10")
	a.fund("alice", "500")
	id := a.list(t, "seller", "100", "")
	cancelPath := "/api/v1/listings/" + id + "/cancel"

	if status, body := a.call(t, "POST", cancelPath, "mallory", nil); status != fiber.StatusBadRequest {
		t.Fatalf("non-seller cancel: expected 400, got %d %v", status, body)
	}

	a.call(t, "POST", "/api/v1/listings/"+id+"/bids", "alice", map[string]any{"amount": "150"})
	if status, body := a.call(t, "POST", cancelPath, "seller", nil); status != fiber.StatusBadRequest {
		t.Fatalf("cancel with bids: expected 400, got %d %v", status, body)
	}

	if status, _ := a.call(t, "POST", cancelPath, "mod", nil, "X-Admin-Key", "guess"); status != fiber.StatusForbidden {
		t.Fatalf("wrong admin key: expected 403, got %d", status)
	}

	status, body := a.call(t, "POST", cancelPath, "mod", nil, "X-Admin-Key", adminKey)
	if status != fiber.StatusOK || body["status"] != "CANCELLED" {
		t.Fatalf("admin cancel: %d %v", status, body)
	}
	if got := a.balance(t, "alice"); got != "500.00" {
		t.Fatalf("bidder not refunded: %s", got)
	}

	status, body = a.call(t, "GET", "/api/v1/collection", "seller", nil)
	items := entries(t, body, "entries")
	if status != fiber.StatusOK || len(items) != 1 || items[0]["reason"] != "listing_cancelled" {
		t.Fatalf("item not returned to seller: %d %v", status, body)
	}
}

func TestAdminSweepSettlesDueListings(t *testing.T) {
	a := newAPI(t)
	a.fund("seller", "10")
	a.fund("alice", "500")
	sold := a.list(t, "seller", "100", "")
	expired := a.list(t, "seller", "50", "")
	a.call(t, "POST", "/api/v1/listings/"+sold+"/bids", "alice", map[string]any{"amount": "120"})

	if status, _ := a.call(t, "POST", "/api/v1/admin/sweep", "", nil); status != fiber.StatusForbidden {
		t.Fatalf("sweep without key: expected 403, got %d", status)
	}

	a.clock.Advance(25 * time.Hour)
	status, body := a.call(t, "POST", "/api/v1/admin/sweep", "", nil, "X-Admin-Key", adminKey)
	if status != fiber.StatusOK {
		t.Fatalf("sweep: %d %v", status, body)
	}
	if body["sold"] != float64(1) || body["expired"] != float64(1) || body["failed"] != float64(0) {
		t.Fatalf("unexpected report %v", body)
	}

	for id, want := range map[string]string{sold: "SOLD", expired: "EXPIRED"} {
		_, l := a.call(t, "GET", "/api/v1/listings/"+id, "", nil)
		if l["status"] != want {
			t.Fatalf("listing %s: status %v, want %s", id, l["status"], want)
		}
	}

	status, body = a.call(t, "GET", "/api/v1/admin/listings/"+sold+"/escrow", "", nil, "X-Admin-Key", adminKey)
	if status != fiber.StatusOK || len(entries(t, body, "holds")) != 0 {
		t.Fatalf("escrow after sale: %d %v", status, body)
	}
	deliveries := entries(t, body, "deliveries")
	if len(deliveries) != 2 {
		t.Fatalf("expected item and proceeds for the sale, got %v", deliveries)
	}
	byOwner := map[string]map[string]any{}
	for _, e := range deliveries {
		byOwner[e["owner_id"].(string)] = e
	}
	if e := byOwner["alice"]; e == nil || e["kind"] != "ITEM" || e["reason"] != "auction_won" {
		t.Fatalf("buyer delivery: %v", deliveries)
	}
	if e := byOwner["seller"]; e == nil || e["kind"] != "MONEY" || e["reason"] != "sale_proceeds" {
		t.Fatalf("seller delivery: %v", deliveries)
	}

	a.call(t, "POST", "/api/v1/collection/claim-all", "alice", nil)
	_, body = a.call(t, "GET", "/api/v1/admin/listings/"+sold+"/escrow", "", nil, "X-Admin-Key", adminKey)
	if d := entries(t, body, "deliveries"); len(d) != 1 || d[0]["owner_id"] != "seller" {
		t.Fatalf("deliveries after buyer claim: %v", d)
	}
}
