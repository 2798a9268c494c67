package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "auctionhouse/internal/log"
	"auctionhouse/internal/services"
	"auctionhouse/internal/validate"
)

type BidHandler struct {
	AH *services.AuctionHouse
}

type placeBidRequest struct {
	Amount string `json:"amount"`
}

// POST /api/v1/listings/:id/bids
func (h *BidHandler) Place(c *fiber.Ctx) error {
	p := player(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "body", nil)
	}
	amount, ok := validate.Amount(req.Amount)
	if !ok {
		return badInput(c, "amount", map[string]any{"value": req.Amount})
	}
	bid, err := h.AH.PlaceBid(c.UserContext(), services.PlaceBidInput{
		ListingID:  id,
		BidderID:   p.ID,
		BidderName: p.Name,
		Amount:     amount,
	})
	if err != nil {
		return fail(c, "bids.place", err, map[string]any{"listing_id": id, "bidder_id": p.ID, "amount": amount.String()})
	}
	return render(c, fiber.StatusCreated, toBidView(bid))
}

// POST /api/v1/listings/:id/buy
func (h *BidHandler) Buy(c *fiber.Ctx) error {
	p := player(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	tx, err := h.AH.BuyNow(c.UserContext(), services.BuyNowInput{ListingID: id, BuyerID: p.ID, BuyerName: p.Name})
	if err != nil {
		return fail(c, "listings.buy", err, map[string]any{"listing_id": id, "buyer_id": p.ID})
	}
	return render(c, fiber.StatusOK, toTransactionView(tx))
}

// POST /api/v1/listings/:id/cancel
func (h *BidHandler) Cancel(c *fiber.Ctx) error {
	p := player(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	admin := isAdmin(c)
	err := h.AH.CancelListing(c.UserContext(), services.CancelInput{ListingID: id, ActorID: p.ID, Admin: admin})
	if err != nil {
		return fail(c, "listings.cancel", err, map[string]any{"listing_id": id, "actor_id": p.ID, "admin": admin})
	}
	if admin {
		applog.Audit(c, "admin.listings.cancel", map[string]any{"listing_id": id, "actor_id": p.ID})
	}
	return render(c, fiber.StatusOK, fiber.Map{"listing_id": id, "status": "CANCELLED"})
}
