package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "auctionhouse/internal/log"
	"auctionhouse/internal/services"
	"auctionhouse/internal/validate"
)

type CollectionHandler struct {
	AH *services.AuctionHouse
}

// GET /api/v1/collection
func (h *CollectionHandler) List(c *fiber.Ctx) error {
	p := player(c)
	entries, err := h.AH.Collection(c.UserContext(), p.ID)
	if err != nil {
		return fail(c, "collection.list", err, map[string]any{"player_id": p.ID})
	}
	return render(c, fiber.StatusOK, fiber.Map{"pending": len(entries), "entries": toEntryViews(entries)})
}

// POST /api/v1/collection/:id/claim
func (h *CollectionHandler) Claim(c *fiber.Ctx) error {
	p := player(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	e, err := h.AH.ClaimCollectionEntry(c.UserContext(), p.ID, id)
	if err != nil {
		return fail(c, "collection.claim", err, map[string]any{"player_id": p.ID, "entry_id": id})
	}
	return render(c, fiber.StatusOK, toEntryView(e))
}

// POST /api/v1/collection/claim-all
func (h *CollectionHandler) ClaimAll(c *fiber.Ctx) error {
	p := player(c)
	claimed, err := h.AH.ClaimAll(c.UserContext(), p.ID)
	if err != nil && len(claimed) == 0 {
		return fail(c, "collection.claim_all", err, map[string]any{"player_id": p.ID})
	}
	incomplete := err != nil
	if incomplete {
		applog.Warn(c, "collection.claim_all.partial", err, map[string]any{"player_id": p.ID, "claimed": len(claimed)})
	}
	return render(c, fiber.StatusOK, fiber.Map{"claimed": toEntryViews(claimed), "incomplete": incomplete})
}

// GET /api/v1/balance
func (h *CollectionHandler) Balance(c *fiber.Ctx) error {
	p := player(c)
	bal, err := h.AH.Balance(c.UserContext(), p.ID)
	if err != nil {
		return fail(c, "balance.get", err, map[string]any{"player_id": p.ID})
	}
	return render(c, fiber.StatusOK, fiber.Map{"player_id": p.ID, "balance": bal})
}
