package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "auctionhouse/internal/log"
	"auctionhouse/internal/services"
	"auctionhouse/internal/validate"
)

type AdminHandler struct {
	Sweeper *services.ExpirySweeper
	Escrow  *services.EscrowLedger
	Mailbox *services.CollectionMailbox
}

type deliveryView struct {
	OwnerID string `json:"owner_id"`
	entryView
}

// POST /api/v1/admin/sweep runs one sweeper pass now.
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	report, err := h.Sweeper.RunPass(c.UserContext())
	if errors.Is(err, services.ErrSweepInProgress) {
		return reject(c, fiber.StatusConflict, codeConflict, err.Error())
	}
	if err != nil {
		applog.Error(c, "admin.sweep.fail", err, nil)
		return reject(c, fiber.StatusInternalServerError, codeInternal, genericFailure)
	}
	applog.Audit(c, "admin.sweep", map[string]any{
		"extended": report.Extended, "sold": report.Sold, "expired": report.Expired,
		"failed": report.Failed, "orphans_refunded": report.OrphansRefunded,
	})
	return render(c, fiber.StatusOK, fiber.Map{
		"extended":         report.Extended,
		"sold":             report.Sold,
		"expired":          report.Expired,
		"skipped":          report.Skipped,
		"failed":           report.Failed,
		"orphans_refunded": report.OrphansRefunded,
	})
}

// GET /api/v1/admin/listings/:id/escrow reports the holds still open on a
// listing and the mailbox entries it has produced that nobody has claimed.
func (h *AdminHandler) Holds(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	holds, err := h.Escrow.Outstanding(c.UserContext(), id)
	if err != nil {
		return fail(c, "admin.escrow", err, map[string]any{"listing_id": id})
	}
	out := make([]fiber.Map, 0, len(holds))
	for _, hold := range holds {
		out = append(out, fiber.Map{"bidder_id": hold.BidderID, "amount": money(hold.Amount), "created_at": hold.CreatedAt})
	}
	entries, err := h.Mailbox.ForListing(c.UserContext(), id)
	if err != nil {
		return fail(c, "admin.deliveries", err, map[string]any{"listing_id": id})
	}
	deliveries := make([]deliveryView, 0, len(entries))
	for _, e := range entries {
		deliveries = append(deliveries, deliveryView{OwnerID: e.OwnerID, entryView: toEntryView(e)})
	}
	return render(c, fiber.StatusOK, fiber.Map{"listing_id": id, "holds": out, "deliveries": deliveries})
}
