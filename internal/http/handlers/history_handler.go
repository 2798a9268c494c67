package handlers

import (
	"github.com/gofiber/fiber/v2"

	"auctionhouse/internal/services"
	"auctionhouse/internal/validate"
)

type HistoryHandler struct {
	AH *services.AuctionHouse
}

// GET /api/v1/transactions
func (h *HistoryHandler) Transactions(c *fiber.Ctx) error {
	p := player(c)
	page := validate.Page(c.Query("page"))
	txs, err := h.AH.TransactionHistory(c.UserContext(), p.ID, page, validate.Size(c.Query("size")))
	if err != nil {
		return fail(c, "transactions.list", err, map[string]any{"player_id": p.ID})
	}
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionView(t))
	}
	return render(c, fiber.StatusOK, fiber.Map{"page": page, "transactions": out})
}

// GET /api/v1/prices/:material
func (h *HistoryHandler) Prices(c *fiber.Ctx) error {
	material, ok := validate.Material(c.Params("material"))
	if !ok {
		return badInput(c, "material", nil)
	}
	days := validate.Days(c.Query("days"))
	points := []pricePointView{}
	for p, err := range h.AH.PriceHistory(c.UserContext(), material, days) {
		if err != nil {
			return fail(c, "prices.history", err, map[string]any{"material": material})
		}
		points = append(points, toPricePointView(p))
	}
	return render(c, fiber.StatusOK, fiber.Map{"material": material, "days": days, "points": points})
}

// GET /api/v1/prices/:material/summary
func (h *HistoryHandler) Summary(c *fiber.Ctx) error {
	material, ok := validate.Material(c.Params("material"))
	if !ok {
		return badInput(c, "material", nil)
	}
	days := validate.Days(c.Query("days"))
	s, err := h.AH.PriceSummary(c.UserContext(), material, days)
	if err != nil {
		return fail(c, "prices.summary", err, map[string]any{"material": material})
	}
	return render(c, fiber.StatusOK, fiber.Map{"material": material, "days": days, "summary": toPricePointView(s)})
}
