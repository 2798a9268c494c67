package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Register mounts the JSON API on app.
func Register(app *fiber.App, d *Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	api := app.Group("/api/v1")
	requirePlayer := RequirePlayer()

	// Public reads
	api.Get("/listings", d.ListingHandler.Active)
	api.Get("/listings/search", limiter.New(limiter.Config{Max: 20, Expiration: time.Minute}), d.ListingHandler.Search)
	api.Get("/listings/:id", d.ListingHandler.Get)
	api.Get("/listings/:id/bids", d.ListingHandler.Bids)
	api.Get("/sellers/:id/listings", d.ListingHandler.BySeller)
	api.Get("/prices/:material", d.HistoryHandler.Prices)
	api.Get("/prices/:material/summary", d.HistoryHandler.Summary)

	// Player actions
	api.Post("/listings", requirePlayer, d.ListingHandler.Create)
	api.Post("/listings/:id/bids", requirePlayer, d.BidHandler.Place)
	api.Post("/listings/:id/buy", requirePlayer, d.BidHandler.Buy)
	api.Post("/listings/:id/cancel", requirePlayer, DetectAdmin(d.AdminKeyHash), d.BidHandler.Cancel)
	api.Get("/collection", requirePlayer, d.CollectionHandler.List)
	api.Post("/collection/claim-all", requirePlayer, d.CollectionHandler.ClaimAll)
	api.Post("/collection/:id/claim", requirePlayer, d.CollectionHandler.Claim)
	api.Get("/balance", requirePlayer, d.CollectionHandler.Balance)
	api.Get("/transactions", requirePlayer, d.HistoryHandler.Transactions)

	// Admin
	admin := RequireAdmin(d.AdminKeyHash)
	api.Post("/admin/sweep", admin, d.AdminHandler.Sweep)
	api.Get("/admin/listings/:id/escrow", admin, d.AdminHandler.Holds)

	// 404 fallback
	app.Use(func(c *fiber.Ctx) error {
		return reject(c, fiber.StatusNotFound, codeNotFound, "not found")
	})
}
