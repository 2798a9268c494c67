package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
	"auctionhouse/internal/services"
	"auctionhouse/internal/validate"
)

type ListingHandler struct {
	AH        *services.AuctionHouse
	Increment decimal.Decimal
}

type createListingRequest struct {
	Material      string `json:"material"`
	DisplayName   string `json:"display_name"`
	Category      string `json:"category"`
	Item          []byte `json:"item"`
	StartPrice    string `json:"start_price"`
	BuyoutPrice   string `json:"buyout_price"`
	DurationHours int    `json:"duration_hours"`
}

// GET /api/v1/listings
func (h *ListingHandler) Active(c *fiber.Ctx) error {
	category, ok := validate.Category(c.Query("category"))
	if !ok {
		return badInput(c, "category", nil)
	}
	sort, ok := validate.Sort(c.Query("sort"))
	if !ok {
		return badInput(c, "sort", map[string]any{"value": c.Query("sort")})
	}
	page := validate.Page(c.Query("page"))
	ls, err := h.AH.ActiveListings(c.UserContext(), category, sort, page, validate.Size(c.Query("size")))
	if err != nil {
		return fail(c, "listings.list", err, map[string]any{"category": category})
	}
	return render(c, fiber.StatusOK, fiber.Map{"page": page, "listings": toListingViews(ls, h.Increment)})
}

// GET /api/v1/listings/search
func (h *ListingHandler) Search(c *fiber.Ctx) error {
	rawQ := c.Query("q")
	var q string
	if strings.TrimSpace(rawQ) != "" {
		var ok bool
		if q, ok = validate.Q(rawQ); !ok {
			return badInput(c, "q", map[string]any{"value": rawQ})
		}
	}
	sort, ok := validate.Sort(c.Query("sort"))
	if !ok {
		return badInput(c, "sort", nil)
	}
	page := validate.Page(c.Query("page"))
	ls, err := h.AH.SearchListings(c.UserContext(), q, sort, page, validate.Size(c.Query("size")))
	if err != nil {
		return fail(c, "listings.search", err, map[string]any{"q": q})
	}
	return render(c, fiber.StatusOK, fiber.Map{"q": q, "page": page, "listings": toListingViews(ls, h.Increment)})
}

// GET /api/v1/listings/:id
func (h *ListingHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	l, err := h.AH.Listing(c.UserContext(), id)
	if err != nil {
		return fail(c, "listings.get", err, map[string]any{"listing_id": id})
	}
	return render(c, fiber.StatusOK, toListingView(l, h.Increment))
}

// GET /api/v1/listings/:id/bids
func (h *ListingHandler) Bids(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "id", nil)
	}
	bids, err := h.AH.ListingBids(c.UserContext(), id)
	if err != nil {
		return fail(c, "listings.bids", err, map[string]any{"listing_id": id})
	}
	out := make([]bidView, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidView(b))
	}
	return render(c, fiber.StatusOK, fiber.Map{"listing_id": id, "bids": out})
}

// GET /api/v1/sellers/:id/listings
func (h *ListingHandler) BySeller(c *fiber.Ctx) error {
	seller, ok := validate.ID(c.Params("id"))
	if !ok {
		return badInput(c, "seller", nil)
	}
	sort, ok := validate.Sort(c.Query("sort"))
	if !ok {
		return badInput(c, "sort", nil)
	}
	page := validate.Page(c.Query("page"))
	ls, err := h.AH.SellerListings(c.UserContext(), seller, sort, page, validate.Size(c.Query("size")))
	if err != nil {
		return fail(c, "listings.seller", err, map[string]any{"seller_id": seller})
	}
	return render(c, fiber.StatusOK, fiber.Map{"page": page, "listings": toListingViews(ls, h.Increment)})
}

// POST /api/v1/listings
func (h *ListingHandler) Create(c *fiber.Ctx) error {
	p := player(c)
	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "body", nil)
	}
	material, ok := validate.Material(req.Material)
	if !ok {
		return badInput(c, "material", map[string]any{"value": req.Material})
	}
	category, ok := validate.Category(req.Category)
	if !ok {
		return badInput(c, "category", nil)
	}
	start, ok := validate.Amount(req.StartPrice)
	if !ok {
		return badInput(c, "start_price", map[string]any{"value": req.StartPrice})
	}
	var buyout decimal.NullDecimal
	if strings.TrimSpace(req.BuyoutPrice) != "" {
		b, ok := validate.Amount(req.BuyoutPrice)
		if !ok {
			return badInput(c, "buyout_price", map[string]any{"value": req.BuyoutPrice})
		}
		buyout = decimal.NewNullDecimal(b)
	}
	if !validate.Hours(req.DurationHours) {
		return badInput(c, "duration_hours", map[string]any{"value": req.DurationHours})
	}
	display, ok := validate.Name(req.DisplayName)
	if !ok {
		display = material
	}

	l, err := h.AH.CreateListing(c.UserContext(), services.CreateListingInput{
		SellerID:   p.ID,
		SellerName: p.Name,
		Item: domain.Item{
			Blob:        req.Item,
			Material:    material,
			DisplayName: display,
			Category:    category,
		},
		StartPrice:    start,
		BuyoutPrice:   buyout,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		return fail(c, "listings.create", err, map[string]any{"seller_id": p.ID, "material": material})
	}
	applog.Audit(c, "listings.create", map[string]any{"listing_id": l.ID, "seller_id": p.ID})
	return render(c, fiber.StatusCreated, toListingView(l, h.Increment))
}
