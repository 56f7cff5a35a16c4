package offerings

import (
	"time"

	offsvc "herdshare-backend/internal/application/offerings"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/interfaces/httperr"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *offsvc.Service
	// DefaultCurrency applies when an open request omits currency.
	DefaultCurrency string
}

type openBody struct {
	AssetID       string              `json:"asset_id"`
	TotalShares   int64               `json:"total_shares"`
	PricePerShare decimal.Decimal     `json:"price_per_share"`
	TokenPrice    decimal.Decimal     `json:"token_price"`
	GoLiveAt      *time.Time          `json:"go_live_at"`
	CloseAt       *time.Time          `json:"close_at"`
	CountryCode   string              `json:"country_code"`
	Currency      string              `json:"currency"`
	Meta          domain.OfferingMeta `json:"meta"`
}

// POST /api/v1/admin/offerings
func (h *Handlers) Open(c *fiber.Ctx) error {
	var body openBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	assetID, err := uuid.Parse(body.AssetID)
	if err != nil {
		return response.BadRequest(c, "Invalid asset_id")
	}
	goLive := time.Now().UTC()
	if body.GoLiveAt != nil {
		goLive = *body.GoLiveAt
	}
	currency := body.Currency
	if currency == "" {
		currency = h.DefaultCurrency
	}
	offering, err := h.Service.Open(c.UserContext(), offsvc.OpenParams{
		AssetID:       assetID,
		TotalShares:   body.TotalShares,
		PricePerShare: body.PricePerShare,
		TokenPrice:    body.TokenPrice,
		GoLiveAt:      goLive,
		CloseAt:       body.CloseAt,
		CountryCode:   body.CountryCode,
		Currency:      currency,
		Meta:          body.Meta,
	})
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.SuccessCreated(c, "Offering opened successfully", offering, nil)
}

// POST /api/v1/admin/offerings/:id/close
func (h *Handlers) Close(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid offering id")
	}
	offering, err := h.Service.Close(c.UserContext(), id)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Offering closed", offering, nil)
}

// GET /api/v1/offerings?status=live
func (h *Handlers) List(c *fiber.Ctx) error {
	status := domain.OfferingStatus(c.Query("status"))
	switch status {
	case "", domain.OfferingDraft, domain.OfferingLive, domain.OfferingClosed:
	default:
		return response.BadRequest(c, "Invalid status filter")
	}
	list, err := h.Service.List(c.UserContext(), status)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Offerings fetched successfully", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/offerings/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid offering id")
	}
	offering, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Offering fetched successfully", offering, nil)
}

// GET /api/v1/offerings/:id/availability
func (h *Handlers) Availability(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid offering id")
	}
	av, err := h.Service.Availability(c.UserContext(), id)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Availability fetched successfully", av, nil)
}
