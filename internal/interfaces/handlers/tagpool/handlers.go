package tagpool

import (
	tagsvc "herdshare-backend/internal/application/tagpool"
	"herdshare-backend/internal/interfaces/httperr"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *tagsvc.Service
}

// POST /api/v1/admin/tag-pool/seed
func (h *Handlers) Seed(c *fiber.Ctx) error {
	var body struct {
		CountryCode string `json:"country_code"`
		Count       int    `json:"count"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	tags, err := h.Service.Seed(c.UserContext(), body.CountryCode, body.Count)
	if err != nil {
		return httperr.Write(c, err)
	}
	out := fiber.Map{"created": len(tags)}
	if len(tags) > 0 {
		out["first_label"] = tags[0].Label
		out["last_label"] = tags[len(tags)-1].Label
	}
	return response.SuccessCreated(c, "Tag pool seeded", out, nil)
}

// GET /api/v1/admin/tag-pool/:country_code/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(c.UserContext(), c.Params("country_code"))
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Tag pool stats fetched", stats, nil)
}
