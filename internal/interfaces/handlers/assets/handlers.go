package assets

import (
	assetsvc "herdshare-backend/internal/application/assets"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/interfaces/httperr"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *assetsvc.Service
}

// POST /api/v1/admin/assets
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body struct {
		Type string           `json:"type"`
		Name string           `json:"name"`
		Meta domain.AssetMeta `json:"meta"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	asset, err := h.Service.Create(c.UserContext(), body.Type, body.Name, body.Meta)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.SuccessCreated(c, "Asset created successfully", asset, nil)
}

// GET /api/v1/assets?type=livestock
func (h *Handlers) List(c *fiber.Ctx) error {
	list, err := h.Service.List(c.UserContext(), c.Query("type"))
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Assets fetched successfully", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/assets/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid asset id")
	}
	asset, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Asset fetched successfully", asset, nil)
}

// PATCH /api/v1/admin/assets/:id
// Type is immutable; a "type" key in the body is rejected rather than ignored.
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid asset id")
	}
	var body struct {
		Type *string           `json:"type"`
		Name *string           `json:"name"`
		Meta *domain.AssetMeta `json:"meta"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if body.Type != nil {
		return response.BadRequest(c, "Asset type cannot be changed")
	}
	asset, err := h.Service.UpdateDetails(c.UserContext(), id, body.Name, body.Meta)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Asset updated successfully", asset, nil)
}
