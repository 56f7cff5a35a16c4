package holdings

import (
	holdsvc "herdshare-backend/internal/application/holdings"
	"herdshare-backend/internal/interfaces/httperr"
	"herdshare-backend/internal/middleware"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Ledger *holdsvc.Ledger
}

// GET /api/v1/buyers/:id/holdings
func (h *Handlers) ByBuyer(c *fiber.Ctx) error {
	buyerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid buyer id")
	}
	if !middleware.CanActFor(c, buyerID) {
		return response.Forbidden(c)
	}
	list, err := h.Ledger.ListByBuyer(c.UserContext(), buyerID)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Holdings fetched successfully", list, fiber.Map{"count": len(list)})
}

func pair(c *fiber.Ctx) (uuid.UUID, uuid.UUID, bool) {
	buyerID, err := uuid.Parse(c.Query("buyer_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	offeringID, err := uuid.Parse(c.Query("offering_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return buyerID, offeringID, true
}

// GET /api/v1/admin/holdings/verify?buyer_id=&offering_id=
func (h *Handlers) Verify(c *fiber.Ctx) error {
	buyerID, offeringID, ok := pair(c)
	if !ok {
		return response.BadRequest(c, "buyer_id and offering_id are required")
	}
	drift, err := h.Ledger.Verify(c.UserContext(), buyerID, offeringID)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Holding verified", drift, nil)
}

// POST /api/v1/admin/holdings/rebuild?buyer_id=&offering_id=
func (h *Handlers) Rebuild(c *fiber.Ctx) error {
	buyerID, offeringID, ok := pair(c)
	if !ok {
		return response.BadRequest(c, "buyer_id and offering_id are required")
	}
	holding, err := h.Ledger.Rebuild(c.UserContext(), nil, buyerID, offeringID)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Holding rebuilt", holding, nil)
}
