package orders

import (
	"strings"

	"herdshare-backend/internal/application/allocation"
	"herdshare-backend/internal/application/checkout"
	"herdshare-backend/internal/application/journal"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/interfaces/httperr"
	"herdshare-backend/internal/middleware"
	"herdshare-backend/internal/pkg/ids"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	defaultOrderListLimit = 50
	maxPaymentIntentLen   = 255
)

type Handlers struct {
	Checkout *checkout.Service
	Engine   *allocation.Engine
	Journal  *journal.Journal
}

type placeBody struct {
	Tokens          int64             `json:"tokens"`
	PaymentIntentID string            `json:"payment_intent_id"`
	BuyerID         string            `json:"buyer_id"`
	Related         domain.RelatedRef `json:"related"`
}

// POST /api/v1/offerings/:id/orders
// The buyer defaults to the session user; staff and admin-key callers may place for others.
func (h *Handlers) Place(c *fiber.Ctx) error {
	offeringID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid offering id")
	}
	var body placeBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var buyerID uuid.UUID
	if body.BuyerID != "" {
		buyerID, err = uuid.Parse(body.BuyerID)
		if err != nil {
			return response.BadRequest(c, "Invalid buyer_id")
		}
	} else if u, ok := middleware.CurrentUser(c); ok {
		buyerID = uuid.MustParse(u.UserID)
	} else {
		return response.BadRequest(c, "buyer_id is required")
	}
	if !middleware.CanActFor(c, buyerID) {
		return response.Forbidden(c)
	}

	res, err := h.Checkout.Checkout(c.UserContext(), checkout.Request{
		BuyerID:         buyerID,
		OfferingID:      offeringID,
		Tokens:          body.Tokens,
		PaymentIntentID: body.PaymentIntentID,
		Related:         body.Related,
	})
	if err != nil {
		return httperr.Write(c, err)
	}
	if res.Replayed {
		return response.Success(c, "Order already placed for this payment", res, nil)
	}
	return response.SuccessCreated(c, "Order placed successfully", res, nil)
}

// GET /api/v1/orders/:order_number
func (h *Handlers) Get(c *fiber.Ctx) error {
	orderNumber := c.Params("order_number")
	if !ids.IsOrderNumber(orderNumber) {
		return response.BadRequest(c, "Invalid order number")
	}
	order, err := h.Journal.FindByOrderNumber(c.UserContext(), nil, orderNumber)
	if err != nil {
		return httperr.Write(c, err)
	}
	if !middleware.CanActFor(c, order.BuyerID) {
		// Do not reveal other buyers' order numbers.
		return httperr.Write(c, domain.ErrOrderNotFound)
	}
	return response.Success(c, "Order fetched successfully", order, nil)
}

// GET /api/v1/orders/:order_number/events
func (h *Handlers) Events(c *fiber.Ctx) error {
	orderNumber := c.Params("order_number")
	if !ids.IsOrderNumber(orderNumber) {
		return response.BadRequest(c, "Invalid order number")
	}
	events, err := h.Journal.Events(c.UserContext(), orderNumber)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Order events fetched successfully", events, fiber.Map{"count": len(events)})
}

// GET /api/v1/payments/:payment_intent_id/events
// Covers rejected attempts, which are journaled under the intent without an order number.
func (h *Handlers) IntentEvents(c *fiber.Ctx) error {
	intentID := strings.TrimSpace(c.Params("payment_intent_id"))
	if intentID == "" || len(intentID) > maxPaymentIntentLen {
		return response.BadRequest(c, "Invalid payment intent id")
	}
	events, err := h.Journal.EventsByPaymentIntent(c.UserContext(), intentID)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Payment intent events fetched successfully", events, fiber.Map{"count": len(events)})
}

// GET /api/v1/buyers/:id/orders
func (h *Handlers) ByBuyer(c *fiber.Ctx) error {
	buyerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid buyer id")
	}
	if !middleware.CanActFor(c, buyerID) {
		return response.Forbidden(c)
	}
	limit := c.QueryInt("limit", defaultOrderListLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultOrderListLimit
	}
	list, err := h.Journal.OrdersByBuyer(c.UserContext(), buyerID, limit)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Orders fetched successfully", list, fiber.Map{"count": len(list)})
}

// POST /api/v1/orders/:order_number/confirm
func (h *Handlers) Confirm(c *fiber.Ctx) error {
	var body struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	order, err := h.Engine.ConfirmOrder(c.UserContext(), c.Params("order_number"), body.PaymentIntentID)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Order confirmed", order, nil)
}

// POST /api/v1/orders/:order_number/release
func (h *Handlers) Release(c *fiber.Ctx) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if body.Reason == "" {
		body.Reason = domain.ReleaseExpired
	}
	order, err := h.Engine.ReleaseOrder(c.UserContext(), c.Params("order_number"), body.Reason)
	if err != nil {
		return httperr.Write(c, err)
	}
	return response.Success(c, "Order released", order, nil)
}
