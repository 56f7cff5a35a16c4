package middleware

import (
	"herdshare-backend/internal/constants"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session or the request carries the admin key.
// Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if IsAdminKey(c) {
			return c.Next()
		}
		user := c.Locals(userLocal)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals("auth", user)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// CurrentUser decodes the session user. ok is false when nobody is logged in or the
// session lacks a valid user id.
func CurrentUser(c *fiber.Ctx) (SessionUser, bool) {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return SessionUser{}, false
	}
	u := SessionUser{}
	u.UserID, _ = m["user_id"].(string)
	u.Fullname, _ = m["fullname"].(string)
	u.Email, _ = m["email"].(string)
	u.Role, _ = m["role"].(string)
	if _, err := uuid.Parse(u.UserID); err != nil {
		return SessionUser{}, false
	}
	return u, true
}

// CanActFor reports whether the caller may act on buyerID's orders and holdings.
func CanActFor(c *fiber.Ctx, buyerID uuid.UUID) bool {
	if IsAdminKey(c) {
		return true
	}
	u, ok := CurrentUser(c)
	if !ok {
		return false
	}
	if constants.ActsForOthers(u.Role) {
		return true
	}
	return u.UserID == buyerID.String()
}
