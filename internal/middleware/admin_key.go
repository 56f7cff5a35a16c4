package middleware

import (
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey lets operator tooling call admin routes without a session. The key is checked
// against a bcrypt hash. With an empty hash the header is ignored and the request must
// carry a session with the route's permission instead.
func AdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AdminKeyHeader)
		if key == "" || hash == "" {
			return c.Next()
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			return response.Error(c, "Invalid admin key", fiber.StatusUnauthorized, nil)
		}
		c.Locals(adminKeyLocal, true)
		return c.Next()
	}
}

const adminKeyLocal = "admin_key"

// IsAdminKey reports whether the request authenticated with the admin key.
func IsAdminKey(c *fiber.Ctx) bool {
	ok, _ := c.Locals(adminKeyLocal).(bool)
	return ok
}
