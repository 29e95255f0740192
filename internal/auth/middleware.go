package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Identity is what the middleware leaves on the request for handlers.
type Identity struct {
	UserID   string
	Username string
}

// Middleware returns a Fiber middleware that validates bearer tokens and
// sets the caller's Identity on the request.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return unauthorized(c, "Missing auth token.")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return unauthorized(c, "Invalid auth header format.")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return unauthorized(c, "Invalid or expired token.")
		}

		c.Locals("identity", &Identity{
			UserID:   claims.Subject,
			Username: claims.Username,
		})
		return c.Next()
	}
}

// GetIdentity extracts the Identity from a Fiber context, or nil.
func GetIdentity(c *fiber.Ctx) *Identity {
	id, _ := c.Locals("identity").(*Identity)
	return id
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"errorCode": "ERROR_UNAUTHORIZED",
		"message":   msg,
	})
}
