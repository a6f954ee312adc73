package middleware

import (
	"strings"

	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
)

// RequireAuth validates the bearer token against the stored session and sets
// the caller's identity in context. Browsers cannot set headers on a
// websocket upgrade, so a ?token= query parameter is accepted as well.
func RequireAuth(authService service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Query("token")

		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
			}
			tokenString = parts[1]
		}

		user, err := authService.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			return c.Status(apperror.HTTPStatus(err)).JSON(fiber.Map{"error": apperror.Message(err)})
		}

		c.Locals(LocalUserID, user.ID.String())
		c.Locals(LocalUsername, user.Username)

		return c.Next()
	}
}
