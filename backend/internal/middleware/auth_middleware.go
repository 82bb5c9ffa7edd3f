package middleware

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/user/papertrade/backend/internal/auth"
)

const (
	localUserID   = "userID"
	localUsername = "username"
)

// Protected is a middleware function to verify JWT authentication.
func Protected(tokens *auth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization header format"})
		}

		claims, err := tokens.Validate(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localUsername, claims.Username)
		return c.Next()
	}
}

// CurrentUser returns the identity stored by Protected.
func CurrentUser(c *fiber.Ctx) (uuid.UUID, string, bool) {
	userID, ok := c.Locals(localUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	username, _ := c.Locals(localUsername).(string)
	return userID, username, true
}

// WebSocketUpgrade rejects non-upgrade requests to websocket routes.
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
