// Package handlers exposes the ledger and account operations over HTTP.
package handlers

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/auth"
	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/middleware"
	ws "github.com/user/papertrade/backend/internal/websocket"
)

// Handler holds the dependencies of every route.
type Handler struct {
	engine   *ledger.Engine
	accounts *auth.Service
	tokens   *auth.Tokens
	hub      *ws.Hub
	log      *zap.Logger
}

// New creates the route handlers. hub may be nil when live feeds are disabled.
func New(engine *ledger.Engine, accounts *auth.Service, tokens *auth.Tokens, hub *ws.Hub, log *zap.Logger) *Handler {
	return &Handler{engine: engine, accounts: accounts, tokens: tokens, hub: hub, log: log}
}

// Routes mounts the API and websocket routes on app.
func (h *Handler) Routes(app *fiber.App) {
	if h.hub != nil {
		wsGroup := app.Group("/ws", middleware.WebSocketUpgrade())
		wsGroup.Get("/prices", websocket.New(h.PriceFeed))
		wsGroup.Get("/ledger", h.authorizeSocket, websocket.New(h.LedgerFeed))
	}

	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("papertrade API is healthy!")
	})

	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)

	// Everything below requires a valid token.
	api.Use(middleware.Protected(h.tokens))

	authGroup.Post("/logout", h.Logout)
	authGroup.Post("/password", h.ChangePassword)

	api.Get("/quote/:symbol", h.Quote)
	api.Get("/portfolio", h.Portfolio)
	api.Post("/buy", h.Buy)
	api.Get("/sell", h.SellableSymbols)
	api.Post("/sell", h.Sell)
	api.Get("/history", h.History)
}

func errorBody(message string) fiber.Map {
	return fiber.Map{"error": message}
}

// user returns the authenticated user id set by middleware.Protected.
func user(c *fiber.Ctx) (uuid.UUID, bool) {
	userID, _, ok := middleware.CurrentUser(c)
	return userID, ok
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(errorBody("Invalid user ID in token"))
}

// fail maps an error of the ledger or account layer to a response.
// Dependency failures are logged and answered with a generic message.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	if r, ok := ledger.AsRejection(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": r.Message, "code": r.Code})
	}

	var formErr *auth.FormError
	switch {
	case errors.As(err, &formErr):
		return c.Status(fiber.StatusBadRequest).JSON(errorBody(formErr.Message))
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody("Invalid username and/or password"))
	case errors.Is(err, auth.ErrInvalidPassword):
		return c.Status(fiber.StatusForbidden).JSON(errorBody("Invalid password"))
	case errors.Is(err, auth.ErrUsernameTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already taken", "code": "USERNAME_TAKEN"})
	case errors.Is(err, ledger.ErrUserNotFound):
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody("Unknown user"))
	case errors.Is(err, ledger.ErrQuoteUnavailable):
		h.log.Error("Quote provider failure", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorBody("Quote service unavailable"))
	}

	h.log.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody("Internal server error"))
}
