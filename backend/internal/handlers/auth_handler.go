package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/models"
)

// RegisterRequest defines the expected body for registration
type RegisterRequest struct {
	Username     string `json:"username" form:"username"`
	Password     string `json:"password" form:"password"`
	Confirmation string `json:"confirmation" form:"confirmation"`
}

// LoginRequest defines the expected body for login
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// PasswordRequest defines the expected body for a password change
type PasswordRequest struct {
	Current      string `json:"current" form:"current"`
	New          string `json:"new" form:"new"`
	Confirmation string `json:"confirmation" form:"confirmation"`
}

// AuthResponse defines the JSON response for successful auth
type AuthResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	IssuedAt time.Time    `json:"issued_at"`
}

// Register creates an account and logs it in.
func (h *Handler) Register(c *fiber.Ctx) error {
	req := new(RegisterRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("Cannot parse request body"))
	}

	newUser, err := h.accounts.Register(c.UserContext(), req.Username, req.Password, req.Confirmation)
	if err != nil {
		return h.fail(c, err)
	}
	return h.issue(c, fiber.StatusCreated, newUser)
}

// Login handles user authentication.
func (h *Handler) Login(c *fiber.Ctx) error {
	req := new(LoginRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("Cannot parse request body"))
	}

	u, err := h.accounts.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return h.issue(c, fiber.StatusOK, u)
}

func (h *Handler) issue(c *fiber.Ctx, status int, u *models.User) error {
	token, err := h.tokens.Generate(u.ID, u.Username)
	if err != nil {
		h.log.Error("Error generating JWT", zap.String("username", u.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("Failed to generate token"))
	}

	// Don't send password hash back
	u.Password = ""

	return c.Status(status).JSON(AuthResponse{
		Token:    token,
		User:     u,
		IssuedAt: time.Now(),
	})
}

// Logout acknowledges a logout. Tokens are stateless, the client discards its own.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if _, ok := user(c); !ok {
		return unauthorized(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangePassword replaces the caller's password.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := user(c)
	if !ok {
		return unauthorized(c)
	}

	req := new(PasswordRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("Cannot parse request body"))
	}

	if err := h.accounts.ChangePassword(c.UserContext(), userID, req.Current, req.New, req.Confirmation); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
