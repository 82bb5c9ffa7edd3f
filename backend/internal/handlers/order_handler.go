package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/money"
)

// sharesField keeps the raw text of the shares field so that the ledger
// validator sees exactly what the client sent, number or string.
type sharesField string

func (s *sharesField) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = sharesField(str)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = sharesField(b)
	return nil
}

// OrderRequest defines the expected body for buy and sell orders
type OrderRequest struct {
	Symbol string      `json:"symbol" form:"symbol"`
	Shares sharesField `json:"shares" form:"shares"`
}

// OrderResponse describes an applied order.
type OrderResponse struct {
	*ledger.Receipt
	NewCashDisplay string `json:"new_cash_display"`
}

// Quote handles symbol lookups.
func (h *Handler) Quote(c *fiber.Ctx) error {
	q, err := h.engine.Quote(c.UserContext(), c.Params("symbol"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"name":          q.Name,
		"symbol":        q.Symbol,
		"price":         q.Price,
		"price_display": money.USD(q.Price),
	})
}

// Buy handles buy orders.
func (h *Handler) Buy(c *fiber.Ctx) error {
	return h.order(c, "buy", h.engine.Buy)
}

// Sell handles sell orders.
func (h *Handler) Sell(c *fiber.Ctx) error {
	return h.order(c, "sell", h.engine.Sell)
}

type executor func(ctx context.Context, userID uuid.UUID, symbol, shares string) (*ledger.Receipt, error)

func (h *Handler) order(c *fiber.Ctx, side string, exec executor) error {
	userID, ok := user(c)
	if !ok {
		return unauthorized(c)
	}

	req := new(OrderRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("Cannot parse request body"))
	}

	receipt, err := exec(c.UserContext(), userID, req.Symbol, string(req.Shares))
	if err != nil {
		return h.fail(c, err)
	}

	resp := OrderResponse{Receipt: receipt, NewCashDisplay: money.USD(receipt.NewCash)}
	if h.hub != nil {
		h.hub.PublishToUser(userID, side, resp)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// SellableSymbols lists the symbols the caller can sell.
func (h *Handler) SellableSymbols(c *fiber.Ctx) error {
	userID, ok := user(c)
	if !ok {
		return unauthorized(c)
	}

	symbols, err := h.engine.SellableSymbols(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"symbols": symbols})
}
