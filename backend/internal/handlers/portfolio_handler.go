package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/user/papertrade/backend/internal/money"
)

// PositionView is a portfolio row with display strings.
type PositionView struct {
	Symbol             string          `json:"symbol"`
	CompanyName        string          `json:"company_name"`
	Shares             int64           `json:"shares"`
	Price              decimal.Decimal `json:"price"`
	PriceDisplay       string          `json:"price_display"`
	MarketValue        decimal.Decimal `json:"market_value"`
	MarketValueDisplay string          `json:"market_value_display"`
}

// PortfolioView is the valued portfolio of the caller.
type PortfolioView struct {
	Positions    []PositionView  `json:"positions"`
	Cash         decimal.Decimal `json:"cash"`
	CashDisplay  string          `json:"cash_display"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"total_display"`
}

// HistoryView is one transaction of the caller.
type HistoryView struct {
	Symbol       string          `json:"symbol"`
	Shares       int64           `json:"shares"`
	Price        decimal.Decimal `json:"price"`
	PriceDisplay string          `json:"price_display"`
	TransactedAt time.Time       `json:"transacted_at"`
}

// Portfolio values the caller's holdings at current quotes.
func (h *Handler) Portfolio(c *fiber.Ctx) error {
	userID, ok := user(c)
	if !ok {
		return unauthorized(c)
	}

	p, err := h.engine.Portfolio(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	view := PortfolioView{
		Positions:    make([]PositionView, 0, len(p.Positions)),
		Cash:         p.Cash,
		CashDisplay:  money.USD(p.Cash),
		Total:        p.Total,
		TotalDisplay: money.USD(p.Total),
	}
	for _, pos := range p.Positions {
		view.Positions = append(view.Positions, PositionView{
			Symbol:             pos.Symbol,
			CompanyName:        pos.CompanyName,
			Shares:             pos.Shares,
			Price:              pos.Price,
			PriceDisplay:       money.USD(pos.Price),
			MarketValue:        pos.MarketValue,
			MarketValueDisplay: money.USD(pos.MarketValue),
		})
	}
	return c.JSON(view)
}

// History lists the caller's transactions, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	userID, ok := user(c)
	if !ok {
		return unauthorized(c)
	}

	records, err := h.engine.History(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	views := make([]HistoryView, 0, len(records))
	for _, rec := range records {
		views = append(views, HistoryView{
			Symbol:       rec.Symbol,
			Shares:       rec.Shares,
			Price:        rec.Price,
			PriceDisplay: money.USD(rec.Price),
			TransactedAt: rec.TransactedAt,
		})
	}
	return c.JSON(views)
}
