package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a user account
type User struct {
	ID        uuid.UUID       `json:"id"`
	Username  string          `json:"username"`
	Password  string          `json:"-"` // Store hash, exclude from JSON responses
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
}

// Lot is one purchase of shares. A user may hold several lots of a symbol.
type Lot struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Symbol      string    `json:"symbol"`
	CompanyName string    `json:"company_name"`
	Shares      int64     `json:"shares"`
}

// Holding is the aggregate of all lots of one symbol.
type Holding struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name"`
	Shares      int64  `json:"shares"`
}

// HistoryRecord is an immutable entry of the transaction log.
// Shares is positive for a buy and negative for a sell.
type HistoryRecord struct {
	ID           int64           `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Shares       int64           `json:"shares"`
	TransactedAt time.Time       `json:"transacted_at"`
}

// Quote is a price snapshot for a symbol at lookup time.
type Quote struct {
	Name   string          `json:"name"`
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}
