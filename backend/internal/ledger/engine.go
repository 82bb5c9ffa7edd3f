// Package ledger validates and applies trading orders against a user's cash
// and holdings, and values portfolios at current quotes.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/models"
	"github.com/user/papertrade/backend/internal/quote"
)

// Receipt describes an APPLIED order.
type Receipt struct {
	NewCash decimal.Decimal      `json:"new_cash"`
	Entry   models.HistoryRecord `json:"history_entry"`
}

// Position is one valued row of a portfolio.
type Position struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Shares      int64           `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// Portfolio is a user's holdings valued at current quotes.
type Portfolio struct {
	Positions []Position      `json:"positions"`
	Cash      decimal.Decimal `json:"cash"`
	Total     decimal.Decimal `json:"total"`
}

// Engine applies orders. It keeps no per-user state; every call names the
// acting user explicitly.
type Engine struct {
	store  Store
	quotes quote.Provider
	now    func() time.Time
	log    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over store, pricing orders with quotes.
func NewEngine(store Store, quotes quote.Provider, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{store: store, quotes: quotes, now: time.Now, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Quote looks up a symbol. Unknown symbols are rejected with UNKNOWN_SYMBOL.
func (e *Engine) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	return e.price(ctx, symbol)
}

func (e *Engine) price(ctx context.Context, symbol string) (*models.Quote, error) {
	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up %s: %w", ErrQuoteUnavailable, symbol, err)
	}
	if q == nil {
		return nil, ErrUnknownSymbol
	}
	return q, nil
}

// Buy validates and applies a buy order for userID.
func (e *Engine) Buy(ctx context.Context, userID uuid.UUID, symbol, shares string) (*Receipt, error) {
	order, err := ParseOrder(symbol, shares)
	if err != nil {
		return nil, e.rejected(userID, "buy", err)
	}
	q, err := e.price(ctx, order.Symbol)
	if err != nil {
		return nil, e.rejected(userID, "buy", err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin buy transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cash, err := tx.LockCash(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cash of user %s: %w", userID, err)
	}

	cost := q.Price.Mul(decimal.NewFromInt(order.Shares))
	if cost.GreaterThan(cash) {
		return nil, e.rejected(userID, "buy", ErrInsufficientFunds)
	}
	newCash := cash.Sub(cost)

	if err := tx.SetCash(ctx, userID, newCash); err != nil {
		return nil, fmt.Errorf("debiting user %s: %w", userID, err)
	}
	lot := &models.Lot{UserID: userID, Symbol: q.Symbol, CompanyName: q.Name, Shares: order.Shares}
	if err := tx.AddLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("adding %s lot for user %s: %w", q.Symbol, userID, err)
	}
	rec := &models.HistoryRecord{
		UserID:       userID,
		Symbol:       q.Symbol,
		Price:        q.Price,
		Shares:       order.Shares,
		TransactedAt: e.now().UTC(),
	}
	if err := tx.AppendHistory(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording buy for user %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit buy for user %s: %w", userID, err)
	}

	e.log.Info("Buy applied",
		zap.Stringer("user_id", userID),
		zap.String("symbol", q.Symbol),
		zap.Int64("shares", order.Shares),
		zap.Stringer("price", q.Price),
		zap.Stringer("cash", newCash))

	return &Receipt{NewCash: newCash, Entry: *rec}, nil
}

// Sell validates and applies a sell order for userID. All lots of the symbol
// are treated as fungible: a partial sell leaves one consolidated lot.
func (e *Engine) Sell(ctx context.Context, userID uuid.UUID, symbol, shares string) (*Receipt, error) {
	order, err := ParseOrder(symbol, shares)
	if err != nil {
		return nil, e.rejected(userID, "sell", err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin sell transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cash, err := tx.LockCash(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cash of user %s: %w", userID, err)
	}
	lots, err := tx.Lots(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading lots of user %s: %w", userID, err)
	}

	held, ok := holdingOf(lots, order.Symbol)
	if !ok || order.Shares > held.Shares {
		return nil, e.rejected(userID, "sell", ErrInsufficientQty)
	}

	q, err := e.price(ctx, order.Symbol)
	if err != nil {
		return nil, e.rejected(userID, "sell", err)
	}

	proceeds := q.Price.Mul(decimal.NewFromInt(order.Shares))
	newCash := cash.Add(proceeds)
	if err := tx.SetCash(ctx, userID, newCash); err != nil {
		return nil, fmt.Errorf("crediting user %s: %w", userID, err)
	}

	var keep *models.Lot
	if remaining := held.Shares - order.Shares; remaining > 0 {
		keep = &models.Lot{UserID: userID, Symbol: held.Symbol, CompanyName: held.CompanyName, Shares: remaining}
	}
	if err := tx.ReplaceLots(ctx, userID, held.Symbol, keep); err != nil {
		return nil, fmt.Errorf("consolidating %s lots for user %s: %w", held.Symbol, userID, err)
	}

	rec := &models.HistoryRecord{
		UserID:       userID,
		Symbol:       held.Symbol,
		Price:        q.Price,
		Shares:       -order.Shares,
		TransactedAt: e.now().UTC(),
	}
	if err := tx.AppendHistory(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording sell for user %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sell for user %s: %w", userID, err)
	}

	e.log.Info("Sell applied",
		zap.Stringer("user_id", userID),
		zap.String("symbol", held.Symbol),
		zap.Int64("shares", order.Shares),
		zap.Stringer("price", q.Price),
		zap.Stringer("cash", newCash))

	return &Receipt{NewCash: newCash, Entry: *rec}, nil
}

// Portfolio values every holding of userID at a fresh quote. A quote that
// cannot be obtained fails the whole valuation with ErrQuoteUnavailable.
func (e *Engine) Portfolio(ctx context.Context, userID uuid.UUID) (*Portfolio, error) {
	cash, err := e.store.Cash(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cash of user %s: %w", userID, err)
	}
	lots, err := e.store.Lots(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading lots of user %s: %w", userID, err)
	}

	holdings := Aggregate(lots)
	p := &Portfolio{Positions: make([]Position, 0, len(holdings)), Cash: cash, Total: cash}
	for _, h := range holdings {
		q, err := e.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, h.Symbol, err)
		}
		if q == nil {
			return nil, fmt.Errorf("%w: %s not found", ErrQuoteUnavailable, h.Symbol)
		}

		value := q.Price.Mul(decimal.NewFromInt(h.Shares))
		p.Positions = append(p.Positions, Position{
			Symbol:      h.Symbol,
			CompanyName: h.CompanyName,
			Shares:      h.Shares,
			Price:       q.Price,
			MarketValue: value,
		})
		p.Total = p.Total.Add(value)
	}
	return p, nil
}

// History returns userID's transaction log, oldest first.
func (e *Engine) History(ctx context.Context, userID uuid.UUID) ([]models.HistoryRecord, error) {
	records, err := e.store.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading history of user %s: %w", userID, err)
	}
	if records == nil {
		records = make([]models.HistoryRecord, 0)
	}
	return records, nil
}

// SellableSymbols lists the symbols userID currently holds.
func (e *Engine) SellableSymbols(ctx context.Context, userID uuid.UUID) ([]string, error) {
	lots, err := e.store.Lots(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading lots of user %s: %w", userID, err)
	}
	holdings := Aggregate(lots)
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	return symbols, nil
}

// rejected logs rejections at debug level and passes err through.
func (e *Engine) rejected(userID uuid.UUID, side string, err error) error {
	if r, ok := AsRejection(err); ok {
		e.log.Debug("Order rejected",
			zap.Stringer("user_id", userID),
			zap.String("side", side),
			zap.String("code", string(r.Code)))
	}
	return err
}
