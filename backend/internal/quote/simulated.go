package quote

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/models"
)

// PriceUpdate represents a single price update for a symbol.
type PriceUpdate struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Ts     int64           `json:"ts"` // Unix timestamp milliseconds
}

var minPrice = decimal.New(1, -2)

// Simulated is an in-process quote source for development. Prices follow a
// small random walk once Run is started.
type Simulated struct {
	mu     sync.RWMutex
	quotes map[string]models.Quote
	// Updates receives every tick. Sends never block the ticker.
	Updates chan PriceUpdate
	rng     *rand.Rand
	log     *zap.Logger
}

// DefaultListings seeds the simulated market.
var DefaultListings = []models.Quote{
	{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("189.25")},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.RequireFromString("178.10")},
	{Symbol: "GOOG", Name: "Alphabet Inc.", Price: decimal.RequireFromString("141.80")},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.RequireFromString("415.50")},
	{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.RequireFromString("612.00")},
	{Symbol: "TSLA", Name: "Tesla Inc.", Price: decimal.RequireFromString("175.40")},
}

// NewSimulated creates a simulated market listing the given quotes.
func NewSimulated(listings []models.Quote, log *zap.Logger) *Simulated {
	s := &Simulated{
		quotes:  make(map[string]models.Quote, len(listings)),
		Updates: make(chan PriceUpdate, 100),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log,
	}
	for _, q := range listings {
		q.Symbol = strings.ToUpper(q.Symbol)
		s.quotes[q.Symbol] = q
	}
	return s
}

// Lookup implements Provider.
func (s *Simulated) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// SetPrice pins the price of a listed symbol, adding it when missing.
func (s *Simulated) SetPrice(symbol, name string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	s.quotes[symbol] = models.Quote{Symbol: symbol, Name: name, Price: price}
}

// Run moves prices every interval until ctx is done.
func (s *Simulated) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Simulated price ticker started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Simulated price ticker stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Simulated) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	for symbol, q := range s.quotes {
		// +/- 0.5% per tick
		change := decimal.NewFromFloat((s.rng.Float64() - 0.5) / 100)
		price := q.Price.Mul(decimal.NewFromInt(1).Add(change)).Round(2)
		if price.LessThan(minPrice) {
			price = minPrice
		}
		q.Price = price
		s.quotes[symbol] = q

		select {
		case s.Updates <- PriceUpdate{Symbol: symbol, Price: price, Ts: now}:
		default:
			s.log.Debug("Price update channel full, dropping update", zap.String("symbol", symbol))
		}
	}
}
