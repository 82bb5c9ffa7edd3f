// Package quote resolves ticker symbols to current prices.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/user/papertrade/backend/internal/models"
)

// Provider looks up the current quote of a symbol.
// A nil quote with a nil error means the symbol is unknown.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*models.Quote, error)
}

// HTTPProvider fetches quotes from an IEX Cloud compatible endpoint.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPProvider creates a provider for baseURL, e.g. "https://cloud.iexapis.com".
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

type iexQuote struct {
	CompanyName string          `json:"companyName"`
	Symbol      string          `json:"symbol"`
	LatestPrice decimal.Decimal `json:"latestPrice"`
}

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/stable/stock/%s/quote?token=%s",
		p.baseURL, url.PathEscape(symbol), url.QueryEscape(p.apiKey))

	agent := fiber.Get(endpoint)
	if p.timeout > 0 {
		agent.Timeout(p.timeout)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("quote request for %s failed: %w", symbol, errs[0])
	}

	switch {
	case status == fiber.StatusNotFound:
		return nil, nil
	case status != fiber.StatusOK:
		return nil, fmt.Errorf("quote request for %s returned status %d", symbol, status)
	}

	var q iexQuote
	if err := json.Unmarshal(body, &q); err != nil {
		// The upstream answers "Unknown symbol" as plain text for some symbols.
		return nil, nil
	}
	if q.Symbol == "" || !q.LatestPrice.IsPositive() {
		return nil, nil
	}

	return &models.Quote{
		Name:   q.CompanyName,
		Symbol: strings.ToUpper(q.Symbol),
		Price:  q.LatestPrice,
	}, nil
}
