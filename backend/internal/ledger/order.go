package ledger

import (
	"errors"
	"strconv"
	"strings"
)

// Order is a validated buy or sell request.
type Order struct {
	Symbol string
	Shares int64
}

// ParseOrder turns raw form values into an Order. The first failing rule
// decides the rejection: empty symbol, empty shares, not an integer,
// not positive. Symbols are upper-cased. ParseOrder never looks up quotes.
func ParseOrder(symbol, shares string) (Order, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Order{}, ErrEmptySymbol
	}

	shares = strings.TrimSpace(shares)
	if shares == "" {
		return Order{}, ErrEmptyShares
	}

	n, err := strconv.ParseInt(shares, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(shares, "-") {
				return Order{}, ErrNonPositive
			}
			return Order{}, ErrSharesOutOfRange
		}
		return Order{}, ErrNotInteger
	}
	if n <= 0 {
		return Order{}, ErrNonPositive
	}

	return Order{Symbol: symbol, Shares: n}, nil
}
