package ledger

import (
	"sort"

	"github.com/user/papertrade/backend/internal/models"
)

// Aggregate sums lots per symbol. The result is ordered by symbol and never
// contains zero-share holdings. The company name of the first lot seen wins.
func Aggregate(lots []models.Lot) []models.Holding {
	bySymbol := make(map[string]*models.Holding)
	for _, lot := range lots {
		h, ok := bySymbol[lot.Symbol]
		if !ok {
			h = &models.Holding{Symbol: lot.Symbol, CompanyName: lot.CompanyName}
			bySymbol[lot.Symbol] = h
		}
		h.Shares += lot.Shares
	}

	holdings := make([]models.Holding, 0, len(bySymbol))
	for _, h := range bySymbol {
		if h.Shares != 0 {
			holdings = append(holdings, *h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings
}

// holdingOf returns the aggregate holding of symbol, if any.
func holdingOf(lots []models.Lot, symbol string) (models.Holding, bool) {
	for _, h := range Aggregate(lots) {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return models.Holding{}, false
}
