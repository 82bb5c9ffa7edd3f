// Package money formats ledger amounts for display.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD renders an exact amount as a dollar string, e.g. "$1,234.50".
// Amounts are rounded half away from zero to cents.
func USD(amount decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	cents := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return money.New(cents.IntPart(), money.USD).Display()
}
