package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/papertrade/backend/internal/models"
)

func TestParseOrder(t *testing.T) {
	cases := []struct {
		name   string
		symbol string
		shares string
		want   Order
		code   Code
	}{
		{name: "valid", symbol: "aaa", shares: "10", want: Order{Symbol: "AAA", Shares: 10}},
		{name: "trimmed", symbol: "  msft ", shares: " 3 ", want: Order{Symbol: "MSFT", Shares: 3}},
		{name: "explicit plus", symbol: "AAA", shares: "+7", want: Order{Symbol: "AAA", Shares: 7}},
		{name: "empty symbol", symbol: "", shares: "10", code: CodeEmptySymbol},
		{name: "blank symbol", symbol: "   ", shares: "10", code: CodeEmptySymbol},
		{name: "empty symbol wins over bad shares", symbol: "", shares: "abc", code: CodeEmptySymbol},
		{name: "empty shares", symbol: "AAA", shares: "", code: CodeEmptyShares},
		{name: "letters", symbol: "AAA", shares: "abc", code: CodeNotInteger},
		{name: "fraction", symbol: "AAA", shares: "1.5", code: CodeNotInteger},
		{name: "negative word", symbol: "AAA", shares: "-abc", code: CodeNotInteger},
		{name: "zero", symbol: "AAA", shares: "0", code: CodeNonPositive},
		{name: "negative", symbol: "AAA", shares: "-3", code: CodeNonPositive},
		{name: "huge negative", symbol: "AAA", shares: "-99999999999999999999", code: CodeNonPositive},
		{name: "huge", symbol: "AAA", shares: "99999999999999999999", code: CodeOutOfRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOrder(tc.symbol, tc.shares)
			if tc.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
				return
			}
			r, ok := AsRejection(err)
			require.True(t, ok, "expected a rejection, got %v", err)
			assert.Equal(t, tc.code, r.Code)
			assert.Equal(t, InputError, r.Kind)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestRejectionKinds(t *testing.T) {
	assert.Equal(t, BusinessRuleError, ErrInsufficientFunds.Kind)
	assert.Equal(t, BusinessRuleError, ErrInsufficientQty.Kind)
	assert.Equal(t, InputError, ErrUnknownSymbol.Kind)
	assert.ErrorIs(t, &Rejection{Code: CodeNotInteger}, ErrNotInteger)
	assert.NotErrorIs(t, ErrNotInteger, ErrNonPositive)
}

func TestAggregate(t *testing.T) {
	lots := []models.Lot{
		{Symbol: "MSFT", CompanyName: "Microsoft", Shares: 2},
		{Symbol: "AAPL", CompanyName: "Apple", Shares: 5},
		{Symbol: "MSFT", CompanyName: "Microsoft Corp", Shares: 3},
	}

	got := Aggregate(lots)
	assert.Equal(t, []models.Holding{
		{Symbol: "AAPL", CompanyName: "Apple", Shares: 5},
		{Symbol: "MSFT", CompanyName: "Microsoft", Shares: 5},
	}, got)

	assert.Empty(t, Aggregate(nil))

	h, ok := holdingOf(lots, "MSFT")
	assert.True(t, ok)
	assert.EqualValues(t, 5, h.Shares)
	_, ok = holdingOf(lots, "TSLA")
	assert.False(t, ok)
}
