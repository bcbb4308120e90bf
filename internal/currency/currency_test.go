package currency

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"KRW": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("1350"),
		"JPY": decimal.RequireFromString("9.1"),
	}
}

func TestToBase(t *testing.T) {
	n := NewNormalizer("KRW")

	got, err := n.ToBase(decimal.RequireFromString("500.25"), "USD", rates())
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("675337.5")), got.String())

	same, err := n.ToBase(decimal.NewFromInt(35000), "krw", rates())
	require.NoError(t, err)
	assert.True(t, same.Equal(decimal.NewFromInt(35000)))
}

func TestFromBaseInvertsToBase(t *testing.T) {
	n := NewNormalizer("")
	assert.Equal(t, "KRW", n.Base())

	price := decimal.RequireFromString("210.5")
	inBase, err := n.ToBase(price, "USD", rates())
	require.NoError(t, err)
	back, err := n.FromBase(inBase, "USD", rates())
	require.NoError(t, err)
	assert.True(t, back.Equal(price))
}

func TestInvalidRates(t *testing.T) {
	n := NewNormalizer("KRW")

	tests := []struct {
		name     string
		rates    map[string]decimal.Decimal
		currency string
	}{
		{"missing currency", rates(), "EUR"},
		{"zero rate", map[string]decimal.Decimal{"KRW": decimal.NewFromInt(1), "USD": decimal.Zero}, "USD"},
		{"negative rate", map[string]decimal.Decimal{"KRW": decimal.NewFromInt(1), "USD": decimal.NewFromInt(-1)}, "USD"},
		{"base not one", map[string]decimal.Decimal{"KRW": decimal.RequireFromString("1.0001"), "USD": decimal.NewFromInt(1350)}, "USD"},
		{"base missing", map[string]decimal.Decimal{"USD": decimal.NewFromInt(1350)}, "KRW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.ToBase(decimal.NewFromInt(1), tt.currency, tt.rates)
			assert.ErrorIs(t, err, ErrInvalidExchangeRate)
			_, err = n.FromBase(decimal.NewFromInt(1), tt.currency, tt.rates)
			assert.ErrorIs(t, err, ErrInvalidExchangeRate)
		})
	}
}

func TestForMarket(t *testing.T) {
	c, ok := ForMarket("kr")
	assert.True(t, ok)
	assert.Equal(t, "KRW", c)

	c, ok = ForMarket("NASDAQ")
	assert.True(t, ok)
	assert.Equal(t, "USD", c)

	_, ok = ForMarket("MOON")
	assert.False(t, ok)
}

func TestStaticRates(t *testing.T) {
	src := NewStaticRates(map[string]float64{"krw": 1, "usd": 1350.5})
	got, err := src.Rates(context.Background())
	require.NoError(t, err)
	assert.True(t, got["KRW"].Equal(decimal.NewFromInt(1)))
	assert.True(t, got["USD"].Equal(decimal.RequireFromString("1350.5")))

	got["USD"] = decimal.Zero
	again, _ := src.Rates(context.Background())
	assert.True(t, again["USD"].IsPositive(), "callers receive a copy")
}
