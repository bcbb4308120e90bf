package interfaces

import (
	"context"

	"github.com/bobmcallan/stacker/internal/models"
	"github.com/shopspring/decimal"
)

// PriceFeed returns the latest price for one ticker on a market.
type PriceFeed interface {
	FetchPrice(ctx context.Context, ticker, market string) (*models.PriceQuote, error)
}

// RateSource supplies exchange rates as units of base currency per one unit
// of each keyed currency. The base currency maps to exactly 1.
type RateSource interface {
	Rates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Notifier delivers a generated order sheet to the plan owner.
type Notifier interface {
	Send(ctx context.Context, plan *models.Plan, execution *models.Execution) error
}
