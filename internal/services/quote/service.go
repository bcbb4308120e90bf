// Package quote routes price requests to the feed that serves each market.
package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/currency"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// Service implements interfaces.PriceFeed by dispatching on market currency:
// every market quoted in the same currency shares one feed.
type Service struct {
	feeds  map[string]interfaces.PriceFeed // currency → feed
	logger *common.Logger
}

// NewService creates an empty router. Register feeds with Route.
func NewService(logger *common.Logger) *Service {
	return &Service{
		feeds:  make(map[string]interfaces.PriceFeed),
		logger: logger,
	}
}

// Route sends every market whose native currency is cur to feed.
// A nil feed is ignored so optional clients can be passed unconditionally.
func (s *Service) Route(cur string, feed interfaces.PriceFeed) *Service {
	if feed != nil {
		s.feeds[strings.ToUpper(cur)] = feed
	}
	return s
}

// FetchPrice resolves the market's feed and fetches one quote.
func (s *Service) FetchPrice(ctx context.Context, ticker, market string) (*models.PriceQuote, error) {
	cur, ok := currency.ForMarket(market)
	if !ok {
		return nil, fmt.Errorf("unknown market %q for %s", market, ticker)
	}
	feed, ok := s.feeds[cur]
	if !ok {
		return nil, fmt.Errorf("no price feed configured for market %s (%s)", models.NormalizeMarket(market), cur)
	}

	q, err := feed.FetchPrice(ctx, ticker, market)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Str("market", market).Msg("Price fetch failed")
		return nil, err
	}
	if q == nil || !q.Price.IsPositive() {
		return nil, fmt.Errorf("price feed returned no positive price for %s", ticker)
	}
	q.Currency = strings.ToUpper(strings.TrimSpace(q.Currency))
	if q.Currency == "" {
		q.Currency = cur
	}

	s.logger.Debug().
		Str("ticker", ticker).
		Str("source", q.Source).
		Str("price", q.Price.String()).
		Msg("Price fetched")

	return q, nil
}

var _ interfaces.PriceFeed = (*Service)(nil)
