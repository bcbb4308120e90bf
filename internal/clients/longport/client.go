// Package longport provides US and HK prices through the Longport OpenAPI
// quote context.
package longport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/currency"
	"github.com/bobmcallan/stacker/internal/models"
)

const (
	DefaultRateLimit = 5

	// Source tags quotes produced by this client.
	Source = "longport"
)

// quoter is the subset of *quote.QuoteContext the client uses.
type quoter interface {
	Quote(ctx context.Context, symbols []string) ([]*quote.SecurityQuote, error)
}

// Client fetches quotes for Longport-listed markets.
type Client struct {
	qc      quoter
	closeFn func()
	limiter *rate.Limiter
	logger  *common.Logger
	now     func() time.Time
}

// NewClient opens a quote context with the configured credentials.
func NewClient(cfg common.LongportConfig, logger *common.Logger) (*Client, error) {
	lpCfg, err := config.New(
		config.WithConfigKey(cfg.AppKey, cfg.AppSecret, cfg.AccessToken),
	)
	if err != nil {
		return nil, fmt.Errorf("create longport config: %w", err)
	}

	qc, err := quote.NewFromCfg(lpCfg)
	if err != nil {
		return nil, fmt.Errorf("init longport quote context: %w", err)
	}

	c := newClient(qc, cfg.RateLimit, logger)
	c.closeFn = func() { qc.Close() }
	logger.Info().Msg("Longport quote context connected")
	return c, nil
}

func newClient(qc quoter, requestsPerSecond int, logger *common.Logger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRateLimit
	}
	return &Client{
		qc:      qc,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  logger,
		now:     time.Now,
	}
}

// Symbol builds the Longport symbol "<TICKER>.<US|HK>" for a market code,
// e.g. "AAPL.US". HK codes drop leading zeros ("00700" becomes "700.HK").
func Symbol(ticker, market string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	cur, _ := currency.ForMarket(market)
	switch cur {
	case "USD":
		return t + ".US", true
	case "HKD":
		if trimmed := strings.TrimLeft(t, "0"); trimmed != "" {
			t = trimmed
		}
		return t + ".HK", true
	default:
		return "", false
	}
}

// FetchPrice returns the last traded price in the market's currency.
func (c *Client) FetchPrice(ctx context.Context, ticker, market string) (*models.PriceQuote, error) {
	symbol, ok := Symbol(ticker, market)
	if !ok {
		return nil, fmt.Errorf("longport: unsupported market %q", market)
	}
	cur, _ := currency.ForMarket(market)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Msg("Longport quote request")

	quotes, err := c.qc.Quote(ctx, []string{symbol})
	if err != nil {
		return nil, fmt.Errorf("longport: quote %s: %w", symbol, err)
	}
	if len(quotes) == 0 || quotes[0] == nil {
		return nil, fmt.Errorf("longport: no quote data for %s", symbol)
	}

	last := quotes[0].LastDone
	if last == nil || !last.IsPositive() {
		return nil, fmt.Errorf("longport: no valid price for %s", symbol)
	}

	return &models.PriceQuote{
		Ticker:    ticker,
		Market:    models.NormalizeMarket(market),
		Price:     *last,
		Currency:  cur,
		Source:    Source,
		FetchedAt: c.now(),
	}, nil
}

// Close releases the quote context connection.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}
