// Package naver provides a price client for the Naver Finance realtime
// polling API, used for KRX-listed stocks and ETFs.
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/models"
)

const (
	DefaultBaseURL   = "https://polling.finance.naver.com/api/realtime"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second

	// Source tags quotes produced by this client.
	Source = "naver"
)

// flexPrice handles prices sent either as numbers or as strings with
// thousands separators ("35,000").
type flexPrice struct {
	decimal.Decimal
	set bool
}

func (f *flexPrice) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "null" || s == "N/A" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into price", string(data))
	}
	f.Decimal = d
	f.set = true
	return nil
}

// Client fetches KRX prices.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Naver price client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig builds a client from the [clients.naver] section.
func NewClientFromConfig(cfg common.NaverConfig, logger *common.Logger) *Client {
	opts := []ClientOption{WithLogger(logger), WithTimeout(cfg.GetTimeout()), WithRateLimit(cfg.RateLimit)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return NewClient(opts...)
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Naver API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type realtimeResponse struct {
	Datas []struct {
		ItemCode   string    `json:"itemCode"`
		StockName  string    `json:"stockName"`
		ClosePrice flexPrice `json:"closePrice"`
	} `json:"datas"`
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Naver API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// FetchPrice returns the latest KRW price for a six-character KRX code.
// The market argument is ignored; this client only serves KRX.
func (c *Client) FetchPrice(ctx context.Context, ticker, _ string) (*models.PriceQuote, error) {
	code := strings.TrimSpace(ticker)
	if code == "" {
		return nil, fmt.Errorf("naver: empty ticker")
	}

	path := "/domestic/stock/" + url.PathEscape(code)

	var body realtimeResponse
	if err := c.get(ctx, path, &body); err != nil {
		return nil, fmt.Errorf("naver: fetch %s: %w", code, err)
	}

	for _, d := range body.Datas {
		if d.ItemCode != "" && d.ItemCode != code {
			continue
		}
		if !d.ClosePrice.set || !d.ClosePrice.IsPositive() {
			return nil, fmt.Errorf("naver: no valid price for %s", code)
		}
		return &models.PriceQuote{
			Ticker:    code,
			Market:    "KR",
			Price:     d.ClosePrice.Decimal,
			Currency:  "KRW",
			Source:    Source,
			FetchedAt: c.now(),
		}, nil
	}

	return nil, fmt.Errorf("naver: no quote data for %s", code)
}
