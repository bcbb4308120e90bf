package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a single price observation returned by a price feed.
type PriceQuote struct {
	Ticker    string          `json:"ticker"`
	Market    string          `json:"market"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}
