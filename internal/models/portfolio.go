// Package models defines data structures for Stacker
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one target position of a portfolio.
type Holding struct {
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Market       string          `json:"market"` // e.g. "KR", "US", "HK"
	TargetWeight decimal.Decimal `json:"target_weight"`
}

// Portfolio is a user's target allocation. Holdings are a snapshot per version.
type Portfolio struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Holdings  []Holding `json:"holdings"`
	IsActive  bool      `json:"is_active"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tickers returns the holding tickers in portfolio order.
func (p *Portfolio) Tickers() []string {
	out := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Ticker
	}
	return out
}

// NormalizeMarket upper-cases and trims a market code.
func NormalizeMarket(market string) string {
	return strings.ToUpper(strings.TrimSpace(market))
}
