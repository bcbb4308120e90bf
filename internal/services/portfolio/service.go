// Package portfolio provides target portfolio management services
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stacker/internal/allocation"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/currency"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// Compile-time interface check
var _ interfaces.PortfolioService = (*Service)(nil)

// ErrInvalidPortfolio is wrapped by every portfolio validation failure.
var ErrInvalidPortfolio = errors.New("invalid portfolio")

// DefaultName is used when a portfolio is saved without a name.
const DefaultName = "default"

// Service implements PortfolioService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates a new portfolio service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// GetActivePortfolio returns the user's active portfolio, or nil.
func (s *Service) GetActivePortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	p, err := s.storage.PortfolioStore().GetActivePortfolio(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// SavePortfolio normalises and validates holdings, then saves a new version.
// An active portfolio replaces the previously active one.
func (s *Service) SavePortfolio(ctx context.Context, p *models.Portfolio) (*models.Portfolio, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidPortfolio)
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = DefaultName
	}
	for i := range p.Holdings {
		p.Holdings[i].Ticker = strings.ToUpper(strings.TrimSpace(p.Holdings[i].Ticker))
		p.Holdings[i].Market = models.NormalizeMarket(p.Holdings[i].Market)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}

	store := s.storage.PortfolioStore()
	now := s.now()

	current, err := store.GetActivePortfolio(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	p.Version = 1
	p.CreatedAt = now
	if current != nil && current.Name == p.Name {
		p.Version = current.Version + 1
		p.CreatedAt = current.CreatedAt
	}
	p.UpdatedAt = now

	if p.IsActive && current != nil && current.Name != p.Name {
		current.IsActive = false
		current.UpdatedAt = now
		if err := store.SavePortfolio(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to deactivate portfolio %s: %w", current.Name, err)
		}
	}

	if err := store.SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.logger.Info().
		Str("user_id", p.UserID).
		Str("name", p.Name).
		Int("holdings", len(p.Holdings)).
		Int("version", p.Version).
		Msg("Portfolio saved")
	return p, nil
}

// Validate checks holdings: at least one, unique tickers on known markets,
// each weight in (0, 1] and weights summing to 1.
func Validate(p *models.Portfolio) error {
	if len(p.Holdings) == 0 {
		return fmt.Errorf("%w: at least one holding is required", ErrInvalidPortfolio)
	}

	one := decimal.NewFromInt(1)
	seen := make(map[string]bool, len(p.Holdings))
	weights := make([]decimal.Decimal, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		if h.Ticker == "" {
			return fmt.Errorf("%w: holding ticker is required", ErrInvalidPortfolio)
		}
		if seen[h.Ticker] {
			return fmt.Errorf("%w: ticker %s listed twice", ErrInvalidPortfolio, h.Ticker)
		}
		seen[h.Ticker] = true
		if _, ok := currency.ForMarket(h.Market); !ok {
			return fmt.Errorf("%w: unknown market %q for %s", ErrInvalidPortfolio, h.Market, h.Ticker)
		}
		if !h.TargetWeight.IsPositive() || h.TargetWeight.GreaterThan(one) {
			return fmt.Errorf("%w: weight of %s must be in (0, 1], got %s", ErrInvalidPortfolio, h.Ticker, h.TargetWeight)
		}
		weights = append(weights, h.TargetWeight)
	}

	if sum, ok := allocation.WeightsSumToOne(weights); !ok {
		return fmt.Errorf("%w: target weights must sum to 1.0 (got %s)", ErrInvalidPortfolio, sum)
	}
	return nil
}
