package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// PortfolioStorage keeps portfolios as "portfolio" records keyed by name.
type PortfolioStorage struct {
	store  interfaces.UserDataStore
	logger *common.Logger
}

func NewPortfolioStorage(store interfaces.UserDataStore, logger *common.Logger) *PortfolioStorage {
	return &PortfolioStorage{store: store, logger: logger}
}

// GetActivePortfolio returns the most recently updated active portfolio, or nil.
func (s *PortfolioStorage) GetActivePortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	recs, err := s.store.List(ctx, userID, models.SubjectPortfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	var active *models.Portfolio
	for _, rec := range recs {
		var p models.Portfolio
		if err := decodeRecord(rec, &p); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Skipping undecodable portfolio record")
			continue
		}
		if p.IsActive && (active == nil || p.UpdatedAt.After(active.UpdatedAt)) {
			pp := p
			active = &pp
		}
	}
	return active, nil
}

func (s *PortfolioStorage) SavePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	if portfolio.UserID == "" || portfolio.Name == "" {
		return errors.New("portfolio requires user_id and name")
	}
	rec, err := encodeRecord(portfolio.UserID, models.SubjectPortfolio, portfolio.Name, portfolio.Version, portfolio)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

var _ interfaces.PortfolioStore = (*PortfolioStorage)(nil)
