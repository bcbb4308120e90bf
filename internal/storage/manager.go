// Package storage provides the StorageManager that layers typed plan,
// portfolio and execution stores over one generic user record store.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	userData   interfaces.UserDataStore
	plans      *PlanStorage
	portfolios *PortfolioStorage
	executions *ExecutionStorage
	closeFn    func() error
	logger     *common.Logger
}

// NewManager wraps a record store. closeFn, when non-nil, releases the
// underlying connection on Close.
func NewManager(userData interfaces.UserDataStore, logger *common.Logger, closeFn func() error) *Manager {
	return &Manager{
		userData:   userData,
		plans:      NewPlanStorage(userData, logger),
		portfolios: NewPortfolioStorage(userData, logger),
		executions: NewExecutionStorage(userData, logger),
		closeFn:    closeFn,
		logger:     logger,
	}
}

func (m *Manager) UserDataStore() interfaces.UserDataStore {
	return m.userData
}

func (m *Manager) PlanStore() interfaces.PlanStore {
	return m.plans
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolios
}

func (m *Manager) ExecutionStore() interfaces.ExecutionStore {
	return m.executions
}

// Close releases the record store and the underlying connection.
func (m *Manager) Close() error {
	var firstErr error
	if err := m.userData.Close(); err != nil {
		firstErr = err
	}
	if m.closeFn != nil {
		if err := m.closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ interfaces.StorageManager = (*Manager)(nil)

func encodeRecord(userID, subject, key string, version int, v any) (*models.UserRecord, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", subject, err)
	}
	return &models.UserRecord{
		UserID:   userID,
		Subject:  subject,
		Key:      key,
		Value:    string(data),
		Version:  version,
		DateTime: time.Now(),
	}, nil
}

func decodeRecord(rec *models.UserRecord, v any) error {
	if err := json.Unmarshal([]byte(rec.Value), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s '%s': %w", rec.Subject, rec.Key, err)
	}
	return nil
}
