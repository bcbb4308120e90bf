// Package interfaces defines service contracts for Stacker
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/stacker/internal/models"
)

// ErrNotFound is wrapped by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned by put-if-absent writes when the key is taken.
var ErrAlreadyExists = errors.New("record already exists")

// StorageManager coordinates the record store and the typed stores built on it.
type StorageManager interface {
	UserDataStore() UserDataStore
	PlanStore() PlanStore
	PortfolioStore() PortfolioStore
	ExecutionStore() ExecutionStore

	// Lifecycle
	Close() error
}

// UserDataStore manages all user domain data via generic records.
type UserDataStore interface {
	Get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error)
	Put(ctx context.Context, record *models.UserRecord) error
	// Create writes the record only if (user, subject, key) is unused,
	// returning ErrAlreadyExists otherwise.
	Create(ctx context.Context, record *models.UserRecord) error
	Delete(ctx context.Context, userID, subject, key string) error
	List(ctx context.Context, userID, subject string) ([]*models.UserRecord, error)
	// ListBySubject returns every user's records for a subject.
	ListBySubject(ctx context.Context, subject string) ([]*models.UserRecord, error)
	Close() error
}

// PlanStore persists plans. GetActivePlan returns (nil, nil) when the user has none.
type PlanStore interface {
	GetActivePlan(ctx context.Context, userID string) (*models.Plan, error)
	GetPlan(ctx context.Context, userID, planID string) (*models.Plan, error)
	SavePlan(ctx context.Context, plan *models.Plan) error
	ListPlans(ctx context.Context, userID string) ([]*models.Plan, error)
	ListActivePlans(ctx context.Context) ([]*models.Plan, error)
}

// PortfolioStore persists portfolios. GetActivePortfolio returns (nil, nil) when absent.
type PortfolioStore interface {
	GetActivePortfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	SavePortfolio(ctx context.Context, portfolio *models.Portfolio) error
}

// ExecutionStore persists order sheets keyed by (userID, ymCycle).
// Get returns (nil, nil) when no execution exists for the key.
type ExecutionStore interface {
	Get(ctx context.Context, userID, ymCycle string) (*models.Execution, error)
	// Save upserts by key.
	Save(ctx context.Context, execution *models.Execution) error
	// Create is a put-if-absent write returning ErrAlreadyExists on conflict.
	Create(ctx context.Context, execution *models.Execution) error
	// ListByMonth returns executions whose key starts with "YYYY-MM#", ordered by cycle.
	ListByMonth(ctx context.Context, userID, yearMonth string) ([]*models.Execution, error)
}

// Locker guards work that must run on only one replica at a time.
type Locker interface {
	// TryLock acquires key for ttl; ok is false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)
	Unlock(ctx context.Context, key string) error
}
