// Package plan provides DCA plan management services
package plan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stacker/internal/allocation"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/schedule"
)

// Compile-time interface check
var _ interfaces.PlanService = (*Service)(nil)

// ErrInvalidPlan is wrapped by every plan validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// Schedule bounds. Days stop at 28 so every month has every run day.
const (
	MinCycles = 2
	MaxCycles = 3
	MaxRunDay = 28
)

// Service implements PlanService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates a new plan service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// GetActivePlan returns the user's active plan, or nil when there is none.
func (s *Service) GetActivePlan(ctx context.Context, userID string) (*models.Plan, error) {
	plan, err := s.storage.PlanStore().GetActivePlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// ListActivePlans returns the active plans of all users.
func (s *Service) ListActivePlans(ctx context.Context) ([]*models.Plan, error) {
	plans, err := s.storage.PlanStore().ListActivePlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// SavePlan validates and saves a plan with version increment. Saving an
// active plan deactivates the user's other plans.
func (s *Service) SavePlan(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	if plan.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidPlan)
	}
	if err := Validate(plan); err != nil {
		return nil, err
	}

	store := s.storage.PlanStore()
	now := s.now()

	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.CycleCount = len(plan.CycleWeights)
	plan.Version = 1
	plan.CreatedAt = now
	if existing, err := store.GetPlan(ctx, plan.UserID, plan.ID); err == nil && existing != nil {
		plan.Version = existing.Version + 1
		plan.CreatedAt = existing.CreatedAt
	} else if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	plan.UpdatedAt = now

	if plan.IsActive {
		others, err := store.ListPlans(ctx, plan.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list plans: %w", err)
		}
		for _, other := range others {
			if other.ID == plan.ID || !other.IsActive {
				continue
			}
			other.IsActive = false
			other.UpdatedAt = now
			if err := store.SavePlan(ctx, other); err != nil {
				return nil, fmt.Errorf("failed to deactivate plan %s: %w", other.ID, err)
			}
		}
	}

	if err := store.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	s.logger.Info().
		Str("user_id", plan.UserID).
		Str("plan_id", plan.ID).
		Int("version", plan.Version).
		Bool("active", plan.IsActive).
		Msg("Plan saved")
	return plan, nil
}

// Validate checks a plan's budget, cycle weights, schedule and channels.
func Validate(plan *models.Plan) error {
	// A zero budget is a paused plan; it still produces empty order sheets.
	if plan.MonthlyBudget.IsNegative() {
		return fmt.Errorf("%w: monthly_budget must not be negative", ErrInvalidPlan)
	}

	n := len(plan.CycleWeights)
	if n < MinCycles || n > MaxCycles {
		return fmt.Errorf("%w: %d cycle weights given, want %d to %d", ErrInvalidPlan, n, MinCycles, MaxCycles)
	}
	if plan.CycleCount != 0 && plan.CycleCount != n {
		return fmt.Errorf("%w: cycle_count %d does not match %d cycle weights", ErrInvalidPlan, plan.CycleCount, n)
	}
	one := decimal.NewFromInt(1)
	for i, w := range plan.CycleWeights {
		if !w.IsPositive() || w.GreaterThan(one) {
			return fmt.Errorf("%w: cycle weight %d must be in (0, 1], got %s", ErrInvalidPlan, i+1, w)
		}
	}
	if sum, ok := allocation.WeightsSumToOne(plan.CycleWeights); !ok {
		return fmt.Errorf("%w: cycle weights must sum to 1.0 (got %s)", ErrInvalidPlan, sum)
	}

	if len(plan.Schedule.Days) != n {
		return fmt.Errorf("%w: %d run days given for %d cycles", ErrInvalidPlan, len(plan.Schedule.Days), n)
	}
	seen := make(map[int]bool, n)
	for _, day := range plan.Schedule.Days {
		if day < 1 || day > MaxRunDay {
			return fmt.Errorf("%w: run day %d outside 1-%d", ErrInvalidPlan, day, MaxRunDay)
		}
		if seen[day] {
			return fmt.Errorf("%w: run day %d repeated", ErrInvalidPlan, day)
		}
		seen[day] = true
	}
	if _, err := schedule.LoadLocation(plan.Schedule.Timezone, time.UTC); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	for _, ch := range plan.NotificationChannels {
		switch ch {
		case models.ChannelEmail:
			if plan.Email == "" {
				return fmt.Errorf("%w: email channel requires an email address", ErrInvalidPlan)
			}
		case models.ChannelWebhook:
			u, err := url.Parse(plan.WebhookURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: webhook channel requires an http(s) webhook_url", ErrInvalidPlan)
			}
		default:
			return fmt.Errorf("%w: unknown notification channel %q", ErrInvalidPlan, ch)
		}
	}
	return nil
}
