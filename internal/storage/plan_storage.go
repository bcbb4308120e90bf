package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// PlanStorage keeps plans as "plan" records keyed by plan ID.
type PlanStorage struct {
	store  interfaces.UserDataStore
	logger *common.Logger
}

func NewPlanStorage(store interfaces.UserDataStore, logger *common.Logger) *PlanStorage {
	return &PlanStorage{store: store, logger: logger}
}

func (s *PlanStorage) GetPlan(ctx context.Context, userID, planID string) (*models.Plan, error) {
	rec, err := s.store.Get(ctx, userID, models.SubjectPlan, planID)
	if err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := decodeRecord(rec, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetActivePlan returns the most recently updated active plan, or nil.
func (s *PlanStorage) GetActivePlan(ctx context.Context, userID string) (*models.Plan, error) {
	plans, err := s.ListPlans(ctx, userID)
	if err != nil {
		return nil, err
	}
	var active *models.Plan
	for _, p := range plans {
		if p.IsActive && (active == nil || p.UpdatedAt.After(active.UpdatedAt)) {
			active = p
		}
	}
	return active, nil
}

func (s *PlanStorage) SavePlan(ctx context.Context, plan *models.Plan) error {
	if plan.UserID == "" || plan.ID == "" {
		return errors.New("plan requires user_id and id")
	}
	rec, err := encodeRecord(plan.UserID, models.SubjectPlan, plan.ID, plan.Version, plan)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (s *PlanStorage) ListPlans(ctx context.Context, userID string) ([]*models.Plan, error) {
	recs, err := s.store.List(ctx, userID, models.SubjectPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return s.decodeAll(recs), nil
}

// ListActivePlans returns every user's active plans, ordered by user ID.
func (s *PlanStorage) ListActivePlans(ctx context.Context) ([]*models.Plan, error) {
	recs, err := s.store.ListBySubject(ctx, models.SubjectPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	var active []*models.Plan
	for _, p := range s.decodeAll(recs) {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// decodeAll skips records that no longer decode rather than failing the list.
func (s *PlanStorage) decodeAll(recs []*models.UserRecord) []*models.Plan {
	plans := make([]*models.Plan, 0, len(recs))
	for _, rec := range recs {
		var p models.Plan
		if err := decodeRecord(rec, &p); err != nil {
			s.logger.Warn().Err(err).Str("user_id", rec.UserID).Msg("Skipping undecodable plan record")
			continue
		}
		plans = append(plans, &p)
	}
	return plans
}

var _ interfaces.PlanStore = (*PlanStorage)(nil)
