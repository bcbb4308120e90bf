package execution

import (
	"context"
	"fmt"

	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// GetExecution returns a live order sheet or an error wrapping ErrNotFound.
func (s *Service) GetExecution(ctx context.Context, userID, ymCycle string) (*models.Execution, error) {
	exec, err := s.storage.ExecutionStore().Get(ctx, userID, ymCycle)
	if err != nil {
		return nil, err
	}
	if exec == nil || exec.IsDeleted() {
		return nil, fmt.Errorf("execution '%s': %w", ymCycle, interfaces.ErrNotFound)
	}
	return exec, nil
}

// ListExecutions returns the month's live order sheets ordered by cycle.
func (s *Service) ListExecutions(ctx context.Context, userID, yearMonth string) ([]*models.Execution, error) {
	all, err := s.storage.ExecutionStore().ListByMonth(ctx, userID, yearMonth)
	if err != nil {
		return nil, err
	}
	live := make([]*models.Execution, 0, len(all))
	for _, e := range all {
		if !e.IsDeleted() {
			live = append(live, e)
		}
	}
	return live, nil
}

// ConfirmExecution records that the user placed the orders. Confirming an
// already confirmed sheet returns it unchanged.
func (s *Service) ConfirmExecution(ctx context.Context, userID, ymCycle, note string) (*models.Execution, error) {
	exec, err := s.GetExecution(ctx, userID, ymCycle)
	if err != nil {
		return nil, err
	}
	if exec.Status == models.ExecutionStatusConfirmed {
		return exec, nil
	}

	now := s.now()
	exec.Status = models.ExecutionStatusConfirmed
	exec.UserConfirm = &models.UserConfirm{ConfirmedAt: now, Note: note}
	exec.UpdatedAt = now

	if err := s.storage.ExecutionStore().Save(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to confirm execution: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("ym_cycle", ymCycle).Msg("Execution confirmed")
	return exec, nil
}

// DeleteExecution soft-deletes an unconfirmed order sheet. The record stays
// stored with a deletion marker and no longer counts as existing, so the
// cycle can be generated again.
func (s *Service) DeleteExecution(ctx context.Context, userID, ymCycle string) error {
	exec, err := s.GetExecution(ctx, userID, ymCycle)
	if err != nil {
		return err
	}
	if exec.Status == models.ExecutionStatusConfirmed {
		return fmt.Errorf("cannot delete %s: %w", ymCycle, ErrExecutionConfirmed)
	}

	now := s.now()
	exec.DeletedAt = &now
	exec.UpdatedAt = now
	if err := s.storage.ExecutionStore().Save(ctx, exec); err != nil {
		return fmt.Errorf("failed to delete execution: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("ym_cycle", ymCycle).Msg("Execution deleted")
	return nil
}
