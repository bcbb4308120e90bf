package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/schedule"
)

// ExecutionStorage keeps order sheets as "execution" records keyed by ymCycle.
type ExecutionStorage struct {
	store  interfaces.UserDataStore
	logger *common.Logger
}

func NewExecutionStorage(store interfaces.UserDataStore, logger *common.Logger) *ExecutionStorage {
	return &ExecutionStorage{store: store, logger: logger}
}

func (s *ExecutionStorage) Get(ctx context.Context, userID, ymCycle string) (*models.Execution, error) {
	rec, err := s.store.Get(ctx, userID, models.SubjectExecution, ymCycle)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	var exec models.Execution
	if err := decodeRecord(rec, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (s *ExecutionStorage) Save(ctx context.Context, execution *models.Execution) error {
	rec, err := s.record(execution)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

func (s *ExecutionStorage) Create(ctx context.Context, execution *models.Execution) error {
	rec, err := s.record(execution)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *ExecutionStorage) ListByMonth(ctx context.Context, userID, yearMonth string) ([]*models.Execution, error) {
	recs, err := s.store.List(ctx, userID, models.SubjectExecution)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	prefix := schedule.MonthPrefix(yearMonth)
	var out []*models.Execution
	for _, rec := range recs {
		if !strings.HasPrefix(rec.Key, prefix) {
			continue
		}
		var exec models.Execution
		if err := decodeRecord(rec, &exec); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Skipping undecodable execution record")
			continue
		}
		out = append(out, &exec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleIndex < out[j].CycleIndex })
	return out, nil
}

func (s *ExecutionStorage) record(execution *models.Execution) (*models.UserRecord, error) {
	if execution.UserID == "" || execution.YMCycle == "" {
		return nil, errors.New("execution requires user_id and ym_cycle")
	}
	return encodeRecord(execution.UserID, models.SubjectExecution, execution.YMCycle, 1, execution)
}

var _ interfaces.ExecutionStore = (*ExecutionStorage)(nil)
