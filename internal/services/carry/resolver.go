// Package carry resolves the per-ticker carry-in of a cycle from the
// execution that preceded it.
package carry

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/schedule"
)

// MaxCyclesPerMonth bounds the previous-month probe.
const MaxCyclesPerMonth = 3

// Resolver looks up carry-over from earlier executions.
type Resolver struct {
	executions interfaces.ExecutionStore
	logger     *common.Logger
}

func NewResolver(executions interfaces.ExecutionStore, logger *common.Logger) *Resolver {
	return &Resolver{executions: executions, logger: logger}
}

// Resolve returns the carry-in for cycleIndex of yearMonth.
//
// Cycle N>1 reads cycle N-1 of the same month. Cycle 1 probes the previous
// month's cycles 3, 2, 1 and takes the first one found. A missing or
// soft-deleted execution yields an empty map, never an error.
func (r *Resolver) Resolve(ctx context.Context, userID, yearMonth string, cycleIndex int) (map[string]decimal.Decimal, error) {
	if cycleIndex > 1 {
		return r.carryOf(ctx, userID, schedule.FormatYMCycle(yearMonth, cycleIndex-1))
	}

	prev, err := schedule.PreviousYearMonth(yearMonth)
	if err != nil {
		return nil, err
	}
	for idx := MaxCyclesPerMonth; idx >= 1; idx-- {
		key := schedule.FormatYMCycle(prev, idx)
		exec, err := r.executions.Get(ctx, userID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read execution %s: %w", key, err)
		}
		if exec == nil || exec.IsDeleted() {
			continue
		}
		r.logger.Debug().Str("user_id", userID).Str("from", key).Msg("Carry-in resolved from previous month")
		return copyCarry(exec.CarryByTicker), nil
	}
	return map[string]decimal.Decimal{}, nil
}

func (r *Resolver) carryOf(ctx context.Context, userID, key string) (map[string]decimal.Decimal, error) {
	exec, err := r.executions.Get(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution %s: %w", key, err)
	}
	if exec == nil || exec.IsDeleted() {
		return map[string]decimal.Decimal{}, nil
	}
	return copyCarry(exec.CarryByTicker), nil
}

func copyCarry(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
