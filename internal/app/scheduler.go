package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// sweepLockTTL bounds how long a crashed replica can hold the daily lock.
const sweepLockTTL = 30 * time.Minute

// SweepSummary counts the outcomes of one sweep.
type SweepSummary struct {
	Date    string
	Skipped bool // another replica holds the day's lock
	Counts  map[models.ProcessStatus]int
}

// Scheduler runs the daily execution sweep on a cron spec.
type Scheduler struct {
	cron       *cron.Cron
	plans      interfaces.PlanService
	executions interfaces.ExecutionService
	locker     interfaces.Locker // nil disables cross-replica locking
	location   *time.Location
	logger     *common.Logger
	now        func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewScheduler builds a scheduler whose cron spec is evaluated in loc.
func NewScheduler(plans interfaces.PlanService, executions interfaces.ExecutionService, locker interfaces.Locker, loc *time.Location, logger *common.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		plans:      plans,
		executions: executions,
		locker:     locker,
		location:   loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the sweep on spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	ctx := s.baseCtx
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Execution sweep failed")
		}
	}); err != nil {
		s.cancel()
		return fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}

	s.cron.Start()
	s.logger.Info().Str("spec", spec).Str("timezone", s.location.String()).Msg("Execution scheduler started")
	return nil
}

// Stop cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Execution scheduler stopped")
}

// Sweep processes every active plan once for today. Each user is processed
// unforced, so only users whose run day it is produce an order sheet.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepSummary, error) {
	start := s.now()
	summary := &SweepSummary{
		Date:   start.In(s.location).Format("2006-01-02"),
		Counts: make(map[models.ProcessStatus]int),
	}

	if s.locker != nil {
		key := "sweep:" + summary.Date
		ok, err := s.locker.TryLock(ctx, key, sweepLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			summary.Skipped = true
			s.logger.Info().Str("date", summary.Date).Msg("Execution sweep: held by another replica")
			return summary, nil
		}
		// The lock is kept until its TTL so later ticks the same day skip.
	}

	plans, err := s.plans.ListActivePlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active plans: %w", err)
	}

	seen := make(map[string]bool, len(plans))
	for _, plan := range plans {
		if seen[plan.UserID] {
			continue
		}
		seen[plan.UserID] = true

		if ctx.Err() != nil {
			break
		}
		result := s.executions.Process(ctx, plan.UserID, models.ProcessOptions{})
		summary.Counts[result.Status]++
	}

	s.logger.Info().
		Str("date", summary.Date).
		Int("users", len(seen)).
		Int("created", summary.Counts[models.ProcessStatusCreated]).
		Int("exists", summary.Counts[models.ProcessStatusExists]).
		Int("skipped", summary.Counts[models.ProcessStatusSkipped]).
		Int("errors", summary.Counts[models.ProcessStatusError]).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Execution sweep: complete")

	return summary, ctx.Err()
}
