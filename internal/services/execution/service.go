// Package execution generates, persists and manages cycle order sheets.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stacker/internal/allocation"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/currency"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/schedule"
	"github.com/bobmcallan/stacker/internal/services/carry"
)

// Compile-time interface check
var _ interfaces.ExecutionService = (*Service)(nil)

// Error codes reported in ProcessResult.ErrorCode besides the allocation kinds.
const (
	CodePriceFetchFailed    = "PRICE_FETCH_FAILED"
	CodeInvalidExchangeRate = "INVALID_EXCHANGE_RATE"
	CodeInvalidPlan         = "INVALID_PLAN"
	CodeStorage             = "STORAGE_ERROR"
)

// ErrExecutionConfirmed is returned when a confirmed order sheet would be deleted.
var ErrExecutionConfirmed = errors.New("execution already confirmed")

// Defaults used when no option overrides them.
const (
	DefaultPriceFetchDelay = 200 * time.Millisecond
	DefaultTimeout         = 60 * time.Second
)

// Service implements ExecutionService.
type Service struct {
	storage    interfaces.StorageManager
	feed       interfaces.PriceFeed
	rates      interfaces.RateSource
	notifier   interfaces.Notifier
	carry      *carry.Resolver
	normalizer *currency.Normalizer
	logger     *common.Logger

	location   *time.Location
	fetchDelay time.Duration
	timeout    time.Duration
	strict     bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// Option configures the service
type Option func(*Service)

// WithRateSource sets the exchange rates used for non-base quotes.
func WithRateSource(rates interfaces.RateSource) Option {
	return func(s *Service) { s.rates = rates }
}

// WithNotifier sets the notifier called after an order sheet is sent.
func WithNotifier(n interfaces.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithBaseCurrency sets the currency order sheets are denominated in.
func WithBaseCurrency(base string) Option {
	return func(s *Service) { s.normalizer = currency.NewNormalizer(base) }
}

// WithLocation sets the timezone used when a plan has none.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithPriceFetchDelay sets the pause between sequential price requests.
func WithPriceFetchDelay(d time.Duration) Option {
	return func(s *Service) { s.fetchDelay = d }
}

// WithTimeout sets the deadline for one Process call. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithStrictIdempotency makes the first write a put-if-absent, so two
// concurrent runs for the same cycle cannot both persist.
func WithStrictIdempotency(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSleep overrides the inter-request pause.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = sleep }
}

// NewService creates a new execution service
func NewService(storage interfaces.StorageManager, feed interfaces.PriceFeed, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		storage:    storage,
		feed:       feed,
		carry:      carry.NewResolver(storage.ExecutionStore(), logger),
		normalizer: currency.NewNormalizer(currency.DefaultBase),
		logger:     logger,
		location:   time.UTC,
		fetchDelay: DefaultPriceFetchDelay,
		timeout:    DefaultTimeout,
		now:        time.Now,
		sleep:      sleepContext,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromConfig applies the [execution] config section.
func NewServiceFromConfig(cfg *common.Config, storage interfaces.StorageManager, feed interfaces.PriceFeed, logger *common.Logger, opts ...Option) *Service {
	base := []Option{
		WithBaseCurrency(cfg.Execution.BaseCurrency),
		WithLocation(cfg.LoadLocation()),
		WithPriceFetchDelay(cfg.Execution.GetPriceFetchDelay()),
		WithTimeout(cfg.Execution.GetTimeout()),
		WithStrictIdempotency(cfg.Execution.StrictIdempotency),
		WithRateSource(currency.NewStaticRates(cfg.FX)),
	}
	return NewService(storage, feed, logger, append(base, opts...)...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func skipped(msg string, dryRun bool) *models.ProcessResult {
	return &models.ProcessResult{Status: models.ProcessStatusSkipped, Message: msg, DryRun: dryRun}
}

func failed(code string, err error, dryRun bool) *models.ProcessResult {
	return &models.ProcessResult{Status: models.ProcessStatusError, Message: err.Error(), DryRun: dryRun, ErrorCode: code}
}

// Process runs one orchestration for userID. Expected absences are reported
// as skipped, an existing order sheet as exists, and only price, rate,
// calculation and storage failures as error. Nothing is written on any path
// before the calculation has succeeded.
func (s *Service) Process(ctx context.Context, userID string, opts models.ProcessOptions) *models.ProcessResult {
	start := s.now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result := s.process(ctx, userID, opts)

	var event *zerolog.Event
	if result.Status == models.ProcessStatusError {
		event = s.logger.Warn().Str("error_code", result.ErrorCode)
	} else {
		event = s.logger.Info()
	}
	if result.Execution != nil {
		event = event.Str("ym_cycle", result.Execution.YMCycle)
	}
	event.
		Str("user_id", userID).
		Str("status", string(result.Status)).
		Bool("dry_run", opts.DryRun).
		Bool("force", opts.Force).
		Dur("elapsed", s.now().Sub(start)).
		Msg(result.Message)

	return result
}

func (s *Service) process(ctx context.Context, userID string, opts models.ProcessOptions) *models.ProcessResult {
	dry := opts.DryRun

	plan, err := s.storage.PlanStore().GetActivePlan(ctx, userID)
	if err != nil {
		return failed(CodeStorage, fmt.Errorf("failed to load plan: %w", err), dry)
	}
	if plan == nil {
		return skipped("no active plan", dry)
	}

	loc, err := schedule.LoadLocation(plan.Schedule.Timezone, s.location)
	if err != nil {
		return failed(CodeInvalidPlan, err, dry)
	}
	today := schedule.Today(s.now(), loc)
	day := today.Day()

	if !opts.Force && !schedule.IsRunDay(plan.Schedule.Days, day) {
		return skipped(fmt.Sprintf("day %d is not a run day; next run day is %d",
			day, schedule.NextRunDay(plan.Schedule.Days, day)), dry)
	}

	portfolio, err := s.storage.PortfolioStore().GetActivePortfolio(ctx, userID)
	if err != nil {
		return failed(CodeStorage, fmt.Errorf("failed to load portfolio: %w", err), dry)
	}
	if portfolio == nil {
		return skipped("no active portfolio", dry)
	}
	if len(portfolio.Holdings) == 0 {
		return skipped("portfolio has no holdings", dry)
	}

	var cycleIndex int
	if opts.Force {
		cycleIndex = schedule.ForceCycleIndex(plan.Schedule.Days, day)
	} else if cycleIndex, err = schedule.CycleIndex(plan.Schedule.Days, day); err != nil {
		return failed(CodeInvalidPlan, err, dry)
	}
	if cycleIndex < 1 || cycleIndex > len(plan.CycleWeights) {
		return failed(CodeInvalidPlan, fmt.Errorf("plan has no weight for cycle %d (%d weights)",
			cycleIndex, len(plan.CycleWeights)), dry)
	}
	cycleWeight := plan.CycleWeights[cycleIndex-1]

	yearMonth := schedule.YearMonth(today)
	ymCycle := schedule.FormatYMCycle(yearMonth, cycleIndex)

	existing, err := s.storage.ExecutionStore().Get(ctx, userID, ymCycle)
	if err != nil {
		return failed(CodeStorage, fmt.Errorf("failed to check execution %s: %w", ymCycle, err), dry)
	}
	if existing != nil && !existing.IsDeleted() {
		return &models.ProcessResult{
			Status:    models.ProcessStatusExists,
			Message:   fmt.Sprintf("order sheet %s already exists", ymCycle),
			DryRun:    dry,
			Execution: existing,
		}
	}

	prices, code, err := s.fetchPrices(ctx, portfolio.Holdings)
	if err != nil {
		return failed(code, err, dry)
	}

	carryIn, err := s.carry.Resolve(ctx, userID, yearMonth, cycleIndex)
	if err != nil {
		return failed(CodeStorage, fmt.Errorf("failed to resolve carry-in: %w", err), dry)
	}

	calc, err := allocation.Calculate(allocation.Input{
		MonthlyBudget: plan.MonthlyBudget,
		CycleWeight:   cycleWeight,
		Holdings:      portfolio.Holdings,
		Prices:        prices,
		CarryIn:       carryIn,
	})
	if err != nil {
		code := CodeInvalidPlan
		if kind, ok := allocation.KindOf(err); ok {
			code = string(kind)
		}
		return failed(code, err, dry)
	}

	now := s.now()
	exec := &models.Execution{
		ID:            s.newID(),
		UserID:        userID,
		YMCycle:       ymCycle,
		AsOfDate:      today.Format("2006-01-02"),
		YearMonth:     yearMonth,
		CycleIndex:    cycleIndex,
		CycleWeight:   cycleWeight,
		TotalBudget:   plan.MonthlyBudget,
		CycleBudget:   calc.CycleBudget,
		Currency:      s.normalizer.Base(),
		Items:         calc.Items,
		CarryByTicker: calc.CarryOutByTicker,
		TotalEstCost:  calc.TotalEstCost,
		TotalCarryOut: calc.TotalCarryOut,
		Status:        models.ExecutionStatusGenerated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if dry {
		return &models.ProcessResult{
			Status:    models.ProcessStatusCreated,
			Message:   fmt.Sprintf("dry run: order sheet %s computed, not saved", ymCycle),
			DryRun:    true,
			Execution: exec,
		}
	}

	if s.strict && existing == nil {
		if err := s.storage.ExecutionStore().Create(ctx, exec); err != nil {
			if errors.Is(err, interfaces.ErrAlreadyExists) {
				winner, getErr := s.storage.ExecutionStore().Get(ctx, userID, ymCycle)
				if getErr == nil && winner != nil {
					exec = winner
				}
				return &models.ProcessResult{
					Status:    models.ProcessStatusExists,
					Message:   fmt.Sprintf("order sheet %s already exists", ymCycle),
					Execution: exec,
				}
			}
			return failed(CodeStorage, fmt.Errorf("failed to save execution: %w", err), false)
		}
	} else if err := s.storage.ExecutionStore().Save(ctx, exec); err != nil {
		return failed(CodeStorage, fmt.Errorf("failed to save execution: %w", err), false)
	}

	exec.Status = models.ExecutionStatusSent
	exec.UpdatedAt = s.now()
	if err := s.storage.ExecutionStore().Save(ctx, exec); err != nil {
		exec.Status = models.ExecutionStatusGenerated
		res := failed(CodeStorage, fmt.Errorf("order sheet %s saved but not marked sent: %w", ymCycle, err), false)
		res.Execution = exec
		return res
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, plan, exec); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("ym_cycle", ymCycle).Msg("Notification failed")
		}
	}

	return &models.ProcessResult{
		Status:    models.ProcessStatusCreated,
		Message:   fmt.Sprintf("order sheet %s created", ymCycle),
		Execution: exec,
	}
}

// fetchPrices queries holdings one at a time with a pause between requests,
// converting every quote into the base currency. Rates are loaded once, and
// only when a quote arrives in another currency.
func (s *Service) fetchPrices(ctx context.Context, holdings []models.Holding) (map[string]decimal.Decimal, string, error) {
	prices := make(map[string]decimal.Decimal, len(holdings))
	var rates map[string]decimal.Decimal

	for i, h := range holdings {
		if i > 0 {
			if err := s.sleep(ctx, s.fetchDelay); err != nil {
				return nil, CodePriceFetchFailed, fmt.Errorf("price fetch aborted before %s: %w", h.Ticker, err)
			}
		}

		q, err := s.feed.FetchPrice(ctx, h.Ticker, h.Market)
		if err != nil {
			return nil, CodePriceFetchFailed, fmt.Errorf("failed to fetch price for %s: %w", h.Ticker, err)
		}

		price := q.Price
		if q.Currency != "" && !strings.EqualFold(q.Currency, s.normalizer.Base()) {
			if rates == nil {
				if s.rates == nil {
					return nil, CodeInvalidExchangeRate, fmt.Errorf("%w: no rate source for %s", currency.ErrInvalidExchangeRate, q.Currency)
				}
				if rates, err = s.rates.Rates(ctx); err != nil {
					return nil, CodeInvalidExchangeRate, fmt.Errorf("failed to load exchange rates: %w", err)
				}
			}
			if price, err = s.normalizer.ToBase(q.Price, q.Currency, rates); err != nil {
				return nil, CodeInvalidExchangeRate, fmt.Errorf("failed to convert %s price: %w", h.Ticker, err)
			}
		}
		prices[h.Ticker] = price
	}

	return prices, "", nil
}
