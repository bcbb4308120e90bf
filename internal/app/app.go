package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/stacker/internal/clients/longport"
	"github.com/bobmcallan/stacker/internal/clients/naver"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/services/execution"
	"github.com/bobmcallan/stacker/internal/services/notify"
	"github.com/bobmcallan/stacker/internal/services/plan"
	"github.com/bobmcallan/stacker/internal/services/portfolio"
	"github.com/bobmcallan/stacker/internal/services/quote"
	"github.com/bobmcallan/stacker/internal/storage"
	"github.com/bobmcallan/stacker/internal/storage/redislock"
)

// App holds all initialized services, clients and storage.
// It is the shared core used by both cmd/stacker-server and cmd/stacker.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	PriceFeed        interfaces.PriceFeed
	Notifier         interfaces.Notifier
	ExecutionService interfaces.ExecutionService
	PlanService      interfaces.PlanService
	PortfolioService interfaces.PortfolioService
	Locker           interfaces.Locker // nil when Redis is not configured
	StartupTime      time.Time

	scheduler *Scheduler
	closers   []func() error
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: explicit path, STACKER_CONFIG,
// stacker.toml next to the binary, then config/stacker.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("STACKER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "stacker.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stacker.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes all services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewAppWithConfig(ctx, config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppWithConfig initializes all services from an already loaded config.
func NewAppWithConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		StartupTime: startupStart,
	}

	// Price feeds: KRX via Naver always, US/HK via Longport when credentialed
	router := quote.NewService(logger).
		Route("KRW", naver.NewClientFromConfig(config.Clients.Naver, logger))
	if config.Clients.Longport.Enabled() {
		lp, err := longport.NewClient(config.Clients.Longport, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Longport unavailable - US/HK quotes disabled")
		} else {
			router.Route("USD", lp).Route("HKD", lp)
			a.closers = append(a.closers, func() error { lp.Close(); return nil })
		}
	} else {
		logger.Warn().Msg("Longport credentials not configured - US/HK quotes disabled")
	}
	a.PriceFeed = router

	if config.Redis.Address != "" {
		locker, err := redislock.NewLocker(ctx, config.Redis, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		a.Locker = locker
		a.closers = append(a.closers, locker.Close)
	}

	a.Notifier = notify.NewServiceFromConfig(config.Notify, logger)
	a.PlanService = plan.NewService(storageManager, logger)
	a.PortfolioService = portfolio.NewService(storageManager, logger)
	a.ExecutionService = execution.NewServiceFromConfig(config, storageManager, a.PriceFeed, logger,
		execution.WithNotifier(a.Notifier),
	)

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// StartScheduler starts the daily execution sweep when enabled in config.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Execution scheduler disabled")
		return nil
	}
	s := NewScheduler(a.PlanService, a.ExecutionService, a.Locker, a.Config.LoadLocation(), a.Logger)
	if err := s.Start(a.Config.Scheduler.Spec); err != nil {
		return err
	}
	a.scheduler = s
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close clients and locks, close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
		a.Storage = nil
	}
}
