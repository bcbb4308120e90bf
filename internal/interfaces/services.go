package interfaces

import (
	"context"

	"github.com/bobmcallan/stacker/internal/models"
)

// ExecutionService generates and manages order sheets.
type ExecutionService interface {
	// Process runs one orchestration for the user and classifies the outcome.
	Process(ctx context.Context, userID string, opts models.ProcessOptions) *models.ProcessResult

	GetExecution(ctx context.Context, userID, ymCycle string) (*models.Execution, error)
	ListExecutions(ctx context.Context, userID, yearMonth string) ([]*models.Execution, error)
	ConfirmExecution(ctx context.Context, userID, ymCycle, note string) (*models.Execution, error)
	DeleteExecution(ctx context.Context, userID, ymCycle string) error
}

// PlanService manages DCA plans.
type PlanService interface {
	GetActivePlan(ctx context.Context, userID string) (*models.Plan, error)
	SavePlan(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	ListActivePlans(ctx context.Context) ([]*models.Plan, error)
}

// PortfolioService manages target portfolios.
type PortfolioService interface {
	GetActivePortfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	SavePortfolio(ctx context.Context, portfolio *models.Portfolio) (*models.Portfolio, error)
}
