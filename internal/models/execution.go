package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus is the lifecycle state of an order sheet.
type ExecutionStatus string

const (
	ExecutionStatusGenerated ExecutionStatus = "GENERATED"
	ExecutionStatusSent      ExecutionStatus = "SENT"
	ExecutionStatusConfirmed ExecutionStatus = "CONFIRMED"
)

// ExecutionItem is one row of an order sheet.
// Invariant: CarryIn + TargetAmount == EstCost + CarryOut.
type ExecutionItem struct {
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Market       string          `json:"market"`
	Price        decimal.Decimal `json:"price"`
	TargetWeight decimal.Decimal `json:"target_weight"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	CarryIn      decimal.Decimal `json:"carry_in"`
	Shares       int64           `json:"shares"`
	EstCost      decimal.Decimal `json:"est_cost"`
	CarryOut     decimal.Decimal `json:"carry_out"`
}

// UserConfirm records the user's explicit confirmation of an order sheet.
type UserConfirm struct {
	ConfirmedAt time.Time `json:"confirmed_at"`
	Note        string    `json:"note,omitempty"`
}

// Execution is the order sheet generated for one (user, cycle).
// Only Status, UserConfirm and DeletedAt change after creation.
type Execution struct {
	ID            string                     `json:"id"`
	UserID        string                     `json:"user_id"`
	YMCycle       string                     `json:"ym_cycle"` // "YYYY-MM#N"
	AsOfDate      string                     `json:"as_of_date"`
	YearMonth     string                     `json:"year_month"`
	CycleIndex    int                        `json:"cycle_index"`
	CycleWeight   decimal.Decimal            `json:"cycle_weight"`
	TotalBudget   decimal.Decimal            `json:"total_budget"`
	CycleBudget   decimal.Decimal            `json:"cycle_budget"`
	Currency      string                     `json:"currency"`
	Items         []ExecutionItem            `json:"items"`
	CarryByTicker map[string]decimal.Decimal `json:"carry_by_ticker"`
	TotalEstCost  decimal.Decimal            `json:"total_est_cost"`
	TotalCarryOut decimal.Decimal            `json:"total_carry_out"`
	Status        ExecutionStatus            `json:"status"`
	UserConfirm   *UserConfirm               `json:"user_confirm,omitempty"`
	DeletedAt     *time.Time                 `json:"deleted_at,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// IsDeleted reports whether the execution carries a soft-delete marker.
func (e *Execution) IsDeleted() bool {
	return e.DeletedAt != nil
}

// ProcessStatus is the terminal outcome of one orchestration run.
type ProcessStatus string

const (
	ProcessStatusCreated ProcessStatus = "created"
	ProcessStatusSkipped ProcessStatus = "skipped"
	ProcessStatusExists  ProcessStatus = "exists"
	ProcessStatusError   ProcessStatus = "error"
)

// ProcessOptions controls one orchestration run.
type ProcessOptions struct {
	DryRun bool `json:"dryRun"`
	Force  bool `json:"force"`
}

// ProcessResult reports the outcome of one orchestration run.
type ProcessResult struct {
	Status    ProcessStatus `json:"status"`
	Message   string        `json:"message"`
	DryRun    bool          `json:"dryRun"`
	Execution *Execution    `json:"execution"`
	ErrorCode string        `json:"errorCode,omitempty"`
}
