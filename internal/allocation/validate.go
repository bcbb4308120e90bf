// Package allocation splits a cycle budget across target holdings.
//
// The calculation is pure: identical inputs always produce identical order
// rows, so a dry run can be recomputed freely without creating state.
package allocation

import (
	"sort"

	"github.com/bobmcallan/stacker/internal/models"
	"github.com/shopspring/decimal"
)

// WeightTolerance is the allowed distance of a weight sum from 1.0.
var WeightTolerance = decimal.RequireFromString("0.001")

// Input is one calculation request.
type Input struct {
	MonthlyBudget decimal.Decimal
	CycleWeight   decimal.Decimal
	Holdings      []models.Holding
	Prices        map[string]decimal.Decimal
	CarryIn       map[string]decimal.Decimal
}

// WeightsSumToOne reports whether |Σ weights − 1| ≤ WeightTolerance.
func WeightsSumToOne(weights []decimal.Decimal) (decimal.Decimal, bool) {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	return sum, sum.Sub(decimal.NewFromInt(1)).Abs().LessThanOrEqual(WeightTolerance)
}

// Validate checks a request before any arithmetic. Categories are checked in
// a fixed order and the first violated one is returned.
func Validate(in Input) error {
	if len(in.Holdings) == 0 {
		return newValidationError(KindEmptyHoldings, nil, "holdings must not be empty")
	}

	if !in.CycleWeight.IsPositive() || in.CycleWeight.GreaterThan(decimal.NewFromInt(1)) {
		return newValidationError(KindInvalidCycleWeight,
			map[string]any{"cycle_weight": in.CycleWeight.String()},
			"cycle weight must be in (0, 1], got %s", in.CycleWeight)
	}

	if in.MonthlyBudget.IsNegative() {
		return newValidationError(KindInvalidMonthlyBudget,
			map[string]any{"monthly_budget": in.MonthlyBudget.String()},
			"monthly budget must not be negative, got %s", in.MonthlyBudget)
	}

	weights := make([]decimal.Decimal, len(in.Holdings))
	for i, h := range in.Holdings {
		weights[i] = h.TargetWeight
	}
	if sum, ok := WeightsSumToOne(weights); !ok {
		return newValidationError(KindInvalidTargetWeightSum,
			map[string]any{"sum": sum.String(), "tolerance": WeightTolerance.String()},
			"target weights must sum to 1.0 (got %s)", sum)
	}

	for _, h := range in.Holdings {
		price, ok := in.Prices[h.Ticker]
		if !ok {
			return newValidationError(KindMissingPrice,
				map[string]any{"ticker": h.Ticker},
				"no price for ticker %s", h.Ticker)
		}
		if !price.IsPositive() {
			return newValidationError(KindInvalidPrice,
				map[string]any{"ticker": h.Ticker, "price": price.String()},
				"price for ticker %s must be positive, got %s", h.Ticker, price)
		}
	}

	tickers := make([]string, 0, len(in.CarryIn))
	for t := range in.CarryIn {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		if amount := in.CarryIn[t]; amount.IsNegative() {
			return newValidationError(KindNegativeCarryIn,
				map[string]any{"ticker": t, "carry_in": amount.String()},
				"carry-in for ticker %s must not be negative, got %s", t, amount)
		}
	}

	return nil
}
