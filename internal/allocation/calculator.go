package allocation

import (
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/shopspring/decimal"
)

// Result is the outcome of one calculation. Items follow the input holding order.
type Result struct {
	CycleBudget      decimal.Decimal
	Items            []models.ExecutionItem
	CarryOutByTicker map[string]decimal.Decimal
	TotalEstCost     decimal.Decimal
	TotalCarryOut    decimal.Decimal
}

// Calculate splits monthlyBudget*cycleWeight across the holdings.
//
// Shares are always floored so a cycle never spends more than its budget;
// currency amounts are kept unrounded and the remainder per ticker is carried
// into the next cycle for that ticker only.
func Calculate(in Input) (*Result, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	cycleBudget := in.MonthlyBudget.Mul(in.CycleWeight)

	result := &Result{
		CycleBudget:      cycleBudget,
		Items:            make([]models.ExecutionItem, 0, len(in.Holdings)),
		CarryOutByTicker: make(map[string]decimal.Decimal, len(in.Holdings)),
		TotalEstCost:     decimal.Zero,
		TotalCarryOut:    decimal.Zero,
	}

	// A ticker listed twice receives its carry-in on the first row only.
	carryUsed := make(map[string]bool, len(in.CarryIn))
	for _, h := range in.Holdings {
		price := in.Prices[h.Ticker]
		targetAmount := cycleBudget.Mul(h.TargetWeight)
		carryIn, ok := in.CarryIn[h.Ticker]
		if !ok || carryUsed[h.Ticker] {
			carryIn = decimal.Zero
		}
		carryUsed[h.Ticker] = true
		budget := targetAmount.Add(carryIn)

		// budget ≥ 0 and price > 0, so truncation is floor
		shares, _ := budget.QuoRem(price, 0)
		estCost := shares.Mul(price)
		carryOut := budget.Sub(estCost)

		result.Items = append(result.Items, models.ExecutionItem{
			Ticker:       h.Ticker,
			Name:         h.Name,
			Market:       h.Market,
			Price:        price,
			TargetWeight: h.TargetWeight,
			TargetAmount: targetAmount,
			CarryIn:      carryIn,
			Shares:       shares.IntPart(),
			EstCost:      estCost,
			CarryOut:     carryOut,
		})

		if prev, seen := result.CarryOutByTicker[h.Ticker]; seen {
			result.CarryOutByTicker[h.Ticker] = prev.Add(carryOut)
		} else {
			result.CarryOutByTicker[h.Ticker] = carryOut
		}
		result.TotalEstCost = result.TotalEstCost.Add(estCost)
		result.TotalCarryOut = result.TotalCarryOut.Add(carryOut)
	}

	return result, nil
}
