package notify

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stacker/internal/models"
)

// FormatMoney renders amount in currency, rounded to the currency's minor
// unit. Unknown currencies fall back to "<amount> <code>".
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// Subject is the one-line summary used as email subject.
func Subject(exec *models.Execution) string {
	return fmt.Sprintf("[Stacker] %s order sheet: %s to invest", exec.YMCycle, FormatMoney(exec.TotalEstCost, exec.Currency))
}

// RenderText renders an order sheet as plain text.
func RenderText(exec *models.Execution) string {
	var b strings.Builder
	cur := exec.Currency

	fmt.Fprintf(&b, "Order sheet %s (as of %s)\n", exec.YMCycle, exec.AsOfDate)
	fmt.Fprintf(&b, "Cycle %d, weight %s of %s monthly budget: %s\n\n",
		exec.CycleIndex, exec.CycleWeight.String(), FormatMoney(exec.TotalBudget, cur), FormatMoney(exec.CycleBudget, cur))

	for _, it := range exec.Items {
		name := it.Ticker
		if it.Name != "" {
			name = fmt.Sprintf("%s %s", it.Ticker, it.Name)
		}
		fmt.Fprintf(&b, "- %s: buy %d @ %s = %s (carry in %s, carry out %s)\n",
			name, it.Shares, FormatMoney(it.Price, cur), FormatMoney(it.EstCost, cur),
			FormatMoney(it.CarryIn, cur), FormatMoney(it.CarryOut, cur))
	}

	fmt.Fprintf(&b, "\nTotal to invest: %s\n", FormatMoney(exec.TotalEstCost, cur))
	fmt.Fprintf(&b, "Carried to next cycle: %s\n", FormatMoney(exec.TotalCarryOut, cur))
	return b.String()
}
