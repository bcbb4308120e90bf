package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bobmcallan/stacker/internal/allocation"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/services/notify"
)

// calcFile is the input of the calc command. TOML input is converted to
// JSON first so both formats share these tags and amounts may be written as
// numbers or strings.
type calcFile struct {
	Currency      string                     `json:"currency"`
	MonthlyBudget decimal.Decimal            `json:"monthly_budget"`
	CycleWeight   decimal.Decimal            `json:"cycle_weight"`
	Holdings      []models.Holding           `json:"holdings"`
	Prices        map[string]decimal.Decimal `json:"prices"`
	CarryIn       map[string]decimal.Decimal `json:"carry_in"`
}

func newCalcCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "calc FILE",
		Short: "Run the allocation calculator on a TOML or JSON input file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadCalcFile(args[0])
			if err != nil {
				return err
			}
			result, err := allocation.Calculate(allocation.Input{
				MonthlyBudget: in.MonthlyBudget,
				CycleWeight:   in.CycleWeight,
				Holdings:      in.Holdings,
				Prices:        in.Prices,
				CarryIn:       in.CarryIn,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			writeCalcResult(cmd.OutOrStdout(), in.Currency, result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func loadCalcFile(path string) (*calcFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var raw map[string]interface{}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return nil, err
		}
	}

	in := &calcFile{Currency: "KRW"}
	if err := json.Unmarshal(data, in); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	in.Currency = strings.ToUpper(in.Currency)
	return in, nil
}

func writeCalcResult(w io.Writer, cur string, r *allocation.Result) {
	fmt.Fprintf(w, "Cycle budget: %s\n", notify.FormatMoney(r.CycleBudget, cur))
	for _, it := range r.Items {
		fmt.Fprintf(w, "%-10s %6d x %-14s = %-14s carry %s\n",
			it.Ticker, it.Shares, notify.FormatMoney(it.Price, cur),
			notify.FormatMoney(it.EstCost, cur), notify.FormatMoney(it.CarryOut, cur))
	}
	fmt.Fprintf(w, "Total: %s, carried: %s\n",
		notify.FormatMoney(r.TotalEstCost, cur), notify.FormatMoney(r.TotalCarryOut, cur))
}
