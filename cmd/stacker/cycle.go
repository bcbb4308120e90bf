package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/stacker/internal/schedule"
)

func newCycleCmd() *cobra.Command {
	var (
		days     []int
		day      int
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Show which cycle a day of the month belongs to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(days) == 0 {
				return fmt.Errorf("--days is required")
			}
			if day == 0 {
				loc, err := schedule.LoadLocation(timezone, time.UTC)
				if err != nil {
					return err
				}
				day = schedule.Today(time.Now(), loc).Day()
			}
			return printCycle(cmd, days, day)
		},
	}
	cmd.Flags().IntSliceVar(&days, "days", nil, "scheduled run days, e.g. 5,19")
	cmd.Flags().IntVar(&day, "day", 0, "day of month to resolve (default: today)")
	cmd.Flags().StringVar(&timezone, "timezone", "Asia/Seoul", "timezone used for today")
	return cmd
}

func printCycle(cmd *cobra.Command, days []int, day int) error {
	out := cmd.OutOrStdout()
	if idx, err := schedule.CycleIndex(days, day); err == nil {
		fmt.Fprintf(out, "day %d: run day, cycle %d of %d\n", day, idx, len(days))
	} else {
		fmt.Fprintf(out, "day %d: not a run day (forced runs use cycle %d)\n", day, schedule.ForceCycleIndex(days, day))
	}
	fmt.Fprintf(out, "next run day: %d\n", schedule.NextRunDay(days, day))
	return nil
}
