package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/stacker/internal/app"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/models"
)

func newProcessCmd(root *rootOptions) *cobra.Command {
	var (
		userID string
		opts   models.ProcessOptions
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Generate the order sheet for one user",
		Long: "Runs one orchestration for --user. Without --force nothing happens " +
			"unless today is one of the plan's run days.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config, err := common.LoadConfig(app.ResolveConfigPath(root.configPath))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if root.logLevel != "" {
				config.Logging.Level = root.logLevel
			}
			config.Scheduler.Enabled = false

			a, err := app.NewAppWithConfig(ctx, config, common.NewLoggerFromConfig(config.Logging))
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.ExecutionService.Process(ctx, userID, opts)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.Status == models.ProcessStatusError {
				return fmt.Errorf("%s: %s", result.ErrorCode, result.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID to process")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "calculate without saving or notifying")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "run even when today is not a scheduled day")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
