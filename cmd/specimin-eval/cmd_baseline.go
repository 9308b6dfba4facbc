package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/baseline"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/reporting"
)

func newBaselineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline <report.json>",
		Short: "Append a run report to the baseline log and check for regressions",
		Long: `Append the statistics of a run report to the baseline log, compare them with
the previous entry and print the regression verdict as JSON.

The baseline log is configured under "baseline:" in .specimin.yaml and defaults
to baseline_history.json in the working directory.`,
		Args: cobra.ExactArgs(1),
		RunE: baselineCommandE,
	}

	return cmd
}

func baselineCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	report, err := reporting.LoadReport(args[0])
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	tracker, closeStore, err := openTracker(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	verdict, err := tracker.RecordAndCompare(ctx, report)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), verdict)
}

// openTracker opens the configured baseline store. The returned func closes it.
func openTracker(cmd *cobra.Command, cfg *projectconfig.ProjectConfig) (*baseline.Tracker, func(), error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	store, err := baseline.OpenStore(commandContext(cmd), cfg.Baseline, wd)
	if err != nil {
		return nil, nil, fmt.Errorf("opening baseline store: %w", err)
	}
	slog.Debug("baseline store opened", "store", store.String())

	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close baseline store", "store", store.String(), "error", err)
		}
	}
	return baseline.NewTracker(store, policyFor(cfg.Policy.RegressionThreshold)), closeStore, nil
}
