package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/baseline"
	"github.com/timsvoice/specimin/internal/cache"
	"github.com/timsvoice/specimin/internal/execution"
	"github.com/timsvoice/specimin/internal/orchestration"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/rubric"
	"github.com/timsvoice/specimin/internal/spinner"
)

var (
	verbose      bool
	caseFilters  []string
	parallel     bool
	workers      int
	enableCache  bool
	disableCache bool
	runCacheDir  string
	noBaseline   bool
	strict       bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <run-dir>",
		Short: "Execute every case of a run, then report and update the baseline",
		Long: `Execute every case directory under a run directory, write each case's result
record, build the run report and append it to the baseline log.

Cases run sequentially unless --parallel is given. With --strict the command
fails when the run is below the pass threshold or regressed.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print progress for every case")
	cmd.Flags().StringArrayVar(&caseFilters, "case", nil, "Select cases by name/ID glob; prefix with ! to exclude (can be repeated)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run cases concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (default from config, requires --parallel)")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable the execution cache")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable the execution cache even if enabled in config")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory (default from config)")
	cmd.Flags().BoolVar(&noBaseline, "no-baseline", false, "Do not append the run to the baseline log")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the run is below the pass threshold or regressed")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	runDir := args[0]

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	// CLI flags override config
	if parallel {
		cfg.Execution.Parallel = &parallel
	}
	if workers > 0 {
		cfg.Execution.Workers = workers
	}

	opts, err := execution.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	executor := execution.New(opts)

	rubrics, err := rubric.Load(cfg.Judge.RubricsDir)
	if err != nil {
		return err
	}

	runnerOpts := []orchestration.RunnerOption{
		orchestration.WithCaseFilters(caseFilters...),
		orchestration.WithDimensions(rubric.Dimensions(rubrics)),
		orchestration.WithVerboseHooks(verbose),
	}

	useCache := (enableCache || (cfg.Cache.Enabled != nil && *cfg.Cache.Enabled)) && !disableCache
	if useCache {
		dir := runCacheDir
		if dir == "" {
			dir = cfg.Cache.Dir
		}
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		effective := executor.Options()
		runnerOpts = append(runnerOpts, orchestration.WithCache(cache.New(absDir), cache.KeyOptions{
			ImportName:    effective.ImportName,
			RunnerCommand: effective.RunnerCommand,
			Timeout:       effective.Timeout,
			SyntaxChecker: cfg.Execution.SyntaxChecker,
		}))
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "Cache enabled: %s\n", absDir)
		}
	}

	if !noBaseline {
		tracker, closeStore, err := openTracker(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		runnerOpts = append(runnerOpts, orchestration.WithBaseline(tracker))
	}

	runner := orchestration.NewRunner(cfg, executor, runnerOpts...)
	out := cmd.OutOrStdout()
	stopSpinner := func() {}
	switch {
	case verbose:
		runner.OnProgress(progressPrinter(out))
	case isTerminal(out):
		sp := spinner.Start(out, "Discovering cases")
		runner.OnProgress(spinnerProgress(sp))
		stopSpinner = sp.Stop
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := runner.Run(ctx, runDir)
	stopSpinner()
	if err != nil {
		return err
	}

	threshold := cfg.Policy.PassThreshold
	printRunSummary(out, outcome, threshold)

	passing, status := reporting.Status(outcome.Report.Statistics.PassRate, threshold)
	if !strict {
		return nil
	}

	var errs []error
	if !passing {
		errs = append(errs, errors.New(status))
	}
	if outcome.Verdict != nil && outcome.Verdict.HasRegression {
		errs = append(errs, errors.New(outcome.Verdict.Message))
	}
	return errors.Join(errs...)
}

// policyFor converts the configured thresholds into a regression policy.
func policyFor(regressionThreshold float64) baseline.Policy {
	if regressionThreshold == 0 {
		return baseline.DefaultPolicy()
	}
	return baseline.Policy{RegressionThreshold: regressionThreshold}
}
