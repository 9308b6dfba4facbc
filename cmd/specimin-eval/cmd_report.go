package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/metrics"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/orchestration"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/rubric"
	"github.com/timsvoice/specimin/internal/utils"
	"github.com/timsvoice/specimin/internal/watch"
)

var (
	reportJUnitPath   string
	reportHTML        bool
	reportMetricsFile string
	reportWatch       bool
	reportInterpret   bool
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <run-dir>",
		Short: "Aggregate the result records of a run into a report",
		Long: `Aggregate the result record of every case directory under a run directory,
then write the JSON and markdown reports into the run directory.

The paths of both reports are printed on success.`,
		Args: cobra.ExactArgs(1),
		RunE: reportCommandE,
	}

	cmd.Flags().StringVar(&reportJUnitPath, "junit", "", "Also write a JUnit XML report to this path")
	cmd.Flags().BoolVar(&reportHTML, "html", false, "Also write an HTML report next to the markdown report")
	cmd.Flags().StringVar(&reportMetricsFile, "metrics-file", "", "Also write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVar(&reportWatch, "watch", false, "Regenerate the report whenever a result record changes")
	cmd.Flags().BoolVar(&reportInterpret, "interpret", false, "Print a plain-language summary of the report")

	return cmd
}

func reportCommandE(cmd *cobra.Command, args []string) error {
	runDir := args[0]

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	rubrics, err := rubric.Load(cfg.Judge.RubricsDir)
	if err != nil {
		return err
	}
	dims := rubric.Dimensions(rubrics)

	out := cmd.OutOrStdout()
	if err := writeReports(out, runDir, cfg, dims); err != nil {
		return err
	}

	if !reportWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(runDir, cfg.Layout.ResultFile, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	fmt.Fprintf(out, "Watching %s for result changes (Ctrl+C to stop)\n", runDir)
	return w.Run(ctx, func() error {
		return writeReports(out, runDir, cfg, dims)
	})
}

// writeReports builds the run report and every requested extra output.
func writeReports(out io.Writer, runDir string, cfg *projectconfig.ProjectConfig, dims map[models.ArtifactKind][]string) error {
	threshold := cfg.Policy.PassThreshold

	report, paths, err := orchestration.BuildReport(runDir, cfg, dims, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, paths.JSON)
	fmt.Fprintln(out, paths.Markdown)

	if reportHTML {
		page, err := reporting.RenderHTML(report, threshold)
		if err != nil {
			return err
		}
		htmlPath := filepath.Join(runDir, cfg.Layout.ReportBaseName+".html")
		if err := utils.WriteFileAtomic(htmlPath, page, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(out, htmlPath)
	}

	if reportJUnitPath != "" {
		if err := reporting.WriteJUnitXML(report, threshold, reportJUnitPath); err != nil {
			return err
		}
		fmt.Fprintln(out, reportJUnitPath)
	}

	if reportMetricsFile != "" {
		if err := metrics.WriteTextfile(reportMetricsFile, report, nil, threshold); err != nil {
			return err
		}
		fmt.Fprintln(out, reportMetricsFile)
	}

	if reportInterpret {
		fmt.Fprintln(out)
		fmt.Fprint(out, reporting.FormatSummaryReport(report, threshold))
	}

	return nil
}

// commandContext returns the command's context, or a background context when
// the command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
