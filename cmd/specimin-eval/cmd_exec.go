package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/execution"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/orchestration"
	"github.com/timsvoice/specimin/internal/utils"
)

var execWriteResult bool

func newExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <case-dir>",
		Short: "Execute one test case and print its result",
		Long: `Execute the generated tests of one case directory against its generated
implementation and print the classified result as JSON.

The command always exits 0: a case that cannot be run is reported through the
result's error_kind, never through the exit code.`,
		Args: cobra.ExactArgs(1),
		RunE: execCommandE,
	}

	cmd.Flags().BoolVar(&execWriteResult, "write", false, "Also write the result record into the case directory")

	return cmd
}

func execCommandE(cmd *cobra.Command, args []string) error {
	result := executeCase(cmd.Context(), args[0])
	return printJSON(cmd.OutOrStdout(), result)
}

// executeCase never fails: configuration and loading problems become an
// execution_error result.
func executeCase(ctx context.Context, caseDir string) *models.ExecutionResult {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return harnessFailure(caseDir, err)
	}

	opts, err := execution.OptionsFromConfig(cfg)
	if err != nil {
		return harnessFailure(caseDir, err)
	}

	tc, err := execution.LoadCase(caseDir, cfg.Layout)
	if err != nil {
		return harnessFailure(caseDir, err)
	}

	result := execution.New(opts).Execute(ctx, tc)

	if execWriteResult {
		if err := orchestration.WriteResult(tc, result, cfg.Layout.ResultFile); err != nil {
			slog.Warn("failed to write result record", "case_dir", tc.CaseDir, "error", err)
		}
	}
	return result
}

func harnessFailure(caseDir string, err error) *models.ExecutionResult {
	return &models.ExecutionResult{
		TestID:      filepath.Base(filepath.Clean(caseDir)),
		ErrorKind:   models.ErrorKindExecutionError,
		ErrorDetail: utils.Ptr(err.Error()),
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
