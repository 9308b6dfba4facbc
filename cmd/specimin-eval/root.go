package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/webapi"
)

var version = "dev"

// envFile is loaded, when present, before the project configuration so judge
// and storage credentials can live there.
const envFile = ".env"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specimin-eval",
		Short: "Evaluate generated Python implementations against their generated tests",
		Long: `specimin-eval executes generated implementations against their generated tests,
aggregates the results of a run into a report and tracks pass rates across runs.

Each case lives in its own directory of a run directory. Project settings are
read from .specimin.yaml, searched for upward from the working directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newExecCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newBaselineCommand())
	cmd.AddCommand(newScoreCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	webapi.Version = version
	return newRootCommand().Execute()
}

// loadProjectConfig loads .env from the working directory, then the project
// configuration found from there.
func loadProjectConfig() (*projectconfig.ProjectConfig, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return projectconfig.Load(wd)
}
