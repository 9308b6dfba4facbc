package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/cache"
)

var (
	cacheDir   string
	cacheForce bool
)

// promptConfirm is a test hook for replacing the confirmation prompt in tests.
// It reports whether the prompt was shown and whether the answer was yes.
var promptConfirm = defaultPromptConfirm

func defaultPromptConfirm(in io.Reader, out io.Writer, question string) (asked, confirmed bool) {
	if !isTerminal(in) {
		return false, false
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).WithInput(in).WithOutput(out).Run()

	if err != nil {
		return true, false
	}
	return true, confirmed
}

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the execution cache",
		Long: `Manage the execution cache.

The cache stores execution results to skip re-running unchanged cases. Entries
are keyed by the case's implementation and test sources plus the executor
settings (import name, runner command, timeout and syntax checker).`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the execution cache",
		Long: `Clear all cached execution results.

On a terminal the command asks for confirmation unless --force is given. The
next run will re-execute every case.`,
		Args: cobra.NoArgs,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory to clear (default from config)")
	cmd.Flags().BoolVarP(&cacheForce, "force", "f", false, "Do not ask for confirmation")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	dir := cacheDir
	if dir == "" {
		cfg, err := loadProjectConfig()
		if err != nil {
			return err
		}
		dir = cfg.Cache.Dir
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	out := cmd.OutOrStdout()
	if !cacheForce {
		if asked, ok := promptConfirm(cmd.InOrStdin(), out, fmt.Sprintf("Clear the cache at %s?", absDir)); asked && !ok {
			fmt.Fprintln(out, "Cache not cleared")
			return nil
		}
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintf(out, "Cache cleared: %s\n", absDir)
	return nil
}
