package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/webapi"
	"github.com/timsvoice/specimin/internal/webserver"
)

var (
	servePort       int
	serveResultsDir string
	serveNoBrowser  bool
	serveCORS       []string
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run reports and the baseline log over HTTP",
		Long: `Start a read-only HTTP server over the run directories in a results directory.

Every immediate subdirectory holding a run report is one run. The server renders
the reports as HTML and exposes a JSON API:

  GET /api/health       health check
  GET /api/summary      totals across all runs
  GET /api/runs         all runs (?sort=timestamp|pass_rate|tests|id&order=asc|desc)
  GET /api/runs/{id}    one run with per-case results
  GET /api/runs/{id}/cases/{case}
                        one case of a run
  GET /api/baseline     the baseline log and the latest verdict

The server binds to 127.0.0.1 only.`,
		Args: cobra.NoArgs,
		RunE: serveCommandE,
	}

	cmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVar(&serveResultsDir, "results-dir", "", "Directory holding run directories (default from config)")
	cmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "Do not open a browser")
	cmd.Flags().StringArrayVar(&serveCORS, "cors-origin", nil, "Allow cross-origin API requests from this origin (can be repeated)")

	return cmd
}

func serveCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	resultsDir := cfg.Server.ResultsDir
	if serveResultsDir != "" {
		resultsDir = serveResultsDir
	}

	tracker, closeStore, err := openTracker(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := webserver.New(webserver.Config{
		Port:           port,
		Store:          webapi.NewFileStore(resultsDir, cfg.Layout.ReportBaseName, cfg.Policy.PassThreshold),
		History:        tracker,
		Policy:         policyFor(cfg.Policy.RegressionThreshold),
		PassThreshold:  cfg.Policy.PassThreshold,
		AllowedOrigins: serveCORS,
		NoBrowser:      serveNoBrowser,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
