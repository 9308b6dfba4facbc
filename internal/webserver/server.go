// Package webserver serves the evaluation dashboard: rendered run reports plus
// the JSON API from package webapi.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/timsvoice/specimin/internal/baseline"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/webapi"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Config holds the HTTP server configuration.
type Config struct {
	Port          int
	Store         webapi.RunStore
	History       webapi.HistorySource
	Policy        baseline.Policy
	PassThreshold float64
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string
	NoBrowser      bool
	Logger         *slog.Logger
	// Out receives the dashboard URL once the listener is bound. Defaults to stdout.
	Out io.Writer
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New validates cfg, fills defaults and builds the route table.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("a run store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Port == 0 {
		cfg.Port = projectconfig.DefaultServerPort
	}
	if cfg.PassThreshold == 0 {
		cfg.PassThreshold = projectconfig.DefaultPassThreshold
	}
	if cfg.Policy.RegressionThreshold == 0 {
		cfg.Policy = baseline.DefaultPolicy()
	}

	mux := http.NewServeMux()
	registerRoutes(mux, cfg)

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           logRequests(cfg.Logger, webapi.CORSMiddleware(mux, cfg.AllowedOrigins...)),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe binds the configured loopback port and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. A cancelled context is not an error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	url := "http://" + ln.Addr().String()
	s.logger.Info("HTTP server starting", "address", ln.Addr().String())
	fmt.Fprintf(s.cfg.Out, "evaluation dashboard: %s\n", url)

	if !s.cfg.NoBrowser {
		go func() {
			if err := openBrowser(url); err != nil {
				s.logger.Debug("failed to open browser", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// logRequests traces every request at debug level.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func openBrowser(url string) error {
	argv, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.Command(argv[0], argv[1:]...).Start()
}

func browserCommand(goos, url string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"open", url}, nil
	case "linux":
		return []string{"xdg-open", url}, nil
	case "windows":
		return []string{"cmd", "/c", "start", "", url}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
