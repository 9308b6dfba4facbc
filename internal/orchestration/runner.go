// Package orchestration drives a whole evaluation run: case discovery,
// execution, per-case result records, the run report and the baseline update.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/timsvoice/specimin/internal/aggregate"
	"github.com/timsvoice/specimin/internal/baseline"
	"github.com/timsvoice/specimin/internal/cache"
	"github.com/timsvoice/specimin/internal/execution"
	"github.com/timsvoice/specimin/internal/hooks"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/utils"
	"golang.org/x/sync/errgroup"
)

// CaseExecutor runs one test case. [*execution.Executor] is the production
// implementation.
type CaseExecutor interface {
	Execute(ctx context.Context, tc *models.TestCase) *models.ExecutionResult
}

// Runner executes every case of a run directory.
type Runner struct {
	cfg      *projectconfig.ProjectConfig
	executor CaseExecutor

	parallel bool
	workers  int

	caseFilters []string
	dimensions  map[models.ArtifactKind][]string

	cache   *cache.Cache
	keyOpts cache.KeyOptions

	tracker *baseline.Tracker
	now     func() time.Time

	hooks      hooks.HooksConfig
	hookRunner *hooks.Runner

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart     EventType = "run_start"
	EventRunComplete  EventType = "run_complete"
	EventCaseStart    EventType = "case_start"
	EventCaseComplete EventType = "case_complete"
	EventCaseCached   EventType = "case_cached"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType  EventType
	TestID     string
	TestName   string
	CaseNum    int
	TotalCases int
	Result     *models.ExecutionResult
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithParallel executes up to workers cases at a time.
func WithParallel(workers int) RunnerOption {
	return func(r *Runner) {
		r.parallel = true
		r.workers = workers
	}
}

// WithCaseFilters sets glob patterns used to select cases by Name or ID.
func WithCaseFilters(patterns ...string) RunnerOption {
	return func(r *Runner) {
		r.caseFilters = patterns
	}
}

// WithCache enables result caching. keyOpts must describe the executor's
// settings so a changed runner or timeout does not reuse stale results.
func WithCache(c *cache.Cache, keyOpts cache.KeyOptions) RunnerOption {
	return func(r *Runner) {
		r.cache = c
		r.keyOpts = keyOpts
	}
}

// WithBaseline records every run report in tracker.
func WithBaseline(tracker *baseline.Tracker) RunnerOption {
	return func(r *Runner) {
		r.tracker = tracker
	}
}

// WithVerboseHooks logs hook output at info level.
func WithVerboseHooks(verbose bool) RunnerOption {
	return func(r *Runner) {
		r.hookRunner.Verbose = verbose
	}
}

// WithDimensions lists the rubric dimensions reported in the averages.
func WithDimensions(dims map[models.ArtifactKind][]string) RunnerOption {
	return func(r *Runner) {
		r.dimensions = dims
	}
}

// NewRunner creates a new runner
func NewRunner(cfg *projectconfig.ProjectConfig, executor CaseExecutor, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:        cfg,
		executor:   executor,
		workers:    cfg.Execution.Workers,
		now:        time.Now,
		hooks:      cfg.Hooks,
		hookRunner: &hooks.Runner{},
		listeners:  []ProgressListener{},
	}
	if cfg.Execution.Parallel != nil && *cfg.Execution.Parallel {
		r.parallel = true
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// CaseOutcome pairs a case with its execution result.
type CaseOutcome struct {
	Case   *models.TestCase
	Result *models.ExecutionResult
	Cached bool
}

// RunOutcome is everything a run produced.
type RunOutcome struct {
	Cases   []CaseOutcome
	Report  *models.Report
	Paths   *reporting.Paths
	Verdict *models.RegressionVerdict
}

// Run executes every case under runDir, writes their result records, then
// builds and writes the run report and updates the baseline when configured.
func (r *Runner) Run(ctx context.Context, runDir string) (*RunOutcome, error) {
	if err := r.runHooks(ctx, hooks.BeforeRun, runDir, hooks.Env{hooks.EnvRunDir: runDir}); err != nil {
		return nil, err
	}

	cases, err := DiscoverCases(runDir, r.cfg.Layout)
	if err != nil {
		return nil, err
	}

	cases, err = FilterTestCases(cases, r.caseFilters)
	if err != nil {
		return nil, err
	}

	r.notifyProgress(ProgressEvent{EventType: EventRunStart, TotalCases: len(cases)})

	outcomes := r.ExecuteCases(ctx, cases)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}

	for _, o := range outcomes {
		if err := WriteResult(o.Case, o.Result, r.cfg.Layout.ResultFile); err != nil {
			return nil, err
		}
	}

	report, paths, err := BuildReport(runDir, r.cfg, r.dimensions, r.now())
	if err != nil {
		return nil, err
	}

	outcome := &RunOutcome{Cases: outcomes, Report: report, Paths: paths}

	if r.tracker != nil {
		outcome.Verdict, err = r.tracker.RecordAndCompare(ctx, report)
		if err != nil {
			return nil, err
		}
	}

	passing, _ := reporting.Status(report.Statistics.PassRate, r.cfg.Policy.PassThreshold)
	if err := r.runHooks(ctx, hooks.AfterRun, runDir, hooks.Env{
		hooks.EnvRunDir:   runDir,
		hooks.EnvReport:   paths.JSON,
		hooks.EnvPassRate: strconv.FormatFloat(report.Statistics.PassRate, 'f', 2, 64),
		hooks.EnvPassing:  strconv.FormatBool(passing),
	}); err != nil {
		return nil, err
	}

	r.notifyProgress(ProgressEvent{EventType: EventRunComplete, TotalCases: len(cases)})
	return outcome, nil
}

// ExecuteCases runs cases sequentially, or concurrently when parallel execution
// is enabled. Outcomes are returned in input order.
func (r *Runner) ExecuteCases(ctx context.Context, cases []*models.TestCase) []CaseOutcome {
	outcomes := make([]CaseOutcome, len(cases))

	if !r.parallel || r.workers <= 1 {
		for i, tc := range cases {
			outcomes[i] = r.runCase(ctx, tc, i+1, len(cases))
		}
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, tc := range cases {
		g.Go(func() error {
			outcomes[i] = r.runCase(gctx, tc, i+1, len(cases))
			return nil
		})
	}

	// runCase never fails; Wait only joins the workers.
	_ = g.Wait()
	return outcomes
}

func (r *Runner) runCase(ctx context.Context, tc *models.TestCase, caseNum, totalCases int) CaseOutcome {
	r.notifyProgress(ProgressEvent{
		EventType:  EventCaseStart,
		TestID:     tc.ID,
		TestName:   tc.Name,
		CaseNum:    caseNum,
		TotalCases: totalCases,
	})

	caseEnv := hooks.Env{
		hooks.EnvRunDir:  filepath.Dir(tc.CaseDir),
		hooks.EnvCaseDir: tc.CaseDir,
		hooks.EnvCaseID:  tc.ID,
	}

	var (
		result *models.ExecutionResult
		cached bool
	)
	if err := r.runHooks(ctx, hooks.BeforeCase, tc.CaseDir, caseEnv); err != nil {
		result = &models.ExecutionResult{
			TestID:      tc.ID,
			ErrorKind:   models.ErrorKindExecutionError,
			ErrorDetail: utils.Ptr(err.Error()),
		}
	} else {
		result, cached = r.executeCached(ctx, tc)
	}

	caseEnv[hooks.EnvCasePassed] = strconv.FormatBool(result.Passed)
	caseEnv[hooks.EnvErrorKind] = string(result.ErrorKind)
	if err := r.runHooks(ctx, hooks.AfterCase, tc.CaseDir, caseEnv); err != nil {
		slog.Warn("after_case hook failed", "test_id", tc.ID, "error", err)
	}

	eventType := EventCaseComplete
	if cached {
		eventType = EventCaseCached
	}
	r.notifyProgress(ProgressEvent{
		EventType:  eventType,
		TestID:     tc.ID,
		TestName:   tc.Name,
		CaseNum:    caseNum,
		TotalCases: totalCases,
		Result:     result,
	})

	return CaseOutcome{Case: tc, Result: result, Cached: cached}
}

func (r *Runner) runHooks(ctx context.Context, point hooks.Point, dir string, env hooks.Env) error {
	configured := r.hooks.For(point)
	if len(configured) == 0 {
		return nil
	}
	slog.Debug("running hooks", "hook", point, "count", len(configured))
	return r.hookRunner.Execute(ctx, point, configured, dir, env)
}

func (r *Runner) executeCached(ctx context.Context, tc *models.TestCase) (*models.ExecutionResult, bool) {
	if r.cache == nil {
		return r.executor.Execute(ctx, tc), false
	}

	key, err := cache.CacheKey(tc, r.keyOpts)
	if err != nil {
		slog.Warn("failed to compute cache key", "test_id", tc.ID, "error", err)
		return r.executor.Execute(ctx, tc), false
	}

	if cached, found := r.cache.Get(key); found {
		return cached, true
	}

	result := r.executor.Execute(ctx, tc)

	// execution errors describe the environment, not the case
	if result.ErrorKind != models.ErrorKindExecutionError {
		if err := r.cache.Put(key, result); err != nil {
			slog.Warn("failed to write cache", "test_id", tc.ID, "error", err)
		}
	}
	return result, false
}

// DiscoverCases loads every case directory directly under runDir, in directory
// listing order. Hidden directories and directories holding none of the case
// files are skipped.
func DiscoverCases(runDir string, layout projectconfig.LayoutConfig) ([]*models.TestCase, error) {
	entries, err := os.ReadDir(runDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", aggregate.ErrNoRunDirectory, runDir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run directory %s: %w", runDir, err)
	}

	var cases []*models.TestCase
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		tc, err := execution.LoadCase(filepath.Join(runDir, entry.Name()), layout)
		if err != nil {
			return nil, err
		}

		if tc.Implementation == nil && tc.Tests == nil && !exists(filepath.Join(tc.CaseDir, layout.CaseFile)) {
			slog.Debug("skipping directory without case files", "dir", tc.CaseDir)
			continue
		}
		cases = append(cases, tc)
	}

	return cases, nil
}

// WriteResult writes result as the case's result record. Judge scores and the
// display name already present in an earlier record are kept.
func WriteResult(tc *models.TestCase, result *models.ExecutionResult, resultFile string) error {
	if resultFile == "" {
		resultFile = projectconfig.DefaultResultFile
	}
	path := filepath.Join(tc.CaseDir, resultFile)

	record := &models.ResultRecord{ExecutionResult: *result, TestName: tc.Name}

	previous, err := aggregate.ReadRecordFile(path)
	switch {
	case err == nil:
		record.RubricScores = previous.RubricScores
		if record.TestName == "" {
			record.TestName = previous.TestName
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		slog.Warn("replacing unreadable result record", "path", path, "error", err)
	}

	return aggregate.WriteRecordFile(path, record)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
