package webapi

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/statistics"
)

// ErrRunNotFound is returned when a run ID does not match any stored run.
var ErrRunNotFound = errors.New("run not found")

// RunStore provides access to evaluation run data.
type RunStore interface {
	// ListRuns returns all runs, sorted by the given field and order.
	ListRuns(sortField, order string) ([]RunSummary, error)
	// GetRun returns a single run with per-case details.
	GetRun(id string) (*RunDetail, error)
	// Report returns the stored report of a run.
	Report(id string) (*models.Report, error)
	// Summary returns aggregate metrics across all runs.
	Summary() (*SummaryResponse, error)
}

// HistorySource provides the baseline log. [*baseline.Tracker] implements it.
type HistorySource interface {
	History(ctx context.Context) []models.BaselineEntry
}

// FileStore reads run reports from the immediate subdirectories of a results
// directory. Reports are read on every call so the API reflects reruns.
type FileStore struct {
	dir           string
	reportName    string
	passThreshold float64
}

// NewFileStore creates a FileStore over dir. Each "<dir>/<run-id>/<reportBaseName>.json"
// is one run.
func NewFileStore(dir, reportBaseName string, passThreshold float64) *FileStore {
	if reportBaseName == "" {
		reportBaseName = projectconfig.DefaultReportBaseName
	}
	return &FileStore{dir: dir, reportName: reportBaseName + ".json", passThreshold: passThreshold}
}

// load reads every run report under the configured directory. Unreadable or
// invalid reports are skipped with a warning.
func (fs *FileStore) load() (map[string]*models.Report, error) {
	runs := map[string]*models.Report{}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return runs, nil
		}
		return nil, err
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(fs.dir, e.Name(), fs.reportName)
		report, err := reporting.LoadReport(path)
		if errors.Is(err, reporting.ErrReportNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("skipping unreadable report", "path", path, "error", err)
			continue
		}
		runs[e.Name()] = report
	}

	return runs, nil
}

func (fs *FileStore) toSummary(id string, r *models.Report) RunSummary {
	passing, _ := reporting.Status(r.Statistics.PassRate, fs.passThreshold)
	return RunSummary{
		ID:           id,
		RunDirectory: r.RunDirectory,
		Timestamp:    r.Timestamp,
		TotalTests:   r.Statistics.TotalTests,
		Passed:       r.Statistics.Passed,
		Failed:       r.Statistics.Failed,
		PassRate:     r.Statistics.PassRate,
		Passing:      passing,
	}
}

func (fs *FileStore) toDetail(id string, r *models.Report) *RunDetail {
	detail := &RunDetail{
		RunSummary:    fs.toSummary(id, r),
		ErrorKinds:    r.Statistics.ErrorKinds,
		AverageScores: r.Statistics.AverageScores,
		Cases:         make([]CaseResult, 0, len(r.TestResults)),
	}
	if detail.ErrorKinds == nil {
		detail.ErrorKinds = map[models.ErrorKind]int{}
	}

	for _, rec := range r.TestResults {
		detail.Cases = append(detail.Cases, CaseResult{
			TestID:       rec.TestID,
			Name:         rec.DisplayName(),
			Passed:       rec.Passed,
			ErrorKind:    rec.ErrorKind,
			ErrorDetail:  rec.ErrorDetail,
			DurationMs:   rec.DurationMs,
			RubricScores: rec.RubricScores,
		})
	}
	return detail
}

// ListRuns returns all runs sorted by the given field and order.
func (fs *FileStore) ListRuns(sortField, order string) ([]RunSummary, error) {
	reports, err := fs.load()
	if err != nil {
		return nil, err
	}

	runs := make([]RunSummary, 0, len(reports))
	for id, r := range reports {
		runs = append(runs, fs.toSummary(id, r))
	}

	sortRuns(runs, sortField, order)
	return runs, nil
}

// GetRun returns a single run with per-case details.
func (fs *FileStore) GetRun(id string) (*RunDetail, error) {
	r, err := fs.Report(id)
	if err != nil {
		return nil, err
	}
	return fs.toDetail(id, r), nil
}

// Report returns the stored report of a run.
func (fs *FileStore) Report(id string) (*models.Report, error) {
	// ids are directory names, never paths
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, ErrRunNotFound
	}

	report, err := reporting.LoadReport(filepath.Join(fs.dir, id, fs.reportName))
	if errors.Is(err, reporting.ErrReportNotFound) {
		return nil, ErrRunNotFound
	}
	return report, err
}

// Summary returns aggregate metrics across all runs.
func (fs *FileStore) Summary() (*SummaryResponse, error) {
	runs, err := fs.ListRuns("timestamp", "desc")
	if err != nil {
		return nil, err
	}

	resp := &SummaryResponse{}
	if len(runs) == 0 {
		return resp, nil
	}

	totalPassed := 0
	for _, r := range runs {
		resp.TotalRuns++
		resp.TotalTests += r.TotalTests
		totalPassed += r.Passed
	}

	if resp.TotalTests > 0 {
		resp.PassRate = statistics.Round2(float64(totalPassed) / float64(resp.TotalTests) * 100)
	}

	latest := runs[0]
	resp.LatestRunID = latest.ID
	resp.LatestPassRate = &latest.PassRate

	return resp, nil
}

// sortRuns orders runs by field in the given direction. Runs with equal keys
// are ordered by ascending ID so listings are stable across calls.
func sortRuns(runs []RunSummary, field, order string) {
	slices.SortFunc(runs, func(a, b RunSummary) int {
		var c int
		switch field {
		case "pass_rate":
			c = cmp.Compare(a.PassRate, b.PassRate)
		case "tests":
			c = cmp.Compare(a.TotalTests, b.TotalTests)
		case "id":
			c = strings.Compare(a.ID, b.ID)
		default: // "timestamp" or empty
			c = a.Timestamp.Compare(b.Timestamp)
		}
		if order != "asc" {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Ensure FileStore satisfies RunStore.
var _ RunStore = (*FileStore)(nil)
