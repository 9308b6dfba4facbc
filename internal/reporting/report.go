// Package reporting builds run reports and renders them as JSON, markdown,
// HTML and JUnit XML.
package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/statistics"
	"github.com/timsvoice/specimin/internal/utils"
	"github.com/timsvoice/specimin/internal/validation"
)

// ErrReportNotFound is returned by [LoadReport] when the report file does not exist.
var ErrReportNotFound = errors.New("report not found")

// Build assembles a report. Records are kept in the order given.
func Build(runDir string, summary models.RunSummary, records []models.ResultRecord, now time.Time) *models.Report {
	if records == nil {
		records = []models.ResultRecord{}
	}
	return &models.Report{
		Timestamp:    now.UTC(),
		RunDirectory: runDir,
		Statistics:   summary,
		TestResults:  records,
	}
}

// Status reports whether passRate meets threshold, and the status line for it.
// The threshold is inclusive.
func Status(passRate, threshold float64) (bool, string) {
	if passRate >= threshold {
		return true, fmt.Sprintf("PASSING: pass rate %.2f%% meets the %.2f%% threshold", passRate, threshold)
	}

	deficit := statistics.Round2(threshold - passRate)
	return false, fmt.Sprintf("FAILING: pass rate %.2f%% is %.2f points below the %.2f%% threshold", passRate, deficit, threshold)
}

// Paths are the files written by [Write].
type Paths struct {
	JSON     string
	Markdown string
}

// Write persists the report as <dir>/<baseName>.json and <dir>/<baseName>.md.
func Write(report *models.Report, dir, baseName string, threshold float64) (*Paths, error) {
	if baseName == "" {
		baseName = projectconfig.DefaultReportBaseName
	}

	paths := &Paths{
		JSON:     filepath.Join(dir, baseName+".json"),
		Markdown: filepath.Join(dir, baseName+".md"),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	if err := utils.WriteFileAtomic(paths.JSON, append(data, '\n'), 0o644); err != nil {
		return nil, err
	}

	if err := utils.WriteFileAtomic(paths.Markdown, []byte(RenderMarkdown(report, threshold)), 0o644); err != nil {
		return nil, err
	}

	return paths, nil
}

// LoadReport reads and validates a report written by [Write].
func LoadReport(path string) (*models.Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	if errs := validation.ValidateReportBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("loading %s: %w", path, validation.Error("report", errs))
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &report, nil
}
