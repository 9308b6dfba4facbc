// Package aggregate loads the per-case result records of a run and derives the
// run summary from them.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/statistics"
	"github.com/timsvoice/specimin/internal/validation"
)

// ErrNoRunDirectory is returned when the run directory does not exist or is not a directory.
var ErrNoRunDirectory = errors.New("run directory not found")

// Options controls where records are read from and which dimensions the summary reports.
type Options struct {
	// ResultFile is the per-case record file name. Defaults to result.json.
	ResultFile string
	// Dimensions lists rubric dimensions that always appear in the averages,
	// with a null value when no record scored them.
	Dimensions map[models.ArtifactKind][]string
}

// Aggregate loads every result record under runDir and summarizes them.
func Aggregate(runDir string, opts Options) (*models.RunSummary, []models.ResultRecord, error) {
	records, err := LoadRecords(runDir, opts.ResultFile)
	if err != nil {
		return nil, nil, err
	}

	summary := Summarize(records, opts.Dimensions)
	return &summary, records, nil
}

// LoadRecords reads the result record of every immediate subdirectory of runDir,
// in directory listing order. Subdirectories without a record are skipped, as
// are hidden ones. A record that is unreadable, malformed or fails schema
// validation is an error.
func LoadRecords(runDir, resultFile string) ([]models.ResultRecord, error) {
	if resultFile == "" {
		resultFile = projectconfig.DefaultResultFile
	}

	info, err := os.Stat(runDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoRunDirectory, runDir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run directory %s: %w", runDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoRunDirectory, runDir)
	}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("reading run directory %s: %w", runDir, err)
	}

	records := []models.ResultRecord{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		caseDir := filepath.Join(runDir, entry.Name())
		if !isDir(entry, caseDir) {
			continue
		}

		path := filepath.Join(caseDir, resultFile)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("skipping case without result", "case", entry.Name())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		record, err := DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		records = append(records, *record)
	}

	return records, nil
}

// DecodeRecord validates and parses one result record document.
func DecodeRecord(data []byte) (*models.ResultRecord, error) {
	if errs := validation.ValidateResultBytes(data); len(errs) > 0 {
		return nil, validation.Error("result record", errs)
	}

	var record models.ResultRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parsing result record: %w", err)
	}
	return &record, nil
}

func isDir(entry fs.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Summarize computes run statistics from records. It is a pure function of its
// inputs: calling it twice on the same records yields equal summaries.
func Summarize(records []models.ResultRecord, dimensions map[models.ArtifactKind][]string) models.RunSummary {
	summary := models.RunSummary{
		TotalTests:    len(records),
		AverageScores: models.AverageScores{},
	}

	for _, r := range records {
		if r.Passed {
			summary.Passed++
			continue
		}
		if r.ErrorKind != models.ErrorKindNone {
			if summary.ErrorKinds == nil {
				summary.ErrorKinds = map[models.ErrorKind]int{}
			}
			summary.ErrorKinds[r.ErrorKind]++
		}
	}
	summary.Failed = summary.TotalTests - summary.Passed
	summary.PassRate = PassRate(summary.Passed, summary.TotalTests)

	// Collect contributing scores per (kind, dimension), starting from the
	// configured dimensions so they are reported even when nobody scored them.
	samples := map[models.ArtifactKind]map[string][]float64{}
	ensure := func(kind models.ArtifactKind, dim string) {
		if samples[kind] == nil {
			samples[kind] = map[string][]float64{}
		}
		if _, ok := samples[kind][dim]; !ok {
			samples[kind][dim] = nil
		}
	}

	for kind, dims := range dimensions {
		for _, dim := range dims {
			ensure(kind, dim)
		}
	}

	for _, r := range records {
		for kind, dims := range r.RubricScores {
			for dim, score := range dims {
				ensure(kind, dim)
				if score.Score != nil {
					samples[kind][dim] = append(samples[kind][dim], float64(*score.Score))
				}
			}
		}
	}

	for kind, dims := range samples {
		summary.AverageScores[kind] = map[string]*float64{}
		for dim, values := range dims {
			summary.AverageScores[kind][dim] = mean(values)
		}
	}

	return summary
}

// PassRate returns passed/total as a percentage rounded half-to-even to two
// decimals, or 0 when total is 0.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return statistics.Round2(float64(passed) / float64(total) * 100)
}

// mean returns nil for no values so absent scores never count as zero. The
// mean is kept unrounded; renderers round it for display.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m, err := stats.Mean(values)
	if err != nil {
		return nil
	}
	return &m
}
