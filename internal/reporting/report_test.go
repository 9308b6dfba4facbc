package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/models"
)

func TestBuild(t *testing.T) {
	src := newTestReport()
	local := time.Date(2026, 10, 19, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	report := Build(src.RunDirectory, src.Statistics, src.TestResults, local)

	assert.Equal(t, fixedTime(), report.Timestamp)
	assert.Equal(t, time.UTC, report.Timestamp.Location())
	if diff := cmp.Diff(src.TestResults, report.TestResults); diff != "" {
		t.Errorf("records changed (-want +got):\n%s", diff)
	}

	empty := Build("runs/x", models.RunSummary{}, nil, local)
	assert.NotNil(t, empty.TestResults, "test_results must serialize as [] not null")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		passRate float64
		passing  bool
		line     string
	}{
		{name: "boundary is inclusive", passRate: 80, passing: true, line: "PASSING: pass rate 80.00% meets the 80.00% threshold"},
		{name: "all passed", passRate: 100, passing: true, line: "PASSING: pass rate 100.00% meets the 80.00% threshold"},
		{name: "just below", passRate: 79.99, passing: false, line: "FAILING: pass rate 79.99% is 0.01 points below the 80.00% threshold"},
		{name: "zero", passRate: 0, passing: false, line: "FAILING: pass rate 0.00% is 80.00 points below the 80.00% threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passing, line := Status(tt.passRate, 80)
			assert.Equal(t, tt.passing, passing)
			assert.Equal(t, tt.line, line)
		})
	}
}

func TestWriteAndLoadReport(t *testing.T) {
	dir := t.TempDir()
	report := newTestReport()

	paths, err := Write(report, dir, "", 80)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "evaluation_report.json"), paths.JSON)
	assert.Equal(t, filepath.Join(dir, "evaluation_report.md"), paths.Markdown)

	md, err := os.ReadFile(paths.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "FAILING")

	raw, err := os.ReadFile(paths.JSON)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.ElementsMatch(t, []string{"timestamp", "run_directory", "statistics", "test_results"}, keys(doc))

	loaded, err := LoadReport(paths.JSON)
	require.NoError(t, err)
	if diff := cmp.Diff(report, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadReport_Errors(t *testing.T) {
	_, err := LoadReport(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrReportNotFound)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timestamp": "x"}`), 0o644))
	_, err = LoadReport(path)
	require.ErrorContains(t, err, "does not match schema")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
