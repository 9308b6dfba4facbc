package orchestration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/aggregate"
	"github.com/timsvoice/specimin/internal/baseline"
	"github.com/timsvoice/specimin/internal/cache"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/utils"
)

// fakeExecutor passes a case when its implementation contains "PASS".
type fakeExecutor struct {
	calls atomic.Int32

	mu          sync.Mutex
	running     int
	maxRunning  int
	delay       time.Duration
	errorForIDs map[string]bool
}

func (f *fakeExecutor) Execute(_ context.Context, tc *models.TestCase) *models.ExecutionResult {
	f.calls.Add(1)

	f.mu.Lock()
	f.running++
	f.maxRunning = max(f.maxRunning, f.running)
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	switch {
	case f.errorForIDs[tc.ID]:
		return &models.ExecutionResult{TestID: tc.ID, ErrorKind: models.ErrorKindExecutionError, ErrorDetail: utils.Ptr("runner missing")}
	case tc.Tests == nil:
		return &models.ExecutionResult{TestID: tc.ID, ErrorKind: models.ErrorKindMissingFile, ErrorDetail: utils.Ptr("Test file not found")}
	case string(tc.Implementation) == "PASS":
		return &models.ExecutionResult{TestID: tc.ID, Passed: true, DurationMs: 5}
	default:
		return &models.ExecutionResult{TestID: tc.ID, ErrorKind: models.ErrorKindAssertionFailure, ErrorDetail: utils.Ptr("AssertionError")}
	}
}

func makeCase(t *testing.T, runDir, id, impl string, withTests bool) string {
	t.Helper()
	dir := filepath.Join(runDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "implementation.py"), []byte(impl), 0o644))
	if withTests {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test_implementation.py"), []byte("def test_x(): pass\n"), 0o644))
	}
	return dir
}

func TestRunSequential(t *testing.T) {
	runDir := t.TempDir()
	makeCase(t, runDir, "a", "PASS", true)
	makeCase(t, runDir, "b", "FAIL", true)
	makeCase(t, runDir, "c", "PASS", false)
	require.NoError(t, os.Mkdir(filepath.Join(runDir, "empty"), 0o755))

	cfg := projectconfig.New()
	exec := &fakeExecutor{}
	tracker := baseline.NewTracker(baseline.NewMemoryStore(), baseline.DefaultPolicy())

	var events []EventType
	r := NewRunner(cfg, exec, WithBaseline(tracker))
	r.OnProgress(func(e ProgressEvent) { events = append(events, e.EventType) })

	outcome, err := r.Run(context.Background(), runDir)
	require.NoError(t, err)

	require.Len(t, outcome.Cases, 3, "directories without case files are not cases")
	assert.Equal(t, "a", outcome.Cases[0].Case.ID)
	assert.Equal(t, models.ErrorKindMissingFile, outcome.Cases[2].Result.ErrorKind)

	assert.Equal(t, 3, outcome.Report.Statistics.TotalTests)
	assert.Equal(t, 1, outcome.Report.Statistics.Passed)
	assert.Equal(t, 33.33, outcome.Report.Statistics.PassRate)

	assert.FileExists(t, filepath.Join(runDir, "evaluation_report.json"))
	assert.FileExists(t, filepath.Join(runDir, "evaluation_report.md"))
	assert.Equal(t, filepath.Join(runDir, "evaluation_report.json"), outcome.Paths.JSON)

	rec, err := aggregate.ReadRecordFile(filepath.Join(runDir, "b", "result.json"))
	require.NoError(t, err)
	assert.Equal(t, models.ErrorKindAssertionFailure, rec.ErrorKind)

	require.NotNil(t, outcome.Verdict)
	assert.Contains(t, outcome.Verdict.Message, "no comparison available")

	assert.Equal(t, EventRunStart, events[0])
	assert.Equal(t, EventRunComplete, events[len(events)-1])
	assert.Len(t, events, 2+2*3)
}

func TestRunParallelEightOfTen(t *testing.T) {
	runDir := t.TempDir()
	for i := range 10 {
		impl := "PASS"
		if i >= 8 {
			impl = "FAIL"
		}
		makeCase(t, runDir, "case-"+string(rune('a'+i)), impl, true)
	}

	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	r := NewRunner(projectconfig.New(), exec, WithParallel(3))

	outcome, err := r.Run(context.Background(), runDir)
	require.NoError(t, err)

	assert.Equal(t, 80.0, outcome.Report.Statistics.PassRate)
	passing, status := reporting.Status(outcome.Report.Statistics.PassRate, projectconfig.DefaultPassThreshold)
	assert.True(t, passing)
	assert.Contains(t, status, "PASSING")

	assert.LessOrEqual(t, exec.maxRunning, 3)
	for i, o := range outcome.Cases {
		assert.Equal(t, "case-"+string(rune('a'+i)), o.Case.ID, "outcomes keep discovery order")
	}
	assert.Nil(t, outcome.Verdict)
}

func TestRunWithCache(t *testing.T) {
	runDir := t.TempDir()
	makeCase(t, runDir, "a", "PASS", true)
	makeCase(t, runDir, "b", "FAIL", true)

	c := cache.New(t.TempDir())
	exec := &fakeExecutor{errorForIDs: map[string]bool{"b": true}}
	r := NewRunner(projectconfig.New(), exec, WithCache(c, cache.KeyOptions{ImportName: "implementation"}))

	_, err := r.Run(context.Background(), runDir)
	require.NoError(t, err)
	assert.EqualValues(t, 2, exec.calls.Load())

	outcome, err := r.Run(context.Background(), runDir)
	require.NoError(t, err)
	assert.EqualValues(t, 3, exec.calls.Load(), "only the execution error is re-run")
	assert.True(t, outcome.Cases[0].Cached)
	assert.False(t, outcome.Cases[1].Cached)
}

func TestRunCaseFilters(t *testing.T) {
	runDir := t.TempDir()
	makeCase(t, runDir, "alpha", "PASS", true)
	makeCase(t, runDir, "beta", "PASS", true)

	r := NewRunner(projectconfig.New(), &fakeExecutor{}, WithCaseFilters("al*"))
	outcome, err := r.Run(context.Background(), runDir)
	require.NoError(t, err)

	require.Len(t, outcome.Cases, 1)
	assert.Equal(t, "alpha", outcome.Cases[0].Case.ID)
	assert.NoFileExists(t, filepath.Join(runDir, "beta", "result.json"))
}

func TestRunMissingDirectory(t *testing.T) {
	r := NewRunner(projectconfig.New(), &fakeExecutor{})
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, aggregate.ErrNoRunDirectory)
}

func TestWriteResultKeepsScores(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")

	require.NoError(t, aggregate.WriteRecordFile(path, &models.ResultRecord{
		ExecutionResult: models.ExecutionResult{TestID: "c", Passed: true},
		TestName:        "Old name",
		RubricScores: models.RubricScores{
			models.ArtifactSpec: {"clarity": {Score: utils.Ptr(3), Justification: "fine"}},
		},
	}))

	tc := &models.TestCase{ID: "c", CaseDir: dir}
	result := &models.ExecutionResult{TestID: "c", ErrorKind: models.ErrorKindTimeout, ErrorDetail: utils.Ptr("Test execution timed out after 30 seconds")}
	require.NoError(t, WriteResult(tc, result, ""))

	rec, err := aggregate.ReadRecordFile(path)
	require.NoError(t, err)
	assert.False(t, rec.Passed)
	assert.Equal(t, models.ErrorKindTimeout, rec.ErrorKind)
	assert.Equal(t, "Old name", rec.TestName)
	assert.Equal(t, 3, *rec.RubricScores[models.ArtifactSpec]["clarity"].Score)
}

func TestDiscoverCases(t *testing.T) {
	runDir := t.TempDir()
	makeCase(t, runDir, "one", "PASS", true)
	makeCase(t, runDir, ".hidden", "PASS", true)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "notes.txt"), []byte("x"), 0o644))

	named := filepath.Join(runDir, "named")
	require.NoError(t, os.Mkdir(named, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(named, "case.yaml"), []byte("name: Only metadata\n"), 0o644))

	cases, err := DiscoverCases(runDir, projectconfig.New().Layout)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "named", cases[0].ID)
	assert.Equal(t, "Only metadata", cases[0].Name)
	assert.Nil(t, cases[0].Implementation)
	assert.Equal(t, "one", cases[1].ID)
}
