package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/models"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestTracker(store Store) *Tracker {
	tr := NewTracker(store, DefaultPolicy())
	n := 0
	tr.now = func() time.Time { return fixedNow.Add(time.Duration(n) * time.Minute) }
	tr.newID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	return tr
}

func reportWithRate(rate float64) *models.Report {
	return &models.Report{
		Timestamp:    fixedNow,
		RunDirectory: "runs/latest",
		Statistics:   models.RunSummary{TotalTests: 100, Passed: int(rate), Failed: 100 - int(rate), PassRate: rate},
	}
}

func TestRecordAndCompareFirstRun(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(store)

	verdict, err := tr.RecordAndCompare(context.Background(), reportWithRate(72.5))
	require.NoError(t, err)

	assert.False(t, verdict.HasRegression)
	assert.Zero(t, verdict.PassRateDelta)
	assert.Nil(t, verdict.PreviousPassRate)
	assert.Equal(t, 72.5, verdict.CurrentPassRate)
	assert.Contains(t, verdict.Message, "no comparison available")

	entries := tr.History(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, "runs/latest", entries[0].RunDirectory)
	assert.Equal(t, fixedNow, entries[0].ReportTimestamp)
}

func TestRecordAndCompareAppendsMonotonically(t *testing.T) {
	tr := newTestTracker(NewMemoryStore())
	ctx := context.Background()

	rates := []float64{50, 60, 55, 90, 90}
	for i, rate := range rates {
		_, err := tr.RecordAndCompare(ctx, reportWithRate(rate))
		require.NoError(t, err)

		entries := tr.History(ctx)
		require.Len(t, entries, i+1)
		for j := range entries {
			assert.Equal(t, rates[j], entries[j].Statistics.PassRate, "earlier entries are never rewritten")
		}
	}
}

func TestRecordAndCompareThresholdBoundary(t *testing.T) {
	tests := []struct {
		name       string
		previous   float64
		current    float64
		regression bool
		delta      float64
		message    string
	}{
		{name: "drop of exactly 5 is not a regression", previous: 85, current: 80, delta: -5, message: "Stable"},
		{name: "drop of 5.01 is a regression", previous: 85, current: 79.99, regression: true, delta: -5.01, message: "Regression detected"},
		{name: "large drop", previous: 90, current: 40, regression: true, delta: -50, message: "Regression detected"},
		{name: "improvement", previous: 70, current: 70.5, delta: 0.5, message: "Improvement"},
		{name: "unchanged", previous: 70, current: 70, delta: 0, message: "Stable"},
		{name: "small drop", previous: 70, current: 68, delta: -2, message: "Stable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(NewMemoryStore())
			ctx := context.Background()

			_, err := tr.RecordAndCompare(ctx, reportWithRate(tt.previous))
			require.NoError(t, err)

			verdict, err := tr.RecordAndCompare(ctx, reportWithRate(tt.current))
			require.NoError(t, err)

			assert.Equal(t, tt.regression, verdict.HasRegression)
			assert.InDelta(t, tt.delta, verdict.PassRateDelta, 1e-9)
			require.NotNil(t, verdict.PreviousPassRate)
			assert.Equal(t, tt.previous, *verdict.PreviousPassRate)
			assert.Equal(t, tt.current, verdict.CurrentPassRate)
			assert.Contains(t, verdict.Message, tt.message)
		})
	}
}

func TestCompareCustomPolicy(t *testing.T) {
	prev := models.BaselineEntry{Statistics: models.RunSummary{PassRate: 90}}
	cur := models.BaselineEntry{Statistics: models.RunSummary{PassRate: 88}}

	verdict := Compare(&prev, cur, Policy{RegressionThreshold: -1})
	assert.True(t, verdict.HasRegression)
	assert.Contains(t, verdict.Message, "90.00%")
	assert.Contains(t, verdict.Message, "88.00%")
}

func TestCompareRoundsDelta(t *testing.T) {
	prev := models.BaselineEntry{Statistics: models.RunSummary{PassRate: 33.33}}
	cur := models.BaselineEntry{Statistics: models.RunSummary{PassRate: 66.67}}

	verdict := Compare(&prev, cur, DefaultPolicy())
	assert.Equal(t, 33.34, verdict.PassRateDelta)
}

func TestHistoryCorruptLogIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), []byte("{not json")))

	tr := newTestTracker(store)
	assert.Empty(t, tr.History(context.Background()))

	verdict, err := tr.RecordAndCompare(context.Background(), reportWithRate(40))
	require.NoError(t, err)
	assert.Contains(t, verdict.Message, "no comparison available")

	data, err := store.Load(context.Background())
	require.NoError(t, err)
	var entries []models.BaselineEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Len(t, entries, 1)
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (s failingStore) Load(context.Context) ([]byte, error) { return nil, s.loadErr }
func (s failingStore) Save(context.Context, []byte) error   { return s.saveErr }
func (s failingStore) Close() error                         { return nil }
func (s failingStore) String() string                       { return "failing" }

func TestHistoryUnreadableLogIsEmpty(t *testing.T) {
	tr := newTestTracker(failingStore{loadErr: errors.New("permission denied")})
	assert.Empty(t, tr.History(context.Background()))
}

func TestRecordAndCompareSaveError(t *testing.T) {
	tr := newTestTracker(failingStore{saveErr: errors.New("disk full")})

	_, err := tr.RecordAndCompare(context.Background(), reportWithRate(50))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "failing")
}
