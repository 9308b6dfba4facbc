// Package baseline keeps the append-only history of run summaries and detects
// pass-rate regressions between consecutive runs.
package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/statistics"
)

// Policy holds the regression threshold in percentage points. A delta strictly
// below the threshold is a regression.
type Policy struct {
	RegressionThreshold float64
}

// DefaultPolicy returns the built-in regression policy.
func DefaultPolicy() Policy {
	return Policy{RegressionThreshold: projectconfig.DefaultRegressionThreshold}
}

// Tracker appends run summaries to a [Store] and compares each new entry with
// the one before it. It performs an unlocked read-modify-write of the store, so
// concurrent trackers over the same store may lose updates.
type Tracker struct {
	store  Store
	policy Policy

	now   func() time.Time
	newID func() string
}

// NewTracker creates a [Tracker] over store.
func NewTracker(store Store, policy Policy) *Tracker {
	return &Tracker{
		store:  store,
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// History returns the persisted log, oldest first. An absent, unreadable or
// corrupted log is logged as a warning and treated as empty.
func (t *Tracker) History(ctx context.Context) []models.BaselineEntry {
	data, err := t.store.Load(ctx)
	if err != nil {
		slog.Warn("baseline log is unreadable, starting from an empty log", "store", t.store.String(), "error", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var entries []models.BaselineEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("baseline log is corrupted, starting from an empty log", "store", t.store.String(), "error", err)
		return nil
	}
	return entries
}

// RecordAndCompare appends the report's summary to the log, persists the full
// log and returns the verdict against the previous entry.
func (t *Tracker) RecordAndCompare(ctx context.Context, report *models.Report) (*models.RegressionVerdict, error) {
	entries := t.History(ctx)

	current := models.BaselineEntry{
		RunID:           t.newID(),
		Timestamp:       t.now().UTC(),
		RunDirectory:    report.RunDirectory,
		ReportTimestamp: report.Timestamp,
		Statistics:      report.Statistics,
	}

	var previous *models.BaselineEntry
	if len(entries) > 0 {
		previous = &entries[len(entries)-1]
	}

	verdict := Compare(previous, current, t.policy)

	entries = append(entries, current)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling baseline log: %w", err)
	}
	if err := t.store.Save(ctx, append(data, '\n')); err != nil {
		return nil, fmt.Errorf("saving baseline log to %s: %w", t.store, err)
	}

	slog.Debug("baseline updated", "store", t.store.String(), "entries", len(entries), "delta", verdict.PassRateDelta)
	return &verdict, nil
}

// Compare classifies the change from previous to current. previous is nil for
// the first entry.
func Compare(previous *models.BaselineEntry, current models.BaselineEntry, policy Policy) models.RegressionVerdict {
	cur := current.Statistics.PassRate

	if previous == nil {
		return models.RegressionVerdict{
			PassRateDelta:   0,
			CurrentPassRate: cur,
			Message:         fmt.Sprintf("No previous baseline, no comparison available (current pass rate %.2f%%)", cur),
		}
	}

	prev := previous.Statistics.PassRate
	delta := roundDelta(cur - prev)

	verdict := models.RegressionVerdict{
		PassRateDelta:    delta,
		PreviousPassRate: &prev,
		CurrentPassRate:  cur,
	}

	switch {
	case delta < policy.RegressionThreshold:
		verdict.HasRegression = true
		verdict.Message = fmt.Sprintf("Regression detected: pass rate dropped from %.2f%% to %.2f%% (%+.2f points)", prev, cur, delta)
	case delta > 0:
		verdict.Message = fmt.Sprintf("Improvement: pass rate rose from %.2f%% to %.2f%% (%+.2f points)", prev, cur, delta)
	default:
		verdict.Message = fmt.Sprintf("Stable: pass rate %.2f%% (previous %.2f%%, %+.2f points)", cur, prev, delta)
	}

	return verdict
}

func roundDelta(d float64) float64 {
	return statistics.Round2(d)
}
