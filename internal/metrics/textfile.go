// Package metrics exports run statistics in the Prometheus text exposition
// format, for the node_exporter textfile collector.
package metrics

import (
	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/statistics"
)

const namespace = "specimin_eval"

// durationBuckets spans fast unit tests up to the 30s execution limit.
var durationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}

// Collect builds a registry holding the gauges for one report. verdict may be
// nil when no baseline comparison was made.
func Collect(report *models.Report, verdict *models.RegressionVerdict, passThreshold float64) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	s := report.Statistics

	gauge := func(name, help string, v float64) {
		factory.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}).Set(v)
	}

	gauge("tests_total", "Number of test cases with a result record.", float64(s.TotalTests))
	gauge("tests_passed", "Number of passing test cases.", float64(s.Passed))
	gauge("tests_failed", "Number of failing test cases.", float64(s.Failed))
	gauge("pass_rate_percent", "Percentage of passing test cases.", s.PassRate)
	gauge("pass_threshold_percent", "Pass rate required for a PASSING run.", passThreshold)
	gauge("passing", "1 when the run meets the pass threshold.", boolValue(s.PassRate >= passThreshold))
	if len(report.TestResults) > 0 {
		ci := statistics.PassRateCI(report.TestResults, statistics.DefaultConfidenceLevel)
		gauge("pass_rate_ci_lower_percent", "Lower bound of the 95% bootstrap interval for the pass rate.", ci.Lower)
		gauge("pass_rate_ci_upper_percent", "Upper bound of the 95% bootstrap interval for the pass rate.", ci.Upper)
	}
	gauge("report_timestamp_seconds", "Unix time the report was built.", float64(report.Timestamp.Unix()))

	failures := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "failures",
		Help:      "Failing test cases by error kind.",
	}, []string{"kind"})
	for _, kind := range models.AllErrorKinds {
		failures.WithLabelValues(string(kind)).Set(float64(s.ErrorKinds[kind]))
	}

	scores := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "average_score",
		Help:      "Mean rubric score per artifact kind and dimension. Absent when no case was scored.",
	}, []string{"kind", "dimension"})
	for kind, dims := range s.AverageScores {
		for dim, avg := range dims {
			if avg != nil {
				scores.WithLabelValues(string(kind), dim).Set(*avg)
			}
		}
	}

	durations := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "case_duration_seconds",
		Help:      "Wall-clock execution time per test case.",
		Buckets:   durationBuckets,
	})
	secs := make([]float64, 0, len(report.TestResults))
	for _, r := range report.TestResults {
		v := float64(r.DurationMs) / 1000
		durations.Observe(v)
		secs = append(secs, v)
	}
	if p95, err := stats.Percentile(secs, 95); err == nil {
		gauge("case_duration_p95_seconds", "95th percentile of per-case execution time.", p95)
	}

	if verdict != nil {
		gauge("pass_rate_delta_points", "Pass-rate change against the previous baseline entry.", verdict.PassRateDelta)
		gauge("regression", "1 when the pass rate dropped past the regression threshold.", boolValue(verdict.HasRegression))
	}

	return reg
}

// WriteTextfile writes the metrics for report to path atomically.
func WriteTextfile(path string, report *models.Report, verdict *models.RegressionVerdict, passThreshold float64) error {
	return prometheus.WriteToTextfile(path, Collect(report, verdict, passThreshold))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
