package models

import "time"

// BaselineEntry is one timestamped snapshot of a run summary in the baseline log.
type BaselineEntry struct {
	RunID           string     `json:"run_id"`
	Timestamp       time.Time  `json:"timestamp"`
	RunDirectory    string     `json:"run_directory"`
	ReportTimestamp time.Time  `json:"report_timestamp"`
	Statistics      RunSummary `json:"statistics"`
}

// RegressionVerdict is the outcome of comparing the newest baseline entry with the
// one before it.
type RegressionVerdict struct {
	HasRegression    bool     `json:"has_regression"`
	PassRateDelta    float64  `json:"pass_rate_delta"`
	Message          string   `json:"message"`
	PreviousPassRate *float64 `json:"previous_pass_rate,omitempty"`
	CurrentPassRate  float64  `json:"current_pass_rate"`
}
