package models

import "time"

// AverageScores maps artifact kind -> dimension -> mean score. A nil value means
// no record supplied a score for that dimension.
type AverageScores map[ArtifactKind]map[string]*float64

// RunSummary contains the statistics for one run. It is always derived from the
// full set of result records, never updated incrementally.
type RunSummary struct {
	TotalTests    int           `json:"total_tests"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	PassRate      float64       `json:"pass_rate"`
	AverageScores AverageScores `json:"average_scores"`

	// ErrorKinds counts failed records by error kind.
	ErrorKinds map[ErrorKind]int `json:"error_kinds,omitempty"`
}

// Report is the persisted run report.
type Report struct {
	Timestamp    time.Time      `json:"timestamp"`
	RunDirectory string         `json:"run_directory"`
	Statistics   RunSummary     `json:"statistics"`
	TestResults  []ResultRecord `json:"test_results"`
}
