package webapi

import (
	"time"

	"github.com/timsvoice/specimin/internal/models"
)

// RunSummary is the API response for a single run in the list.
type RunSummary struct {
	ID           string    `json:"id"`
	RunDirectory string    `json:"runDirectory"`
	Timestamp    time.Time `json:"timestamp"`
	TotalTests   int       `json:"totalTests"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	PassRate     float64   `json:"passRate"`
	Passing      bool      `json:"passing"`
}

// RunDetail is the API response for a single run with per-case results.
type RunDetail struct {
	RunSummary
	ErrorKinds    map[models.ErrorKind]int `json:"errorKinds"`
	AverageScores models.AverageScores     `json:"averageScores"`
	Cases         []CaseResult             `json:"cases"`
}

// CaseResult is a per-case result within a run.
type CaseResult struct {
	TestID       string              `json:"testId"`
	Name         string              `json:"name"`
	Passed       bool                `json:"passed"`
	ErrorKind    models.ErrorKind    `json:"errorKind"`
	ErrorDetail  *string             `json:"errorDetail"`
	DurationMs   int64               `json:"durationMs"`
	RubricScores models.RubricScores `json:"rubricScores,omitempty"`
}

// SummaryResponse is the aggregate KPI response.
type SummaryResponse struct {
	TotalRuns      int      `json:"totalRuns"`
	TotalTests     int      `json:"totalTests"`
	PassRate       float64  `json:"passRate"`
	LatestRunID    string   `json:"latestRunId,omitempty"`
	LatestPassRate *float64 `json:"latestPassRate,omitempty"`
}

// BaselineResponse is the baseline log plus the verdict for its newest entry.
type BaselineResponse struct {
	Entries []models.BaselineEntry    `json:"entries"`
	Verdict *models.RegressionVerdict `json:"verdict,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
