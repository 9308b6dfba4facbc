package reporting

import (
	"time"

	"github.com/timsvoice/specimin/internal/models"
)

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }
func fixedTime() time.Time        { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
func dim(n int, j string) models.DimensionScore {
	return models.DimensionScore{Score: intPtr(n), Justification: j}
}

func newTestReport() *models.Report {
	records := []models.ResultRecord{
		{
			ExecutionResult: models.ExecutionResult{TestID: "case-01", Passed: true, Stdout: "1 passed", DurationMs: 1200},
			TestName:        "Adds numbers",
			RubricScores: models.RubricScores{
				models.ArtifactSpec: {
					"clarity":      dim(4, "Clear inputs and outputs"),
					"completeness": {Justification: "not scored"},
				},
			},
		},
		{
			ExecutionResult: models.ExecutionResult{
				TestID:      "case-02",
				ErrorKind:   models.ErrorKindAssertionFailure,
				ErrorDetail: strPtr("AssertionError: assert 3 == 4"),
				Stderr:      "Traceback...\nAssertionError: assert 3 == 4",
				DurationMs:  800,
			},
		},
		{
			ExecutionResult: models.ExecutionResult{
				TestID:      "case-03",
				ErrorKind:   models.ErrorKindTimeout,
				ErrorDetail: strPtr("Test execution timed out after 30 seconds"),
				DurationMs:  30000,
			},
			TestName: "Sleeps forever",
		},
	}

	return &models.Report{
		Timestamp:    fixedTime(),
		RunDirectory: "runs/2026-10-19",
		Statistics: models.RunSummary{
			TotalTests: 3,
			Passed:     1,
			Failed:     2,
			PassRate:   33.33,
			AverageScores: models.AverageScores{
				models.ArtifactSpec: {"clarity": floatPtr(4), "completeness": nil},
				models.ArtifactPlan: {"feasibility": nil},
			},
			ErrorKinds: map[models.ErrorKind]int{
				models.ErrorKindAssertionFailure: 1,
				models.ErrorKindTimeout:          1,
			},
		},
		TestResults: records,
	}
}
