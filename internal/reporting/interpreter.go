package reporting

import (
	"fmt"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/statistics"
)

// InterpretScore returns a plain-language label for an average rubric score (1–5).
func InterpretScore(score float64) string {
	switch {
	case score >= 4.5:
		return "Excellent"
	case score >= 3.5:
		return "Good"
	case score >= 2.5:
		return "Needs Work"
	default:
		return "Poor"
	}
}

// InterpretPassRate returns a human-readable explanation of a pass rate (0–100).
func InterpretPassRate(pct float64) string {
	switch {
	case pct >= 100:
		return fmt.Sprintf("All tests passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most tests passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the tests passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few tests passed (%.0f%%)", pct)
	}
}

// FormatSummaryReport produces a short plain-language summary for the console.
func FormatSummaryReport(report *models.Report, threshold float64) string {
	var b strings.Builder
	s := report.Statistics

	b.WriteString("=== Interpretation ===\n\n")

	_, status := Status(s.PassRate, threshold)
	b.WriteString(status + "\n")
	b.WriteString(fmt.Sprintf("Pass Rate:     %s\n", InterpretPassRate(s.PassRate)))

	if s.TotalTests > 0 {
		b.WriteString(fmt.Sprintf("Tests:         %d passed, %d failed out of %d total\n", s.Passed, s.Failed, s.TotalTests))
	}
	if len(report.TestResults) > 1 {
		ci := statistics.PassRateCI(report.TestResults, statistics.DefaultConfidenceLevel)
		b.WriteString(fmt.Sprintf("95%% CI:        [%.2f%%, %.2f%%]\n", ci.Lower, ci.Upper))
	}

	if len(s.ErrorKinds) > 0 {
		b.WriteString("\nFailures by kind:\n")
		for _, kind := range models.AllErrorKinds {
			if n := s.ErrorKinds[kind]; n > 0 {
				b.WriteString(fmt.Sprintf("  %-18s %d\n", kind, n))
			}
		}
	}

	for _, kind := range orderedKinds(s.AverageScores) {
		for _, name := range sortedKeys(s.AverageScores[kind]) {
			if avg := s.AverageScores[kind][name]; avg != nil {
				shown := statistics.Round2(*avg)
				b.WriteString(fmt.Sprintf("  %s/%s: %.2f (%s)\n", kind, name, shown, InterpretScore(shown)))
			}
		}
	}

	return b.String()
}
