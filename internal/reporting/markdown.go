package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/statistics"
)

// RenderMarkdown renders the human-readable report.
func RenderMarkdown(report *models.Report, threshold float64) string {
	var b strings.Builder
	s := report.Statistics

	b.WriteString("# Evaluation Report\n\n")

	_, status := Status(s.PassRate, threshold)
	fmt.Fprintf(&b, "**%s**\n\n", status)

	fmt.Fprintf(&b, "- Generated: %s\n", report.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Run directory: `%s`\n\n", report.RunDirectory)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total tests | %d |\n", s.TotalTests)
	fmt.Fprintf(&b, "| Passed | %d |\n", s.Passed)
	fmt.Fprintf(&b, "| Failed | %d |\n", s.Failed)
	fmt.Fprintf(&b, "| Pass rate | %.2f%% |\n\n", s.PassRate)
	fmt.Fprintf(&b, "%s\n\n", InterpretPassRate(s.PassRate))

	if len(s.ErrorKinds) > 0 {
		b.WriteString("### Failures by kind\n\n")
		for _, kind := range models.AllErrorKinds {
			if n := s.ErrorKinds[kind]; n > 0 {
				fmt.Fprintf(&b, "- `%s`: %d\n", kind, n)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Test Results\n")
	if len(report.TestResults) == 0 {
		b.WriteString("\nNo result records were found.\n")
	}
	for i := range report.TestResults {
		writeRecord(&b, &report.TestResults[i])
	}

	writeAverages(&b, s.AverageScores)

	return b.String()
}

func writeRecord(b *strings.Builder, r *models.ResultRecord) {
	fmt.Fprintf(b, "\n### %s: %s\n\n", r.TestID, r.DisplayName())

	if r.Passed {
		b.WriteString("- Status: PASS\n")
	} else {
		b.WriteString("- Status: FAIL\n")
		if r.ErrorKind != models.ErrorKindNone {
			fmt.Fprintf(b, "- Error kind: `%s`\n", r.ErrorKind)
		}
		if r.ErrorDetail != nil && *r.ErrorDetail != "" {
			fmt.Fprintf(b, "- Error detail:\n\n%s\n", codeBlock(*r.ErrorDetail))
		}
	}

	if len(r.RubricScores) == 0 {
		return
	}

	b.WriteString("\n#### Scores\n")
	for _, kind := range orderedKinds(r.RubricScores) {
		dims := r.RubricScores[kind]
		if len(dims) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n**%s**\n\n", kind)
		for _, name := range sortedKeys(dims) {
			score := dims[name]
			value := "n/a"
			if score.Score != nil {
				value = fmt.Sprintf("%d/5", *score.Score)
			}
			if score.Justification != "" {
				fmt.Fprintf(b, "- %s: %s (%s)\n", name, value, score.Justification)
			} else {
				fmt.Fprintf(b, "- %s: %s\n", name, value)
			}
		}
	}
}

func writeAverages(b *strings.Builder, averages models.AverageScores) {
	var sections strings.Builder
	for _, kind := range orderedKinds(averages) {
		var lines strings.Builder
		for _, name := range sortedKeys(averages[kind]) {
			avg := averages[kind][name]
			if avg == nil {
				continue
			}
			shown := statistics.Round2(*avg)
			fmt.Fprintf(&lines, "- %s: %.2f/5 (%s)\n", name, shown, InterpretScore(shown))
		}
		if lines.Len() == 0 {
			continue
		}
		fmt.Fprintf(&sections, "\n### %s\n\n%s", kind, lines.String())
	}

	if sections.Len() == 0 {
		return
	}
	b.WriteString("\n## Average Scores\n")
	b.WriteString(sections.String())
}

// codeBlock fences text with enough backticks that text cannot close it.
func codeBlock(text string) string {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	return fence + "\n" + strings.TrimRight(text, "\n") + "\n" + fence + "\n"
}

// orderedKinds returns the known artifact kinds present in m in their fixed
// order, followed by any unknown kinds sorted by name.
func orderedKinds[V any](m map[models.ArtifactKind]V) []models.ArtifactKind {
	var kinds []models.ArtifactKind
	for _, kind := range models.ArtifactKinds {
		if _, ok := m[kind]; ok {
			kinds = append(kinds, kind)
		}
	}

	var extra []models.ArtifactKind
	for kind := range m {
		known := false
		for _, k := range models.ArtifactKinds {
			if k == kind {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, kind)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(kinds, extra...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
