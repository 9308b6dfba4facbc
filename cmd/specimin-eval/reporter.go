package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/orchestration"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/spinner"
	"golang.org/x/term"
)

// maxNameWidth caps the case column of the summary table.
const maxNameWidth = 40

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

// progressPrinter returns a listener that prints one line per finished case.
// Listeners are called from worker goroutines in parallel runs.
func progressPrinter(w io.Writer) orchestration.ProgressListener {
	var mu sync.Mutex
	return func(event orchestration.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()

		switch event.EventType {
		case orchestration.EventRunStart:
			fmt.Fprintf(w, "Running %d case(s)\n", event.TotalCases)
		case orchestration.EventCaseComplete, orchestration.EventCaseCached:
			suffix := ""
			if event.EventType == orchestration.EventCaseCached {
				suffix = " (cached)"
			}
			name := event.TestName
			if name == "" {
				name = event.TestID
			}
			fmt.Fprintf(w, "[%d/%d] %s %s%s\n", event.CaseNum, event.TotalCases, statusLabel(event.Result), name, suffix)
		}
	}
}

// spinnerProgress returns a listener that keeps sp's message on the latest
// finished case.
func spinnerProgress(sp *spinner.Spinner) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventRunStart:
			sp.Update(fmt.Sprintf("Running %d case(s)", event.TotalCases))
		case orchestration.EventCaseComplete, orchestration.EventCaseCached:
			name := event.TestName
			if name == "" {
				name = event.TestID
			}
			sp.Update(fmt.Sprintf("[%d/%d] %s", event.CaseNum, event.TotalCases, truncateName(name, maxNameWidth)))
		}
	}
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// printRunSummary prints an aligned per-case table followed by the run status.
func printRunSummary(w io.Writer, outcome *orchestration.RunOutcome, threshold float64) {
	width := len("Case")
	names := make([]string, len(outcome.Cases))
	for i, c := range outcome.Cases {
		names[i] = truncateName(caseName(c.Case), maxNameWidth)
		width = max(width, runewidth.StringWidth(names[i]))
	}

	fmt.Fprintf(w, "\n%s  %-6s  %-8s  %s\n", padRight("Case", width), "Result", "Time", "Error")
	fmt.Fprintf(w, "%s  %s  %s  %s\n", strings.Repeat("-", width), strings.Repeat("-", 6), strings.Repeat("-", 8), strings.Repeat("-", 17))
	for i, c := range outcome.Cases {
		errKind := "-"
		if c.Result.ErrorKind != models.ErrorKindNone {
			errKind = string(c.Result.ErrorKind)
		}
		dur := formatDuration(time.Duration(c.Result.DurationMs) * time.Millisecond)
		if c.Cached {
			dur = "cached"
		}
		fmt.Fprintf(w, "%s  %-6s  %-8s  %s\n", padRight(names[i], width), statusLabel(c.Result), dur, errKind)
	}

	s := outcome.Report.Statistics
	_, status := reporting.Status(s.PassRate, threshold)
	fmt.Fprintf(w, "\n%d/%d passed\n%s\n", s.Passed, s.TotalTests, status)

	if outcome.Verdict != nil {
		fmt.Fprintln(w, outcome.Verdict.Message)
	}
	if outcome.Paths != nil {
		fmt.Fprintf(w, "Report: %s\n", outcome.Paths.Markdown)
	}
}

func statusLabel(result *models.ExecutionResult) string {
	if result != nil && result.Passed {
		return "PASS"
	}
	return "FAIL"
}

func caseName(tc *models.TestCase) string {
	if tc.Name != "" {
		return tc.Name
	}
	return tc.ID
}

// truncateName shortens a name to maxLen runes, replacing the last rune with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
