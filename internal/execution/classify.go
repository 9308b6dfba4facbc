package execution

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
)

var (
	// importFailurePattern matches the interpreter's diagnostics when a module or
	// name could not be resolved at import time.
	importFailurePattern = regexp.MustCompile(`\b(ModuleNotFoundError|ImportError)\b|No module named\b|cannot import name\b`)

	// missingAttributePattern matches the diagnostics for calling something the
	// implementation never defined.
	missingAttributePattern = regexp.MustCompile(`\bAttributeError\b|has no attribute\b|\bNameError\b: name '[^']+' is not defined`)
)

// ClassifyFailure maps the captured stderr of a failed test run to an error kind.
// Import failures take precedence over missing attributes; anything else is an
// assertion failure.
func ClassifyFailure(stderr string) models.ErrorKind {
	switch {
	case importFailurePattern.MatchString(stderr):
		return models.ErrorKindImportError
	case missingAttributePattern.MatchString(stderr):
		return models.ErrorKindMissingFunction
	default:
		return models.ErrorKindAssertionFailure
	}
}

// failureDetail picks the most useful single line out of the runner's output:
// the last non-blank line of stderr, then of stdout.
func failureDetail(stderr, stdout string, exitCode int) string {
	for _, text := range []string{stderr, stdout} {
		if line := lastNonBlankLine(text); line != "" {
			return line
		}
	}
	return "Tests failed with exit code " + strconv.Itoa(exitCode)
}

func lastNonBlankLine(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\r\n\t "), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
