package orchestration

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
)

// caseFilter selects cases by glob over their name or ID. Patterns prefixed
// with "!" exclude; a case must match some include (if any were given) and
// no exclude.
type caseFilter struct {
	include []string
	exclude []string
}

func newCaseFilter(patterns []string) (*caseFilter, error) {
	f := &caseFilter{}
	for _, p := range patterns {
		glob, negated := strings.CutPrefix(p, "!")
		if _, err := filepath.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("invalid case filter pattern %q: %w", p, err)
		}
		if negated {
			f.exclude = append(f.exclude, glob)
		} else {
			f.include = append(f.include, glob)
		}
	}
	return f, nil
}

func (f *caseFilter) keep(tc *models.TestCase) bool {
	if len(f.include) > 0 && !matchesAny(tc, f.include) {
		return false
	}
	return !matchesAny(tc, f.exclude)
}

// FilterTestCases returns the cases selected by patterns, in their original
// order. No patterns selects every case.
func FilterTestCases(testCases []*models.TestCase, patterns []string) ([]*models.TestCase, error) {
	if len(patterns) == 0 {
		return testCases, nil
	}

	f, err := newCaseFilter(patterns)
	if err != nil {
		return nil, err
	}

	var matched []*models.TestCase
	for _, tc := range testCases {
		if f.keep(tc) {
			matched = append(matched, tc)
		}
	}
	return matched, nil
}

// matchesAny expects globs already checked by newCaseFilter.
func matchesAny(tc *models.TestCase, globs []string) bool {
	for _, g := range globs {
		if tc.Name != "" {
			if ok, _ := filepath.Match(g, tc.Name); ok {
				return true
			}
		}
		if ok, _ := filepath.Match(g, tc.ID); ok {
			return true
		}
	}
	return false
}
