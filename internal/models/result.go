package models

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies why a test case did not pass.
type ErrorKind string

const (
	// ErrorKindNone is the zero value, used when the case passed. It serializes as JSON null.
	ErrorKindNone ErrorKind = ""

	ErrorKindMissingFile      ErrorKind = "missing_file"
	ErrorKindSyntaxError      ErrorKind = "syntax_error"
	ErrorKindImportError      ErrorKind = "import_error"
	ErrorKindMissingFunction  ErrorKind = "missing_function"
	ErrorKindAssertionFailure ErrorKind = "assertion_failure"
	ErrorKindTimeout          ErrorKind = "timeout"
	ErrorKindExecutionError   ErrorKind = "execution_error"
)

// AllErrorKinds lists every non-empty error kind, in precedence order of the executor.
var AllErrorKinds = []ErrorKind{
	ErrorKindMissingFile,
	ErrorKindSyntaxError,
	ErrorKindImportError,
	ErrorKindMissingFunction,
	ErrorKindAssertionFailure,
	ErrorKindTimeout,
	ErrorKindExecutionError,
}

// Valid reports whether k is ErrorKindNone or one of [AllErrorKinds].
func (k ErrorKind) Valid() bool {
	if k == ErrorKindNone {
		return true
	}
	for _, known := range AllErrorKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k ErrorKind) MarshalJSON() ([]byte, error) {
	if k == ErrorKindNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(k))
}

func (k *ErrorKind) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*k = ErrorKindNone
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	kind := ErrorKind(s)
	if !kind.Valid() {
		return fmt.Errorf("unknown error kind %q", s)
	}

	*k = kind
	return nil
}

// TestCase is one generated implementation plus its generated test file,
// materialized from a case directory.
type TestCase struct {
	ID      string
	Name    string
	CaseDir string

	ImplementationPath string
	TestPath           string

	// Implementation and Tests are nil when the corresponding file does not exist.
	Implementation []byte
	Tests          []byte
}

// ExecutionResult is the classified outcome of running one test case.
// NOTE: if Passed is false, ErrorKind is always set.
type ExecutionResult struct {
	TestID      string    `json:"test_id"`
	Passed      bool      `json:"passed"`
	ErrorKind   ErrorKind `json:"error_kind"`
	ErrorDetail *string   `json:"error_detail"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
}

// ArtifactKind identifies which generated artifact a rubric score applies to.
type ArtifactKind string

const (
	ArtifactSpec           ArtifactKind = "spec"
	ArtifactPlan           ArtifactKind = "plan"
	ArtifactImplementation ArtifactKind = "implementation"
)

// ArtifactKinds is the fixed rendering order for artifact kinds.
var ArtifactKinds = []ArtifactKind{ArtifactSpec, ArtifactPlan, ArtifactImplementation}

// DimensionScore is a judge's score for a single rubric dimension.
// Score is nil when the judge did not supply one.
type DimensionScore struct {
	Score         *int   `json:"score"`
	Justification string `json:"justification"`
}

// RubricScores maps artifact kind -> dimension -> score.
type RubricScores map[ArtifactKind]map[string]DimensionScore

// ResultRecord is the persisted per-case result file: an [ExecutionResult]
// plus optional display name and judge scores.
type ResultRecord struct {
	ExecutionResult
	TestName     string       `json:"test_name,omitempty"`
	RubricScores RubricScores `json:"rubric_scores,omitempty"`
}

// DisplayName returns TestName, falling back to TestID.
func (r *ResultRecord) DisplayName() string {
	if r.TestName != "" {
		return r.TestName
	}
	return r.TestID
}
