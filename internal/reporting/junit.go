package reporting

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"time"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/utils"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one evaluation run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one case.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a failure caused by the generated code.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a failure of the harness rather than the code under test.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// isHarnessError reports whether kind is an infrastructure problem (reported as
// a JUnit error) rather than a defect in the generated code (a JUnit failure).
func isHarnessError(kind models.ErrorKind) bool {
	return kind == models.ErrorKindTimeout || kind == models.ErrorKindExecutionError
}

// ConvertToJUnit converts a run report to JUnit XML format.
func ConvertToJUnit(report *models.Report, threshold float64) *JUnitTestSuites {
	suiteName := filepath.Base(report.RunDirectory)
	passing, _ := Status(report.Statistics.PassRate, threshold)

	suite := JUnitTestSuite{
		Name:      suiteName,
		Tests:     report.Statistics.TotalTests,
		Timestamp: report.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_directory", Value: report.RunDirectory},
			{Name: "pass_rate", Value: fmt.Sprintf("%.2f", report.Statistics.PassRate)},
			{Name: "pass_threshold", Value: fmt.Sprintf("%.2f", threshold)},
			{Name: "passing", Value: fmt.Sprintf("%t", passing)},
		},
	}

	var totalMs int64
	for i := range report.TestResults {
		r := &report.TestResults[i]
		totalMs += r.DurationMs

		tc := JUnitTestCase{
			Name:      r.DisplayName(),
			Classname: suiteName + "." + r.TestID,
			Time:      float64(r.DurationMs) / 1000.0,
		}

		if !r.Passed {
			detail := ""
			if r.ErrorDetail != nil {
				detail = *r.ErrorDetail
			}
			if isHarnessError(r.ErrorKind) {
				suite.Errors++
				tc.Error = &JUnitError{Message: detail, Type: string(r.ErrorKind), Body: r.Stderr}
			} else {
				suite.Failures++
				tc.Failure = &JUnitFailure{Message: detail, Type: string(r.ErrorKind), Body: r.Stderr}
			}
			tc.SystemOut = r.Stdout
		}

		suite.TestCases = append(suite.TestCases, tc)
	}
	suite.Time = float64(totalMs) / 1000.0

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Time:       suite.Time,
		TestSuites: []JUnitTestSuite{suite},
	}
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(report *models.Report, threshold float64, path string) error {
	suites := ConvertToJUnit(report, threshold)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return utils.WriteFileAtomic(path, output, 0644)
}
