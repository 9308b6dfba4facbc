// Package validation checks result records and run reports against their
// embedded JSON Schemas before they are trusted.
package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/result.schema.json
var resultSchemaJSON []byte

//go:embed schemas/report.schema.json
var reportSchemaJSON []byte

var printer = message.NewPrinter(language.English)

var (
	resultSchema = sync.OnceValue(func() *jsonschema.Schema { return mustCompile("result.schema.json", resultSchemaJSON) })
	reportSchema = sync.OnceValue(func() *jsonschema.Schema { return mustCompile("report.schema.json", reportSchemaJSON) })
)

// mustCompile panics: the schemas are embedded, so a failure is a build defect.
func mustCompile(name string, raw []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parsing embedded %s: %v", name, err))
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("adding embedded %s: %v", name, err))
	}
	sch, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling embedded %s: %v", name, err))
	}
	return sch
}

// ValidateResultBytes validates a result.json document. It returns one
// message per violated constraint, sorted by location; nil means valid.
func ValidateResultBytes(data []byte) []string {
	return validate(resultSchema(), data)
}

// ValidateReportBytes validates a run report document.
func ValidateReportBytes(data []byte) []string {
	return validate(reportSchema(), data)
}

// Error joins validation messages into one error, or returns nil if there are none.
func Error(what string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s does not match schema: %s", what, strings.Join(errs, "; "))
}

func validate(schema *jsonschema.Schema, data []byte) []string {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}
	}

	var msgs []string
	for leaf := range leaves(ve) {
		loc := "/" + strings.Join(leaf.InstanceLocation, "/")
		msgs = append(msgs, loc+": "+leaf.ErrorKind.LocalizedString(printer))
	}
	slices.Sort(msgs)
	return slices.Compact(msgs)
}

// leaves yields the innermost causes of ve.
func leaves(ve *jsonschema.ValidationError) iter.Seq[*jsonschema.ValidationError] {
	return func(yield func(*jsonschema.ValidationError) bool) {
		var walk func(*jsonschema.ValidationError) bool
		walk = func(e *jsonschema.ValidationError) bool {
			if len(e.Causes) == 0 {
				return yield(e)
			}
			for _, c := range e.Causes {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(ve)
	}
}
