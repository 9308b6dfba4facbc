// Package template renders judge prompts from rubric templates written in
// text/template syntax.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Context holds all variables available to a rubric prompt template.
type Context struct {
	ArtifactKind string
	// Content is the artifact text. It is inserted verbatim and never parsed.
	Content string

	CaseID   string
	CaseName string

	// Vars carries rubric-supplied values such as the dimension list.
	Vars map[string]string
}

var funcs = template.FuncMap{
	"fence": Fence,
	"upper": strings.ToUpper,
}

// Render executes tmpl against ctx. Unknown fields and missing Vars keys are
// errors. A string without "{{" is returned as is.
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}
	return buf.String(), nil
}

// Fence wraps content in a markdown code fence tagged with lang. The fence is
// one backtick longer than the longest backtick run in content, so generated
// markdown cannot close it early.
func Fence(content, lang string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", max(3, longest+1))
	return fence + lang + "\n" + strings.TrimRight(content, "\n") + "\n" + fence
}
