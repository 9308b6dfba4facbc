package reporting

import (
	"bytes"
	"fmt"
	"html"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.75rem; text-align: left; }
pre { background: #f6f8fa; padding: 0.75rem; overflow-x: auto; }
</style>
</head>
<body>
%s</body>
</html>
`

// RenderHTML converts the markdown report into a standalone HTML page.
func RenderHTML(report *models.Report, threshold float64) ([]byte, error) {
	return MarkdownPage("Evaluation Report: "+report.RunDirectory, RenderMarkdown(report, threshold))
}

// MarkdownPage renders GitHub-flavored markdown as a standalone HTML page.
func MarkdownPage(title, markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("rendering HTML report: %w", err)
	}

	return []byte(fmt.Sprintf(htmlPage, html.EscapeString(title), body.String())), nil
}
