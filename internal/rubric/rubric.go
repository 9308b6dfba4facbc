// Package rubric holds the scoring rubrics used to judge generated artifacts
// and the parser for judge responses.
package rubric

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/template"
	"gopkg.in/yaml.v3"
)

// Dimension is one named quality axis scored 1..5.
type Dimension struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Rubric is the scoring template for one artifact kind.
type Rubric struct {
	Kind       models.ArtifactKind `yaml:"-"`
	Dimensions []Dimension         `yaml:"dimensions"`
	// Template is a text/template prompt. {{.Content}} is replaced by the
	// artifact and {{.Vars.dimensions}} by the formatted dimension list.
	Template string `yaml:"template"`
}

const defaultTemplate = `You are reviewing a generated {{.ArtifactKind}} for the case "{{.CaseName}}".

Score each dimension below from 1 (poor) to 5 (excellent).

{{.Vars.dimensions}}

For every dimension respond with exactly two lines:
**<Dimension>: <score>**
*Justification: <one sentence>*

--- BEGIN {{upper .ArtifactKind}} ---
{{fence .Content .Vars.language}}
--- END {{upper .ArtifactKind}} ---
`

// Defaults returns the built-in rubrics, keyed by artifact kind.
func Defaults() map[models.ArtifactKind]*Rubric {
	return map[models.ArtifactKind]*Rubric{
		models.ArtifactSpec: {
			Kind: models.ArtifactSpec,
			Dimensions: []Dimension{
				{Name: "completeness", Description: "Covers all required behaviour and edge cases"},
				{Name: "clarity", Description: "Unambiguous and easy to follow"},
				{Name: "testability", Description: "Requirements can be verified by tests"},
				{Name: "consistency", Description: "No contradictory requirements"},
			},
			Template: defaultTemplate,
		},
		models.ArtifactPlan: {
			Kind: models.ArtifactPlan,
			Dimensions: []Dimension{
				{Name: "feasibility", Description: "Steps can be carried out as written"},
				{Name: "completeness", Description: "Every requirement is addressed"},
				{Name: "clarity", Description: "Steps are specific and ordered"},
				{Name: "alignment", Description: "Follows the specification faithfully"},
			},
			Template: defaultTemplate,
		},
		models.ArtifactImplementation: {
			Kind: models.ArtifactImplementation,
			Dimensions: []Dimension{
				{Name: "correctness", Description: "Behaves as specified"},
				{Name: "readability", Description: "Clear names and structure"},
				{Name: "maintainability", Description: "Easy to change safely"},
				{Name: "alignment", Description: "Follows the plan and specification"},
			},
			Template: defaultTemplate,
		},
	}
}

// Load returns the default rubrics, overridden by any "<kind>.yaml" found in dir.
// An empty dir returns the defaults.
func Load(dir string) (map[models.ArtifactKind]*Rubric, error) {
	rubrics := Defaults()
	if dir == "" {
		return rubrics, nil
	}

	for _, kind := range models.ArtifactKinds {
		path := filepath.Join(dir, string(kind)+".yaml")
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading rubric %s: %w", path, err)
		}

		var r Rubric
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parsing rubric %s: %w", path, err)
		}
		if len(r.Dimensions) == 0 {
			return nil, fmt.Errorf("rubric %s defines no dimensions", path)
		}
		for i := range r.Dimensions {
			r.Dimensions[i].Name = NormalizeDimension(r.Dimensions[i].Name)
		}
		if r.Template == "" {
			r.Template = defaultTemplate
		}
		r.Kind = kind
		rubrics[kind] = &r
	}

	return rubrics, nil
}

// DimensionNames returns the dimension names in rubric order.
func (r *Rubric) DimensionNames() []string {
	names := make([]string, 0, len(r.Dimensions))
	for _, d := range r.Dimensions {
		names = append(names, d.Name)
	}
	return names
}

// Dimensions maps each rubric's artifact kind to its dimension names.
func Dimensions(rubrics map[models.ArtifactKind]*Rubric) map[models.ArtifactKind][]string {
	dims := make(map[models.ArtifactKind][]string, len(rubrics))
	for kind, r := range rubrics {
		dims[kind] = r.DimensionNames()
	}
	return dims
}

// Prompt renders the evaluation prompt for one artifact.
func (r *Rubric) Prompt(caseID, caseName, content string) (string, error) {
	if caseName == "" {
		caseName = caseID
	}

	var dims strings.Builder
	for _, d := range r.Dimensions {
		fmt.Fprintf(&dims, "- %s: %s\n", d.Name, d.Description)
	}

	return template.Render(r.Template, &template.Context{
		ArtifactKind: string(r.Kind),
		Content:      content,
		CaseID:       caseID,
		CaseName:     caseName,
		Vars: map[string]string{
			"dimensions": strings.TrimRight(dims.String(), "\n"),
			"language":   fenceLanguage(r.Kind),
		},
	})
}

func fenceLanguage(kind models.ArtifactKind) string {
	if kind == models.ArtifactImplementation {
		return "python"
	}
	return "markdown"
}

// Score parses a judge response against this rubric. Every rubric dimension is
// present in the result; dimensions the judge did not score have a nil Score.
// Extra dimensions the judge scored are kept.
func (r *Rubric) Score(response string) map[string]models.DimensionScore {
	scores := ParseScores(response)
	for _, d := range r.Dimensions {
		if _, ok := scores[d.Name]; !ok {
			scores[d.Name] = models.DimensionScore{}
		}
	}
	return scores
}
