package rubric

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
)

var (
	// dimensionLine matches "**Clarity: 4**" and "**Clarity**: 4".
	dimensionLine = regexp.MustCompile(`^\s*\*\*\s*([^*:]+?)\s*(?::\s*([0-9]+)\s*\*\*|\*\*\s*:\s*([0-9]+))\s*$`)

	// justificationLine matches "*Justification: text*" (single asterisks or underscores).
	justificationLine = regexp.MustCompile(`^\s*[*_]\s*Justification\s*:\s*(.*?)\s*[*_]\s*$`)
)

// ParseScores extracts dimension scores from a judge's free-form response.
// A score is recognized only as a bolded dimension line immediately followed
// by an italic justification line. Lines of any other shape, and scores outside
// 1..5, are ignored. Dimension names are normalized with [NormalizeDimension].
func ParseScores(text string) map[string]models.DimensionScore {
	scores := map[string]models.DimensionScore{}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := 0; i+1 < len(lines); i++ {
		m := dimensionLine.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}

		j := justificationLine.FindStringSubmatch(lines[i+1])
		if j == nil {
			continue
		}

		raw := m[2]
		if raw == "" {
			raw = m[3]
		}
		score, err := strconv.Atoi(raw)
		if err != nil || score < 1 || score > 5 {
			continue
		}

		scores[NormalizeDimension(m[1])] = models.DimensionScore{
			Score:         &score,
			Justification: j[1],
		}
		i++
	}

	return scores
}

// NormalizeDimension turns a display name like "Code Quality" into "code_quality".
func NormalizeDimension(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}
