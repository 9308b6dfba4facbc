package judge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/timsvoice/specimin/internal/aggregate"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/rubric"
)

// Scorer judges the artifacts of a case directory against the rubrics.
type Scorer struct {
	judge   Judge
	rubrics map[models.ArtifactKind]*rubric.Rubric
	layout  projectconfig.LayoutConfig
}

// NewScorer creates a [Scorer].
func NewScorer(judge Judge, rubrics map[models.ArtifactKind]*rubric.Rubric, layout projectconfig.LayoutConfig) *Scorer {
	return &Scorer{judge: judge, rubrics: rubrics, layout: layout}
}

// ArtifactPath returns where the artifact of the given kind lives in caseDir.
func (s *Scorer) ArtifactPath(caseDir string, kind models.ArtifactKind) string {
	switch kind {
	case models.ArtifactSpec:
		return filepath.Join(caseDir, s.layout.SpecFile)
	case models.ArtifactPlan:
		return filepath.Join(caseDir, s.layout.PlanFile)
	default:
		return filepath.Join(caseDir, s.layout.ImplementationFile)
	}
}

// ScoreCase judges every artifact present in the case directory. Artifacts that
// do not exist are skipped. A judge failure aborts scoring.
func (s *Scorer) ScoreCase(ctx context.Context, tc *models.TestCase) (models.RubricScores, error) {
	scores := models.RubricScores{}

	for _, kind := range models.ArtifactKinds {
		r, ok := s.rubrics[kind]
		if !ok {
			continue
		}

		path := s.ArtifactPath(tc.CaseDir, kind)
		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("artifact not present, not scoring", "test_id", tc.ID, "kind", kind)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		prompt, err := r.Prompt(tc.ID, tc.Name, string(content))
		if err != nil {
			return nil, fmt.Errorf("rendering %s rubric: %w", kind, err)
		}

		response, err := s.judge.Evaluate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("judging %s of %s: %w", kind, tc.ID, err)
		}

		scores[kind] = r.Score(response)
		slog.Debug("artifact scored", "test_id", tc.ID, "kind", kind, "dimensions", len(scores[kind]))
	}

	return scores, nil
}

// MergeScores writes scores into the existing result record of tc. Kinds that
// were scored replace earlier scores for that kind; others are kept.
func (s *Scorer) MergeScores(tc *models.TestCase, scores models.RubricScores) (*models.ResultRecord, error) {
	path := filepath.Join(tc.CaseDir, s.layout.ResultFile)

	record, err := aggregate.ReadRecordFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no result record at %s, execute the case first", path)
	}
	if err != nil {
		return nil, err
	}

	if record.RubricScores == nil {
		record.RubricScores = models.RubricScores{}
	}
	for kind, dims := range scores {
		record.RubricScores[kind] = dims
	}
	if record.TestName == "" {
		record.TestName = tc.Name
	}

	if err := aggregate.WriteRecordFile(path, record); err != nil {
		return nil, err
	}
	return record, nil
}
