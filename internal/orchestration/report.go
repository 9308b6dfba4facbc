package orchestration

import (
	"time"

	"github.com/timsvoice/specimin/internal/aggregate"
	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/reporting"
)

// BuildReport aggregates the result records under runDir and writes the JSON
// and markdown reports next to them.
func BuildReport(runDir string, cfg *projectconfig.ProjectConfig, dims map[models.ArtifactKind][]string, now time.Time) (*models.Report, *reporting.Paths, error) {
	summary, records, err := aggregate.Aggregate(runDir, aggregate.Options{
		ResultFile: cfg.Layout.ResultFile,
		Dimensions: dims,
	})
	if err != nil {
		return nil, nil, err
	}

	report := reporting.Build(runDir, *summary, records, now)

	paths, err := reporting.Write(report, runDir, cfg.Layout.ReportBaseName, cfg.Policy.PassThreshold)
	if err != nil {
		return nil, nil, err
	}
	return report, paths, nil
}
