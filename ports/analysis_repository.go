package ports

import (
	"context"

	"gordd/domain/core"
	"gordd/domain/rdd"
)

// AnalysisRepository persists finished analysis reports and serves them back
// for the results API. Lookups of unknown run IDs return core.ErrNotFound.
type AnalysisRepository interface {
	SaveReport(ctx context.Context, report *rdd.AnalysisReport) error
	GetReport(ctx context.Context, id core.RunID) (*rdd.AnalysisReport, error)
	ListRuns(ctx context.Context, limit int) ([]rdd.RunSummary, error)
}
