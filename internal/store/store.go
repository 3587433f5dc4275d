package store

import (
	"context"

	"testemunhas/api/internal/model"
)

// Repository persists each organization's working set of cases and
// witnesses plus the history of imports and analysis runs.
//
// SaveImport replaces the organization's working set; cases and witnesses
// from earlier batches are removed in the same transaction.
type Repository interface {
	SaveImport(ctx context.Context, batch ImportBatch, cases []model.Case, witnesses []model.Testemunha) error
	ListCases(ctx context.Context, orgID string) ([]model.Case, error)
	ListTestemunhas(ctx context.Context, orgID string) ([]model.Testemunha, error)
	GetCase(ctx context.Context, orgID, digits string) (model.Case, error)
	LatestImport(ctx context.Context, orgID string) (ImportBatch, error)
	SaveAnalysisRun(ctx context.Context, run AnalysisRun) error
	ListAnalysisRuns(ctx context.Context, orgID string, limit int) ([]AnalysisRun, error)
	Ping(ctx context.Context) error
}

var (
	_ Repository = (*PostgresStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)

const defaultRunLimit = 20

func runLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultRunLimit
	}
	return limit
}
