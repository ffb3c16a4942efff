package migration

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAnalysisRunsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create analysis_runs table: %w", err)
	}

	if err := r.createAnalysisEstimatesTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create analysis_estimates table: %w", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (r *MigrationRunner) createAnalysisRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id UUID PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			sessions INTEGER NOT NULL,
			cutoff DOUBLE PRECISION NOT NULL,
			treatment_effect DOUBLE PRECISION NOT NULL,
			seed BIGINT NOT NULL,
			bandwidth DOUBLE PRECISION NOT NULL,
			shipping_cost DOUBLE PRECISION NOT NULL,
			point_estimate DOUBLE PRECISION NOT NULL,
			std_error DOUBLE PRECISION NOT NULL,
			p_value DOUBLE PRECISION NOT NULL,
			report JSONB NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createAnalysisEstimatesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_estimates (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			bandwidth DOUBLE PRECISION NOT NULL,
			point_estimate DOUBLE PRECISION NOT NULL,
			std_error DOUBLE PRECISION NOT NULL,
			ci_lower DOUBLE PRECISION NOT NULL,
			ci_upper DOUBLE PRECISION NOT NULL,
			p_value DOUBLE PRECISION NOT NULL,
			sample_size INTEGER NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON analysis_runs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_estimates_run_id ON analysis_estimates(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_estimates_name ON analysis_estimates(name)",
		"CREATE INDEX IF NOT EXISTS idx_estimates_run_name ON analysis_estimates(run_id, name)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
