package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gordd/domain/core"
	"gordd/domain/rdd"
	"gordd/ports"

	"github.com/jmoiron/sqlx"
)

// AnalysisRepositoryImpl implements AnalysisRepository for PostgreSQL
type AnalysisRepositoryImpl struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new PostgreSQL analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &AnalysisRepositoryImpl{db: db}
}

// SaveReport persists a finished report: one analysis_runs row carrying the
// parameters and the full JSONB payload, plus one analysis_estimates child row
// per named estimate so runs can be compared in SQL without unpacking JSON.
// Saving the same run ID again replaces both.
func (r *AnalysisRepositoryImpl) SaveReport(ctx context.Context, report *rdd.AnalysisReport) error {
	if report == nil {
		return core.NewParameterError("report", "must not be nil")
	}
	if report.RunID == "" {
		return core.NewParameterError("run_id", "must not be empty")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.RunID, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, created_at, sessions, cutoff, treatment_effect, seed,
			bandwidth, shipping_cost, point_estimate, std_error, p_value, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			sessions = EXCLUDED.sessions,
			cutoff = EXCLUDED.cutoff,
			treatment_effect = EXCLUDED.treatment_effect,
			seed = EXCLUDED.seed,
			bandwidth = EXCLUDED.bandwidth,
			shipping_cost = EXCLUDED.shipping_cost,
			point_estimate = EXCLUDED.point_estimate,
			std_error = EXCLUDED.std_error,
			p_value = EXCLUDED.p_value,
			report = EXCLUDED.report`,
		report.RunID.String(), report.CreatedAt,
		report.Params.Sessions, report.Params.Cutoff, report.Params.TreatmentEffect,
		report.Params.Seed, report.Params.Bandwidth, report.Params.ShippingCost,
		report.Primary.PointEstimate, report.Primary.StandardError, report.Primary.PValue,
		payload)
	if err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM analysis_estimates WHERE run_id = $1`, report.RunID.String())
	if err != nil {
		return fmt.Errorf("clear estimates for run %s: %w", report.RunID, err)
	}

	for _, row := range collectEstimates(report) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analysis_estimates (
				run_id, name, bandwidth, point_estimate, std_error,
				ci_lower, ci_upper, p_value, sample_size
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			report.RunID.String(), row.Name, row.Result.Bandwidth,
			row.Result.PointEstimate, row.Result.StandardError,
			row.Result.CILower, row.Result.CIUpper,
			row.Result.PValue, row.Result.SampleSize)
		if err != nil {
			return fmt.Errorf("save estimate %q for run %s: %w", row.Name, report.RunID, err)
		}
	}

	return tx.Commit()
}

// GetReport retrieves a persisted report by run ID
func (r *AnalysisRepositoryImpl) GetReport(ctx context.Context, id core.RunID) (*rdd.AnalysisReport, error) {
	if id == "" {
		return nil, core.NewParameterError("run_id", "must not be empty")
	}

	var payload []byte
	err := r.db.GetContext(ctx, &payload,
		`SELECT report FROM analysis_runs WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("analysis run", id.String())
		}
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	var report rdd.AnalysisReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}

	return &report, nil
}

// ListRuns returns run summaries newest first, optionally limited
func (r *AnalysisRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]rdd.RunSummary, error) {
	query := `
		SELECT id, created_at, sessions, cutoff, bandwidth, point_estimate, p_value
		FROM analysis_runs
		ORDER BY created_at DESC
	`

	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	summaries := []rdd.RunSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return summaries, nil
}

type estimateRow struct {
	Name   string
	Result rdd.EstimationResult
}

// collectEstimates flattens the report's regression estimates into named rows.
// Failed sweep points and groups carry no result and are skipped; the matching
// cross-check has a different shape and lives only in the JSONB payload.
func collectEstimates(report *rdd.AnalysisReport) []estimateRow {
	rows := []estimateRow{{Name: "primary", Result: report.Primary}}

	if report.Robustness.BiasCorrected.Corrected.SampleSize > 0 {
		rows = append(rows, estimateRow{Name: "bias_corrected", Result: report.Robustness.BiasCorrected.Corrected})
	}
	for _, pt := range report.Robustness.Sweep {
		if pt.Result == nil {
			continue
		}
		rows = append(rows, estimateRow{Name: "sweep", Result: *pt.Result})
	}
	for _, g := range report.Robustness.ByCategory.Groups {
		if g.Result == nil {
			continue
		}
		rows = append(rows, estimateRow{Name: "category:" + g.Group, Result: *g.Result})
	}
	for _, g := range report.Robustness.ByLoyalty.Groups {
		if g.Result == nil {
			continue
		}
		rows = append(rows, estimateRow{Name: "loyalty:" + g.Group, Result: *g.Result})
	}

	return rows
}
