package rdd

import (
	"time"

	"gordd/domain/core"
)

// AnalysisParams are the inputs a run was produced from.
type AnalysisParams struct {
	Sessions        int     `json:"sessions"`
	Cutoff          float64 `json:"cutoff"`
	TreatmentEffect float64 `json:"treatment_effect"`
	Seed            int64   `json:"seed"`
	Bandwidth       float64 `json:"bandwidth"`
	ShippingCost    float64 `json:"shipping_cost"`
}

// DataSummary describes the dataset a run analyzed.
type DataSummary struct {
	Rows              int     `json:"rows"`
	TreatedShare      float64 `json:"treated_share"`
	CompletionTreated float64 `json:"completion_treated"`
	CompletionControl float64 `json:"completion_control"`
	CartMean          float64 `json:"cart_mean"`
	CartMedian        float64 `json:"cart_median"`
	CartP90           float64 `json:"cart_p90"`
	WindowRows        int     `json:"window_rows"`
}

// DiagnosticsBlock bundles the assumption validators' outputs.
type DiagnosticsBlock struct {
	Density  DensityCheck     `json:"density"`
	Balance  BalanceReport    `json:"balance"`
	Placebos []PlaceboOutcome `json:"placebos"`
}

// RobustnessBlock bundles the robustness suite's outputs. Matching records a
// failure string instead of aborting the run, same as sweep points.
type RobustnessBlock struct {
	Sweep         []SweepPoint        `json:"sweep"`
	Optimal       BandwidthSelection  `json:"optimal_bandwidth"`
	BiasCorrected BiasCorrected       `json:"bias_corrected"`
	ByCategory    HeterogeneityResult `json:"by_category"`
	ByLoyalty     HeterogeneityResult `json:"by_loyalty"`
	Matching      *MatchingResult     `json:"matching,omitempty"`
	MatchingErr   string              `json:"matching_error,omitempty"`
}

// AnalysisReport is the complete output of one run: primary estimate,
// diagnostics, robustness battery and business projection.
type AnalysisReport struct {
	RunID       core.RunID       `json:"run_id"`
	CreatedAt   time.Time        `json:"created_at"`
	Params      AnalysisParams   `json:"params"`
	Data        DataSummary      `json:"data"`
	Primary     EstimationResult `json:"primary"`
	Naive       NaiveComparison  `json:"naive"`
	Diagnostics DiagnosticsBlock `json:"diagnostics"`
	Robustness  RobustnessBlock  `json:"robustness"`
	Impact      ImpactProjection `json:"impact"`
}

// Summary projects the report down to its listing view.
func (r *AnalysisReport) Summary() RunSummary {
	return RunSummary{
		RunID:         r.RunID,
		CreatedAt:     r.CreatedAt,
		Sessions:      r.Params.Sessions,
		Cutoff:        r.Params.Cutoff,
		Bandwidth:     r.Params.Bandwidth,
		PointEstimate: r.Primary.PointEstimate,
		PValue:        r.Primary.PValue,
	}
}
