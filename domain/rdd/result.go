package rdd

import (
	"fmt"
	"math"
	"time"

	"gordd/domain/core"
)

// EstimationResult is the output of one discontinuity fit. Immutable value
// object: every estimator call produces a fresh one.
type EstimationResult struct {
	PointEstimate float64 `json:"point_estimate"`
	StandardError float64 `json:"standard_error"`
	CILower       float64 `json:"ci_lower"`
	CIUpper       float64 `json:"ci_upper"`
	PValue        float64 `json:"p_value"`
	SampleSize    int     `json:"sample_size"`
	Bandwidth     float64 `json:"bandwidth"`
}

// NewEstimationResult validates the canonical fields at construction so an
// invalid result can never circulate.
func NewEstimationResult(estimate, se, ciLower, ciUpper, pValue float64, sampleSize int, bandwidth float64) (EstimationResult, error) {
	if !isFinite(estimate) || !isFinite(se) || !isFinite(ciLower) || !isFinite(ciUpper) {
		return EstimationResult{}, core.NewDegeneracyError("non-finite estimate fields")
	}
	if se < 0 {
		return EstimationResult{}, core.NewParameterError("standard_error", "must be non-negative")
	}
	if pValue < 0 || pValue > 1 {
		return EstimationResult{}, core.NewParameterError("p_value", fmt.Sprintf("%.6f outside [0, 1]", pValue))
	}
	if sampleSize <= 0 {
		return EstimationResult{}, core.NewParameterError("sample_size", "must be positive")
	}
	if bandwidth <= 0 {
		return EstimationResult{}, core.NewParameterError("bandwidth", "must be positive")
	}
	if ciLower > ciUpper {
		return EstimationResult{}, core.NewParameterError("confidence_interval", "lower bound above upper bound")
	}
	return EstimationResult{
		PointEstimate: estimate,
		StandardError: se,
		CILower:       ciLower,
		CIUpper:       ciUpper,
		PValue:        pValue,
		SampleSize:    sampleSize,
		Bandwidth:     bandwidth,
	}, nil
}

// Significant reports whether the effect is distinguishable from zero at the
// given level.
func (r EstimationResult) Significant(alpha float64) bool {
	return r.PValue < alpha
}

// ContainsZero reports whether the confidence interval covers zero.
func (r EstimationResult) ContainsZero() bool {
	return r.CILower <= 0 && r.CIUpper >= 0
}

// RunSummary is the listing view of a persisted analysis run.
type RunSummary struct {
	RunID         core.RunID `json:"run_id" db:"id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	Sessions      int        `json:"sessions" db:"sessions"`
	Cutoff        float64    `json:"cutoff" db:"cutoff"`
	Bandwidth     float64    `json:"bandwidth" db:"bandwidth"`
	PointEstimate float64    `json:"point_estimate" db:"point_estimate"`
	PValue        float64    `json:"p_value" db:"p_value"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
