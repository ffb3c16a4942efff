package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gordd/domain/core"
	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/ports"
)

// MinWindowSample is the smallest window the local regression accepts.
// Below this the fit is too unstable to report.
const MinWindowSample = 20

// Spec describes one discontinuity fit.
type Spec struct {
	RunningVar string
	OutcomeVar string
	Cutoff     float64
	Bandwidth  float64
	Controls   []string
}

// DefaultSpec is the free-shipping fit: completion on cart value.
func DefaultSpec(cutoff, bandwidth float64) Spec {
	return Spec{
		RunningVar: dataset.ColCartValue,
		OutcomeVar: dataset.ColCompleted,
		Cutoff:     cutoff,
		Bandwidth:  bandwidth,
	}
}

// Estimator fits local polynomial regressions around the cutoff through a
// pluggable regression backend. It owns the window filtering, centering and
// design construction; the backend owns the algebra.
type Estimator struct {
	model ports.LinearModel
}

func New(model ports.LinearModel) *Estimator {
	return &Estimator{model: model}
}

// Estimate fits the local linear model
//
//	outcome ~ centered + treated + treated*centered + controls
//
// inside |running - cutoff| <= bandwidth and reports the coefficient on
// treated: the jump in predicted outcome at the cutoff. Rows exactly at the
// cutoff count as treated, matching the sharp >= assignment rule. Inference
// uses the backend's HC1 robust covariance and a normal reference.
func (e *Estimator) Estimate(ds *dataset.Dataset, spec Spec) (rdd.EstimationResult, error) {
	return e.FitDiscontinuity(ds, spec, 1)
}

// FitDiscontinuity generalizes Estimate to local polynomial order 1 or 2.
// Order 2 backs the bias-correction step.
func (e *Estimator) FitDiscontinuity(ds *dataset.Dataset, spec Spec, order int) (rdd.EstimationResult, error) {
	var zero rdd.EstimationResult
	if order != 1 && order != 2 {
		return zero, core.NewParameterError("order", fmt.Sprintf("%d not supported, want 1 or 2", order))
	}
	if ds == nil || ds.Len() == 0 {
		return zero, core.NewParameterError("dataset", "has no rows")
	}
	if spec.Bandwidth <= 0 {
		return zero, core.NewParameterError("bandwidth", fmt.Sprintf("%.2f must be positive", spec.Bandwidth))
	}

	running, err := ds.NumericColumn(spec.RunningVar)
	if err != nil {
		return zero, err
	}
	outcome, err := ds.NumericColumn(spec.OutcomeVar)
	if err != nil {
		return zero, err
	}
	lo, hi := minMax(running)
	if spec.Cutoff < lo || spec.Cutoff > hi {
		return zero, core.NewParameterError("cutoff",
			fmt.Sprintf("%.2f outside observed %s range [%.2f, %.2f]", spec.Cutoff, spec.RunningVar, lo, hi))
	}
	controls := make([][]float64, 0, len(spec.Controls))
	for _, name := range spec.Controls {
		col, err := ds.NumericColumn(name)
		if err != nil {
			return zero, err
		}
		controls = append(controls, col)
	}

	window := dataset.IndicesWithin(running, spec.Cutoff, spec.Bandwidth)
	if len(window) < MinWindowSample {
		return zero, core.NewSampleError("estimation window", len(window), MinWindowSample)
	}

	design, y := buildDesign(window, running, outcome, controls, spec.Cutoff, order)
	fit, err := e.model.Fit(design, y)
	if err != nil {
		return zero, err
	}

	jumpIdx := 1 + order
	estimate := fit.Coefficients[jumpIdx]
	variance := fit.Covariance[jumpIdx][jumpIdx]
	if math.IsNaN(variance) || math.IsInf(variance, 0) || variance <= 0 {
		return zero, core.NewDegeneracyError("treatment coefficient has no usable variance")
	}
	se := math.Sqrt(variance)

	zCrit := distuv.UnitNormal.Quantile(0.975)
	zStat := estimate / se
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(zStat)))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	return rdd.NewEstimationResult(estimate, se, estimate-zCrit*se, estimate+zCrit*se, p, len(window), spec.Bandwidth)
}

// buildDesign assembles the per-call scratch design matrix. The source
// dataset is never touched: centered values, indicators and interactions
// live only here.
func buildDesign(window []int, running, outcome []float64, controls [][]float64, cutoff float64, order int) ([][]float64, []float64) {
	cols := 2 + 2*order + len(controls)
	design := make([][]float64, len(window))
	y := make([]float64, len(window))
	for j, i := range window {
		centered := running[i] - cutoff
		treated := 0.0
		if centered >= 0 {
			treated = 1
		}
		row := make([]float64, 0, cols)
		row = append(row, 1)
		pow := centered
		for d := 0; d < order; d++ {
			row = append(row, pow)
			pow *= centered
		}
		row = append(row, treated)
		pow = centered
		for d := 0; d < order; d++ {
			row = append(row, treated*pow)
			pow *= centered
		}
		for _, c := range controls {
			row = append(row, c[i])
		}
		design[j] = row
		y[j] = outcome[i]
	}
	return design, y
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
