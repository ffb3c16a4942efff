package robustness

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gordd/domain/core"
	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/ports"
)

const (
	logitMaxIter = 25
	logitTol     = 1e-8

	// matchTrimPercent sets the caliper at a percentile of the nearest-match
	// propensity distances, trimming the loosest matches.
	matchTrimPercent = 90.0
)

// MinMatchedPairs is the smallest matched sample the cross-check reports on.
const MinMatchedPairs = 20

// DefaultMatchCovariates are the pre-treatment covariates the propensity model
// conditions on.
func DefaultMatchCovariates() []string {
	return []string{dataset.ColTenureDays, dataset.ColPreviousPurchases, dataset.ColItemsInCart}
}

// MatchingEstimate cross-checks the discontinuity estimate with one-to-one
// propensity-score matching: a logistic propensity on standardized covariates,
// nearest-neighbor matching with replacement under a percentile caliper, and a
// matched-pair difference in means. Matching cannot condition on the cart
// value itself, so on this data it inherits the selection bias the local
// comparison removes; it is reported for contrast, not as the primary answer.
// Deterministic: with-replacement matching has no order dependence.
func MatchingEstimate(model ports.LinearModel, ds *dataset.Dataset, covariates []string) (rdd.MatchingResult, error) {
	var zero rdd.MatchingResult
	if ds == nil || ds.Len() == 0 {
		return zero, core.NewParameterError("dataset", "has no rows")
	}
	if len(covariates) == 0 {
		covariates = DefaultMatchCovariates()
	}

	cols := make([][]float64, 0, len(covariates))
	for _, name := range covariates {
		col, err := ds.NumericColumn(name)
		if err != nil {
			return zero, err
		}
		std, ok := standardize(col)
		if !ok {
			continue // constant covariate carries no information
		}
		cols = append(cols, std)
	}
	if len(cols) == 0 {
		return zero, core.NewDegeneracyError("every matching covariate is constant")
	}

	n := ds.Len()
	design := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, 1+len(cols))
		row = append(row, 1)
		for _, c := range cols {
			row = append(row, c[i])
		}
		design[i] = row
	}
	logit, err := fitLogit(model, design, ds.Treatment)
	if err != nil {
		return zero, err
	}

	var treated, control []int
	for i := range ds.Treatment {
		if ds.Treatment[i] == 1 {
			treated = append(treated, i)
		} else {
			control = append(control, i)
		}
	}
	if len(treated) == 0 || len(control) == 0 {
		return zero, core.NewSampleError("matching pool", 0, 1)
	}

	bestDist := make([]float64, len(treated))
	bestIdx := make([]int, len(treated))
	for j, t := range treated {
		best, dist := -1, math.Inf(1)
		for _, c := range control {
			if d := math.Abs(logit[t] - logit[c]); d < dist {
				dist = d
				best = c
			}
		}
		bestDist[j] = dist
		bestIdx[j] = best
	}
	caliper, err := stats.Percentile(bestDist, matchTrimPercent)
	if err != nil {
		return zero, core.NewDegeneracyError("caliper: " + err.Error())
	}

	diffs := make([]float64, 0, len(treated))
	dropped := 0
	for j, t := range treated {
		if bestDist[j] > caliper {
			dropped++
			continue
		}
		diffs = append(diffs, ds.Completed[t]-ds.Completed[bestIdx[j]])
	}
	if len(diffs) < MinMatchedPairs {
		return zero, core.NewSampleError("matched pairs", len(diffs), MinMatchedPairs)
	}

	mean, err := stats.Mean(diffs)
	if err != nil {
		return zero, core.NewDegeneracyError("matched differences: " + err.Error())
	}
	sd, err := stats.StandardDeviationSample(diffs)
	if err != nil {
		return zero, core.NewDegeneracyError("matched differences: " + err.Error())
	}
	se := sd / math.Sqrt(float64(len(diffs)))
	zCrit := distuv.UnitNormal.Quantile(0.975)
	return rdd.MatchingResult{
		PointEstimate:  mean,
		StandardError:  se,
		CILower:        mean - zCrit*se,
		CIUpper:        mean + zCrit*se,
		MatchedPairs:   len(diffs),
		DroppedTreated: dropped,
		Caliper:        caliper,
	}, nil
}

// fitLogit runs iteratively reweighted least squares for a logistic regression
// and returns the fitted propensity logit per row. Each IRLS step is a
// weighted least squares solve expressed by sqrt-weight row scaling, so the
// plain regression backend does the algebra.
func fitLogit(model ports.LinearModel, design [][]float64, target []float64) ([]float64, error) {
	n := len(design)
	k := len(design[0])
	beta := make([]float64, k)
	scaled := make([][]float64, n)
	for i := range scaled {
		scaled[i] = make([]float64, k)
	}
	work := make([]float64, n)

	for iter := 0; iter < logitMaxIter; iter++ {
		for i, row := range design {
			eta := 0.0
			for j, v := range row {
				eta += beta[j] * v
			}
			if eta > 30 {
				eta = 30
			}
			if eta < -30 {
				eta = -30
			}
			p := 1 / (1 + math.Exp(-eta))
			w := p * (1 - p)
			if w < 1e-6 {
				w = 1e-6
			}
			sw := math.Sqrt(w)
			for j, v := range row {
				scaled[i][j] = sw * v
			}
			work[i] = sw * (eta + (target[i]-p)/w)
		}
		fit, err := model.Fit(scaled, work)
		if err != nil {
			return nil, err
		}
		delta := 0.0
		for j, b := range fit.Coefficients {
			if d := math.Abs(b - beta[j]); d > delta {
				delta = d
			}
			beta[j] = b
		}
		if delta < logitTol {
			break
		}
	}

	logit := make([]float64, n)
	for i, row := range design {
		eta := 0.0
		for j, v := range row {
			eta += beta[j] * v
		}
		logit[i] = eta
	}
	return logit, nil
}

func standardize(col []float64) ([]float64, bool) {
	mean, err := stats.Mean(col)
	if err != nil {
		return nil, false
	}
	sd, err := stats.StandardDeviationSample(col)
	if err != nil || sd == 0 {
		return nil, false
	}
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = (v - mean) / sd
	}
	return out, true
}
