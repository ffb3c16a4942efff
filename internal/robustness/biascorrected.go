package robustness

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/internal/estimator"
)

// pilotFactor widens the window for the quadratic pilot fit, which needs more
// data than the linear fit to pin down curvature.
const pilotFactor = 1.5

// BiasCorrected pairs the conventional local linear estimate with a
// bias-corrected one. A local quadratic on a wider pilot window supplies the
// curvature-adjusted jump; its interval uses a robust standard error that pays
// for the correction step. Conventional minus corrected is the estimated bias.
func BiasCorrected(est *estimator.Estimator, ds *dataset.Dataset, spec estimator.Spec) (rdd.BiasCorrected, error) {
	var zero rdd.BiasCorrected
	conventional, err := est.Estimate(ds, spec)
	if err != nil {
		return zero, err
	}
	pilotSpec := spec
	pilotSpec.Bandwidth = spec.Bandwidth * pilotFactor
	quadratic, err := est.FitDiscontinuity(ds, pilotSpec, 2)
	if err != nil {
		return zero, err
	}

	se := math.Hypot(conventional.StandardError, quadratic.StandardError)
	zCrit := distuv.UnitNormal.Quantile(0.975)
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(quadratic.PointEstimate/se)))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	corrected, err := rdd.NewEstimationResult(
		quadratic.PointEstimate, se,
		quadratic.PointEstimate-zCrit*se, quadratic.PointEstimate+zCrit*se,
		p, quadratic.SampleSize, pilotSpec.Bandwidth)
	if err != nil {
		return zero, err
	}
	return rdd.BiasCorrected{
		Conventional:   conventional,
		Corrected:      corrected,
		Bias:           conventional.PointEstimate - quadratic.PointEstimate,
		PilotBandwidth: pilotSpec.Bandwidth,
	}, nil
}
