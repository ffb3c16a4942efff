package diagnostics

import (
	"fmt"

	"gordd/domain/core"
	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/internal/estimator"
)

// RunPlacebo re-estimates the discontinuity at a fake cutoff where treatment
// does not actually change. It restricts the data to a single true side of
// the real cutoff, so the estimator sees a synthetic indicator flipping at
// the fake point while real shipping status is constant. A sound design
// finds nothing there.
//
// Errors come only from the underlying estimator (window too small at the
// fake point, degenerate fit); the null judgment itself is in the result.
func RunPlacebo(est *estimator.Estimator, ds *dataset.Dataset, spec estimator.Spec, fakeCutoff float64) (rdd.PlaceboOutcome, error) {
	var zero rdd.PlaceboOutcome
	if ds == nil || ds.Len() == 0 {
		return zero, core.NewParameterError("dataset", "has no rows")
	}
	if fakeCutoff == spec.Cutoff {
		return zero, core.NewParameterError("fake_cutoff", fmt.Sprintf("%.2f equals the real cutoff", fakeCutoff))
	}

	running, err := ds.NumericColumn(spec.RunningVar)
	if err != nil {
		return zero, err
	}

	side := rdd.PlaceboBelow
	var rows []int
	if fakeCutoff < spec.Cutoff {
		for i, v := range running {
			if v < spec.Cutoff {
				rows = append(rows, i)
			}
		}
	} else {
		side = rdd.PlaceboAbove
		for i, v := range running {
			if v >= spec.Cutoff {
				rows = append(rows, i)
			}
		}
	}
	if len(rows) == 0 {
		return zero, core.NewSampleError("placebo side", 0, estimator.MinWindowSample)
	}

	sub := ds.Select(rows)
	placeboSpec := spec
	placeboSpec.Cutoff = fakeCutoff

	res, err := est.Estimate(sub, placeboSpec)
	if err != nil {
		return zero, err
	}
	return rdd.PlaceboOutcome{
		FakeCutoff:   fakeCutoff,
		Side:         side,
		Result:       res,
		NullRetained: res.ContainsZero(),
	}, nil
}
