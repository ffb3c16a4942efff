package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gordd/domain/dataset"
	"gordd/domain/rdd"
)

// DefaultDensityBin is the width of each bin flanking the cutoff.
const DefaultDensityBin = 5.0

// Bunching is flagged when the bin count ratio leaves these bounds.
const (
	densityRatioLow  = 0.5
	densityRatioHigh = 2.0
)

// CheckManipulation compares session counts in the two bins flanking the
// cutoff: [cutoff-bin, cutoff) and [cutoff, cutoff+bin). If customers could
// nudge carts across the threshold the right bin would bulge. Diagnostic
// only: it reports a judgment, it never blocks estimation.
func CheckManipulation(ds *dataset.Dataset, cutoff, binWidth float64) rdd.DensityCheck {
	check := rdd.DensityCheck{Cutoff: cutoff, BinWidth: binWidth}
	if ds == nil || ds.Len() == 0 || binWidth <= 0 {
		check.Note = "not evaluated: empty dataset or non-positive bin width"
		return check
	}

	left, right := 0, 0
	for _, v := range ds.CartValue {
		if v >= cutoff-binWidth && v < cutoff {
			left++
		} else if v >= cutoff && v < cutoff+binWidth {
			right++
		}
	}
	check.LeftCount = left
	check.RightCount = right
	if left == 0 || right == 0 {
		check.Note = "a flanking bin is empty; density comparison not informative"
		return check
	}

	check.Ratio = float64(right) / float64(left)

	// Two-sided binomial test against an even split, normal approximation.
	n := float64(left + right)
	z := (float64(right) - n/2) / math.Sqrt(n/4)
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	if p > 1 {
		p = 1
	}
	check.PValue = p

	check.Passed = check.Ratio >= densityRatioLow && check.Ratio <= densityRatioHigh
	if !check.Passed {
		check.Note = fmt.Sprintf("bin counts %d vs %d depart strongly from parity", left, right)
	}
	return check
}
