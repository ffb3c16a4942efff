package robustness

import (
	"gordd/domain/dataset"
	"gordd/domain/rdd"
)

// NaiveDifference computes the all-data difference in completion rates between
// treated and control sessions. It is what a dashboard average would show, and
// it is confounded: big carts complete more often regardless of shipping.
// Reported next to the discontinuity estimate to size that selection bias.
func NaiveDifference(ds *dataset.Dataset) rdd.NaiveComparison {
	var cmp rdd.NaiveComparison
	if ds == nil || ds.Len() == 0 {
		return cmp
	}
	var treatedSum, controlSum float64
	for i := range ds.Treatment {
		if ds.Treatment[i] == 1 {
			cmp.TreatedCount++
			treatedSum += ds.Completed[i]
		} else {
			cmp.ControlCount++
			controlSum += ds.Completed[i]
		}
	}
	if cmp.TreatedCount > 0 {
		cmp.TreatedRate = treatedSum / float64(cmp.TreatedCount)
	}
	if cmp.ControlCount > 0 {
		cmp.ControlRate = controlSum / float64(cmp.ControlCount)
	}
	cmp.Difference = cmp.TreatedRate - cmp.ControlRate
	return cmp
}
