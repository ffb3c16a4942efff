package robustness

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"gordd/domain/core"
	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/internal/estimator"
)

// MinGroupRows is the smallest within-window group worth re-estimating.
// Smaller groups record a sample error instead of an unstable fit.
const MinGroupRows = 50

// GroupFn labels a session for heterogeneity analysis. An empty label drops
// the row from every group.
type GroupFn func(ds *dataset.Dataset, i int) string

// ByColumn groups by a categorical column.
func ByColumn(name string) GroupFn {
	return func(ds *dataset.Dataset, i int) string {
		col, err := ds.LabelColumn(name)
		if err != nil {
			return ""
		}
		return col[i]
	}
}

// ByLoyaltyTier groups by purchase-history tier.
func ByLoyaltyTier() GroupFn {
	return func(ds *dataset.Dataset, i int) string {
		return ds.LoyaltyTier(i)
	}
}

// ByGroup re-estimates the discontinuity independently per group, in sorted
// label order. Partial failure is the contract: a group too small for a stable
// fit records its error and the other groups still report. Group fits run
// concurrently on row-subset copies of the dataset.
func ByGroup(ctx context.Context, est *estimator.Estimator, ds *dataset.Dataset, spec estimator.Spec, groupBy string, fn GroupFn) rdd.HeterogeneityResult {
	out := rdd.HeterogeneityResult{GroupBy: groupBy}
	if ds == nil || ds.Len() == 0 || fn == nil {
		return out
	}

	rows := make(map[string][]int)
	for i := 0; i < ds.Len(); i++ {
		label := fn(ds, i)
		if label == "" {
			continue
		}
		rows[label] = append(rows[label], i)
	}
	labels := make([]string, 0, len(rows))
	for label := range rows {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out.Groups = make([]rdd.GroupEffect, len(labels))
	sem := semaphore.NewWeighted(maxConcurrentFits)
	var wg sync.WaitGroup
	for gi, label := range labels {
		out.Groups[gi] = rdd.GroupEffect{Group: label, Rows: len(rows[label])}
		if err := sem.Acquire(ctx, 1); err != nil {
			out.Groups[gi].Err = err.Error()
			continue
		}
		wg.Add(1)
		go func(group *rdd.GroupEffect, idx []int) {
			defer wg.Done()
			defer sem.Release(1)
			sub := ds.Select(idx)
			running, err := sub.NumericColumn(spec.RunningVar)
			if err != nil {
				group.Err = err.Error()
				return
			}
			window := dataset.IndicesWithin(running, spec.Cutoff, spec.Bandwidth)
			if len(window) < MinGroupRows {
				group.Err = core.NewSampleError("group window", len(window), MinGroupRows).Error()
				return
			}
			res, err := est.Estimate(sub, spec)
			if err != nil {
				group.Err = err.Error()
				return
			}
			group.Result = &res
		}(&out.Groups[gi], rows[label])
	}
	wg.Wait()
	return out
}
