package robustness

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/internal/estimator"
)

// maxConcurrentFits bounds the fan-out of parallel re-estimations. The fits
// are CPU-bound; a small pool keeps the sweep fast without starving the rest
// of the process.
const maxConcurrentFits = 4

// Sweep re-estimates the discontinuity at each bandwidth. Points come back in
// input order; a failed fit records its error on the point and the sweep
// carries on. The dataset is shared read-only across the workers, every fit
// builds its own window scratch.
func Sweep(ctx context.Context, est *estimator.Estimator, ds *dataset.Dataset, spec estimator.Spec, bandwidths []float64) []rdd.SweepPoint {
	points := make([]rdd.SweepPoint, len(bandwidths))
	sem := semaphore.NewWeighted(maxConcurrentFits)
	var wg sync.WaitGroup
	for i, bw := range bandwidths {
		points[i].Bandwidth = bw
		if err := sem.Acquire(ctx, 1); err != nil {
			points[i].Err = err.Error()
			continue
		}
		wg.Add(1)
		go func(i int, bw float64) {
			defer wg.Done()
			defer sem.Release(1)
			s := spec
			s.Bandwidth = bw
			res, err := est.Estimate(ds, s)
			if err != nil {
				points[i].Err = err.Error()
				return
			}
			points[i].Result = &res
		}(i, bw)
	}
	wg.Wait()
	return points
}
