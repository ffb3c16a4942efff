package robustness

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"gordd/adapters/regression"
	"gordd/domain/core"
	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/internal/estimator"
	"gordd/internal/simdata"
)

func newTestEstimator() *estimator.Estimator {
	return estimator.New(regression.NewOLS())
}

func generated(t *testing.T, seed int64, sessions int) *dataset.Dataset {
	t.Helper()
	cfg := simdata.DefaultConfig()
	cfg.Seed = seed
	cfg.Sessions = sessions
	ds, err := simdata.Generate(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return ds
}

// jumpData lays carts on an even 0.25 grid over [30, 70] with a completion
// jump at 50 and within-side variation so robust variances stay positive.
func jumpData() *dataset.Dataset {
	n := 161
	ds := dataset.New(n)
	for i := 0; i < n; i++ {
		ds.SessionID[i] = int64(i + 1)
		ds.CartValue[i] = 30 + 0.25*float64(i)
		base := 0.0
		if ds.CartValue[i] >= 50 {
			ds.Treatment[i] = 1
			base = 1
		}
		y := base
		if i%5 == 0 {
			y = 1 - base
		}
		ds.Completed[i] = y
		ds.TenureDays[i] = 50 + float64(i%13)
		ds.PreviousPurchases[i] = float64(i % 5)
		ds.ItemsInCart[i] = 1 + float64(i%4)
	}
	return ds
}

func TestSweep_PreservesOrderWithMonotoneSamples(t *testing.T) {
	ds := generated(t, 14, 10000)
	est := newTestEstimator()
	bws := []float64{5, 10, 15, 20, 25, 30}

	points := Sweep(context.Background(), est, ds, estimator.DefaultSpec(50, 0), bws)
	if len(points) != len(bws) {
		t.Fatalf("got %d points, want %d", len(points), len(bws))
	}
	prev := 0
	for i, pt := range points {
		if pt.Bandwidth != bws[i] {
			t.Errorf("point %d bandwidth = %v, want %v", i, pt.Bandwidth, bws[i])
		}
		if pt.Err != "" || pt.Result == nil {
			t.Fatalf("point %d failed: %q", i, pt.Err)
		}
		if pt.Result.Bandwidth != bws[i] {
			t.Errorf("point %d result bandwidth = %v, want %v", i, pt.Result.Bandwidth, bws[i])
		}
		if pt.Result.SampleSize < prev {
			t.Errorf("sample size shrank at bandwidth %v: %d < %d", pt.Bandwidth, pt.Result.SampleSize, prev)
		}
		prev = pt.Result.SampleSize
	}
}

func TestSweep_RecordsFailurePerPoint(t *testing.T) {
	points := Sweep(context.Background(), newTestEstimator(), jumpData(), estimator.DefaultSpec(50, 0), []float64{0.1, 15})
	if points[0].Err == "" || points[0].Result != nil {
		t.Errorf("slim window should fail: %+v", points[0])
	}
	if points[1].Err != "" || points[1].Result == nil {
		t.Errorf("wide window should fit: %+v", points[1])
	}
}

func TestSweep_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	points := Sweep(ctx, newTestEstimator(), jumpData(), estimator.DefaultSpec(50, 0), []float64{10, 20})
	for i, pt := range points {
		if pt.Err == "" || pt.Result != nil {
			t.Errorf("point %d ran despite canceled context: %+v", i, pt)
		}
	}
}

func TestNaiveDifference_Rates(t *testing.T) {
	ds := dataset.New(10)
	for i := 0; i < 10; i++ {
		if i < 4 {
			ds.Treatment[i] = 1
			if i < 3 {
				ds.Completed[i] = 1
			}
		} else if i < 6 {
			ds.Completed[i] = 1
		}
	}
	cmp := NaiveDifference(ds)
	if cmp.TreatedCount != 4 || cmp.ControlCount != 6 {
		t.Fatalf("counts = %d/%d, want 4/6", cmp.TreatedCount, cmp.ControlCount)
	}
	if math.Abs(cmp.TreatedRate-0.75) > 1e-12 {
		t.Errorf("treated rate = %v, want 0.75", cmp.TreatedRate)
	}
	if math.Abs(cmp.ControlRate-1.0/3) > 1e-12 {
		t.Errorf("control rate = %v, want 1/3", cmp.ControlRate)
	}
	if math.Abs(cmp.Difference-(0.75-1.0/3)) > 1e-12 {
		t.Errorf("difference = %v", cmp.Difference)
	}

	if got := NaiveDifference(nil); got != (rdd.NaiveComparison{}) {
		t.Errorf("nil dataset should yield the zero comparison, got %+v", got)
	}
}

func TestNaiveDifference_OverstatesGeneratedEffect(t *testing.T) {
	ds := generated(t, 14, 10000)
	cmp := NaiveDifference(ds)
	if cmp.TreatedCount+cmp.ControlCount != 10000 {
		t.Fatalf("counts %d+%d do not cover the data", cmp.TreatedCount, cmp.ControlCount)
	}
	// Big carts complete more often regardless of shipping, so the naive read
	// lands well above the 0.08 baked into the generator.
	if cmp.Difference < 0.10 || cmp.Difference > 0.18 {
		t.Errorf("naive difference = %v, want selection-inflated value in [0.10, 0.18]", cmp.Difference)
	}
}

func TestSelectBandwidth_ReferenceScenario(t *testing.T) {
	ds := generated(t, 14, 10000)
	spec := estimator.DefaultSpec(50, 0)

	sel, err := SelectBandwidth(regression.NewOLS(), ds, spec)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Bandwidth < MinBandwidth || sel.Bandwidth > MaxBandwidth {
		t.Errorf("bandwidth = %v outside [%v, %v]", sel.Bandwidth, MinBandwidth, MaxBandwidth)
	}
	if sel.PilotBandwidth <= 0 || sel.PilotBandwidth > 20 {
		t.Errorf("pilot bandwidth = %v, want a modest positive window", sel.PilotBandwidth)
	}
	if sel.DensityAtCutoff <= 0 {
		t.Errorf("density = %v, want positive", sel.DensityAtCutoff)
	}
	if sel.VarianceAtCutoff <= 0 || sel.VarianceAtCutoff > 0.5 {
		t.Errorf("variance = %v, want binary-outcome scale", sel.VarianceAtCutoff)
	}
	if sel.Regularization <= 0 {
		t.Errorf("regularization = %v, want positive", sel.Regularization)
	}

	again, err := SelectBandwidth(regression.NewOLS(), ds, spec)
	if err != nil {
		t.Fatalf("second select: %v", err)
	}
	if sel != again {
		t.Errorf("selection not deterministic: %+v vs %+v", sel, again)
	}
}

func TestSelectBandwidth_Errors(t *testing.T) {
	model := regression.NewOLS()
	spec := estimator.DefaultSpec(50, 0)

	if _, err := SelectBandwidth(model, nil, spec); !core.IsParameterError(err) {
		t.Errorf("nil dataset: got %v, want parameter error", err)
	}

	tiny := dataset.New(12)
	for i := 0; i < 6; i++ {
		tiny.CartValue[i] = 44 + 0.5*float64(i)
		tiny.CartValue[i+6] = 54 + 0.5*float64(i)
		tiny.Treatment[i+6] = 1
		tiny.Completed[i] = float64(i % 2)
		tiny.Completed[i+6] = float64((i + 1) % 2)
	}
	if _, err := SelectBandwidth(model, tiny, spec); !core.IsSampleError(err) {
		t.Errorf("sparse pilot window: got %v, want sample error", err)
	}

	flat := jumpData()
	for i := range flat.Completed {
		flat.Completed[i] = 0
	}
	if _, err := SelectBandwidth(model, flat, spec); !core.IsDegeneracyError(err) {
		t.Errorf("constant outcome: got %v, want degeneracy error", err)
	}
}

func TestBiasCorrected_ExposesBothEstimates(t *testing.T) {
	ds := generated(t, 14, 10000)
	est := newTestEstimator()
	spec := estimator.DefaultSpec(50, 20)

	bc, err := BiasCorrected(est, ds, spec)
	if err != nil {
		t.Fatalf("bias corrected: %v", err)
	}
	if bc.Conventional.Bandwidth != 20 {
		t.Errorf("conventional bandwidth = %v, want 20", bc.Conventional.Bandwidth)
	}
	if bc.PilotBandwidth != 30 || bc.Corrected.Bandwidth != 30 {
		t.Errorf("pilot bandwidth = %v / %v, want 30", bc.PilotBandwidth, bc.Corrected.Bandwidth)
	}
	if bc.Corrected.SampleSize < bc.Conventional.SampleSize {
		t.Errorf("pilot window smaller than main window: %d < %d", bc.Corrected.SampleSize, bc.Conventional.SampleSize)
	}
	if bc.Corrected.StandardError < bc.Conventional.StandardError {
		t.Errorf("robust se %v below conventional %v", bc.Corrected.StandardError, bc.Conventional.StandardError)
	}
	if got := bc.Conventional.PointEstimate - bc.Corrected.PointEstimate; got != bc.Bias {
		t.Errorf("bias = %v, want conventional-corrected = %v", bc.Bias, got)
	}
	if math.Abs(bc.Corrected.PointEstimate-0.08) > 0.11 {
		t.Errorf("corrected estimate = %v, want near the generated 0.08", bc.Corrected.PointEstimate)
	}
}

func TestBiasCorrected_PropagatesFitErrors(t *testing.T) {
	_, err := BiasCorrected(newTestEstimator(), jumpData(), estimator.DefaultSpec(50, 0.1))
	if !core.IsSampleError(err) {
		t.Errorf("got %v, want sample error from the slim window", err)
	}
}

func TestByGroup_LoyaltyTiers(t *testing.T) {
	ds := generated(t, 14, 10000)
	est := newTestEstimator()

	res := ByGroup(context.Background(), est, ds, estimator.DefaultSpec(50, 20), "loyalty_tier", ByLoyaltyTier())
	if res.GroupBy != "loyalty_tier" {
		t.Errorf("group by = %q", res.GroupBy)
	}
	if len(res.Groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(res.Groups))
	}
	wantOrder := []string{"Loyal", "New", "Occasional"}
	rows := 0
	for i, g := range res.Groups {
		if g.Group != wantOrder[i] {
			t.Errorf("group %d = %q, want %q", i, g.Group, wantOrder[i])
		}
		if g.Err != "" || g.Result == nil {
			t.Fatalf("group %q failed: %q", g.Group, g.Err)
		}
		if g.Result.PValue < 0 || g.Result.PValue > 1 {
			t.Errorf("group %q p-value = %v", g.Group, g.Result.PValue)
		}
		if g.Result.SampleSize < MinGroupRows {
			t.Errorf("group %q window %d below minimum", g.Group, g.Result.SampleSize)
		}
		rows += g.Rows
	}
	if rows != 10000 {
		t.Errorf("group rows sum to %d, want 10000", rows)
	}
}

func TestByGroup_SmallGroupRecordsError(t *testing.T) {
	cfg := simdata.DefaultConfig()
	cfg.Seed = 5
	cfg.Sessions = 1500
	cfg.CategoryWeights = map[string]float64{"Electronics": 0.97, "Fashion": 0.03}
	ds, err := simdata.Generate(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	res := ByGroup(context.Background(), newTestEstimator(), ds,
		estimator.DefaultSpec(50, 20), dataset.ColProductCategory, ByColumn(dataset.ColProductCategory))
	if len(res.Groups) != 2 {
		t.Fatalf("got %d groups, want 2: %+v", len(res.Groups), res.Groups)
	}
	electronics, fashion := res.Groups[0], res.Groups[1]
	if electronics.Group != "Electronics" || fashion.Group != "Fashion" {
		t.Fatalf("unexpected group order: %q, %q", electronics.Group, fashion.Group)
	}
	if electronics.Err != "" || electronics.Result == nil {
		t.Errorf("dominant group failed: %q", electronics.Err)
	}
	if fashion.Err == "" || fashion.Result != nil {
		t.Errorf("tiny group should record its error, got %+v", fashion)
	}
	if electronics.Rows+fashion.Rows != 1500 {
		t.Errorf("rows %d+%d do not cover the data", electronics.Rows, fashion.Rows)
	}
}

func TestByGroup_NilDataset(t *testing.T) {
	res := ByGroup(context.Background(), newTestEstimator(), nil, estimator.DefaultSpec(50, 20), "x", ByLoyaltyTier())
	if res.GroupBy != "x" || len(res.Groups) != 0 {
		t.Errorf("nil dataset should yield no groups: %+v", res)
	}
}

// matchData assigns treatment by cart value but makes completion depend only
// on covariates and treatment, so matching on covariates recovers the effect.
func matchData(n int, seed int64) *dataset.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := dataset.New(n)
	for i := 0; i < n; i++ {
		ds.SessionID[i] = int64(i + 1)
		ds.TenureDays[i] = float64(rng.Intn(700) + 30)
		ds.PreviousPurchases[i] = float64(rng.Intn(6))
		ds.ItemsInCart[i] = float64(rng.Intn(5) + 1)
		ds.CartValue[i] = 5 + 195*rng.Float64()
		if ds.CartValue[i] >= 50 {
			ds.Treatment[i] = 1
		}
		p := 0.25 + 0.04*ds.ItemsInCart[i] + 0.01*ds.PreviousPurchases[i]
		if ds.Treatment[i] == 1 {
			p += 0.15
		}
		if rng.Float64() < p {
			ds.Completed[i] = 1
		}
	}
	return ds
}

func TestMatchingEstimate_RecoversCovariateOnlyEffect(t *testing.T) {
	ds := matchData(3000, 11)
	m, err := MatchingEstimate(regression.NewOLS(), ds, nil)
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if math.Abs(m.PointEstimate-0.15) > 0.06 {
		t.Errorf("estimate = %v, want near 0.15", m.PointEstimate)
	}
	if m.MatchedPairs < 1500 {
		t.Errorf("matched pairs = %d, want most treated rows matched", m.MatchedPairs)
	}
	if m.Caliper <= 0 {
		t.Errorf("caliper = %v, want positive", m.Caliper)
	}
	if m.StandardError <= 0 {
		t.Errorf("standard error = %v", m.StandardError)
	}
	if m.CILower > m.PointEstimate || m.CIUpper < m.PointEstimate {
		t.Errorf("interval [%v, %v] does not bracket %v", m.CILower, m.CIUpper, m.PointEstimate)
	}
}

func TestMatchingEstimate_GeneratedDataInheritsSelectionBias(t *testing.T) {
	ds := generated(t, 14, 10000)
	m, err := MatchingEstimate(regression.NewOLS(), ds, DefaultMatchCovariates())
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	// The propensity model cannot condition on cart value, so the matched
	// comparison keeps the cart-driven completion gap on top of the 0.08.
	if m.PointEstimate < 0.09 || m.PointEstimate > 0.20 {
		t.Errorf("estimate = %v, want selection-inflated value in [0.09, 0.20]", m.PointEstimate)
	}
	if m.MatchedPairs < 3000 {
		t.Errorf("matched pairs = %d", m.MatchedPairs)
	}
	if m.DroppedTreated <= 0 {
		t.Errorf("expected the caliper to trim some matches, dropped = %d", m.DroppedTreated)
	}
}

func TestMatchingEstimate_Errors(t *testing.T) {
	model := regression.NewOLS()

	if _, err := MatchingEstimate(model, nil, nil); !core.IsParameterError(err) {
		t.Errorf("nil dataset: got %v, want parameter error", err)
	}
	if _, err := MatchingEstimate(model, jumpData(), []string{"no_such_column"}); !core.IsParameterError(err) {
		t.Errorf("unknown covariate: got %v, want parameter error", err)
	}

	constant := jumpData()
	for i := range constant.TenureDays {
		constant.TenureDays[i] = 7
	}
	if _, err := MatchingEstimate(model, constant, []string{dataset.ColTenureDays}); !core.IsDegeneracyError(err) {
		t.Errorf("constant covariate: got %v, want degeneracy error", err)
	}

	oneSided := dataset.New(60)
	for i := 0; i < 60; i++ {
		oneSided.CartValue[i] = 60 + float64(i)
		oneSided.Treatment[i] = 1
		oneSided.TenureDays[i] = float64(30 + i)
		oneSided.PreviousPurchases[i] = float64(i % 4)
		oneSided.ItemsInCart[i] = 1 + float64(i%3)
	}
	if _, err := MatchingEstimate(model, oneSided, nil); !core.IsSampleError(err) {
		t.Errorf("one-sided pool: got %v, want sample error", err)
	}
}
