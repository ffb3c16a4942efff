package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gordd/adapters/regression"
	"gordd/domain/core"
	"gordd/domain/rdd"
	"gordd/internal"
	"gordd/internal/config"
	"gordd/internal/robustness"
	"gordd/internal/simdata"
	"gordd/ports"
)

type memoryRepo struct {
	saved   map[core.RunID]*rdd.AnalysisReport
	order   []core.RunID
	saveErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{saved: make(map[core.RunID]*rdd.AnalysisReport)}
}

func (m *memoryRepo) SaveReport(ctx context.Context, report *rdd.AnalysisReport) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[report.RunID] = report
	m.order = append(m.order, report.RunID)
	return nil
}

func (m *memoryRepo) GetReport(ctx context.Context, id core.RunID) (*rdd.AnalysisReport, error) {
	report, ok := m.saved[id]
	if !ok {
		return nil, core.NewNotFoundError("analysis run", id.String())
	}
	return report, nil
}

func (m *memoryRepo) ListRuns(ctx context.Context, limit int) ([]rdd.RunSummary, error) {
	out := []rdd.RunSummary{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.saved[m.order[i]].Summary())
	}
	return out, nil
}

func testDefaults() config.AnalysisConfig {
	return config.AnalysisConfig{
		Sessions:     8000,
		Cutoff:       50,
		Effect:       0.08,
		Seed:         11,
		Bandwidth:    20,
		ShippingCost: 5.95,
	}
}

func newTestService(repo ports.AnalysisRepository) *AnalysisService {
	return NewAnalysisService(regression.NewOLS(), repo, testDefaults(), internal.NewLogger(internal.LogLevelError))
}

func TestRun_ProducesCompleteReport(t *testing.T) {
	svc := newTestService(nil)

	report, err := svc.Run(context.Background(), svc.Defaults())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID.String())
	assert.False(t, report.CreatedAt.IsZero())
	assert.Equal(t, rdd.AnalysisParams{
		Sessions:        8000,
		Cutoff:          50,
		TreatmentEffect: 0.08,
		Seed:            11,
		Bandwidth:       20,
		ShippingCost:    5.95,
	}, report.Params)

	assert.Equal(t, 8000, report.Data.Rows)
	assert.Greater(t, report.Data.TreatedShare, 0.1)
	assert.Less(t, report.Data.TreatedShare, 0.9)
	assert.Greater(t, report.Data.CartP90, report.Data.CartMedian)
	assert.Positive(t, report.Data.WindowRows)
	assert.Less(t, report.Data.WindowRows, report.Data.Rows)

	assert.Equal(t, 20.0, report.Primary.Bandwidth)
	assert.InDelta(t, 0.08, report.Primary.PointEstimate, 0.1)
	assert.LessOrEqual(t, report.Primary.CILower, report.Primary.PointEstimate)
	assert.GreaterOrEqual(t, report.Primary.CIUpper, report.Primary.PointEstimate)

	assert.InDelta(t, 0.14, report.Naive.Difference, 0.05)
	assert.Equal(t, 8000, report.Naive.TreatedCount+report.Naive.ControlCount)

	assert.True(t, report.Diagnostics.Density.Passed)
	assert.InDelta(t, 1.0, report.Diagnostics.Density.Ratio, 0.35)
	assert.Len(t, report.Diagnostics.Balance.Lines, 3)
	require.Len(t, report.Diagnostics.Placebos, 2)
	assert.Equal(t, rdd.PlaceboBelow, report.Diagnostics.Placebos[0].Side)
	assert.Equal(t, rdd.PlaceboAbove, report.Diagnostics.Placebos[1].Side)

	require.Len(t, report.Robustness.Sweep, len(SweepBandwidths))
	for i, pt := range report.Robustness.Sweep {
		assert.Equal(t, SweepBandwidths[i], pt.Bandwidth)
		assert.NotNil(t, pt.Result, "bandwidth %.0f", pt.Bandwidth)
	}
	assert.GreaterOrEqual(t, report.Robustness.Optimal.Bandwidth, robustness.MinBandwidth)
	assert.LessOrEqual(t, report.Robustness.Optimal.Bandwidth, robustness.MaxBandwidth)
	assert.Equal(t, report.Primary, report.Robustness.BiasCorrected.Conventional)
	assert.Equal(t, "product_category", report.Robustness.ByCategory.GroupBy)
	assert.NotEmpty(t, report.Robustness.ByCategory.Groups)
	var tiers []string
	for _, g := range report.Robustness.ByLoyalty.Groups {
		tiers = append(tiers, g.Group)
	}
	assert.Equal(t, []string{"Loyal", "New", "Occasional"}, tiers)
	require.NotNil(t, report.Robustness.Matching)
	assert.Empty(t, report.Robustness.MatchingErr)
	assert.Greater(t, report.Robustness.Matching.MatchedPairs, 100)

	assert.Equal(t, 5.95, report.Impact.Assumptions.ShippingCost)
	assert.InDelta(t, 0.45, report.Impact.Assumptions.BaselineConversion, 0.25)
	assert.Equal(t, 2500.0, report.Impact.SessionsAffected)
}

func TestRun_PersistsWhenRepositoryConfigured(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	req := svc.Defaults()
	req.Sessions = 3000

	report, err := svc.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, repo.order, 1)

	saved, err := svc.GetReport(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, saved.RunID)

	list, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, report.RunID, list[0].RunID)
	assert.Equal(t, 3000, list[0].Sessions)
}

func TestRun_SaveFailureIsNotFatal(t *testing.T) {
	repo := newMemoryRepo()
	repo.saveErr = errors.New("connection refused")
	svc := newTestService(repo)

	req := svc.Defaults()
	req.Sessions = 3000

	report, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Empty(t, repo.order)
}

func TestNilRepository_Lookups(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.GetReport(ctx, core.RunID("missing"))
	assert.True(t, core.IsNotFoundError(err))

	list, err := svc.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunOnDataset(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	ds, err := simdata.Generate(simdata.Config{
		Sessions:        4000,
		Cutoff:          50,
		TreatmentEffect: 0.1,
		ShippingCost:    5.95,
		Seed:            9,
	})
	require.NoError(t, err)

	req := svc.Defaults()
	req.Sessions = 999 // overwritten by the batch size

	report, err := svc.RunOnDataset(ctx, ds, req)
	require.NoError(t, err)
	assert.Equal(t, 4000, report.Params.Sessions)
	assert.Equal(t, 4000, report.Data.Rows)

	_, err = svc.RunOnDataset(ctx, nil, req)
	assert.True(t, core.IsParameterError(err))

	ds.Treatment[0] = 1 - ds.Treatment[0]
	_, err = svc.RunOnDataset(ctx, ds, req)
	assert.True(t, core.IsParameterError(err))
}

func TestRun_RejectsBadParams(t *testing.T) {
	svc := newTestService(nil)

	req := svc.Defaults()
	req.Sessions = -10

	_, err := svc.Run(context.Background(), req)
	assert.True(t, core.IsParameterError(err))
}

func TestPreview(t *testing.T) {
	svc := newTestService(nil)

	ds, err := svc.Preview(500, 3, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, ds.Len())
	require.NoError(t, ds.CheckSharpAssignment(50))

	full, err := svc.Preview(500, 3, 0)
	require.NoError(t, err)
	require.Equal(t, 500, full.Len())

	assert.Equal(t, full.SessionID[:50], ds.SessionID)
	assert.Equal(t, full.CartValue[:50], ds.CartValue)
}
