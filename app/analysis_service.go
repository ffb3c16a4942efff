package app

import (
	"context"
	"fmt"
	"time"

	"gordd/domain/core"
	"gordd/domain/dataset"
	"gordd/domain/rdd"
	"gordd/internal"
	"gordd/internal/config"
	"gordd/internal/diagnostics"
	"gordd/internal/estimator"
	"gordd/internal/impact"
	"gordd/internal/robustness"
	"gordd/internal/simdata"
	"gordd/ports"

	"github.com/montanaflynn/stats"
)

// SweepBandwidths is the bandwidth grid every run re-estimates on.
var SweepBandwidths = []float64{5, 10, 15, 20, 25, 30}

// placeboOffset is the distance of the fake cutoffs from the real one.
const placeboOffset = 10.0

// AnalysisRequest defines the inputs for one analysis run.
type AnalysisRequest struct {
	Sessions     int     `json:"sessions"`
	Cutoff       float64 `json:"cutoff"`
	Effect       float64 `json:"treatment_effect"`
	Seed         int64   `json:"seed"`
	Bandwidth    float64 `json:"bandwidth"`
	ShippingCost float64 `json:"shipping_cost"`
}

// AnalysisService runs the full threshold analysis: synthetic sessions,
// primary discontinuity estimate, assumption diagnostics, robustness battery
// and the business projection, assembled into one report.
type AnalysisService struct {
	model    ports.LinearModel
	est      *estimator.Estimator
	repo     ports.AnalysisRepository
	defaults config.AnalysisConfig
	logger   *internal.Logger
}

// NewAnalysisService creates an analysis service. A nil repository disables
// persistence; runs still execute and return their reports.
func NewAnalysisService(model ports.LinearModel, repo ports.AnalysisRepository, defaults config.AnalysisConfig, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	s := &AnalysisService{
		model:    model,
		est:      estimator.New(model),
		repo:     repo,
		defaults: defaults,
		logger:   logger,
	}
	if repo == nil {
		s.logger.Info("Persistence disabled, analysis runs will not be stored")
	}
	return s
}

// Defaults returns a request prefilled with the configured parameters.
func (s *AnalysisService) Defaults() AnalysisRequest {
	return AnalysisRequest{
		Sessions:     s.defaults.Sessions,
		Cutoff:       s.defaults.Cutoff,
		Effect:       s.defaults.Effect,
		Seed:         s.defaults.Seed,
		Bandwidth:    s.defaults.Bandwidth,
		ShippingCost: s.defaults.ShippingCost,
	}
}

// Run generates a batch of sessions per the request and analyzes it.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*rdd.AnalysisReport, error) {
	start := time.Now()

	ds, err := simdata.Generate(simdata.Config{
		Sessions:        req.Sessions,
		Cutoff:          req.Cutoff,
		TreatmentEffect: req.Effect,
		ShippingCost:    req.ShippingCost,
		Seed:            req.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("generate sessions: %w", err)
	}

	report, err := s.analyze(ctx, ds, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Run %s finished in %.2fs (estimate %.4f, p=%.4f)",
		report.RunID, time.Since(start).Seconds(), report.Primary.PointEstimate, report.Primary.PValue)

	s.persist(ctx, report)
	return report, nil
}

// RunOnDataset analyzes an externally loaded batch. The batch must satisfy
// the sharp assignment rule at the requested cutoff; the report's session
// count reflects the batch, not the request.
func (s *AnalysisService) RunOnDataset(ctx context.Context, ds *dataset.Dataset, req AnalysisRequest) (*rdd.AnalysisReport, error) {
	if ds == nil {
		return nil, core.NewParameterError("dataset", "must not be nil")
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if err := ds.CheckSharpAssignment(req.Cutoff); err != nil {
		return nil, err
	}
	req.Sessions = ds.Len()

	report, err := s.analyze(ctx, ds, req)
	if err != nil {
		return nil, err
	}

	s.persist(ctx, report)
	return report, nil
}

// GetReport fetches a persisted report by run ID.
func (s *AnalysisService) GetReport(ctx context.Context, id core.RunID) (*rdd.AnalysisReport, error) {
	if s.repo == nil {
		return nil, core.NewNotFoundError("analysis run", id.String())
	}
	return s.repo.GetReport(ctx, id)
}

// ListRuns lists persisted run summaries, newest first.
func (s *AnalysisService) ListRuns(ctx context.Context, limit int) ([]rdd.RunSummary, error) {
	if s.repo == nil {
		return []rdd.RunSummary{}, nil
	}
	return s.repo.ListRuns(ctx, limit)
}

// Preview generates a batch with the configured cutoff and effect and returns
// its first limit rows; limit <= 0 returns the whole batch.
func (s *AnalysisService) Preview(sessions int, seed int64, limit int) (*dataset.Dataset, error) {
	ds, err := simdata.Generate(simdata.Config{
		Sessions:        sessions,
		Cutoff:          s.defaults.Cutoff,
		TreatmentEffect: s.defaults.Effect,
		ShippingCost:    s.defaults.ShippingCost,
		Seed:            seed,
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < ds.Len() {
		rows := make([]int, limit)
		for i := range rows {
			rows[i] = i
		}
		ds = ds.Select(rows)
	}
	return ds, nil
}

func (s *AnalysisService) persist(ctx context.Context, report *rdd.AnalysisReport) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveReport(ctx, report); err != nil {
		s.logger.Warn("Failed to persist run %s: %v", report.RunID, err)
		return
	}
	s.logger.Debug("Persisted run %s", report.RunID)
}

func (s *AnalysisService) analyze(ctx context.Context, ds *dataset.Dataset, req AnalysisRequest) (*rdd.AnalysisReport, error) {
	spec := estimator.DefaultSpec(req.Cutoff, req.Bandwidth)

	primary, err := s.est.Estimate(ds, spec)
	if err != nil {
		return nil, fmt.Errorf("primary estimate: %w", err)
	}

	naive := robustness.NaiveDifference(ds)
	covariates := robustness.DefaultMatchCovariates()

	diag := rdd.DiagnosticsBlock{
		Density: diagnostics.CheckManipulation(ds, req.Cutoff, diagnostics.DefaultDensityBin),
		Balance: diagnostics.CheckBalance(ds, req.Cutoff, req.Bandwidth, covariates),
	}
	for _, fake := range []float64{req.Cutoff - placeboOffset, req.Cutoff + placeboOffset} {
		outcome, err := diagnostics.RunPlacebo(s.est, ds, spec, fake)
		if err != nil {
			s.logger.Warn("Placebo at %.1f skipped: %v", fake, err)
			continue
		}
		diag.Placebos = append(diag.Placebos, outcome)
	}

	robust := rdd.RobustnessBlock{
		Sweep: robustness.Sweep(ctx, s.est, ds, spec, SweepBandwidths),
	}
	robust.Optimal, err = robustness.SelectBandwidth(s.model, ds, spec)
	if err != nil {
		return nil, fmt.Errorf("bandwidth selection: %w", err)
	}
	robust.BiasCorrected, err = robustness.BiasCorrected(s.est, ds, spec)
	if err != nil {
		return nil, fmt.Errorf("bias correction: %w", err)
	}
	robust.ByCategory = robustness.ByGroup(ctx, s.est, ds, spec, dataset.ColProductCategory, robustness.ByColumn(dataset.ColProductCategory))
	robust.ByLoyalty = robustness.ByGroup(ctx, s.est, ds, spec, "loyalty_tier", robustness.ByLoyaltyTier())
	if match, err := robustness.MatchingEstimate(s.model, ds, covariates); err != nil {
		robust.MatchingErr = err.Error()
	} else {
		robust.Matching = &match
	}

	assumptions := impact.DefaultAssumptions()
	assumptions.ShippingCost = req.ShippingCost
	if rate, n := controlWindowRate(ds, req.Cutoff, req.Bandwidth); n > 0 {
		assumptions.BaselineConversion = rate
	}
	projection, err := impact.Project(primary.PointEstimate, assumptions)
	if err != nil {
		return nil, fmt.Errorf("impact projection: %w", err)
	}

	return &rdd.AnalysisReport{
		RunID:     core.NewRunID(),
		CreatedAt: time.Now().UTC(),
		Params: rdd.AnalysisParams{
			Sessions:        req.Sessions,
			Cutoff:          req.Cutoff,
			TreatmentEffect: req.Effect,
			Seed:            req.Seed,
			Bandwidth:       req.Bandwidth,
			ShippingCost:    req.ShippingCost,
		},
		Data:        summarize(ds, naive, req.Cutoff, req.Bandwidth),
		Primary:     primary,
		Naive:       naive,
		Diagnostics: diag,
		Robustness:  robust,
		Impact:      projection,
	}, nil
}

// controlWindowRate is the completion rate of untreated sessions inside the
// estimation window: the observed baseline the subsidy math starts from.
func controlWindowRate(ds *dataset.Dataset, cutoff, bandwidth float64) (float64, int) {
	var sum float64
	var n int
	for _, i := range dataset.IndicesWithin(ds.CartValue, cutoff, bandwidth) {
		if ds.Treatment[i] == 1 {
			continue
		}
		sum += ds.Completed[i]
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func summarize(ds *dataset.Dataset, naive rdd.NaiveComparison, cutoff, bandwidth float64) rdd.DataSummary {
	mean, _ := stats.Mean(ds.CartValue)
	median, _ := stats.Median(ds.CartValue)
	p90, _ := stats.Percentile(ds.CartValue, 90)

	treated := 0
	for _, t := range ds.Treatment {
		if t == 1 {
			treated++
		}
	}

	return rdd.DataSummary{
		Rows:              ds.Len(),
		TreatedShare:      float64(treated) / float64(ds.Len()),
		CompletionTreated: naive.TreatedRate,
		CompletionControl: naive.ControlRate,
		CartMean:          mean,
		CartMedian:        median,
		CartP90:           p90,
		WindowRows:        len(dataset.IndicesWithin(ds.CartValue, cutoff, bandwidth)),
	}
}
