package rdd

// SweepPoint is one entry of a bandwidth sweep. A failed fit records its error
// string and leaves Result nil; the sweep itself never aborts.
type SweepPoint struct {
	Bandwidth float64           `json:"bandwidth"`
	Result    *EstimationResult `json:"result,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// BandwidthSelection is the outcome of the data-driven bandwidth rule,
// including the intermediate quantities so a reader can audit the choice.
type BandwidthSelection struct {
	Bandwidth        float64 `json:"bandwidth"`
	PilotBandwidth   float64 `json:"pilot_bandwidth"`
	VarianceAtCutoff float64 `json:"variance_at_cutoff"`
	DensityAtCutoff  float64 `json:"density_at_cutoff"`
	CurvatureGap     float64 `json:"curvature_gap"`
	Regularization   float64 `json:"regularization"`
	Clamped          bool    `json:"clamped"`
}

// BiasCorrected pairs the conventional local-linear estimate with its
// bias-corrected counterpart. Both are exposed, plus the bias itself.
type BiasCorrected struct {
	Conventional   EstimationResult `json:"conventional"`
	Corrected      EstimationResult `json:"corrected"`
	Bias           float64          `json:"bias"`
	PilotBandwidth float64          `json:"pilot_bandwidth"`
}

// GroupEffect is a per-group re-estimation. Groups too small for a stable fit
// record the error and leave Result nil; other groups are unaffected.
type GroupEffect struct {
	Group  string            `json:"group"`
	Rows   int               `json:"rows"`
	Result *EstimationResult `json:"result,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// HeterogeneityResult maps group labels to independent estimates, in sorted
// label order.
type HeterogeneityResult struct {
	GroupBy string        `json:"group_by"`
	Groups  []GroupEffect `json:"groups"`
}

// MatchingResult is the propensity-score matching cross-check: a comparable
// point estimate from an independent identification strategy.
type MatchingResult struct {
	PointEstimate  float64 `json:"point_estimate"`
	StandardError  float64 `json:"standard_error"`
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
	MatchedPairs   int     `json:"matched_pairs"`
	DroppedTreated int     `json:"dropped_treated"`
	Caliper        float64 `json:"caliper"`
}

// NaiveComparison is the all-data difference in completion rates, reported
// beside the discontinuity estimate to show how much selection bias the naive
// read carries.
type NaiveComparison struct {
	TreatedRate  float64 `json:"treated_rate"`
	ControlRate  float64 `json:"control_rate"`
	Difference   float64 `json:"difference"`
	TreatedCount int     `json:"treated_count"`
	ControlCount int     `json:"control_count"`
}
