package rdd

// DensityCheck is the manipulation diagnostic at the cutoff: session counts in
// the two bins flanking the threshold and their ratio. Informational only,
// never blocks estimation.
type DensityCheck struct {
	Cutoff     float64 `json:"cutoff"`
	BinWidth   float64 `json:"bin_width"`
	LeftCount  int     `json:"left_count"`
	RightCount int     `json:"right_count"`
	Ratio      float64 `json:"ratio"`
	PValue     float64 `json:"p_value"`
	Passed     bool    `json:"passed"`
	Note       string  `json:"note,omitempty"`
}

// BalanceLine is the balance diagnostic for a single covariate inside the
// estimation window.
type BalanceLine struct {
	Covariate   string  `json:"covariate"`
	MeanControl float64 `json:"mean_control"`
	MeanTreated float64 `json:"mean_treated"`
	Difference  float64 `json:"difference"`
	TStatistic  float64 `json:"t_statistic"`
	PValue      float64 `json:"p_value"`
	Balanced    bool    `json:"balanced"`
	Note        string  `json:"note,omitempty"`
}

// BalanceReport aggregates covariate balance lines for one window.
type BalanceReport struct {
	Cutoff      float64       `json:"cutoff"`
	Bandwidth   float64       `json:"bandwidth"`
	Lines       []BalanceLine `json:"lines"`
	AllBalanced bool          `json:"all_balanced"`
}

// PlaceboOutcome is a re-estimation at a fake cutoff where treatment does not
// actually change. A healthy design retains the null there.
type PlaceboOutcome struct {
	FakeCutoff   float64          `json:"fake_cutoff"`
	Side         string           `json:"side"`
	Result       EstimationResult `json:"result"`
	NullRetained bool             `json:"null_retained"`
}

// Placebo sides relative to the real cutoff.
const (
	PlaceboBelow = "below"
	PlaceboAbove = "above"
)
