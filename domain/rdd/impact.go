package rdd

// ImpactAssumptions are the business inputs for projecting the revenue impact
// of the free-shipping threshold.
type ImpactAssumptions struct {
	MarginRate         float64 `json:"margin_rate"`
	ShippingCost       float64 `json:"shipping_cost"`
	MonthlySessions    float64 `json:"monthly_sessions"`
	NearShare          float64 `json:"near_share"`
	AvgCartValue       float64 `json:"avg_cart_value"`
	BaselineConversion float64 `json:"baseline_conversion"`
}

// ImpactProjection is the monthly profit-and-loss view of the estimated
// effect: incremental conversions against the shipping subsidy they trigger.
type ImpactProjection struct {
	Assumptions           ImpactAssumptions `json:"assumptions"`
	EffectApplied         float64           `json:"effect_applied"`
	SessionsAffected      float64           `json:"sessions_affected"`
	AdditionalConversions float64           `json:"additional_conversions"`
	AdditionalRevenue     float64           `json:"additional_revenue"`
	AdditionalProfit      float64           `json:"additional_profit"`
	BaselineConversions   float64           `json:"baseline_conversions"`
	TotalShipments        float64           `json:"total_shipments"`
	MonthlySubsidy        float64           `json:"monthly_subsidy"`
	NetMonthly            float64           `json:"net_monthly"`
	NetAnnual             float64           `json:"net_annual"`
	ROIPercent            float64           `json:"roi_percent"`
	BreakEvenMargin       float64           `json:"break_even_margin"`
	Profitable            bool              `json:"profitable"`
}
