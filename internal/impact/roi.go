package impact

import (
	"fmt"
	"math"

	"gordd/domain/core"
	"gordd/domain/rdd"
)

// DefaultAssumptions mirror the reference business case: a mid-size shop where
// half the monthly sessions land near the threshold, carts near the cutoff
// average EUR 50, and free shipping costs EUR 5.95 per order.
func DefaultAssumptions() rdd.ImpactAssumptions {
	return rdd.ImpactAssumptions{
		MarginRate:         0.25,
		ShippingCost:       5.95,
		MonthlySessions:    5000,
		NearShare:          0.5,
		AvgCartValue:       50.0,
		BaselineConversion: 0.478,
	}
}

// Project turns an estimated completion-rate jump into a monthly and annual
// profit-and-loss view. The subsidy side counts every free shipment the
// threshold triggers, baseline completions included, against the margin on the
// incremental revenue alone. Pure arithmetic.
func Project(effect float64, a rdd.ImpactAssumptions) (rdd.ImpactProjection, error) {
	var zero rdd.ImpactProjection
	if math.IsNaN(effect) || math.IsInf(effect, 0) || effect < -1 || effect > 1 {
		return zero, core.NewParameterError("effect", fmt.Sprintf("%v outside [-1, 1]", effect))
	}
	if a.MarginRate < 0 || a.MarginRate > 1 {
		return zero, core.NewParameterError("margin_rate", fmt.Sprintf("%.3f outside [0, 1]", a.MarginRate))
	}
	if a.NearShare < 0 || a.NearShare > 1 {
		return zero, core.NewParameterError("near_share", fmt.Sprintf("%.3f outside [0, 1]", a.NearShare))
	}
	if a.BaselineConversion < 0 || a.BaselineConversion > 1 {
		return zero, core.NewParameterError("baseline_conversion", fmt.Sprintf("%.3f outside [0, 1]", a.BaselineConversion))
	}
	if a.ShippingCost < 0 {
		return zero, core.NewParameterError("shipping_cost", "must be non-negative")
	}
	if a.MonthlySessions < 0 {
		return zero, core.NewParameterError("monthly_sessions", "must be non-negative")
	}
	if a.AvgCartValue < 0 {
		return zero, core.NewParameterError("avg_cart_value", "must be non-negative")
	}

	sessions := a.MonthlySessions * a.NearShare
	addConversions := sessions * effect
	addRevenue := addConversions * a.AvgCartValue
	addProfit := addRevenue * a.MarginRate
	baseConversions := sessions * a.BaselineConversion
	shipments := baseConversions + addConversions
	subsidy := shipments * a.ShippingCost
	net := addProfit - subsidy

	proj := rdd.ImpactProjection{
		Assumptions:           a,
		EffectApplied:         effect,
		SessionsAffected:      sessions,
		AdditionalConversions: addConversions,
		AdditionalRevenue:     addRevenue,
		AdditionalProfit:      addProfit,
		BaselineConversions:   baseConversions,
		TotalShipments:        shipments,
		MonthlySubsidy:        subsidy,
		NetMonthly:            net,
		NetAnnual:             12 * net,
		Profitable:            net > 0,
	}
	if subsidy > 0 {
		proj.ROIPercent = (addProfit/subsidy - 1) * 100
	}
	if addRevenue > 0 {
		proj.BreakEvenMargin = subsidy / addRevenue
	}
	return proj, nil
}
