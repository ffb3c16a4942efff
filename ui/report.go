package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gordd/domain/rdd"
)

// BuildMarkdown renders a report as a Markdown document, one section per
// analysis stage.
func BuildMarkdown(report *rdd.AnalysisReport) string {
	var b strings.Builder

	b.WriteString("# Free Shipping Threshold Analysis\n\n")
	fmt.Fprintf(&b, "Run `%s`, created %s.\n\n", report.RunID, report.CreatedAt.Format(time.RFC3339))

	writeParams(&b, report.Params)
	writeData(&b, report.Data)
	writeEstimate(&b, report)
	writeDiagnostics(&b, report.Diagnostics)
	writeRobustness(&b, report.Robustness)
	writeImpact(&b, report.Impact)

	return b.String()
}

func renderHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
	return markdown.Render(doc, renderer)
}

func writeParams(b *strings.Builder, p rdd.AnalysisParams) {
	b.WriteString("## Parameters\n\n")
	b.WriteString("| Parameter | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Sessions | %d |\n", p.Sessions)
	fmt.Fprintf(b, "| Threshold | $%.2f |\n", p.Cutoff)
	fmt.Fprintf(b, "| Configured effect | %.3f |\n", p.TreatmentEffect)
	fmt.Fprintf(b, "| Seed | %d |\n", p.Seed)
	fmt.Fprintf(b, "| Bandwidth | $%.1f |\n", p.Bandwidth)
	fmt.Fprintf(b, "| Shipping cost | $%.2f |\n\n", p.ShippingCost)
}

func writeData(b *strings.Builder, d rdd.DataSummary) {
	b.WriteString("## Data\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Rows | %d |\n", d.Rows)
	fmt.Fprintf(b, "| Treated share | %.1f%% |\n", d.TreatedShare*100)
	fmt.Fprintf(b, "| Completion (treated) | %.1f%% |\n", d.CompletionTreated*100)
	fmt.Fprintf(b, "| Completion (control) | %.1f%% |\n", d.CompletionControl*100)
	fmt.Fprintf(b, "| Cart value mean | $%.2f |\n", d.CartMean)
	fmt.Fprintf(b, "| Cart value median | $%.2f |\n", d.CartMedian)
	fmt.Fprintf(b, "| Cart value p90 | $%.2f |\n", d.CartP90)
	fmt.Fprintf(b, "| Rows inside window | %d |\n\n", d.WindowRows)
}

func writeEstimate(b *strings.Builder, report *rdd.AnalysisReport) {
	b.WriteString("## Discontinuity Estimate\n\n")
	writeEstimateTable(b, "Primary (local linear)", report.Primary)

	n := report.Naive
	fmt.Fprintf(b,
		"A naive all-data comparison shows a %.4f gap (%.1f%% treated vs %.1f%% control over %d and %d sessions). "+
			"The discontinuity design attributes %.4f of that to the threshold itself; the remainder is selection.\n\n",
		n.Difference, n.TreatedRate*100, n.ControlRate*100, n.TreatedCount, n.ControlCount,
		report.Primary.PointEstimate)
}

func writeDiagnostics(b *strings.Builder, d rdd.DiagnosticsBlock) {
	b.WriteString("## Diagnostics\n\n")

	b.WriteString("### Density at the cutoff\n\n")
	den := d.Density
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Bin width | $%.1f |\n", den.BinWidth)
	fmt.Fprintf(b, "| Sessions just below | %d |\n", den.LeftCount)
	fmt.Fprintf(b, "| Sessions just above | %d |\n", den.RightCount)
	fmt.Fprintf(b, "| Ratio | %.3f |\n", den.Ratio)
	fmt.Fprintf(b, "| p-value | %.4f |\n", den.PValue)
	fmt.Fprintf(b, "| Passed | %s |\n\n", yesNo(den.Passed))
	if den.Note != "" {
		fmt.Fprintf(b, "%s\n\n", den.Note)
	}

	b.WriteString("### Covariate balance\n\n")
	fmt.Fprintf(b, "Window: $%.1f around $%.2f.\n\n", d.Balance.Bandwidth, d.Balance.Cutoff)
	b.WriteString("| Covariate | Control mean | Treated mean | Difference | t | p | Balanced |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, line := range d.Balance.Lines {
		fmt.Fprintf(b, "| %s | %.4f | %.4f | %.4f | %.2f | %.4f | %s |\n",
			line.Covariate, line.MeanControl, line.MeanTreated, line.Difference,
			line.TStatistic, line.PValue, yesNo(line.Balanced))
	}
	b.WriteString("\n")

	if len(d.Placebos) > 0 {
		b.WriteString("### Placebo cutoffs\n\n")
		b.WriteString("| Fake cutoff | Side | Estimate | 95% CI | Null retained |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, p := range d.Placebos {
			fmt.Fprintf(b, "| $%.2f | %s | %.4f | [%.4f, %.4f] | %s |\n",
				p.FakeCutoff, p.Side, p.Result.PointEstimate,
				p.Result.CILower, p.Result.CIUpper, yesNo(p.NullRetained))
		}
		b.WriteString("\n")
	}
}

func writeRobustness(b *strings.Builder, r rdd.RobustnessBlock) {
	b.WriteString("## Robustness\n\n")

	b.WriteString("### Bandwidth sweep\n\n")
	b.WriteString("| Bandwidth | Estimate | SE | 95% CI | p | n |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, pt := range r.Sweep {
		if pt.Result == nil {
			fmt.Fprintf(b, "| $%.1f | failed: %s | | | | |\n", pt.Bandwidth, pt.Err)
			continue
		}
		res := pt.Result
		fmt.Fprintf(b, "| $%.1f | %.4f | %.4f | [%.4f, %.4f] | %.4f | %d |\n",
			pt.Bandwidth, res.PointEstimate, res.StandardError,
			res.CILower, res.CIUpper, res.PValue, res.SampleSize)
	}
	b.WriteString("\n")

	opt := r.Optimal
	clamped := ""
	if opt.Clamped {
		clamped = " (clamped to the allowed range)"
	}
	fmt.Fprintf(b, "### Data-driven bandwidth\n\nThe plug-in rule selects $%.2f%s, from a pilot bandwidth of $%.2f.\n\n",
		opt.Bandwidth, clamped, opt.PilotBandwidth)

	b.WriteString("### Bias correction\n\n")
	writeEstimateTable(b, "Conventional", r.BiasCorrected.Conventional)
	writeEstimateTable(b, "Bias-corrected", r.BiasCorrected.Corrected)
	fmt.Fprintf(b, "Estimated boundary bias: %.4f.\n\n", r.BiasCorrected.Bias)

	writeGroups(b, "Effects by product category", r.ByCategory)
	writeGroups(b, "Effects by loyalty tier", r.ByLoyalty)

	b.WriteString("### Matching cross-check\n\n")
	if r.Matching != nil {
		m := r.Matching
		b.WriteString("| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(b, "| Estimate | %.4f |\n", m.PointEstimate)
		fmt.Fprintf(b, "| SE | %.4f |\n", m.StandardError)
		fmt.Fprintf(b, "| 95%% CI | [%.4f, %.4f] |\n", m.CILower, m.CIUpper)
		fmt.Fprintf(b, "| Matched pairs | %d |\n", m.MatchedPairs)
		fmt.Fprintf(b, "| Dropped treated | %d |\n", m.DroppedTreated)
		fmt.Fprintf(b, "| Caliper | %.4f |\n\n", m.Caliper)
	} else {
		fmt.Fprintf(b, "Matching was skipped: %s.\n\n", r.MatchingErr)
	}
}

func writeGroups(b *strings.Builder, title string, h rdd.HeterogeneityResult) {
	fmt.Fprintf(b, "### %s\n\n", title)
	b.WriteString("| Group | Rows | Estimate | SE | 95% CI | p |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, g := range h.Groups {
		if g.Result == nil {
			fmt.Fprintf(b, "| %s | %d | skipped: %s | | | |\n", g.Group, g.Rows, g.Err)
			continue
		}
		res := g.Result
		fmt.Fprintf(b, "| %s | %d | %.4f | %.4f | [%.4f, %.4f] | %.4f |\n",
			g.Group, g.Rows, res.PointEstimate, res.StandardError,
			res.CILower, res.CIUpper, res.PValue)
	}
	b.WriteString("\n")
}

func writeImpact(b *strings.Builder, p rdd.ImpactProjection) {
	b.WriteString("## Business Impact\n\n")
	a := p.Assumptions
	fmt.Fprintf(b,
		"Assumptions: %.0f monthly sessions, %.0f%% near the threshold, $%.2f average cart, "+
			"%.1f%% margin, $%.2f shipping cost, %.1f%% baseline conversion.\n\n",
		a.MonthlySessions, a.NearShare*100, a.AvgCartValue,
		a.MarginRate*100, a.ShippingCost, a.BaselineConversion*100)

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Effect applied | %.4f |\n", p.EffectApplied)
	fmt.Fprintf(b, "| Sessions affected / month | %.0f |\n", p.SessionsAffected)
	fmt.Fprintf(b, "| Additional conversions | %.1f |\n", p.AdditionalConversions)
	fmt.Fprintf(b, "| Additional revenue | $%.2f |\n", p.AdditionalRevenue)
	fmt.Fprintf(b, "| Additional profit | $%.2f |\n", p.AdditionalProfit)
	fmt.Fprintf(b, "| Subsidized shipments | %.1f |\n", p.TotalShipments)
	fmt.Fprintf(b, "| Monthly subsidy | $%.2f |\n", p.MonthlySubsidy)
	fmt.Fprintf(b, "| Net monthly | $%.2f |\n", p.NetMonthly)
	fmt.Fprintf(b, "| Net annual | $%.2f |\n", p.NetAnnual)
	fmt.Fprintf(b, "| ROI | %.1f%% |\n", p.ROIPercent)
	fmt.Fprintf(b, "| Break-even margin | %.1f%% |\n\n", p.BreakEvenMargin*100)

	if p.Profitable {
		b.WriteString("The incremental profit covers the shipping subsidy.\n")
	} else {
		b.WriteString("The shipping subsidy exceeds the incremental profit it creates.\n")
	}
}

func writeEstimateTable(b *strings.Builder, label string, r rdd.EstimationResult) {
	fmt.Fprintf(b, "**%s**\n\n", label)
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Point estimate | %.4f |\n", r.PointEstimate)
	fmt.Fprintf(b, "| Standard error | %.4f |\n", r.StandardError)
	fmt.Fprintf(b, "| 95%% CI | [%.4f, %.4f] |\n", r.CILower, r.CIUpper)
	fmt.Fprintf(b, "| p-value | %.4f |\n", r.PValue)
	fmt.Fprintf(b, "| Window sample | %d |\n", r.SampleSize)
	fmt.Fprintf(b, "| Bandwidth | $%.1f |\n\n", r.Bandwidth)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
