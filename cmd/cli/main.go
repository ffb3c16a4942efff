package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"gordd/adapters/postgres"
	"gordd/adapters/regression"
	"gordd/adapters/tabular"
	"gordd/app"
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
	"gordd/ui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gordd",
		Short: "Regression discontinuity analysis of a free shipping threshold",
	}

	rootCmd.AddCommand(
		newGenerateCmd(),
		newAnalyzeCmd(),
		newEstimateCmd(),
		newSweepCmd(),
		newDiagnoseCmd(),
		newImpactCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dataFlags are the generation parameters shared by every subcommand.
type dataFlags struct {
	sessions int
	cutoff   float64
	effect   float64
	seed     int64
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.sessions, "sessions", 10000, "Number of shopping sessions to generate")
	cmd.Flags().Float64Var(&f.cutoff, "cutoff", 50, "Free shipping threshold")
	cmd.Flags().Float64Var(&f.effect, "effect", 0.08, "True effect on completion probability")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Random seed for deterministic generation")
}

func (f dataFlags) generate(shippingCost float64) (*dataset.Dataset, error) {
	return simdata.Generate(simdata.Config{
		Sessions:        f.sessions,
		Cutoff:          f.cutoff,
		TreatmentEffect: f.effect,
		ShippingCost:    shippingCost,
		Seed:            f.seed,
	})
}

func newGenerateCmd() *cobra.Command {
	var flags dataFlags
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic batch of shopping sessions",
		Long: `Generate shopping sessions around the free shipping threshold and write
them to a CSV or XLSX file, picked by extension.

Example: gordd generate --sessions 20000 --seed 7 --out sessions.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := flags.generate(5.95)
			if err != nil {
				return err
			}
			if err := tabular.NewStore().Write(out, ds); err != nil {
				return err
			}
			fmt.Printf("Wrote %d sessions to %s\n", ds.Len(), out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "sessions.csv", "Output file (.csv or .xlsx)")

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var flags dataFlags
	var bandwidth float64
	var shippingCost float64
	var input string
	var format string
	var out string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full discontinuity analysis pipeline",
		Long: `Run estimation, diagnostics, the robustness battery and the business
impact projection, and emit the complete report.

When DATABASE_URL is set the report is also persisted.

Example: gordd analyze --sessions 10000 --seed 42 --format markdown --out report.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), flags, bandwidth, shippingCost, input, format, out)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&bandwidth, "bandwidth", 20, "Estimation window half-width")
	cmd.Flags().Float64Var(&shippingCost, "shipping-cost", 5.95, "Shipping cost per subsidized order")
	cmd.Flags().StringVar(&input, "input", "", "Analyze sessions from a CSV/XLSX file instead of generating")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|markdown")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")

	return cmd
}

func runAnalyze(ctx context.Context, flags dataFlags, bandwidth, shippingCost float64, input, format, out string) error {
	if format != "json" && format != "markdown" {
		return fmt.Errorf("invalid format: %s (expected json|markdown)", format)
	}

	var repo ports.AnalysisRepository
	if url := os.Getenv("DATABASE_URL"); url != "" {
		db, err := sqlx.Connect("postgres", url)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		repo = postgres.NewAnalysisRepository(db)
	}

	defaults := config.AnalysisConfig{
		Sessions:     flags.sessions,
		Cutoff:       flags.cutoff,
		Effect:       flags.effect,
		Seed:         flags.seed,
		Bandwidth:    bandwidth,
		ShippingCost: shippingCost,
	}
	svc := app.NewAnalysisService(regression.NewOLS(), repo, defaults, internal.NewLogger(internal.LogLevelWarn))

	var report *rdd.AnalysisReport
	var err error
	if input != "" {
		ds, rerr := tabular.NewStore().Read(input)
		if rerr != nil {
			return fmt.Errorf("read %s: %w", input, rerr)
		}
		report, err = svc.RunOnDataset(ctx, ds, svc.Defaults())
	} else {
		report, err = svc.Run(ctx, svc.Defaults())
	}
	if err != nil {
		return err
	}

	var payload []byte
	if format == "json" {
		payload, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		payload = []byte(ui.BuildMarkdown(report))
	}

	if out == "" {
		fmt.Println(string(payload))
		return nil
	}
	if err := os.WriteFile(out, payload, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Report written to %s\n", out)
	return nil
}

func newEstimateCmd() *cobra.Command {
	var flags dataFlags
	var bandwidth float64

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the discontinuity at a single bandwidth",
		Long: `Fit the local linear discontinuity estimate inside one window and print it
next to the naive all-data comparison.

Example: gordd estimate --bandwidth 15 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(flags, bandwidth)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&bandwidth, "bandwidth", 20, "Estimation window half-width")

	return cmd
}

func runEstimate(flags dataFlags, bandwidth float64) error {
	ds, err := flags.generate(5.95)
	if err != nil {
		return err
	}

	est := estimator.New(regression.NewOLS())
	res, err := est.Estimate(ds, estimator.DefaultSpec(flags.cutoff, bandwidth))
	if err != nil {
		return err
	}
	naive := robustness.NaiveDifference(ds)

	fmt.Printf("=== DISCONTINUITY ESTIMATE ===\n")
	fmt.Printf("Point estimate: %+.4f\n", res.PointEstimate)
	fmt.Printf("Standard error: %.4f\n", res.StandardError)
	fmt.Printf("95%% CI: [%.4f, %.4f]\n", res.CILower, res.CIUpper)
	fmt.Printf("p-value: %.4f\n", res.PValue)
	fmt.Printf("Window sample: %d (bandwidth %.1f)\n", res.SampleSize, res.Bandwidth)

	fmt.Printf("\nNaive all-data gap: %+.4f (treated %.4f vs control %.4f)\n",
		naive.Difference, naive.TreatedRate, naive.ControlRate)
	fmt.Printf("Selection accounts for the difference between the two numbers.\n")
	return nil
}

func newSweepCmd() *cobra.Command {
	var flags dataFlags
	var bandwidths []float64

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-estimate the discontinuity across a bandwidth grid",
		Long: `Sweep the estimation window across a bandwidth grid and report the
data-driven bandwidth choice.

Example: gordd sweep --bandwidths 5,10,15,20,25,30 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), flags, bandwidths)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64SliceVar(&bandwidths, "bandwidths", app.SweepBandwidths, "Bandwidth grid to sweep")

	return cmd
}

func runSweep(ctx context.Context, flags dataFlags, bandwidths []float64) error {
	ds, err := flags.generate(5.95)
	if err != nil {
		return err
	}

	model := regression.NewOLS()
	est := estimator.New(model)
	spec := estimator.DefaultSpec(flags.cutoff, 20)

	fmt.Printf("=== BANDWIDTH SWEEP ===\n")
	fmt.Printf("%10s %12s %10s %22s %10s %8s\n", "Bandwidth", "Estimate", "SE", "95% CI", "p", "n")
	for _, pt := range robustness.Sweep(ctx, est, ds, spec, bandwidths) {
		if pt.Result == nil {
			fmt.Printf("%10.1f failed: %s\n", pt.Bandwidth, pt.Err)
			continue
		}
		r := pt.Result
		fmt.Printf("%10.1f %+12.4f %10.4f [%8.4f, %8.4f] %10.4f %8d\n",
			pt.Bandwidth, r.PointEstimate, r.StandardError, r.CILower, r.CIUpper, r.PValue, r.SampleSize)
	}

	sel, err := robustness.SelectBandwidth(model, ds, spec)
	if err != nil {
		return fmt.Errorf("bandwidth selection: %w", err)
	}
	clamped := ""
	if sel.Clamped {
		clamped = " (clamped)"
	}
	fmt.Printf("\nData-driven bandwidth: %.2f%s (pilot %.2f)\n", sel.Bandwidth, clamped, sel.PilotBandwidth)
	return nil
}

func newDiagnoseCmd() *cobra.Command {
	var flags dataFlags
	var bandwidth float64

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run the design diagnostics",
		Long: `Check the density of sessions at the cutoff, covariate balance inside
the window and placebo cutoffs on both sides.

Example: gordd diagnose --bandwidth 20 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(flags, bandwidth)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&bandwidth, "bandwidth", 20, "Estimation window half-width")

	return cmd
}

func runDiagnose(flags dataFlags, bandwidth float64) error {
	ds, err := flags.generate(5.95)
	if err != nil {
		return err
	}

	est := estimator.New(regression.NewOLS())
	spec := estimator.DefaultSpec(flags.cutoff, bandwidth)

	den := diagnostics.CheckManipulation(ds, flags.cutoff, diagnostics.DefaultDensityBin)
	fmt.Printf("=== DENSITY AT THE CUTOFF ===\n")
	fmt.Printf("Sessions just below: %d\n", den.LeftCount)
	fmt.Printf("Sessions just above: %d\n", den.RightCount)
	fmt.Printf("Ratio: %.3f (p=%.4f)\n", den.Ratio, den.PValue)
	fmt.Printf("Passed: %t\n", den.Passed)
	if den.Note != "" {
		fmt.Printf("Note: %s\n", den.Note)
	}

	bal := diagnostics.CheckBalance(ds, flags.cutoff, bandwidth, robustness.DefaultMatchCovariates())
	fmt.Printf("\n=== COVARIATE BALANCE ===\n")
	for _, line := range bal.Lines {
		fmt.Printf("%-22s control %8.3f  treated %8.3f  diff %+8.3f  t %+6.2f  p %.4f  balanced %t\n",
			line.Covariate, line.MeanControl, line.MeanTreated, line.Difference,
			line.TStatistic, line.PValue, line.Balanced)
	}
	fmt.Printf("All balanced: %t\n", bal.AllBalanced)

	fmt.Printf("\n=== PLACEBO CUTOFFS ===\n")
	for _, offset := range []float64{-10, 10} {
		fake := flags.cutoff + offset
		p, perr := diagnostics.RunPlacebo(est, ds, spec, fake)
		if perr != nil {
			fmt.Printf("%.1f: skipped (%v)\n", fake, perr)
			continue
		}
		fmt.Printf("%.1f (%s): %+.4f [%.4f, %.4f], null retained %t\n",
			p.FakeCutoff, p.Side, p.Result.PointEstimate, p.Result.CILower, p.Result.CIUpper, p.NullRetained)
	}
	return nil
}

func newImpactCmd() *cobra.Command {
	var flags dataFlags
	var bandwidth float64
	var shippingCost float64
	var margin float64
	var monthlySessions float64

	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Project the business impact of the threshold",
		Long: `Estimate the discontinuity and project it into a monthly profit-and-loss
view of the free shipping subsidy.

Example: gordd impact --shipping-cost 5.95 --margin 0.25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(flags, bandwidth, shippingCost, margin, monthlySessions)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&bandwidth, "bandwidth", 20, "Estimation window half-width")
	cmd.Flags().Float64Var(&shippingCost, "shipping-cost", 5.95, "Shipping cost per subsidized order")
	cmd.Flags().Float64Var(&margin, "margin", 0.25, "Gross margin rate on cart revenue")
	cmd.Flags().Float64Var(&monthlySessions, "monthly-sessions", 5000, "Monthly sessions considered by the projection")

	return cmd
}

func runImpact(flags dataFlags, bandwidth, shippingCost, margin, monthlySessions float64) error {
	ds, err := flags.generate(shippingCost)
	if err != nil {
		return err
	}

	est := estimator.New(regression.NewOLS())
	res, err := est.Estimate(ds, estimator.DefaultSpec(flags.cutoff, bandwidth))
	if err != nil {
		return err
	}

	a := impact.DefaultAssumptions()
	a.ShippingCost = shippingCost
	a.MarginRate = margin
	a.MonthlySessions = monthlySessions

	proj, err := impact.Project(res.PointEstimate, a)
	if err != nil {
		return err
	}

	fmt.Printf("=== BUSINESS IMPACT ===\n")
	fmt.Printf("Estimated effect: %+.4f (p=%.4f)\n", proj.EffectApplied, res.PValue)
	fmt.Printf("Sessions affected per month: %.0f\n", proj.SessionsAffected)
	fmt.Printf("Additional conversions: %.1f\n", proj.AdditionalConversions)
	fmt.Printf("Additional revenue: $%.2f\n", proj.AdditionalRevenue)
	fmt.Printf("Additional profit: $%.2f\n", proj.AdditionalProfit)
	fmt.Printf("Monthly subsidy: $%.2f over %.1f shipments\n", proj.MonthlySubsidy, proj.TotalShipments)
	fmt.Printf("Net monthly: %+.2f\n", proj.NetMonthly)
	fmt.Printf("Net annual: %+.2f\n", proj.NetAnnual)
	fmt.Printf("ROI: %+.1f%%\n", proj.ROIPercent)
	fmt.Printf("Break-even margin: %.1f%%\n", proj.BreakEvenMargin*100)

	if proj.Profitable {
		fmt.Printf("\nThe incremental profit covers the shipping subsidy.\n")
	} else {
		fmt.Printf("\nThe shipping subsidy exceeds the incremental profit it creates.\n")
	}
	return nil
}
