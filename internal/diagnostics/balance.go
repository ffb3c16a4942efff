package diagnostics

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gordd/domain/dataset"
	"gordd/domain/rdd"
)

// balanceAlpha is the per-covariate significance level for the balance check.
const balanceAlpha = 0.05

// CheckBalance runs a Welch two-sample t-test per covariate inside the
// estimation window. Covariates should look the same on both sides of the
// cutoff; a significant difference suggests sorting and undermines the
// continuity assumption. Accepts any list of numeric covariates.
func CheckBalance(ds *dataset.Dataset, cutoff, bandwidth float64, covariates []string) rdd.BalanceReport {
	report := rdd.BalanceReport{Cutoff: cutoff, Bandwidth: bandwidth}
	if ds == nil || ds.Len() == 0 || bandwidth <= 0 || len(covariates) == 0 {
		return report
	}

	window := dataset.IndicesWithin(ds.CartValue, cutoff, bandwidth)
	var control, treated []int
	for _, i := range window {
		if ds.Treatment[i] == 1 {
			treated = append(treated, i)
		} else {
			control = append(control, i)
		}
	}

	allBalanced := true
	for _, name := range covariates {
		line := rdd.BalanceLine{Covariate: name}
		col, err := ds.NumericColumn(name)
		if err != nil {
			line.Note = "unknown numeric covariate"
			allBalanced = false
			report.Lines = append(report.Lines, line)
			continue
		}
		c := gather(col, control)
		tr := gather(col, treated)
		if len(c) < 2 || len(tr) < 2 {
			line.Note = "too few rows on a side of the window"
			allBalanced = false
			report.Lines = append(report.Lines, line)
			continue
		}

		meanC, _ := stats.Mean(c)
		meanT, _ := stats.Mean(tr)
		varC, _ := stats.SampleVariance(c)
		varT, _ := stats.SampleVariance(tr)
		line.MeanControl = meanC
		line.MeanTreated = meanT
		line.Difference = meanT - meanC

		nC, nT := float64(len(c)), float64(len(tr))
		seSq := varC/nC + varT/nT
		if seSq <= 0 {
			// Zero variance on both sides: balanced iff the means agree.
			line.Balanced = line.Difference == 0
			if !line.Balanced {
				line.Note = "covariate is constant per side with different levels"
				allBalanced = false
			} else {
				line.PValue = 1
			}
			report.Lines = append(report.Lines, line)
			continue
		}

		line.TStatistic = line.Difference / math.Sqrt(seSq)
		df := seSq * seSq / ((varC/nC)*(varC/nC)/(nC-1) + (varT/nT)*(varT/nT)/(nT-1))
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		p := 2 * (1 - tDist.CDF(math.Abs(line.TStatistic)))
		if p > 1 {
			p = 1
		}
		line.PValue = p
		line.Balanced = p >= balanceAlpha
		if !line.Balanced {
			allBalanced = false
		}
		report.Lines = append(report.Lines, line)
	}

	report.AllBalanced = len(report.Lines) > 0 && allBalanced
	return report
}

func gather(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for j, i := range rows {
		out[j] = col[i]
	}
	return out
}
