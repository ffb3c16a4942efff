package regression

import (
	"math"
	"math/rand"
	"testing"

	"gordd/domain/core"
)

func TestFit_RecoversExactLine(t *testing.T) {
	// y = 2 + 3x with no noise: the fit must be exact.
	design := [][]float64{}
	outcome := []float64{}
	for i := 0; i < 6; i++ {
		x := float64(i)
		design = append(design, []float64{1, x})
		outcome = append(outcome, 2+3*x)
	}

	fit, err := NewOLS().Fit(design, outcome)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(fit.Coefficients) != 2 {
		t.Fatalf("expected 2 coefficients, got %d", len(fit.Coefficients))
	}
	if math.Abs(fit.Coefficients[0]-2) > 1e-9 {
		t.Errorf("intercept = %v, want 2", fit.Coefficients[0])
	}
	if math.Abs(fit.Coefficients[1]-3) > 1e-9 {
		t.Errorf("slope = %v, want 3", fit.Coefficients[1])
	}
	for i, r := range fit.Residuals {
		if math.Abs(r) > 1e-9 {
			t.Errorf("residual %d = %v, want ~0", i, r)
		}
	}
	if fit.DOF != 4 {
		t.Errorf("DOF = %d, want 4", fit.DOF)
	}
}

func TestFit_RecoversSlopeUnderNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 2000
	design := make([][]float64, n)
	outcome := make([]float64, n)
	for i := 0; i < n; i++ {
		x := rng.Float64() * 10
		design[i] = []float64{1, x}
		outcome[i] = 1.5 + 0.8*x + rng.NormFloat64()*0.5
	}

	fit, err := NewOLS().Fit(design, outcome)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if math.Abs(fit.Coefficients[1]-0.8) > 0.05 {
		t.Errorf("slope = %v, want 0.8 +/- 0.05", fit.Coefficients[1])
	}

	for a := 0; a < 2; a++ {
		if fit.Covariance[a][a] <= 0 || fit.OLSCovariance[a][a] <= 0 {
			t.Errorf("variance for coefficient %d not positive: robust=%v ols=%v",
				a, fit.Covariance[a][a], fit.OLSCovariance[a][a])
		}
	}
	if math.Abs(fit.Covariance[0][1]-fit.Covariance[1][0]) > 1e-12 {
		t.Errorf("robust covariance not symmetric: %v vs %v", fit.Covariance[0][1], fit.Covariance[1][0])
	}
}

func TestFit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		design  [][]float64
		outcome []float64
		check   func(error) bool
	}{
		{
			name:    "empty design",
			design:  nil,
			outcome: nil,
			check:   core.IsParameterError,
		},
		{
			name:    "row count mismatch",
			design:  [][]float64{{1, 2}, {1, 3}},
			outcome: []float64{1},
			check:   core.IsParameterError,
		},
		{
			name:    "more parameters than rows",
			design:  [][]float64{{1, 2, 3}, {1, 4, 5}},
			outcome: []float64{1, 2},
			check:   core.IsSampleError,
		},
		{
			name: "collinear columns",
			design: [][]float64{
				{1, 2, 4}, {1, 3, 6}, {1, 5, 10}, {1, 7, 14}, {1, 9, 18},
			},
			outcome: []float64{1, 2, 3, 4, 5},
			check:   core.IsDegeneracyError,
		},
		{
			name: "constant column duplicating intercept",
			design: [][]float64{
				{1, 1, 2.0}, {1, 1, 3.5}, {1, 1, 4.1}, {1, 1, 5.9}, {1, 1, 7.2},
			},
			outcome: []float64{1, 0, 1, 0, 1},
			check:   core.IsDegeneracyError,
		},
	}

	ols := NewOLS()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ols.Fit(tt.design, tt.outcome)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.check(err) {
				t.Errorf("wrong error kind: %v", err)
			}
		})
	}
}
