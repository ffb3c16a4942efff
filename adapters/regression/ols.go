package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gordd/domain/core"
	"gordd/ports"
)

// OLS fits ordinary least squares through gonum's QR factorization and
// computes both the classical and the HC1 heteroskedasticity-robust
// coefficient covariance. The robust one backs all reported inference:
// with a binary outcome the local linear probability model is
// heteroskedastic, so classical errors understate uncertainty.
type OLS struct{}

func NewOLS() *OLS {
	return &OLS{}
}

// Fit implements ports.LinearModel.
func (o *OLS) Fit(design [][]float64, outcome []float64) (*ports.LinearFit, error) {
	n := len(design)
	if n == 0 {
		return nil, core.NewParameterError("design", "has no rows")
	}
	if n != len(outcome) {
		return nil, core.NewParameterError("design", fmt.Sprintf("has %d rows but outcome has %d", n, len(outcome)))
	}
	k := len(design[0])
	if k == 0 {
		return nil, core.NewParameterError("design", "has no columns")
	}
	if n <= k {
		return nil, core.NewSampleError("design matrix", n, k+1)
	}

	flat := make([]float64, 0, n*k)
	for i, row := range design {
		if len(row) != k {
			return nil, core.NewParameterError("design", fmt.Sprintf("row %d has %d columns, want %d", i, len(row), k))
		}
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, k, flat)
	y := mat.NewVecDense(n, append([]float64(nil), outcome...))

	var qr mat.QR
	qr.Factorize(x)
	beta := mat.NewVecDense(k, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		return nil, core.NewDegeneracyError(fmt.Sprintf("least squares solve failed: %v", err))
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, core.NewDegeneracyError(fmt.Sprintf("normal matrix not invertible: %v", err))
	}

	coefs := make([]float64, k)
	for j := 0; j < k; j++ {
		coefs[j] = beta.AtVec(j)
		if math.IsNaN(coefs[j]) || math.IsInf(coefs[j], 0) {
			return nil, core.NewDegeneracyError("non-finite coefficient")
		}
	}

	residuals := make([]float64, n)
	rss := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		row := x.RawRowView(i)
		for j := 0; j < k; j++ {
			pred += row[j] * coefs[j]
		}
		residuals[i] = outcome[i] - pred
		rss += residuals[i] * residuals[i]
	}

	dof := n - k
	sigma2 := rss / float64(dof)
	olsCov := make([][]float64, k)
	for a := 0; a < k; a++ {
		olsCov[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			olsCov[a][b] = sigma2 * xtxInv.At(a, b)
		}
	}

	// HC1 sandwich: (X'X)^-1 (sum e_i^2 x_i x_i') (X'X)^-1 * n/(n-k).
	meat := mat.NewDense(k, k, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		w := residuals[i] * residuals[i]
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				meat.Set(a, b, meat.At(a, b)+w*row[a]*row[b])
			}
		}
	}
	var bread, sandwich mat.Dense
	bread.Mul(&xtxInv, meat)
	sandwich.Mul(&bread, &xtxInv)
	scale := float64(n) / float64(dof)
	robust := make([][]float64, k)
	for a := 0; a < k; a++ {
		robust[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			robust[a][b] = scale * sandwich.At(a, b)
		}
	}

	return &ports.LinearFit{
		Coefficients:  coefs,
		Covariance:    robust,
		OLSCovariance: olsCov,
		Residuals:     residuals,
		DOF:           dof,
	}, nil
}
