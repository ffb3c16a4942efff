package ports

// LinearFit is the output of a least-squares fit. Covariance is the
// heteroskedasticity-robust (HC1) estimate used for all reported inference;
// OLSCovariance is the classical one, kept for comparison.
type LinearFit struct {
	Coefficients  []float64
	Covariance    [][]float64
	OLSCovariance [][]float64
	Residuals     []float64
	DOF           int
}

// LinearModel isolates the numeric regression backend from the estimation
// logic. design is row-major and already includes the intercept column.
//
// Implementations return core.ErrNumericDegeneracy (wrapped) for singular or
// ill-conditioned systems rather than producing NaN coefficients.
type LinearModel interface {
	Fit(design [][]float64, outcome []float64) (*LinearFit, error)
}
