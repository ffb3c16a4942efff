package simdata

import (
	"fmt"
	"math"
	"math/rand"

	"gordd/domain/core"
	"gordd/domain/dataset"
)

// Age brackets and their draw weights.
var (
	ageBrackets = []string{"18-24", "25-34", "35-44", "45-54", "55+"}
	ageWeights  = []float64{0.15, 0.35, 0.25, 0.15, 0.10}
)

// Categories, their default draw weights, and their effect on cart value and
// completion probability.
var (
	Categories = []string{"Electronics", "Fashion", "Home & Garden", "Books & Media", "Sports & Outdoors"}

	defaultCategoryWeights = map[string]float64{
		"Electronics":       0.25,
		"Fashion":           0.30,
		"Home & Garden":     0.20,
		"Books & Media":     0.15,
		"Sports & Outdoors": 0.10,
	}
	categoryPriceShift = map[string]float64{
		"Electronics":       20,
		"Fashion":           10,
		"Home & Garden":     15,
		"Books & Media":     -5,
		"Sports & Outdoors": 12,
	}
	categoryCompletionShift = map[string]float64{
		"Electronics":       0.05,
		"Fashion":           0.03,
		"Home & Garden":     0.00,
		"Books & Media":     -0.02,
		"Sports & Outdoors": 0.01,
	}
)

// Config drives one synthetic batch of shopping sessions.
type Config struct {
	Sessions        int
	Cutoff          float64
	TreatmentEffect float64
	ShippingCost    float64
	Seed            int64

	// CategoryWeights overrides the default category mix. Nil keeps the
	// defaults; a non-nil map must cover only known categories and sum to 1.
	CategoryWeights map[string]float64
}

func DefaultConfig() Config {
	return Config{
		Sessions:        10000,
		Cutoff:          50.0,
		TreatmentEffect: 0.08,
		ShippingCost:    5.95,
		Seed:            42,
	}
}

func (cfg Config) validate() error {
	if cfg.Sessions <= 0 {
		return core.NewParameterError("sessions", "must be positive")
	}
	if cfg.TreatmentEffect < -1 || cfg.TreatmentEffect > 1 {
		return core.NewParameterError("treatment_effect", fmt.Sprintf("%.3f outside [-1, 1]", cfg.TreatmentEffect))
	}
	if cfg.Cutoff < dataset.CartMin || cfg.Cutoff > dataset.CartMax {
		return core.NewParameterError("cutoff", fmt.Sprintf("%.2f outside cart range [%.0f, %.0f]", cfg.Cutoff, dataset.CartMin, dataset.CartMax))
	}
	if cfg.ShippingCost < 0 {
		return core.NewParameterError("shipping_cost", "must be non-negative")
	}
	if cfg.CategoryWeights != nil {
		sum := 0.0
		for cat, w := range cfg.CategoryWeights {
			if _, ok := defaultCategoryWeights[cat]; !ok {
				return core.NewParameterError("category_weights", fmt.Sprintf("unknown category %q", cat))
			}
			if w < 0 {
				return core.NewParameterError("category_weights", fmt.Sprintf("negative weight for %q", cat))
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			return core.NewParameterError("category_weights", fmt.Sprintf("weights sum to %.6f, want 1", sum))
		}
	}
	return nil
}

func (cfg Config) categoryWeights() []float64 {
	src := cfg.CategoryWeights
	if src == nil {
		src = defaultCategoryWeights
	}
	weights := make([]float64, len(Categories))
	for i, cat := range Categories {
		weights[i] = src[cat]
	}
	return weights
}

// Generate produces a synthetic batch of shopping sessions with a sharp
// free-shipping threshold at cfg.Cutoff and cfg.TreatmentEffect baked into
// the completion probability of treated rows. Deterministic per seed.
//
// The latent completion probability is smooth in cart value and covariates,
// so the only discontinuity at the cutoff is the treatment effect itself.
func Generate(cfg Config) (*dataset.Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.Sessions
	ds := dataset.New(n)
	catWeights := cfg.categoryWeights()

	for i := 0; i < n; i++ {
		ds.SessionID[i] = int64(i + 1)
	}
	for i := 0; i < n; i++ {
		ds.CustomerAge[i] = weightedChoice(rng, ageBrackets, ageWeights)
	}
	for i := 0; i < n; i++ {
		// Mix of new and long-tenured accounts, stored as whole days.
		ds.TenureDays[i] = math.Trunc(clip(gammaSample(rng, 2, 100), 1, 2000))
	}
	for i := 0; i < n; i++ {
		// Most customers have few prior purchases, a tail of loyal repeaters.
		ds.PreviousPurchases[i] = clip(float64(negBinomialSample(rng, 1, 0.3)), 0, 50)
	}
	for i := 0; i < n; i++ {
		ds.ProductCategory[i] = weightedChoice(rng, Categories, catWeights)
	}
	for i := 0; i < n; i++ {
		ds.ItemsInCart[i] = clip(float64(poissonSample(rng, 3)+1), 1, 15)
	}

	// Cart value: right-skewed base with good density near the threshold,
	// shifted by basket size and category.
	for i := 0; i < n; i++ {
		cart := gammaSample(rng, 3, 15) +
			0.5*ds.ItemsInCart[i] +
			categoryPriceShift[ds.ProductCategory[i]] +
			rng.NormFloat64()*5
		// Rounded before assignment so the sharp rule holds exactly on the
		// stored (and exported) values.
		cart = round2(clip(cart, dataset.CartMin, dataset.CartMax))
		ds.CartValue[i] = cart
		if cart >= cfg.Cutoff {
			ds.Treatment[i] = 1
		}
	}

	// Potential outcomes: pY0 smooth in cart and covariates, pY1 adds the
	// effect. The observed outcome picks one by treatment status.
	for i := 0; i < n; i++ {
		pY0 := 0.40 +
			0.001*ds.CartValue[i] +
			0.02*math.Min(ds.PreviousPurchases[i]/10, 0.15) +
			0.01*math.Min(ds.TenureDays[i]/365, 0.10) +
			categoryCompletionShift[ds.ProductCategory[i]] +
			rng.NormFloat64()*0.08
		pY0 = clip(pY0, 0.05, 0.95)
		pY1 := clip(pY0+cfg.TreatmentEffect, 0.05, 0.95)

		ds.Y0[i] = bernoulli(rng, pY0)
		ds.Y1[i] = bernoulli(rng, pY1)
		if ds.Treatment[i] == 1 {
			ds.Completed[i] = ds.Y1[i]
		} else {
			ds.Completed[i] = ds.Y0[i]
		}
	}

	return ds, nil
}
