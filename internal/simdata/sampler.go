package simdata

import (
	"math"
	"math/rand"
)

// Distribution samplers over a caller-owned generator. Everything the
// generator draws flows through one seeded *rand.Rand, so a run is
// reproducible bit for bit.

// gammaSample draws from Gamma(shape, scale) via Marsaglia-Tsang squeeze
// rejection. Shapes below 1 are boosted and scaled back down.
func gammaSample(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return gammaSample(rng, shape+1, scale) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// poissonSample draws from Poisson(lambda) by Knuth's product method.
// Fine for the small rates used here.
func poissonSample(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// geometricSample draws the number of failures before the first success with
// success probability p, by inversion.
func geometricSample(rng *rand.Rand, p float64) int {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return int(math.Floor(math.Log(u) / math.Log(1-p)))
}

// negBinomialSample draws the number of failures before the r-th success:
// a sum of r independent geometrics.
func negBinomialSample(rng *rand.Rand, r int, p float64) int {
	total := 0
	for i := 0; i < r; i++ {
		total += geometricSample(rng, p)
	}
	return total
}

// weightedChoice draws a label with the given weights. Weights are assumed
// validated (non-negative, summing to 1).
func weightedChoice(rng *rand.Rand, labels []string, weights []float64) string {
	u := rng.Float64()
	cum := 0.0
	for i, w := range weights {
		cum += w
		if u < cum {
			return labels[i]
		}
	}
	return labels[len(labels)-1]
}

func bernoulli(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
