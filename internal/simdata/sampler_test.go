package simdata

import (
	"math"
	"math/rand"
	"testing"
)

func TestGammaSample_Moments(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	n := 50000
	sum := 0.0
	for i := 0; i < n; i++ {
		v := gammaSample(rng, 2, 100)
		if v <= 0 {
			t.Fatalf("gamma draw %d not positive: %v", i, v)
		}
		sum += v
	}
	mean := sum / float64(n)
	if math.Abs(mean-200) > 5 {
		t.Errorf("gamma(2,100) mean = %v, want ~200", mean)
	}
}

func TestGammaSample_SubUnitShape(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	n := 50000
	sum := 0.0
	for i := 0; i < n; i++ {
		v := gammaSample(rng, 0.5, 2)
		if v < 0 {
			t.Fatalf("gamma draw negative: %v", v)
		}
		sum += v
	}
	mean := sum / float64(n)
	if math.Abs(mean-1) > 0.1 {
		t.Errorf("gamma(0.5,2) mean = %v, want ~1", mean)
	}
}

func TestPoissonSample_Moments(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 50000
	sum := 0
	for i := 0; i < n; i++ {
		k := poissonSample(rng, 3)
		if k < 0 {
			t.Fatalf("poisson draw negative: %d", k)
		}
		sum += k
	}
	mean := float64(sum) / float64(n)
	if math.Abs(mean-3) > 0.1 {
		t.Errorf("poisson(3) mean = %v, want ~3", mean)
	}
}

func TestNegBinomialSample_Moments(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 50000
	sum := 0
	for i := 0; i < n; i++ {
		k := negBinomialSample(rng, 1, 0.3)
		if k < 0 {
			t.Fatalf("negative binomial draw negative: %d", k)
		}
		sum += k
	}
	// Failures before the first success: mean (1-p)/p.
	mean := float64(sum) / float64(n)
	want := 0.7 / 0.3
	if math.Abs(mean-want) > 0.15 {
		t.Errorf("negbinomial(1,0.3) mean = %v, want ~%v", mean, want)
	}
}

func TestWeightedChoice_Frequencies(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	labels := []string{"a", "b", "c"}
	weights := []float64{0.5, 0.3, 0.2}
	n := 50000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		counts[weightedChoice(rng, labels, weights)]++
	}
	for i, lab := range labels {
		got := float64(counts[lab]) / float64(n)
		if math.Abs(got-weights[i]) > 0.02 {
			t.Errorf("label %s frequency = %v, want ~%v", lab, got, weights[i])
		}
	}
}

func TestClipAndRound(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{-3, 0, 10, 0},
		{42, 0, 10, 10},
		{5, 0, 10, 5},
	}
	for _, tt := range tests {
		if got := clip(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clip(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
	if got := round2(49.996); got != 50.0 {
		t.Errorf("round2(49.996) = %v, want 50", got)
	}
	if got := round2(12.344); got != 12.34 {
		t.Errorf("round2(12.344) = %v, want 12.34", got)
	}
}

func TestSamplers_DeterministicPerSeed(t *testing.T) {
	a := rand.New(rand.NewSource(5))
	b := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		if gammaSample(a, 3, 15) != gammaSample(b, 3, 15) {
			t.Fatalf("gamma sequence diverged at draw %d", i)
		}
	}
}
