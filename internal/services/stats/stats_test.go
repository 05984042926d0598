package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWeightedMeanBounds(t *testing.T) {
	values := []float64{100.0, 101.0, 99.5}
	weights := []float64{0.6, 0.3, 0.1}

	got := WeightedMean(values, weights)
	min, max := MinMax(values)
	if got < min || got > max {
		t.Fatalf("weighted mean %v outside [%v, %v]", got, min, max)
	}
}

func TestWeightedMeanZeroWeights(t *testing.T) {
	values := []float64{10, 20, 30}
	weights := []float64{0, 0, 0}

	if got := WeightedMean(values, weights); !almostEqual(got, 20) {
		t.Fatalf("expected fallback to plain mean 20, got %v", got)
	}
}

func TestWeightedMeanEmpty(t *testing.T) {
	if got := WeightedMean(nil, nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestWeightedMeanExample(t *testing.T) {
	// 100.0@0.6 + 101.0@0.4 = 100.4
	got := WeightedMean([]float64{100.0, 101.0}, []float64{0.6, 0.4})
	if !almostEqual(got, 100.4) {
		t.Fatalf("expected 100.4, got %v", got)
	}
}

func TestStdDevSingleValue(t *testing.T) {
	if got := StdDev([]float64{42}); got != 0 {
		t.Fatalf("expected 0 deviation for one sample, got %v", got)
	}
}

func TestStdDevKnown(t *testing.T) {
	// population std-dev of {2,4,4,4,5,5,7,9} is 2
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(got, 2) {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestPearsonPerfect(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}

	if got := Pearson(a, b); !almostEqual(got, 1) {
		t.Fatalf("expected 1.0, got %v", got)
	}

	inv := []float64{10, 8, 6, 4, 2}
	if got := Pearson(a, inv); !almostEqual(got, -1) {
		t.Fatalf("expected -1.0, got %v", got)
	}
}

func TestPearsonSymmetry(t *testing.T) {
	a := []float64{1.5, 2.2, 0.9, 3.1, 2.8}
	b := []float64{0.4, 1.9, 1.1, 2.6, 2.0}

	if Pearson(a, b) != Pearson(b, a) {
		t.Fatal("correlation must be symmetric")
	}
}

func TestPearsonZeroVariance(t *testing.T) {
	flat := []float64{5, 5, 5, 5}
	moving := []float64{1, 2, 3, 4}

	if got := Pearson(flat, moving); got != 0 {
		t.Fatalf("expected 0 for zero-variance series, got %v", got)
	}
}

func TestConsistency(t *testing.T) {
	if got := Consistency([]float64{10, 10, 10}); !almostEqual(got, 100) {
		t.Fatalf("identical values must score 100, got %v", got)
	}
	if got := Consistency([]float64{42}); got != 100 {
		t.Fatalf("degenerate input must score 100, got %v", got)
	}
	spread := Consistency([]float64{1, 100})
	tight := Consistency([]float64{99, 100})
	if spread >= tight {
		t.Fatalf("wider dispersion must score lower: %v vs %v", spread, tight)
	}
	if spread < 0 || tight > 100 {
		t.Fatalf("scores out of range: %v, %v", spread, tight)
	}
}

func TestClampScore(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0},
		{0, 0},
		{55.5, 55.5},
		{100, 100},
		{140, 100},
	}
	for _, c := range cases {
		if got := ClampScore(c.in); got != c.want {
			t.Fatalf("ClampScore(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSpreadPercent(t *testing.T) {
	if got := SpreadPercent(100, 101); !almostEqual(got, 1) {
		t.Fatalf("expected 1%%, got %v", got)
	}
	if got := SpreadPercent(0, 101); got != 0 {
		t.Fatalf("expected 0 for non-positive min, got %v", got)
	}
	if got := SpreadPercent(100, 100); got != 0 {
		t.Fatalf("expected 0 for equal prices, got %v", got)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	if got := Percentile(values, 50); !almostEqual(got, 5.5) {
		t.Fatalf("median: expected 5.5, got %v", got)
	}
	if got := Percentile(values, 0); got != 1 {
		t.Fatalf("p0: expected 1, got %v", got)
	}
	if got := Percentile(values, 100); got != 10 {
		t.Fatalf("p100: expected 10, got %v", got)
	}
}

func TestPercentileDoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	Percentile(values, 50)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Fatal("input slice was mutated")
	}
}
