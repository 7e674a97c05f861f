package numeric

import (
	"math"
	"testing"
)

func TestSafeDiv(t *testing.T) {
	t.Run("Normal", func(t *testing.T) {
		if got := SafeDiv(10, 4, -1); got != 2.5 {
			t.Errorf("expected 2.5, got %v", got)
		}
	})

	t.Run("ZeroDenominator", func(t *testing.T) {
		if got := SafeDiv(10, 0, -1); got != -1 {
			t.Errorf("expected fallback -1, got %v", got)
		}
	})

	t.Run("NaNOperands", func(t *testing.T) {
		if got := SafeDiv(math.NaN(), 2, 7); got != 7 {
			t.Errorf("expected fallback 7 for NaN numerator, got %v", got)
		}
		if got := SafeDiv(2, math.NaN(), 7); got != 7 {
			t.Errorf("expected fallback 7 for NaN denominator, got %v", got)
		}
	})

	t.Run("InfDenominator", func(t *testing.T) {
		if got := SafeDiv(2, math.Inf(1), 3); got != 3 {
			t.Errorf("expected fallback 3, got %v", got)
		}
	})
}

func TestClamp(t *testing.T) {
	cases := []struct {
		lo, hi, v, want float64
	}{
		{0, 1, 0.5, 0.5},
		{0, 1, -0.5, 0},
		{0, 1, 1.5, 1},
		{0.8, 1.25, 2.0, 1.25},
	}
	for _, c := range cases {
		if got := Clamp(c.lo, c.hi, c.v); got != c.want {
			t.Errorf("Clamp(%v,%v,%v) = %v, want %v", c.lo, c.hi, c.v, got, c.want)
		}
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}

	t.Run("Median", func(t *testing.T) {
		if got := Median(values, -1); got != 3 {
			t.Errorf("expected median 3, got %v", got)
		}
	})

	t.Run("LinearIndexSelection", func(t *testing.T) {
		// floor(75/100 * 4) = 3 -> sorted[3] = 4
		if got := Percentile(values, 75, -1); got != 4 {
			t.Errorf("expected p75 = 4, got %v", got)
		}
		// floor(25/100 * 4) = 1 -> sorted[1] = 2
		if got := Percentile(values, 25, -1); got != 2 {
			t.Errorf("expected p25 = 2, got %v", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := Percentile(nil, 50, -1); got != -1 {
			t.Errorf("expected fallback -1, got %v", got)
		}
	})

	t.Run("InputUnmutated", func(t *testing.T) {
		in := []float64{3, 1, 2}
		Percentile(in, 50, 0)
		if in[0] != 3 || in[1] != 1 || in[2] != 2 {
			t.Errorf("input slice was mutated: %v", in)
		}
	})
}

func TestIQR(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	// p75 = 4, p25 = 2
	if got := IQR(values, -1); got != 2 {
		t.Errorf("expected IQR 2, got %v", got)
	}
	if got := IQR(nil, -1); got != -1 {
		t.Errorf("expected fallback -1 for empty, got %v", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3}, -1); got != 2 {
		t.Errorf("expected 2, got %v", got)
	}
	if got := Mean(nil, -1); got != -1 {
		t.Errorf("expected fallback -1, got %v", got)
	}
}

func TestWeightedSum(t *testing.T) {
	if got := WeightedSum([]float64{1, 2}, []float64{0.4, 0.2}); math.Abs(got-0.8) > 1e-12 {
		t.Errorf("expected 0.8, got %v", got)
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(1234, 100); got != 1200 {
		t.Errorf("expected 1200, got %v", got)
	}
	if got := RoundTo(1250, 100); got != 1300 {
		t.Errorf("expected 1300, got %v", got)
	}
}
