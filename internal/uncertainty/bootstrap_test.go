package uncertainty

import (
	"fmt"
	"testing"

	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
)

func noisyRows(n int) []normalize.Row {
	rows := make([]normalize.Row, 0, n)
	for i := 0; i < n; i++ {
		spend := 400 + float64(i%7)*50
		rows = append(rows, normalize.Row{
			DailyRow:    domain.DailyRow{Date: fmt.Sprintf("2026-01-%02d", i+1), Spend: spend},
			NormRevenue: spend * (2.5 + 0.1*float64(i%5)),
			RevSource:   domain.RevenueFromPurchaseValue,
		})
	}
	return rows
}

func predictAt(budget float64) func(domain.HillParams) float64 {
	return func(p domain.HillParams) float64 {
		return curve.DailyRevenue(p, budget)
	}
}

func TestBands(t *testing.T) {
	var est Estimator

	t.Run("FewRowsFixedRatioBand", func(t *testing.T) {
		b := est.Bands(noisyRows(5), 1000, 42, domain.ModelBalanced, predictAt(500))
		if b.P10 != 700 || b.P90 != 1300 {
			t.Errorf("expected fixed 0.7/1.3 band, got %v/%v", b.P10, b.P90)
		}
	})

	t.Run("FewRowsBandIgnoresModelMode", func(t *testing.T) {
		b := est.Bands(noisyRows(5), 1000, 42, domain.ModelConservative, predictAt(500))
		if b.P10 != 700 || b.P90 != 1300 {
			t.Errorf("fallback band must stay at the fixed ratios, got %v/%v", b.P10, b.P90)
		}
	})

	t.Run("AdsetDetailDoesNotChangeBands", func(t *testing.T) {
		daily := noisyRows(30)
		mixed := make([]normalize.Row, 0, 3*len(daily))
		for _, r := range daily {
			mixed = append(mixed, r)
			for _, split := range []struct {
				id    string
				share float64
			}{{"as-1", 0.7}, {"as-2", 0.3}} {
				d := r
				d.AdsetID = split.id
				d.Spend *= split.share
				d.NormRevenue *= split.share
				mixed = append(mixed, d)
			}
		}

		a := est.Bands(daily, 1000, 42, domain.ModelBalanced, predictAt(500))
		b := est.Bands(mixed, 1000, 42, domain.ModelBalanced, predictAt(500))
		if a != b {
			t.Errorf("redundant ad-set rows changed the band: %+v vs %+v", a, b)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		first := est.Bands(noisyRows(30), 1000, 42, domain.ModelBalanced, predictAt(500))
		second := est.Bands(noisyRows(30), 1000, 42, domain.ModelBalanced, predictAt(500))
		if first != second {
			t.Errorf("same seed must reproduce bands: %+v vs %+v", first, second)
		}
	})

	t.Run("SeedChangesDraws", func(t *testing.T) {
		a := est.Bands(noisyRows(30), 1000, 1, domain.ModelBalanced, predictAt(500))
		b := est.Bands(noisyRows(30), 1000, 2, domain.ModelBalanced, predictAt(500))
		if a == b {
			t.Error("different seeds should give different bands on noisy data")
		}
	})

	t.Run("Ordered", func(t *testing.T) {
		b := est.Bands(noisyRows(30), 1000, 42, domain.ModelBalanced, predictAt(500))
		if !(b.P10 <= b.Mean && b.Mean <= b.P90) {
			t.Errorf("band out of order: %+v", b)
		}
	})

	t.Run("ConservativeWiderThanAggressive", func(t *testing.T) {
		cons := est.Bands(noisyRows(30), 1000, 42, domain.ModelConservative, predictAt(500))
		aggr := est.Bands(noisyRows(30), 1000, 42, domain.ModelAggressive, predictAt(500))
		if cons.P90-cons.P10 <= aggr.P90-aggr.P10 {
			t.Errorf("conservative band %v should be wider than aggressive %v",
				cons.P90-cons.P10, aggr.P90-aggr.P10)
		}
	})

	t.Run("NeverNegativeP10", func(t *testing.T) {
		b := est.Bands(nil, 10, 42, domain.ModelConservative, predictAt(500))
		if b.P10 < 0 {
			t.Errorf("p10 must not go negative, got %v", b.P10)
		}
	})
}

func TestSeed(t *testing.T) {
	t.Run("Stable", func(t *testing.T) {
		if Seed("tenant", "scope", "1000") != Seed("tenant", "scope", "1000") {
			t.Error("identical inputs must hash to the same seed")
		}
	})

	t.Run("FieldBoundariesMatter", func(t *testing.T) {
		if Seed("ab", "c") == Seed("a", "bc") {
			t.Error("seed must separate fields, not just concatenate")
		}
	})

	t.Run("KnownVector", func(t *testing.T) {
		// FNV-64a of "a" then a NUL separator.
		got := Seed("a")
		if got == 0 || got == Seed("b") {
			t.Errorf("degenerate seed %v", got)
		}
	})
}
