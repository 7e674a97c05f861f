// Package adjust computes the multiplicative modifiers applied on top of the
// fitted response curve: funnel quality, creative coverage, and promo lift.
package adjust

import (
	"sort"

	"github.com/opensource-marketing/kite/internal/funnel"
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/numeric"
)

const (
	qualityFloor = 0.8
	qualityCeil  = 1.25
	qualitySlope = 0.12
	zClamp       = 2.5

	creativeFloor = 0.7
	creativeCeil  = 1.0

	promoCeil = 1.35

	// recentDays is the trailing window whose median rates stand in for the
	// account's current funnel state.
	recentDays = 7
)

var metricWeights = struct {
	ctr, atcr, icr, cvr float64
}{0.4, 0.2, 0.2, 0.2}

// Quality scores the recent funnel against its historical benchmarks and maps
// the composite z-score into a bounded multiplier. Metrics with no valid
// recent rate or no benchmark drop out and the remaining weights renormalize.
// No usable metric at all means neutral.
func Quality(rows []normalize.Row) float64 {
	bench := funnel.HistoricalBenchmarks(rows)
	recent := recentRates(rows)

	type metric struct {
		rate   funnel.Rate
		bench  funnel.Benchmark
		weight float64
	}
	metrics := []metric{
		{recent.CTR, bench.CTR, metricWeights.ctr},
		{recent.ATCR, bench.ATCR, metricWeights.atcr},
		{recent.ICR, bench.ICR, metricWeights.icr},
		{recent.CVR, bench.CVR, metricWeights.cvr},
	}

	var score, weight float64
	for _, m := range metrics {
		if !m.rate.Valid || m.bench.IQR <= 0 {
			continue
		}
		z := numeric.Clamp(-zClamp, zClamp, (m.rate.Value-m.bench.Median)/m.bench.IQR)
		score += m.weight * z
		weight += m.weight
	}
	if weight == 0 {
		return 1.0
	}
	return numeric.Clamp(qualityFloor, qualityCeil, 1+qualitySlope*(score/weight))
}

// Creative maps creative coverage relative to budget into a saturation
// multiplier. One active creative per 1000 of daily budget counts as full
// coverage.
func Creative(activeCreatives int, dailyBudget float64) float64 {
	slots := dailyBudget / 1000
	if slots < 1 {
		slots = 1
	}
	csr := numeric.Clamp01(float64(activeCreatives) / slots)
	return numeric.Clamp(creativeFloor, creativeCeil, creativeFloor+(creativeCeil-creativeFloor)*csr)
}

// Promo converts an active discount percentage into an expected demand lift.
// The quadratic term rewards deep discounts mildly; the multiplier never drops
// below neutral.
func Promo(active bool, discountPct float64) float64 {
	if !active {
		return 1.0
	}
	d := numeric.Clamp(0, 60, discountPct)
	return numeric.Clamp(1.0, promoCeil, 1+0.012*d+0.00012*d*d)
}

// recentRates computes the median per-metric rate over the trailing
// recentDays distinct dates of the window.
func recentRates(rows []normalize.Row) funnel.Rates {
	recent := trailing(rows, recentDays)

	var ctr, atcr, icr, cvr []float64
	for _, r := range recent {
		rr := funnel.RowRates(r)
		if rr.CTR.Valid {
			ctr = append(ctr, rr.CTR.Value)
		}
		if rr.ATCR.Valid {
			atcr = append(atcr, rr.ATCR.Value)
		}
		if rr.ICR.Valid {
			icr = append(icr, rr.ICR.Value)
		}
		if rr.CVR.Valid {
			cvr = append(cvr, rr.CVR.Value)
		}
	}
	return funnel.Rates{
		CTR:  medianRate(ctr),
		ATCR: medianRate(atcr),
		ICR:  medianRate(icr),
		CVR:  medianRate(cvr),
	}
}

func medianRate(values []float64) funnel.Rate {
	if len(values) == 0 {
		return funnel.Rate{}
	}
	return funnel.Rate{Value: numeric.Median(values, 0), Valid: true}
}

// trailing keeps rows from the last n distinct dates.
func trailing(rows []normalize.Row, n int) []normalize.Row {
	dates := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	if len(dates) <= n {
		return rows
	}
	sort.Strings(dates)
	cutoff := dates[len(dates)-n]

	out := make([]normalize.Row, 0, len(rows))
	for _, r := range rows {
		if r.Date >= cutoff {
			out = append(out, r)
		}
	}
	return out
}
