// Package funnel computes per-row conversion rates and their historical
// benchmarks. Absent upstream counts propagate as invalid rates, never as
// spurious zeros.
package funnel

import (
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/numeric"
)

// IQRFloor prevents division by a near-zero spread in downstream z-scores.
const IQRFloor = 0.005

// Rate is a conversion rate that may be missing.
type Rate struct {
	Value float64
	Valid bool
}

// Rates holds the four funnel step rates for one row.
type Rates struct {
	CTR  Rate // clicks / impressions
	ATCR Rate // add-to-cart / clicks
	ICR  Rate // initiate-checkout / add-to-cart
	CVR  Rate // purchases / initiate-checkout
}

// Benchmark is the historical center and spread of one metric.
type Benchmark struct {
	Median float64
	IQR    float64
}

// Benchmarks are the per-metric historical references.
type Benchmarks struct {
	CTR  Benchmark
	ATCR Benchmark
	ICR  Benchmark
	CVR  Benchmark
}

// RowRates computes the four step rates for one row. A rate is valid only
// when both its numerator and denominator were reported and the denominator
// is positive.
func RowRates(r normalize.Row) Rates {
	return Rates{
		CTR:  rate(r.Clicks, r.HasClicks, r.Impressions, r.HasImpressions),
		ATCR: rate(r.ATC, r.HasATC, r.Clicks, r.HasClicks),
		ICR:  rate(r.IC, r.HasIC, r.ATC, r.HasATC),
		CVR:  rate(r.Purchases, true, r.IC, r.HasIC),
	}
}

// HistoricalBenchmarks computes median/IQR per metric over the given rows,
// flooring the IQR at IQRFloor.
func HistoricalBenchmarks(rows []normalize.Row) Benchmarks {
	var ctr, atcr, icr, cvr []float64
	for _, r := range rows {
		rr := RowRates(r)
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
	return Benchmarks{
		CTR:  benchmark(ctr),
		ATCR: benchmark(atcr),
		ICR:  benchmark(icr),
		CVR:  benchmark(cvr),
	}
}

// HasAnySignal reports whether any rate was computable across the rows.
func HasAnySignal(rows []normalize.Row) bool {
	for _, r := range rows {
		rr := RowRates(r)
		if rr.CTR.Valid || rr.ATCR.Valid || rr.ICR.Valid || rr.CVR.Valid {
			return true
		}
	}
	return false
}

func rate(num float64, numReported bool, den float64, denReported bool) Rate {
	if !numReported || !denReported || den <= 0 {
		return Rate{}
	}
	v := numeric.SafeDiv(num, den, -1)
	if v < 0 {
		return Rate{}
	}
	return Rate{Value: v, Valid: true}
}

func benchmark(values []float64) Benchmark {
	if len(values) == 0 {
		return Benchmark{}
	}
	iqr := numeric.IQR(values, 0)
	if iqr < IQRFloor {
		iqr = IQRFloor
	}
	return Benchmark{Median: numeric.Median(values, 0), IQR: iqr}
}
