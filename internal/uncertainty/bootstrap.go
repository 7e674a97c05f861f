// Package uncertainty derives p10/p90 bands around a prediction via a seeded
// non-parametric bootstrap over the daily rows.
package uncertainty

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/numeric"
)

// MinBootstrapRows is the threshold below which the fixed-ratio band is used
// instead of resampling.
const MinBootstrapRows = 7

// DefaultResamples caps the number of bootstrap draws.
const DefaultResamples = 40

const (
	conservativeWidth = 1.15
	aggressiveWidth   = 0.95
)

// Band is the empirical uncertainty interval.
type Band struct {
	Mean float64
	P10  float64
	P90  float64
}

// Estimator runs the bootstrap. The zero value is usable.
type Estimator struct {
	// Resamples caps the number of draws. Zero means DefaultResamples.
	Resamples int

	// Curve refits parameters on each resample. Nil means a default
	// estimator.
	Curve *curve.Estimator
}

// Bands computes the uncertainty interval around pointMean. predictAt maps
// refitted parameters to a revenue prediction at the queried budget; the same
// adjustments and allocation the point estimate used must be baked into it.
// The seed fixes the resampling so identical inputs give identical bands.
func (e *Estimator) Bands(rows []normalize.Row, pointMean float64, seed int64, mode domain.ModelMode, predictAt func(domain.HillParams) float64) Band {
	// One observation per day; ad-set detail must not widen the resample
	// pool. A no-op on input that is already daily.
	daily := normalize.DailySeries(rows)

	usable := make([]normalize.Row, 0, len(daily))
	for i := range daily {
		if daily[i].Usable() {
			usable = append(usable, daily[i])
		}
	}

	// Below the resampling threshold the band is the fixed ratio pair,
	// regardless of model mode.
	if len(usable) < MinBootstrapRows {
		return Band{Mean: pointMean, P10: 0.7 * pointMean, P90: 1.3 * pointMean}
	}

	est := e.Curve
	if est == nil {
		est = curve.NewEstimator()
	}
	draws := e.Resamples
	if draws <= 0 {
		draws = DefaultResamples
	}
	if draws > len(usable) {
		draws = len(usable)
	}

	rng := rand.New(rand.NewSource(seed))
	resample := make([]normalize.Row, len(usable))
	predictions := make([]float64, 0, draws)
	for d := 0; d < draws; d++ {
		for i := range resample {
			resample[i] = usable[rng.Intn(len(usable))]
		}
		params, ok := est.Fit(resample)
		if !ok {
			continue
		}
		predictions = append(predictions, predictAt(params))
	}
	if len(predictions) == 0 {
		return Band{Mean: pointMean, P10: 0.7 * pointMean, P90: 1.3 * pointMean}
	}

	sort.Float64s(predictions)
	band := Band{
		Mean: numeric.Mean(predictions, pointMean),
		P10:  numeric.Percentile(predictions, 10, pointMean),
		P90:  numeric.Percentile(predictions, 90, pointMean),
	}
	return widen(band, mode)
}

// widen applies the model-mode width multiplier around the mean.
func widen(b Band, mode domain.ModelMode) Band {
	mult := 1.0
	switch mode {
	case domain.ModelConservative:
		mult = conservativeWidth
	case domain.ModelAggressive:
		mult = aggressiveWidth
	}
	b.P10 = b.Mean - (b.Mean-b.P10)*mult
	b.P90 = b.Mean + (b.P90-b.Mean)*mult
	if b.P10 < 0 {
		b.P10 = 0
	}
	if b.P10 > b.Mean {
		b.P10 = b.Mean
	}
	if b.P90 < b.Mean {
		b.P90 = b.Mean
	}
	return b
}

// Seed hashes the canonicalized simulation input into a deterministic
// bootstrap seed.
func Seed(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(h.Sum64())
}
