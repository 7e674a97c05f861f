// Package priors derives starting curve parameters from reference campaign
// history, for scenarios whose own scope has too little data to fit on.
package priors

import (
	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/numeric"

	"github.com/opensource-marketing/kite/internal/domain"
)

const (
	// FallbackROAS is assumed when the reference pool carries no revenue
	// signal.
	FallbackROAS = 3.0

	// FallbackK is assumed when the reference pool carries no spend signal.
	FallbackK = 3000

	alphaFloor = 100
)

// Build pools the reference rows and derives prior curve parameters. An empty
// or signal-free pool yields pure fallback priors, which are still usable.
func Build(reference []normalize.Row) domain.HillParams {
	lambda := domain.DefaultHillParams().Lambda

	var spend, ratios []float64
	for i := range reference {
		if !reference[i].Usable() {
			continue
		}
		spend = append(spend, reference[i].Spend)
		ratios = append(ratios, reference[i].NormRevenue/reference[i].Spend)
	}

	// Median of per-row ROAS resists single blowout days in the pool.
	roas := numeric.Median(ratios, FallbackROAS)
	if roas <= 0 {
		roas = FallbackROAS
	}

	k := float64(FallbackK)
	if len(spend) > 0 {
		ad := curve.Adstock(spend, lambda)
		k = numeric.Median(ad, FallbackK)
		if k < alphaFloor {
			k = alphaFloor
		}
	}

	alpha := 2 * roas * k
	if alpha < alphaFloor {
		alpha = alphaFloor
	}

	return domain.HillParams{Alpha: alpha, K: k, Gamma: 1, Lambda: lambda}
}

// Blend shrinks fitted parameters toward priors with the given prior weight
// in [0, 1]. Weight 0 returns the fit untouched.
func Blend(fitted, prior domain.HillParams, priorWeight float64) domain.HillParams {
	w := numeric.Clamp01(priorWeight)
	return domain.HillParams{
		Alpha:  (1-w)*fitted.Alpha + w*prior.Alpha,
		K:      (1-w)*fitted.K + w*prior.K,
		Gamma:  1,
		Lambda: fitted.Lambda,
	}
}
