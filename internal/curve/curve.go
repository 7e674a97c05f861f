// Package curve implements the adstocked saturation response model: a
// geometric spend carryover feeding a Hill curve, plus the heuristic
// estimator that fits curve parameters to a daily spend/revenue series.
package curve

import (
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/numeric"
)

// MinUsableRows is the smallest number of usable spend/revenue rows the
// estimator will fit on.
const MinUsableRows = 5

const (
	paramFloor      = 100
	defaultKQuantle = 0.5
)

// Adstock folds the spend series into its carried-over form:
// x_t = spend_t + lambda * x_{t-1}. The output has the same length and
// ordering as the input.
func Adstock(spend []float64, lambda float64) []float64 {
	out := make([]float64, len(spend))
	var carry float64
	for i, s := range spend {
		carry = s + lambda*carry
		out[i] = carry
	}
	return out
}

// Hill evaluates the saturating response at adstocked spend x.
func Hill(p domain.HillParams, x float64) float64 {
	if x <= 0 {
		return 0
	}
	return p.Alpha * x / (p.K + x)
}

// SteadyState returns the long-run adstocked level of a constant daily spend.
func SteadyState(dailySpend, lambda float64) float64 {
	if lambda >= 1 {
		lambda = 0.99
	}
	return dailySpend / (1 - lambda)
}

// DailyRevenue evaluates the curve at the steady-state adstock of a constant
// daily budget.
func DailyRevenue(p domain.HillParams, dailyBudget float64) float64 {
	return Hill(p, SteadyState(dailyBudget, p.Lambda))
}

// Estimator fits Hill parameters from a normalized daily series.
type Estimator struct {
	// KQuantile positions the half-saturation point within the observed
	// adstock distribution. Defaults to the median.
	KQuantile float64

	// Lambda is the carryover rate assumed during fitting.
	Lambda float64
}

// NewEstimator returns an estimator with default tuning.
func NewEstimator() *Estimator {
	return &Estimator{KQuantile: defaultKQuantle, Lambda: domain.DefaultHillParams().Lambda}
}

// Fit estimates curve parameters from the usable subset of rows. The input
// must carry one observation per day (the adstock recurrence walks rows as
// consecutive days); collapse mixed campaign and ad-set batches with
// normalize.DailySeries first. It returns ok=false when fewer than
// MinUsableRows rows qualify; callers then fall back to priors or defaults.
func (e *Estimator) Fit(rows []normalize.Row) (domain.HillParams, bool) {
	var spend, revenue []float64
	for i := range rows {
		if !rows[i].Usable() {
			continue
		}
		spend = append(spend, rows[i].Spend)
		revenue = append(revenue, rows[i].NormRevenue)
	}
	if len(spend) < MinUsableRows {
		return domain.HillParams{}, false
	}

	lambda := e.Lambda
	if lambda <= 0 || lambda >= 1 {
		lambda = domain.DefaultHillParams().Lambda
	}
	q := e.KQuantile
	if q <= 0 || q > 1 {
		q = defaultKQuantle
	}

	adstock := Adstock(spend, lambda)
	k := numeric.Percentile(adstock, q*100, 0)
	if k < paramFloor {
		k = paramFloor
	}

	meanAd := numeric.Mean(adstock, 0)
	meanRev := numeric.Mean(revenue, 0)

	// Invert the Hill form at the mean operating point to recover the
	// asymptote. Degenerate spend falls back to doubling observed revenue.
	var alpha float64
	if meanAd > 0 {
		alpha = meanRev * (k + meanAd) / meanAd
	} else {
		alpha = 2 * meanRev
	}
	if alpha < paramFloor {
		alpha = paramFloor
	}

	return domain.HillParams{Alpha: alpha, K: k, Gamma: 1, Lambda: lambda}, true
}
