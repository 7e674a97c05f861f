// Package allocation splits a campaign's daily budget across its ad-sets.
// ABO campaigns treat the budget as an envelope over per-ad-set budgets;
// CBO and ASC pool the budget and split it from history plus a marginal
// response refinement.
package allocation

import (
	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
)

const (
	baseBlend  = 0.6
	scoreBlend = 0.4
)

// Engine derives allocation plans.
type Engine struct {
	estimator *curve.Estimator
}

// NewEngine returns an allocation engine fitting per-ad-set curves with the
// given estimator.
func NewEngine(est *curve.Estimator) *Engine {
	if est == nil {
		est = curve.NewEstimator()
	}
	return &Engine{estimator: est}
}

// Plan splits dailyBudget over adSets. fallback parameterizes ad-sets whose
// own rows cannot support a fit. Ad-set order in the plan follows the declared
// order; ties and fallbacks never reorder.
func (e *Engine) Plan(structure domain.Structure, dailyBudget float64, adSets []domain.AdSet, rows []normalize.Row, fallback domain.HillParams) domain.AllocationPlan {
	if len(adSets) == 0 {
		return domain.AllocationPlan{}
	}

	if structure == domain.StructureABO {
		return equalPlan(dailyBudget, adSets, domain.ShareABOEnvelope)
	}

	shares, source := historicalShares(adSets, rows)
	shares = e.refine(shares, dailyBudget, adSets, rows, fallback)

	entries := make([]domain.AllocationEntry, len(adSets))
	for i, as := range adSets {
		entries[i] = domain.AllocationEntry{
			ID:     as.ID,
			Name:   as.Name,
			Share:  shares[i],
			Budget: dailyBudget * shares[i],
			Source: source,
		}
	}
	return domain.AllocationPlan{Entries: entries}
}

func equalPlan(dailyBudget float64, adSets []domain.AdSet, source domain.ShareSource) domain.AllocationPlan {
	share := 1.0 / float64(len(adSets))
	entries := make([]domain.AllocationEntry, len(adSets))
	for i, as := range adSets {
		entries[i] = domain.AllocationEntry{
			ID:     as.ID,
			Name:   as.Name,
			Share:  share,
			Budget: dailyBudget * share,
			Source: source,
		}
	}
	return domain.AllocationPlan{Entries: entries}
}

// historicalShares sums each ad-set's lookback spend. Ad-sets absent from
// history weigh in at 1/N before normalization; a history that covers every
// declared ad-set reports as historical, anything less as equal fallback.
func historicalShares(adSets []domain.AdSet, rows []normalize.Row) ([]float64, domain.ShareSource) {
	n := len(adSets)
	spend := make(map[string]float64, n)
	var total float64
	for i := range rows {
		if !rows[i].IsAdset() {
			continue
		}
		spend[rows[i].AdsetKey()] += rows[i].Spend
		total += rows[i].Spend
	}

	if total <= 0 {
		return equalShares(n), domain.ShareEqualFallback
	}

	source := domain.ShareHistorical
	weights := make([]float64, n)
	var sum float64
	for i, as := range adSets {
		w := spend[as.ID]
		if w <= 0 {
			w = total / float64(n)
			source = domain.ShareEqualFallback
		}
		weights[i] = w
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, source
}

// refine nudges base shares toward ad-sets with the steepest marginal
// response at their implied sub-budgets. Without any per-ad-set rows the base
// shares stand.
func (e *Engine) refine(base []float64, dailyBudget float64, adSets []domain.AdSet, rows []normalize.Row, fallback domain.HillParams) []float64 {
	byAdset := make(map[string][]normalize.Row)
	for i := range rows {
		if rows[i].IsAdset() {
			key := rows[i].AdsetKey()
			byAdset[key] = append(byAdset[key], rows[i])
		}
	}
	if len(byAdset) == 0 {
		return base
	}

	scores := make([]float64, len(adSets))
	var scoreSum float64
	for i, as := range adSets {
		params := fallback
		if fitted, ok := e.estimator.Fit(byAdset[as.ID]); ok {
			params = fitted
		}
		sub := dailyBudget * base[i]
		scores[i] = marginalROAS(params, sub)
		scoreSum += scores[i]
	}
	if scoreSum <= 0 {
		return base
	}

	out := make([]float64, len(base))
	var sum float64
	for i := range base {
		out[i] = baseBlend*base[i] + scoreBlend*scores[i]/scoreSum
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// marginalROAS is the finite-difference slope of the response at sub-budget b.
func marginalROAS(p domain.HillParams, b float64) float64 {
	delta := 0.05 * b
	if delta < 50 {
		delta = 50
	}
	gain := curve.DailyRevenue(p, b+delta) - curve.DailyRevenue(p, b)
	if gain < 0 {
		return 0
	}
	return gain / delta
}

func equalShares(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.0 / float64(n)
	}
	return out
}
