// Package predict maps a scenario onto an execution mode and evaluates the
// adjusted response curve at a daily budget.
package predict

import (
	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/domain"
)

// IncrementalityNote marks placeholder incrementality output.
const IncrementalityNote = "incrementality placeholder"

const incrementalityScale = 0.85

// ChooseMode deterministically maps (strategy, structure, data health) onto an
// execution mode, returning the reasoning trail alongside. Incrementality is
// reachable only through the explicit override.
func ChooseMode(cfg domain.ScenarioConfig, h domain.DataHealth) (domain.Mode, []string) {
	if cfg.ForceIncrementality {
		return domain.ModeIncrementality, []string{"incrementality forced by override"}
	}

	thin := h.Confidence == domain.ConfidenceLow || h.Readiness == domain.ReadinessPartial
	why := []string{
		"strategy=" + string(cfg.StrategyFamily),
		"structure=" + string(cfg.Structure),
	}
	if thin {
		why = append(why, "data classified thin")
	} else {
		why = append(why, "data adequate")
	}

	var mode domain.Mode
	switch cfg.StrategyFamily {
	case domain.StrategyABODirect, domain.StrategyLongHorizon:
		mode = domain.ModeCurveOnly
	case domain.StrategyMultiGeo:
		mode = domain.ModeHybrid
	case domain.StrategyColdStart:
		if cfg.Structure == domain.StructureABO {
			mode = domain.ModeCurvePriors
		} else {
			mode = domain.ModeHybrid
		}
	default: // structure-aware
		switch {
		case cfg.Structure == domain.StructureABO:
			mode = domain.ModeCurveOnly
		case thin:
			mode = domain.ModeHybrid
		default:
			mode = domain.ModeCurveAllocation
		}
	}
	return mode, append(why, "mode="+string(mode))
}

// UsesAllocation reports whether the mode predicts per ad-set and sums.
func UsesAllocation(mode domain.Mode) bool {
	return mode == domain.ModeCurveAllocation || mode == domain.ModeHybrid
}

// UsesPriors reports whether the mode draws parameters from the prior builder
// when the scope's own rows cannot support a fit.
func UsesPriors(mode domain.Mode) bool {
	return mode == domain.ModeCurvePriors || mode == domain.ModeHybrid
}

// Point evaluates adjusted daily revenue at one budget level.
func Point(params domain.HillParams, adj domain.Adjustments, dailyBudget float64) float64 {
	return curve.DailyRevenue(params, dailyBudget) * adj.Product()
}

// Revenue evaluates the mode's prediction at the daily budget. Allocation
// modes evaluate each ad-set at its allocated sub-budget and sum, as do ABO
// envelopes where the declared budget is a sum of per-ad-set budgets;
// everything else evaluates the whole budget once. Incrementality scales the
// baseline and tags the prediction as a placeholder.
func Revenue(mode domain.Mode, structure domain.Structure, params domain.HillParams, adj domain.Adjustments, dailyBudget float64, plan domain.AllocationPlan) (float64, []domain.AdsetPrediction, string) {
	if mode == domain.ModeIncrementality {
		return incrementalityScale * Point(params, adj, dailyBudget), nil, IncrementalityNote
	}

	perAdset := UsesAllocation(mode) || structure == domain.StructureABO
	if !perAdset || len(plan.Entries) == 0 {
		return Point(params, adj, dailyBudget), nil, ""
	}

	var total float64
	breakdown := make([]domain.AdsetPrediction, len(plan.Entries))
	for i, e := range plan.Entries {
		rev := Point(params, adj, e.Budget)
		total += rev
		breakdown[i] = domain.AdsetPrediction{ID: e.ID, Name: e.Name, Budget: e.Budget, Revenue: rev}
	}
	return total, breakdown, ""
}
