package predict

import (
	"math"
	"testing"

	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/domain"
)

func health(readiness domain.Readiness, confidence domain.Confidence) domain.DataHealth {
	return domain.DataHealth{Readiness: readiness, Confidence: confidence}
}

func TestChooseMode(t *testing.T) {
	full := health(domain.ReadinessFull, domain.ConfidenceHigh)
	thin := health(domain.ReadinessPartial, domain.ConfidenceMedium)

	cases := []struct {
		name      string
		strategy  domain.Strategy
		structure domain.Structure
		health    domain.DataHealth
		want      domain.Mode
	}{
		{"StructureAwareABO", domain.StrategyStructureAware, domain.StructureABO, full, domain.ModeCurveOnly},
		{"StructureAwareCBOAdequate", domain.StrategyStructureAware, domain.StructureCBO, full, domain.ModeCurveAllocation},
		{"StructureAwareCBOThin", domain.StrategyStructureAware, domain.StructureCBO, thin, domain.ModeHybrid},
		{"StructureAwareASCThin", domain.StrategyStructureAware, domain.StructureASC, thin, domain.ModeHybrid},
		{"ABODirectAlwaysCurveOnly", domain.StrategyABODirect, domain.StructureCBO, thin, domain.ModeCurveOnly},
		{"ColdStartABO", domain.StrategyColdStart, domain.StructureABO, thin, domain.ModeCurvePriors},
		{"ColdStartASC", domain.StrategyColdStart, domain.StructureASC, full, domain.ModeHybrid},
		{"MultiGeoAlwaysHybrid", domain.StrategyMultiGeo, domain.StructureABO, full, domain.ModeHybrid},
		{"LongHorizonAlwaysCurveOnly", domain.StrategyLongHorizon, domain.StructureASC, full, domain.ModeCurveOnly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := domain.ScenarioConfig{StrategyFamily: tc.strategy, Structure: tc.structure}
			mode, why := ChooseMode(cfg, tc.health)
			if mode != tc.want {
				t.Errorf("mode = %s, want %s", mode, tc.want)
			}
			if len(why) == 0 {
				t.Error("expected a reasoning trail")
			}
		})
	}

	t.Run("LowConfidenceIsThin", func(t *testing.T) {
		cfg := domain.ScenarioConfig{StrategyFamily: domain.StrategyStructureAware, Structure: domain.StructureCBO}
		mode, _ := ChooseMode(cfg, health(domain.ReadinessFull, domain.ConfidenceLow))
		if mode != domain.ModeHybrid {
			t.Errorf("low confidence should count as thin, got %s", mode)
		}
	})

	t.Run("OverrideForcesIncrementality", func(t *testing.T) {
		cfg := domain.ScenarioConfig{
			StrategyFamily:      domain.StrategyStructureAware,
			Structure:           domain.StructureABO,
			ForceIncrementality: true,
		}
		mode, _ := ChooseMode(cfg, full)
		if mode != domain.ModeIncrementality {
			t.Errorf("override ignored, got %s", mode)
		}
	})
}

func TestRevenue(t *testing.T) {
	params := domain.DefaultHillParams()
	adj := domain.Adjustments{Quality: 1.1, Creative: 0.9, Promo: 1.0}

	t.Run("PointAppliesAdjustments", func(t *testing.T) {
		raw := curve.DailyRevenue(params, 1000)
		got := Point(params, adj, 1000)
		if math.Abs(got-raw*1.1*0.9) > 1e-9 {
			t.Errorf("Point = %v, want %v", got, raw*0.99)
		}
	})

	t.Run("CurveOnlySinglePoint", func(t *testing.T) {
		total, breakdown, note := Revenue(domain.ModeCurveOnly, domain.StructureCBO, params, adj, 1000, domain.AllocationPlan{})
		if breakdown != nil || note != "" {
			t.Errorf("curve-only should have no breakdown or note")
		}
		if math.Abs(total-Point(params, adj, 1000)) > 1e-9 {
			t.Errorf("total = %v, want single-point evaluation", total)
		}
	})

	t.Run("ABOEnvelopeSumsEvenInCurveOnly", func(t *testing.T) {
		plan := domain.AllocationPlan{Entries: []domain.AllocationEntry{
			{ID: "a", Share: 0.5, Budget: 500},
			{ID: "b", Share: 0.5, Budget: 500},
		}}
		total, breakdown, _ := Revenue(domain.ModeCurveOnly, domain.StructureABO, params, adj, 1000, plan)
		want := 2 * Point(params, adj, 500)
		if math.Abs(total-want) > 1e-9 {
			t.Errorf("total = %v, want per-ad-set sum %v", total, want)
		}
		if len(breakdown) != 2 {
			t.Errorf("expected breakdown for ABO envelope, got %d entries", len(breakdown))
		}
	})

	t.Run("AllocationModeSumsSubBudgets", func(t *testing.T) {
		plan := domain.AllocationPlan{Entries: []domain.AllocationEntry{
			{ID: "a", Share: 0.6, Budget: 600},
			{ID: "b", Share: 0.4, Budget: 400},
		}}
		total, breakdown, _ := Revenue(domain.ModeCurveAllocation, domain.StructureCBO, params, adj, 1000, plan)
		want := Point(params, adj, 600) + Point(params, adj, 400)
		if math.Abs(total-want) > 1e-9 {
			t.Errorf("total = %v, want %v", total, want)
		}
		if len(breakdown) != 2 {
			t.Fatalf("expected 2 breakdown entries, got %d", len(breakdown))
		}
		// Splitting a saturating curve yields more than the pooled point.
		if pooled := Point(params, adj, 1000); total <= pooled {
			t.Errorf("summed sub-budgets %v should exceed pooled %v", total, pooled)
		}
	})

	t.Run("AllocationModeWithoutPlanFallsBack", func(t *testing.T) {
		total, breakdown, _ := Revenue(domain.ModeHybrid, domain.StructureCBO, params, adj, 1000, domain.AllocationPlan{})
		if breakdown != nil {
			t.Error("no plan should mean no breakdown")
		}
		if math.Abs(total-Point(params, adj, 1000)) > 1e-9 {
			t.Errorf("total = %v, want whole-budget evaluation", total)
		}
	})

	t.Run("IncrementalityPlaceholder", func(t *testing.T) {
		total, _, note := Revenue(domain.ModeIncrementality, domain.StructureCBO, params, adj, 1000, domain.AllocationPlan{})
		if note != IncrementalityNote {
			t.Errorf("note = %q, want placeholder tag", note)
		}
		want := 0.85 * Point(params, adj, 1000)
		if math.Abs(total-want) > 1e-9 {
			t.Errorf("total = %v, want %v", total, want)
		}
	})
}
