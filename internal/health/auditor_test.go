package health

import (
	"fmt"
	"strings"
	"testing"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/normalize"
)

func healthyRows(n int, structure domain.Structure) []normalize.Row {
	rows := make([]normalize.Row, 0, n*2)
	for i := 0; i < n; i++ {
		date := fmt.Sprintf("2026-01-%02d", i+1)
		rows = append(rows, normalize.Row{
			DailyRow: domain.DailyRow{
				Date: date, Spend: 500,
				Impressions: 10000, Clicks: 200,
				HasImpressions: true, HasClicks: true,
			},
			NormRevenue: 1500,
			RevSource:   domain.RevenueFromPurchaseValue,
		})
		if structure != domain.StructureABO {
			rows = append(rows, normalize.Row{
				DailyRow:    domain.DailyRow{Date: date, AdsetID: "as-1", Spend: 300},
				NormRevenue: 900,
				RevSource:   domain.RevenueFromPurchaseValue,
			})
		}
	}
	return rows
}

func existingCfg(s domain.Structure) domain.ScenarioConfig {
	return domain.ScenarioConfig{ScenarioType: domain.ScenarioExisting, Structure: s}
}

func TestAudit(t *testing.T) {
	t.Run("FullHighConfidence", func(t *testing.T) {
		rows := healthyRows(30, domain.StructureCBO)
		h := Audit(rows, rows, existingCfg(domain.StructureCBO), 0)
		if h.Readiness != domain.ReadinessFull {
			t.Errorf("readiness = %s, want full", h.Readiness)
		}
		if h.Confidence != domain.ConfidenceHigh {
			t.Errorf("confidence = %s, want high", h.Confidence)
		}
		if len(h.Missing) != 0 {
			t.Errorf("expected nothing missing, got %v", h.Missing)
		}
	})

	t.Run("ABOWithoutAdsetRowsStillHigh", func(t *testing.T) {
		rows := healthyRows(30, domain.StructureABO)
		h := Audit(rows, rows, existingCfg(domain.StructureABO), 0)
		if h.Confidence != domain.ConfidenceHigh {
			t.Errorf("confidence = %s, want high for ABO without adset spend", h.Confidence)
		}
	})

	t.Run("CBOWithoutAdsetSpendDegrades", func(t *testing.T) {
		rows := healthyRows(30, domain.StructureABO)
		h := Audit(rows, rows, existingCfg(domain.StructureCBO), 0)
		if h.Confidence != domain.ConfidenceMedium {
			t.Errorf("confidence = %s, want medium", h.Confidence)
		}
		if !contains(h.Missing, "adset_spend") {
			t.Errorf("missing should list adset_spend, got %v", h.Missing)
		}
	})

	t.Run("NoFunnelDegrades", func(t *testing.T) {
		rows := healthyRows(30, domain.StructureCBO)
		for i := range rows {
			rows[i].HasImpressions = false
			rows[i].HasClicks = false
		}
		h := Audit(rows, rows, existingCfg(domain.StructureCBO), 0)
		if h.Confidence != domain.ConfidenceMedium {
			t.Errorf("confidence = %s, want medium without funnel", h.Confidence)
		}
		if !contains(h.Missing, "funnel") {
			t.Errorf("missing should list funnel, got %v", h.Missing)
		}
	})

	t.Run("ShortWindowIsPartialWithHint", func(t *testing.T) {
		rows := healthyRows(10, domain.StructureABO)
		h := Audit(rows, rows, existingCfg(domain.StructureABO), 0)
		if h.Readiness != domain.ReadinessPartial {
			t.Errorf("readiness = %s, want partial", h.Readiness)
		}
		if h.Confidence != domain.ConfidenceMedium {
			t.Errorf("confidence = %s, want medium for partial with basics", h.Confidence)
		}
		found := false
		for _, m := range h.Missing {
			if strings.Contains(m, "need 4 more days") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a need-more-days hint, got %v", h.Missing)
		}
	})

	t.Run("TooFewSpendDaysNotEnough", func(t *testing.T) {
		rows := healthyRows(20, domain.StructureABO)
		for i := 4; i < len(rows); i++ {
			rows[i].Spend = 0
		}
		h := Audit(rows, rows, existingCfg(domain.StructureABO), 0)
		if h.Readiness != domain.ReadinessNotEnough {
			t.Errorf("readiness = %s, want not_enough with 4 spend days", h.Readiness)
		}
	})

	t.Run("PlannedIsAlwaysPartial", func(t *testing.T) {
		cfg := domain.ScenarioConfig{ScenarioType: domain.ScenarioPlanned, Structure: domain.StructureASC}
		h := Audit(nil, nil, cfg, 0)
		if h.Readiness != domain.ReadinessPartial {
			t.Errorf("readiness = %s, want partial for planned", h.Readiness)
		}
		if h.Confidence != domain.ConfidenceLow {
			t.Errorf("confidence = %s, want low without any data", h.Confidence)
		}
	})

	t.Run("EmptyExistingMissingEverything", func(t *testing.T) {
		h := Audit(nil, nil, existingCfg(domain.StructureCBO), 0)
		if h.Readiness != domain.ReadinessNotEnough {
			t.Errorf("readiness = %s, want not_enough", h.Readiness)
		}
		for _, want := range []string{"spend", "revenue", "funnel", "adset_spend"} {
			if !contains(h.Missing, want) {
				t.Errorf("missing should list %s, got %v", want, h.Missing)
			}
		}
	})

	t.Run("AdsetOnlySpendStillCounts", func(t *testing.T) {
		var rows []normalize.Row
		for i := 0; i < 14; i++ {
			rows = append(rows, normalize.Row{
				DailyRow:    domain.DailyRow{Date: fmt.Sprintf("2026-01-%02d", i+1), AdsetID: "as-1", Spend: 200},
				NormRevenue: 600,
				RevSource:   domain.RevenueFromFallbackAOV,
			})
		}
		h := Audit(rows, rows, existingCfg(domain.StructureCBO), 0)
		if h.SpendDays != 14 {
			t.Errorf("spendDays = %d, want 14 from adset-level rows", h.SpendDays)
		}
		if h.Readiness != domain.ReadinessFull {
			t.Errorf("readiness = %s, want full", h.Readiness)
		}
	})
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
