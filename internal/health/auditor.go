// Package health classifies how much modeling signal a scope's rows carry.
// Its readiness and confidence verdicts are the sole authority for mode
// gating downstream.
package health

import (
	"fmt"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/funnel"
	"github.com/opensource-marketing/kite/internal/normalize"
)

// Audit classifies the scope. allRows is the full history before lookback
// truncation; lookbackRows is the resolved window; skipped is the normalizer's
// drop count.
func Audit(allRows, lookbackRows []normalize.Row, cfg domain.ScenarioConfig, skipped int) domain.DataHealth {
	h := domain.DataHealth{
		AllTimeDays:  distinctDays(allRows),
		LookbackUsed: distinctDays(lookbackRows),
		SpendDays:    spendDays(lookbackRows),
		SkippedRows:  skipped,
	}

	for i := range lookbackRows {
		if lookbackRows[i].Spend > 0 {
			h.HasSpend = true
		}
		if lookbackRows[i].RevSource != domain.RevenueNone {
			h.HasRevenue = true
		}
		if lookbackRows[i].IsAdset() && lookbackRows[i].Spend > 0 {
			h.HasAdsetSpend = true
		}
	}
	h.HasFunnel = funnel.HasAnySignal(lookbackRows)

	h.Readiness = readiness(h, cfg)
	h.Confidence = confidence(h, cfg)
	h.Missing = missing(h, cfg)
	return h
}

func readiness(h domain.DataHealth, cfg domain.ScenarioConfig) domain.Readiness {
	if cfg.ScenarioType == domain.ScenarioPlanned {
		return domain.ReadinessPartial
	}
	if !h.HasSpend || !h.HasRevenue || h.LookbackUsed < 7 || h.SpendDays < 5 {
		return domain.ReadinessNotEnough
	}
	if h.LookbackUsed >= 14 && h.SpendDays >= 10 {
		return domain.ReadinessFull
	}
	return domain.ReadinessPartial
}

func confidence(h domain.DataHealth, cfg domain.ScenarioConfig) domain.Confidence {
	switch h.Readiness {
	case domain.ReadinessFull:
		if (cfg.Structure == domain.StructureABO || h.HasAdsetSpend) && h.HasFunnel {
			return domain.ConfidenceHigh
		}
		return domain.ConfidenceMedium
	case domain.ReadinessPartial:
		if h.HasSpend && h.HasRevenue {
			return domain.ConfidenceMedium
		}
	}
	return domain.ConfidenceLow
}

func missing(h domain.DataHealth, cfg domain.ScenarioConfig) []string {
	var out []string
	if !h.HasSpend {
		out = append(out, "spend")
	}
	if !h.HasRevenue {
		out = append(out, "revenue")
	}
	if !h.HasFunnel {
		out = append(out, "funnel")
	}
	if !h.HasAdsetSpend && cfg.Structure != domain.StructureABO {
		out = append(out, "adset_spend")
	}
	if h.Readiness == domain.ReadinessPartial && h.LookbackUsed < 14 {
		out = append(out, fmt.Sprintf("need %d more days of history", 14-h.LookbackUsed))
	}
	return out
}

func distinctDays(rows []normalize.Row) int {
	seen := make(map[string]bool, len(rows))
	for i := range rows {
		seen[rows[i].Date] = true
	}
	return len(seen)
}

// spendDays counts distinct dates whose campaign-level spend is positive.
// When only ad-set rows exist for a date, their sum stands in for the
// campaign total.
func spendDays(rows []normalize.Row) int {
	campaign := make(map[string]float64)
	adset := make(map[string]float64)
	for i := range rows {
		if rows[i].IsAdset() {
			adset[rows[i].Date] += rows[i].Spend
		} else {
			campaign[rows[i].Date] += rows[i].Spend
		}
	}

	n := 0
	for date, spend := range campaign {
		if spend > 0 {
			n++
			delete(adset, date)
		} else if adset[date] > 0 {
			n++
			delete(adset, date)
		}
	}
	for _, spend := range adset {
		if spend > 0 {
			n++
		}
	}
	return n
}
