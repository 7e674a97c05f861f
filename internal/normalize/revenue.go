// Package normalize coerces heterogeneous daily rows into the canonical form
// the modeling pipeline consumes: one revenue value per row with a provenance
// tag, cleaned fields, and an explicit skip count for malformed input.
package normalize

import (
	"strings"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/numeric"
)

// DefaultFallbackAOV is the last-resort average order value applied when a
// row carries purchases but no value and no manual AOV is supplied.
const DefaultFallbackAOV = 150

// Row is a daily row with its canonical revenue resolved. Callers must treat
// RevSource == RevenueNone as informative only when the row has zero spend.
type Row struct {
	domain.DailyRow

	NormRevenue float64
	RevSource   domain.RevenueSource
}

// Options tune the normalizer.
type Options struct {
	// ManualAOV is the scenario's expected average order value. Zero means
	// "not supplied".
	ManualAOV float64

	// FallbackAOV overrides DefaultFallbackAOV when positive.
	FallbackAOV float64
}

// Rows normalizes a batch. Rows that fail coercion (empty date, non-finite
// spend) are dropped and counted; nothing ever panics or errors. Field-level
// problems (negative counts, out-of-range discounts) are clamped in place.
func Rows(in []domain.DailyRow, opts Options) (out []Row, skipped int) {
	fallbackAOV := opts.FallbackAOV
	if fallbackAOV <= 0 {
		fallbackAOV = DefaultFallbackAOV
	}

	out = make([]Row, 0, len(in))
	for _, r := range in {
		if r.Date == "" || !numeric.IsFinite(r.Spend) {
			skipped++
			continue
		}

		clean := r
		clean.Geo = strings.ToUpper(strings.TrimSpace(r.Geo))
		if clean.Spend < 0 {
			clean.Spend = 0
		}
		clean.Purchases = clampCount(clean.Purchases)
		clean.Impressions = clampCount(clean.Impressions)
		clean.Clicks = clampCount(clean.Clicks)
		clean.ATC = clampCount(clean.ATC)
		clean.IC = clampCount(clean.IC)
		clean.DiscountPct = numeric.Clamp(0, 60, clean.DiscountPct)

		rev, src := resolveRevenue(&clean, opts.ManualAOV, fallbackAOV)
		out = append(out, Row{DailyRow: clean, NormRevenue: rev, RevSource: src})
	}
	return out, skipped
}

// resolveRevenue applies the priority chain: purchase_value, then
// purchases * manual AOV, then purchases * fallback AOV, then zero.
func resolveRevenue(r *domain.DailyRow, manualAOV, fallbackAOV float64) (float64, domain.RevenueSource) {
	if r.PurchaseValue > 0 && numeric.IsFinite(r.PurchaseValue) {
		return r.PurchaseValue, domain.RevenueFromPurchaseValue
	}
	if r.Purchases > 0 && manualAOV > 0 {
		return r.Purchases * manualAOV, domain.RevenueFromManualAOV
	}
	if r.Purchases > 0 {
		return r.Purchases * fallbackAOV, domain.RevenueFromFallbackAOV
	}
	return 0, domain.RevenueNone
}

// Usable reports whether the row contributes to parameter estimation:
// positive spend with resolved revenue. Zero-spend rows never count as
// observed zeros, only as missing.
func (r *Row) Usable() bool {
	return r.Spend > 0 && r.RevSource != domain.RevenueNone
}

func clampCount(v float64) float64 {
	if v < 0 || !numeric.IsFinite(v) {
		return 0
	}
	return v
}
