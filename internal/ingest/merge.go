package ingest

import (
	"sort"
	"strings"

	"github.com/opensource-marketing/kite/internal/domain"
)

// MergeMode selects how imported rows combine with existing scope rows.
type MergeMode string

const (
	// MergeOverride replaces the scope's rows with the import.
	MergeOverride MergeMode = "override"

	// MergeComplement fills missing days and columns; existing non-empty
	// fields win.
	MergeComplement MergeMode = "complement"
)

// Merge combines existing and incoming rows per the mode. The result is
// ordered by date, then by insertion order within a day (existing before
// incoming). Merging an empty import returns the existing rows unchanged.
func Merge(existing, incoming []domain.DailyRow, mode MergeMode) []domain.DailyRow {
	if mode == MergeOverride {
		if len(incoming) == 0 {
			return existing
		}
		return stableByDate(incoming)
	}

	type slot struct {
		row   domain.DailyRow
		order int
	}
	index := make(map[string]int, len(existing))
	merged := make([]slot, 0, len(existing)+len(incoming))

	for _, r := range existing {
		index[rowKey(&r)] = len(merged)
		merged = append(merged, slot{row: r, order: len(merged)})
	}
	for _, r := range incoming {
		key := rowKey(&r)
		if i, ok := index[key]; ok {
			merged[i].row = complement(merged[i].row, r)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, slot{row: r, order: len(merged)})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].row.Date != merged[j].row.Date {
			return merged[i].row.Date < merged[j].row.Date
		}
		return merged[i].order < merged[j].order
	})

	out := make([]domain.DailyRow, len(merged))
	for i, s := range merged {
		out[i] = s.row
	}
	return out
}

// rowKey is the composite merge identity.
func rowKey(r *domain.DailyRow) string {
	return strings.Join([]string{r.Date, r.CampaignID, r.AdsetID, r.Geo}, "|")
}

// complement fills base's empty fields from donor. Non-empty base fields win.
func complement(base, donor domain.DailyRow) domain.DailyRow {
	if base.CampaignName == "" {
		base.CampaignName = donor.CampaignName
	}
	if base.AdsetName == "" {
		base.AdsetName = donor.AdsetName
	}
	if base.Spend == 0 {
		base.Spend = donor.Spend
	}
	if !base.HasPurchaseValue && donor.HasPurchaseValue {
		base.PurchaseValue = donor.PurchaseValue
		base.HasPurchaseValue = true
	} else if base.PurchaseValue == 0 && donor.PurchaseValue != 0 {
		base.PurchaseValue = donor.PurchaseValue
	}
	if base.Purchases == 0 {
		base.Purchases = donor.Purchases
	}
	if !base.HasImpressions && donor.HasImpressions {
		base.Impressions = donor.Impressions
		base.HasImpressions = true
	}
	if !base.HasClicks && donor.HasClicks {
		base.Clicks = donor.Clicks
		base.HasClicks = true
	}
	if !base.HasATC && donor.HasATC {
		base.ATC = donor.ATC
		base.HasATC = true
	}
	if !base.HasIC && donor.HasIC {
		base.IC = donor.IC
		base.HasIC = true
	}
	if base.ActiveCreatives == 0 {
		base.ActiveCreatives = donor.ActiveCreatives
	}
	if !base.PromoFlag {
		base.PromoFlag = donor.PromoFlag
	}
	if base.DiscountPct == 0 {
		base.DiscountPct = donor.DiscountPct
	}
	return base
}

func stableByDate(rows []domain.DailyRow) []domain.DailyRow {
	out := make([]domain.DailyRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}
