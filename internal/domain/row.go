package domain

// Structure describes how the daily budget is distributed across ad-sets.
type Structure string

const (
	// StructureABO - ad-set budget optimization: the user assigns a budget per ad-set.
	StructureABO Structure = "ABO"

	// StructureCBO - campaign budget optimization: the platform splits a pooled budget.
	StructureCBO Structure = "CBO"

	// StructureASC - advantage-plus sales campaign: pooled budget, platform-managed.
	StructureASC Structure = "ASC"
)

// Pooled reports whether the structure treats the daily budget as a single
// pool split algorithmically across ad-sets.
func (s Structure) Pooled() bool {
	return s == StructureCBO || s == StructureASC
}

// DailyRow is the fundamental input record: one day of delivery for a
// campaign or one of its ad-sets. A row without ad-set identity is a
// campaign aggregate row.
type DailyRow struct {
	// Date is an ISO date (YYYY-MM-DD). It is the ordering key for lookback
	// truncation; array position is never relied upon.
	Date string `json:"date"`

	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	AdsetID      string `json:"adset_id,omitempty"`
	AdsetName    string `json:"adset_name,omitempty"`

	// Geo is an ISO-ish region code, uppercased for matching.
	Geo string `json:"geo,omitempty"`

	Spend         float64 `json:"spend"`
	PurchaseValue float64 `json:"purchase_value,omitempty"`
	Purchases     float64 `json:"purchases,omitempty"`

	// Funnel counts. Zero means "not reported" when the corresponding
	// Has* flag is false; importers set the flags during coercion.
	Impressions float64 `json:"impressions,omitempty"`
	Clicks      float64 `json:"clicks,omitempty"`
	ATC         float64 `json:"atc,omitempty"`
	IC          float64 `json:"ic,omitempty"`

	HasPurchaseValue bool `json:"has_purchase_value,omitempty"`
	HasImpressions   bool `json:"has_impressions,omitempty"`
	HasClicks        bool `json:"has_clicks,omitempty"`
	HasATC           bool `json:"has_atc,omitempty"`
	HasIC            bool `json:"has_ic,omitempty"`

	// Context fields.
	ActiveCreatives int     `json:"active_creatives_count,omitempty"`
	PromoFlag       bool    `json:"promo_flag,omitempty"`
	DiscountPct     float64 `json:"discount_pct,omitempty"`
}

// IsAdset reports whether the row carries ad-set identity.
func (r *DailyRow) IsAdset() bool {
	return r.AdsetID != "" || r.AdsetName != ""
}

// AdsetKey returns a stable identity for the row's ad-set, preferring the
// platform id over the display name.
func (r *DailyRow) AdsetKey() string {
	if r.AdsetID != "" {
		return r.AdsetID
	}
	return r.AdsetName
}

// AdSet identifies one ad-set inside a campaign.
type AdSet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
