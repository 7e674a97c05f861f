package domain

// ScopeFilter is a named, persisted CEL expression that selects the subset of
// stored rows a simulation runs on. Expressions evaluate over row fields
// (geo, campaign_id, campaign_name, adset_id, adset_name, spend, purchases,
// purchase_value, date) and must return bool.
type ScopeFilter struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// Expression is the CEL source, e.g. `geo == "SA" && spend > 0.0`.
	Expression string `json:"expression"`

	Enabled bool `json:"enabled"`
}
