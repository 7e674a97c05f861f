package domain

import "time"

// RevenueSource tags which branch of the revenue normalizer produced a row's
// canonical revenue.
type RevenueSource string

const (
	RevenueFromPurchaseValue RevenueSource = "purchase_value"
	RevenueFromManualAOV     RevenueSource = "manual_aov"
	RevenueFromFallbackAOV   RevenueSource = "fallback_aov"
	RevenueNone              RevenueSource = "none"
)

// HillParams are the adstocked Hill response curve parameters.
// revenue(x) = Alpha * x^Gamma / (K^Gamma + x^Gamma) on the adstocked spend.
type HillParams struct {
	Alpha  float64 `json:"alpha"`
	K      float64 `json:"k"`
	Gamma  float64 `json:"gamma"`
	Lambda float64 `json:"lambda"`
}

// DefaultHillParams are used when estimation is infeasible.
func DefaultHillParams() HillParams {
	return HillParams{Alpha: 6000, K: 2000, Gamma: 1, Lambda: 0.5}
}

// ParamSource tags where the fitted parameters came from.
type ParamSource string

const (
	ParamsFitted  ParamSource = "fitted"
	ParamsPriors  ParamSource = "priors"
	ParamsDefault ParamSource = "default"
)

// Adjustments are the three bounded multiplicative context factors.
// Each defaults to 1.0 when its inputs are missing.
type Adjustments struct {
	Quality  float64 `json:"qualityAdj"`
	Creative float64 `json:"creativeAdj"`
	Promo    float64 `json:"promoAdj"`
}

// NeutralAdjustments returns the all-ones factor set.
func NeutralAdjustments() Adjustments {
	return Adjustments{Quality: 1, Creative: 1, Promo: 1}
}

// Product is the combined multiplicative effect.
func (a Adjustments) Product() float64 {
	return a.Quality * a.Creative * a.Promo
}

// ShareSource tags how an allocation share was derived.
type ShareSource string

const (
	ShareHistorical    ShareSource = "historical"
	ShareEqualFallback ShareSource = "equal_fallback"
	ShareABOEnvelope   ShareSource = "equal_abo_envelope"
)

// AllocationEntry is one ad-set's slice of the daily budget.
type AllocationEntry struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Share  float64     `json:"share"`
	Budget float64     `json:"budget"`
	Source ShareSource `json:"shareSource"`
}

// AllocationPlan is the ordered per-ad-set budget split. Shares sum to 1
// within 1e-9 and budgets sum to the daily budget within 1e-6.
type AllocationPlan struct {
	Entries []AllocationEntry `json:"entries"`
}

// AdsetPrediction is the per-ad-set component of a prediction.
type AdsetPrediction struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Budget  float64 `json:"budget"`
	Revenue float64 `json:"revenue"`
}

// Prediction is the engine's point estimate with uncertainty bands.
type Prediction struct {
	MeanDailyRevenue float64           `json:"meanDailyRevenue"`
	ROAS             float64           `json:"roas"`
	P10              float64           `json:"p10"`
	P90              float64           `json:"p90"`
	AdsetBreakdown   []AdsetPrediction `json:"adsetBreakdown,omitempty"`
	Note             string            `json:"note,omitempty"`
}

// GridPoint is one evaluated spend level on the recommendation grid.
type GridPoint struct {
	Spend   float64 `json:"spend"`
	Revenue float64 `json:"revenue"`
	ROAS    float64 `json:"roas"`
}

// OperatingPoint is a recommended budget level.
type OperatingPoint struct {
	Spend   float64 `json:"spend"`
	Revenue float64 `json:"revenue"`
	ROAS    float64 `json:"roas"`
}

// Recommendations holds the two operating points plus the full grid for
// visualization. KneeAtGridEdge flags a knee that landed on the grid maximum,
// which callers should treat as "no knee within budget range".
type Recommendations struct {
	Grid           []GridPoint    `json:"grid"`
	MaxROAS        OperatingPoint `json:"maxRoas"`
	GrowthKnee     OperatingPoint `json:"growthKnee"`
	KneeFound      bool           `json:"kneeFound"`
	KneeAtGridEdge bool           `json:"kneeAtGridEdge"`
}

// Readiness classifies whether the data supports a full model fit.
type Readiness string

const (
	ReadinessNotEnough Readiness = "not_enough"
	ReadinessPartial   Readiness = "partial"
	ReadinessFull      Readiness = "full"
)

// Confidence is the auditor's qualitative grade, never a raw probability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DataHealth is the auditor's verdict on the lookback slice. It is the sole
// authority for downstream gating: the engine itself never raises data errors.
type DataHealth struct {
	Readiness  Readiness  `json:"readiness"`
	Confidence Confidence `json:"confidence"`

	AllTimeDays  int `json:"allTimeDays"`
	LookbackUsed int `json:"lookbackUsed"`
	SpendDays    int `json:"spendDays"`

	HasSpend      bool `json:"hasSpend"`
	HasRevenue    bool `json:"hasRevenue"`
	HasFunnel     bool `json:"hasFunnel"`
	HasAdsetSpend bool `json:"hasAdsetSpend"`

	// Missing enumerates concrete gaps (spend, revenue, funnel, ad-set
	// spend, "need N more days").
	Missing []string `json:"missing,omitempty"`

	// SkippedRows counts input rows dropped during coercion.
	SkippedRows int `json:"skippedRows,omitempty"`
}

// SimulationMetadata carries processing information.
type SimulationMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	BootstrapSeed int64  `json:"bootstrapSeed"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// SimulationResult is the complete output of one engine call.
type SimulationResult struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Scope     string    `json:"scope,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	DailyBudget float64 `json:"dailyBudget"`

	Prediction      Prediction      `json:"prediction"`
	Allocation      AllocationPlan  `json:"allocationPlan"`
	Recommendations Recommendations `json:"recommendations"`
	DataHealth      DataHealth      `json:"dataHealth"`

	ResolvedLookbackDays int      `json:"resolvedLookbackDays"`
	ModeChosen           Mode     `json:"modeChosen"`
	WhyMode              []string `json:"whyMode,omitempty"`

	Params      HillParams  `json:"params"`
	ParamSource ParamSource `json:"paramSource"`

	Notes []string `json:"notes,omitempty"`

	Metadata SimulationMetadata `json:"metadata"`
}
