package domain

// ScenarioType distinguishes live campaigns from planned ones with no history.
type ScenarioType string

const (
	ScenarioExisting ScenarioType = "existing"
	ScenarioPlanned  ScenarioType = "planned"
)

// GeoMaturity describes how well-established the campaign's markets are.
type GeoMaturity string

const (
	GeoMature GeoMaturity = "mature"
	GeoThin   GeoMaturity = "thin"
)

// Strategy is the user-selected modeling strategy family.
type Strategy string

const (
	StrategyStructureAware Strategy = "structure_aware"
	StrategyABODirect      Strategy = "abo_direct"
	StrategyColdStart      Strategy = "cold_start"
	StrategyMultiGeo       Strategy = "multi_geo"
	StrategyLongHorizon    Strategy = "long_horizon"
)

// Mode is the execution mode the dispatcher selects from
// (strategy, structure, data health).
type Mode string

const (
	ModeCurveOnly       Mode = "curve_only"
	ModeCurveAllocation Mode = "curve_allocation"
	ModeCurvePriors     Mode = "curve_priors"
	ModeHybrid          Mode = "hybrid"

	// ModeIncrementality is reserved: selectable only by manual override,
	// it returns a conservatively scaled placeholder.
	ModeIncrementality Mode = "incrementality"
)

// LookbackChoice selects the trailing window used for parameter fitting.
type LookbackChoice string

const (
	LookbackSmart LookbackChoice = "smart"
	Lookback14    LookbackChoice = "14"
	Lookback30    LookbackChoice = "30"
	Lookback90    LookbackChoice = "90"
	LookbackFull  LookbackChoice = "full"
)

// ModelMode tunes how wide the uncertainty bands are reported.
type ModelMode string

const (
	ModelBalanced     ModelMode = "balanced"
	ModelConservative ModelMode = "conservative"
	ModelAggressive   ModelMode = "aggressive"
)

// ScenarioConfig is the structural context for a simulation. All knobs are
// per-call values; the engine holds no state between calls.
type ScenarioConfig struct {
	ScenarioType ScenarioType `json:"scenarioType" validate:"required,oneof=existing planned"`
	Structure    Structure    `json:"structure" validate:"required,oneof=ABO CBO ASC"`
	GeoMaturity  GeoMaturity  `json:"geoMaturity,omitempty"`

	// ExpectedAOV is the manual average order value used when rows carry
	// purchase counts but no purchase value.
	ExpectedAOV float64 `json:"expectedAov,omitempty" validate:"omitempty,gt=0"`

	PromoFlag       bool    `json:"promoFlag,omitempty"`
	DiscountPct     float64 `json:"discountPct,omitempty"`
	ActiveCreatives int     `json:"activeCreatives,omitempty"`

	StrategyFamily Strategy       `json:"strategyFamily,omitempty"`
	LookbackChoice LookbackChoice `json:"lookbackChoice,omitempty"`
	ModelMode      ModelMode      `json:"modelMode,omitempty"`

	// AdSets declares the campaign's ad-set identities. When empty they are
	// derived from the rows in first-seen order.
	AdSets []AdSet `json:"adSets,omitempty"`

	// ReferenceCampaigns names campaigns whose rows form the prior pool for
	// cold-start estimation.
	ReferenceCampaigns []string `json:"referenceCampaigns,omitempty"`

	// ForceIncrementality is the manual override for the reserved mode.
	ForceIncrementality bool `json:"forceIncrementality,omitempty"`
}
