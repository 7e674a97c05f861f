// Package engine implements the Budget Response Simulator. It composes the
// normalizer, lookback resolver, health auditor, curve estimator, context
// adjusters, allocation engine, bootstrap and recommender into one
// deterministic, stateless call.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-marketing/kite/internal/adjust"
	"github.com/opensource-marketing/kite/internal/allocation"
	"github.com/opensource-marketing/kite/internal/curve"
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/health"
	"github.com/opensource-marketing/kite/internal/lookback"
	"github.com/opensource-marketing/kite/internal/normalize"
	"github.com/opensource-marketing/kite/internal/predict"
	"github.com/opensource-marketing/kite/internal/priors"
	"github.com/opensource-marketing/kite/internal/recommend"
	"github.com/opensource-marketing/kite/internal/uncertainty"

	"github.com/opensource-marketing/kite/internal/numeric"
)

// EngineVersion tags every result with the model revision that produced it.
const EngineVersion = "kite-1.0"

// Input contains everything one simulation needs. All fields are per-call
// values; the simulator holds no state between calls.
type Input struct {
	TenantID string
	Scope    string

	Rows          []domain.DailyRow
	ReferenceRows []domain.DailyRow

	Scenario    domain.ScenarioConfig
	DailyBudget float64

	// BootstrapSeed overrides the derived seed. Nil means hash the input.
	BootstrapSeed *int64

	StartTime time.Time
}

// Simulator runs budget response simulations.
type Simulator struct {
	cfg       domain.EngineConfig
	estimator *curve.Estimator
	allocator *allocation.Engine
	bootstrap *uncertainty.Estimator
}

// NewSimulator creates a simulator from engine tunables.
func NewSimulator(cfg domain.EngineConfig) *Simulator {
	est := curve.NewEstimator()
	if cfg.KQuantile > 0 && cfg.KQuantile <= 1 {
		est.KQuantile = cfg.KQuantile
	}
	return &Simulator{
		cfg:       cfg,
		estimator: est,
		allocator: allocation.NewEngine(est),
		bootstrap: &uncertainty.Estimator{Resamples: cfg.BootstrapResamples, Curve: est},
	}
}

// Simulate runs the full pipeline. It is total on well-typed inputs: every
// degradation lands in notes, dataHealth.missing, or a shareSource tag, never
// in the error. The error reports context cancellation only.
func (s *Simulator) Simulate(ctx context.Context, input *Input) (*domain.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := input.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	var notes []string

	budget := input.DailyBudget
	if budget < 0 {
		budget = 0
		notes = append(notes, "negative daily budget clamped to 0")
	}
	scenario := input.Scenario
	if scenario.DiscountPct < 0 || scenario.DiscountPct > 60 {
		scenario.DiscountPct = numeric.Clamp(0, 60, scenario.DiscountPct)
		notes = append(notes, "discount clamped to [0, 60]")
	}
	if scenario.LookbackChoice == "" {
		scenario.LookbackChoice = domain.LookbackSmart
	}

	rows, skipped := normalize.Rows(input.Rows, normalize.Options{
		ManualAOV:   scenario.ExpectedAOV,
		FallbackAOV: s.cfg.FallbackAOV,
	})

	window := lookback.Resolve(rows, scenario.LookbackChoice)
	if window.Note != "" {
		notes = append(notes, window.Note)
	}

	audit := health.Audit(rows, window.Rows, scenario, skipped)

	mode, why := predict.ChooseMode(scenario, audit)
	if scenario.StrategyFamily == domain.StrategyMultiGeo && distinctGeos(window.Rows) <= 1 {
		notes = append(notes, "multi-geo strategy with a single geo; pooling has no effect")
	}

	// One observation per day for fitting and resampling; ad-set detail rows
	// would otherwise double-count spend alongside campaign aggregates.
	series := normalize.DailySeries(window.Rows)

	params, source, paramNote := s.resolveParams(series, input.ReferenceRows, scenario, mode)
	if paramNote != "" {
		notes = append(notes, paramNote)
	}

	adj := s.adjustments(window.Rows, scenario, budget)

	adSets := scenario.AdSets
	if len(adSets) == 0 {
		adSets = deriveAdSets(window.Rows)
	}
	plan := s.allocator.Plan(scenario.Structure, budget, adSets, window.Rows, params)

	total, breakdown, predNote := predict.Revenue(mode, scenario.Structure, params, adj, budget, plan)
	if predNote == "" && source == domain.ParamsPriors {
		predNote = "parameters drawn from reference campaign priors"
	}

	seed := s.seed(input, scenario, budget)

	predictAt := func(p domain.HillParams) float64 {
		rev, _, _ := predict.Revenue(mode, scenario.Structure, p, adj, budget, planAt(plan, budget))
		return rev
	}
	band := s.bootstrap.Bands(series, total, seed, scenario.ModelMode, predictAt)

	rec := recommend.Scan(window.Rows, func(b float64) float64 {
		rev, _, _ := predict.Revenue(mode, scenario.Structure, params, adj, b, planAt(plan, b))
		return rev
	}, recommend.Options{StepFloor: s.cfg.GridStepFloor})

	result := &domain.SimulationResult{
		ID:          uuid.New().String(),
		TenantID:    input.TenantID,
		Scope:       input.Scope,
		CreatedAt:   time.Now().UTC(),
		DailyBudget: budget,
		Prediction: domain.Prediction{
			MeanDailyRevenue: band.Mean,
			ROAS:             numeric.SafeDiv(band.Mean, budget, 0),
			P10:              band.P10,
			P90:              band.P90,
			AdsetBreakdown:   breakdown,
			Note:             predNote,
		},
		Allocation:           plan,
		Recommendations:      rec,
		DataHealth:           audit,
		ResolvedLookbackDays: window.Days,
		ModeChosen:           mode,
		WhyMode:              why,
		Params:               params,
		ParamSource:          source,
		Notes:                notes,
		Metadata: domain.SimulationMetadata{
			TraceID:       traceID(ctx),
			BootstrapSeed: seed,
			TotalMs:       time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}
	return result, nil
}

// resolveParams fits on scope rows, falls back to reference priors for the
// prior-aware modes, and finally to defaults.
func (s *Simulator) resolveParams(rows []normalize.Row, reference []domain.DailyRow, scenario domain.ScenarioConfig, mode domain.Mode) (domain.HillParams, domain.ParamSource, string) {
	if fitted, ok := s.estimator.Fit(rows); ok {
		return fitted, domain.ParamsFitted, ""
	}
	if predict.UsesPriors(mode) && len(reference) > 0 {
		pool, _ := normalize.Rows(reference, normalize.Options{
			ManualAOV:   scenario.ExpectedAOV,
			FallbackAOV: s.cfg.FallbackAOV,
		})
		return priors.Build(pool), domain.ParamsPriors, "too few usable rows to fit; using reference priors"
	}
	return domain.DefaultHillParams(), domain.ParamsDefault, "too few usable rows to fit; using default parameters"
}

func (s *Simulator) adjustments(rows []normalize.Row, scenario domain.ScenarioConfig, budget float64) domain.Adjustments {
	adj := domain.NeutralAdjustments()
	adj.Quality = adjust.Quality(rows)
	if scenario.ActiveCreatives > 0 {
		adj.Creative = adjust.Creative(scenario.ActiveCreatives, budget)
	}
	adj.Promo = adjust.Promo(scenario.PromoFlag, scenario.DiscountPct)
	return adj
}

// seed derives the bootstrap seed from the canonicalized input unless the
// caller pinned one.
func (s *Simulator) seed(input *Input, scenario domain.ScenarioConfig, budget float64) int64 {
	if input.BootstrapSeed != nil {
		return *input.BootstrapSeed
	}

	parts := []string{
		input.TenantID,
		input.Scope,
		string(scenario.ScenarioType),
		string(scenario.Structure),
		string(scenario.StrategyFamily),
		string(scenario.LookbackChoice),
		fmt.Sprintf("%.4f", budget),
	}
	for _, r := range input.Rows {
		parts = append(parts, strings.Join([]string{
			r.Date, r.CampaignID, r.AdsetID, r.Geo,
			fmt.Sprintf("%.4f", r.Spend),
			fmt.Sprintf("%.4f", r.PurchaseValue),
			fmt.Sprintf("%.4f", r.Purchases),
		}, "|"))
	}
	return uncertainty.Seed(parts...)
}

// planAt rescales the plan's budgets to a different total while keeping the
// shares fixed.
func planAt(plan domain.AllocationPlan, dailyBudget float64) domain.AllocationPlan {
	if len(plan.Entries) == 0 {
		return plan
	}
	entries := make([]domain.AllocationEntry, len(plan.Entries))
	for i, e := range plan.Entries {
		e.Budget = e.Share * dailyBudget
		entries[i] = e
	}
	return domain.AllocationPlan{Entries: entries}
}

// deriveAdSets collects ad-set identities from the rows in first-seen order.
func deriveAdSets(rows []normalize.Row) []domain.AdSet {
	var out []domain.AdSet
	seen := make(map[string]bool)
	for i := range rows {
		if !rows[i].IsAdset() {
			continue
		}
		key := rows[i].AdsetKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.AdSet{ID: key, Name: rows[i].AdsetName})
	}
	return out
}

func distinctGeos(rows []normalize.Row) int {
	seen := make(map[string]bool)
	for i := range rows {
		if rows[i].Geo != "" {
			seen[rows[i].Geo] = true
		}
	}
	return len(seen)
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
