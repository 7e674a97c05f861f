// Package filter provides the CEL-Go based scope filter engine. Scope filters
// select which daily rows belong to a simulation scope (by campaign, geo,
// spend level, date range) using tenant-authored expressions.
package filter

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-marketing/kite/internal/domain"
)

// Engine compiles and applies scope filters.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledFilter
}

// CompiledFilter holds a pre-compiled CEL program.
type CompiledFilter struct {
	Config  *domain.ScopeFilter
	Program cel.Program
}

// NewEngine creates a scope filter engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("date", cel.StringType),
		cel.Variable("campaign_id", cel.StringType),
		cel.Variable("campaign_name", cel.StringType),
		cel.Variable("adset_id", cel.StringType),
		cel.Variable("adset_name", cel.StringType),
		cel.Variable("geo", cel.StringType),
		cel.Variable("spend", cel.DoubleType),
		cel.Variable("purchase_value", cel.DoubleType),
		cel.Variable("purchases", cel.DoubleType),
		cel.Variable("is_adset", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*CompiledFilter),
	}, nil
}

// ValidateFilter compiles a filter without loading it.
func (e *Engine) ValidateFilter(cfg *domain.ScopeFilter) error {
	if cfg == nil {
		return fmt.Errorf("filter config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(cfg)
	return err
}

// LoadFilter compiles and loads one filter.
func (e *Engine) LoadFilter(cfg *domain.ScopeFilter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(cfg)
	if err != nil {
		return err
	}
	e.compiled[cfg.ID] = compiled
	return nil
}

// ReloadFilters swaps the loaded set. Disabled filters are skipped.
func (e *Engine) ReloadFilters(configs []*domain.ScopeFilter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledFilter)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compile(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}
	e.compiled = next
	return nil
}

// Match reports whether the row passes the named filter. Unknown filters
// match nothing; an evaluation error fails closed.
func (e *Engine) Match(filterID string, row *domain.DailyRow) bool {
	e.mu.RLock()
	f, ok := e.compiled[filterID]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	return eval(f, row)
}

// Apply keeps the rows that pass the named filter.
func (e *Engine) Apply(filterID string, rows []domain.DailyRow) []domain.DailyRow {
	e.mu.RLock()
	f, ok := e.compiled[filterID]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	out := make([]domain.DailyRow, 0, len(rows))
	for i := range rows {
		if eval(f, &rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}

// FiltersCount returns the number of loaded filters.
func (e *Engine) FiltersCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// GetLoadedFilters returns the currently loaded filter configurations.
func (e *Engine) GetLoadedFilters() []*domain.ScopeFilter {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.ScopeFilter, 0, len(e.compiled))
	for _, f := range e.compiled {
		out = append(out, f.Config)
	}
	return out
}

// Close clears the loaded set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledFilter)
	return nil
}

func (e *Engine) compile(cfg *domain.ScopeFilter) (*CompiledFilter, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for filter %s: %w", cfg.ID, err)
	}

	return &CompiledFilter{Config: cfg, Program: program}, nil
}

func eval(f *CompiledFilter, row *domain.DailyRow) bool {
	out, _, err := f.Program.Eval(activation(row))
	if err != nil {
		return false
	}
	return toBool(out)
}

func activation(row *domain.DailyRow) map[string]any {
	return map[string]any{
		"row": map[string]any{
			"date":           row.Date,
			"campaign_id":    row.CampaignID,
			"campaign_name":  row.CampaignName,
			"adset_id":       row.AdsetID,
			"adset_name":     row.AdsetName,
			"geo":            row.Geo,
			"spend":          row.Spend,
			"purchase_value": row.PurchaseValue,
			"purchases":      row.Purchases,
		},
		"date":           row.Date,
		"campaign_id":    row.CampaignID,
		"campaign_name":  row.CampaignName,
		"adset_id":       row.AdsetID,
		"adset_name":     row.AdsetName,
		"geo":            row.Geo,
		"spend":          row.Spend,
		"purchase_value": row.PurchaseValue,
		"purchases":      row.Purchases,
		"is_adset":       row.IsAdset(),
	}
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}
