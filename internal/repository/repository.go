// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-marketing/kite/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRows upserts daily rows for a scope with tenant isolation. Re-imports
// of the same (date, campaign, adset, geo) key replace the stored row.
func (r *SQLRepository) SaveRows(ctx context.Context, tenantID string, scope string, rows []domain.DailyRow) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if scope == "" {
		return fmt.Errorf("%w: scope is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO daily_rows (
			tenant_id, scope, date, campaign_id, campaign_name,
			adset_id, adset_name, geo, spend, purchase_value, purchases,
			impressions, clicks, atc, ic,
			has_purchase_value, has_impressions, has_clicks, has_atc, has_ic,
			active_creatives, promo_flag, discount_pct, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, scope, date, campaign_id, adset_id, geo) DO UPDATE SET
			campaign_name = excluded.campaign_name,
			adset_name = excluded.adset_name,
			spend = excluded.spend,
			purchase_value = excluded.purchase_value,
			purchases = excluded.purchases,
			impressions = excluded.impressions,
			clicks = excluded.clicks,
			atc = excluded.atc,
			ic = excluded.ic,
			has_purchase_value = excluded.has_purchase_value,
			has_impressions = excluded.has_impressions,
			has_clicks = excluded.has_clicks,
			has_atc = excluded.has_atc,
			has_ic = excluded.has_ic,
			active_creatives = excluded.active_creatives,
			promo_flag = excluded.promo_flag,
			discount_pct = excluded.discount_pct
	`

	now := time.Now().UTC()
	for i := range rows {
		row := &rows[i]
		if row.Date == "" {
			return fmt.Errorf("%w: row date is required", ErrInvalidInput)
		}
		_, err := r.db.ExecContext(ctx, r.rebind(query),
			tenantID, scope, row.Date, row.CampaignID, row.CampaignName,
			row.AdsetID, row.AdsetName, row.Geo,
			row.Spend, row.PurchaseValue, row.Purchases,
			row.Impressions, row.Clicks, row.ATC, row.IC,
			boolToInt(row.HasPurchaseValue), boolToInt(row.HasImpressions),
			boolToInt(row.HasClicks), boolToInt(row.HasATC), boolToInt(row.HasIC),
			row.ActiveCreatives, boolToInt(row.PromoFlag), row.DiscountPct,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save row %s: %w", row.Date, err)
		}
	}
	return nil
}

// ListRows retrieves a scope's rows in a date range with tenant isolation.
// Empty bounds mean unbounded. Rows come back date-ordered.
func (r *SQLRepository) ListRows(ctx context.Context, tenantID string, scope string, fromDate, toDate string) ([]domain.DailyRow, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT date, campaign_id, campaign_name, adset_id, adset_name, geo,
			   spend, purchase_value, purchases,
			   impressions, clicks, atc, ic,
			   has_purchase_value, has_impressions, has_clicks, has_atc, has_ic,
			   active_creatives, promo_flag, discount_pct
		FROM daily_rows
		WHERE tenant_id = ? AND scope = ?
	`
	args := []any{tenantID, scope}

	if fromDate != "" {
		query += " AND date >= ?"
		args = append(args, fromDate)
	}
	if toDate != "" {
		query += " AND date <= ?"
		args = append(args, toDate)
	}
	query += " ORDER BY date, campaign_id, adset_id"

	dbRows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	var rows []domain.DailyRow
	for dbRows.Next() {
		var row domain.DailyRow
		var hasPV, hasImpr, hasClicks, hasATC, hasIC, promo int

		if err := dbRows.Scan(
			&row.Date, &row.CampaignID, &row.CampaignName,
			&row.AdsetID, &row.AdsetName, &row.Geo,
			&row.Spend, &row.PurchaseValue, &row.Purchases,
			&row.Impressions, &row.Clicks, &row.ATC, &row.IC,
			&hasPV, &hasImpr, &hasClicks, &hasATC, &hasIC,
			&row.ActiveCreatives, &promo, &row.DiscountPct,
		); err != nil {
			return nil, err
		}

		row.HasPurchaseValue = hasPV == 1
		row.HasImpressions = hasImpr == 1
		row.HasClicks = hasClicks == 1
		row.HasATC = hasATC == 1
		row.HasIC = hasIC == 1
		row.PromoFlag = promo == 1
		rows = append(rows, row)
	}

	return rows, dbRows.Err()
}

// DeleteRows removes all rows of a scope with tenant isolation.
func (r *SQLRepository) DeleteRows(ctx context.Context, tenantID string, scope string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM daily_rows WHERE tenant_id = ? AND scope = ?`
	_, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, scope)
	return err
}

// SaveScopeFilter stores a scope filter with tenant isolation.
func (r *SQLRepository) SaveScopeFilter(ctx context.Context, tenantID string, filter *domain.ScopeFilter) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if filter.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO scope_filters (
			id, tenant_id, name, description, version, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		filter.ID, tenantID, filter.Name, filter.Description,
		filter.Version, filter.Expression, enabled,
		now, now,
	)
	return err
}

// GetScopeFilter retrieves the latest enabled version of a filter.
func (r *SQLRepository) GetScopeFilter(ctx context.Context, tenantID string, filterID string) (*domain.ScopeFilter, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, enabled
		FROM scope_filters
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var f domain.ScopeFilter
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, filterID).Scan(
		&f.ID, &f.TenantID, &f.Name, &f.Description,
		&f.Version, &f.Expression, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	f.Enabled = enabled == 1
	return &f, nil
}

// ListScopeFilters retrieves all enabled filters for a tenant.
func (r *SQLRepository) ListScopeFilters(ctx context.Context, tenantID string) ([]*domain.ScopeFilter, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, enabled
		FROM scope_filters
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []*domain.ScopeFilter
	for rows.Next() {
		var f domain.ScopeFilter
		var enabled int

		if err := rows.Scan(
			&f.ID, &f.TenantID, &f.Name, &f.Description,
			&f.Version, &f.Expression, &enabled,
		); err != nil {
			return nil, err
		}

		f.Enabled = enabled == 1
		filters = append(filters, &f)
	}

	return filters, rows.Err()
}

// DeleteScopeFilter soft-deletes a filter by setting enabled = 0.
func (r *SQLRepository) DeleteScopeFilter(ctx context.Context, tenantID string, filterID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE scope_filters
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, filterID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveSimulation stores a simulation result with tenant isolation.
func (r *SQLRepository) SaveSimulation(ctx context.Context, tenantID string, sim *domain.SimulationResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(sim)
	if err != nil {
		return fmt.Errorf("failed to encode simulation: %w", err)
	}

	query := `
		INSERT INTO simulations (
			id, tenant_id, scope, daily_budget, mode, created_at, result
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		sim.ID, tenantID, sim.Scope, sim.DailyBudget,
		string(sim.ModeChosen), sim.CreatedAt, string(payload),
	)
	return err
}

// GetSimulation retrieves a simulation result by ID with tenant isolation.
func (r *SQLRepository) GetSimulation(ctx context.Context, tenantID string, simID string) (*domain.SimulationResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT result FROM simulations
		WHERE tenant_id = ? AND id = ?
	`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, simID).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sim domain.SimulationResult
	if err := json.Unmarshal([]byte(payload), &sim); err != nil {
		return nil, fmt.Errorf("failed to decode simulation %s: %w", simID, err)
	}
	return &sim, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
