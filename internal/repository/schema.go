package repository

// Schema definitions for the Kite database.
// Compatible with both SQLite and PostgreSQL.

const schemaDailyRows = `
CREATE TABLE IF NOT EXISTS daily_rows (
    tenant_id TEXT NOT NULL,
    scope TEXT NOT NULL,
    date TEXT NOT NULL,
    campaign_id TEXT NOT NULL DEFAULT '',
    campaign_name TEXT NOT NULL DEFAULT '',
    adset_id TEXT NOT NULL DEFAULT '',
    adset_name TEXT NOT NULL DEFAULT '',
    geo TEXT NOT NULL DEFAULT '',
    spend REAL NOT NULL DEFAULT 0,
    purchase_value REAL NOT NULL DEFAULT 0,
    purchases REAL NOT NULL DEFAULT 0,
    impressions REAL NOT NULL DEFAULT 0,
    clicks REAL NOT NULL DEFAULT 0,
    atc REAL NOT NULL DEFAULT 0,
    ic REAL NOT NULL DEFAULT 0,
    has_purchase_value INTEGER NOT NULL DEFAULT 0,
    has_impressions INTEGER NOT NULL DEFAULT 0,
    has_clicks INTEGER NOT NULL DEFAULT 0,
    has_atc INTEGER NOT NULL DEFAULT 0,
    has_ic INTEGER NOT NULL DEFAULT 0,
    active_creatives INTEGER NOT NULL DEFAULT 0,
    promo_flag INTEGER NOT NULL DEFAULT 0,
    discount_pct REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, scope, date, campaign_id, adset_id, geo)
);

CREATE INDEX IF NOT EXISTS idx_daily_rows_tenant ON daily_rows(tenant_id);
CREATE INDEX IF NOT EXISTS idx_daily_rows_scope ON daily_rows(tenant_id, scope);
CREATE INDEX IF NOT EXISTS idx_daily_rows_date ON daily_rows(tenant_id, scope, date);
`

const schemaScopeFilters = `
CREATE TABLE IF NOT EXISTS scope_filters (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_scope_filters_tenant ON scope_filters(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scope_filters_enabled ON scope_filters(tenant_id, enabled);
`

const schemaSimulations = `
CREATE TABLE IF NOT EXISTS simulations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    scope TEXT NOT NULL DEFAULT '',
    daily_budget REAL NOT NULL,
    mode TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    result TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_simulations_tenant ON simulations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_simulations_scope ON simulations(tenant_id, scope);
CREATE INDEX IF NOT EXISTS idx_simulations_created ON simulations(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDailyRows,
		schemaScopeFilters,
		schemaSimulations,
	}
}
