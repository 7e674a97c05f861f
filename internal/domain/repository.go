// Package domain defines the core interfaces and types for Kite.
package domain

import (
	"context"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Daily row operations. Scope groups rows belonging to one store or
	// ad account so imports and simulations address a coherent slice.
	SaveRows(ctx context.Context, tenantID string, scope string, rows []DailyRow) error
	ListRows(ctx context.Context, tenantID string, scope string, fromDate, toDate string) ([]DailyRow, error)
	DeleteRows(ctx context.Context, tenantID string, scope string) error

	// Scope filter operations.
	SaveScopeFilter(ctx context.Context, tenantID string, filter *ScopeFilter) error
	GetScopeFilter(ctx context.Context, tenantID string, filterID string) (*ScopeFilter, error)
	ListScopeFilters(ctx context.Context, tenantID string) ([]*ScopeFilter, error)
	DeleteScopeFilter(ctx context.Context, tenantID string, filterID string) error

	// Simulation results.
	SaveSimulation(ctx context.Context, tenantID string, sim *SimulationResult) error
	GetSimulation(ctx context.Context, tenantID string, simID string) (*SimulationResult, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns int
	MaxIdleConns int
}
