// Package history serves the daily-row slices simulations run on: repository
// reads scoped by tenant, optional CEL filter application, and cheap
// aggregate counters for dashboards.
package history

import (
	"context"
	"fmt"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/filter"
)

// Service reads scope history.
type Service struct {
	repo    domain.Repository
	filters *filter.Engine
}

// NewService creates a history service. The filter engine may be nil when
// scope filters are not in play.
func NewService(repo domain.Repository, filters *filter.Engine) *Service {
	return &Service{
		repo:    repo,
		filters: filters,
	}
}

// RowsForScope returns the scope's rows in the date range, with the named
// filter applied when one is given.
func (s *Service) RowsForScope(ctx context.Context, tenantID, scope, filterID, fromDate, toDate string) ([]domain.DailyRow, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	rows, err := s.repo.ListRows(ctx, tenantID, scope, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}

	if filterID != "" && s.filters != nil {
		rows = s.filters.Apply(filterID, rows)
	}
	return rows, nil
}

// SpendDayCount returns the number of distinct dates with positive spend for
// a scope. Used for readiness dashboards without pulling full row sets.
func (s *Service) SpendDayCount(ctx context.Context, tenantID, scope string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	rows, err := s.repo.ListRows(ctx, tenantID, scope, "", "")
	if err != nil {
		return 0, fmt.Errorf("failed to get rows: %w", err)
	}

	seen := make(map[string]bool)
	for i := range rows {
		if rows[i].Spend > 0 {
			seen[rows[i].Date] = true
		}
	}
	return int64(len(seen)), nil
}

// ReferenceRows pools the rows of the named reference scopes for prior
// building. Scopes that fail to load are skipped; cold-start estimation
// degrades rather than errors.
func (s *Service) ReferenceRows(ctx context.Context, tenantID string, scopes []string) []domain.DailyRow {
	var pool []domain.DailyRow
	for _, scope := range scopes {
		rows, err := s.repo.ListRows(ctx, tenantID, scope, "", "")
		if err != nil {
			continue
		}
		pool = append(pool, rows...)
	}
	return pool
}
