package history

import (
	"context"
	"testing"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/filter"
)

// fakeRepo implements just enough of domain.Repository for history tests.
type fakeRepo struct {
	domain.Repository
	rows map[string][]domain.DailyRow // keyed by scope
}

func (f *fakeRepo) ListRows(ctx context.Context, tenantID, scope, fromDate, toDate string) ([]domain.DailyRow, error) {
	var out []domain.DailyRow
	for _, r := range f.rows[scope] {
		if fromDate != "" && r.Date < fromDate {
			continue
		}
		if toDate != "" && r.Date > toDate {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestRowsForScope(t *testing.T) {
	repo := &fakeRepo{rows: map[string][]domain.DailyRow{
		"acct-1": {
			{Date: "2026-01-01", Geo: "SA", Spend: 100},
			{Date: "2026-01-02", Geo: "AE", Spend: 200},
			{Date: "2026-01-03", Geo: "SA", Spend: 300},
		},
	}}

	t.Run("DateRange", func(t *testing.T) {
		svc := NewService(repo, nil)
		rows, err := svc.RowsForScope(context.Background(), "t-1", "acct-1", "", "2026-01-02", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("expected 2 rows from date floor, got %d", len(rows))
		}
	})

	t.Run("FilterApplied", func(t *testing.T) {
		filters, err := filter.NewEngine()
		if err != nil {
			t.Fatalf("filter engine: %v", err)
		}
		if err := filters.LoadFilter(&domain.ScopeFilter{
			ID: "sa-only", Expression: `geo == "SA"`, Enabled: true,
		}); err != nil {
			t.Fatalf("load filter: %v", err)
		}

		svc := NewService(repo, filters)
		rows, err := svc.RowsForScope(context.Background(), "t-1", "acct-1", "sa-only", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("expected 2 SA rows, got %d", len(rows))
		}
	})

	t.Run("TenantRequired", func(t *testing.T) {
		svc := NewService(repo, nil)
		if _, err := svc.RowsForScope(context.Background(), "", "acct-1", "", "", ""); err == nil {
			t.Error("expected error without tenant")
		}
	})
}

func TestSpendDayCount(t *testing.T) {
	repo := &fakeRepo{rows: map[string][]domain.DailyRow{
		"acct-1": {
			{Date: "2026-01-01", Spend: 100},
			{Date: "2026-01-01", AdsetID: "as-1", Spend: 50},
			{Date: "2026-01-02", Spend: 0},
			{Date: "2026-01-03", Spend: 300},
		},
	}}
	svc := NewService(repo, nil)

	count, err := svc.SpendDayCount(context.Background(), "t-1", "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("spend days = %d, want 2", count)
	}
}

func TestReferenceRows(t *testing.T) {
	repo := &fakeRepo{rows: map[string][]domain.DailyRow{
		"ref-1": {{Date: "2026-01-01", Spend: 100}},
		"ref-2": {{Date: "2026-01-02", Spend: 200}},
	}}
	svc := NewService(repo, nil)

	pool := svc.ReferenceRows(context.Background(), "t-1", []string{"ref-1", "ref-2", "missing"})
	if len(pool) != 2 {
		t.Errorf("expected pooled rows from both scopes, got %d", len(pool))
	}
}
