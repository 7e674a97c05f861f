package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/engine"
	"github.com/opensource-marketing/kite/internal/filter"
	"github.com/opensource-marketing/kite/internal/history"
)

// createTestServer creates a server with an in-process simulator for testing.
// Repository-backed routes are exercised separately in the integration tests.
func createTestServer() *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	filters, _ := filter.NewEngine()
	simulator := engine.NewSimulator(domain.EngineConfig{})

	return NewServer(cfg, nil, nil, nil, filters, nil, simulator, "test-v1")
}

// memRepo is an in-memory domain.Repository with the same upsert-by-identity
// row semantics as the SQL implementation.
type memRepo struct {
	domain.Repository
	rows map[string]map[string]domain.DailyRow // scope -> row identity -> row
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]map[string]domain.DailyRow)}
}

func (m *memRepo) key(r *domain.DailyRow) string {
	return strings.Join([]string{r.Date, r.CampaignID, r.AdsetID, r.Geo}, "|")
}

func (m *memRepo) SaveRows(ctx context.Context, tenantID, scope string, rows []domain.DailyRow) error {
	byKey := m.rows[scope]
	if byKey == nil {
		byKey = make(map[string]domain.DailyRow)
		m.rows[scope] = byKey
	}
	for _, r := range rows {
		byKey[m.key(&r)] = r
	}
	return nil
}

func (m *memRepo) ListRows(ctx context.Context, tenantID, scope, fromDate, toDate string) ([]domain.DailyRow, error) {
	var out []domain.DailyRow
	for _, r := range m.rows[scope] {
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

func (m *memRepo) DeleteRows(ctx context.Context, tenantID, scope string) error {
	delete(m.rows, scope)
	return nil
}

func (m *memRepo) Ping(ctx context.Context) error { return nil }

// createRepoBackedServer wires the in-memory repository so the row endpoints
// see real persistence.
func createRepoBackedServer(repo *memRepo) *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	filters, _ := filter.NewEngine()
	simulator := engine.NewSimulator(domain.EngineConfig{})
	hist := history.NewService(repo, filters)

	return NewServer(cfg, repo, nil, nil, filters, hist, simulator, "test-v1")
}

func simulateBody(days int) []byte {
	var rows []domain.DailyRow
	for i := 0; i < days; i++ {
		rows = append(rows, domain.DailyRow{
			Date:             fmt.Sprintf("2026-01-%02d", i+1),
			CampaignID:       "c-1",
			Spend:            1000,
			PurchaseValue:    3000,
			HasPurchaseValue: true,
			Purchases:        30,
		})
	}
	req := SimulateRequest{
		Scope: "acct-1",
		Scenario: domain.ScenarioConfig{
			ScenarioType: domain.ScenarioExisting,
			Structure:    domain.StructureCBO,
		},
		DailyBudget: 2000,
		Rows:        rows,
	}
	body, _ := json.Marshal(req)
	return body
}

func TestSimulateEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("SuccessfulSimulation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBuffer(simulateBody(21)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.SimulationResult
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ID == "" {
			t.Error("expected simulation id in response")
		}
		if resp.TenantID != "tenant-001" {
			t.Errorf("expected tenantId tenant-001, got %s", resp.TenantID)
		}
		if resp.Prediction.MeanDailyRevenue <= 0 {
			t.Errorf("expected positive predicted revenue, got %v", resp.Prediction.MeanDailyRevenue)
		}
		if resp.Prediction.P10 > resp.Prediction.MeanDailyRevenue || resp.Prediction.MeanDailyRevenue > resp.Prediction.P90 {
			t.Errorf("band not ordered: p10=%v mean=%v p90=%v",
				resp.Prediction.P10, resp.Prediction.MeanDailyRevenue, resp.Prediction.P90)
		}
		if len(resp.Recommendations.Grid) == 0 {
			t.Error("expected recommendation grid in response")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBuffer(simulateBody(21)))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingBudget", func(t *testing.T) {
		body, _ := json.Marshal(SimulateRequest{
			Scope: "acct-1",
			Scenario: domain.ScenarioConfig{
				ScenarioType: domain.ScenarioExisting,
				Structure:    domain.StructureCBO,
			},
		})
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidScenarioStructure", func(t *testing.T) {
		body, _ := json.Marshal(SimulateRequest{
			Scope: "acct-1",
			Scenario: domain.ScenarioConfig{
				ScenarioType: domain.ScenarioExisting,
				Structure:    "PYRAMID",
			},
			DailyBudget: 1000,
		})
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("PlannedWithoutRows", func(t *testing.T) {
		body, _ := json.Marshal(SimulateRequest{
			Scenario: domain.ScenarioConfig{
				ScenarioType: domain.ScenarioPlanned,
				Structure:    domain.StructureABO,
				AdSets:       []domain.AdSet{{ID: "as-1"}, {ID: "as-2"}},
			},
			DailyBudget: 3000,
		})
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200 for planned campaign, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.SimulationResult
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.DataHealth.Readiness != domain.ReadinessPartial {
			t.Errorf("planned campaign readiness = %s, want partial", resp.DataHealth.Readiness)
		}
	})

	t.Run("AsyncWithoutBusRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/simulate?async=true", bytes.NewBuffer(simulateBody(21)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503 without a bus, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBuffer(simulateBody(21)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestRowsEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("ImportRequiresScope", func(t *testing.T) {
		csv := "date,campaign_id,spend\n2026-01-01,c-1,100\n"
		req := httptest.NewRequest(http.MethodPost, "/rows/import", strings.NewReader(csv))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 without scope, got %d", rr.Code)
		}
	})

	t.Run("ImportRejectsUnknownMode", func(t *testing.T) {
		csv := "date,campaign_id,spend\n2026-01-01,c-1,100\n"
		req := httptest.NewRequest(http.MethodPost, "/rows/import?scope=acct-1&mode=append", strings.NewReader(csv))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for unknown mode, got %d", rr.Code)
		}
	})

	t.Run("ImportWithoutRepository", func(t *testing.T) {
		csv := "date,campaign_id,spend\n2026-01-01,c-1,100\n"
		req := httptest.NewRequest(http.MethodPost, "/rows/import?scope=acct-1", strings.NewReader(csv))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503 without repository, got %d", rr.Code)
		}
	})
}

func TestImportMergeModes(t *testing.T) {
	seedRows := []domain.DailyRow{
		{Date: "2025-12-30", CampaignID: "c-1", Spend: 100, PurchaseValue: 300},
		{Date: "2025-12-31", CampaignID: "c-1", Spend: 200, PurchaseValue: 600},
	}
	csv := "date,campaign_id,spend,purchase_value\n" +
		"2026-01-01,c-1,150,450\n" +
		"2026-01-02,c-1,250,750\n"

	listDates := func(t *testing.T, server *Server) map[string]bool {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/rows?scope=acct-1", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("list rows: expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Rows []domain.DailyRow `json:"rows"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		dates := make(map[string]bool)
		for _, r := range resp.Rows {
			dates[r.Date] = true
		}
		return dates
	}

	t.Run("OverrideReplacesStoredRows", func(t *testing.T) {
		repo := newMemRepo()
		repo.SaveRows(context.Background(), "tenant-001", "acct-1", seedRows)
		server := createRepoBackedServer(repo)

		req := httptest.NewRequest(http.MethodPost, "/rows/import?scope=acct-1&mode=override", strings.NewReader(csv))
		req.Header.Set("X-Tenant-ID", "tenant-001")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("import: expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		dates := listDates(t, server)
		if len(dates) != 2 {
			t.Errorf("expected 2 stored dates after override, got %d: %v", len(dates), dates)
		}
		for _, old := range []string{"2025-12-30", "2025-12-31"} {
			if dates[old] {
				t.Errorf("override import left stale row for %s", old)
			}
		}
		for _, fresh := range []string{"2026-01-01", "2026-01-02"} {
			if !dates[fresh] {
				t.Errorf("override import missing row for %s", fresh)
			}
		}
	})

	t.Run("ComplementKeepsStoredRows", func(t *testing.T) {
		repo := newMemRepo()
		repo.SaveRows(context.Background(), "tenant-001", "acct-1", seedRows)
		server := createRepoBackedServer(repo)

		req := httptest.NewRequest(http.MethodPost, "/rows/import?scope=acct-1&mode=complement", strings.NewReader(csv))
		req.Header.Set("X-Tenant-ID", "tenant-001")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("import: expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		dates := listDates(t, server)
		if len(dates) != 4 {
			t.Errorf("expected 4 stored dates after complement, got %d: %v", len(dates), dates)
		}
	})

	t.Run("EmptyOverrideKeepsStoredRows", func(t *testing.T) {
		repo := newMemRepo()
		repo.SaveRows(context.Background(), "tenant-001", "acct-1", seedRows)
		server := createRepoBackedServer(repo)

		empty := "date,campaign_id,spend,purchase_value\n"
		req := httptest.NewRequest(http.MethodPost, "/rows/import?scope=acct-1&mode=override", strings.NewReader(empty))
		req.Header.Set("X-Tenant-ID", "tenant-001")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("import: expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		if dates := listDates(t, server); len(dates) != 2 {
			t.Errorf("empty override should keep existing rows, got %d dates", len(dates))
		}
	})
}

func TestRequestFingerprint(t *testing.T) {
	req := &SimulateRequest{
		Scope:       "acct-1",
		Scenario:    domain.ScenarioConfig{ScenarioType: domain.ScenarioExisting, Structure: domain.StructureCBO},
		DailyBudget: 2000,
	}
	rows := []domain.DailyRow{
		{Date: "2026-01-01", CampaignID: "c-1", Spend: 100, PurchaseValue: 300},
		{Date: "2026-01-02", CampaignID: "c-1", Spend: 200, PurchaseValue: 600},
	}

	t.Run("Stable", func(t *testing.T) {
		if requestFingerprint("t-1", req, rows) != requestFingerprint("t-1", req, rows) {
			t.Error("identical inputs must produce the same key")
		}
	})

	t.Run("RowContentChangesKey", func(t *testing.T) {
		changed := make([]domain.DailyRow, len(rows))
		copy(changed, rows)
		changed[1].Spend = 500

		if requestFingerprint("t-1", req, rows) == requestFingerprint("t-1", req, changed) {
			t.Error("changed row values with the same count must change the key")
		}
	})

	t.Run("TenantChangesKey", func(t *testing.T) {
		if requestFingerprint("t-1", req, rows) == requestFingerprint("t-2", req, rows) {
			t.Error("different tenants must not share cache keys")
		}
	})
}

func TestFilterEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("CreateRejectsBadExpression", func(t *testing.T) {
		body, _ := json.Marshal(CreateFilterRequest{
			ID:         "f-bad",
			Name:       "Broken",
			Expression: "spend >",
			Enabled:    true,
		})
		req := httptest.NewRequest(http.MethodPost, "/filters", bytes.NewBuffer(body))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for bad CEL, got %d", rr.Code)
		}
	})

	t.Run("CreateLoadsIntoEngine", func(t *testing.T) {
		body, _ := json.Marshal(CreateFilterRequest{
			ID:         "f-sa",
			Name:       "SA only",
			Expression: `geo == "SA"`,
			Enabled:    true,
		})
		req := httptest.NewRequest(http.MethodPost, "/filters", bytes.NewBuffer(body))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		listReq := httptest.NewRequest(http.MethodGet, "/filters", nil)
		listReq.Header.Set("X-Tenant-ID", "tenant-001")

		listRR := httptest.NewRecorder()
		server.Router().ServeHTTP(listRR, listReq)

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(listRR.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded filter, got %d", resp.Count)
		}
	})

	t.Run("CreateRequiresFields", func(t *testing.T) {
		body, _ := json.Marshal(CreateFilterRequest{ID: "f-x"})
		req := httptest.NewRequest(http.MethodPost, "/filters", bytes.NewBuffer(body))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("MetricsExposed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
