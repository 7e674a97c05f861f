// Package worker provides async simulation processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/engine"
	"github.com/opensource-marketing/kite/internal/history"
)

// Worker processes simulation requests asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	history   *history.Service
	simulator *engine.Simulator

	subscriptions []domain.Subscription
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount bounds how many simulations run concurrently across all
	// subscriptions. Zero means one at a time.
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, hist *history.Service, simulator *engine.Simulator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		history:   hist,
		simulator: simulator,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	w.sem = make(chan struct{}, count)

	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicSimulateRequest, func(ctx context.Context, msg *domain.Message) error {
		return w.dispatch(msg.TenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicSimulateRequest, func(ctx context.Context, msg *domain.Message) error {
		return w.dispatch(tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicSimulateRequest,
	)

	return nil
}

// dispatch hands the message to a tracked goroutine, blocking for a
// concurrency slot so at most WorkerCount simulations run at once. Stop waits
// for every dispatched request to finish.
func (w *Worker) dispatch(tenantID string, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		// processRequest logs its own failures; the delivery is already
		// acknowledged by the time it runs.
		_ = w.processRequest(w.ctx, tenantID, msg)
	}()
	return nil
}

// SimulateMessage is the message payload for async simulation requests.
type SimulateMessage struct {
	RequestID   string                `json:"requestId"`
	TenantID    string                `json:"tenantId"`
	TraceID     string                `json:"traceId,omitempty"`
	Scope       string                `json:"scope"`
	FilterID    string                `json:"filterId,omitempty"`
	FromDate    string                `json:"fromDate,omitempty"`
	ToDate      string                `json:"toDate,omitempty"`
	Scenario    domain.ScenarioConfig `json:"scenario"`
	DailyBudget float64               `json:"dailyBudget"`

	// Rows carries inline rows for planned campaigns that have no stored
	// history. When empty the worker loads the scope's rows instead.
	Rows []domain.DailyRow `json:"rows,omitempty"`

	BootstrapSeed *int64 `json:"bootstrapSeed,omitempty"`
}

// processRequest runs one simulation request through the pipeline.
func (w *Worker) processRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req SimulateMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse simulate message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	slog.Debug("processing simulation request",
		"request_id", req.RequestID,
		"tenant_id", tenantID,
		"scope", req.Scope,
	)

	// 1. Resolve rows: inline rows win, otherwise load the scope's history
	rows := req.Rows
	if len(rows) == 0 && w.history != nil {
		loaded, err := w.history.RowsForScope(ctx, tenantID, req.Scope, req.FilterID, req.FromDate, req.ToDate)
		if err != nil {
			slog.Error("failed to load rows",
				"request_id", req.RequestID,
				"scope", req.Scope,
				"error", err,
			)
			return err
		}
		rows = loaded
	}

	// 2. Pool reference rows for cold-start priors
	var referenceRows []domain.DailyRow
	if len(req.Scenario.ReferenceCampaigns) > 0 && w.history != nil {
		referenceRows = w.history.ReferenceRows(ctx, tenantID, req.Scenario.ReferenceCampaigns)
	}

	// 3. Simulate
	input := &engine.Input{
		TenantID:      tenantID,
		Scope:         req.Scope,
		Rows:          rows,
		ReferenceRows: referenceRows,
		Scenario:      req.Scenario,
		DailyBudget:   req.DailyBudget,
		BootstrapSeed: req.BootstrapSeed,
		StartTime:     start,
	}

	result, err := w.simulator.Simulate(ctx, input)
	if err != nil {
		slog.Error("simulation failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}

	// Requester addresses the result by its request ID
	if req.RequestID != "" {
		result.ID = req.RequestID
	}

	// 4. Save result
	if w.repo != nil {
		if err := w.repo.SaveSimulation(ctx, tenantID, result); err != nil {
			slog.Error("failed to save simulation",
				"request_id", req.RequestID,
				"error", err,
			)
		}
	}

	// 5. Publish completion
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicSimulationCompleted, resultPayload); err != nil {
		slog.Error("failed to publish simulation result",
			"request_id", req.RequestID,
			"error", err,
		)
	}

	// 6. If a recommendation grid was produced, publish it separately
	if len(result.Recommendations.Grid) > 0 {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicRecommendationReady, resultPayload); err != nil {
			slog.Error("failed to publish recommendation",
				"request_id", req.RequestID,
				"error", err,
			)
		}
	}

	slog.Info("simulation processed",
		"request_id", req.RequestID,
		"tenant_id", tenantID,
		"mode", result.ModeChosen,
		"confidence", result.DataHealth.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
