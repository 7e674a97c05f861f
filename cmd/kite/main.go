// Kite - Budget response modeling for paid social campaigns.
// Copyright (c) 2026 opensource.marketing
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-marketing/kite/internal/api"
	"github.com/opensource-marketing/kite/internal/bus"
	"github.com/opensource-marketing/kite/internal/cache"
	"github.com/opensource-marketing/kite/internal/config"
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/engine"
	"github.com/opensource-marketing/kite/internal/filter"
	"github.com/opensource-marketing/kite/internal/history"
	"github.com/opensource-marketing/kite/internal/repository"
	"github.com/opensource-marketing/kite/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KITE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kite",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration (defaults, optional YAML file, env overrides)
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Scope Filter Engine
	filters, err := filter.NewEngine()
	if err != nil {
		slog.Error("failed to initialize filter engine", "error", err)
		os.Exit(1)
	}

	// Load scope filters for the configured tenants (no hardcoded defaults)
	tenantIDs := parseTenants(os.Getenv("KITE_TENANTS"))
	if err := loadFiltersFromDatabase(ctx, repo, filters, tenantIDs); err != nil {
		slog.Error("failed to load scope filters", "error", err)
		os.Exit(1)
	}
	slog.Info("filter engine initialized", "filters_count", filters.FiltersCount())

	// Initialize History Service
	historySvc := history.NewService(repo, filters)
	slog.Info("history service initialized")

	// Initialize Simulator
	simulator := engine.NewSimulator(cfg.Engine)
	slog.Info("simulator initialized",
		"k_quantile", cfg.Engine.KQuantile,
		"bootstrap_resamples", cfg.Engine.BootstrapResamples,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KITE_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, historySvc, simulator)

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, filters, historySvc, simulator, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kite is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kite shutdown complete")
}

// parseTenants splits the comma-separated KITE_TENANTS value.
func parseTenants(env string) []string {
	if env == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(env, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// loadFiltersFromDatabase loads scope filters into the engine for each
// configured tenant. Filters are configured via POST /filters - no hardcoded
// defaults.
func loadFiltersFromDatabase(ctx context.Context, repo domain.Repository, filters *filter.Engine, tenantIDs []string) error {
	var all []*domain.ScopeFilter
	for _, tenantID := range tenantIDs {
		dbFilters, err := repo.ListScopeFilters(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list scope filters", "tenant_id", tenantID, "error", err)
			continue
		}
		all = append(all, dbFilters...)
	}

	if len(all) > 0 {
		slog.Info("loading scope filters from database", "count", len(all))
		return filters.ReloadFilters(all)
	}

	slog.Info("no scope filters in database - configure via POST /filters API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                🪁 KITE                    ║")
	fmt.Println("  ║     Budget Response Modeling Engine       ║")
	fmt.Println("  ║      Spend where the curve bends.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /simulate          - Run a budget simulation")
	fmt.Println("    GET  /simulations/{id}  - Get simulation by ID")
	fmt.Println("    POST /rows/import       - Import daily rows (CSV)")
	fmt.Println("    GET  /rows              - List daily rows")
	fmt.Println("    DELETE /rows            - Delete a scope's rows")
	fmt.Println("    GET  /filters           - List scope filters")
	fmt.Println("    POST /filters           - Create a scope filter")
	fmt.Println("    POST /filters/reload    - Hot-reload filters from database")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /metrics           - Prometheus metrics")
	fmt.Println()
}
