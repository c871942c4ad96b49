// UBK - automated decision support for the Unified Monthly Benefit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openwelfare/ubk/internal/api"
	"github.com/openwelfare/ubk/internal/bus"
	"github.com/openwelfare/ubk/internal/cache"
	"github.com/openwelfare/ubk/internal/domain"
	"github.com/openwelfare/ubk/internal/engine"
	"github.com/openwelfare/ubk/internal/regions"
	"github.com/openwelfare/ubk/internal/repository"
	"github.com/openwelfare/ubk/internal/rules"
	"github.com/openwelfare/ubk/internal/worker"
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
	if os.Getenv("UBK_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting ubk",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("UBK_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
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

	// Initialize Region Registry
	registry := regions.NewRegistry(repo, cacheImpl)
	slog.Info("region registry initialized")

	// Initialize duplicate-detection reference snapshot from stored applications
	refs := engine.NewReferenceStore()
	if apps, err := repo.ListApplications(ctx); err != nil {
		slog.Warn("failed to warm reference snapshot", "error", err)
	} else {
		refs.Replace(apps)
		slog.Info("reference snapshot warmed", "count", len(apps))
	}

	// Initialize Orchestrator
	orchestrator := engine.NewOrchestrator(cfg.Policy, registry, refs)

	// Initialize Screening Rule Engine
	rulesEngine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rules engine", "error", err)
		os.Exit(1)
	}

	// Load screening rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, rulesEngine); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	orchestrator.SetScreener(rulesEngine)
	slog.Info("rules engine initialized", "rules_count", rulesEngine.RulesCount())

	// Initialize async Worker for bus-submitted applications
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("UBK_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, orchestrator)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "topic", domain.TopicApplicationSubmitted)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, orchestrator, rulesEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("ubk is ready",
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

	slog.Info("ubk shutdown complete")
}

// loadRulesFromDatabase loads screening rules from the database into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, rulesEngine *rules.Engine) error {
	dbRules, err := repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Warn("failed to list screening rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading screening rules from database", "count", len(dbRules))
		return rulesEngine.LoadRules(dbRules)
	}

	slog.Info("no screening rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  UBK - Unified Monthly Benefit decision engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /process           - Process a benefit application")
	fmt.Println("    POST /batch             - Process a batch with cross-matching")
	fmt.Println("    GET  /applications/{id} - Get application by ID")
	fmt.Println("    GET  /results/{id}      - Get processing result by ID")
	fmt.Println("    GET  /regions           - List regional reference data")
	fmt.Println("    POST /regions           - Create or update a region")
	fmt.Println("    GET  /rules             - List screening rules")
	fmt.Println("    POST /rules             - Create a screening rule")
	fmt.Println("    POST /rules/reload      - Hot-reload rules from database")
	fmt.Println("    POST /reference/reload  - Rebuild duplicate reference snapshot")
	fmt.Println("    GET  /stats             - Aggregate decision statistics")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
