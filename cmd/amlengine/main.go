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

	"github.com/waqasniazi9/aml-case-management/internal/api"
	"github.com/waqasniazi9/aml-case-management/internal/bus"
	"github.com/waqasniazi9/aml-case-management/internal/cache"
	"github.com/waqasniazi9/aml-case-management/internal/domain"
	"github.com/waqasniazi9/aml-case-management/internal/engine"
	"github.com/waqasniazi9/aml-case-management/internal/rules"
	"github.com/waqasniazi9/aml-case-management/internal/store"
	"github.com/waqasniazi9/aml-case-management/internal/worker"
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
	if os.Getenv("AML_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting aml engine",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("AML_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Driver,
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

	// Initialize Store
	st, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

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

	// Initialize Engine, which also builds the detectors and the velocity
	// service the rule engine reads counts from.
	eng := engine.New(st, engine.Options{
		Cache:  cacheImpl,
		Bus:    busImpl,
		Logger: logger,
	})

	// Initialize Rule Engine with velocity getter
	ruleEngine, err := rules.NewEngine(eng.Velocity().Getter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer ruleEngine.Close()

	if err := loadRules(ctx, st, ruleEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Rebuild engine with the rule engine attached.
	eng = engine.New(st, engine.Options{
		Cache:  cacheImpl,
		Bus:    busImpl,
		Rules:  ruleEngine,
		Logger: logger,
	})

	// Initialize async re-scoring worker
	var asyncWorker *worker.Worker
	if cfg.AsyncScoring || os.Getenv("AML_ASYNC_SCORING") == "true" {
		asyncWorker = worker.NewWorker(busImpl, eng, worker.Config{Logger: logger})
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, st, cacheImpl, busImpl, eng, ruleEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("aml engine is ready",
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

	slog.Info("aml engine shutdown complete")
}

// loadRules seeds the engine with builtin indicator rules plus whatever is
// persisted in the store. Stored rules win on ID collisions.
func loadRules(ctx context.Context, st domain.Store, ruleEngine *rules.Engine) error {
	for _, r := range rules.BuiltinRules() {
		if err := ruleEngine.LoadRule(r); err != nil {
			return err
		}
	}

	stored, err := st.ListIndicatorRules(ctx)
	if err != nil {
		slog.Warn("failed to list stored rules", "error", err)
		return nil // builtins only; more can be added via API
	}

	for _, r := range stored {
		if !r.Enabled {
			continue
		}
		if err := ruleEngine.LoadRule(r); err != nil {
			slog.Warn("skipping invalid stored rule", "id", r.ID, "error", err)
		}
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  AML Risk Detection & Scoring Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /entities                 - Create an entity")
	fmt.Println("    GET   /entities/{id}            - Get entity by ID")
	fmt.Println("    POST  /cases                    - Create a case")
	fmt.Println("    GET   /cases                    - List cases")
	fmt.Println("    PATCH /cases/{id}/status        - Update case status")
	fmt.Println("    POST  /cases/{id}/transactions  - Ingest a transaction")
	fmt.Println("    POST  /cases/{id}/analyze       - Run full case analysis")
	fmt.Println("    POST  /cases/{id}/assess        - Holistic triage assessment")
	fmt.Println("    GET   /rules                    - List indicator rules")
	fmt.Println("    POST  /rules                    - Create an indicator rule")
	fmt.Println("    POST  /rules/reload             - Hot-reload rules")
	fmt.Println("    GET   /statistics               - Aggregate statistics")
	fmt.Println("    GET   /health                   - Health check")
	fmt.Println()
}
