package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal_analysis_backend/internal/analysis"
	"portal_analysis_backend/internal/analysis/engine"
	"portal_analysis_backend/internal/analysis/mapping"
	"portal_analysis_backend/internal/events"
	apphttp "portal_analysis_backend/internal/http"
	"portal_analysis_backend/internal/http/router"
	"portal_analysis_backend/internal/realtime"
	"portal_analysis_backend/migrations"
	"portal_analysis_backend/platform/config"
	"portal_analysis_backend/platform/db"
	"portal_analysis_backend/platform/logger"
	"portal_analysis_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if cfg.GetMigrationsEnabled() {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, migrations.FS, log)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	tables, err := mapping.NewStore(cfg.GetMappingsPath(), log)
	if err != nil {
		log.Error("failed to load analysis mappings", "error", err, "path", cfg.GetMappingsPath())
		panic("failed to load analysis mappings: " + err.Error())
	}
	if cfg.GetMappingsWatch() && cfg.GetMappingsPath() != "" {
		go func() {
			if err := tables.Watch(ctx); err != nil {
				log.Warn("analysis mapping watcher stopped", "error", err)
			}
		}()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	hub, closeEmitters := initRealtime(cfg, eventBus, log)
	defer closeEmitters()

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var engineClient *engine.Client
	if cfg.IsEngineEnabled() {
		engineClient = engine.New(cfg, log)
		log.Info("analysis engine client initialized", "url", cfg.GetEngineURL())
	} else {
		log.Warn("ANALYSIS_ENGINE_URL not configured; jobs must be registered with their external id")
	}

	analysisModule, err := analysis.NewModule(pool, tables, engineClient, hub, eventBus, cfg, val, log)
	if err != nil {
		log.Error("failed to initialize analysis module", "error", err)
		panic("failed to initialize analysis module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			analysisModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRealtime builds the SSE hub and, when configured, the Kafka sink, and
// bridges analysis events to both.
func initRealtime(cfg *config.Config, bus events.Bus, log *logger.Logger) (*realtime.Hub, func()) {
	hub := realtime.NewHub(log)
	emitters := realtime.Multi{hub}
	closeFn := func() {}

	if cfg.IsKafkaEnabled() {
		kafka := realtime.NewKafkaEmitter(cfg.GetKafkaBrokers(), cfg.GetKafkaEventsTopic())
		emitters = append(emitters, kafka)
		closeFn = func() {
			if err := kafka.Close(); err != nil {
				log.Warn("kafka emitter close failed", "error", err)
			}
		}
		log.Info("kafka event sink enabled", "topic", cfg.GetKafkaEventsTopic())
	}

	realtime.NewBridge(emitters, log).Register(bus)
	return hub, closeFn
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
