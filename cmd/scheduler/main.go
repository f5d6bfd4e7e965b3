package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal_analysis_backend/internal/analysis/adapter"
	"portal_analysis_backend/internal/analysis/engine"
	"portal_analysis_backend/internal/analysis/mapping"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/analysis/service"
	"portal_analysis_backend/internal/events"
	"portal_analysis_backend/internal/realtime"
	"portal_analysis_backend/internal/scheduler"
	"portal_analysis_backend/platform/config"
	"portal_analysis_backend/platform/db"
	"portal_analysis_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	tables, err := mapping.NewStore(cfg.GetMappingsPath(), log)
	if err != nil {
		log.Error("failed to load analysis mappings", "error", err)
		panic("failed to load analysis mappings: " + err.Error())
	}
	if cfg.GetMappingsWatch() && cfg.GetMappingsPath() != "" {
		go func() {
			if err := tables.Watch(ctx); err != nil {
				log.Warn("analysis mapping watcher stopped", "error", err)
			}
		}()
	}

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	// Browser sessions are attached to the API process; here events only
	// leave through Kafka.
	if cfg.IsKafkaEnabled() {
		kafka := realtime.NewKafkaEmitter(cfg.GetKafkaBrokers(), cfg.GetKafkaEventsTopic())
		defer func() { _ = kafka.Close() }()
		realtime.NewBridge(kafka, log).Register(eventBus)
	}

	repo := repository.New(pool)
	svc := service.New(repo, adapter.New(tables), eventBus, log)

	expiry := scheduler.NewJobExpiry(repo, svc, cfg.GetPollInterval(), cfg.GetJobMaxAge(), log)
	go expiry.Run(ctx)

	if !cfg.IsEngineEnabled() {
		log.Warn("ANALYSIS_ENGINE_URL not configured; status polling disabled, only expiry runs")
		<-ctx.Done()
		return
	}

	engineClient := engine.New(cfg, log)
	svc.SetEngine(engineClient)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewPollDispatcher(repo, client, cfg.GetPollInterval(), cfg.GetPollStaleAfter(), log)
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, scheduler.NewPollHandler(svc, engineClient, svc, log), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
