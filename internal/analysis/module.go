// Package analysis provides the analysis intake bounded context module.
// This file wires the repository, reconciliation service, webhook receiver
// and job API, and registers their routes.
package analysis

import (
	"fmt"

	"portal_analysis_backend/internal/analysis/adapter"
	"portal_analysis_backend/internal/analysis/engine"
	"portal_analysis_backend/internal/analysis/handler"
	"portal_analysis_backend/internal/analysis/mapping"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/analysis/service"
	"portal_analysis_backend/internal/analysis/webhook"
	"portal_analysis_backend/internal/events"
	apphttp "portal_analysis_backend/internal/http"
	"portal_analysis_backend/internal/realtime"
	"portal_analysis_backend/platform/config"
	"portal_analysis_backend/platform/logger"
	"portal_analysis_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the analysis bounded context module implementing http.Module.
type Module struct {
	webhookHandler *webhook.Handler
	jobHandler     *handler.Handler
	hub            *realtime.Hub
}

// NewModule creates and initializes the analysis module. engineClient and
// hub are optional: without an engine, jobs must be submitted with their
// external id; without a hub, no SSE route is mounted.
func NewModule(pool *pgxpool.Pool, tables mapping.Source, engineClient *engine.Client, hub *realtime.Hub, eventBus events.Bus, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) (*Module, error) {
	repo := repository.New(pool)
	svc := service.New(repo, adapter.New(tables), eventBus, log)
	if engineClient != nil {
		svc.SetEngine(engineClient)
	}

	verifier := webhook.NewVerifier(cfg.GetWebhookSecret(), cfg.GetWebhookMaxSkew())
	receiver := webhook.NewReceiver(verifier, repo, svc, log)

	jobHandler, err := handler.New(svc, val, cfg.GetWebhookCallbackURL())
	if err != nil {
		return nil, fmt.Errorf("analysis module: %w", err)
	}

	return &Module{
		webhookHandler: webhook.NewHandler(receiver),
		jobHandler:     jobHandler,
		hub:            hub,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "analysis"
}

// RegisterRoutes mounts analysis routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Engine callbacks authenticate with Signature/Timestamp, not JWT
	hooks := ctx.V1.Group("/webhooks")
	if ctx.WebhookRateLimiter != nil {
		hooks.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	hooks.POST("/analysis", m.webhookHandler.HandleAnalysisWebhook)

	jobs := ctx.Protected.Group("/analysis")
	jobs.POST("/jobs", m.jobHandler.SubmitJob)
	jobs.GET("/jobs/:id", m.jobHandler.GetJob)
	if m.hub != nil {
		jobs.GET("/events", m.hub.Handler)
	}

	// Admin-only: force a status read for a job whose callback never came
	admin := ctx.Admin.Group("/analysis")
	admin.POST("/jobs/:id/refresh", m.jobHandler.RefreshJob)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
