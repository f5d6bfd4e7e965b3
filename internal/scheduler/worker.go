package scheduler

import (
	"context"
	"errors"
	"fmt"

	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/platform/apperr"
	"portal_analysis_backend/platform/config"
	"portal_analysis_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// JobGetter loads a job for its tenant.
type JobGetter interface {
	GetJob(ctx context.Context, tenantID, id uuid.UUID) (repository.Job, error)
}

// StatusFetcher asks the engine for the current state of a job.
type StatusFetcher interface {
	GetStatus(ctx context.Context, externalJobID string) ([]byte, error)
}

// PollHandler runs one status poll: the engine response goes through the
// same Process call a webhook delivery would.
type PollHandler struct {
	jobs      JobGetter
	status    StatusFetcher
	processor Processor
	log       *logger.Logger
}

func NewPollHandler(jobs JobGetter, status StatusFetcher, processor Processor, log *logger.Logger) *PollHandler {
	return &PollHandler{jobs: jobs, status: status, processor: processor, log: log}
}

func (h *PollHandler) HandleStatusPoll(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseStatusPollPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	job, err := h.jobs.GetJob(ctx, tenantID, jobID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	if job.Status.IsTerminal() {
		return nil
	}

	raw, err := h.status.GetStatus(ctx, job.ExternalJobID)
	if err != nil {
		return err
	}

	out, err := h.processor.Process(ctx, job, raw)
	if err != nil {
		return err
	}

	h.log.Info("analysis status polled", "jobId", job.ID, "status", out.Status, "alreadyProcessed", out.AlreadyProcessed)
	return nil
}

func isNotFound(err error) bool {
	if errors.Is(err, repository.ErrNotFound) {
		return true
	}
	return apperr.Is(err, apperr.KindNotFound)
}

// Worker runs the asynq server that executes status polls.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handler *PollHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStatusPoll, handler.HandleStatusPoll)

	return &Worker{
		server: server,
		mux:    mux,
		log:    log,
	}, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	// Start instead of Run: Run blocks on its own signal handler and would
	// ignore ctx.
	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return
	}

	<-ctx.Done()
	w.server.Shutdown()
}
