package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/analysis/service"
	"portal_analysis_backend/platform/logger"
)

const (
	defaultExpiryInterval = 10 * time.Minute
	defaultJobMaxAge      = 24 * time.Hour
	expiryBatchSize       = 100

	// TimeoutCode is the failure code stored on jobs the engine never finished.
	TimeoutCode = "timeout"
)

// ExpiredLister finds open jobs created before a cutoff.
type ExpiredLister interface {
	ListExpired(ctx context.Context, createdBefore time.Time, limit int) ([]repository.Job, error)
}

// Processor is the reconciliation entry point.
type Processor interface {
	Process(ctx context.Context, job repository.Job, raw []byte) (service.Outcome, error)
}

type timeoutEnvelope struct {
	JobID    string       `json:"job_id"`
	TenantID string       `json:"tenant_id"`
	Status   string       `json:"status"`
	Success  bool         `json:"success"`
	Error    timeoutError `json:"error"`
}

type timeoutError struct {
	Code      string `json:"error_code"`
	Type      string `json:"error_type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Timestamp string `json:"timestamp"`
}

// JobExpiry fails jobs that stayed open past their maximum age. The failure
// goes through the normal reconciliation path so it is recorded and
// published like an engine-reported error.
type JobExpiry struct {
	jobs      ExpiredLister
	processor Processor
	interval  time.Duration
	maxAge    time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewJobExpiry(jobs ExpiredLister, processor Processor, interval, maxAge time.Duration, log *logger.Logger) *JobExpiry {
	if interval <= 0 {
		interval = defaultExpiryInterval
	}
	if maxAge <= 0 {
		maxAge = defaultJobMaxAge
	}
	return &JobExpiry{
		jobs:      jobs,
		processor: processor,
		interval:  interval,
		maxAge:    maxAge,
		log:       log,
		now:       time.Now,
	}
}

func (e *JobExpiry) Run(ctx context.Context) {
	if e == nil || e.jobs == nil || e.processor == nil {
		return
	}

	e.sweep(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

// sweep fails every expired job and returns how many were failed.
func (e *JobExpiry) sweep(ctx context.Context) int {
	now := e.now()
	jobs, err := e.jobs.ListExpired(ctx, now.Add(-e.maxAge), expiryBatchSize)
	if err != nil {
		e.log.Warn("analysis expiry listing failed", "error", err)
		return 0
	}

	failed := 0
	for _, job := range jobs {
		raw, err := json.Marshal(timeoutEnvelope{
			JobID:    job.ExternalJobID,
			TenantID: job.TenantID.String(),
			Status:   "failed",
			Success:  false,
			Error: timeoutError{
				Code:      TimeoutCode,
				Type:      TimeoutCode,
				Message:   "analysis did not finish within " + e.maxAge.String(),
				Retryable: false,
				Timestamp: now.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			continue
		}
		if _, err := e.processor.Process(ctx, job, raw); err != nil {
			e.log.Warn("analysis expiry failed", "jobId", job.ID, "error", err)
			continue
		}
		failed++
	}
	if failed > 0 {
		e.log.Info("analysis jobs expired", "count", failed)
	}
	return failed
}
