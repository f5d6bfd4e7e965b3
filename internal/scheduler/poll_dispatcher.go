package scheduler

import (
	"context"
	"time"

	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/platform/logger"
)

const (
	defaultPollInterval   = 30 * time.Second
	defaultPollStaleAfter = 2 * time.Minute
	pollBatchSize         = 100
)

// PollableLister finds open jobs with no recent activity.
type PollableLister interface {
	ListPollable(ctx context.Context, staleBefore time.Time, limit int) ([]repository.Job, error)
}

// PollDispatcher is the fallback for lost callbacks: open jobs that have
// not changed for a while get a status poll enqueued.
type PollDispatcher struct {
	jobs       PollableLister
	enqueuer   PollEnqueuer
	interval   time.Duration
	staleAfter time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewPollDispatcher(jobs PollableLister, enqueuer PollEnqueuer, interval, staleAfter time.Duration, log *logger.Logger) *PollDispatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultPollStaleAfter
	}
	return &PollDispatcher{
		jobs:       jobs,
		enqueuer:   enqueuer,
		interval:   interval,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
	}
}

func (d *PollDispatcher) Run(ctx context.Context) {
	if d == nil || d.jobs == nil || d.enqueuer == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		d.dispatch(ctx)
	}
}

// dispatch enqueues one poll per stale job and returns how many were sent.
func (d *PollDispatcher) dispatch(ctx context.Context) int {
	jobs, err := d.jobs.ListPollable(ctx, d.now().Add(-d.staleAfter), pollBatchSize)
	if err != nil {
		d.log.Warn("analysis poll listing failed", "error", err)
		return 0
	}

	sent := 0
	for _, job := range jobs {
		err := d.enqueuer.EnqueueStatusPoll(ctx, StatusPollPayload{
			JobID:    job.ID.String(),
			TenantID: job.TenantID.String(),
		})
		if err != nil {
			d.log.Warn("analysis poll enqueue failed", "jobId", job.ID, "error", err)
			continue
		}
		sent++
	}
	if sent > 0 {
		d.log.Info("analysis polls enqueued", "count", sent)
	}
	return sent
}
