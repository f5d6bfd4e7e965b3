// Package service reconciles analysis results into domain state.
//
// Process is the single entry point shared by the webhook receiver, the
// status poller and the expiry sweeper, so a result has the same effect
// whichever path observed it first.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/adapter"
	"portal_analysis_backend/internal/analysis/contract"
	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/engine"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/events"
	"portal_analysis_backend/platform/apperr"
	"portal_analysis_backend/platform/logger"
)

// Store is the persistence the service needs.
type Store interface {
	CreateJob(ctx context.Context, p repository.CreateJobParams) (repository.Job, error)
	GetJob(ctx context.Context, tenantID, id uuid.UUID) (repository.Job, error)
	InTx(ctx context.Context, fn func(repository.Tx) error) error
}

// Engine is the outbound analysis engine: job submission and status reads.
type Engine interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (string, error)
	GetStatus(ctx context.Context, externalJobID string) ([]byte, error)
}

// Service provides job submission and result reconciliation.
type Service struct {
	store    Store
	adapter  *adapter.Adapter
	engine   Engine
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates the analysis service.
func New(store Store, adapt *adapter.Adapter, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		adapter:  adapt,
		eventBus: eventBus,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetEngine enables outbound submission and on-demand status refresh.
func (s *Service) SetEngine(e Engine) {
	s.engine = e
}

// Outcome reports what one delivery did.
type Outcome struct {
	JobID            uuid.UUID
	ExternalJobID    string
	Status           domain.JobStatus
	AlreadyProcessed bool
	Changes          Changes
}

// Process applies one delivery for job. raw is the undecoded body, either a
// webhook payload or a status poll response.
func (s *Service) Process(ctx context.Context, job repository.Job, raw []byte) (Outcome, error) {
	env := contract.ParseEnvelope(raw)
	s.logIssues(job, "envelope", env.Issues)

	if isProgress(env) {
		return s.markProcessing(ctx, job)
	}

	result := s.adapter.Adapt(job.SubjectType, env)
	s.logIssues(job, string(result.Kind), result.Issues)
	hash := Fingerprint(result)

	out := Outcome{JobID: job.ID, ExternalJobID: job.ExternalJobID, Status: job.Status}
	if sameHash(job.ProcessedOutputHash, hash) {
		out.AlreadyProcessed = true
		s.log.Info("analysis: delivery already processed", "jobId", job.ID, "externalJobId", job.ExternalJobID)
		return out, nil
	}

	normalized, err := json.Marshal(result)
	if err != nil {
		return out, apperr.Internal("normalize analysis result").WithOp(opProcess).WithErr(err)
	}
	stored := json.RawMessage(raw)
	if !json.Valid(raw) {
		stored = nil
	}

	var changes Changes
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		changes = Changes{}
		locked, err := tx.LockJob(ctx, job.TenantID, job.ID)
		if err != nil {
			return err
		}
		out.Status = locked.Status
		// A concurrent delivery of the same payload may have committed
		// between the pre-check and the lock.
		if sameHash(locked.ProcessedOutputHash, hash) {
			out.AlreadyProcessed = true
			return nil
		}

		r := &reconciliation{tx: tx, job: locked, result: result, changes: &changes, now: s.now(), log: s.log}
		save, write, err := r.apply(ctx)
		if err != nil || !write {
			return err
		}
		save.Hash = &hash
		save.Raw = stored
		save.Normalized = normalized
		if err := tx.SaveJobResult(ctx, locked.TenantID, locked.ID, save); err != nil {
			return err
		}
		out.Status = save.Status
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{}, apperr.NotFound("analysis job not found").WithOp(opProcess)
		}
		s.log.DatabaseError(opProcess, err)
		return Outcome{}, transient(opProcess, err)
	}

	if out.AlreadyProcessed {
		s.log.Info("analysis: delivery already processed", "jobId", job.ID, "externalJobId", job.ExternalJobID)
		return out, nil
	}
	out.Changes = changes
	s.publish(ctx, job, changes)
	s.log.Info("analysis: delivery reconciled",
		"jobId", job.ID,
		"externalJobId", job.ExternalJobID,
		"status", out.Status,
		"tasksCreated", len(changes.Tasks),
		"signalsCreated", len(changes.KeySignals),
	)
	return out, nil
}

// markProcessing records that the engine has started work. Nothing is
// hashed: a progress report carries no result.
func (s *Service) markProcessing(ctx context.Context, job repository.Job) (Outcome, error) {
	out := Outcome{JobID: job.ID, ExternalJobID: job.ExternalJobID, Status: job.Status}
	if !domain.CanTransition(job.Status, domain.JobStatusProcessing) {
		return out, nil
	}

	var changes Changes
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		changes = Changes{}
		locked, err := tx.LockJob(ctx, job.TenantID, job.ID)
		if err != nil {
			return err
		}
		out.Status = locked.Status
		if !domain.CanTransition(locked.Status, domain.JobStatusProcessing) {
			return nil
		}
		if err := tx.SaveJobResult(ctx, locked.TenantID, locked.ID, repository.JobResult{Status: domain.JobStatusProcessing}); err != nil {
			return err
		}
		changes.Job = &JobTransition{From: locked.Status, To: domain.JobStatusProcessing}
		out.Status = domain.JobStatusProcessing
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{}, apperr.NotFound("analysis job not found").WithOp(opProcess)
		}
		s.log.DatabaseError(opProcess, err)
		return Outcome{}, transient(opProcess, err)
	}
	out.Changes = changes
	return out, nil
}

// GetJob loads a job for the tenant.
func (s *Service) GetJob(ctx context.Context, tenantID, id uuid.UUID) (repository.Job, error) {
	job, err := s.store.GetJob(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Job{}, apperr.NotFound("analysis job not found").WithOp(opGet)
	}
	if err != nil {
		return repository.Job{}, transient(opGet, err)
	}
	return job, nil
}

func (s *Service) logIssues(job repository.Job, kind string, issues []contract.Issue) {
	for _, issue := range issues {
		s.log.Warn("analysis: contract degraded",
			"jobId", job.ID,
			"kind", kind,
			"path", issue.Path,
			"reason", issue.Reason,
		)
	}
}

// isProgress reports whether the delivery only announces job state.
func isProgress(env contract.Envelope) bool {
	if env.HasError() || len(env.Result) > 0 {
		return false
	}
	if env.Status == nil {
		return true
	}
	status, ok := domain.ParseJobStatus(strings.ToLower(strings.TrimSpace(*env.Status)))
	return !ok || status != domain.JobStatusCompleted
}

func sameHash(stored *string, hash string) bool {
	return stored != nil && *stored == hash
}
