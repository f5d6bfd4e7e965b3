package webhook

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/contract"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/analysis/service"
	"portal_analysis_backend/platform/apperr"
	"portal_analysis_backend/platform/logger"
)

const opReceive = "analysis.webhook.receive"

// Rejection reasons, as logged.
const (
	reasonSignature = "signature_mismatch"
	reasonStale     = "stale_timestamp"
	reasonNoJobID   = "missing_job_id"
	reasonNotFound  = "job_not_found"
	reasonNoTenant  = "missing_tenant"
	reasonTenant    = "tenant_mismatch"
)

// JobFinder looks jobs up by the engine's identifier.
type JobFinder interface {
	FindJobsByExternalID(ctx context.Context, externalJobID string) ([]repository.Job, error)
}

// Processor is the reconciliation entry point.
type Processor interface {
	Process(ctx context.Context, job repository.Job, raw []byte) (service.Outcome, error)
}

// Delivery is one inbound callback.
type Delivery struct {
	Signature string
	Timestamp string
	// TaskID is the optional Task-Id header; it is only logged.
	TaskID   string
	Body     []byte
	ClientIP string
}

// Receiver authenticates deliveries and hands them to the processor.
// Nothing is written before every check has passed.
type Receiver struct {
	verifier  *Verifier
	jobs      JobFinder
	processor Processor
	log       *logger.Logger
}

func NewReceiver(verifier *Verifier, jobs JobFinder, processor Processor, log *logger.Logger) *Receiver {
	return &Receiver{verifier: verifier, jobs: jobs, processor: processor, log: log}
}

// Receive runs a delivery through verification, job resolution and tenant
// checks, then reconciliation.
func (r *Receiver) Receive(ctx context.Context, d Delivery) (service.Outcome, error) {
	if err := r.verifier.Verify(d.Signature, d.Timestamp, d.Body); err != nil {
		if errors.Is(err, ErrStaleTimestamp) {
			r.log.WebhookRejected(reasonStale, "", d.TaskID, d.ClientIP)
			return service.Outcome{}, apperr.Unauthorized("stale webhook timestamp").WithOp(opReceive).WithErr(err)
		}
		r.log.WebhookRejected(reasonSignature, "", d.TaskID, d.ClientIP)
		return service.Outcome{}, apperr.Unauthorized("invalid webhook signature").WithOp(opReceive).WithErr(err)
	}

	env := contract.ParseEnvelope(d.Body)
	if env.JobID == nil {
		r.log.WebhookRejected(reasonNoJobID, "", d.TaskID, d.ClientIP)
		return service.Outcome{}, apperr.BadRequest("job id is required").WithOp(opReceive)
	}
	externalID := *env.JobID

	job, err := r.resolve(ctx, env, d)
	if err != nil {
		return service.Outcome{}, err
	}

	out, err := r.processor.Process(ctx, job, d.Body)
	if err != nil {
		r.log.WithContext(ctx).Warn("analysis: webhook processing failed", "jobId", externalID, "error", err)
		return service.Outcome{}, err
	}
	return out, nil
}

// resolve finds the job and checks the payload's tenant owns it. A job id
// that exists only under another tenant is a 403, not a 404.
func (r *Receiver) resolve(ctx context.Context, env contract.Envelope, d Delivery) (repository.Job, error) {
	externalID := *env.JobID

	jobs, err := r.jobs.FindJobsByExternalID(ctx, externalID)
	if err != nil {
		r.log.DatabaseError(opReceive, err)
		return repository.Job{}, apperr.Unavailable("analysis jobs unavailable").WithOp(opReceive).WithErr(errors.Join(service.ErrTransientStorage, err))
	}
	if len(jobs) == 0 {
		r.log.WebhookRejected(reasonNotFound, externalID, d.TaskID, d.ClientIP)
		return repository.Job{}, apperr.NotFound("analysis job not found").WithOp(opReceive).WithErr(ErrJobNotFound)
	}

	var tenantID uuid.UUID
	if env.TenantID != nil {
		tenantID, err = uuid.Parse(*env.TenantID)
	}
	if env.TenantID == nil || err != nil {
		r.log.WebhookRejected(reasonNoTenant, externalID, d.TaskID, d.ClientIP)
		return repository.Job{}, apperr.Forbidden("tenant does not own this job").WithOp(opReceive).WithErr(ErrTenantMismatch)
	}

	for _, job := range jobs {
		if job.TenantID == tenantID {
			return job, nil
		}
	}
	r.log.WebhookRejected(reasonTenant, externalID, d.TaskID, d.ClientIP)
	return repository.Job{}, apperr.Forbidden("tenant does not own this job").WithOp(opReceive).WithErr(ErrTenantMismatch)
}
