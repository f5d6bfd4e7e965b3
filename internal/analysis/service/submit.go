package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/engine"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/platform/apperr"
)

// SubmitParams describes a job to track. When ExternalJobID is empty the
// work is first sent to the engine and its id is used.
type SubmitParams struct {
	TenantID      uuid.UUID
	SubjectType   domain.SubjectType
	SubjectID     uuid.UUID
	ExternalJobID string
	MediaURL      string
	CallbackURL   string
}

// Submit registers an analysis job for the tenant.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (repository.Job, error) {
	if !p.SubjectType.Valid() {
		return repository.Job{}, apperr.Validation("invalid subject type").WithOp(opSubmit)
	}
	if p.TenantID == uuid.Nil || p.SubjectID == uuid.Nil {
		return repository.Job{}, apperr.Validation("tenant and subject are required").WithOp(opSubmit)
	}

	externalID := p.ExternalJobID
	if externalID == "" {
		if s.engine == nil {
			return repository.Job{}, apperr.Unavailable("analysis engine is not configured").WithOp(opSubmit)
		}
		id, err := s.engine.Submit(ctx, engine.SubmitRequest{
			TenantID:    p.TenantID,
			SubjectType: string(p.SubjectType),
			SubjectID:   p.SubjectID,
			MediaURL:    p.MediaURL,
			CallbackURL: p.CallbackURL,
		})
		if err != nil {
			return repository.Job{}, engineError(err)
		}
		externalID = id
	}

	job, err := s.store.CreateJob(ctx, repository.CreateJobParams{
		TenantID:      p.TenantID,
		ExternalJobID: externalID,
		SubjectType:   p.SubjectType,
		SubjectID:     p.SubjectID,
	})
	if errors.Is(err, repository.ErrDuplicateJob) {
		return repository.Job{}, apperr.Conflict("analysis job already registered").WithOp(opSubmit)
	}
	if err != nil {
		s.log.DatabaseError(opSubmit, err)
		return repository.Job{}, transient(opSubmit, err)
	}

	s.log.Info("analysis: job submitted", "jobId", job.ID, "externalJobId", job.ExternalJobID, "subjectType", job.SubjectType)
	return job, nil
}

func engineError(err error) error {
	var statusErr *engine.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests {
		return apperr.BadRequest("analysis engine rejected the job").WithOp(opSubmit).WithErr(err)
	}
	return apperr.Unavailable("analysis engine unavailable").WithOp(opSubmit).WithErr(err)
}
