package service

import (
	"context"

	"github.com/google/uuid"

	"portal_analysis_backend/platform/apperr"
)

// Refresh asks the engine for the job's current state and reconciles it
// through Process, the same way a status poll does.
func (s *Service) Refresh(ctx context.Context, tenantID, id uuid.UUID) (Outcome, error) {
	job, err := s.GetJob(ctx, tenantID, id)
	if err != nil {
		return Outcome{}, err
	}
	if job.Status.IsTerminal() {
		return Outcome{}, apperr.Gone("analysis job already finished").
			WithOp(opRefresh).
			WithDetails(map[string]string{"status": string(job.Status)})
	}
	if s.engine == nil {
		return Outcome{}, apperr.Unavailable("analysis engine is not configured").WithOp(opRefresh)
	}

	raw, err := s.engine.GetStatus(ctx, job.ExternalJobID)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindUnavailable, "analysis engine unavailable", err).WithOp(opRefresh)
	}

	s.log.Info("analysis: status refreshed on demand", "jobId", job.ID, "externalJobId", job.ExternalJobID)
	return s.Process(ctx, job, raw)
}
