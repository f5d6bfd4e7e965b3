// Package handler serves the authenticated analysis job endpoints.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	playvalidator "github.com/go-playground/validator/v10"

	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/analysis/service"
	"portal_analysis_backend/internal/analysis/transport"
	"portal_analysis_backend/platform/httpkit"
	"portal_analysis_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// JobService is the part of the analysis service the handler needs.
type JobService interface {
	Submit(ctx context.Context, p service.SubmitParams) (repository.Job, error)
	GetJob(ctx context.Context, tenantID, id uuid.UUID) (repository.Job, error)
	Refresh(ctx context.Context, tenantID, id uuid.UUID) (service.Outcome, error)
}

// Handler serves job submission and lookup.
type Handler struct {
	svc         JobService
	val         *validator.Validator
	callbackURL string
}

// New creates the job handler and registers the subject_type rule on val.
func New(svc JobService, val *validator.Validator, callbackURL string) (*Handler, error) {
	if err := val.RegisterValidation("subject_type", validateSubjectType); err != nil {
		return nil, fmt.Errorf("register subject_type validation: %w", err)
	}
	return &Handler{svc: svc, val: val, callbackURL: callbackURL}, nil
}

// SubmitJob handles POST /api/v1/analysis/jobs
func (h *Handler) SubmitJob(c *gin.Context) {
	var req transport.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	job, err := h.svc.Submit(c.Request.Context(), service.SubmitParams{
		TenantID:      tenantID,
		SubjectType:   domain.SubjectType(req.SubjectType),
		SubjectID:     req.SubjectID,
		ExternalJobID: req.ExternalJobID,
		MediaURL:      req.MediaURL,
		CallbackURL:   h.callbackURL,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toJobResponse(job))
}

// GetJob handles GET /api/v1/analysis/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	job, err := h.svc.GetJob(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toJobResponse(job))
}

// RefreshJob handles POST /api/v1/admin/analysis/jobs/:id/refresh
// Pulls the job state from the engine instead of waiting for the poller.
func (h *Handler) RefreshJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	out, err := h.svc.Refresh(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.WebhookResponse{
		Status:           string(out.Status),
		AlreadyProcessed: out.AlreadyProcessed,
		JobID:            out.ExternalJobID,
	})
}

func toJobResponse(job repository.Job) transport.JobResponse {
	resp := transport.JobResponse{
		ID:               job.ID,
		ExternalJobID:    job.ExternalJobID,
		SubjectType:      string(job.SubjectType),
		SubjectID:        job.SubjectID,
		Status:           string(job.Status),
		Processed:        job.ProcessedOutputHash != nil,
		NormalizedResult: job.NormalizedResult,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
	if job.FailureCode != nil {
		failure := &transport.JobFailure{Code: *job.FailureCode}
		if job.FailureMessage != nil {
			failure.Message = *job.FailureMessage
		}
		if job.FailureRetryable != nil {
			failure.Retryable = *job.FailureRetryable
		}
		resp.Failure = failure
	}
	return resp
}

func validateSubjectType(fl playvalidator.FieldLevel) bool {
	return domain.SubjectType(fl.Field().String()).Valid()
}
