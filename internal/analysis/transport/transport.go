// Package transport holds the request and response bodies of the analysis
// HTTP endpoints.
package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookResponse acknowledges an engine delivery.
type WebhookResponse struct {
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	JobID            string `json:"jobId"`
}

// SubmitJobRequest registers a job. ExternalJobID is set when the caller
// already submitted the work to the engine itself.
type SubmitJobRequest struct {
	SubjectType   string    `json:"subjectType" validate:"required,subject_type"`
	SubjectID     uuid.UUID `json:"subjectId" validate:"required"`
	ExternalJobID string    `json:"externalJobId" validate:"omitempty,max=200"`
	MediaURL      string    `json:"mediaUrl" validate:"omitempty,url,max=2000"`
}

// JobResponse is the public view of an analysis job.
type JobResponse struct {
	ID               uuid.UUID       `json:"id"`
	ExternalJobID    string          `json:"externalJobId"`
	SubjectType      string          `json:"subjectType"`
	SubjectID        uuid.UUID       `json:"subjectId"`
	Status           string          `json:"status"`
	Processed        bool            `json:"processed"`
	NormalizedResult json.RawMessage `json:"normalizedResult,omitempty"`
	Failure          *JobFailure     `json:"failure,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// JobFailure is the engine error of a failed job.
type JobFailure struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
}
