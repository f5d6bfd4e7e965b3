package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/domain"
)

// Job is one unit of work submitted to the analysis engine.
type Job struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	ExternalJobID       string
	SubjectType         domain.SubjectType
	SubjectID           uuid.UUID
	Status              domain.JobStatus
	ProcessedOutputHash *string
	NormalizedResult    json.RawMessage
	FailureCode         *string
	FailureMessage      *string
	FailureRetryable    *bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateJobParams holds the fields known at submission time.
type CreateJobParams struct {
	TenantID      uuid.UUID
	ExternalJobID string
	SubjectType   domain.SubjectType
	SubjectID     uuid.UUID
}

// Lead carries the lead columns reconciliation reads.
type Lead struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Status   domain.LeadStatus
	ClosedAt *time.Time
}

// Appointment carries the appointment columns reconciliation reads.
type Appointment struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	LeadID   *uuid.UUID
	Outcome  domain.AppointmentOutcome
	Status   domain.AppointmentStatus
	DealSize *float64
}

// StatusHistoryEntry is one appended lead status change.
type StatusHistoryEntry struct {
	TenantID uuid.UUID
	LeadID   uuid.UUID
	From     domain.LeadStatus
	To       domain.LeadStatus
	Source   string
	JobID    uuid.UUID
}

// NewTask is a follow-up task to create if its natural key is unused.
type NewTask struct {
	TenantID    uuid.UUID
	NaturalKey  string
	SubjectType domain.SubjectType
	SubjectID   uuid.UUID
	LeadID      *uuid.UUID
	Description string
	MatchedType *string
	Known       bool
	Assignee    domain.Assignee
	DueAt       *time.Time
	JobID       uuid.UUID
}

// NewKeySignal is a flagged insight to create if its natural key is unused.
type NewKeySignal struct {
	TenantID    uuid.UUID
	NaturalKey  string
	SubjectType domain.SubjectType
	SubjectID   uuid.UUID
	LeadID      *uuid.UUID
	SignalType  string
	Severity    domain.Severity
	RawType     string
	Description string
	JobID       uuid.UUID
}

// JobFailure is the engine error stored on a failed job.
type JobFailure struct {
	Code      string
	Message   string
	Retryable bool
}

// JobResult is written together with the reconciliation mutations.
// A nil Hash leaves the stored hash untouched.
type JobResult struct {
	Status     domain.JobStatus
	Hash       *string
	Raw        json.RawMessage
	Normalized json.RawMessage
	Failure    *JobFailure
}
