// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"portal_analysis_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// TenantEvent is implemented by events that belong to exactly one tenant.
// The realtime bridge only forwards events that implement it.
type TenantEvent interface {
	Event
	Tenant() uuid.UUID
}

// =============================================================================
// Analysis Domain Events
// =============================================================================

const (
	AnalysisLeadStatusChanged         = "analysis.lead_status_changed"
	AnalysisAppointmentOutcomeChanged = "analysis.appointment_outcome_changed"
	AnalysisTaskCreated               = "analysis.task_created"
	AnalysisKeySignalCreated          = "analysis.key_signal_created"
	AnalysisJobCompleted              = "analysis.job_completed"
	AnalysisJobFailed                 = "analysis.job_failed"
)

// AnalysisNames lists every analysis event name, for subscribers that
// forward all of them.
var AnalysisNames = []string{
	AnalysisLeadStatusChanged,
	AnalysisAppointmentOutcomeChanged,
	AnalysisTaskCreated,
	AnalysisKeySignalCreated,
	AnalysisJobCompleted,
	AnalysisJobFailed,
}

// LeadStatusChanged is published when reconciliation moved a lead.
type LeadStatusChanged struct {
	BaseEvent
	TenantID  uuid.UUID `json:"tenantId"`
	LeadID    uuid.UUID `json:"leadId"`
	JobID     uuid.UUID `json:"jobId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string  { return AnalysisLeadStatusChanged }
func (e LeadStatusChanged) Tenant() uuid.UUID { return e.TenantID }

// AppointmentOutcomeChanged is published when a visit result changed an
// appointment's outcome.
type AppointmentOutcomeChanged struct {
	BaseEvent
	TenantID      uuid.UUID  `json:"tenantId"`
	AppointmentID uuid.UUID  `json:"appointmentId"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	JobID         uuid.UUID  `json:"jobId"`
	OldOutcome    string     `json:"oldOutcome"`
	NewOutcome    string     `json:"newOutcome"`
	Status        string     `json:"status"`
	DealSize      *float64   `json:"dealSize,omitempty"`
}

func (e AppointmentOutcomeChanged) EventName() string  { return AnalysisAppointmentOutcomeChanged }
func (e AppointmentOutcomeChanged) Tenant() uuid.UUID { return e.TenantID }

// TaskCreated is published for each follow-up task that did not exist yet.
type TaskCreated struct {
	BaseEvent
	TenantID    uuid.UUID  `json:"tenantId"`
	TaskID      uuid.UUID  `json:"taskId"`
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
	JobID       uuid.UUID  `json:"jobId"`
	Description string     `json:"description"`
	MatchedType *string    `json:"matchedType,omitempty"`
	Assignee    string     `json:"assignee"`
}

func (e TaskCreated) EventName() string  { return AnalysisTaskCreated }
func (e TaskCreated) Tenant() uuid.UUID { return e.TenantID }

// KeySignalCreated is published for each new key signal.
type KeySignalCreated struct {
	BaseEvent
	TenantID    uuid.UUID  `json:"tenantId"`
	SignalID    uuid.UUID  `json:"signalId"`
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
	JobID       uuid.UUID  `json:"jobId"`
	SignalType  string     `json:"signalType"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
}

func (e KeySignalCreated) EventName() string  { return AnalysisKeySignalCreated }
func (e KeySignalCreated) Tenant() uuid.UUID { return e.TenantID }

// JobCompleted is published when a job first reaches completed.
type JobCompleted struct {
	BaseEvent
	TenantID      uuid.UUID `json:"tenantId"`
	JobID         uuid.UUID `json:"jobId"`
	ExternalJobID string    `json:"externalJobId"`
	SubjectType   string    `json:"subjectType"`
	SubjectID     uuid.UUID `json:"subjectId"`
}

func (e JobCompleted) EventName() string  { return AnalysisJobCompleted }
func (e JobCompleted) Tenant() uuid.UUID { return e.TenantID }

// JobFailed is published when the engine reported a failure for an open job.
type JobFailed struct {
	BaseEvent
	TenantID      uuid.UUID `json:"tenantId"`
	JobID         uuid.UUID `json:"jobId"`
	ExternalJobID string    `json:"externalJobId"`
	Code          string    `json:"code"`
	Message       string    `json:"message,omitempty"`
	Retryable     bool      `json:"retryable"`
}

func (e JobFailed) EventName() string  { return AnalysisJobFailed }
func (e JobFailed) Tenant() uuid.UUID { return e.TenantID }
