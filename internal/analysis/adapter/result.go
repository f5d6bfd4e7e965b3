// Package adapter turns engine contracts into normalized results.
package adapter

import (
	"time"

	"portal_analysis_backend/internal/analysis/contract"
	"portal_analysis_backend/internal/analysis/domain"
)

// Kind names the adapter that produced a result.
type Kind string

const (
	KindCallAnalysis  Kind = "call_analysis"
	KindVisitAnalysis Kind = "visit_analysis"
	KindSegmentation  Kind = "segmentation"
	KindError         Kind = "error"
)

// NormalizedResult is produced fresh for every adapter call. Free-text fields
// keep the engine's original string next to whatever was matched, so a later
// vocabulary change can re-derive from stored payloads.
//
// The JSON encoding of this struct is the input to the idempotency
// fingerprint; field order is part of that contract.
type NormalizedResult struct {
	Kind                Kind                `json:"kind"`
	Outcome             *LeadOutcome        `json:"outcome,omitempty"`
	AppointmentOutcome  *VisitOutcome       `json:"appointmentOutcome,omitempty"`
	Qualification       *Qualification      `json:"qualification,omitempty"`
	Objections          []Objection         `json:"objections,omitempty"`
	PendingActions      []PendingAction     `json:"pendingActions,omitempty"`
	MissedOpportunities []MissedOpportunity `json:"missedOpportunities,omitempty"`
	DealSize            *float64            `json:"dealSize,omitempty"`
	Summary             *string             `json:"summary,omitempty"`
	Sentiment           *string             `json:"sentiment,omitempty"`
	Segmentation        *SegmentationStats  `json:"segmentation,omitempty"`
	Failure             *Failure            `json:"failure,omitempty"`

	// Issues lists contract degradations. Not part of the fingerprint.
	Issues []contract.Issue `json:"-"`
}

// LeadOutcome is a call outcome. Status is nil when the outcome is unmapped,
// which reconciliation treats as a no-op.
type LeadOutcome struct {
	Raw    string             `json:"raw"`
	Status *domain.LeadStatus `json:"status,omitempty"`
}

// Mapped reports whether the outcome resolved to a lead status.
func (o *LeadOutcome) Mapped() bool {
	return o != nil && o.Status != nil
}

// VisitOutcome is a visit outcome. Known is false when Outcome is the PENDING
// fallback for an unrecognised string.
type VisitOutcome struct {
	Raw     string                    `json:"raw"`
	Outcome domain.AppointmentOutcome `json:"outcome"`
	Known   bool                      `json:"known"`
}

// Qualification mirrors the contract with the absent fields dropped.
type Qualification struct {
	Budget        *string  `json:"budget,omitempty"`
	Timeline      *string  `json:"timeline,omitempty"`
	DecisionMaker *bool    `json:"decisionMaker,omitempty"`
	ServiceType   *string  `json:"serviceType,omitempty"`
	Needs         []string `json:"needs,omitempty"`
}

// Objection keeps the raw text and its best-effort category.
type Objection struct {
	Raw      string  `json:"raw"`
	RawType  *string `json:"rawType,omitempty"`
	Category string  `json:"category"`
}

// PendingAction is a follow-up task candidate.
type PendingAction struct {
	Raw         string          `json:"raw"`
	MatchedType *string         `json:"matchedType,omitempty"`
	Known       bool            `json:"known"`
	Assignee    domain.Assignee `json:"assignee"`
	RawAssignee *string         `json:"rawAssignee,omitempty"`
	DueAt       *time.Time      `json:"dueAt,omitempty"`
	DueRaw      *string         `json:"dueRaw,omitempty"`
}

// MissedOpportunity is a key signal candidate.
type MissedOpportunity struct {
	Raw        string          `json:"raw"`
	RawType    *string         `json:"rawType,omitempty"`
	SignalType string          `json:"signalType"`
	Severity   domain.Severity `json:"severity"`
}

// SegmentationStats summarises a diarization result.
type SegmentationStats struct {
	Language   *string `json:"language,omitempty"`
	Speakers   int     `json:"speakers"`
	Segments   int     `json:"segments"`
	DurationMs int64   `json:"durationMs"`
}

// Failure is the engine-reported error for a failed job.
type Failure struct {
	Code      string `json:"code"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"requestId,omitempty"`
}
