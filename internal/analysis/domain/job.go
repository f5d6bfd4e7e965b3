// Package domain provides the enumerations and transition rules shared by
// the analysis intake, reconciliation and polling paths.
package domain

// JobStatus is the lifecycle state of an AnalysisJob.
type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusSubmitted:  {JobStatusProcessing, JobStatusCompleted, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// IsTerminal reports whether no further status transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether from -> to is a forward move.
// Staying in the same state is not a transition.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseJobStatus maps an engine status string; unknown values return false.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch JobStatus(raw) {
	case JobStatusSubmitted, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return JobStatus(raw), true
	}
	return "", false
}

// SubjectType identifies what an AnalysisJob analyses.
type SubjectType string

const (
	SubjectCall         SubjectType = "call"
	SubjectVisit        SubjectType = "visit"
	SubjectSegmentation SubjectType = "segmentation"
)

// Valid reports whether the subject type is known.
func (s SubjectType) Valid() bool {
	switch s {
	case SubjectCall, SubjectVisit, SubjectSegmentation:
		return true
	}
	return false
}

// Origin returns which side of the business produced the subject.
// Segmentation runs over call recordings.
func (s SubjectType) Origin() Origin {
	if s == SubjectVisit {
		return OriginVisit
	}
	return OriginCall
}

// Origin decides default ownership of follow-up work.
type Origin string

const (
	OriginCall  Origin = "call"
	OriginVisit Origin = "visit"
)

// Assignee is the role a follow-up task is routed to.
type Assignee string

const (
	AssigneeCSR Assignee = "CSR"
	AssigneeRep Assignee = "REP"
)

// ParseAssignee accepts case-insensitive csr/rep.
func ParseAssignee(raw string) (Assignee, bool) {
	switch lower(raw) {
	case "csr":
		return AssigneeCSR, true
	case "rep":
		return AssigneeRep, true
	}
	return "", false
}

// DefaultAssignee is used when an action matches no known pattern.
func DefaultAssignee(origin Origin) Assignee {
	if origin == OriginVisit {
		return AssigneeRep
	}
	return AssigneeCSR
}

// Severity ranks a key signal.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity accepts case-insensitive low/medium/high.
func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(lower(raw)) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	}
	return "", false
}
