package domain

import "strings"

// LeadStatus is the sales pipeline position of a lead.
type LeadStatus string

const (
	LeadStatusNew                        LeadStatus = "new"
	LeadStatusQualifiedBooked            LeadStatus = "qualified_booked"
	LeadStatusQualifiedUnbooked          LeadStatus = "qualified_unbooked"
	LeadStatusQualifiedServiceNotOffered LeadStatus = "qualified_service_not_offered"
	LeadStatusClosedWon                  LeadStatus = "closed_won"
	LeadStatusClosedLost                 LeadStatus = "closed_lost"
)

var knownLeadStatuses = map[LeadStatus]struct{}{
	LeadStatusNew:                        {},
	LeadStatusQualifiedBooked:            {},
	LeadStatusQualifiedUnbooked:          {},
	LeadStatusQualifiedServiceNotOffered: {},
	LeadStatusClosedWon:                  {},
	LeadStatusClosedLost:                 {},
}

// IsKnownLeadStatus reports whether s is part of the lead vocabulary.
func IsKnownLeadStatus(s LeadStatus) bool {
	_, ok := knownLeadStatuses[s]
	return ok
}

// IsClosed reports whether the lead has left the active pipeline.
func (s LeadStatus) IsClosed() bool {
	return s == LeadStatusClosedWon || s == LeadStatusClosedLost
}

// AppointmentOutcome is the result recorded for a visit.
type AppointmentOutcome string

const (
	OutcomePending     AppointmentOutcome = "PENDING"
	OutcomeWon         AppointmentOutcome = "WON"
	OutcomeLost        AppointmentOutcome = "LOST"
	OutcomeNoShow      AppointmentOutcome = "NO_SHOW"
	OutcomeRescheduled AppointmentOutcome = "RESCHEDULED"
)

// AppointmentStatus is the scheduling state of a visit.
type AppointmentStatus string

const (
	AppointmentScheduled   AppointmentStatus = "SCHEDULED"
	AppointmentCompleted   AppointmentStatus = "COMPLETED"
	AppointmentNoShow      AppointmentStatus = "NO_SHOW"
	AppointmentRescheduled AppointmentStatus = "RESCHEDULED"
)

// IsKnownAppointmentOutcome reports whether o is part of the vocabulary.
func IsKnownAppointmentOutcome(o AppointmentOutcome) bool {
	switch o {
	case OutcomePending, OutcomeWon, OutcomeLost, OutcomeNoShow, OutcomeRescheduled:
		return true
	}
	return false
}

// Status returns the appointment status implied by an outcome.
func (o AppointmentOutcome) Status() AppointmentStatus {
	switch o {
	case OutcomeWon, OutcomeLost:
		return AppointmentCompleted
	case OutcomeNoShow:
		return AppointmentNoShow
	case OutcomeRescheduled:
		return AppointmentRescheduled
	default:
		return AppointmentScheduled
	}
}

// CascadeLeadStatus returns the lead status an outcome forces, if any.
// Only WON and LOST close the lead.
func (o AppointmentOutcome) CascadeLeadStatus() (LeadStatus, bool) {
	switch o {
	case OutcomeWon:
		return LeadStatusClosedWon, true
	case OutcomeLost:
		return LeadStatusClosedLost, true
	}
	return "", false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
