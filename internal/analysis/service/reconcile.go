package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/adapter"
	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/platform/logger"
	"portal_analysis_backend/platform/sanitize"
)

const (
	sourceCallAnalysis  = "call_analysis"
	sourceVisitAnalysis = "visit_analysis"
)

// Changes lists the mutations one delivery actually made.
type Changes struct {
	Job         *JobTransition
	Lead        *LeadChange
	Appointment *AppointmentChange
	Tasks       []CreatedTask
	KeySignals  []CreatedSignal
	Failure     *adapter.Failure
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return c.Job == nil && c.Lead == nil && c.Appointment == nil && len(c.Tasks) == 0 && len(c.KeySignals) == 0
}

type JobTransition struct {
	From domain.JobStatus
	To   domain.JobStatus
}

type LeadChange struct {
	LeadID uuid.UUID
	From   domain.LeadStatus
	To     domain.LeadStatus
}

type AppointmentChange struct {
	AppointmentID uuid.UUID
	LeadID        *uuid.UUID
	From          domain.AppointmentOutcome
	To            domain.AppointmentOutcome
	Status        domain.AppointmentStatus
	DealSize      *float64
}

type CreatedTask struct {
	ID          uuid.UUID
	LeadID      *uuid.UUID
	Description string
	MatchedType *string
	Assignee    domain.Assignee
}

type CreatedSignal struct {
	ID          uuid.UUID
	LeadID      *uuid.UUID
	SignalType  string
	Severity    domain.Severity
	Description string
}

// reconciliation applies one normalized result inside a transaction.
// Every write is conditional on the stored value differing.
type reconciliation struct {
	tx      repository.Tx
	job     repository.Job
	result  adapter.NormalizedResult
	changes *Changes
	now     time.Time
	log     *logger.Logger
}

// apply returns the job row update. write is false when the delivery must
// not touch the job at all.
func (r *reconciliation) apply(ctx context.Context) (save repository.JobResult, write bool, err error) {
	switch r.result.Kind {
	case adapter.KindError:
		return r.applyFailure()
	case adapter.KindCallAnalysis:
		err = r.applyCall(ctx)
	case adapter.KindVisitAnalysis:
		err = r.applyVisit(ctx)
	}
	if err != nil {
		return repository.JobResult{}, false, err
	}

	status := r.job.Status
	if domain.CanTransition(status, domain.JobStatusCompleted) {
		r.changes.Job = &JobTransition{From: status, To: domain.JobStatusCompleted}
		status = domain.JobStatusCompleted
	}
	return repository.JobResult{Status: status}, true, nil
}

func (r *reconciliation) applyFailure() (repository.JobResult, bool, error) {
	if r.job.Status.IsTerminal() {
		r.log.Info("analysis: ignoring failure for finished job", "jobId", r.job.ID, "status", r.job.Status)
		return repository.JobResult{}, false, nil
	}
	f := r.result.Failure
	r.changes.Job = &JobTransition{From: r.job.Status, To: domain.JobStatusFailed}
	r.changes.Failure = f
	return repository.JobResult{
		Status:  domain.JobStatusFailed,
		Failure: &repository.JobFailure{Code: f.Code, Message: f.Message, Retryable: f.Retryable},
	}, true, nil
}

func (r *reconciliation) applyCall(ctx context.Context) error {
	leadID, err := r.tx.ResolveLead(ctx, r.job.TenantID, r.job.SubjectType, r.job.SubjectID)
	if err != nil {
		return err
	}

	if r.result.Outcome.Mapped() {
		if leadID == nil {
			r.log.Warn("analysis: call has no lead, outcome not applied", "jobId", r.job.ID, "callId", r.job.SubjectID)
		} else if err := r.moveLead(ctx, *leadID, *r.result.Outcome.Status, sourceCallAnalysis); err != nil {
			return err
		}
	} else if r.result.Outcome != nil {
		r.log.Warn("analysis: unmapped call outcome", "jobId", r.job.ID, "outcome", r.result.Outcome.Raw)
	}

	return r.createFollowUps(ctx, leadID)
}

func (r *reconciliation) applyVisit(ctx context.Context) error {
	appt, err := r.tx.LockAppointment(ctx, r.job.TenantID, r.job.SubjectID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warn("analysis: appointment not found, outcome not applied", "jobId", r.job.ID, "appointmentId", r.job.SubjectID)
		return r.createFollowUps(ctx, nil)
	}
	if err != nil {
		return err
	}

	if vo := r.result.AppointmentOutcome; vo != nil {
		if !vo.Known {
			r.log.Warn("analysis: unmapped visit outcome", "jobId", r.job.ID, "outcome", vo.Raw)
		}
		if err := r.moveAppointment(ctx, appt, vo.Outcome); err != nil {
			return err
		}
	}
	return r.createFollowUps(ctx, appt.LeadID)
}

func (r *reconciliation) moveAppointment(ctx context.Context, appt repository.Appointment, to domain.AppointmentOutcome) error {
	if appt.Outcome == to {
		return nil
	}
	// PENDING is the fallback for unknown strings; it never undoes a
	// decided outcome.
	if to == domain.OutcomePending {
		r.log.Info("analysis: keeping decided appointment outcome", "jobId", r.job.ID, "appointmentId", appt.ID, "outcome", appt.Outcome)
		return nil
	}

	status := to.Status()
	if err := r.tx.UpdateAppointmentOutcome(ctx, appt.TenantID, appt.ID, to, status, r.result.DealSize); err != nil {
		return err
	}
	r.changes.Appointment = &AppointmentChange{
		AppointmentID: appt.ID,
		LeadID:        appt.LeadID,
		From:          appt.Outcome,
		To:            to,
		Status:        status,
		DealSize:      r.result.DealSize,
	}

	if leadStatus, ok := to.CascadeLeadStatus(); ok && appt.LeadID != nil {
		return r.moveLead(ctx, *appt.LeadID, leadStatus, sourceVisitAnalysis)
	}
	return nil
}

func (r *reconciliation) moveLead(ctx context.Context, leadID uuid.UUID, to domain.LeadStatus, source string) error {
	lead, err := r.tx.LockLead(ctx, r.job.TenantID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warn("analysis: lead not found", "jobId", r.job.ID, "leadId", leadID)
		return nil
	}
	if err != nil {
		return err
	}
	if lead.Status == to {
		return nil
	}

	var closedAt *time.Time
	if to.IsClosed() && lead.ClosedAt == nil {
		closedAt = &r.now
	}
	if err := r.tx.UpdateLeadStatus(ctx, lead.TenantID, lead.ID, to, closedAt); err != nil {
		return err
	}
	if err := r.tx.AppendLeadStatusHistory(ctx, repository.StatusHistoryEntry{
		TenantID: lead.TenantID,
		LeadID:   lead.ID,
		From:     lead.Status,
		To:       to,
		Source:   source,
		JobID:    r.job.ID,
	}); err != nil {
		return err
	}
	r.changes.Lead = &LeadChange{LeadID: lead.ID, From: lead.Status, To: to}
	return nil
}

func (r *reconciliation) createFollowUps(ctx context.Context, leadID *uuid.UUID) error {
	for _, a := range r.result.PendingActions {
		if strings.TrimSpace(a.Raw) == "" {
			continue
		}
		desc := sanitize.Text(a.Raw)
		id, created, err := r.tx.CreateTaskIfAbsent(ctx, repository.NewTask{
			TenantID:    r.job.TenantID,
			NaturalKey:  TaskKey(r.job.TenantID, r.job.SubjectID, a.Raw, a.DueAt),
			SubjectType: r.job.SubjectType,
			SubjectID:   r.job.SubjectID,
			LeadID:      leadID,
			Description: desc,
			MatchedType: a.MatchedType,
			Known:       a.Known,
			Assignee:    a.Assignee,
			DueAt:       a.DueAt,
			JobID:       r.job.ID,
		})
		if err != nil {
			return err
		}
		if created {
			r.changes.Tasks = append(r.changes.Tasks, CreatedTask{
				ID:          id,
				LeadID:      leadID,
				Description: desc,
				MatchedType: a.MatchedType,
				Assignee:    a.Assignee,
			})
		}
	}

	for _, o := range r.result.MissedOpportunities {
		rawType := ""
		if o.RawType != nil {
			rawType = *o.RawType
		}
		if rawType == "" && strings.TrimSpace(o.Raw) == "" {
			continue
		}
		desc := sanitize.Text(o.Raw)
		id, created, err := r.tx.CreateKeySignalIfAbsent(ctx, repository.NewKeySignal{
			TenantID:    r.job.TenantID,
			NaturalKey:  SignalKey(r.job.TenantID, r.job.SubjectID, rawType, o.Raw),
			SubjectType: r.job.SubjectType,
			SubjectID:   r.job.SubjectID,
			LeadID:      leadID,
			SignalType:  o.SignalType,
			Severity:    o.Severity,
			RawType:     rawType,
			Description: desc,
			JobID:       r.job.ID,
		})
		if err != nil {
			return err
		}
		if created {
			r.changes.KeySignals = append(r.changes.KeySignals, CreatedSignal{
				ID:          id,
				LeadID:      leadID,
				SignalType:  o.SignalType,
				Severity:    o.Severity,
				Description: desc,
			})
		}
	}
	return nil
}
