package service

import (
	"context"

	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/events"
)

// publish emits one event per committed change. Nothing is published for a
// delivery that changed nothing.
func (s *Service) publish(ctx context.Context, job repository.Job, c Changes) {
	if s.eventBus == nil || c.Empty() {
		return
	}

	if l := c.Lead; l != nil {
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			TenantID:  job.TenantID,
			LeadID:    l.LeadID,
			JobID:     job.ID,
			OldStatus: string(l.From),
			NewStatus: string(l.To),
		})
	}

	if a := c.Appointment; a != nil {
		s.eventBus.Publish(ctx, events.AppointmentOutcomeChanged{
			BaseEvent:     events.NewBaseEvent(),
			TenantID:      job.TenantID,
			AppointmentID: a.AppointmentID,
			LeadID:        a.LeadID,
			JobID:         job.ID,
			OldOutcome:    string(a.From),
			NewOutcome:    string(a.To),
			Status:        string(a.Status),
			DealSize:      a.DealSize,
		})
	}

	for _, t := range c.Tasks {
		s.eventBus.Publish(ctx, events.TaskCreated{
			BaseEvent:   events.NewBaseEvent(),
			TenantID:    job.TenantID,
			TaskID:      t.ID,
			LeadID:      t.LeadID,
			JobID:       job.ID,
			Description: t.Description,
			MatchedType: t.MatchedType,
			Assignee:    string(t.Assignee),
		})
	}

	for _, sig := range c.KeySignals {
		s.eventBus.Publish(ctx, events.KeySignalCreated{
			BaseEvent:   events.NewBaseEvent(),
			TenantID:    job.TenantID,
			SignalID:    sig.ID,
			LeadID:      sig.LeadID,
			JobID:       job.ID,
			SignalType:  sig.SignalType,
			Severity:    string(sig.Severity),
			Description: sig.Description,
		})
	}

	if c.Job == nil {
		return
	}
	switch c.Job.To {
	case domain.JobStatusCompleted:
		s.eventBus.Publish(ctx, events.JobCompleted{
			BaseEvent:     events.NewBaseEvent(),
			TenantID:      job.TenantID,
			JobID:         job.ID,
			ExternalJobID: job.ExternalJobID,
			SubjectType:   string(job.SubjectType),
			SubjectID:     job.SubjectID,
		})
	case domain.JobStatusFailed:
		e := events.JobFailed{
			BaseEvent:     events.NewBaseEvent(),
			TenantID:      job.TenantID,
			JobID:         job.ID,
			ExternalJobID: job.ExternalJobID,
		}
		if f := c.Failure; f != nil {
			e.Code, e.Message, e.Retryable = f.Code, f.Message, f.Retryable
		}
		s.eventBus.Publish(ctx, e)
	}
}
