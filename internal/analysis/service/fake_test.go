package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/events"
)

var errInjected = errors.New("injected storage failure")

type fakeState struct {
	jobs         map[uuid.UUID]repository.Job
	leads        map[uuid.UUID]repository.Lead
	history      []repository.StatusHistoryEntry
	calls        map[uuid.UUID]uuid.UUID
	appointments map[uuid.UUID]repository.Appointment
	tasks        map[string]repository.NewTask
	signals      map[string]repository.NewKeySignal
	results      map[uuid.UUID]repository.JobResult
}

func (s fakeState) clone() fakeState {
	return fakeState{
		jobs:         maps.Clone(s.jobs),
		leads:        maps.Clone(s.leads),
		history:      slices.Clone(s.history),
		calls:        maps.Clone(s.calls),
		appointments: maps.Clone(s.appointments),
		tasks:        maps.Clone(s.tasks),
		signals:      maps.Clone(s.signals),
		results:      maps.Clone(s.results),
	}
}

// fakeStore serializes transactions with one mutex and applies a
// transaction's writes only when it returns nil.
type fakeStore struct {
	mu         sync.Mutex
	state      fakeState
	failOnSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: fakeState{
		jobs:         map[uuid.UUID]repository.Job{},
		leads:        map[uuid.UUID]repository.Lead{},
		calls:        map[uuid.UUID]uuid.UUID{},
		appointments: map[uuid.UUID]repository.Appointment{},
		tasks:        map[string]repository.NewTask{},
		signals:      map[string]repository.NewKeySignal{},
		results:      map[uuid.UUID]repository.JobResult{},
	}}
}

func (f *fakeStore) CreateJob(_ context.Context, p repository.CreateJobParams) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.state.jobs {
		if j.TenantID == p.TenantID && j.ExternalJobID == p.ExternalJobID {
			return repository.Job{}, repository.ErrDuplicateJob
		}
	}
	now := time.Now().UTC()
	job := repository.Job{
		ID:            uuid.New(),
		TenantID:      p.TenantID,
		ExternalJobID: p.ExternalJobID,
		SubjectType:   p.SubjectType,
		SubjectID:     p.SubjectID,
		Status:        domain.JobStatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.state.jobs[job.ID] = job
	return job, nil
}

func (f *fakeStore) GetJob(_ context.Context, tenantID, id uuid.UUID) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.state.jobs[id]
	if !ok || job.TenantID != tenantID {
		return repository.Job{}, repository.ErrNotFound
	}
	return job, nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{state: f.state.clone(), failOnSave: f.failOnSave}
	if err := fn(tx); err != nil {
		return err
	}
	f.state = tx.state
	return nil
}

func (f *fakeStore) addLead(tenantID uuid.UUID, status domain.LeadStatus) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.state.leads[id] = repository.Lead{ID: id, TenantID: tenantID, Status: status}
	return id
}

func (f *fakeStore) addCall(leadID uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.state.calls[id] = leadID
	return id
}

func (f *fakeStore) addAppointment(tenantID, leadID uuid.UUID, outcome domain.AppointmentOutcome) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.state.appointments[id] = repository.Appointment{
		ID:       id,
		TenantID: tenantID,
		LeadID:   &leadID,
		Outcome:  outcome,
		Status:   outcome.Status(),
	}
	return id
}

func (f *fakeStore) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

type fakeTx struct {
	state      fakeState
	failOnSave bool
}

func (t *fakeTx) LockJob(_ context.Context, tenantID, jobID uuid.UUID) (repository.Job, error) {
	job, ok := t.state.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return repository.Job{}, repository.ErrNotFound
	}
	return job, nil
}

func (t *fakeTx) ResolveLead(_ context.Context, _ uuid.UUID, subject domain.SubjectType, subjectID uuid.UUID) (*uuid.UUID, error) {
	if subject == domain.SubjectVisit {
		if appt, ok := t.state.appointments[subjectID]; ok {
			return appt.LeadID, nil
		}
		return nil, nil
	}
	if leadID, ok := t.state.calls[subjectID]; ok {
		return &leadID, nil
	}
	return nil, nil
}

func (t *fakeTx) LockLead(_ context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	lead, ok := t.state.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (t *fakeTx) UpdateLeadStatus(_ context.Context, _ uuid.UUID, leadID uuid.UUID, status domain.LeadStatus, closedAt *time.Time) error {
	lead := t.state.leads[leadID]
	lead.Status = status
	if closedAt != nil {
		at := *closedAt
		lead.ClosedAt = &at
	}
	t.state.leads[leadID] = lead
	return nil
}

func (t *fakeTx) AppendLeadStatusHistory(_ context.Context, entry repository.StatusHistoryEntry) error {
	t.state.history = append(t.state.history, entry)
	return nil
}

func (t *fakeTx) LockAppointment(_ context.Context, tenantID, id uuid.UUID) (repository.Appointment, error) {
	appt, ok := t.state.appointments[id]
	if !ok || appt.TenantID != tenantID {
		return repository.Appointment{}, repository.ErrNotFound
	}
	return appt, nil
}

func (t *fakeTx) UpdateAppointmentOutcome(_ context.Context, _ uuid.UUID, id uuid.UUID, outcome domain.AppointmentOutcome, status domain.AppointmentStatus, dealSize *float64) error {
	appt := t.state.appointments[id]
	appt.Outcome = outcome
	appt.Status = status
	if dealSize != nil {
		v := *dealSize
		appt.DealSize = &v
	}
	t.state.appointments[id] = appt
	return nil
}

func (t *fakeTx) CreateTaskIfAbsent(_ context.Context, task repository.NewTask) (uuid.UUID, bool, error) {
	key := task.TenantID.String() + "/" + task.NaturalKey
	if _, exists := t.state.tasks[key]; exists {
		return uuid.Nil, false, nil
	}
	t.state.tasks[key] = task
	return uuid.New(), true, nil
}

func (t *fakeTx) CreateKeySignalIfAbsent(_ context.Context, s repository.NewKeySignal) (uuid.UUID, bool, error) {
	key := s.TenantID.String() + "/" + s.NaturalKey
	if _, exists := t.state.signals[key]; exists {
		return uuid.Nil, false, nil
	}
	t.state.signals[key] = s
	return uuid.New(), true, nil
}

func (t *fakeTx) SaveJobResult(_ context.Context, _ uuid.UUID, jobID uuid.UUID, res repository.JobResult) error {
	if t.failOnSave {
		return errInjected
	}
	job := t.state.jobs[jobID]
	job.Status = res.Status
	if res.Hash != nil {
		h := *res.Hash
		job.ProcessedOutputHash = &h
	}
	if res.Failure != nil {
		job.FailureCode = &res.Failure.Code
	}
	job.UpdatedAt = time.Now().UTC()
	t.state.jobs[jobID] = job
	t.state.results[jobID] = res
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

var (
	_ Store         = (*fakeStore)(nil)
	_ repository.Tx = (*fakeTx)(nil)
	_ events.Bus    = (*recordingBus)(nil)
)
