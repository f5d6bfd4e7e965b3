package service

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/adapter"
	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/engine"
	"portal_analysis_backend/internal/analysis/mapping"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/events"
	"portal_analysis_backend/platform/apperr"
	"portal_analysis_backend/platform/logger"
)

const (
	scenarioA = `{"job_id":"ext-1","status":"completed","result":{"outcome":"qualified_and_booked","pending_actions":["follow up tomorrow"]}}`
	scenarioC = `{"job_id":"ext-2","status":"completed","result":{"outcome":"won","deal_size":15000}}`

	errUnexpected = "unexpected error: %v"
)

type fixture struct {
	store *fakeStore
	bus   *recordingBus
	svc   *Service
}

func newFixture() *fixture {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := New(store, adapter.New(mapping.Static{T: mapping.Default()}), bus, logger.Discard())
	return &fixture{store: store, bus: bus, svc: svc}
}

func (f *fixture) callJob(t *testing.T, tenantID uuid.UUID, leadStatus domain.LeadStatus, externalID string) (repository.Job, uuid.UUID) {
	t.Helper()
	leadID := f.store.addLead(tenantID, leadStatus)
	callID := f.store.addCall(leadID)
	job, err := f.svc.Submit(context.Background(), SubmitParams{
		TenantID:      tenantID,
		SubjectType:   domain.SubjectCall,
		SubjectID:     callID,
		ExternalJobID: externalID,
	})
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	return job, leadID
}

func (f *fixture) reload(t *testing.T, job repository.Job) repository.Job {
	t.Helper()
	got, err := f.svc.GetJob(context.Background(), job.TenantID, job.ID)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	return got
}

func TestScenarioACallOutcomeAndUnmappedTask(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	job, leadID := f.callJob(t, tenantID, domain.LeadStatusNew, "ext-1")

	out, err := f.svc.Process(context.Background(), job, []byte(scenarioA))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.AlreadyProcessed {
		t.Fatalf("expected first delivery to be processed")
	}
	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}

	state := f.store.snapshot()
	if got := state.leads[leadID].Status; got != domain.LeadStatusQualifiedBooked {
		t.Fatalf("expected lead qualified_booked, got %s", got)
	}
	if len(state.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(state.history))
	}
	if len(state.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(state.tasks))
	}
	for _, task := range state.tasks {
		if task.Known || task.Assignee != domain.AssigneeCSR || task.Description != "follow up tomorrow" {
			t.Fatalf("unexpected task %+v", task)
		}
	}

	names := f.bus.names()
	for _, want := range []string{events.AnalysisLeadStatusChanged, events.AnalysisTaskCreated, events.AnalysisJobCompleted} {
		if !slices.Contains(names, want) {
			t.Fatalf("expected event %s, got %v", want, names)
		}
	}
}

func TestScenarioBRedeliveryIsNoOp(t *testing.T) {
	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")

	if _, err := f.svc.Process(context.Background(), job, []byte(scenarioA)); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	before := f.store.snapshot()
	published := len(f.bus.names())

	// Both the reloaded job (pre-check) and the stale copy (re-check under
	// the row lock) must short-circuit.
	for _, candidate := range []repository.Job{f.reload(t, job), job} {
		out, err := f.svc.Process(context.Background(), candidate, []byte(scenarioA))
		if err != nil {
			t.Fatalf(errUnexpected, err)
		}
		if !out.AlreadyProcessed {
			t.Fatalf("expected already processed")
		}
	}

	after := f.store.snapshot()
	if len(after.tasks) != len(before.tasks) || len(after.history) != len(before.history) {
		t.Fatalf("expected no new rows, tasks %d->%d history %d->%d",
			len(before.tasks), len(after.tasks), len(before.history), len(after.history))
	}
	if len(f.bus.names()) != published {
		t.Fatalf("expected no events on replay")
	}
}

func TestNDeliveriesEqualOne(t *testing.T) {
	payload := []byte(`{"job_id":"ext-9","status":"completed","result":{
		"outcome":"qualified_not_booked",
		"pending_actions":["send a quote","follow up tomorrow"],
		"missed_opportunities":[{"type":"financing","description":"did not mention financing"}]
	}}`)

	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-9")
	for range 5 {
		if _, err := f.svc.Process(context.Background(), f.reload(t, job), payload); err != nil {
			t.Fatalf(errUnexpected, err)
		}
	}
	state := f.store.snapshot()
	if len(state.tasks) != 2 || len(state.signals) != 1 || len(state.history) != 1 {
		t.Fatalf("expected 2 tasks, 1 signal, 1 history row; got %d, %d, %d",
			len(state.tasks), len(state.signals), len(state.history))
	}
}

func TestSameOutcomeTwiceWritesOneHistoryRow(t *testing.T) {
	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")

	first := []byte(`{"job_id":"ext-1","status":"completed","result":{"outcome":"booked","summary":"first"}}`)
	second := []byte(`{"job_id":"ext-1","status":"completed","result":{"outcome":"qualified_and_booked","summary":"second"}}`)

	if _, err := f.svc.Process(context.Background(), job, first); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	out, err := f.svc.Process(context.Background(), f.reload(t, job), second)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.AlreadyProcessed {
		t.Fatalf("expected a distinct payload to be processed")
	}
	if out.Changes.Lead != nil {
		t.Fatalf("expected no lead change, got %+v", out.Changes.Lead)
	}
	if got := len(f.store.snapshot().history); got != 1 {
		t.Fatalf("expected 1 history row, got %d", got)
	}
}

func TestUnmappedOutcomeLeavesLead(t *testing.T) {
	f := newFixture()
	job, leadID := f.callJob(t, uuid.New(), domain.LeadStatusQualifiedUnbooked, "ext-1")

	out, err := f.svc.Process(context.Background(), job, []byte(`{"job_id":"ext-1","status":"completed","result":{"outcome":"left_voicemail"}}`))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if got := f.store.snapshot().leads[leadID].Status; got != domain.LeadStatusQualifiedUnbooked {
		t.Fatalf("expected lead untouched, got %s", got)
	}
}

func TestScenarioCVisitWonCascades(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	leadID := f.store.addLead(tenantID, domain.LeadStatusQualifiedBooked)
	apptID := f.store.addAppointment(tenantID, leadID, domain.OutcomePending)
	job, err := f.svc.Submit(context.Background(), SubmitParams{
		TenantID: tenantID, SubjectType: domain.SubjectVisit, SubjectID: apptID, ExternalJobID: "ext-2",
	})
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	if _, err := f.svc.Process(context.Background(), job, []byte(scenarioC)); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	state := f.store.snapshot()
	appt := state.appointments[apptID]
	if appt.Outcome != domain.OutcomeWon || appt.Status != domain.AppointmentCompleted {
		t.Fatalf("expected WON/COMPLETED, got %s/%s", appt.Outcome, appt.Status)
	}
	if appt.DealSize == nil || *appt.DealSize != 15000 {
		t.Fatalf("expected deal size 15000, got %v", appt.DealSize)
	}
	lead := state.leads[leadID]
	if lead.Status != domain.LeadStatusClosedWon || lead.ClosedAt == nil {
		t.Fatalf("expected closed_won with closed_at, got %+v", lead)
	}
	if !slices.Contains(f.bus.names(), events.AnalysisAppointmentOutcomeChanged) {
		t.Fatalf("expected appointment event")
	}
}

func TestPendingNeverOverwritesDecidedOutcome(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	leadID := f.store.addLead(tenantID, domain.LeadStatusClosedWon)
	apptID := f.store.addAppointment(tenantID, leadID, domain.OutcomeWon)
	job, err := f.svc.Submit(context.Background(), SubmitParams{
		TenantID: tenantID, SubjectType: domain.SubjectVisit, SubjectID: apptID, ExternalJobID: "ext-3",
	})
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	out, err := f.svc.Process(context.Background(), job, []byte(`{"job_id":"ext-3","status":"completed","result":{"outcome":"something new"}}`))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Changes.Appointment != nil {
		t.Fatalf("expected no appointment change")
	}
	if got := f.store.snapshot().appointments[apptID].Outcome; got != domain.OutcomeWon {
		t.Fatalf("expected WON to stay, got %s", got)
	}
}

func TestNoShowDoesNotTouchLead(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	leadID := f.store.addLead(tenantID, domain.LeadStatusQualifiedBooked)
	apptID := f.store.addAppointment(tenantID, leadID, domain.OutcomePending)
	job, _ := f.svc.Submit(context.Background(), SubmitParams{
		TenantID: tenantID, SubjectType: domain.SubjectVisit, SubjectID: apptID, ExternalJobID: "ext-4",
	})

	if _, err := f.svc.Process(context.Background(), job, []byte(`{"job_id":"ext-4","status":"completed","result":{"outcome":"no_show"}}`)); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	state := f.store.snapshot()
	if state.appointments[apptID].Status != domain.AppointmentNoShow {
		t.Fatalf("expected NO_SHOW status, got %s", state.appointments[apptID].Status)
	}
	if state.leads[leadID].Status != domain.LeadStatusQualifiedBooked || len(state.history) != 0 {
		t.Fatalf("expected lead untouched")
	}
}

func TestExistingNaturalKeyIsNotAnError(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	job, _ := f.callJob(t, tenantID, domain.LeadStatusNew, "ext-1")

	// A concurrent writer already created the task.
	f.store.mu.Lock()
	key := TaskKey(tenantID, job.SubjectID, "follow up tomorrow", nil)
	f.store.state.tasks[tenantID.String()+"/"+key] = repository.NewTask{TenantID: tenantID, NaturalKey: key}
	f.store.mu.Unlock()

	out, err := f.svc.Process(context.Background(), job, []byte(scenarioA))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if len(out.Changes.Tasks) != 0 {
		t.Fatalf("expected no task to be reported as created")
	}
	if slices.Contains(f.bus.names(), events.AnalysisTaskCreated) {
		t.Fatalf("expected no task event")
	}
}

func TestEngineFailureMarksJobFailed(t *testing.T) {
	f := newFixture()
	job, leadID := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")
	payload := []byte(`{"job_id":"ext-1","status":"failed","success":false,"error":{"error_code":"AUDIO_CORRUPT","message":"bad audio","retryable":true}}`)

	out, err := f.svc.Process(context.Background(), job, payload)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	state := f.store.snapshot()
	res := state.results[job.ID]
	if res.Failure == nil || res.Failure.Code != "AUDIO_CORRUPT" || !res.Failure.Retryable {
		t.Fatalf("unexpected stored failure %+v", res.Failure)
	}
	if state.leads[leadID].Status != domain.LeadStatusNew {
		t.Fatalf("expected lead untouched by a failure")
	}
	if !slices.Contains(f.bus.names(), events.AnalysisJobFailed) {
		t.Fatalf("expected job failed event")
	}
}

func TestEmptyErrorDoesNotDiscardSuccessfulResult(t *testing.T) {
	f := newFixture()
	job, leadID := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")
	payload := []byte(`{"job_id":"ext-1","status":"completed","success":true,"error":{},"result":{"outcome":"qualified_and_booked","pending_actions":["follow up tomorrow"]}}`)

	out, err := f.svc.Process(context.Background(), job, payload)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	state := f.store.snapshot()
	if got := state.leads[leadID].Status; got != domain.LeadStatusQualifiedBooked {
		t.Fatalf("expected lead qualified_booked, got %s", got)
	}
	if len(state.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(state.tasks))
	}
}

func TestUppercaseFailedStatusMarksJobFailed(t *testing.T) {
	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-2")

	out, err := f.svc.Process(context.Background(), job, []byte(`{"job_id":"ext-2","status":"FAILED"}`))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
}

func TestFailureAfterCompletionIsIgnored(t *testing.T) {
	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")
	if _, err := f.svc.Process(context.Background(), job, []byte(scenarioA)); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	out, err := f.svc.Process(context.Background(), f.reload(t, job), []byte(`{"job_id":"ext-1","status":"failed","error":"late failure"}`))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("expected job to stay completed, got %s", out.Status)
	}
}

func TestProgressDeliveryMovesToProcessing(t *testing.T) {
	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")

	out, err := f.svc.Process(context.Background(), job, []byte(`{"job_id":"ext-1","status":"processing"}`))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusProcessing {
		t.Fatalf("expected processing, got %s", out.Status)
	}
	reloaded := f.reload(t, job)
	if reloaded.ProcessedOutputHash != nil {
		t.Fatalf("expected no hash for a progress report")
	}

	out, err = f.svc.Process(context.Background(), reloaded, []byte(scenarioA))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Changes.Job == nil || out.Changes.Job.From != domain.JobStatusProcessing {
		t.Fatalf("expected processing -> completed, got %+v", out.Changes.Job)
	}
}

func TestStorageFailureRollsBack(t *testing.T) {
	f := newFixture()
	job, leadID := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")
	f.store.failOnSave = true

	_, err := f.svc.Process(context.Background(), job, []byte(scenarioA))
	if !errors.Is(err, ErrTransientStorage) {
		t.Fatalf("expected transient storage error, got %v", err)
	}
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable kind, got %v", apperr.GetKind(err))
	}

	state := f.store.snapshot()
	if state.leads[leadID].Status != domain.LeadStatusNew || len(state.tasks) != 0 || len(state.history) != 0 {
		t.Fatalf("expected full rollback")
	}
	if state.jobs[job.ID].Status != domain.JobStatusSubmitted {
		t.Fatalf("expected job to stay open")
	}
	if len(f.bus.names()) != 0 {
		t.Fatalf("expected no events after rollback")
	}

	f.store.failOnSave = false
	if _, err := f.svc.Process(context.Background(), job, []byte(scenarioA)); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
}

func TestSegmentationOnlyCompletes(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	leadID := f.store.addLead(tenantID, domain.LeadStatusNew)
	callID := f.store.addCall(leadID)
	job, _ := f.svc.Submit(context.Background(), SubmitParams{
		TenantID: tenantID, SubjectType: domain.SubjectSegmentation, SubjectID: callID, ExternalJobID: "seg-1",
	})

	out, err := f.svc.Process(context.Background(), job, []byte(`{"job_id":"seg-1","status":"completed","result":{"segments":[{"speaker":"A","text":"hi"}]}}`))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if out.Changes.Lead != nil || len(out.Changes.Tasks) != 0 {
		t.Fatalf("expected no domain mutations")
	}
}

type stubEngine struct {
	id        string
	err       error
	req       engine.SubmitRequest
	status    []byte
	statusErr error
}

func (s *stubEngine) Submit(_ context.Context, req engine.SubmitRequest) (string, error) {
	s.req = req
	return s.id, s.err
}

func (s *stubEngine) GetStatus(_ context.Context, _ string) ([]byte, error) {
	return s.status, s.statusErr
}

func TestSubmitThroughEngine(t *testing.T) {
	f := newFixture()
	stub := &stubEngine{id: "eng-42"}
	f.svc.SetEngine(stub)

	job, err := f.svc.Submit(context.Background(), SubmitParams{
		TenantID: uuid.New(), SubjectType: domain.SubjectCall, SubjectID: uuid.New(), MediaURL: "https://media/call.mp3",
	})
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if job.ExternalJobID != "eng-42" || job.Status != domain.JobStatusSubmitted {
		t.Fatalf("unexpected job %+v", job)
	}
	if stub.req.MediaURL != "https://media/call.mp3" {
		t.Fatalf("expected media url to be forwarded")
	}
}

func TestSubmitErrors(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	params := SubmitParams{TenantID: tenantID, SubjectType: domain.SubjectCall, SubjectID: uuid.New(), ExternalJobID: "dup"}

	if _, err := f.svc.Submit(context.Background(), params); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if _, err := f.svc.Submit(context.Background(), params); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	params.ExternalJobID = ""
	if _, err := f.svc.Submit(context.Background(), params); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable without engine, got %v", err)
	}

	f.svc.SetEngine(&stubEngine{err: &engine.StatusError{StatusCode: 422}})
	if _, err := f.svc.Submit(context.Background(), params); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request for a rejected job, got %v", err)
	}

	params.SubjectType = "email"
	if _, err := f.svc.Submit(context.Background(), params); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNaturalKeys(t *testing.T) {
	tenant, subject := uuid.New(), uuid.New()
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := day.Add(5 * time.Hour)
	nextDay := day.Add(24 * time.Hour)

	if TaskKey(tenant, subject, "call back", &day) != TaskKey(tenant, subject, "call back", &later) {
		t.Fatalf("expected same-day due dates to share a key")
	}
	if TaskKey(tenant, subject, "call back", &day) == TaskKey(tenant, subject, "call back", &nextDay) {
		t.Fatalf("expected different days to differ")
	}
	if TaskKey(tenant, subject, "call back", nil) == TaskKey(uuid.New(), subject, "call back", nil) {
		t.Fatalf("expected tenants to be part of the key")
	}
	if SignalKey(tenant, subject, "upsell", "x") == SignalKey(tenant, subject, "", "upsellx") {
		t.Fatalf("expected separator to keep fields apart")
	}
}

func TestDescriptionsAreSanitizedButKeyedOnRawText(t *testing.T) {
	f := newFixture()
	tenantID := uuid.New()
	job, _ := f.callJob(t, tenantID, domain.LeadStatusNew, "ext-html")

	raw := `{"job_id":"ext-html","status":"completed","result":{
		"pending_actions":["<b>send a quote</b>  today"],
		"missed_opportunities":[{"type":"upsell","description":"maintenance &lt;plan&gt; mentioned"}]}}`
	if _, err := f.svc.Process(context.Background(), job, []byte(raw)); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	state := f.store.snapshot()
	for _, task := range state.tasks {
		if task.Description != "send a quote today" {
			t.Fatalf("expected sanitized task description, got %q", task.Description)
		}
		if task.NaturalKey != TaskKey(tenantID, job.SubjectID, "<b>send a quote</b>  today", nil) {
			t.Fatalf("expected natural key over raw text")
		}
	}
	for _, sig := range state.signals {
		if sig.Description != "maintenance mentioned" {
			t.Fatalf("expected sanitized signal description, got %q", sig.Description)
		}
	}
	if len(state.tasks) != 1 || len(state.signals) != 1 {
		t.Fatalf("expected 1 task and 1 signal, got %d and %d", len(state.tasks), len(state.signals))
	}
}

func TestRefreshReconcilesEngineStatus(t *testing.T) {
	f := newFixture()
	job, leadID := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")
	f.svc.SetEngine(&stubEngine{status: []byte(scenarioA)})

	out, err := f.svc.Refresh(context.Background(), job.TenantID, job.ID)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if got := f.store.snapshot().leads[leadID].Status; got != domain.LeadStatusQualifiedBooked {
		t.Fatalf("expected lead qualified_booked, got %s", got)
	}
}

func TestRefreshErrors(t *testing.T) {
	f := newFixture()
	job, _ := f.callJob(t, uuid.New(), domain.LeadStatusNew, "ext-1")

	if _, err := f.svc.Refresh(context.Background(), job.TenantID, job.ID); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable without an engine, got %v", err)
	}

	f.svc.SetEngine(&stubEngine{statusErr: errors.New("dial tcp: refused")})
	if _, err := f.svc.Refresh(context.Background(), job.TenantID, job.ID); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable on engine failure, got %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), uuid.New(), job.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for another tenant, got %v", err)
	}

	if _, err := f.svc.Process(context.Background(), job, []byte(scenarioA)); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	_, err := f.svc.Refresh(context.Background(), job.TenantID, job.ID)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone for a finished job, got %v", err)
	}
	if e, _ := apperr.As(err); e.Details == nil {
		t.Fatalf("expected status details on gone error")
	}
}
