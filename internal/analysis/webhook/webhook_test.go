package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/repository"
	"portal_analysis_backend/internal/analysis/service"
	"portal_analysis_backend/internal/analysis/transport"
	"portal_analysis_backend/platform/apperr"
	"portal_analysis_backend/platform/logger"
)

const (
	testSecret = "whsec_test"
	webhookURL = "/api/v1/webhooks/analysis"

	errStatus = "expected status %d, got %d: %s"
)

type fakeJobs struct {
	jobs []repository.Job
	err  error
}

func (f *fakeJobs) FindJobsByExternalID(_ context.Context, externalJobID string) ([]repository.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []repository.Job
	for _, j := range f.jobs {
		if j.ExternalJobID == externalJobID {
			out = append(out, j)
		}
	}
	return out, nil
}

// fakeProcessor remembers processed bodies and short-circuits repeats, the
// way the real service does.
type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	seen  map[string]bool
	err   error
}

func (p *fakeProcessor) Process(_ context.Context, job repository.Job, raw []byte) (service.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return service.Outcome{}, p.err
	}
	if p.seen == nil {
		p.seen = map[string]bool{}
	}
	out := service.Outcome{JobID: job.ID, ExternalJobID: job.ExternalJobID, Status: domain.JobStatusCompleted}
	key := job.ID.String() + string(raw)
	out.AlreadyProcessed = p.seen[key]
	p.seen[key] = true
	return out, nil
}

type harness struct {
	router    *gin.Engine
	processor *fakeProcessor
	jobs      *fakeJobs
	now       time.Time
}

func newHarness(jobs ...repository.Job) *harness {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	verifier := NewVerifier(testSecret, 5*time.Minute)
	verifier.now = func() time.Time { return now }

	h := &harness{processor: &fakeProcessor{}, jobs: &fakeJobs{jobs: jobs}, now: now}
	receiver := NewReceiver(verifier, h.jobs, h.processor, logger.Discard())

	h.router = gin.New()
	h.router.POST(webhookURL, NewHandler(receiver).HandleAnalysisWebhook)
	return h
}

func (h *harness) send(body []byte, signature, timestamp string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, signature)
	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set(headerTaskID, "task-1")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) sendSigned(body []byte, at time.Time) *httptest.ResponseRecorder {
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	return h.send(body, Sign(testSecret, ts, body), ts)
}

func newJob(tenantID uuid.UUID, externalID string) repository.Job {
	return repository.Job{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ExternalJobID: externalID,
		SubjectType:   domain.SubjectCall,
		SubjectID:     uuid.New(),
		Status:        domain.JobStatusSubmitted,
	}
}

func payload(jobID string, tenantID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"job_id":%q,"tenant_id":%q,"status":"completed","result":{"outcome":"qualified_and_booked"}}`, jobID, tenantID))
}

func TestValidDeliveryIsProcessed(t *testing.T) {
	tenant := uuid.New()
	h := newHarness(newJob(tenant, "ext-1"))

	rec := h.sendSigned(payload("ext-1", tenant), h.now)
	if rec.Code != http.StatusOK {
		t.Fatalf(errStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp transport.WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "ext-1" || resp.AlreadyProcessed || resp.Status != "completed" {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = h.sendSigned(payload("ext-1", tenant), h.now.Add(time.Second))
	if rec.Code != http.StatusOK {
		t.Fatalf(errStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.AlreadyProcessed {
		t.Fatalf("expected replay to be acknowledged as already processed")
	}
}

func TestTamperedDeliveryIsRejected(t *testing.T) {
	tenant := uuid.New()
	h := newHarness(newJob(tenant, "ext-1"))
	body := payload("ext-1", tenant)
	ts := strconv.FormatInt(h.now.UnixMilli(), 10)
	sig := Sign(testSecret, ts, body)

	for i := range body {
		flipped := bytes.Clone(body)
		flipped[i] ^= 0x01
		if rec := h.send(flipped, sig, ts); rec.Code != http.StatusUnauthorized {
			t.Fatalf("byte %d: "+errStatus, i, http.StatusUnauthorized, rec.Code, rec.Body.String())
		}
	}

	badSig := []byte(sig)
	badSig[0] ^= 0x01
	cases := map[string][2]string{
		"flipped signature":  {string(badSig), ts},
		"empty signature":    {"", ts},
		"non-hex signature":  {"zz" + sig[2:], ts},
		"signed other clock": {sig, strconv.FormatInt(h.now.UnixMilli()+1, 10)},
	}
	for name, c := range cases {
		if rec := h.send(body, c[0], c[1]); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: "+errStatus, name, http.StatusUnauthorized, rec.Code, rec.Body.String())
		}
	}

	if h.processor.calls != 0 {
		t.Fatalf("expected no processing, got %d calls", h.processor.calls)
	}
}

func TestStaleDeliveryIsRejected(t *testing.T) {
	tenant := uuid.New()
	h := newHarness(newJob(tenant, "ext-1"))

	for _, at := range []time.Time{h.now.Add(-6 * time.Minute), h.now.Add(6 * time.Minute)} {
		if rec := h.sendSigned(payload("ext-1", tenant), at); rec.Code != http.StatusUnauthorized {
			t.Fatalf(errStatus, http.StatusUnauthorized, rec.Code, rec.Body.String())
		}
	}
	if rec := h.sendSigned(payload("ext-1", tenant), h.now.Add(-4*time.Minute)); rec.Code != http.StatusOK {
		t.Fatalf(errStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
	if h.processor.calls != 1 {
		t.Fatalf("expected only the fresh delivery to be processed, got %d", h.processor.calls)
	}
}

func TestTenantIsolation(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	h := newHarness(newJob(tenantA, "ext-a"), newJob(tenantB, "ext-b"))

	cases := []struct {
		name string
		body []byte
	}{
		{"b claims a's job", payload("ext-a", tenantB)},
		{"a claims b's job", payload("ext-b", tenantA)},
		{"unknown tenant", payload("ext-a", uuid.New())},
		{"missing tenant", []byte(`{"job_id":"ext-a","status":"completed","result":{}}`)},
		{"garbage tenant", []byte(`{"job_id":"ext-a","tenant_id":"acme","status":"completed"}`)},
	}
	for _, tc := range cases {
		if rec := h.sendSigned(tc.body, h.now); rec.Code != http.StatusForbidden {
			t.Fatalf("%s: "+errStatus, tc.name, http.StatusForbidden, rec.Code, rec.Body.String())
		}
	}
	if h.processor.calls != 0 {
		t.Fatalf("expected no processing, got %d calls", h.processor.calls)
	}
}

func TestSharedExternalIDResolvesPerTenant(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	jobA, jobB := newJob(tenantA, "shared"), newJob(tenantB, "shared")
	h := newHarness(jobA, jobB)

	if rec := h.sendSigned(payload("shared", tenantB), h.now); rec.Code != http.StatusOK {
		t.Fatalf(errStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
	for key := range h.processor.seen {
		if key[:36] != jobB.ID.String() {
			t.Fatalf("expected tenant B's job to be processed")
		}
	}
}

func TestUnknownJob(t *testing.T) {
	tenant := uuid.New()
	h := newHarness(newJob(tenant, "ext-1"))

	if rec := h.sendSigned(payload("nope", tenant), h.now); rec.Code != http.StatusNotFound {
		t.Fatalf(errStatus, http.StatusNotFound, rec.Code, rec.Body.String())
	}
	if rec := h.sendSigned([]byte(`{"status":"completed"}`), h.now); rec.Code != http.StatusBadRequest {
		t.Fatalf(errStatus, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestIntegerJobIDAlias(t *testing.T) {
	tenant := uuid.New()
	h := newHarness(newJob(tenant, "4711"))

	body := []byte(fmt.Sprintf(`{"jobId":4711,"companyId":%q,"status":"completed","result":{}}`, tenant))
	if rec := h.sendSigned(body, h.now); rec.Code != http.StatusOK {
		t.Fatalf(errStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestTransientFailureIs503(t *testing.T) {
	tenant := uuid.New()
	h := newHarness(newJob(tenant, "ext-1"))
	h.processor.err = apperr.Unavailable("retry later").WithErr(service.ErrTransientStorage)

	if rec := h.sendSigned(payload("ext-1", tenant), h.now); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf(errStatus, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	}

	h.processor.err = nil
	h.jobs.err = errors.New("connection reset")
	if rec := h.sendSigned(payload("ext-1", tenant), h.now); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf(errStatus, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	}
}

func TestVerifierErrors(t *testing.T) {
	v := NewVerifier(testSecret, 5*time.Minute)
	now := time.Now()
	v.now = func() time.Time { return now }
	body := []byte(`{}`)

	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if err := v.Verify("sha256="+Sign(testSecret, ts, body), ts, body); err != nil {
		t.Fatalf("expected prefixed signature to verify: %v", err)
	}
	if err := v.Verify(Sign("other", ts, body), ts, body); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	if err := v.Verify(Sign(testSecret, "yesterday", body), "yesterday", body); !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp for a non-numeric timestamp, got %v", err)
	}
}
