package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"portal_analysis_backend/internal/events"
	"portal_analysis_backend/platform/httpkit"
	"portal_analysis_backend/platform/logger"
)

type emitted struct {
	event    string
	tenantID uuid.UUID
	payload  any
}

type recordingEmitter struct {
	mu   sync.Mutex
	got  []emitted
	fail error
}

func (r *recordingEmitter) Emit(_ context.Context, event string, payload any, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, emitted{event: event, tenantID: tenantID, payload: payload})
	return r.fail
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMultiRunsEveryEmitter(t *testing.T) {
	failing := &recordingEmitter{fail: errors.New("broker down")}
	ok := &recordingEmitter{}

	err := Multi{failing, ok}.Emit(context.Background(), "analysis.task_created", nil, uuid.New())
	if err == nil {
		t.Fatalf("expected error from failing emitter")
	}
	if failing.count() != 1 || ok.count() != 1 {
		t.Fatalf("expected both emitters to run, got %d and %d", failing.count(), ok.count())
	}
}

func TestBridgeForwardsTenantEvents(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	rec := &recordingEmitter{}
	NewBridge(rec, logger.Discard()).Register(bus)

	tenantID := uuid.New()
	err := bus.PublishSync(context.Background(), events.JobCompleted{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		JobID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 emit, got %d", rec.count())
	}
	if rec.got[0].event != events.AnalysisJobCompleted || rec.got[0].tenantID != tenantID {
		t.Fatalf("unexpected emit %+v", rec.got[0])
	}
}

func TestKafkaEmitterKeysByTenant(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafkaEmitterWithWriter(w)
	tenantID := uuid.New()

	if err := k.Emit(context.Background(), events.AnalysisTaskCreated, map[string]string{"taskId": "t1"}, tenantID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != tenantID.String() {
		t.Fatalf("expected tenant key, got %q", msg.Key)
	}
	var env struct {
		Event    string            `json:"event"`
		TenantID uuid.UUID         `json:"tenantId"`
		Payload  map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != events.AnalysisTaskCreated || env.TenantID != tenantID || env.Payload["taskId"] != "t1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestHubEmitWithoutClientsIsNoop(t *testing.T) {
	hub := NewHub(logger.Discard())
	if err := hub.Emit(context.Background(), "x", map[string]int{"a": 1}, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHubStreamsOnlyOwnTenant(t *testing.T) {
	hub := NewHub(logger.Discard())
	tenantID := uuid.New()

	engine := gin.New()
	engine.GET("/events", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextTenantIDKey, tenantID)
		c.Next()
	}, hub.Handler)
	srv := httptest.NewServer(engine)
	defer srv.Close()
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients(tenantID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = hub.Emit(ctx, events.AnalysisLeadStatusChanged, map[string]string{"leadId": "other"}, uuid.New())
	_ = hub.Emit(ctx, events.AnalysisLeadStatusChanged, map[string]string{"leadId": "mine"}, tenantID)

	reader := bufio.NewReader(resp.Body)
	var names []string
	for len(names) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.HasPrefix(line, "event:") {
			names = append(names, strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		}
		if strings.HasPrefix(line, "data:") && strings.Contains(line, "other") {
			t.Fatalf("received another tenant's event: %s", line)
		}
	}
	if names[0] != "connected" || names[1] != "analysis.lead_status_changed" {
		t.Fatalf("unexpected events %v", names)
	}
}
