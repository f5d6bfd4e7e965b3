// Package realtime fans analysis events out to live consumers: browser
// sessions over SSE and downstream services over Kafka.
package realtime

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"portal_analysis_backend/internal/events"
	"portal_analysis_backend/platform/logger"
)

// Emitter delivers one named event to everyone watching a tenant.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any, tenantID uuid.UUID) error
}

// Multi emits to every wrapped emitter concurrently. All emitters run even
// when one fails; the first error is returned.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event string, payload any, tenantID uuid.UUID) error {
	var g errgroup.Group
	for _, e := range m {
		g.Go(func() error {
			return e.Emit(ctx, event, payload, tenantID)
		})
	}
	return g.Wait()
}

// Bridge forwards analysis bus events to an Emitter.
type Bridge struct {
	emitter Emitter
	log     *logger.Logger
}

func NewBridge(emitter Emitter, log *logger.Logger) *Bridge {
	return &Bridge{emitter: emitter, log: log}
}

// Register subscribes the bridge to every analysis event on bus.
func (b *Bridge) Register(bus events.Bus) {
	for _, name := range events.AnalysisNames {
		bus.Subscribe(name, events.HandlerFunc(b.handle))
	}
}

func (b *Bridge) handle(ctx context.Context, event events.Event) error {
	te, ok := event.(events.TenantEvent)
	if !ok {
		return nil
	}
	if err := b.emitter.Emit(ctx, te.EventName(), te, te.Tenant()); err != nil {
		b.log.Warn("realtime: emit failed", "event", te.EventName(), "tenantId", te.Tenant(), "error", err)
		return err
	}
	return nil
}
