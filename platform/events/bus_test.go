package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var order []int
	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 2)
		return nil
	}))
	bus.Subscribe("b", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 3)
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected handler order %v", order)
	}
}

func TestPublishSyncJoinsErrorsAndRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(nil)
	boom := errors.New("boom")
	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error { return boom }))
	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error { panic("bad handler") }))

	err := bus.PublishSync(context.Background(), testEvent{name: "a"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
}

func TestPublishIsAsyncAndSurvivesCanceledContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls atomic.Int32
	bus.Subscribe("a", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() != nil {
			t.Errorf("expected detached context, got %v", ctx.Err())
		}
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{name: "a"})
	bus.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}
