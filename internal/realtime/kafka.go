package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the emitter uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter publishes events keyed by tenant so one tenant's events stay
// ordered on a single partition.
type KafkaEmitter struct {
	writer MessageWriter
	now    func() time.Time
}

type kafkaEnvelope struct {
	Event      string    `json:"event"`
	TenantID   uuid.UUID `json:"tenantId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// NewKafkaEmitter builds a writer for the topic on the given brokers.
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	return NewKafkaEmitterWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	})
}

func NewKafkaEmitterWithWriter(w MessageWriter) *KafkaEmitter {
	return &KafkaEmitter{writer: w, now: time.Now}
}

func (k *KafkaEmitter) Emit(ctx context.Context, event string, payload any, tenantID uuid.UUID) error {
	data, err := json.Marshal(kafkaEnvelope{
		Event:      event,
		TenantID:   tenantID,
		OccurredAt: k.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tenantID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	})
}

// Close flushes and closes the writer.
func (k *KafkaEmitter) Close() error {
	return k.writer.Close()
}

var _ Emitter = (*KafkaEmitter)(nil)
