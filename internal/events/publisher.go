// Package events publishes moderation decisions for downstream consumers
// (notification mailers, audit sinks).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeContentStaged        = "content.staged"
	TypeSubmissionApproved   = "submission.approved"
	TypeSubmissionRejected   = "submission.rejected"
	TypeModificationApproved = "modification.approved"
	TypeModificationRejected = "modification.rejected"
)

type Event struct {
	Type       string    `json:"type"`
	Entity     string    `json:"entity"`
	RecordID   uuid.UUID `json:"record_id"`
	ActorID    uuid.UUID `json:"actor_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// KafkaPublisher writes events keyed by record id so one record's history stays ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		WriteTimeout: 5 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("event delivery failed", "count", len(messages), "error", err)
			}
		},
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RecordID.String()),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	slog.Debug("moderation event", "type", e.Type, "entity", e.Entity, "record_id", e.RecordID.String())
	return nil
}

func (LogPublisher) Close() error { return nil }

// publishTimeout bounds how long a request waits on the bus after its write committed.
var publishTimeout = 2 * time.Second

// Emit publishes and logs failures; moderation decisions never fail because of the bus.
// The publish outlives the request context but not publishTimeout.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		slog.Warn("event publish failed", "type", e.Type, "entity", e.Entity, "error", err)
	}
}
