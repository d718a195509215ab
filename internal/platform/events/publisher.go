// Package events publishes domain events (order placed, refund issued,
// subscription renewed) to Kafka for downstream analytics and notification
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types emitted by the platform.
const (
	TypeOrderPlaced         = "order.placed"
	TypeOrderRefunded       = "order.refunded"
	TypePaymentSucceeded    = "payment.succeeded"
	TypePaymentFailed       = "payment.failed"
	TypeSubscriptionRenewed = "subscription.renewed"
	TypeSubscriptionPaused  = "subscription.paused"
	TypePrescriptionSent    = "prescription.sent"
)

// Event is the envelope written to the events topic.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ClinicSlug string          `json:"clinic_slug"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Publisher emits domain events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType, clinicSlug string, payload interface{}) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic, keyed by clinic slug
// so events for one clinic stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, clinicSlug string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		raw = b
	}

	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ClinicSlug: clinicSlug,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(clinicSlug),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_id", evt.ID).
		Str("event_type", eventType).
		Str("clinic", clinicSlug).
		Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no broker is configured (local
// development, tests).
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                               { return nil }

// Recorder captures published events for test assertions.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, eventType, clinicSlug string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = b
	}
	r.Events = append(r.Events, Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ClinicSlug: clinicSlug,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the event types recorded, in publish order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
