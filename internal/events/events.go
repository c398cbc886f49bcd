// README: Order domain events published to Kafka; no-op when no brokers are configured.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderPlaced    = "order.placed"
	TypeOrderCancelled = "order.cancelled"
)

type Event struct {
	ID         string         `json:"event_id"`
	Type       string         `json:"event_type"`
	OrderID    string         `json:"order_id"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, orderID, userID string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    orderID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Publish runs inside order requests, so a single event must flush at once
// instead of waiting on kafka-go's one-second batch timer.
const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 5 * time.Second
)

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher returns a Kafka-backed publisher, or Nop when no brokers are set.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) Publisher {
	if len(brokers) == 0 {
		log.Warn().Msg("event publishing disabled (no kafka brokers configured)")
		return Nop{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			BatchSize:              1,
			BatchTimeout:           batchTimeout,
			WriteTimeout:           writeTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := toMessage(p.topic, e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// toMessage keys by order id so one order's events stay on one partition.
func toMessage(topic string, e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(e.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}
