package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/allocation/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Envelope wraps a domain event for the wire. Consumers route on EventType
// and unmarshal Data into the matching event struct.
type Envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// PublishEvent wraps the event in an envelope and writes it, keyed by SKU
// so all events for one product land on the same partition.
func (p *Producer) PublishEvent(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	envelope := Envelope{
		ID:        uuid.New().String(),
		EventType: event.EventName(),
		Data:      data,
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(partitionKey(event)),
		Value: value,
		Time:  envelope.Timestamp,
	})
}

func partitionKey(event domain.Event) string {
	switch e := event.(type) {
	case domain.BatchAllocated:
		return e.Sku
	case domain.OutOfStock:
		return e.Sku
	case domain.Deallocated:
		return e.Sku
	default:
		return event.EventName()
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
