package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// EnvelopeHandler processes one decoded event envelope.
type EnvelopeHandler func(ctx context.Context, envelope Envelope) error

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume reads envelopes until the context is cancelled. Malformed
// messages and handler errors are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler EnvelopeHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Kafka] error reading message: %v", err)
				continue
			}

			var envelope Envelope
			if err := json.Unmarshal(msg.Value, &envelope); err != nil {
				log.Printf("[Kafka] failed to unmarshal envelope: %v", err)
				continue
			}

			if err := handler(ctx, envelope); err != nil {
				log.Printf("[Kafka] error handling %s: %v", envelope.EventType, err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
