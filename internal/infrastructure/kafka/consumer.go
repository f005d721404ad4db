package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/example/ec-backend/internal/events"
)

// EnvelopeHandler processes one decoded integration event. A returned error
// is logged and the message is skipped; this consumer does not retry.
type EnvelopeHandler func(ctx context.Context, key string, envelope *events.Envelope) error

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

// Consume reads envelopes until the context is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler EnvelopeHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Error reading message: %v", err)
			continue
		}

		var envelope events.Envelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			log.Printf("[Kafka] Skipping undecodable message at offset %d: %v", msg.Offset, err)
			continue
		}

		if err := handler(ctx, string(msg.Key), &envelope); err != nil {
			log.Printf("[Kafka] Error handling %s for %s: %v", envelope.Type, msg.Key, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
