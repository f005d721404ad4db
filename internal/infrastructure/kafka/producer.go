package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ec-backend/internal/events"
)

// Producer publishes integration events to the shop topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// Publish wraps the payload in an envelope keyed by the aggregate id, so all
// events for one order land on one partition in order.
func (p *Producer) Publish(ctx context.Context, key, eventType string, payload any) error {
	envelope, err := events.Wrap(eventType, payload)
	if err != nil {
		return err
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		log.Printf("[Kafka] Failed to publish %s for %s: %v", eventType, key, err)
	}
	return err
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
