package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"ms-checkout/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer for the given topic and group. Used by
// downstream workers reacting to settlement events.
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

// Start consumes settlement events until the context is cancelled.
func (c *Consumer) Start(ctx context.Context, handler func(result models.PaymentResult)) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading message: %v", err)
			continue
		}

		var result models.PaymentResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			log.Printf("Failed to unmarshal settlement event: %v", err)
			continue
		}

		handler(result)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
