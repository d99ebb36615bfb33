package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-checkout/internal/models"
)

// Producer streams checkout lifecycle events. One writer per topic, matching
// how the brokers partition them.
type Producer struct {
	orderWriter   *kafka.Writer
	paymentWriter *kafka.Writer
}

func NewProducer(brokers []string, orderTopic, paymentTopic string) *Producer {
	return &Producer{
		orderWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   orderTopic,
		}),
		paymentWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   paymentTopic,
		}),
	}
}

// PublishOrderCreated streams the order creation event.
func (p *Producer) PublishOrderCreated(order models.Order) error {
	msgBytes, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return p.orderWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(order.OrderID),
			Value: msgBytes,
		},
	)
}

// PublishPaymentSucceeded streams the settlement outcome.
func (p *Producer) PublishPaymentSucceeded(result models.PaymentResult) error {
	msgBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return p.paymentWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(result.OrderID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if err := p.orderWriter.Close(); err != nil {
		return fmt.Errorf("failed to close order writer: %w", err)
	}
	return p.paymentWriter.Close()
}
