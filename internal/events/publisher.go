package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// PaymentStatusChanged is emitted after a reconciliation commit moves a
// payment (and its order) to a new status.
type PaymentStatusChanged struct {
	InvoiceNumber  string    `json:"invoice_number"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	OrderKind      string    `json:"order_kind"`
	Source         string    `json:"source"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishPaymentStatusChanged(ctx context.Context, evt PaymentStatusChanged) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher dials the brokers with a synchronous, fully-acked producer.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, topic), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishPaymentStatusChanged(ctx context.Context, evt PaymentStatusChanged) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	// keyed by invoice so one invoice's events stay ordered within a partition
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.InvoiceNumber),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishPaymentStatusChanged(context.Context, PaymentStatusChanged) error { return nil }
func (Nop) Close() error                                                           { return nil }
