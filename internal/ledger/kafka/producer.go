package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"club-pos/internal/ledger"
	"club-pos/internal/models"

	"github.com/segmentio/kafka-go"
)

const SaleCompletedEvent = "sale.completed"

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams completed sales to a Kafka topic.
type Producer struct {
	Writer MessageWriter
	Topic  string
}

// SaleEvent is the message value; Row mirrors the spreadsheet layout.
type SaleEvent struct {
	Type string            `json:"type"`
	Sale models.SaleRecord `json:"sale"`
	Row  []string          `json:"row"`
}

// NewProducer sends every sale as its own batch so WriteMessages returns as
// soon as the broker acknowledges it.
func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	})
	return &Producer{Writer: writer, Topic: topic}
}

func (p *Producer) Name() string { return "kafka" }

// Append publishes the sale keyed by its id.
func (p *Producer) Append(ctx context.Context, record models.SaleRecord) error {
	msgBytes, err := json.Marshal(SaleEvent{
		Type: SaleCompletedEvent,
		Sale: record,
		Row:  ledger.Row(record),
	})
	if err != nil {
		return fmt.Errorf("encode sale %s: %w", record.ID, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(record.ID),
		Value:   msgBytes,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(SaleCompletedEvent)}},
	})
	if err != nil {
		return fmt.Errorf("publish sale %s to %s: %w", record.ID, p.Topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
