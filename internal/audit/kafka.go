package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tendant/blog-auth/pkg/domain"
)

// KafkaSink appends events to a Kafka topic, keyed by user so one user's
// events land on one partition in order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  3,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Write(ctx context.Context, e domain.AuditEvent) error {
	msg, err := kafkaMessage(e)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func kafkaMessage(e domain.AuditEvent) (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal audit event: %w", err)
	}
	key := e.ID.String()
	if e.UserID != nil {
		key = e.UserID.String()
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}, nil
}
