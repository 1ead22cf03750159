package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tendant/blog-auth/pkg/domain"
)

// AMQPSink publishes events as persistent JSON messages to a durable queue.
type AMQPSink struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPSink dials the broker and declares the queue.
func NewAMQPSink(url, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	s := &AMQPSink{conn: conn, queue: queue}
	if _, err := s.channel(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) Write(ctx context.Context, e domain.AuditEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ch, err := s.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		s.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID.String(),
			Type:         string(e.Type),
			Timestamp:    e.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		// A failed publish may have closed the channel; reopen on the next write.
		s.mu.Lock()
		s.ch = nil
		s.mu.Unlock()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *AMQPSink) channel() (*amqp.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	s.ch = ch
	return ch, nil
}
