package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"virtual-wallet/backend/internal/audit/domain"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes entries as JSON keyed by account id, so one account's events stay ordered in a partition.
type KafkaSink struct {
	writer MessageWriter
}

type kafkaEvent struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	UserID    string    `json:"user_id,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
}

// NewKafkaSink returns a sink writing to topic on brokers, or nil when either is empty. Call Close when shutting down.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// NewKafkaSinkWithWriter wraps an existing writer.
func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Write(ctx context.Context, e *domain.AuditLog) error {
	payload, err := json.Marshal(kafkaEvent{
		ID:        e.ID,
		Event:     e.Event,
		UserID:    e.AccountID,
		Phone:     e.Phone,
		Reason:    e.Reason,
		IP:        e.IP,
		Timestamp: e.CreatedAt,
	})
	if err != nil {
		return err
	}
	var key []byte
	if e.AccountID != "" {
		key = []byte(e.AccountID)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: payload, Time: e.CreatedAt})
}

// Close closes the Kafka writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
