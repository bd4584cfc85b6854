package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"virtual-wallet/backend/internal/audit/domain"
)

// MessageReader is the subset of *kafka.Reader the consumer uses. Offsets are committed explicitly.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

var errMalformedEvent = errors.New("audit: event missing id or name")

// DecodeKafkaEvent parses a payload written by KafkaSink.
func DecodeKafkaEvent(value []byte) (*domain.AuditLog, error) {
	var ev kafkaEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return nil, err
	}
	if ev.ID == "" || ev.Event == "" {
		return nil, errMalformedEvent
	}
	return &domain.AuditLog{
		ID:        ev.ID,
		Event:     ev.Event,
		AccountID: ev.UserID,
		Phone:     ev.Phone,
		Reason:    ev.Reason,
		IP:        ev.IP,
		CreatedAt: ev.Timestamp.UTC(),
	}, nil
}

// Consumer copies audit events from Kafka into a Sink with at-least-once delivery: an offset is
// committed only after the event is stored, or when the payload can never be decoded.
type Consumer struct {
	reader MessageReader
	sink   Sink
	log    *zap.Logger
	// retryMin and retryMax bound the backoff between failed writes of one event.
	retryMin time.Duration
	retryMax time.Duration
}

// NewConsumer returns a Consumer reading from r and writing to sink.
func NewConsumer(r MessageReader, sink Sink, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: r, sink: sink, log: log, retryMin: 500 * time.Millisecond, retryMax: 30 * time.Second}
}

// Run consumes until ctx is done. A failing sink blocks the partition and is retried with backoff
// rather than skipped, so an outage delays ingestion instead of losing events.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("audit consumer: kafka fetch error", zap.Error(err))
			continue
		}
		entry, err := DecodeKafkaEvent(msg.Value)
		if err != nil {
			c.log.Warn("audit consumer: dropping malformed event",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		} else if err := c.store(ctx, entry); err != nil {
			// Only cancellation ends the retry loop; the offset stays uncommitted for redelivery.
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("audit consumer: commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) store(ctx context.Context, entry *domain.AuditLog) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryMin
	b.MaxInterval = c.retryMax
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return struct{}{}, c.sink.Write(writeCtx, entry)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("audit consumer: write failed, retrying",
				zap.String("audit_id", entry.ID), zap.Duration("retry_in", next), zap.Error(err))
		}),
	)
	return err
}

// NewKafkaReader returns a consumer-group reader for the audit topic. Commits are synchronous and
// issued by Consumer after each stored event.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
	})
}
