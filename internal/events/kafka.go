package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"minute/internal/ordering"
)

// Config selects the Kafka cluster and topic for order events.
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes order events to Kafka, keyed by order ID so every event
// of one order lands on the same partition in order.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds an asynchronous writer; delivery failures are logged
// from the completion callback.
func NewKafkaWriter(cfg Config, logger *zap.Logger) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver order events",
					zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}

// NewPublisher wraps writer.
func NewPublisher(writer MessageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, logger: logger}
}

// Notify publishes created and status-changed events. Rejections carry no
// order and stay local.
func (p *Publisher) Notify(ctx context.Context, ev ordering.Event) {
	if ev.Type != ordering.EventOrderCreated && ev.Type != ordering.EventOrderStatusChanged {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to marshal order event", zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.OrderID), 10)),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	// The request context may be cancelled right after the response is
	// written; the async writer only needs it for enqueueing.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.logger.Error("failed to publish order event",
			zap.Uint("order_id", ev.OrderID),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
