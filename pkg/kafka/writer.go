// Package kafka forwards order events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/freshfeet/storefront-backend/pkg/config"
	"github.com/freshfeet/storefront-backend/pkg/logger"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
)

const (
	sinkName            = "kafka"
	defaultWriteTimeout = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer publishes order events keyed by order number, so every event for one
// order lands on the same partition.
type Writer struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	now     func() time.Time
}

// NewWriter builds a Kafka sink from configuration.
func NewWriter(cfg config.KafkaConfig, logg *logger.Logger) (*Writer, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.OrdersTopic == "" {
		return nil, errors.New("kafka orders topic is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
	}
	if logg != nil {
		logg.Info(logg.WithFields(context.Background(), map[string]any{
			"topic":   cfg.OrdersTopic,
			"brokers": brokers,
		}), "kafka writer initialized")
	}
	return newWriter(w, cfg.OrdersTopic, timeout), nil
}

func newWriter(w messageWriter, topic string, timeout time.Duration) *Writer {
	return &Writer{writer: w, topic: topic, timeout: timeout, now: time.Now}
}

func (w *Writer) Name() string {
	return sinkName
}

// Publish writes msg synchronously and returns once the brokers ack it.
func (w *Writer) Publish(ctx context.Context, msg outbox.SinkMessage) error {
	headers := make([]kafka.Header, 0, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.writer.WriteMessages(writeCtx, kafka.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: headers,
		Time:    w.now(),
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", w.topic, err)
	}
	return nil
}

func (w *Writer) Close() error {
	if w == nil || w.writer == nil {
		return nil
	}
	return w.writer.Close()
}
