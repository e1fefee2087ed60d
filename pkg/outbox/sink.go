package outbox

import "context"

// SinkMessage is an outbox event on its way to an external broker.
type SinkMessage struct {
	Key        string
	Attributes map[string]string
	Data       []byte
}

// Sink forwards events to a broker.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg SinkMessage) error
	Close() error
}

// NoopSink acknowledges every message without sending it anywhere.
type NoopSink struct{}

func (NoopSink) Name() string { return "none" }

func (NoopSink) Publish(context.Context, SinkMessage) error { return nil }

func (NoopSink) Close() error { return nil }
