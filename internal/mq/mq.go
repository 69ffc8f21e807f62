// Package mq moves messages through RabbitMQ or Google Cloud Pub/Sub behind
// one interface.
package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhub/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Returning an error requeues the message
// unless the error wraps ErrDiscard.
type Handler func(ctx context.Context, msg Message) error

// ErrDiscard marks a message that can never be processed, such as a
// malformed payload. The backend acknowledges it instead of redelivering.
var ErrDiscard = errors.New("discard message")

// Discard wraps err so the message is dropped rather than retried.
func Discard(err error) error {
	return fmt.Errorf("%w: %w", ErrDiscard, err)
}

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open connects to the broker named by cfg.Backend.
func Open(ctx context.Context, cfg config.NotifierConfig) (Backend, error) {
	switch cfg.Backend {
	case config.NotifierRabbitMQ:
		backend, err := NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.NotifierPubSub:
		backend, err := NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("notifier backend %q has no message queue", cfg.Backend)
	}
}
