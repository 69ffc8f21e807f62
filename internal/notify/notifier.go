// Package notify delivers email to users, either directly over SMTP or
// through a message queue drained by the mailer worker.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/mq"
)

// Message is a plain-text email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the notifier selected by cfg.Backend. The returned close
// function releases broker connections and is never nil.
func New(ctx context.Context, cfg config.NotifierConfig, log *zap.Logger) (Notifier, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.NotifierLog, "":
		return NewLogNotifier(log), noop, nil
	case config.NotifierSMTP:
		n, err := NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			return nil, noop, err
		}
		return n, noop, nil
	case config.NotifierRabbitMQ, config.NotifierPubSub:
		backend, err := mq.Open(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return NewQueueNotifier(backend, cfg.MailQueue), backend.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown notifier backend %q", cfg.Backend)
	}
}
