package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/logger"
	"github.com/taskhub/apiserver/internal/mq"
)

// Subscriber is the part of mq.Backend the worker needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker drains the mail queue into a delivering notifier.
type Worker struct {
	subscriber Subscriber
	queue      string
	sender     Notifier
	log        *zap.Logger
}

func NewWorker(subscriber Subscriber, queue string, sender Notifier, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{subscriber: subscriber, queue: queue, sender: sender, log: log}
}

// Run blocks until ctx is done or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("mailer started", zap.String("queue", w.queue))
	err := w.subscriber.Subscribe(ctx, w.queue, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, raw mq.Message) error {
	var msg Message
	if err := json.Unmarshal(raw.Data, &msg); err != nil {
		w.log.Error("dropping malformed mail", zap.String("message_id", raw.ID), zap.Error(err))
		return mq.Discard(err)
	}
	if strings.TrimSpace(msg.To) == "" {
		w.log.Error("dropping mail without recipient", zap.String("message_id", raw.ID))
		return mq.Discard(errors.New("missing recipient"))
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		w.log.Warn("mail delivery failed, will retry",
			zap.String("message_id", raw.ID),
			zap.String("to", logger.MaskEmail(msg.To)),
			zap.Error(err),
		)
		return err
	}
	w.log.Info("mail delivered", zap.String("message_id", raw.ID), zap.String("to", logger.MaskEmail(msg.To)))
	return nil
}
