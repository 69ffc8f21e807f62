package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskhub/apiserver/internal/mq"
)

// Publisher is the part of mq.Backend the queue notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// QueueNotifier hands messages to the mailer worker through a queue.
// A successful Send means the message was enqueued, not delivered.
type QueueNotifier struct {
	publisher Publisher
	queue     string
}

func NewQueueNotifier(publisher Publisher, queue string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: queue}
}

func (n *QueueNotifier) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := n.publisher.Publish(ctx, n.queue, data, map[string]string{
		mq.ContentTypeAttribute: "application/json",
	}); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}
