package mailer

import (
	"context"
	"fmt"

	"github.com/touristalert/backend/pkg/events"
)

// QueueMailer hands messages to the notify worker over NATS. A successful
// publish counts as sent; delivery failures are the worker's to log.
type QueueMailer struct {
	pub events.Publisher
}

func NewQueueMailer(pub events.Publisher) *QueueMailer {
	return &QueueMailer{pub: pub}
}

func (q *QueueMailer) Send(ctx context.Context, msg Message) error {
	err := q.pub.Publish(ctx, events.NotifySend, events.NotificationEvent{
		Recipient: msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
	})
	if err != nil {
		return fmt.Errorf("queue email: %w", err)
	}
	return nil
}
