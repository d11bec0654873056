// Package worker delivers queued account emails published on notify.send.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/pkg/mailer"
)

const queueGroup = "notify"

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_deliveries_total",
	Help: "Queued emails handled by the notify worker.",
}, []string{"result"})

type Worker struct {
	sender  mailer.Sender
	timeout time.Duration
}

func New(sender mailer.Sender, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Worker{sender: sender, timeout: timeout}
}

// Start subscribes the worker to the notification queue and to the account
// lifecycle subjects, which are only logged.
func (w *Worker) Start(sub events.Subscriber) error {
	if err := sub.QueueSubscribe(events.NotifySend, queueGroup, func(msg *events.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Handle(ctx, msg); err != nil {
			logger.Error("Failed to deliver queued email", "error", err, "message_id", msg.ID)
		}
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.NotifySend, err)
	}

	for _, subject := range []string{
		events.AccountRegistered,
		events.AccountVerified,
		events.AccountPasswordReset,
		events.AccountDeleted,
		events.GuideApproved,
		events.GuideRejected,
	} {
		if err := sub.QueueSubscribe(subject, queueGroup, w.audit); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

func (w *Worker) Handle(ctx context.Context, msg *events.Message) error {
	var n events.NotificationEvent
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		deliveries.WithLabelValues("malformed").Inc()
		return fmt.Errorf("decode notification: %w", err)
	}
	if n.Recipient == "" {
		deliveries.WithLabelValues("malformed").Inc()
		return fmt.Errorf("notification %s has no recipient", msg.ID)
	}

	if err := w.sender.Send(ctx, mailer.Message{To: n.Recipient, Subject: n.Subject, Body: n.Body}); err != nil {
		deliveries.WithLabelValues("failed").Inc()
		return err
	}
	deliveries.WithLabelValues("sent").Inc()
	logger.InfoContext(ctx, "Queued email delivered", "to", n.Recipient, "subject", n.Subject)
	return nil
}

func (w *Worker) audit(msg *events.Message) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logger.Warn("Malformed account event", "subject", msg.Subject, "error", err)
		return
	}
	logger.Info("Account event", "subject", msg.Subject, "account_id", payload["account_id"])
}
