package mailer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/touristalert/backend/pkg/logger"
)

var emailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_emails_total",
	Help: "Outbound account emails by result.",
}, []string{"result"})

// Sink is the notification contract the workflows depend on: it never
// returns an error, only whether the message went out.
type Sink interface {
	Send(ctx context.Context, to, subject, body string) bool
}

type sink struct {
	sender Sender
}

func NewSink(sender Sender) Sink {
	return &sink{sender: sender}
}

func (s *sink) Send(ctx context.Context, to, subject, body string) bool {
	if err := s.sender.Send(ctx, Message{To: to, Subject: subject, Body: body}); err != nil {
		emailsSent.WithLabelValues("failed").Inc()
		logger.ErrorContext(ctx, "Failed to send email", "error", err, "to", to, "subject", subject)
		return false
	}
	emailsSent.WithLabelValues("sent").Inc()
	return true
}
