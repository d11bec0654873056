package mailer

import (
	"context"
	"fmt"

	"github.com/touristalert/backend/pkg/config"
	"github.com/touristalert/backend/pkg/events"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message and reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the transport named by cfg.Transport. The nats transport needs
// a publisher; the others ignore it.
func New(cfg config.EmailConfig, pub events.Publisher) (Sender, error) {
	switch cfg.Transport {
	case "", config.TransportDev:
		return NewDevMailer(), nil
	case config.TransportSMTP:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromName, cfg.FromEmail), nil
	case config.TransportMailerSend:
		if cfg.MailerSendKey == "" {
			return nil, fmt.Errorf("mailersend transport requires MAILERSEND_API_KEY")
		}
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail), nil
	case config.TransportNATS:
		if pub == nil {
			return nil, fmt.Errorf("nats transport requires NATS_URL")
		}
		return NewQueueMailer(pub), nil
	}
	return nil, fmt.Errorf("unknown email transport %q", cfg.Transport)
}
