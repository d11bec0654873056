package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	return &MailerSendClient{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (m *MailerSendClient) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("empty recipient email")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	email.SetSubject(msg.Subject)
	email.SetText(msg.Body)

	if _, err := m.client.Email.Send(ctx, email); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}
