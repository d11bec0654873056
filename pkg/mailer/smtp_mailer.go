package mailer

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, fromName, fromEmail string) *SMTPMailer {
	m := gomail.NewMessage()
	return &SMTPMailer{
		dialer: gomail.NewDialer(strings.TrimSpace(host), port, strings.TrimSpace(user), strings.TrimSpace(pass)),
		from:   m.FormatAddress(strings.TrimSpace(fromEmail), fromName),
	}
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("empty recipient email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
