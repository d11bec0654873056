package mailer

import (
	"context"
	"fmt"
	"os"

	"github.com/touristalert/backend/pkg/logger"
)

// DevMailer prints messages instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) error {
	logger.InfoContext(ctx, "[DEV MAIL] Email", "to", msg.To, "subject", msg.Subject)

	fmt.Fprintf(os.Stdout, "\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s\n"+
		"Subject: %s\n"+
		"\n%s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		msg.To, msg.Subject, msg.Body)

	return nil
}
