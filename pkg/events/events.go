package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/touristalert/backend/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func toMessage(msg *nats.Msg) *Message {
	now := time.Now()
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: now,
		ID:        fmt.Sprintf("%d", now.UnixNano()),
	}
}

// NopBus drops every event. It stands in when NATS_URL is empty.
type NopBus struct{}

func (NopBus) Publish(ctx context.Context, subject string, _ interface{}) error {
	logger.DebugContext(ctx, "Event bus disabled, dropping event", "subject", subject)
	return nil
}

func (NopBus) Subscribe(string, func(*Message)) error             { return nil }
func (NopBus) QueueSubscribe(string, string, func(*Message)) error { return nil }
func (NopBus) Close() error                                        { return nil }

// Event subjects
const (
	AccountRegistered    = "account.registered"
	AccountVerified      = "account.verified"
	AccountPasswordReset = "account.password_reset"
	AccountDeleted       = "account.deleted"

	GuideApproved = "guide.approved"
	GuideRejected = "guide.rejected"

	NotifySend = "notify.send"
)

type AccountRegisteredEvent struct {
	AccountID    string    `json:"account_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

type AccountVerifiedEvent struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	VerifiedAt time.Time `json:"verified_at"`
}

type PasswordResetEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	ResetAt   time.Time `json:"reset_at"`
}

type AccountDeletedEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

type GuideDecisionEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// NotificationEvent is a queued email handed to the notify worker.
type NotificationEvent struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
