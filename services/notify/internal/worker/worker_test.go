package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/mailer"
)

type stubSender struct {
	sent []mailer.Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubSubscriber struct {
	handlers map[string]func(*events.Message)
}

func (s *stubSubscriber) Subscribe(subject string, h func(*events.Message)) error {
	s.handlers[subject] = h
	return nil
}

func (s *stubSubscriber) QueueSubscribe(subject, _ string, h func(*events.Message)) error {
	s.handlers[subject] = h
	return nil
}

func (s *stubSubscriber) Close() error { return nil }

func notification(t *testing.T, n events.NotificationEvent) *events.Message {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return &events.Message{Subject: events.NotifySend, Data: data, ID: "1", Timestamp: time.Now()}
}

func TestHandle_Delivers(t *testing.T) {
	sender := &stubSender{}
	w := New(sender, time.Second)

	err := w.Handle(context.Background(), notification(t, events.NotificationEvent{
		Recipient: "ram@example.com",
		Subject:   "Verify Your Email - Tourist Alert System",
		Body:      "Your email verification code is: 123456",
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ram@example.com", sender.sent[0].To)
}

func TestHandle_Rejects(t *testing.T) {
	w := New(&stubSender{}, time.Second)

	err := w.Handle(context.Background(), &events.Message{Data: []byte("not json")})
	assert.Error(t, err)

	err = w.Handle(context.Background(), notification(t, events.NotificationEvent{Subject: "x"}))
	assert.Error(t, err)

	failing := New(&stubSender{err: errors.New("smtp down")}, time.Second)
	err = failing.Handle(context.Background(), notification(t, events.NotificationEvent{Recipient: "a@b.io"}))
	assert.EqualError(t, err, "smtp down")
}

func TestStart_SubscribesQueueAndAudit(t *testing.T) {
	sender := &stubSender{}
	sub := &stubSubscriber{handlers: map[string]func(*events.Message){}}
	require.NoError(t, New(sender, time.Second).Start(sub))

	assert.Contains(t, sub.handlers, events.NotifySend)
	assert.Contains(t, sub.handlers, events.GuideApproved)
	assert.Contains(t, sub.handlers, events.AccountDeleted)

	sub.handlers[events.NotifySend](notification(t, events.NotificationEvent{Recipient: "sita@example.com", Subject: "s", Body: "b"}))
	assert.Len(t, sender.sent, 1)
}
