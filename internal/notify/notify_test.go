package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SGK112/CRM-sub002/jobs"
)

type fakeQueue struct {
	payloads []jobs.SendEmailPayload
	err      error
}

func (q *fakeQueue) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.payloads = append(q.payloads, payload)
	return &asynq.TaskInfo{ID: payload.MessageID}, nil
}

type outcomes []string

func (o *outcomes) NotificationResult(outcome string) { *o = append(*o, outcome) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueNotifierEnqueues(t *testing.T) {
	queue := &fakeQueue{}
	rec := &outcomes{}
	n := NewQueueNotifier(queue, discardLogger(), rec)

	ok := n.Notify(context.Background(), Message{
		To:          "ada@example.com",
		Subject:     "Your Estimate from Remodely CRM (#EST-1001)",
		Attachments: []Attachment{{Filename: "Estimate-EST-1001.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}},
	})
	require.True(t, ok)
	require.Len(t, queue.payloads, 1)
	assert.NotEmpty(t, queue.payloads[0].MessageID)
	assert.Equal(t, "Estimate-EST-1001.pdf", queue.payloads[0].Attachments[0].Filename)
	assert.Equal(t, []string{"queued"}, []string(*rec))
}

func TestQueueNotifierSwallowsQueueErrors(t *testing.T) {
	rec := &outcomes{}
	n := NewQueueNotifier(&fakeQueue{err: errors.New("redis down")}, discardLogger(), rec)

	assert.False(t, n.Notify(context.Background(), Message{To: "a@example.com", Subject: "s"}))
	assert.Equal(t, []string{"failed"}, []string(*rec))
}

func TestQueueNotifierSkipsMissingRecipient(t *testing.T) {
	queue := &fakeQueue{}
	n := NewQueueNotifier(queue, discardLogger(), nil)

	assert.False(t, n.Notify(context.Background(), Message{Subject: "s"}))
	assert.Empty(t, queue.payloads)
}

func TestSMTPMailerBuildsMultipartMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 1025, From: "billing@remodely.test"})
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var raw []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, raw = addr, to, msg
		return nil
	}

	err := m.Send(context.Background(), jobs.SendEmailPayload{
		MessageID:   "abc",
		To:          "ada@example.com",
		Subject:     "Your Invoice from Remodely CRM (#INV-1001)",
		Body:        "Please find your invoice attached.",
		Attachments: []jobs.Attachment{{Filename: "Invoice-INV-1001.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.7")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:1025", gotAddr)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)

	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "From: billing@remodely.test\r\n"))
	assert.Contains(t, text, "Message-ID: <abc@mail.local>")
	assert.Contains(t, text, "multipart/mixed; boundary=")
	assert.Contains(t, text, `filename=Invoice-INV-1001.pdf`)
	assert.Contains(t, text, "JVBERi0xLjc=")
	assert.Contains(t, text, "Please find your invoice attached.")
}

func TestSMTPMailerWrapsSendError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := m.Send(context.Background(), jobs.SendEmailPayload{To: "a@example.com", Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
