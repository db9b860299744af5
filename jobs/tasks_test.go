package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []SendEmailPayload
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, payload SendEmailPayload) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, payload)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSendEmailTaskRequiresRecipient(t *testing.T) {
	_, err := NewSendEmailTask(SendEmailPayload{Subject: "hi"})
	require.Error(t, err)
}

func TestSendEmailHandlerDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	task, err := NewSendEmailTask(SendEmailPayload{
		MessageID:   "m-1",
		To:          "ada@example.com",
		Subject:     "Your Estimate",
		Attachments: []Attachment{{Filename: "Estimate-EST-1001.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}},
	})
	require.NoError(t, err)

	err = NewSendEmailHandler(mailer, discardLogger())(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []byte("%PDF"), mailer.sent[0].Attachments[0].Content)
}

func TestSendEmailHandlerSkipsRetryOnBadPayload(t *testing.T) {
	task := asynq.NewTask(TaskTypeSendEmail, []byte("{"))
	err := NewSendEmailHandler(&recordingMailer{}, discardLogger())(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSendEmailHandlerReturnsMailerError(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "s"})
	require.NoError(t, err)

	err = NewSendEmailHandler(mailer, discardLogger())(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthReportsQueue(t *testing.T) {
	h := NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3}}, discardLogger())
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pending)
}

func TestHealthUnavailable(t *testing.T) {
	h := NewHandler(stubInspector{err: errors.New("redis down")}, discardLogger())
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
