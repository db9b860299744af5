package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// Attachment is a file carried with an email.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	MessageID   string       `json:"message_id"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Validate rejects payloads that can never be delivered.
func (p SendEmailPayload) Validate() error {
	if p.To == "" {
		return errors.New("jobs: email recipient required")
	}
	if p.Subject == "" {
		return errors.New("jobs: email subject required")
	}
	return nil
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Mailer delivers an email synchronously.
type Mailer interface {
	Send(ctx context.Context, payload SendEmailPayload) error
}

// NewSendEmailHandler processes TaskTypeSendEmail tasks with mailer.
// Undecodable or invalid payloads are not retried.
func NewSendEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := payload.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := mailer.Send(ctx, payload); err != nil {
			logger.Warn("send email failed",
				slog.String("message_id", payload.MessageID),
				slog.String("subject", payload.Subject),
				slog.Any("error", err))
			return err
		}
		logger.Info("email sent",
			slog.String("message_id", payload.MessageID),
			slog.String("subject", payload.Subject))
		return nil
	}
}
