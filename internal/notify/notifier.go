// Package notify delivers client-facing document emails.
//
// The API process only enqueues; the worker process talks SMTP. A Notifier
// never returns an error to its caller: it reports success as a bool and
// logs the reason for a failure.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/SGK112/CRM-sub002/jobs"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one email to a client.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Outcome reports what happened to the notification that follows a status
// change. It never affects the change itself.
type Outcome struct {
	Attempted bool   `json:"attempted"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

// Skipped is the outcome of a notification that was never attempted.
func Skipped(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Notifier attempts delivery of a message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) bool
}

// Enqueuer is satisfied by *jobs.Client.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Recorder observes notification outcomes.
type Recorder interface {
	NotificationResult(outcome string)
}

// QueueNotifier hands messages to the background mail queue.
type QueueNotifier struct {
	queue    Enqueuer
	logger   *slog.Logger
	recorder Recorder
}

// NewQueueNotifier constructs a QueueNotifier. recorder may be nil.
func NewQueueNotifier(queue Enqueuer, logger *slog.Logger, recorder Recorder) *QueueNotifier {
	return &QueueNotifier{queue: queue, logger: logger, recorder: recorder}
}

// Notify enqueues msg and reports whether the queue accepted it.
func (n *QueueNotifier) Notify(ctx context.Context, msg Message) bool {
	if msg.To == "" {
		n.record("skipped")
		return false
	}
	payload := jobs.SendEmailPayload{
		MessageID: uuid.NewString(),
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, jobs.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}
	info, err := n.queue.EnqueueSendEmail(ctx, payload)
	if err != nil {
		n.logger.Warn("enqueue notification failed",
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
		n.record("failed")
		return false
	}
	n.logger.Debug("notification queued",
		slog.String("message_id", payload.MessageID),
		slog.String("task_id", info.ID))
	n.record("queued")
	return true
}

func (n *QueueNotifier) record(outcome string) {
	if n.recorder != nil {
		n.recorder.NotificationResult(outcome)
	}
}
