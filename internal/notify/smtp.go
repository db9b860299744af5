package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/SGK112/CRM-sub002/jobs"
)

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends jobs.SendEmailPayload over SMTP.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// Send builds a MIME message and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, payload jobs.SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.buildMessage(payload)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{payload.To}, msg); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(payload jobs.SendEmailPayload) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	var msg bytes.Buffer
	header := func(k, v string) {
		msg.WriteString(k + ": " + v + "\r\n")
	}
	header("From", m.cfg.From)
	header("To", payload.To)
	header("Subject", mime.QEncoding.Encode("utf-8", payload.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	if payload.MessageID != "" {
		header("Message-ID", "<"+payload.MessageID+"@"+m.cfg.Host+">")
	}
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/mixed; boundary="+writer.Boundary())
	msg.WriteString("\r\n")

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(textPart)
	if _, err := qp.Write([]byte(payload.Body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	for _, a := range payload.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, a.Content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// writeBase64Lines wraps encoded output at 76 columns.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}
