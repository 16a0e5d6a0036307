// Package mail sends department reminder email.
package mail

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	defaultHost = "https://api.sendgrid.com"
	sendPath    = "/v3/mail/send"
)

// Recipient is a named mailbox.
type Recipient struct {
	Name  string
	Email string
}

// Message is a plain and HTML mail sent to every recipient separately.
type Message struct {
	To      []Recipient
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid delivers through the SendGrid v3 API.
type SendGrid struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGrid constructs a SendGrid mailer. An empty host targets the public API.
func NewSendGrid(key, appName, fromEmail, host string) *SendGrid {
	if host == "" {
		host = defaultHost
	}
	prefix := ""
	if appName != "" {
		prefix = "[" + appName + "] "
	}
	return &SendGrid{
		key:        key,
		host:       host,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: prefix,
	}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = s.subjPrefix + msg.Subject
	// One personalization per recipient keeps addresses private.
	for _, to := range msg.To {
		p := sgmail.NewPersonalization()
		p.AddTos(sgmail.NewEmail(to.Name, to.Email))
		m.AddPersonalizations(p)
	}
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	req := sendgrid.GetRequest(s.key, sendPath, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned %d: %s", res.StatusCode, strings.TrimSpace(res.Body))
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a mailer for environments without SendGrid.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(ctx context.Context, msg Message) error {
	addrs := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		addrs = append(addrs, to.Email)
	}
	l.logger.Info("mail not sent, sendgrid not configured",
		zap.Strings("to", addrs),
		zap.String("subject", msg.Subject),
	)
	return nil
}
