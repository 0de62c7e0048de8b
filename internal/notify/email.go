package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const (
	defaultFromName = "Clinic Scheduler"

	// CategoryReconciliation tags operator alerts about partial commits so
	// they can be filtered at the provider.
	CategoryReconciliation = "reconciliation_gap"
)

// EmailSender delivers operator alerts.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one operator alert. HTML is optional; providers fall back
// to Text.
type EmailMessage struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	Category string
}

type alertField struct {
	label string
	value string
}

// reconciliationEmail renders a gap for the operator inbox. Empty fields are
// left out of both parts.
func reconciliationEmail(to, clinicName string, gap ReconciliationGap) EmailMessage {
	fields := []alertField{{"Sender", gap.SenderID}, {"Patient", gap.PatientName}}
	if gap.Date != "" {
		fields = append(fields, alertField{"Slot", strings.TrimSpace(gap.Date + " " + gap.Time)})
	}
	fields = append(fields,
		alertField{"Appointment ref", gap.AppointmentRef},
		alertField{"Calendar event", gap.CalendarEventID},
	)
	if gap.Err != nil {
		fields = append(fields, alertField{"Error", gap.Err.Error()})
	}
	fields = append(fields, alertField{"Occurred", gap.OccurredAt.Format(time.RFC3339)})

	intro := fmt.Sprintf("A %s operation at %s was only partially committed and needs manual follow-up.", gap.Operation, clinicName)
	var text, markup strings.Builder
	text.WriteString(intro + "\n\n")
	markup.WriteString("<p>" + html.EscapeString(intro) + "</p>\n<table>\n")
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s\n", f.label, f.value)
		fmt.Fprintf(&markup, "<tr><th align=\"left\">%s</th><td>%s</td></tr>\n", f.label, html.EscapeString(f.value))
	}
	markup.WriteString("</table>\n")

	return EmailMessage{
		To:       to,
		Subject:  fmt.Sprintf("[%s] Reconciliation needed: %s", clinicName, gap.Operation),
		Text:     text.String(),
		HTML:     markup.String(),
		Category: CategoryReconciliation,
	}
}

// SendGridSender sends alerts through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil without an API key so callers can fall
// through to another provider.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send delivers msg, tagging it with its category.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return errors.New("notify: sendgrid client not configured")
	}
	markup := msg.HTML
	if markup == "" {
		markup = "<pre>" + html.EscapeString(msg.Text) + "</pre>"
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		markup,
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected alert", "status", response.StatusCode, "body", response.Body, "category", msg.Category)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	s.logger.Info("alert sent via sendgrid", "to", msg.To, "category", msg.Category, "status", response.StatusCode)
	return nil
}

// LogSender only logs alerts. It is used when no provider is configured so a
// gap still leaves a trace beyond the audit row.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Warn("email disabled; alert not delivered",
		"to", msg.To,
		"subject", msg.Subject,
		"category", msg.Category,
		"text", msg.Text,
	)
	return nil
}
