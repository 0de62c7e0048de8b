package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "",
		FromEmail: "test@example.com",
	}, nil)

	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "test@example.com",
		FromName:  "",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name 'Clinic Scheduler', got %q", sender.fromName)
	}
}

func TestNewSendGridSender_CustomFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "test@example.com",
		FromName:  "Custom Name",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Custom Name" {
		t.Errorf("expected from name 'Custom Name', got %q", sender.fromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{
		client: nil,
	}

	err := sender.Send(context.Background(), EmailMessage{
		To:      "recipient@example.com",
		Subject: "Test",
		Text:    "Test body",
	})

	if err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestLogSender_Send(t *testing.T) {
	sender := NewLogSender(nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "recipient@example.com",
		Subject: "Test Subject",
		Text:    "Test body",
	})

	if err != nil {
		t.Errorf("log sender should not return error, got: %v", err)
	}
}

type stubSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (s *stubSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &stubSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "alerts@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "ops@example.com",
		Subject: "Reconciliation needed: book",
		Text:    "details",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "Clinic Scheduler <alerts@example.com>" {
		t.Errorf("unexpected from address %q", got)
	}
	if api.input.Content.Simple.Body.Html != nil {
		t.Error("expected no HTML part for a plain message")
	}
	if len(api.input.EmailTags) != 0 {
		t.Errorf("expected no tags without a category, got %+v", api.input.EmailTags)
	}

	api.err = errors.New("throttled")
	if err := sender.Send(context.Background(), EmailMessage{To: "ops@example.com"}); err == nil {
		t.Fatal("expected SES error")
	}
}

func TestSESSender_SendReconciliationAlert(t *testing.T) {
	api := &stubSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "alerts@example.com"}, nil)

	msg := reconciliationEmail("ops@example.com", "Lakeside Dental", ReconciliationGap{
		Operation: "reschedule",
		SenderID:  "+15550001",
		Err:       errors.New("calendar 503"),
	})
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := api.input.Content.Simple.Body
	if body.Text == nil || body.Html == nil {
		t.Fatalf("expected text and HTML parts, got %+v", body)
	}
	if !strings.Contains(aws.ToString(body.Html.Data), "calendar 503") {
		t.Errorf("expected error in HTML part, got %q", aws.ToString(body.Html.Data))
	}
	tags := api.input.EmailTags
	if len(tags) != 1 || aws.ToString(tags[0].Name) != "category" || aws.ToString(tags[0].Value) != CategoryReconciliation {
		t.Errorf("unexpected tags %+v", tags)
	}
}

func TestReconciliationEmail(t *testing.T) {
	msg := reconciliationEmail("ops@example.com", "Lakeside <Dental>", ReconciliationGap{
		Operation:      "cancel",
		SenderID:       "+15550001",
		AppointmentRef: "row-7",
		OccurredAt:     time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	})

	if msg.To != "ops@example.com" || msg.Category != CategoryReconciliation {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if msg.Subject != "[Lakeside <Dental>] Reconciliation needed: cancel" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"Sender: +15550001", "Appointment ref: row-7", "Occurred: 2025-03-01T09:00:00Z"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("expected text to contain %q, got %q", want, msg.Text)
		}
	}
	for _, absent := range []string{"Patient:", "Slot:", "Calendar event:", "Error:"} {
		if strings.Contains(msg.Text, absent) {
			t.Errorf("expected empty field %q to be omitted, got %q", absent, msg.Text)
		}
	}
	if !strings.Contains(msg.HTML, "Lakeside &lt;Dental&gt;") || strings.Contains(msg.HTML, "<Dental>") {
		t.Errorf("expected escaped clinic name in HTML, got %q", msg.HTML)
	}
}

func TestNewSESSender_NilClient(t *testing.T) {
	if NewSESSender(nil, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without a client")
	}
}
