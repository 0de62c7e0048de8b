package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type stubEngine struct {
	seen []conversation.Inbound
	res  conversation.Result
	err  error
}

func (s *stubEngine) HandleMessage(_ context.Context, in conversation.Inbound) (conversation.Result, error) {
	s.seen = append(s.seen, in)
	return s.res, s.err
}

type stubSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubSender) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+"|"+body)
	return s.err
}

func twilioRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/messages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("AccountSid", "AC456")
	form.Set("From", "(555) 000-0001")
	form.Set("To", "+15559990000")
	form.Set("Body", "book tomorrow at 10")
	form.Set("ProfileName", "Ana Lopez")
	return form
}

func TestParseTwilioWebhook(t *testing.T) {
	webhook, err := ParseTwilioWebhook(twilioRequest(validForm()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if webhook.MessageSid != "SM123" || webhook.Body != "book tomorrow at 10" || webhook.ProfileName != "Ana Lopez" {
		t.Fatalf("unexpected webhook %+v", webhook)
	}
}

func TestTwilioWebhookRepliesThroughSender(t *testing.T) {
	engine := &stubEngine{res: conversation.Result{Reply: "What is the reason for your visit?"}}
	sender := &stubSender{}
	roles := func(id string) intent.Role {
		if id == "+15550000001" {
			return intent.RoleDoctor
		}
		return intent.RolePatient
	}
	reg := prometheus.NewRegistry()
	h := NewHandler(engine, sender, roles, metrics.NewMessagingMetrics(reg), logging.New("error"))

	rec := httptest.NewRecorder()
	h.TwilioWebhook(rec, twilioRequest(validForm()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(engine.seen) != 1 {
		t.Fatalf("expected one turn, got %d", len(engine.seen))
	}
	in := engine.seen[0]
	if in.SenderID != "+15550000001" || in.Role != intent.RoleDoctor || in.MessageID != "SM123" || in.SenderName != "Ana Lopez" {
		t.Fatalf("unexpected inbound %+v", in)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "+15550000001|What is the reason for your visit?" {
		t.Fatalf("unexpected sends %v", sender.sent)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/xml" {
		t.Fatalf("expected TwiML, got %q", got)
	}
}

func TestTwilioWebhookApologizesOnProcessingFailure(t *testing.T) {
	engine := &stubEngine{err: errors.New("calendar down")}
	sender := &stubSender{}
	h := NewHandler(engine, sender, nil, nil, logging.New("error"))

	rec := httptest.NewRecorder()
	h.TwilioWebhook(rec, twilioRequest(validForm()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after apology was sent, got %d", rec.Code)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Sorry, something went wrong") {
		t.Fatalf("expected apology, got %v", sender.sent)
	}
}

type panickingEngine struct{}

func (panickingEngine) HandleMessage(context.Context, conversation.Inbound) (conversation.Result, error) {
	panic("calendar client nil deref")
}

func TestTwilioWebhookApologizesWhenEnginePanics(t *testing.T) {
	sender := &stubSender{}
	reg := prometheus.NewRegistry()
	h := NewHandler(panickingEngine{}, sender, nil, metrics.NewMessagingMetrics(reg), logging.New("error"))

	rec := httptest.NewRecorder()
	h.TwilioWebhook(rec, twilioRequest(validForm()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after apology was sent, got %d", rec.Code)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "+15550000001|"+apologyText {
		t.Fatalf("expected apology SMS, got %v", sender.sent)
	}
	if got := counterValue(t, reg, "clinic_messaging_inbound_total", "error"); got != 1 {
		t.Fatalf("expected inbound error metric, got %v", got)
	}
}

func TestTwilioWebhookReportsSendFailure(t *testing.T) {
	engine := &stubEngine{res: conversation.Result{Reply: "ok"}}
	sender := &stubSender{err: errors.New("twilio 503")}
	reg := prometheus.NewRegistry()
	m := metrics.NewMessagingMetrics(reg)
	h := NewHandler(engine, sender, nil, m, logging.New("error"))

	rec := httptest.NewRecorder()
	h.TwilioWebhook(rec, twilioRequest(validForm()))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if got := counterValue(t, reg, "clinic_messaging_outbound_total", "failed"); got != 1 {
		t.Fatalf("expected failed outbound metric, got %v", got)
	}
}

func TestTwilioWebhookRejectsIncompletePayload(t *testing.T) {
	engine := &stubEngine{}
	sender := &stubSender{}
	h := NewHandler(engine, sender, nil, nil, logging.New("error"))

	form := validForm()
	form.Del("Body")
	rec := httptest.NewRecorder()
	h.TwilioWebhook(rec, twilioRequest(form))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(engine.seen) != 0 || len(sender.sent) != 0 {
		t.Fatalf("expected no processing")
	}
}

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 000-0001": "+15550000001",
		"5550000001":        "+15550000001",
		"+447700900123":     "+447700900123",
		"  ":                "",
		"abc":               "",
	}
	for in, want := range cases {
		if got := NormalizeE164(in); got != want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
