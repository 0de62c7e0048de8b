package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var twilioTracer = otel.Tracer("clinic.internal.messaging.twilio")

const (
	channelTwilio = "twilio_sms"
	emptyTwiML    = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	apologyText   = "Sorry, something went wrong on our side. Please try again in a few minutes."
)

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Handler handles messaging webhook requests.
type Handler struct {
	engine  conversation.Engine
	sender  SMSSender
	roles   conversation.RoleResolver
	metrics *metrics.MessagingMetrics
	logger  *logging.Logger
}

// NewHandler creates a new messaging handler.
func NewHandler(engine conversation.Engine, sender SMSSender, roles conversation.RoleResolver, m *metrics.MessagingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if engine == nil {
		panic("messaging: engine cannot be nil")
	}
	if sender == nil {
		panic("messaging: sender cannot be nil")
	}
	return &Handler{engine: engine, sender: sender, roles: roles, metrics: m, logger: logger}
}

// TwilioWebhook handles POST /webhooks/twilio/messages. The reply goes out
// through the REST sender; the webhook response itself is empty TwiML.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()
	defer func() {
		h.metrics.ObserveLatency(channelTwilio, time.Since(started).Seconds())
	}()

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		h.metrics.ObserveInbound(channelTwilio, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	from := NormalizeE164(webhook.From)
	span.SetAttributes(
		attribute.String("clinic.twilio.message_sid", webhook.MessageSid),
		attribute.String("clinic.twilio.from", from),
	)
	if webhook.MessageSid == "" || from == "" || webhook.Body == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		h.metrics.ObserveInbound(channelTwilio, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	in := conversation.Inbound{
		SenderID:   from,
		SenderName: webhook.ProfileName,
		Text:       webhook.Body,
		MessageID:  webhook.MessageSid,
		Timestamp:  started.UTC(),
	}
	if h.roles != nil {
		in.Role = h.roles(from)
	}

	res, err := conversation.HandleSafely(ctx, h.engine, in)
	reply := res.Reply
	if err != nil {
		h.logger.Error("processing_failed", "error", err, "message_sid", webhook.MessageSid, "from", from)
		h.metrics.ObserveInbound(channelTwilio, "error")
		span.RecordError(err)
	} else {
		h.metrics.ObserveInbound(channelTwilio, "ok")
	}
	if reply == "" {
		reply = apologyText
	}

	// The reply must go out even if the inbound request is cancelled.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := h.sender.SendSMS(sendCtx, from, reply); err != nil {
		h.logger.Error("send_failed", "error", err, "message_sid", webhook.MessageSid, "to", from)
		h.metrics.ObserveOutbound("failed")
		span.RecordError(err)
		http.Error(w, "Failed to deliver reply", http.StatusBadGateway)
		return
	}
	h.metrics.ObserveOutbound("sent")

	h.logger.Info("twilio webhook handled", "message_sid", webhook.MessageSid, "intent", res.Intent, "committed", res.Committed)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
