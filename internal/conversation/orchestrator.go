// Package conversation runs the scheduling dialogue: it merges recognized
// entities into per-sender slot-filling contexts, validates candidate slots
// and commits bookings through the store and calendar collaborators.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/calendar"
	"github.com/wolfman30/clinic-scheduler/internal/compliance"
	"github.com/wolfman30/clinic-scheduler/internal/datetime"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/pause"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PauseStore is the pause window service.
type PauseStore interface {
	Set(ctx context.Context, start, end *time.Time) (pause.Window, error)
	Clear(ctx context.Context) error
	IsPausedOn(d time.Time) bool
	Current() pause.Window
}

// Auditor records doctor commands and partial commits.
type Auditor interface {
	LogDoctorCommand(ctx context.Context, senderID, messageID, intent, outcome string) error
	LogReconciliationGap(ctx context.Context, senderID, messageID string, details compliance.AuditDetails) error
}

// Alerter sends best-effort notices to the operator and the doctor.
type Alerter interface {
	NotifyReconciliationGap(ctx context.Context, gap notify.ReconciliationGap) error
	NotifyDoctor(ctx context.Context, body string) error
}

// Assistant answers free-form clinic questions.
type Assistant interface {
	Reply(ctx context.Context, senderID, text string) (string, error)
}

// Inbound is one message to process.
type Inbound struct {
	SenderID   string
	SenderName string
	Role       intent.Role
	Text       string
	MessageID  string
	Timestamp  time.Time
}

// Result is the outcome of a turn. Reply is always set.
type Result struct {
	Reply     string
	Committed bool
	Kind      Kind
	Intent    intent.Intent
}

// Settings are the clinic parameters the dialogue needs.
type Settings struct {
	ClinicName       string
	OpenHour         int
	CloseHour        int
	DurationMinutes  int
	MaxParseFailures int
	PauseLookahead   time.Duration
}

// Deps are the orchestrator's collaborators. Assistant, Auditor, Alerts and
// Metrics are optional.
type Deps struct {
	Recognizer   intent.Recognizer
	Resolver     *datetime.Resolver
	Pause        PauseStore
	Appointments appointments.Store
	Calendar     calendar.Calendar
	Contexts     ContextStore
	Assistant    Assistant
	Auditor      Auditor
	Alerts       Alerter
	Metrics      *metrics.DialogueMetrics
	Logger       *logging.Logger
	Tracer       trace.Tracer
}

// Orchestrator is the dialogue engine. It is safe for concurrent use; turns
// for the same sender are serialized.
type Orchestrator struct {
	deps     Deps
	settings Settings
	rules    *scheduling.Rules
	senders  *KeyedLocker
	slots    *KeyedLocker
	logger   *logging.Logger
	tracer   trace.Tracer
}

func NewOrchestrator(deps Deps, settings Settings) (*Orchestrator, error) {
	var missing []string
	if deps.Recognizer == nil {
		missing = append(missing, "recognizer")
	}
	if deps.Resolver == nil {
		missing = append(missing, "resolver")
	}
	if deps.Pause == nil {
		missing = append(missing, "pause store")
	}
	if deps.Appointments == nil {
		missing = append(missing, "appointment store")
	}
	if deps.Calendar == nil {
		missing = append(missing, "calendar")
	}
	if deps.Contexts == nil {
		missing = append(missing, "context store")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("conversation: missing collaborators: %s", strings.Join(missing, ", "))
	}
	if settings.CloseHour <= settings.OpenHour {
		return nil, fmt.Errorf("conversation: close hour %d must be after open hour %d", settings.CloseHour, settings.OpenHour)
	}
	if settings.DurationMinutes <= 0 {
		settings.DurationMinutes = appointments.DefaultDurationMinutes
	}
	if settings.MaxParseFailures <= 0 {
		settings.MaxParseFailures = 3
	}
	if settings.PauseLookahead <= 0 {
		settings.PauseLookahead = 30 * 24 * time.Hour
	}
	if settings.ClinicName == "" {
		settings.ClinicName = "the clinic"
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.conversation")
	}
	return &Orchestrator{
		deps:     deps,
		settings: settings,
		rules: &scheduling.Rules{
			OpenHour:  settings.OpenHour,
			CloseHour: settings.CloseHour,
			Pause:     deps.Pause,
			Store:     deps.Appointments,
			Resolver:  deps.Resolver,
		},
		senders: NewKeyedLocker(),
		slots:   NewKeyedLocker(),
		logger:  logger,
		tracer:  tracer,
	}, nil
}

// turn is the working state of one HandleMessage call.
type turn struct {
	in      Inbound
	c       *Context
	rec     intent.Result
	relabel bool
	save    bool
	audit   string
}

// HandleMessage processes one inbound message. The returned error is non-nil
// only for failures of the system (a collaborator failed); expected outcomes
// such as a rejected slot are reported through Result.Kind. The context is
// saved only when the turn did not fail.
func (o *Orchestrator) HandleMessage(ctx context.Context, in Inbound) (Result, error) {
	started := time.Now()
	if in.Role == "" {
		in.Role = intent.RolePatient
	}
	log := o.logger.With("sender_id", in.SenderID, "message_id", in.MessageID, "role", string(in.Role))
	ctx, span := o.tracer.Start(ctx, "conversation.handle_message")
	defer span.End()
	span.SetAttributes(attribute.String("sender.role", string(in.Role)))

	unlock := o.senders.Lock(in.SenderID)
	defer unlock()

	loaded, err := o.deps.Contexts.Load(ctx, in.SenderID)
	if err != nil {
		log.Error("failed to load conversation context", "error", err)
		span.RecordError(err)
		o.deps.Metrics.ObserveError(string(KindExternalFailure))
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("load context", err)
	}

	t := &turn{in: in, c: loaded.Clone()}
	t.rec, err = o.deps.Recognizer.Recognize(ctx, intent.Request{
		Text:           in.Text,
		Role:           in.Role,
		ContextualDate: t.c.ContextualDate,
		Now:            o.deps.Resolver.Now(),
	})
	if err != nil {
		log.Warn("intent recognition degraded to other", "error", err)
		o.deps.Metrics.ObserveError(string(KindRecognizerFailure))
		t.rec = intent.Result{Intent: intent.Other, Entities: intent.SlotEntities{}}
	}
	if t.rec.Intent == "" {
		t.rec.Intent = intent.Other
	}

	res, err := o.dispatch(ctx, t)
	if res.Intent == "" {
		res.Intent = t.rec.Intent
	}
	o.deps.Metrics.ObserveTurn(string(res.Intent), string(in.Role), time.Since(started).Seconds())
	if res.Kind != KindNone {
		o.deps.Metrics.ObserveError(string(res.Kind))
	}

	span.SetAttributes(attribute.String("intent", string(res.Intent)), attribute.Bool("committed", res.Committed))
	if err != nil {
		span.RecordError(err)
		log.Error("turn failed", "intent", res.Intent, "error", err)
		return res, err
	}
	if t.save {
		if err := o.deps.Contexts.Save(ctx, t.c); err != nil {
			// The side effects already happened; only the memory is lost.
			log.Error("failed to save conversation context", "error", err)
		}
	}
	log.Info("turn handled",
		"intent", res.Intent,
		"relabelled", t.relabel,
		"state", t.c.State(),
		"kind", res.Kind,
		"committed", res.Committed,
	)
	return res, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, t *turn) (Result, error) {
	in := t.rec.Intent
	if in.DoctorOnly() && t.in.Role != intent.RoleDoctor {
		o.logger.Warn("unauthorized doctor command", "sender_id", t.in.SenderID, "intent", in)
		return Result{Reply: replyUnauthorized, Kind: KindUnauthorized, Intent: in}, nil
	}

	if in == intent.Other && t.c.Open() {
		if flowIntent, ok := o.claimsOpenSlot(t); ok {
			t.relabel = true
			in = flowIntent
		} else {
			return o.unclaimed(t), nil
		}
	}
	if t.c.Open() && endsOpenFlow(in) {
		o.logger.Info("new command abandons open flow", "sender_id", t.in.SenderID, "intent", in, "flow", t.c.LastIntent)
		t.c.Reset()
		t.save = true
	}

	var (
		res Result
		err error
	)
	switch in {
	case intent.BookAppointment:
		res, err = o.book(ctx, t)
	case intent.RescheduleAppointment:
		res, err = o.reschedule(ctx, t)
	case intent.CancelAppointment:
		res, err = o.cancel(ctx, t)
	case intent.PauseBookings:
		res, err = o.pauseBookings(ctx, t)
	case intent.ResumeBookings:
		res, err = o.resumeBookings(ctx, t)
	case intent.CancelAllMeetingsToday:
		res, err = o.cancelAllToday(ctx, t)
	case intent.CheckAvailability:
		res, err = o.availability(ctx, t)
	case intent.Greeting, intent.ThankYou, intent.FAQOpeningHours:
		res = o.aside(t, in)
	default:
		res, err = o.other(ctx, t)
	}
	res.Intent = in
	if t.audit != "" {
		o.auditDoctorCommand(ctx, t, in)
	}
	return res, err
}

// endsOpenFlow reports whether in is a top-level command unrelated to any
// slot-filling flow. Small talk and availability questions are asides; book
// and reschedule switch flows through Context.Enter.
func endsOpenFlow(in intent.Intent) bool {
	switch in {
	case intent.CancelAppointment, intent.PauseBookings, intent.ResumeBookings, intent.CancelAllMeetingsToday:
		return true
	}
	return false
}

// claimsOpenSlot decides whether an unclassified message answers the open
// flow's question.
func (o *Orchestrator) claimsOpenSlot(t *turn) (intent.Intent, bool) {
	flow := intent.BookAppointment
	if t.c.LastIntent == FlowRescheduling {
		flow = intent.RescheduleAppointment
	}
	slots := t.rec.Slots()
	text := strings.TrimSpace(t.in.Text)
	switch t.c.Awaiting() {
	case SlotDate:
		if slots.Date != "" || o.looksLikeDate(t.c, text) {
			return flow, true
		}
	case SlotTime:
		if slots.Time != "" || datetime.IsClock(text) {
			return flow, true
		}
	case SlotReason, SlotPatient:
		if answersFreeText(text) {
			return flow, true
		}
	}
	return "", false
}

// answersFreeText reports whether text can fill a free-text slot. Questions
// and one-letter replies are not answers.
func answersFreeText(text string) bool {
	return utf8.RuneCountInString(text) >= 2 && !strings.HasSuffix(text, "?")
}

// slotsFor returns the entities for this turn plus raw-text fallbacks for the
// slot the open flow is waiting on.
func (o *Orchestrator) slotsFor(t *turn) intent.Slots {
	s := t.rec.Slots()
	text := strings.TrimSpace(t.in.Text)
	switch t.c.Awaiting() {
	case SlotDate:
		if s.Date == "" && o.looksLikeDate(t.c, text) {
			s.Date = text
		}
	case SlotTime:
		if s.Time == "" && datetime.IsClock(text) {
			s.Time = text
		}
	case SlotReason:
		if s.Reason == "" && t.relabel {
			s.Reason = text
		}
	}
	return s
}

func (o *Orchestrator) looksLikeDate(c *Context, text string) bool {
	if isSameDay(text) {
		return c.ContextualDate != ""
	}
	_, err := o.deps.Resolver.ResolveDate(text)
	return err == nil
}

// resolveDate normalizes a date fragment to YYYY-MM-DD, resolving "same day"
// against the contextual date.
func (o *Orchestrator) resolveDate(c *Context, fragment string) (string, error) {
	if isSameDay(fragment) {
		if c.ContextualDate == "" {
			return "", fmt.Errorf("%w: no date under discussion", datetime.ErrParseFailure)
		}
		fragment = c.ContextualDate
	}
	d, err := o.deps.Resolver.ResolveDate(fragment)
	if err != nil {
		return "", err
	}
	return datetime.FormatDate(d), nil
}

func resolveClock(fragment string) (string, error) {
	h, m, err := datetime.ParseClock(fragment)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

var sameDayWords = map[string]bool{
	"same day": true, "same date": true, "the same day": true, "the same date": true,
	"that day": true, "same day please": true,
}

func isSameDay(s string) bool {
	return sameDayWords[strings.ToLower(strings.Trim(strings.TrimSpace(s), ".!"))]
}

// parseFailure re-prompts and counts consecutive failures on slot; the flow is
// dropped once the limit is reached.
func (o *Orchestrator) parseFailure(t *turn, slot Slot, reply string) Result {
	t.save = true
	if n := t.c.recordParseFailure(slot); n >= o.settings.MaxParseFailures {
		t.c.Reset()
		return Result{Reply: replyTooManyFailures, Kind: KindParseFailure}
	}
	return Result{Reply: reply, Kind: KindParseFailure}
}

// unclaimed handles an unclassified message that does not answer the open
// flow's question.
func (o *Orchestrator) unclaimed(t *turn) Result {
	slot := t.c.Awaiting()
	return o.parseFailure(t, slot, replyNotUnderstood+" "+o.prompt(t.c))
}

// rejection renders a rule violation; store errors become external failures.
func (o *Orchestrator) rejection(err error) (Result, error) {
	var v *scheduling.Violation
	if !errors.As(err, &v) {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("validate slot", err)
	}
	switch v.Code {
	case scheduling.CodePastTime:
		return Result{Reply: replyPastTime, Kind: KindPastTime}, nil
	case scheduling.CodeOutsideHours:
		return Result{Reply: o.replyOutsideHours(), Kind: KindOutsideHours}, nil
	case scheduling.CodeBookingPaused:
		return Result{Reply: fmt.Sprintf(replyPausedFormat, v.Window.String()), Kind: KindBookingPaused}, nil
	default:
		return Result{Reply: fmt.Sprintf(replyConflictFormat, formatSlot(v.At)), Kind: KindSlotConflict}, nil
	}
}

// gap reports a partial commit: structured error log, audit row, operator
// alert. None of these may fail the turn.
func (o *Orchestrator) gap(ctx context.Context, t *turn, g notify.ReconciliationGap) {
	g.SenderID = t.in.SenderID
	g.OccurredAt = time.Now().UTC()
	o.logger.Error("reconciliation gap",
		"reconciliation_gap", true,
		"operation", g.Operation,
		"sender_id", g.SenderID,
		"appointment_ref", g.AppointmentRef,
		"calendar_event_id", g.CalendarEventID,
		"date", g.Date,
		"time", g.Time,
		"error", g.Err,
	)
	o.deps.Metrics.ObserveReconciliationGap(g.Operation)
	if o.deps.Auditor != nil {
		errText := ""
		if g.Err != nil {
			errText = g.Err.Error()
		}
		if err := o.deps.Auditor.LogReconciliationGap(ctx, t.in.SenderID, t.in.MessageID, compliance.AuditDetails{
			Operation:       g.Operation,
			AppointmentRef:  g.AppointmentRef,
			CalendarEventID: g.CalendarEventID,
			Error:           errText,
		}); err != nil {
			o.logger.Error("failed to audit reconciliation gap", "error", err)
		}
	}
	if o.deps.Alerts != nil {
		if err := o.deps.Alerts.NotifyReconciliationGap(ctx, g); err != nil {
			o.logger.Error("failed to alert reconciliation gap", "error", err)
		}
	}
}

func (o *Orchestrator) notifyDoctor(ctx context.Context, body string) {
	if o.deps.Alerts == nil {
		return
	}
	if err := o.deps.Alerts.NotifyDoctor(ctx, body); err != nil {
		o.logger.Warn("doctor notice failed", "error", err)
	}
}

func (o *Orchestrator) auditDoctorCommand(ctx context.Context, t *turn, in intent.Intent) {
	if o.deps.Auditor == nil {
		return
	}
	if err := o.deps.Auditor.LogDoctorCommand(ctx, t.in.SenderID, t.in.MessageID, string(in), t.audit); err != nil {
		o.logger.Error("failed to audit doctor command", "error", err, "intent", in)
	}
}

// findActive returns the earliest active appointment matching f.
func (o *Orchestrator) findActive(ctx context.Context, f appointments.Filter) (*appointments.Appointment, error) {
	f.Statuses = appointments.ActiveStatuses()
	found, err := o.deps.Appointments.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	var best *appointments.Appointment
	for i := range found {
		a := found[i]
		if best == nil || a.Date < best.Date || (a.Date == best.Date && a.Time < best.Time) {
			best = &a
		}
	}
	return best, nil
}

func (o *Orchestrator) duration() time.Duration {
	return time.Duration(o.settings.DurationMinutes) * time.Minute
}

func displayName(in Inbound) string {
	if name := strings.TrimSpace(in.SenderName); name != "" {
		return name
	}
	return in.SenderID
}
