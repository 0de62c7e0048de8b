package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/calendar"
	"github.com/wolfman30/clinic-scheduler/internal/compliance"
	"github.com/wolfman30/clinic-scheduler/internal/datetime"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/pause"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// clinicNow is a Friday morning shortly after opening.
var clinicNow = time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC)

const doctorID = "doctor-1"

// scripted answers known texts and classifies everything else as other.
type scripted map[string]intent.Result

func (s scripted) Recognize(_ context.Context, req intent.Request) (intent.Result, error) {
	if r, ok := s[req.Text]; ok {
		return r, nil
	}
	return intent.Result{Intent: intent.Other, Entities: intent.SlotEntities{}}, nil
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(context.Context, intent.Request) (intent.Result, error) {
	return intent.Result{Intent: intent.Other, Entities: intent.SlotEntities{}}, intent.ErrRecognizerFailure
}

func bookIntent(date, clock, reason string) intent.Result {
	return intent.Result{Intent: intent.BookAppointment, Entities: intent.BookingEntities{Date: date, Time: clock, Reason: reason}}
}

type flakyStore struct {
	*appointments.MemoryStore

	mu         sync.Mutex
	appendErr  error
	queryErr   error
	failUpdate func(ref string) error
	appends    int
	queries    int
	updates    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: appointments.NewMemoryStore()}
}

func (s *flakyStore) Append(ctx context.Context, a appointments.Appointment) (appointments.Appointment, error) {
	s.mu.Lock()
	s.appends++
	err := s.appendErr
	s.mu.Unlock()
	if err != nil {
		return appointments.Appointment{}, err
	}
	return s.MemoryStore.Append(ctx, a)
}

func (s *flakyStore) Query(ctx context.Context, f appointments.Filter) ([]appointments.Appointment, error) {
	s.mu.Lock()
	s.queries++
	err := s.queryErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.Query(ctx, f)
}

func (s *flakyStore) Update(ctx context.Context, ref string, p appointments.Patch) error {
	s.mu.Lock()
	s.updates++
	fail := s.failUpdate
	s.mu.Unlock()
	if fail != nil {
		if err := fail(ref); err != nil {
			return err
		}
	}
	return s.MemoryStore.Update(ctx, ref, p)
}

func (s *flakyStore) counts() (appends, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends, s.updates
}

type flakyCalendar struct {
	*calendar.MemoryCalendar

	mu        sync.Mutex
	createErr error
	deleteErr error
	listErr   error
	creates   int
	deletes   int
}

func newFlakyCalendar() *flakyCalendar {
	return &flakyCalendar{MemoryCalendar: calendar.NewMemoryCalendar()}
}

func (c *flakyCalendar) CreateEvent(ctx context.Context, args calendar.EventArgs) (string, error) {
	c.mu.Lock()
	c.creates++
	err := c.createErr
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return c.MemoryCalendar.CreateEvent(ctx, args)
}

func (c *flakyCalendar) DeleteEvent(ctx context.Context, id string) error {
	c.mu.Lock()
	c.deletes++
	err := c.deleteErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryCalendar.DeleteEvent(ctx, id)
}

func (c *flakyCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	c.mu.Lock()
	err := c.listErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryCalendar.ListEvents(ctx, from, to)
}

func (c *flakyCalendar) calls() (creates, deletes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates, c.deletes
}

type recordingAlerts struct {
	mu     sync.Mutex
	gaps   []notify.ReconciliationGap
	doctor []string
}

func (a *recordingAlerts) NotifyReconciliationGap(_ context.Context, gap notify.ReconciliationGap) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gaps = append(a.gaps, gap)
	return nil
}

func (a *recordingAlerts) NotifyDoctor(_ context.Context, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doctor = append(a.doctor, body)
	return nil
}

type recordingAuditor struct {
	mu       sync.Mutex
	commands []string
	gaps     []compliance.AuditDetails
}

func (a *recordingAuditor) LogDoctorCommand(_ context.Context, _, _, in, outcome string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, in+": "+outcome)
	return nil
}

func (a *recordingAuditor) LogReconciliationGap(_ context.Context, _, _ string, details compliance.AuditDetails) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gaps = append(a.gaps, details)
	return nil
}

type harness struct {
	orch     *Orchestrator
	store    *flakyStore
	cal      *flakyCalendar
	pause    *pause.Store
	contexts *MemoryContextStore
	alerts   *recordingAlerts
	audit    *recordingAuditor
	resolver *datetime.Resolver
}

func newHarness(t *testing.T, script scripted, opts ...func(*Deps)) *harness {
	t.Helper()
	clock := func() time.Time { return clinicNow }
	h := &harness{
		store:    newFlakyStore(),
		cal:      newFlakyCalendar(),
		pause:    pause.NewStore(nil, logging.New("error"), pause.WithClock(clock)),
		contexts: NewMemoryContextStore(time.Hour),
		alerts:   &recordingAlerts{},
		audit:    &recordingAuditor{},
		resolver: datetime.NewResolver(time.UTC, datetime.WithClock(clock)),
	}
	deps := Deps{
		Recognizer:   intent.Chain{intent.CommandRecognizer{}, script},
		Resolver:     h.resolver,
		Pause:        h.pause,
		Appointments: h.store,
		Calendar:     h.cal,
		Contexts:     h.contexts,
		Auditor:      h.audit,
		Alerts:       h.alerts,
		Logger:       logging.New("error"),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	orch, err := NewOrchestrator(deps, Settings{ClinicName: "Lopez Family Clinic", OpenHour: 9, CloseHour: 17})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) say(t *testing.T, sender, text string) Result {
	t.Helper()
	res, err := h.send(sender, intent.RolePatient, text)
	if err != nil {
		t.Fatalf("%s: %q: unexpected error: %v", sender, text, err)
	}
	return res
}

func (h *harness) doctorSays(t *testing.T, text string) Result {
	t.Helper()
	res, err := h.send(doctorID, intent.RoleDoctor, text)
	if err != nil {
		t.Fatalf("doctor: %q: unexpected error: %v", text, err)
	}
	return res
}

func (h *harness) send(sender string, role intent.Role, text string) (Result, error) {
	return h.orch.HandleMessage(context.Background(), Inbound{
		SenderID:   sender,
		SenderName: names[sender],
		Role:       role,
		Text:       text,
		MessageID:  sender + ":" + text,
	})
}

func (h *harness) state(t *testing.T, sender string) *Context {
	t.Helper()
	c, err := h.contexts.Load(context.Background(), sender)
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	return c
}

func (h *harness) active(t *testing.T) []appointments.Appointment {
	t.Helper()
	found, err := h.store.MemoryStore.Query(context.Background(), appointments.Filter{Statuses: appointments.ActiveStatuses()})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return found
}

var names = map[string]string{
	"+15550000001": "Ana Lopez",
	"+15550000002": "Ben Carter",
	"+15550000003": "Chen Wu",
}
