// Package intent turns inbound text into a labelled intent with typed entities.
package intent

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Intent is the recognized purpose of a message.
type Intent string

const (
	BookAppointment        Intent = "book_appointment"
	RescheduleAppointment  Intent = "reschedule_appointment"
	CancelAppointment      Intent = "cancel_appointment"
	PauseBookings          Intent = "pause_bookings"
	ResumeBookings         Intent = "resume_bookings"
	CancelAllMeetingsToday Intent = "cancel_all_meetings_today"
	CheckAvailability      Intent = "check_availability"
	Greeting               Intent = "greeting"
	ThankYou               Intent = "thank_you"
	FAQOpeningHours        Intent = "faq_opening_hours"
	Other                  Intent = "other"
)

var known = map[Intent]bool{
	BookAppointment: true, RescheduleAppointment: true, CancelAppointment: true,
	PauseBookings: true, ResumeBookings: true, CancelAllMeetingsToday: true,
	CheckAvailability: true, Greeting: true, ThankYou: true, FAQOpeningHours: true,
	Other: true,
}

// Parse normalizes a label; anything unknown is Other.
func Parse(label string) Intent {
	in := Intent(strings.ToLower(strings.TrimSpace(label)))
	if known[in] {
		return in
	}
	return Other
}

// DoctorOnly reports whether the intent mutates clinic-wide state.
func (i Intent) DoctorOnly() bool {
	switch i {
	case PauseBookings, ResumeBookings, CancelAllMeetingsToday:
		return true
	}
	return false
}

// Aside reports small talk that never starts or closes a flow.
func (i Intent) Aside() bool {
	switch i {
	case Greeting, ThankYou, FAQOpeningHours:
		return true
	}
	return false
}

// Role is who sent a message.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ErrNotRecognized lets a Chain move on to the next recognizer.
var ErrNotRecognized = errors.New("intent: not recognized")

// ErrRecognizerFailure marks unusable recognizer output. The accompanying
// Result is always Other so callers can continue.
var ErrRecognizerFailure = errors.New("intent: recognizer failure")

// Request is the input to a Recognizer. ContextualDate is the date currently
// under discussion, if any.
type Request struct {
	Text           string
	Role           Role
	ContextualDate string
	Now            time.Time
}

// Result is a validated recognition.
type Result struct {
	Intent   Intent
	Entities Entities
}

// Slots returns whatever date, time and reason the entities carried.
func (r Result) Slots() Slots {
	if r.Entities == nil {
		return Slots{}
	}
	return r.Entities.slots()
}

// Recognizer classifies a message.
type Recognizer interface {
	Recognize(ctx context.Context, req Request) (Result, error)
}

// Chain asks each recognizer in turn until one does not return ErrNotRecognized.
type Chain []Recognizer

func (c Chain) Recognize(ctx context.Context, req Request) (Result, error) {
	for _, r := range c {
		res, err := r.Recognize(ctx, req)
		if errors.Is(err, ErrNotRecognized) {
			continue
		}
		return res, err
	}
	return Result{Intent: Other, Entities: SlotEntities{}}, nil
}
