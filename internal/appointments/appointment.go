// Package appointments persists booked appointments. The dialogue engine only
// sees the Store interface; records are owned by the backing store.
package appointments

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment record.
type Status string

const (
	StatusBooked              Status = "booked"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusRescheduled         Status = "rescheduled"
	StatusCancelled           Status = "cancelled"
)

// DefaultDurationMinutes applies when a record carries no duration.
const DefaultDurationMinutes = 60

// ActiveStatuses are the statuses that occupy a slot.
func ActiveStatuses() []Status {
	return []Status{StatusBooked, StatusPendingConfirmation, StatusRescheduled}
}

// Active reports whether the status occupies a slot.
func (s Status) Active() bool {
	for _, a := range ActiveStatuses() {
		if s == a {
			return true
		}
	}
	return false
}

// ErrNotFound is returned by Update for an unknown ref.
var ErrNotFound = errors.New("appointments: record not found")

// Appointment is a stored booking. Date is YYYY-MM-DD and Time is the time
// fragment as stored (normally HH:mm; older spreadsheet rows may differ).
type Appointment struct {
	Ref             string    `json:"ref"`
	PatientName     string    `json:"patient_name"`
	PhoneNumber     string    `json:"phone_number"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Reason          string    `json:"reason"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Filter selects records; zero fields match everything.
type Filter struct {
	Date        string
	Statuses    []Status
	PatientName string
	PhoneNumber string
}

// Matches applies the filter in memory. Patient names compare case-insensitively.
func (f Filter) Matches(a Appointment) bool {
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.PatientName != "" && !strings.EqualFold(strings.TrimSpace(a.PatientName), strings.TrimSpace(f.PatientName)) {
		return false
	}
	if f.PhoneNumber != "" && a.PhoneNumber != f.PhoneNumber {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if a.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Date            *string
	Time            *string
	Status          *Status
	CalendarEventID *string
}

// Apply copies the set fields onto a.
func (p Patch) Apply(a *Appointment) {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.CalendarEventID != nil {
		a.CalendarEventID = *p.CalendarEventID
	}
}

// StatusPatch is shorthand for a status-only update.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

// Store is the appointment persistence collaborator. Refs returned by Append
// and Query are opaque handles for Update.
type Store interface {
	Append(ctx context.Context, a Appointment) (Appointment, error)
	Query(ctx context.Context, f Filter) ([]Appointment, error)
	Update(ctx context.Context, ref string, p Patch) error
}
