// Package scheduling validates candidate appointment slots.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/datetime"
	"github.com/wolfman30/clinic-scheduler/internal/pause"
)

// Code identifies which rule rejected a candidate.
type Code string

const (
	CodePastTime      Code = "past_time"
	CodeOutsideHours  Code = "outside_hours"
	CodeBookingPaused Code = "booking_paused"
	CodeSlotConflict  Code = "slot_conflict"
)

// Violation is the expected, user-facing rejection of a candidate.
type Violation struct {
	Code     Code
	At       time.Time
	Window   pause.Window
	Conflict *appointments.Appointment
}

func (v *Violation) Error() string {
	switch v.Code {
	case CodeBookingPaused:
		return fmt.Sprintf("scheduling: bookings paused %s", v.Window)
	case CodeSlotConflict:
		return fmt.Sprintf("scheduling: slot %s already taken", v.At.Format("2006-01-02 15:04"))
	default:
		return fmt.Sprintf("scheduling: %s at %s", v.Code, v.At.Format("2006-01-02 15:04"))
	}
}

// PauseChecker is the read side of the pause store.
type PauseChecker interface {
	IsPausedOn(d time.Time) bool
	Current() pause.Window
}

// Querier is the read side of the appointment store.
type Querier interface {
	Query(ctx context.Context, f appointments.Filter) ([]appointments.Appointment, error)
}

// Candidate is a slot awaiting validation. ExcludeRef names the appointment
// being moved so it does not conflict with itself.
type Candidate struct {
	At         time.Time
	ExcludeRef string
}

// Rules runs the booking checks in a fixed order and stops at the first
// failure: future, working hours, pause, conflict.
type Rules struct {
	OpenHour  int
	CloseHour int
	Pause     PauseChecker
	Store     Querier
	Resolver  *datetime.Resolver
}

// Validate returns nil, a *Violation, or a wrapped store error.
func (r *Rules) Validate(ctx context.Context, c Candidate) error {
	if v := CheckFuture(c.At, r.Resolver.Now()); v != nil {
		return v
	}
	if v := CheckWorkingHours(c.At, r.OpenHour, r.CloseHour); v != nil {
		return v
	}
	if v := CheckPause(c.At, r.Pause); v != nil {
		return v
	}
	existing, err := r.Store.Query(ctx, appointments.Filter{
		Date:     datetime.FormatDate(c.At),
		Statuses: appointments.ActiveStatuses(),
	})
	if err != nil {
		return fmt.Errorf("scheduling: load existing appointments: %w", err)
	}
	if v := CheckConflict(c.At, existing, r.Resolver, c.ExcludeRef); v != nil {
		return v
	}
	return nil
}

// CheckFuture rejects anything not strictly after now.
func CheckFuture(at, now time.Time) *Violation {
	if !at.After(now) {
		return &Violation{Code: CodePastTime, At: at}
	}
	return nil
}

// CheckWorkingHours requires the hour of day to fall in [openHour, closeHour).
func CheckWorkingHours(at time.Time, openHour, closeHour int) *Violation {
	if h := at.Hour(); h < openHour || h >= closeHour {
		return &Violation{Code: CodeOutsideHours, At: at}
	}
	return nil
}

// CheckPause rejects dates covered by the current pause window.
func CheckPause(at time.Time, p PauseChecker) *Violation {
	if p == nil || !p.IsPausedOn(at) {
		return nil
	}
	return &Violation{Code: CodeBookingPaused, At: at, Window: p.Current()}
}

// CheckConflict compares start times at minute granularity. Entries whose
// stored date/time cannot be resolved are ignored.
func CheckConflict(at time.Time, existing []appointments.Appointment, resolver *datetime.Resolver, excludeRef string) *Violation {
	target := at.Truncate(time.Minute)
	for i := range existing {
		a := existing[i]
		if !a.Status.Active() || (excludeRef != "" && a.Ref == excludeRef) {
			continue
		}
		ts, err := resolver.Resolve(a.Date, a.Time)
		if err != nil {
			continue
		}
		if ts.Equal(target) {
			return &Violation{Code: CodeSlotConflict, At: at, Conflict: &a}
		}
	}
	return nil
}

// FreeSlots lists the open start times on day, stepping by duration through
// working hours. Past, paused and taken slots are skipped.
func (r *Rules) FreeSlots(ctx context.Context, day time.Time, duration time.Duration) ([]time.Time, error) {
	if duration <= 0 {
		duration = appointments.DefaultDurationMinutes * time.Minute
	}
	day = datetime.StartOfDay(day.In(r.Resolver.Location()))
	if r.Pause != nil && r.Pause.IsPausedOn(day) {
		return nil, nil
	}
	existing, err := r.Store.Query(ctx, appointments.Filter{
		Date:     datetime.FormatDate(day),
		Statuses: appointments.ActiveStatuses(),
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling: load existing appointments: %w", err)
	}
	now := r.Resolver.Now()
	closing := day.Add(time.Duration(r.CloseHour) * time.Hour)
	var free []time.Time
	for slot := day.Add(time.Duration(r.OpenHour) * time.Hour); slot.Before(closing); slot = slot.Add(duration) {
		if CheckFuture(slot, now) != nil {
			continue
		}
		if CheckConflict(slot, existing, r.Resolver, "") != nil {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}
