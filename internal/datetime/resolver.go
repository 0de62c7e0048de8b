// Package datetime turns loosely formatted date and time fragments into
// absolute timestamps in the clinic's timezone.
package datetime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrParseFailure is returned whenever a fragment cannot be resolved. Callers
// re-prompt on it; it never indicates a bug.
var ErrParseFailure = errors.New("datetime: unable to parse date/time")

const (
	// DateLayout is the canonical representation of a gathered date.
	DateLayout = "2006-01-02"
	// ClockLayout is the canonical representation of a gathered time of day.
	ClockLayout = "15:04"
)

// Strategy is one entry of the resolution cascade. Parse reports false when
// the fragments do not match; it must never panic.
type Strategy struct {
	Name  string
	Parse func(date, clock string, loc *time.Location) (time.Time, bool)
}

// Resolver resolves (date, time) fragments by trying its strategies in order.
type Resolver struct {
	loc        *time.Location
	now        func() time.Time
	strategies []Strategy
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock used for relative words such as "today".
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithStrategies replaces the default cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		if len(strategies) > 0 {
			r.strategies = strategies
		}
	}
}

// NewResolver builds a resolver for the given clinic location (UTC when nil).
func NewResolver(loc *time.Location, opts ...Option) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	r := &Resolver{
		loc:        loc,
		now:        time.Now,
		strategies: DefaultStrategies(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the clinic timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the current time in the clinic timezone.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// Today returns midnight of the current clinic day.
func (r *Resolver) Today() time.Time { return StartOfDay(r.Now()) }

// Resolve normalizes a date fragment and a time fragment into an absolute
// timestamp with zero seconds. It returns ErrParseFailure when no strategy
// accepts the input.
func (r *Resolver) Resolve(date, clock string) (time.Time, error) {
	date = r.expandRelative(date)
	clock = strings.TrimSpace(clock)
	if err := checkMeridiemHour(clock); err != nil {
		return time.Time{}, err
	}
	for _, s := range r.strategies {
		if t, ok := s.Parse(date, clock, r.loc); ok {
			return t.Truncate(time.Minute), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q time %q", ErrParseFailure, date, clock)
}

// ResolveDate parses a date-only fragment (ISO-8601 family or a relative word)
// and returns midnight of that day.
func (r *Resolver) ResolveDate(date string) (time.Time, error) {
	d, ok := parseDateOnly(r.expandRelative(date), r.loc)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrParseFailure, date)
	}
	return d, nil
}

// ParseClock extracts hour and minute from a permissive time fragment.
func ParseClock(clock string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(clock)))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: time %q", ErrParseFailure, clock)
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour == 0 {
			return 0, 0, fmt.Errorf("%w: hour 0 with pm", ErrParseFailure)
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", ErrParseFailure, clock)
	}
	return hour, minute, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatClock renders t as HH:mm.
func FormatClock(t time.Time) string { return t.Format(ClockLayout) }

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	return FormatDate(a) == FormatDate(b.In(a.Location()))
}

func (r *Resolver) expandRelative(date string) string {
	date = strings.TrimSpace(date)
	switch strings.ToLower(date) {
	case "today":
		return FormatDate(r.Now())
	case "tomorrow":
		return FormatDate(r.Now().AddDate(0, 0, 1))
	}
	return date
}

// checkMeridiemHour rejects "0pm" up front; Go's 12-hour directive would
// otherwise read it as noon.
func checkMeridiemHour(clock string) error {
	m := clockPattern.FindStringSubmatch(strings.ToLower(clock))
	if m == nil || m[3] != "pm" {
		return nil
	}
	if hour, _ := strconv.Atoi(m[1]); hour == 0 {
		return fmt.Errorf("%w: hour 0 with pm", ErrParseFailure)
	}
	return nil
}
