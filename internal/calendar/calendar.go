// Package calendar mirrors appointments onto the doctor's calendar.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by UpdateEvent for an unknown event id.
var ErrNotFound = errors.New("calendar: event not found")

// Event is a calendar entry.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// EventArgs describes an event to create. UpdateEvent treats zero fields as
// unchanged.
type EventArgs struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Calendar is the event collaborator used by the dialogue engine. DeleteEvent
// is idempotent: an already-absent event is not an error.
type Calendar interface {
	CreateEvent(ctx context.Context, args EventArgs) (string, error)
	UpdateEvent(ctx context.Context, eventID string, args EventArgs) error
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
}
