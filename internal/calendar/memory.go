package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCalendar is an in-process Calendar for local runs and tests.
type MemoryCalendar struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{events: make(map[string]Event)}
}

var _ Calendar = (*MemoryCalendar)(nil)

func (c *MemoryCalendar) CreateEvent(ctx context.Context, args EventArgs) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.events[id] = Event{
		ID:          id,
		Summary:     args.Summary,
		Description: args.Description,
		Start:       args.Start,
		End:         args.End,
	}
	return id, nil
}

func (c *MemoryCalendar) UpdateEvent(ctx context.Context, eventID string, args EventArgs) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.events[eventID]
	if !ok {
		return ErrNotFound
	}
	c.events[eventID] = merge(ev, args)
	return nil
}

func (c *MemoryCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, eventID)
	return nil
}

// ListEvents returns events starting in [from, to), ordered by start.
func (c *MemoryCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, ev := range c.events {
		if !ev.Start.Before(from) && ev.Start.Before(to) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Get returns a single event.
func (c *MemoryCalendar) Get(eventID string) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ev, ok := c.events[eventID]
	return ev, ok
}

// Len reports the number of stored events.
func (c *MemoryCalendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

func merge(ev Event, args EventArgs) Event {
	if args.Summary != "" {
		ev.Summary = args.Summary
	}
	if args.Description != "" {
		ev.Description = args.Description
	}
	if !args.Start.IsZero() {
		ev.Start = args.Start
	}
	if !args.End.IsZero() {
		ev.End = args.End
	}
	return ev
}
