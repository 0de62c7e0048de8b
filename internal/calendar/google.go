package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var tracer = otel.Tracer("clinic.internal.calendar")

// GoogleCalendar writes events to a Google calendar.
type GoogleCalendar struct {
	events     *gcal.EventsService
	calendarID string
	timezone   string
}

// NewGoogleCalendar builds a client for calendarID. timezone is the IANA zone
// recorded on created events.
func NewGoogleCalendar(ctx context.Context, calendarID, timezone string, opts ...option.ClientOption) (*GoogleCalendar, error) {
	if strings.TrimSpace(calendarID) == "" {
		return nil, fmt.Errorf("calendar: calendar id is required")
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create client: %w", err)
	}
	return &GoogleCalendar{
		events:     gcal.NewEventsService(svc),
		calendarID: calendarID,
		timezone:   timezone,
	}, nil
}

var _ Calendar = (*GoogleCalendar)(nil)

func (g *GoogleCalendar) CreateEvent(ctx context.Context, args EventArgs) (string, error) {
	ctx, span := tracer.Start(ctx, "calendar.create_event")
	defer span.End()

	ev := &gcal.Event{
		Summary:     args.Summary,
		Description: args.Description,
		Start:       g.dateTime(args.Start),
		End:         g.dateTime(args.End),
	}
	created, err := g.events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	span.SetAttributes(attribute.String("clinic.calendar_event_id", created.Id))
	return created.Id, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, eventID string, args EventArgs) error {
	ctx, span := tracer.Start(ctx, "calendar.update_event")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.calendar_event_id", eventID))

	patch := &gcal.Event{Summary: args.Summary, Description: args.Description}
	if !args.Start.IsZero() {
		patch.Start = g.dateTime(args.Start)
	}
	if !args.End.IsZero() {
		patch.End = g.dateTime(args.End)
	}
	if _, err := g.events.Patch(g.calendarID, eventID, patch).Context(ctx).Do(); err != nil {
		span.RecordError(err)
		if isGone(err) {
			return ErrNotFound
		}
		return fmt.Errorf("calendar: patch event: %w", err)
	}
	return nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, span := tracer.Start(ctx, "calendar.delete_event")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.calendar_event_id", eventID))

	if eventID == "" {
		return nil
	}
	if err := g.events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

func (g *GoogleCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "calendar.list_events")
	defer span.End()

	var out []Event
	call := g.events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, Event{
				ID:          item.Id,
				Summary:     item.Summary,
				Description: item.Description,
				Start:       parseEventTime(item.Start),
				End:         parseEventTime(item.End),
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	return out, nil
}

func (g *GoogleCalendar) dateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: g.timezone}
}

func parseEventTime(dt *gcal.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
