package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/pause"
)

// pauseBookings declares a pause window and warns about calendar events that
// already fall inside it. Existing appointments are never cancelled here.
func (o *Orchestrator) pauseBookings(ctx context.Context, t *turn) (Result, error) {
	e, _ := t.rec.Entities.(intent.PauseEntities)
	start, err := o.optionalDate(t.c, e.Start)
	if err != nil {
		return Result{Reply: replyBadDate, Kind: KindParseFailure}, nil
	}
	end, err := o.optionalDate(t.c, e.End)
	if err != nil {
		return Result{Reply: replyBadDate, Kind: KindParseFailure}, nil
	}
	if start != nil && end != nil && start.After(*end) {
		t.audit = "rejected inverted range"
		return Result{Reply: replyBadRange, Kind: KindInvalidRange}, nil
	}

	warning := o.pauseConflicts(ctx, pause.Window{Start: start, End: end, Active: true})

	w, err := o.deps.Pause.Set(ctx, start, end)
	if errors.Is(err, pause.ErrInvalidRange) {
		t.audit = "rejected inverted range"
		return Result{Reply: replyBadRange, Kind: KindInvalidRange}, nil
	}
	if err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("set pause window", err)
	}
	t.audit = "paused " + w.String()
	return Result{Reply: "Bookings are paused " + w.String() + "." + warning, Committed: true}, nil
}

// pauseConflicts lists calendar events inside w. Lookup failures only lose
// the warning.
func (o *Orchestrator) pauseConflicts(ctx context.Context, w pause.Window) string {
	from, to := w.Bounds(o.deps.Resolver.Today(), o.settings.PauseLookahead)
	events, err := o.deps.Calendar.ListEvents(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		o.logger.Warn("could not check calendar for paused days", "error", err)
		return ""
	}
	return pauseWarning(events)
}

func (o *Orchestrator) optionalDate(c *Context, fragment string) (*time.Time, error) {
	if fragment == "" {
		return nil, nil
	}
	d, err := o.resolveDate(c, fragment)
	if err != nil {
		return nil, err
	}
	day, err := o.deps.Resolver.ResolveDate(d)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// resumeBookings lifts any pause.
func (o *Orchestrator) resumeBookings(ctx context.Context, t *turn) (Result, error) {
	if err := o.deps.Pause.Clear(ctx); err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("clear pause window", err)
	}
	t.audit = "resumed"
	return Result{Reply: replyResumed, Committed: true}, nil
}
