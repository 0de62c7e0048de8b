package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/intent"
)

// availability lists free slots for the requested day, defaulting to the day
// under discussion or today.
func (o *Orchestrator) availability(ctx context.Context, t *turn) (Result, error) {
	c := t.c
	fragment := t.rec.Slots().Date
	if fragment == "" {
		fragment = c.ContextualDate
	}
	date := ""
	if fragment == "" {
		date = o.deps.Resolver.Today().Format("2006-01-02")
	} else {
		d, err := o.resolveDate(c, fragment)
		if err != nil {
			return Result{Reply: replyBadDate, Kind: KindParseFailure}, nil
		}
		date = d
	}
	day, err := o.deps.Resolver.ResolveDate(date)
	if err != nil {
		return Result{Reply: replyBadDate, Kind: KindParseFailure}, nil
	}

	if o.deps.Pause.IsPausedOn(day) {
		return Result{
			Reply: fmt.Sprintf(replyPausedFormat, o.deps.Pause.Current().String()),
			Kind:  KindBookingPaused,
		}, nil
	}
	free, err := o.rules.FreeSlots(ctx, day, o.duration())
	if err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("list free slots", err)
	}

	// An idle sender who asks about a day is likely to book it next.
	if !c.Open() {
		c.Reset()
		c.LastIntent = FlowAvailability
	}
	c.ContextualDate = date
	t.save = true
	return Result{Reply: freeSlotsReply(date, free)}, nil
}

// aside answers small talk without touching an open flow; the pending
// question is repeated so the sender can carry on.
func (o *Orchestrator) aside(t *turn, in intent.Intent) Result {
	var reply string
	switch in {
	case intent.Greeting:
		reply = fmt.Sprintf(replyGreeting, o.settings.ClinicName)
	case intent.ThankYou:
		reply = replyThanks
	default:
		reply = fmt.Sprintf(replyHours, o.settings.ClinicName, hourLabel(o.settings.OpenHour), hourLabel(o.settings.CloseHour))
	}
	if t.c.Open() {
		reply += " " + o.prompt(t.c)
	}
	return Result{Reply: reply}
}

// other hands unclassified messages to the assistant when one is configured.
func (o *Orchestrator) other(ctx context.Context, t *turn) (Result, error) {
	if o.deps.Assistant == nil || strings.TrimSpace(t.in.Text) == "" {
		return Result{Reply: replyHelp}, nil
	}
	reply, err := o.deps.Assistant.Reply(ctx, t.in.SenderID, t.in.Text)
	if err != nil || strings.TrimSpace(reply) == "" {
		o.logger.Warn("assistant reply unavailable", "sender_id", t.in.SenderID, "error", err)
		return Result{Reply: replyFallback, Kind: KindExternalFailure}, nil
	}
	return Result{Reply: strings.TrimSpace(reply)}, nil
}
