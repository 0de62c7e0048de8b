package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/calendar"
	"github.com/wolfman30/clinic-scheduler/internal/datetime"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

// book runs the booking flow: date, time, rules, reason, commit.
func (o *Orchestrator) book(ctx context.Context, t *turn) (Result, error) {
	c := t.c
	// A day just checked for free slots becomes the booking date.
	carried := ""
	if c.LastIntent == FlowAvailability {
		carried = c.ContextualDate
	}
	c.Enter(FlowBooking)
	slots := o.slotsFor(t)
	t.save = true
	if slots.Date == "" && carried != "" {
		c.GatheredDate = carried
	}

	// Valid fragments are kept even when another one fails to parse.
	var failed Slot
	if c.GatheredDate == "" && slots.Date != "" {
		if d, err := o.resolveDate(c, slots.Date); err != nil {
			failed = SlotDate
		} else {
			c.GatheredDate = d
		}
	}
	if c.GatheredTime == "" && slots.Time != "" {
		if clock, err := resolveClock(slots.Time); err != nil {
			if failed == SlotNone {
				failed = SlotTime
			}
		} else {
			c.GatheredTime = clock
		}
	}
	if c.GatheredReason == "" && slots.Reason != "" {
		c.GatheredReason = slots.Reason
	}
	switch failed {
	case SlotDate:
		return o.parseFailure(t, SlotDate, replyBadDate), nil
	case SlotTime:
		return o.parseFailure(t, SlotTime, replyBadTime), nil
	}
	c.clearParseFailures()

	if c.GatheredDate == "" {
		return Result{Reply: replyAskDate}, nil
	}
	c.ContextualDate = c.GatheredDate
	if c.GatheredTime == "" {
		return Result{Reply: o.prompt(c)}, nil
	}

	at, err := o.deps.Resolver.Resolve(c.GatheredDate, c.GatheredTime)
	if err != nil {
		c.GatheredTime = ""
		return o.parseFailure(t, SlotTime, replyBadTime), nil
	}

	if c.GatheredReason == "" {
		if err := o.rules.Validate(ctx, scheduling.Candidate{At: at}); err != nil {
			return o.rejectBookingSlot(t, err)
		}
		return Result{Reply: replyAskReason}, nil
	}

	unlock := o.slots.Lock(c.GatheredDate)
	defer unlock()
	if err := o.rules.Validate(ctx, scheduling.Candidate{At: at}); err != nil {
		return o.rejectBookingSlot(t, err)
	}
	return o.commitBooking(ctx, t, at)
}

// rejectBookingSlot clears the rejected date and time so the next turn can
// offer a new slot. The reason is kept.
func (o *Orchestrator) rejectBookingSlot(t *turn, err error) (Result, error) {
	res, rerr := o.rejection(err)
	if rerr != nil {
		return res, rerr
	}
	t.c.GatheredDate = ""
	t.c.GatheredTime = ""
	return res, nil
}

func (o *Orchestrator) commitBooking(ctx context.Context, t *turn, at time.Time) (Result, error) {
	c := t.c
	name := displayName(t.in)

	eventID, err := o.deps.Calendar.CreateEvent(ctx, calendar.EventArgs{
		Summary:     fmt.Sprintf("%s - %s", name, c.GatheredReason),
		Description: fmt.Sprintf("Booked by %s via the scheduling assistant.", t.in.SenderID),
		Start:       at,
		End:         at.Add(o.duration()),
	})
	if err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("create calendar event", err)
	}

	saved, err := o.deps.Appointments.Append(ctx, appointments.Appointment{
		PatientName:     name,
		PhoneNumber:     t.in.SenderID,
		Date:            c.GatheredDate,
		Time:            c.GatheredTime,
		Reason:          c.GatheredReason,
		DurationMinutes: o.settings.DurationMinutes,
		Status:          appointments.StatusBooked,
		CalendarEventID: eventID,
	})
	if err != nil {
		o.gap(ctx, t, notify.ReconciliationGap{
			Operation:       "book",
			PatientName:     name,
			Date:            c.GatheredDate,
			Time:            c.GatheredTime,
			CalendarEventID: eventID,
			Err:             err,
		})
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("persist appointment", err)
	}

	reason := c.GatheredReason
	c.Reset()
	o.deps.Metrics.ObserveCommit("book")
	o.logger.Info("appointment booked", "sender_id", t.in.SenderID, "appointment_ref", saved.Ref, "calendar_event_id", eventID)
	o.notifyDoctor(ctx, fmt.Sprintf("New booking: %s on %s (%s).", name, formatSlot(at), reason))
	return Result{Reply: fmt.Sprintf(replyBooked, formatSlot(at), reason), Committed: true}, nil
}

// reschedule moves the sender's (or, for the doctor, a named patient's)
// active appointment to a new slot.
func (o *Orchestrator) reschedule(ctx context.Context, t *turn) (Result, error) {
	c := t.c
	c.Enter(FlowRescheduling)
	t.save = true
	doctor := t.in.Role == intent.RoleDoctor

	if c.RescheduleRef == "" {
		var filter appointments.Filter
		if doctor {
			name := ""
			if e, ok := t.rec.Entities.(intent.RescheduleEntities); ok {
				name = e.PatientName
			}
			if name == "" && t.relabel {
				name = t.in.Text
			}
			if name == "" {
				return Result{Reply: replyAskPatient}, nil
			}
			filter.PatientName = name
		} else {
			filter.PhoneNumber = t.in.SenderID
		}

		target, err := o.findActive(ctx, filter)
		if err != nil {
			return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("look up appointment", err)
		}
		if target == nil {
			c.Reset()
			if doctor {
				return Result{Reply: fmt.Sprintf(replyNoPatientAppt, filter.PatientName), Kind: KindNotFound}, nil
			}
			return Result{Reply: replyNoAppointment, Kind: KindNotFound}, nil
		}
		c.RescheduleRef = target.Ref
		c.RescheduleEventID = target.CalendarEventID
		c.ReschedulePatient = target.PatientName
		c.RescheduleReason = target.Reason
		c.ContextualDate = target.Date
	}

	slots := o.slotsFor(t)
	var failed Slot
	if c.RescheduleNewDate == "" && slots.Date != "" {
		if d, err := o.resolveDate(c, slots.Date); err != nil {
			failed = SlotDate
		} else {
			c.RescheduleNewDate = d
		}
	}
	if c.RescheduleNewTime == "" && slots.Time != "" {
		if clock, err := resolveClock(slots.Time); err != nil {
			if failed == SlotNone {
				failed = SlotTime
			}
		} else {
			c.RescheduleNewTime = clock
		}
	}
	switch failed {
	case SlotDate:
		return o.parseFailure(t, SlotDate, replyBadDate), nil
	case SlotTime:
		return o.parseFailure(t, SlotTime, replyBadTime), nil
	}
	c.clearParseFailures()

	if c.RescheduleNewDate == "" || c.RescheduleNewTime == "" {
		return Result{Reply: o.prompt(c)}, nil
	}

	at, err := o.deps.Resolver.Resolve(c.RescheduleNewDate, c.RescheduleNewTime)
	if err != nil {
		c.RescheduleNewTime = ""
		return o.parseFailure(t, SlotTime, replyBadTime), nil
	}

	unlock := o.slots.Lock(c.RescheduleNewDate)
	defer unlock()
	if err := o.rules.Validate(ctx, scheduling.Candidate{At: at, ExcludeRef: c.RescheduleRef}); err != nil {
		res, rerr := o.rejection(err)
		if rerr == nil {
			c.RescheduleNewDate = ""
			c.RescheduleNewTime = ""
		}
		return res, rerr
	}
	return o.commitReschedule(ctx, t, at)
}

func (o *Orchestrator) commitReschedule(ctx context.Context, t *turn, at time.Time) (Result, error) {
	c := t.c
	patch := appointments.Patch{
		Date:   &c.RescheduleNewDate,
		Time:   &c.RescheduleNewTime,
		Status: statusPtr(appointments.StatusRescheduled),
	}

	args := calendar.EventArgs{Start: at, End: at.Add(o.duration())}
	eventID := c.RescheduleEventID
	err := calendar.ErrNotFound
	if eventID != "" {
		err = o.deps.Calendar.UpdateEvent(ctx, eventID, args)
	}
	if errors.Is(err, calendar.ErrNotFound) {
		args.Summary = fmt.Sprintf("%s - %s", c.ReschedulePatient, c.RescheduleReason)
		eventID, err = o.deps.Calendar.CreateEvent(ctx, args)
		if err == nil {
			patch.CalendarEventID = &eventID
		}
	}
	if err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("move calendar event", err)
	}

	if err := o.deps.Appointments.Update(ctx, c.RescheduleRef, patch); err != nil {
		o.gap(ctx, t, notify.ReconciliationGap{
			Operation:       "reschedule",
			PatientName:     c.ReschedulePatient,
			Date:            c.RescheduleNewDate,
			Time:            c.RescheduleNewTime,
			AppointmentRef:  c.RescheduleRef,
			CalendarEventID: eventID,
			Err:             err,
		})
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("persist reschedule", err)
	}

	patient, ref := c.ReschedulePatient, c.RescheduleRef
	c.Reset()
	o.deps.Metrics.ObserveCommit("reschedule")
	o.logger.Info("appointment rescheduled", "sender_id", t.in.SenderID, "appointment_ref", ref)
	if t.in.Role == intent.RoleDoctor {
		t.audit = fmt.Sprintf("moved %s to %s", patient, datetime.FormatDate(at)+" "+datetime.FormatClock(at))
	} else {
		o.notifyDoctor(ctx, fmt.Sprintf("%s moved their appointment to %s.", patient, formatSlot(at)))
	}
	return Result{Reply: fmt.Sprintf(replyRescheduled, formatSlot(at)), Committed: true}, nil
}

func statusPtr(s appointments.Status) *appointments.Status { return &s }
