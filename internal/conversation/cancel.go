package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/datetime"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
)

// cancel cancels the sender's active appointment, or for the doctor the named
// patient's, optionally scoped to one date.
func (o *Orchestrator) cancel(ctx context.Context, t *turn) (Result, error) {
	doctor := t.in.Role == intent.RoleDoctor
	e, _ := t.rec.Entities.(intent.CancelEntities)

	var filter appointments.Filter
	if doctor {
		if strings.TrimSpace(e.PatientName) == "" {
			return Result{Reply: replyAskCancelPatient, Kind: KindNotFound}, nil
		}
		filter.PatientName = e.PatientName
	} else {
		filter.PhoneNumber = t.in.SenderID
	}
	if e.Date != "" {
		d, err := o.resolveDate(t.c, e.Date)
		if err != nil {
			return Result{Reply: replyBadDate, Kind: KindParseFailure}, nil
		}
		filter.Date = d
	}

	target, err := o.findActive(ctx, filter)
	if err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("look up appointment", err)
	}
	if target == nil {
		if doctor {
			t.audit = "no matching appointment for " + e.PatientName
			return Result{Reply: fmt.Sprintf(replyNoPatientAppt, e.PatientName), Kind: KindNotFound}, nil
		}
		return Result{Reply: replyNoAppointment, Kind: KindNotFound}, nil
	}

	if err := o.cancelOne(ctx, t, *target); err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, err
	}

	when := formatDay(target.Date)
	if at, err := o.deps.Resolver.Resolve(target.Date, target.Time); err == nil {
		when = formatSlot(at)
	}
	if doctor {
		t.audit = fmt.Sprintf("cancelled %s on %s", target.PatientName, target.Date)
	} else {
		o.notifyDoctor(ctx, fmt.Sprintf("%s cancelled their appointment on %s.", target.PatientName, when))
	}
	return Result{Reply: fmt.Sprintf(replyCancelled, when), Committed: true}, nil
}

// cancelOne marks a as cancelled and removes its calendar event. The record
// is written first so a failed delete leaves an orphan event, never an active
// record without an event. A failed delete is a reconciliation gap.
func (o *Orchestrator) cancelOne(ctx context.Context, t *turn, a appointments.Appointment) error {
	if err := o.deps.Appointments.Update(ctx, a.Ref, appointments.StatusPatch(appointments.StatusCancelled)); err != nil {
		return externalFailure("persist cancellation", err)
	}
	o.deps.Metrics.ObserveCommit("cancel")
	if err := o.deps.Calendar.DeleteEvent(ctx, a.CalendarEventID); err != nil {
		o.gap(ctx, t, notify.ReconciliationGap{
			Operation:       "cancel",
			PatientName:     a.PatientName,
			Date:            a.Date,
			Time:            a.Time,
			AppointmentRef:  a.Ref,
			CalendarEventID: a.CalendarEventID,
			Err:             err,
		})
	}
	o.logger.Info("appointment cancelled", "sender_id", t.in.SenderID, "appointment_ref", a.Ref, "date", a.Date)
	return nil
}

// cancelAllToday cancels every active appointment dated today, continuing
// past individual failures.
func (o *Orchestrator) cancelAllToday(ctx context.Context, t *turn) (Result, error) {
	today := datetime.FormatDate(o.deps.Resolver.Today())
	found, err := o.deps.Appointments.Query(ctx, appointments.Filter{
		Date:     today,
		Statuses: appointments.ActiveStatuses(),
	})
	if err != nil {
		return Result{Reply: replyApology, Kind: KindExternalFailure}, externalFailure("list today's appointments", err)
	}
	if len(found) == 0 {
		t.audit = "nothing to cancel"
		return Result{Reply: replyNothingToday}, nil
	}

	var names []string
	failed := 0
	for _, a := range found {
		if err := o.cancelOne(ctx, t, a); err != nil {
			failed++
			o.logger.Error("failed to cancel appointment", "appointment_ref", a.Ref, "error", err)
			continue
		}
		names = append(names, a.PatientName)
	}

	reply := fmt.Sprintf("Cancelled %d meeting(s) today", len(names))
	if len(names) > 0 {
		reply += ": " + strings.Join(names, ", ")
	}
	reply += "."
	if failed > 0 {
		reply += fmt.Sprintf(" %d could not be cancelled; please check the schedule.", failed)
	}
	t.audit = fmt.Sprintf("cancelled %d of %d", len(names), len(found))
	return Result{Reply: reply, Committed: len(names) > 0}, nil
}
