package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/calendar"
)

const (
	replyApology         = "Sorry, something went wrong on our side. Please try again in a few minutes."
	replyUnauthorized    = "Sorry, only the doctor can do that."
	replyNotUnderstood   = "Sorry, I didn't catch that."
	replyTooManyFailures = "I'm having trouble understanding, so let's start over. Tell me when you'd like to come in whenever you're ready."
	replyPastTime        = "That time has already passed. Please pick a time in the future."
	replyPausedFormat    = "Sorry, bookings are paused %s. Please choose another date."
	replyConflictFormat  = "Sorry, %s is already taken. Please choose another time."

	replyAskDate          = "What date would you like to come in? (e.g. 2025-03-10)"
	replyAskTime          = "What time on %s works for you?"
	replyAskReason        = "What is the reason for your visit?"
	replyAskNewDate       = "What date would you like to move your %s appointment to?"
	replyAskNewTime       = "What time on %s would you like instead?"
	replyAskPatient       = "Which patient's appointment should I move?"
	replyAskCancelPatient = "Which patient's appointment should I cancel? For example: /cancel Ana Lopez today"
	replyBadDate          = "I couldn't read that date. Please use a format like 2025-03-10."
	replyBadTime          = "I couldn't read that time. Please use a format like 14:00 or 2pm."
	replyBadRange         = "The pause start date is after the end date, so nothing was changed."

	replyBooked        = "You're booked for %s (%s). See you then!"
	replyRescheduled   = "Done. The appointment is now on %s."
	replyCancelled     = "The appointment on %s has been cancelled."
	replyNoAppointment = "I couldn't find an upcoming appointment for you."
	replyNoPatientAppt = "I couldn't find an upcoming appointment for %s."
	replyResumed       = "Bookings are open again."
	replyNothingToday  = "There are no meetings to cancel today."

	replyGreeting = "Hello! I can book, move or cancel appointments at %s."
	replyThanks   = "You're welcome!"
	replyHours    = "%s is open from %s to %s."
	replyHelp     = "I can help you book, reschedule or cancel an appointment, or check free times."
	replyFallback = "Sorry, I can't answer that right now. I can still help you book, reschedule or cancel."
)

func formatSlot(t time.Time) string {
	return t.Format("Mon Jan 2, 2006 at 15:04")
}

func formatDay(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.Format("Mon Jan 2, 2006")
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}

func (o *Orchestrator) replyOutsideHours() string {
	return fmt.Sprintf("We only see patients between %s and %s. Please pick a time in that window.",
		hourLabel(o.settings.OpenHour), hourLabel(o.settings.CloseHour))
}

// prompt asks for whatever the open flow needs next.
func (o *Orchestrator) prompt(c *Context) string {
	switch c.State() {
	case StateBookingAwaitingDate:
		return replyAskDate
	case StateBookingAwaitingTime:
		return fmt.Sprintf(replyAskTime, formatDay(c.GatheredDate))
	case StateBookingAwaitingReason:
		return replyAskReason
	case StateReschedulingAwaitingTarget:
		return replyAskPatient
	case StateReschedulingAwaitingNewSlot:
		if c.RescheduleNewDate == "" {
			return fmt.Sprintf(replyAskNewDate, formatDay(c.ContextualDate))
		}
		return fmt.Sprintf(replyAskNewTime, formatDay(c.RescheduleNewDate))
	}
	return replyHelp
}

func pauseWarning(events []calendar.Event) string {
	if len(events) == 0 {
		return ""
	}
	shown := events
	if len(shown) > 2 {
		shown = shown[:2]
	}
	parts := make([]string, len(shown))
	for i, ev := range shown {
		parts[i] = fmt.Sprintf("%s (%s)", ev.Summary, formatSlot(ev.Start))
	}
	more := ""
	if extra := len(events) - len(shown); extra > 0 {
		more = fmt.Sprintf(" and %d more", extra)
	}
	return fmt.Sprintf(" Heads up: %d existing appointment(s) fall in this window: %s%s. They have not been cancelled.",
		len(events), strings.Join(parts, ", "), more)
}

func freeSlotsReply(date string, slots []time.Time) string {
	if len(slots) == 0 {
		return fmt.Sprintf("Sorry, %s is fully booked.", formatDay(date))
	}
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = s.Format("15:04")
	}
	return fmt.Sprintf("Free times on %s: %s. Which would you like?", formatDay(date), strings.Join(labels, ", "))
}
