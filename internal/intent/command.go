package intent

import (
	"context"
	"regexp"
	"strings"
)

var (
	pauseRangePattern = regexp.MustCompile(`^from\s+(\S+)\s+(?:to|until|through)\s+(\S+)$`)
	datePattern       = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|today|tomorrow)$`)
	reschedulePattern = regexp.MustCompile(`^(.+?)\s+to\s+(\S+)(?:\s+at)?\s+(.+)$`)
)

// CommandRecognizer handles slash commands without a model round trip.
// Anything that is not a known command yields ErrNotRecognized.
type CommandRecognizer struct{}

func (CommandRecognizer) Recognize(_ context.Context, req Request) (Result, error) {
	text := strings.Join(strings.Fields(strings.ToLower(req.Text)), " ")
	if !strings.HasPrefix(text, "/") {
		return Result{}, ErrNotRecognized
	}
	cmd, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")

	switch cmd {
	case "pause":
		return parsePause(strings.TrimPrefix(rest, "bookings")), nil
	case "resume":
		return Result{Intent: ResumeBookings, Entities: NoEntities{}}, nil
	case "cancel":
		if rest == "all meetings today" || rest == "all today" {
			return Result{Intent: CancelAllMeetingsToday, Entities: NoEntities{}}, nil
		}
		return parseCancel(originalCase(req.Text, rest)), nil
	case "reschedule":
		m := reschedulePattern.FindStringSubmatch(originalCase(req.Text, rest))
		if m == nil {
			return Result{Intent: RescheduleAppointment, Entities: RescheduleEntities{PatientName: strings.TrimSpace(originalCase(req.Text, rest))}}, nil
		}
		return Result{Intent: RescheduleAppointment, Entities: RescheduleEntities{
			PatientName: strings.TrimSpace(m[1]),
			Date:        m[2],
			Time:        strings.TrimSpace(m[3]),
		}}, nil
	case "availability", "slots":
		return Result{Intent: CheckAvailability, Entities: AvailabilityEntities{Date: strings.TrimSpace(rest)}}, nil
	case "hours":
		return Result{Intent: FAQOpeningHours, Entities: NoEntities{}}, nil
	}
	return Result{}, ErrNotRecognized
}

func parsePause(args string) Result {
	args = strings.TrimSpace(args)
	res := Result{Intent: PauseBookings}
	switch {
	case args == "":
		res.Entities = PauseEntities{}
	case pauseRangePattern.MatchString(args):
		m := pauseRangePattern.FindStringSubmatch(args)
		res.Entities = PauseEntities{Start: m[1], End: m[2]}
	case strings.HasPrefix(args, "until "):
		res.Entities = PauseEntities{End: strings.TrimSpace(strings.TrimPrefix(args, "until "))}
	case strings.HasPrefix(args, "on "):
		res.Entities = PauseEntities{Start: strings.TrimSpace(strings.TrimPrefix(args, "on "))}
	default:
		res.Entities = PauseEntities{Start: args}
	}
	return res
}

func parseCancel(args string) Result {
	fields := strings.Fields(args)
	e := CancelEntities{}
	if n := len(fields); n > 0 && datePattern.MatchString(strings.ToLower(fields[n-1])) {
		e.Date = strings.ToLower(fields[n-1])
		fields = fields[:n-1]
		if n := len(fields); n > 0 && strings.EqualFold(fields[n-1], "on") {
			fields = fields[:n-1]
		}
	}
	e.PatientName = strings.Join(fields, " ")
	return Result{Intent: CancelAppointment, Entities: e}
}

// originalCase recovers the caller's capitalization of the lower-cased tail.
func originalCase(text, lowerTail string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(lowerTail) <= len(text) && strings.EqualFold(text[len(text)-len(lowerTail):], lowerTail) {
		return text[len(text)-len(lowerTail):]
	}
	return lowerTail
}
