package datetime

import (
	"regexp"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`(\d{1,2})[:.]?(\d{0,2})\s*(am|pm)?`)

// strictLayouts mirror the combined formats accepted before the permissive
// fallback. Input is upper-cased so that am/pm match Go's PM directive.
var strictLayouts = []struct {
	name   string
	layout string
}{
	{"YYYY-MM-DD HH:mm", "2006-01-02 15:04"},
	{"YYYY-MM-DD h:mm a", "2006-01-02 3:04 PM"},
	{"YYYY-MM-DD hh:mma", "2006-01-02 03:04PM"},
	{"YYYY-MM-DD ha", "2006-01-02 3PM"},
}

// dateLayouts are tried, in order, for a date fragment on its own.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

// DefaultStrategies returns the strict combined layouts followed by the
// regex-based fallback.
func DefaultStrategies() []Strategy {
	strategies := make([]Strategy, 0, len(strictLayouts)+1)
	for _, l := range strictLayouts {
		strategies = append(strategies, StrictStrategy(l.name, l.layout))
	}
	return append(strategies, FallbackStrategy())
}

// StrictStrategy parses the space-joined fragments with a single layout.
func StrictStrategy(name, layout string) Strategy {
	return Strategy{
		Name: name,
		Parse: func(date, clock string, loc *time.Location) (time.Time, bool) {
			combined := strings.ToUpper(strings.TrimSpace(date + " " + clock))
			t, err := time.ParseInLocation(layout, combined, loc)
			if err != nil {
				return time.Time{}, false
			}
			return t, true
		},
	}
}

// FallbackStrategy parses the date on its own, then pulls hour, minute and
// meridiem out of the time fragment.
func FallbackStrategy() Strategy {
	return Strategy{
		Name: "fallback",
		Parse: func(date, clock string, loc *time.Location) (time.Time, bool) {
			day, ok := parseDateOnly(date, loc)
			if !ok {
				return time.Time{}, false
			}
			hour, minute, err := ParseClock(clock)
			if err != nil {
				return time.Time{}, false
			}
			return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), true
		},
	}
}

func parseDateOnly(date string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			return StartOfDay(t.In(loc)), true
		}
	}
	return time.Time{}, false
}

var bareClockPattern = regexp.MustCompile(`^\d{1,2}(?:[:.]\d{2})?\s*(?:am|pm)?$`)

// IsClock reports whether s is nothing but a time of day, e.g. "14:00" or "3pm".
func IsClock(s string) bool {
	return bareClockPattern.MatchString(strings.ToLower(strings.TrimSpace(s)))
}
