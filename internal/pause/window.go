// Package pause holds the doctor's booking-pause window.
package pause

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Window is an immutable snapshot of the declared pause. Start and End are
// calendar days; nil Start and End with Active set means a blanket pause.
type Window struct {
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	Active bool       `json:"active"`
}

// Contains reports whether the calendar day of d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	if !w.Active {
		return false
	}
	day := d.Format(dateLayout)
	switch {
	case w.Start != nil && w.End != nil:
		return day >= w.Start.Format(dateLayout) && day <= w.End.Format(dateLayout)
	case w.Start != nil:
		return day == w.Start.Format(dateLayout)
	case w.End != nil:
		return day <= w.End.Format(dateLayout)
	default:
		return true
	}
}

// Blanket reports whether every date is paused.
func (w Window) Blanket() bool {
	return w.Active && w.Start == nil && w.End == nil
}

// Bounds returns the first and last paused day. Open ends are filled from
// from and from+lookahead so callers can scan a finite range.
func (w Window) Bounds(from time.Time, lookahead time.Duration) (time.Time, time.Time) {
	start := from
	if w.Start != nil {
		start = *w.Start
	}
	end := start
	switch {
	case w.End != nil:
		end = *w.End
	case w.Start == nil:
		end = from.Add(lookahead)
	}
	return start, end
}

// String renders the window for replies, e.g. "from 2025-03-01 to 2025-03-05".
func (w Window) String() string {
	switch {
	case !w.Active:
		return "not paused"
	case w.Start != nil && w.End != nil:
		return fmt.Sprintf("from %s to %s", w.Start.Format(dateLayout), w.End.Format(dateLayout))
	case w.Start != nil:
		return fmt.Sprintf("on %s", w.Start.Format(dateLayout))
	case w.End != nil:
		return fmt.Sprintf("until %s", w.End.Format(dateLayout))
	default:
		return "until further notice"
	}
}
