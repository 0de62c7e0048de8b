package conversation

import (
	"errors"
	"fmt"
)

// Kind classifies how a turn ended.
type Kind string

const (
	KindNone              Kind = ""
	KindParseFailure      Kind = "parse_failure"
	KindInvalidRange      Kind = "invalid_range"
	KindPastTime          Kind = "past_time"
	KindOutsideHours      Kind = "outside_hours"
	KindBookingPaused     Kind = "booking_paused"
	KindSlotConflict      Kind = "slot_conflict"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindExternalFailure   Kind = "external_failure"
	KindRecognizerFailure Kind = "recognizer_failure"
)

// Expected reports whether the kind is an ordinary user-facing outcome
// rather than a failure of the system.
func (k Kind) Expected() bool {
	switch k {
	case KindExternalFailure, KindRecognizerFailure:
		return false
	}
	return true
}

// Error is a classified dialogue error.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func externalFailure(reason string, err error) *Error {
	return &Error{Kind: KindExternalFailure, Reason: reason, Err: err}
}

// KindOf extracts the kind of err, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
