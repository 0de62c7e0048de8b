package conversation

import (
	"time"
)

// Flow is the multi-turn flow a sender is in.
type Flow string

const (
	FlowIdle         Flow = "idle"
	FlowBooking      Flow = "booking"
	FlowRescheduling Flow = "rescheduling"
	FlowAvailability Flow = "querying_availability"
)

// State is derived from a Context's gathered fields.
type State string

const (
	StateIdle                        State = "idle"
	StateBookingAwaitingDate         State = "booking_awaiting_date"
	StateBookingAwaitingTime         State = "booking_awaiting_time"
	StateBookingAwaitingReason       State = "booking_awaiting_reason"
	StateReschedulingAwaitingTarget  State = "rescheduling_awaiting_target"
	StateReschedulingAwaitingNewSlot State = "rescheduling_awaiting_new_datetime"
	StateTerminal                    State = "terminal"
)

// Slot is a field a flow can wait on.
type Slot string

const (
	SlotNone    Slot = ""
	SlotDate    Slot = "date"
	SlotTime    Slot = "time"
	SlotReason  Slot = "reason"
	SlotPatient Slot = "patient"
)

// Context is one sender's slot-filling memory. Dates are stored as
// YYYY-MM-DD and times as HH:mm once accepted.
type Context struct {
	SenderID          string    `json:"sender_id" dynamodbav:"senderId"`
	LastIntent        Flow      `json:"last_intent" dynamodbav:"lastIntent"`
	GatheredDate      string    `json:"gathered_date,omitempty" dynamodbav:"gatheredDate,omitempty"`
	GatheredTime      string    `json:"gathered_time,omitempty" dynamodbav:"gatheredTime,omitempty"`
	GatheredReason    string    `json:"gathered_reason,omitempty" dynamodbav:"gatheredReason,omitempty"`
	ContextualDate    string    `json:"contextual_date,omitempty" dynamodbav:"contextualDate,omitempty"`
	RescheduleNewDate string    `json:"reschedule_new_date,omitempty" dynamodbav:"rescheduleNewDate,omitempty"`
	RescheduleNewTime string    `json:"reschedule_new_time,omitempty" dynamodbav:"rescheduleNewTime,omitempty"`
	RescheduleRef     string    `json:"reschedule_ref,omitempty" dynamodbav:"rescheduleRef,omitempty"`
	RescheduleEventID string    `json:"reschedule_event_id,omitempty" dynamodbav:"rescheduleEventId,omitempty"`
	ReschedulePatient string    `json:"reschedule_patient,omitempty" dynamodbav:"reschedulePatient,omitempty"`
	RescheduleReason  string    `json:"reschedule_reason,omitempty" dynamodbav:"rescheduleReason,omitempty"`
	FailedSlot        Slot      `json:"failed_slot,omitempty" dynamodbav:"failedSlot,omitempty"`
	ParseFailures     int       `json:"parse_failures,omitempty" dynamodbav:"parseFailures,omitempty"`
	UpdatedAt         time.Time `json:"updated_at" dynamodbav:"updatedAt"`
	ExpiresAt         int64     `json:"-" dynamodbav:"expiresAt,omitempty"`
}

// NewContext returns an idle context for sender.
func NewContext(senderID string) *Context {
	return &Context{SenderID: senderID, LastIntent: FlowIdle}
}

// Clone returns an independent copy.
func (c *Context) Clone() *Context {
	cp := *c
	return &cp
}

// State derives the slot-filling state.
func (c *Context) State() State {
	switch c.LastIntent {
	case FlowBooking:
		switch {
		case c.GatheredDate == "":
			return StateBookingAwaitingDate
		case c.GatheredTime == "":
			return StateBookingAwaitingTime
		case c.GatheredReason == "":
			return StateBookingAwaitingReason
		}
		return StateTerminal
	case FlowRescheduling:
		if c.RescheduleRef == "" {
			return StateReschedulingAwaitingTarget
		}
		if c.RescheduleNewDate == "" || c.RescheduleNewTime == "" {
			return StateReschedulingAwaitingNewSlot
		}
		return StateTerminal
	}
	return StateIdle
}

// Open reports whether a slot-filling flow is waiting on input.
func (c *Context) Open() bool {
	switch c.State() {
	case StateIdle, StateTerminal:
		return false
	}
	return true
}

// Awaiting returns the slot the open flow needs next.
func (c *Context) Awaiting() Slot {
	switch c.State() {
	case StateBookingAwaitingDate:
		return SlotDate
	case StateBookingAwaitingTime:
		return SlotTime
	case StateBookingAwaitingReason:
		return SlotReason
	case StateReschedulingAwaitingTarget:
		return SlotPatient
	case StateReschedulingAwaitingNewSlot:
		if c.RescheduleNewDate == "" {
			return SlotDate
		}
		return SlotTime
	}
	return SlotNone
}

// Reset drops every gathered field. The sender id is kept.
func (c *Context) Reset() {
	*c = Context{SenderID: c.SenderID, LastIntent: FlowIdle, UpdatedAt: c.UpdatedAt}
}

// Enter switches to flow, clearing fields that belong to other flows.
// Entering the current flow keeps what was gathered.
func (c *Context) Enter(flow Flow) {
	if c.LastIntent == flow {
		return
	}
	contextual := c.ContextualDate
	c.Reset()
	c.LastIntent = flow
	// A date just discussed stays available for "same day".
	c.ContextualDate = contextual
}

// recordParseFailure counts consecutive failures on the same slot.
func (c *Context) recordParseFailure(slot Slot) int {
	if c.FailedSlot != slot {
		c.FailedSlot = slot
		c.ParseFailures = 0
	}
	c.ParseFailures++
	return c.ParseFailures
}

func (c *Context) clearParseFailures() {
	c.FailedSlot = SlotNone
	c.ParseFailures = 0
}
