package intent

import "strings"

// Entities is the closed set of per-intent entity shapes.
type Entities interface {
	slots() Slots
}

// Slots are the slot-filling fields any entity shape may carry.
type Slots struct {
	Date   string
	Time   string
	Reason string
}

// Empty reports whether no slot was supplied.
func (s Slots) Empty() bool {
	return s.Date == "" && s.Time == "" && s.Reason == ""
}

type BookingEntities struct {
	Date   string
	Time   string
	Reason string
}

func (e BookingEntities) slots() Slots { return Slots{Date: e.Date, Time: e.Time, Reason: e.Reason} }

// RescheduleEntities carry the new slot. PatientName is required from the doctor.
type RescheduleEntities struct {
	PatientName string
	Date        string
	Time        string
}

func (e RescheduleEntities) slots() Slots { return Slots{Date: e.Date, Time: e.Time} }

// CancelEntities scope a cancellation. Date may be the literal "today".
type CancelEntities struct {
	PatientName string
	Date        string
}

func (e CancelEntities) slots() Slots { return Slots{} }

type PauseEntities struct {
	Start string
	End   string
}

func (e PauseEntities) slots() Slots { return Slots{} }

type AvailabilityEntities struct {
	Date string
}

func (e AvailabilityEntities) slots() Slots { return Slots{Date: e.Date} }

// SlotEntities are kept for Other so an open flow can reclaim them.
type SlotEntities struct {
	Date   string
	Time   string
	Reason string
}

func (e SlotEntities) slots() Slots { return Slots{Date: e.Date, Time: e.Time, Reason: e.Reason} }

type NoEntities struct{}

func (NoEntities) slots() Slots { return Slots{} }

var entityAliases = map[string][]string{
	"date":         {"date", "appointment_date", "new_date", "day"},
	"time":         {"time", "appointment_time", "new_time"},
	"reason":       {"reason", "purpose", "service"},
	"patient_name": {"patient_name", "patientname", "patient", "name"},
	"start_date":   {"start_date", "startdate", "start", "from"},
	"end_date":     {"end_date", "enddate", "end", "to", "until"},
}

// FromRaw validates an untyped recognizer answer into a Result.
func FromRaw(label string, raw map[string]string) Result {
	norm := make(map[string]string, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
			continue
		}
		norm[strings.ToLower(strings.TrimSpace(k))] = v
	}
	get := func(key string) string {
		for _, alias := range entityAliases[key] {
			if v, ok := norm[alias]; ok {
				return v
			}
		}
		return ""
	}

	in := Parse(label)
	res := Result{Intent: in}
	switch in {
	case BookAppointment:
		res.Entities = BookingEntities{Date: get("date"), Time: get("time"), Reason: get("reason")}
	case RescheduleAppointment:
		res.Entities = RescheduleEntities{PatientName: get("patient_name"), Date: get("date"), Time: get("time")}
	case CancelAppointment:
		res.Entities = CancelEntities{PatientName: get("patient_name"), Date: get("date")}
	case PauseBookings:
		res.Entities = PauseEntities{Start: get("start_date"), End: get("end_date")}
	case CheckAvailability:
		res.Entities = AvailabilityEntities{Date: get("date")}
	case Other:
		res.Entities = SlotEntities{Date: get("date"), Time: get("time"), Reason: get("reason")}
	default:
		res.Entities = NoEntities{}
	}
	return res
}
