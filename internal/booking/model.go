// Package booking owns the appointment draft, the validation rule set
// and the submission state machine behind the widget's booking form.
package booking

import "time"

// DateLayout is the wire format for appointment dates. The store always
// receives this fixed-width calendar form, whatever the widget showed
// the patient.
const DateLayout = "2006-01-02"

// TimeSlots is the closed set of bookable slots. The strings are part
// of the store contract; no custom time entry exists.
var TimeSlots = []string{
	"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"02:00 PM", "02:30 PM", "03:00 PM", "03:30 PM", "04:00 PM", "04:30 PM",
	"05:00 PM", "05:30 PM",
}

// IsTimeSlot reports whether s is a member of the fixed slot set.
func IsTimeSlot(s string) bool {
	for _, slot := range TimeSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// Draft is the in-progress appointment owned by an open form. All
// fields start empty when the dialog opens and are discarded unless the
// draft turns into a persisted record.
type Draft struct {
	FullName        string
	Email           string
	Phone           string
	HospitalID      string
	AppointmentDate *time.Time // calendar date; the time of day is ignored
	TimeSlot        string
	Message         string
}

// Record is the persistence shape for one appointment insert. A blank
// optional message is omitted rather than sent as an empty-but-present
// value.
type Record struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	HospitalID      string `json:"hospital_id"`
	AppointmentDate string `json:"appointment_date"`
	TimeSlot        string `json:"time_slot"`
	Message         string `json:"message,omitempty"`
}

// Record transforms the draft into its persistence shape. Callers only
// do this after validation, so a nil date serializes to "" rather than
// panicking.
func (d Draft) Record() Record {
	date := ""
	if d.AppointmentDate != nil {
		date = d.AppointmentDate.Format(DateLayout)
	}
	return Record{
		FullName:        d.FullName,
		Email:           d.Email,
		Phone:           d.Phone,
		HospitalID:      d.HospitalID,
		AppointmentDate: date,
		TimeSlot:        d.TimeSlot,
		Message:         d.Message,
	}
}
