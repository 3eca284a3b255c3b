package booking

import (
	"regexp"
	"strings"
	"time"

	"github.com/oakdental/booking-platform/internal/clinics"
)

// Field names a draft field in rejections and change sets. The values
// match the persistence column names.
type Field string

const (
	FieldFullName        Field = "full_name"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldHospitalID      Field = "hospital_id"
	FieldAppointmentDate Field = "appointment_date"
	FieldTimeSlot        Field = "time_slot"
	FieldMessage         Field = "message"
)

// Rejection reasons. These are patient-facing and stable: re-validating
// an unchanged field yields the identical string.
const (
	ReasonNameTooShort = "Name must be at least 2 characters"
	ReasonEmailInvalid = "Please enter a valid email"
	ReasonPhoneInvalid = "Please enter a valid phone number"
	ReasonHospital     = "Please select a hospital"
	ReasonDate         = "Please select an appointment date"
	ReasonDatePast     = "Please select a date from today onwards"
	ReasonTimeSlot     = "Please select a time slot"
)

// FieldError is one field-scoped rejection. It never halts evaluation
// of other fields.
type FieldError struct {
	Field  Field  `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return string(e.Field) + ": " + e.Reason
}

// dateFloor is the historical floor for selectable dates.
var dateFloor = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// local@domain with at least one dot in the domain, the grammar the
// original widget enforced.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// DateSelectable reports whether a calendar date may be offered by the
// date selector: not before today and not before the 1900 floor. Only
// the calendar date matters; time of day is discarded.
func DateSelectable(date, now time.Time) bool {
	day := truncateToDay(date)
	if day.Before(truncateToDay(now)) {
		return false
	}
	return !day.Before(dateFloor)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rule checks one field of a draft against the directory snapshot taken
// at the call site. Rules are pure: same inputs, same rejection.
type rule func(d Draft, dir []clinics.Clinic, now time.Time) *FieldError

// ruleTable is the single rule set used both for validate-on-change and
// for the exhaustive pass before submission, so the two can never
// drift apart.
var ruleTable = map[Field]rule{
	FieldFullName: func(d Draft, _ []clinics.Clinic, _ time.Time) *FieldError {
		if len(strings.TrimSpace(d.FullName)) < 2 {
			return &FieldError{Field: FieldFullName, Reason: ReasonNameTooShort}
		}
		return nil
	},
	FieldEmail: func(d Draft, _ []clinics.Clinic, _ time.Time) *FieldError {
		if !emailPattern.MatchString(d.Email) {
			return &FieldError{Field: FieldEmail, Reason: ReasonEmailInvalid}
		}
		return nil
	},
	FieldPhone: func(d Draft, _ []clinics.Clinic, _ time.Time) *FieldError {
		if len(d.Phone) < 10 {
			return &FieldError{Field: FieldPhone, Reason: ReasonPhoneInvalid}
		}
		return nil
	},
	FieldHospitalID: func(d Draft, dir []clinics.Clinic, _ time.Time) *FieldError {
		if d.HospitalID == "" {
			return &FieldError{Field: FieldHospitalID, Reason: ReasonHospital}
		}
		for _, c := range dir {
			if c.ID == d.HospitalID {
				return nil
			}
		}
		return &FieldError{Field: FieldHospitalID, Reason: ReasonHospital}
	},
	FieldAppointmentDate: func(d Draft, _ []clinics.Clinic, now time.Time) *FieldError {
		if d.AppointmentDate == nil {
			return &FieldError{Field: FieldAppointmentDate, Reason: ReasonDate}
		}
		if !DateSelectable(*d.AppointmentDate, now) {
			return &FieldError{Field: FieldAppointmentDate, Reason: ReasonDatePast}
		}
		return nil
	},
	FieldTimeSlot: func(d Draft, _ []clinics.Clinic, _ time.Time) *FieldError {
		if !IsTimeSlot(d.TimeSlot) {
			return &FieldError{Field: FieldTimeSlot, Reason: ReasonTimeSlot}
		}
		return nil
	},
	// message is optional free text; no rule.
	FieldMessage: func(Draft, []clinics.Clinic, time.Time) *FieldError {
		return nil
	},
}

// fieldOrder keeps rejection lists in a stable, form-visual order.
var fieldOrder = []Field{
	FieldFullName, FieldEmail, FieldPhone,
	FieldHospitalID, FieldAppointmentDate, FieldTimeSlot, FieldMessage,
}

// ValidateField evaluates a single field. Unknown fields pass.
func ValidateField(field Field, d Draft, dir []clinics.Clinic, now time.Time) *FieldError {
	check, ok := ruleTable[field]
	if !ok {
		return nil
	}
	return check(d, dir, now)
}

// ValidateDraft evaluates every field independently and returns all
// rejections at once.
func ValidateDraft(d Draft, dir []clinics.Clinic, now time.Time) []FieldError {
	var errs []FieldError
	for _, field := range fieldOrder {
		if fe := ruleTable[field](d, dir, now); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}
