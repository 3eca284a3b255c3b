package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oakdental/booking-platform/internal/clinics"
	"github.com/oakdental/booking-platform/internal/notify"
	"github.com/oakdental/booking-platform/internal/store"
	"github.com/oakdental/booking-platform/pkg/logging"
)

// Phase is the explicit submission phase of a form. A tagged phase
// rather than a bool keeps the single-in-flight invariant checkable.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
)

var (
	// ErrSubmissionInFlight is returned when a second submission (or a
	// field edit) arrives while one insert is outstanding.
	ErrSubmissionInFlight = errors.New("booking: a submission is already in flight")
	// ErrFormClosed is returned for any operation on a closed form.
	ErrFormClosed = errors.New("booking: form is closed")
)

// Patient-facing toast texts.
const (
	successTitle       = "Appointment Booked!"
	successDescription = "Your dental appointment has been successfully scheduled. We'll contact you soon with confirmation details."
	errorTitle         = "Error"
	submitErrorText    = "Failed to book appointment. Please try again."
)

// FieldChanges is a partial draft update; nil pointers leave a field
// untouched. ClearDate drops a previously chosen date.
type FieldChanges struct {
	FullName        *string
	Email           *string
	Phone           *string
	HospitalID      *string
	AppointmentDate *time.Time
	ClearDate       bool
	TimeSlot        *string
	Message         *string
}

// Outcome is the settled result of one submission attempt.
type Outcome struct {
	Booked      bool
	FieldErrors []FieldError
	// SubmissionErr is set when the insert itself failed; the draft is
	// intact and the patient may resubmit.
	SubmissionErr error
	// Record is the persisted shape, set only on success.
	Record *Record
}

// Form is the booking form state machine for one open widget dialog.
//
// Lifecycle: Idle (editable) -> Submitting (locked, exactly one insert
// attempt) -> settled. Success clears the draft and closes the form;
// failure returns to Idle with every entered value preserved. Cancel
// discards the draft with no persistence and no notification.
//
// All methods are safe for concurrent use; the mutex plus the phase tag
// is the only concurrency guard, matching the dialog's single
// submit control.
type Form struct {
	mu     sync.Mutex
	st     store.Client
	sink   notify.Sink
	logger *logging.Logger
	now    func() time.Time

	phase     Phase
	closed    bool
	draft     Draft
	directory []clinics.Clinic
	dirLoaded bool
}

// FormOption configures a Form.
type FormOption func(*Form)

// WithClock injects the clock used for the date floor; tests pin it.
func WithClock(now func() time.Time) FormOption {
	return func(f *Form) { f.now = now }
}

// NewForm opens a fresh form with an empty draft and no directory.
func NewForm(st store.Client, sink notify.Sink, logger *logging.Logger, opts ...FormOption) *Form {
	if logger == nil {
		logger = logging.Default()
	}
	if sink == nil {
		sink = notify.NewLogSink(logger)
	}
	f := &Form{
		st:     st,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InstallDirectory hands a successfully loaded clinic snapshot to the
// form. It returns false when the form has already been torn down, so a
// late-arriving load cannot touch a dialog that is no longer open.
func (f *Form) InstallDirectory(dir []clinics.Clinic) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.directory = append([]clinics.Clinic(nil), dir...)
	f.dirLoaded = true
	return true
}

// Directory returns the snapshot the form currently validates against
// and whether any load has completed.
func (f *Form) Directory() ([]clinics.Clinic, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]clinics.Clinic(nil), f.directory...), f.dirLoaded
}

// Phase returns the current submission phase.
func (f *Form) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Closed reports whether the dialog has been closed (submitted
// successfully or cancelled).
func (f *Form) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Draft returns a copy of the current draft.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SetFields applies a partial update and re-validates exactly the
// changed fields. Rejected values are kept in the draft (the widget
// shows the error next to what the patient typed). Editing is refused
// while a submission is in flight.
func (f *Form) SetFields(changes FieldChanges) ([]FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFormClosed
	}
	if f.phase == PhaseSubmitting {
		return nil, ErrSubmissionInFlight
	}

	var touched []Field
	if changes.FullName != nil {
		f.draft.FullName = *changes.FullName
		touched = append(touched, FieldFullName)
	}
	if changes.Email != nil {
		f.draft.Email = *changes.Email
		touched = append(touched, FieldEmail)
	}
	if changes.Phone != nil {
		f.draft.Phone = *changes.Phone
		touched = append(touched, FieldPhone)
	}
	if changes.HospitalID != nil {
		f.draft.HospitalID = *changes.HospitalID
		touched = append(touched, FieldHospitalID)
	}
	if changes.ClearDate {
		f.draft.AppointmentDate = nil
		touched = append(touched, FieldAppointmentDate)
	} else if changes.AppointmentDate != nil {
		date := *changes.AppointmentDate
		f.draft.AppointmentDate = &date
		touched = append(touched, FieldAppointmentDate)
	}
	if changes.TimeSlot != nil {
		f.draft.TimeSlot = *changes.TimeSlot
		touched = append(touched, FieldTimeSlot)
	}
	if changes.Message != nil {
		f.draft.Message = *changes.Message
		touched = append(touched, FieldMessage)
	}

	var errs []FieldError
	for _, field := range touched {
		if fe := ValidateField(field, f.draft, f.directory, f.now()); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs, nil
}

// Submit runs the full rule table against the directory snapshot taken
// now, and on a clean pass performs exactly one insert.
//
// Any rejection keeps the form in Idle with no store call. An insert
// failure notifies the patient, keeps the draft intact and returns to
// Idle so submission can be re-triggered manually. Success notifies,
// clears the draft and closes the dialog.
func (f *Form) Submit(ctx context.Context) (*Outcome, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFormClosed
	}
	if f.phase == PhaseSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}

	snapshot := append([]clinics.Clinic(nil), f.directory...)
	draft := f.draft

	if errs := ValidateDraft(draft, snapshot, f.now()); len(errs) > 0 {
		f.mu.Unlock()
		return &Outcome{FieldErrors: errs}, nil
	}

	f.phase = PhaseSubmitting
	f.mu.Unlock()

	record := draft.Record()
	insertErr := f.st.Insert(ctx, store.CollectionAppointments, record)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		// Dialog torn down mid-flight; the settled result must not
		// reach a UI that is no longer open.
		f.phase = PhaseIdle
		f.logger.Debug("booking: submission settled after close, dropping result", "booked", insertErr == nil)
		return &Outcome{Booked: insertErr == nil, SubmissionErr: insertErr}, nil
	}

	if insertErr != nil {
		f.phase = PhaseIdle
		f.logger.Error("booking: insert failed", "error", insertErr)
		f.sink.Push(notify.Notification{
			Title:       errorTitle,
			Description: submitErrorText,
			Severity:    notify.SeverityDestructive,
		})
		return &Outcome{SubmissionErr: insertErr}, nil
	}

	f.draft = Draft{}
	f.phase = PhaseIdle
	f.closed = true
	f.logger.Info("booking: appointment booked",
		"hospital_id", record.HospitalID,
		"appointment_date", record.AppointmentDate,
		"time_slot", record.TimeSlot,
	)
	f.sink.Push(notify.Notification{
		Title:       successTitle,
		Description: successDescription,
		Severity:    notify.SeverityNormal,
	})
	return &Outcome{Booked: true, Record: &record}, nil
}

// Cancel closes the dialog and discards the draft. No persistence is
// attempted and no notification is emitted. Safe to call at any time,
// including while a submission is in flight, in which case the settled
// result is dropped.
func (f *Form) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.draft = Draft{}
	f.closed = true
}
