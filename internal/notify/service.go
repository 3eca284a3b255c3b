package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/oakdental/booking-platform/pkg/logging"
)

// BookingSummary carries everything the clinic needs to follow up on a
// new appointment. It is deliberately a flat value type so this package
// stays independent of the booking internals.
type BookingSummary struct {
	ClinicName      string
	ClinicEmail     string
	PatientName     string
	PatientEmail    string
	PatientPhone    string
	AppointmentDate string // YYYY-MM-DD
	TimeSlot        string
	Message         string
}

// Service emails clinics when a patient books through the widget. The
// patient is told "we'll contact you soon", so the clinic has to hear
// about the booking somewhere.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil email sender
// disables clinic email entirely.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// NotifyBookingConfirmed emails the clinic's contact address. Failures
// are logged and returned, but callers treat them as non-fatal: the
// appointment is already persisted and the patient already confirmed.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, sum BookingSummary) error {
	if s == nil || s.email == nil {
		return nil
	}
	if sum.ClinicEmail == "" {
		s.logger.Debug("notify: clinic has no contact email, skipping confirmation", "clinic", sum.ClinicName)
		return nil
	}

	dateLine := sum.AppointmentDate
	if t, err := time.Parse("2006-01-02", sum.AppointmentDate); err == nil {
		dateLine = t.Format("Monday, January 2, 2006")
	}

	messageInfo := ""
	if sum.Message != "" {
		messageInfo = fmt.Sprintf("\nReason for visit: %s", sum.Message)
	}

	subject := fmt.Sprintf("New appointment request - %s", sum.PatientName)
	body := fmt.Sprintf(`A new appointment was booked through the website widget.

Patient: %s
Email: %s
Phone: %s
Date: %s
Time: %s%s

Please contact the patient to confirm the appointment.`,
		sum.PatientName, sum.PatientEmail, sum.PatientPhone, dateLine, sum.TimeSlot, messageInfo)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>New appointment request</h2>
<table style="border-collapse: collapse;">
<tr><td style="padding:4px 12px 4px 0;"><strong>Patient</strong></td><td>%s</td></tr>
<tr><td style="padding:4px 12px 4px 0;"><strong>Email</strong></td><td>%s</td></tr>
<tr><td style="padding:4px 12px 4px 0;"><strong>Phone</strong></td><td>%s</td></tr>
<tr><td style="padding:4px 12px 4px 0;"><strong>Date</strong></td><td>%s</td></tr>
<tr><td style="padding:4px 12px 4px 0;"><strong>Time</strong></td><td>%s</td></tr>
</table>
<p>Please contact the patient to confirm the appointment.</p>
</div>`, sum.PatientName, sum.PatientEmail, sum.PatientPhone, dateLine, sum.TimeSlot)

	msg := EmailMessage{
		To:      sum.ClinicEmail,
		ToName:  sum.ClinicName,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: clinic confirmation email failed", "error", err, "clinic", sum.ClinicName)
		return fmt.Errorf("notify: clinic confirmation: %w", err)
	}

	s.logger.Info("notify: clinic confirmation email sent", "clinic", sum.ClinicName)
	return nil
}
