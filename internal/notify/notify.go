// Package notify carries user-facing notifications and clinic-facing
// confirmation email out of the booking flow.
package notify

import "github.com/oakdental/booking-platform/pkg/logging"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityNormal      Severity = "normal"
	SeverityDestructive Severity = "destructive"
)

// Notification is a transient message surfaced to the patient in the
// widget (a toast, in practice).
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Sink receives notifications fire-and-forget. Implementations must not
// block the caller.
type Sink interface {
	Push(n Notification)
}

// LogSink writes notifications to the log; the fallback when no widget
// session is listening.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

// Push logs the notification.
func (s *LogSink) Push(n Notification) {
	if n.Severity == SeverityDestructive {
		s.logger.Warn("notification", "title", n.Title, "description", n.Description)
		return
	}
	s.logger.Info("notification", "title", n.Title, "description", n.Description)
}

var _ Sink = (*LogSink)(nil)
