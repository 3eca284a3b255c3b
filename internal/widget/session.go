package widget

import (
	"context"
	"sync"
	"time"

	"github.com/oakdental/booking-platform/internal/booking"
	"github.com/oakdental/booking-platform/internal/clinics"
	"github.com/oakdental/booking-platform/internal/notify"
)

// notifyBuffer bounds undelivered toasts per session. The widget only
// ever shows the most recent few; older ones are dropped, not queued
// forever.
const notifyBuffer = 8

// session is one open widget dialog: a booking form, its directory
// loader and the notification feed the WebSocket drains.
type session struct {
	id   string
	form *booking.Form
	dir  *clinics.Directory

	notes chan notify.Notification

	mu       sync.Mutex
	loading  bool
	lastSeen time.Time
}

func newSession(id string, form *booking.Form, dir *clinics.Directory, now time.Time) *session {
	return &session{
		id:       id,
		form:     form,
		dir:      dir,
		notes:    make(chan notify.Notification, notifyBuffer),
		lastSeen: now,
	}
}

// Push implements notify.Sink. Delivery is fire-and-forget: when the
// buffer is full the notification is dropped rather than blocking the
// form.
func (s *session) Push(n notify.Notification) {
	select {
	case s.notes <- n:
	default:
	}
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// beginLoad marks a directory load in flight. It returns false when one
// is already running, so a reload cannot stack fetches.
func (s *session) beginLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return false
	}
	s.loading = true
	return true
}

func (s *session) isLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// loadDirectory runs one directory fetch and hands the result to the
// form. The form's install guard drops results that settle after the
// dialog closed.
func (s *session) loadDirectory(ctx context.Context, h *Handler) {
	defer s.setLoading(false)

	snap, err := s.dir.Load(ctx)
	if err != nil {
		h.metrics.ObserveDirectoryLoad("error")
		if !s.form.Closed() {
			s.Push(notify.Notification{
				Title:       "Error",
				Description: loadErrorText,
				Severity:    notify.SeverityDestructive,
			})
		}
		return
	}

	h.metrics.ObserveDirectoryLoad("success")
	if !s.form.InstallDirectory(snap) {
		h.logger.Debug("widget: directory load settled after close", "session_id", s.id)
	}
}
