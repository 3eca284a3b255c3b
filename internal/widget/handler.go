// Package widget is the HTTP and WebSocket surface of the embeddable
// booking widget. Each widget instance opens a session owning one
// booking form; toasts flow to the page over the session's WebSocket.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/oakdental/booking-platform/internal/booking"
	"github.com/oakdental/booking-platform/internal/clinics"
	"github.com/oakdental/booking-platform/internal/notify"
	"github.com/oakdental/booking-platform/internal/observability/metrics"
	"github.com/oakdental/booking-platform/internal/store"
	"github.com/oakdental/booking-platform/pkg/logging"
)

// loadErrorText is the toast shown when the clinic list cannot be
// fetched.
const loadErrorText = "Failed to load hospitals. Please try again."

// loadTimeout bounds a single directory fetch. Loads run detached from
// the request that triggered them.
const loadTimeout = 10 * time.Second

// Handler owns the live widget sessions.
type Handler struct {
	store    store.Client
	cache    *clinics.Cache
	notifier *notify.Service
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	widgetJS []byte
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHandler creates the widget surface. cache, notifier and m may be
// nil; ttl bounds how long an idle session survives.
func NewHandler(st store.Client, cache *clinics.Cache, notifier *notify.Service, m *metrics.BookingMetrics, widgetJS []byte, ttl time.Duration, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Handler{
		store:    st,
		cache:    cache,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		widgetJS: widgetJS,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// session lookup; nil when unknown or expired.
func (h *Handler) lookup(id string) *session {
	h.mu.RLock()
	s := h.sessions[id]
	h.mu.RUnlock()
	if s != nil {
		s.touch(h.now())
	}
	return s
}

func (h *Handler) remove(s *session) {
	h.mu.Lock()
	if h.sessions[s.id] == s {
		delete(h.sessions, s.id)
	}
	h.mu.Unlock()
}

// Sweep evicts sessions idle past the TTL, cancelling their forms so
// in-flight results are dropped. Returns how many were evicted.
func (h *Handler) Sweep() int {
	cutoff := h.now().Add(-h.ttl)

	h.mu.Lock()
	var expired []*session
	for id, s := range h.sessions {
		if s.idleSince().Before(cutoff) {
			delete(h.sessions, id)
			expired = append(expired, s)
		}
	}
	h.mu.Unlock()

	for _, s := range expired {
		s.form.Cancel()
		h.logger.Info("widget: session expired", "session_id", s.id)
	}
	return len(expired)
}

// StartSweeper runs Sweep on a ticker until ctx is cancelled.
func (h *Handler) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Sweep()
			}
		}
	}()
}

type createSessionResponse struct {
	SessionID      string   `json:"session_id"`
	TimeSlots      []string `json:"time_slots"`
	ClinicsLoading bool     `json:"clinics_loading"`
}

// HandleCreateSession opens a new session with an empty form and kicks
// off the directory load in the background. The form is usable while
// the clinic list is still loading.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	dir := clinics.NewDirectory(h.store, h.cache, h.logger)

	s := newSession(id, nil, dir, h.now())
	s.form = booking.NewForm(h.store, s, h.logger)

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()

	h.metrics.ObserveSessionOpened()
	h.logger.Info("widget: session opened", "session_id", id)

	s.setLoading(true)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		s.loadDirectory(ctx, h)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createSessionResponse{
		SessionID:      id,
		TimeSlots:      booking.TimeSlots,
		ClinicsLoading: true,
	})
}

type clinicsResponse struct {
	Clinics []clinics.Clinic `json:"clinics"`
	Loaded  bool             `json:"loaded"`
	Loading bool             `json:"loading"`
}

// HandleClinics returns the directory snapshot the session's form
// currently validates against, plus the loading flag the widget uses to
// show its spinner.
func (h *Handler) HandleClinics(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(chi.URLParam(r, "sessionID"))
	if s == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	snap, loaded := s.form.Directory()
	if snap == nil {
		snap = []clinics.Clinic{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(clinicsResponse{
		Clinics: snap,
		Loaded:  loaded,
		Loading: s.isLoading(),
	})
}

// HandleReloadClinics retries the directory fetch. A fetch already in
// flight is not stacked.
func (h *Handler) HandleReloadClinics(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(chi.URLParam(r, "sessionID"))
	if s == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if s.form.Closed() {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	if s.beginLoad() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			s.loadDirectory(ctx, h)
		}()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "loading"})
}

// fieldPatch is the wire form of a partial draft update. Absent keys
// leave fields untouched; clear_date drops a chosen date.
type fieldPatch struct {
	FullName        *string `json:"full_name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	HospitalID      *string `json:"hospital_id"`
	AppointmentDate *string `json:"appointment_date"`
	ClearDate       bool    `json:"clear_date"`
	TimeSlot        *string `json:"time_slot"`
	Message         *string `json:"message"`
}

type fieldErrorsResponse struct {
	FieldErrors []booking.FieldError `json:"field_errors"`
}

// HandleFields applies a partial draft update and returns the
// rejections for exactly the fields that changed.
func (h *Handler) HandleFields(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(chi.URLParam(r, "sessionID"))
	if s == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var patch fieldPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	changes := booking.FieldChanges{
		FullName:   patch.FullName,
		Email:      patch.Email,
		Phone:      patch.Phone,
		HospitalID: patch.HospitalID,
		ClearDate:  patch.ClearDate,
		TimeSlot:   patch.TimeSlot,
		Message:    patch.Message,
	}
	if patch.AppointmentDate != nil {
		date, err := time.Parse(booking.DateLayout, *patch.AppointmentDate)
		if err != nil {
			http.Error(w, "appointment_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		changes.AppointmentDate = &date
	}

	fieldErrs, err := s.form.SetFields(changes)
	if err != nil {
		writeFormError(w, err)
		return
	}
	if fieldErrs == nil {
		fieldErrs = []booking.FieldError{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(fieldErrorsResponse{FieldErrors: fieldErrs})
}

type submitResponse struct {
	Booked      bool                 `json:"booked"`
	FieldErrors []booking.FieldError `json:"field_errors"`
	Error       string               `json:"error,omitempty"`
	Record      *booking.Record      `json:"record,omitempty"`
}

// HandleSubmit runs one submission attempt and reports the settled
// outcome. A booked appointment additionally triggers the clinic
// confirmation email, which never affects the response.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(chi.URLParam(r, "sessionID"))
	if s == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	start := h.now()
	out, err := s.form.Submit(r.Context())
	if err != nil {
		writeFormError(w, err)
		return
	}

	resp := submitResponse{Booked: out.Booked, FieldErrors: out.FieldErrors}
	if resp.FieldErrors == nil {
		resp.FieldErrors = []booking.FieldError{}
	}

	switch {
	case len(out.FieldErrors) > 0:
		h.metrics.ObserveSubmission("rejected")
	case out.SubmissionErr != nil:
		h.metrics.ObserveSubmission("error")
		h.metrics.ObserveSubmitLatency("error", h.now().Sub(start).Seconds())
		resp.Error = "Failed to book appointment. Please try again."
	default:
		h.metrics.ObserveSubmission("booked")
		h.metrics.ObserveSubmitLatency("booked", h.now().Sub(start).Seconds())
		resp.Record = out.Record
		h.confirmToClinic(s, out.Record)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) confirmToClinic(s *session, rec *booking.Record) {
	if h.notifier == nil || rec == nil {
		return
	}
	// The form's snapshot is the directory the booking validated
	// against; the live loader may be mid-reload.
	snap, _ := s.form.Directory()
	var clinic clinics.Clinic
	found := false
	for _, c := range snap {
		if c.ID == rec.HospitalID {
			clinic, found = c, true
			break
		}
	}
	if !found {
		h.logger.Warn("widget: booked clinic missing from directory", "hospital_id", rec.HospitalID)
		return
	}
	sum := notify.BookingSummary{
		ClinicName:      clinic.Name,
		ClinicEmail:     clinic.ContactEmail,
		PatientName:     rec.FullName,
		PatientEmail:    rec.Email,
		PatientPhone:    rec.Phone,
		AppointmentDate: rec.AppointmentDate,
		TimeSlot:        rec.TimeSlot,
		Message:         rec.Message,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = h.notifier.NotifyBookingConfirmed(ctx, sum)
	}()
}

// HandleCancel closes the dialog, discarding the draft silently.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(chi.URLParam(r, "sessionID"))
	if s == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	s.form.Cancel()
	h.remove(s)
	h.logger.Info("widget: session cancelled", "session_id", s.id)
	w.WriteHeader(http.StatusNoContent)
}

func writeFormError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrFormClosed):
		http.Error(w, "session closed", http.StatusGone)
	case errors.Is(err, booking.ErrSubmissionInFlight):
		http.Error(w, "a submission is already in flight", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// HandleNotifications upgrades to WebSocket and streams the session's
// toasts to the open widget.
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	s := h.lookup(r.URL.Query().Get("session"))
	if s == nil {
		_ = websocket.JSON.Send(conn, map[string]string{"type": "error", "text": "unknown session"})
		return
	}

	h.logger.Debug("widget: notification stream opened", "session_id", s.id)

	// Reader detects the client going away; the widget never sends
	// anything meaningful upstream.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var discard json.RawMessage
			if err := websocket.JSON.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			h.logger.Debug("widget: notification stream closed", "session_id", s.id)
			return
		case n := <-s.notes:
			if err := websocket.JSON.Send(conn, n); err != nil {
				return
			}
		}
	}
}

// HandleWidgetJS serves the embeddable widget script.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}
