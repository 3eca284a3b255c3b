// Package router assembles the HTTP surface: the public widget API,
// health and metrics, and the JWT-guarded staff reporting routes.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oakdental/booking-platform/internal/admin"
	httpmiddleware "github.com/oakdental/booking-platform/internal/http/middleware"
	"github.com/oakdental/booking-platform/internal/widget"
	"github.com/oakdental/booking-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Widget             *widget.Handler
	AdminAppointments  *admin.AppointmentsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New builds the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Widget != nil {
		w := cfg.Widget
		r.Get("/widget.js", w.HandleWidgetJS)
		r.Get("/widget/ws", w.HandleNotifications)
		r.Post("/widget/session", w.HandleCreateSession)
		r.Delete("/widget/session/{sessionID}", w.HandleCancel)
		r.Get("/widget/session/{sessionID}/clinics", w.HandleClinics)
		r.Post("/widget/session/{sessionID}/clinics/reload", w.HandleReloadClinics)
		r.Patch("/widget/session/{sessionID}/fields", w.HandleFields)
		r.Post("/widget/session/{sessionID}/submit", w.HandleSubmit)
	}

	if cfg.AdminAppointments != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			ar.Get("/appointments", cfg.AdminAppointments.ListAppointments)
			ar.Get("/appointments/stats", cfg.AdminAppointments.GetStats)
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
