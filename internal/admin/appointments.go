// Package admin is the staff-facing reporting surface over the
// persisted appointments. It is read-only and JWT-guarded; patients
// never touch it.
package admin

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/oakdental/booking-platform/pkg/logging"
)

// AppointmentsHandler serves appointment listings for clinic staff.
type AppointmentsHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewAppointmentsHandler creates the reporting handler.
func NewAppointmentsHandler(db *sql.DB, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{db: db, logger: logger}
}

// AppointmentResponse is one persisted appointment in API responses.
type AppointmentResponse struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	HospitalID      string `json:"hospital_id"`
	HospitalName    string `json:"hospital_name,omitempty"`
	AppointmentDate string `json:"appointment_date"`
	TimeSlot        string `json:"time_slot"`
	Message         string `json:"message,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// AppointmentsListResponse is a paginated appointment listing.
type AppointmentsListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	TotalPages   int                   `json:"total_pages"`
}

// ListAppointments returns persisted appointments, newest first.
// GET /admin/appointments?page=&page_size=&hospital_id=&date=
func (h *AppointmentsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	hospitalID := r.URL.Query().Get("hospital_id")
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	offset := (page - 1) * pageSize

	query := `
		SELECT a.id, a.full_name, a.email, a.phone, a.hospital_id,
		       COALESCE(c.name, '') AS hospital_name,
		       a.appointment_date, a.time_slot, COALESCE(a.message, ''), a.created_at
		FROM appointments a
		LEFT JOIN clinics c ON c.id = a.hospital_id
	`
	countQuery := `SELECT COUNT(*) FROM appointments a`

	var where []string
	var args []any
	if hospitalID != "" {
		args = append(args, hospitalID)
		where = append(where, "a.hospital_id = $"+strconv.Itoa(len(args)))
	}
	if date != "" {
		args = append(args, date)
		where = append(where, "a.appointment_date = $"+strconv.Itoa(len(args)))
	}
	clause := ""
	for i, cond := range where {
		if i == 0 {
			clause = " WHERE " + cond
		} else {
			clause += " AND " + cond
		}
	}
	query += clause
	countQuery += clause

	var total int
	if err := h.db.QueryRowContext(r.Context(), countQuery, args...).Scan(&total); err != nil {
		h.logger.Error("admin: failed to count appointments", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	query += " ORDER BY a.created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) +
		" OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		h.logger.Error("admin: failed to query appointments", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var appts []AppointmentResponse
	for rows.Next() {
		var a AppointmentResponse
		var apptDate, createdAt time.Time
		if err := rows.Scan(
			&a.ID, &a.FullName, &a.Email, &a.Phone, &a.HospitalID,
			&a.HospitalName, &apptDate, &a.TimeSlot, &a.Message, &createdAt,
		); err != nil {
			h.logger.Error("admin: failed to scan appointment", "error", err)
			continue
		}
		a.AppointmentDate = apptDate.Format("2006-01-02")
		a.CreatedAt = createdAt.Format(time.RFC3339)
		appts = append(appts, a)
	}
	if appts == nil {
		appts = []AppointmentResponse{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(AppointmentsListResponse{
		Appointments: appts,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   (total + pageSize - 1) / pageSize,
	})
}

// StatsResponse aggregates booking volume for the dashboard header.
type StatsResponse struct {
	Total        int            `json:"total"`
	ByHospital   map[string]int `json:"by_hospital"`
	BookedToday  int            `json:"booked_today"`
	UpcomingWeek int            `json:"upcoming_week"`
}

// GetStats returns aggregate appointment counts.
// GET /admin/appointments/stats
func (h *AppointmentsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := StatsResponse{ByHospital: make(map[string]int)}

	if err := h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments`,
	).Scan(&stats.Total); err != nil {
		h.logger.Error("admin: failed to count appointments", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rows, err := h.db.QueryContext(r.Context(),
		`SELECT hospital_id, COUNT(*) FROM appointments GROUP BY hospital_id`,
	)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var id string
			var count int
			if rows.Scan(&id, &count) == nil {
				stats.ByHospital[id] = count
			}
		}
	}

	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	_ = h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments WHERE created_at::date = $1`, today,
	).Scan(&stats.BookedToday)

	weekEnd := now.AddDate(0, 0, 7).Format("2006-01-02")
	_ = h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments WHERE appointment_date >= $1 AND appointment_date < $2`,
		today, weekEnd,
	).Scan(&stats.UpcomingWeek)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
