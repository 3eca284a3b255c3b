package clinics

import "time"

// Clinic is one selectable clinic as stored in the clinics collection.
// The widget only ever reads these.
type Clinic struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	ContactEmail string    `json:"contact_email"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
}
