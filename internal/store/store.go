// Package store is the persistence boundary of the booking widget. The
// rest of the system only ever issues whole-collection queries and single
// inserts; everything behind the Client interface (Supabase, Postgres,
// memory) is opaque.
package store

import "context"

// Collections the widget touches.
const (
	CollectionClinics      = "clinics"
	CollectionAppointments = "appointments"
)

// QueryOptions narrows a collection query. Filters are exact-match
// column=value pairs; OrderBy sorts ascending by the named column.
type QueryOptions struct {
	OrderBy string
	Filters map[string]string
}

// Client is the data store boundary. Query returns the raw JSON array of
// records so drivers with different native row types converge on one
// shape. Insert writes exactly one record.
type Client interface {
	Query(ctx context.Context, collection string, opts QueryOptions) ([]byte, error)
	Insert(ctx context.Context, collection string, record any) error
}
