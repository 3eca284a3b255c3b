package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// Supabase is the hosted store driver, speaking PostgREST through the
// community client.
type Supabase struct {
	client *supa.Client
}

// NewSupabase creates the Supabase driver. The service role key is used
// because the widget backend writes on behalf of anonymous patients.
func NewSupabase(url, serviceKey string) (*Supabase, error) {
	if url == "" || serviceKey == "" {
		return nil, errors.New("store: supabase url and key are required")
	}
	client, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create supabase client: %w", err)
	}
	return &Supabase{client: client}, nil
}

// Query fetches all rows of a collection, optionally filtered and
// ordered ascending.
func (s *Supabase) Query(ctx context.Context, collection string, opts QueryOptions) ([]byte, error) {
	q := s.client.From(collection).Select("*", "", false)
	for col, val := range opts.Filters {
		q = q.Eq(col, val)
	}
	if opts.OrderBy != "" {
		q = q.Order(opts.OrderBy, &postgrest.OrderOpts{Ascending: true})
	}

	data, _, err := q.ExecuteWithContext(ctx)
	if err != nil {
		return nil, queryError(collection, err)
	}
	return data, nil
}

// Insert writes one record.
func (s *Supabase) Insert(ctx context.Context, collection string, record any) error {
	_, _, err := s.client.From(collection).Insert(record, false, "", "", "").ExecuteWithContext(ctx)
	if err != nil {
		return insertError(collection, err)
	}
	return nil
}

var _ Client = (*Supabase)(nil)
