package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process store driver for tests and demo mode. Like the
// real stores it assigns ids and created_at server-side.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]map[string]any

	// FailQuery / FailInsert force errors; tests use them to exercise
	// the failure paths of the loader and the form.
	FailQuery  error
	FailInsert error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]map[string]any)}
}

// Seed replaces a collection's contents with the given records.
func (m *Memory) Seed(collection string, records []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = records
}

// Query returns the collection as a JSON array, applying exact-match
// filters and ascending string ordering.
func (m *Memory) Query(ctx context.Context, collection string, opts QueryOptions) ([]byte, error) {
	m.mu.RLock()
	failErr := m.FailQuery
	records := make([]map[string]any, len(m.collections[collection]))
	copy(records, m.collections[collection])
	m.mu.RUnlock()

	if failErr != nil {
		return nil, queryError(collection, failErr)
	}

	filtered := records[:0:0]
	for _, rec := range records {
		match := true
		for col, want := range opts.Filters {
			if fmt.Sprint(rec[col]) != want {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, rec)
		}
	}

	if opts.OrderBy != "" {
		col := opts.OrderBy
		sort.SliceStable(filtered, func(i, j int) bool {
			return fmt.Sprint(filtered[i][col]) < fmt.Sprint(filtered[j][col])
		})
	}

	if filtered == nil {
		filtered = []map[string]any{}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return nil, queryError(collection, err)
	}
	return data, nil
}

// Insert appends one record, stamping id and created_at.
func (m *Memory) Insert(ctx context.Context, collection string, record any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsert != nil {
		return insertError(collection, m.FailInsert)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return insertError(collection, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return insertError(collection, fmt.Errorf("record must be an object: %w", err))
	}

	if _, ok := fields["id"]; !ok {
		fields["id"] = uuid.NewString()
	}
	if _, ok := fields["created_at"]; !ok {
		fields["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	m.collections[collection] = append(m.collections[collection], fields)
	return nil
}

// Records returns a copy of a collection's raw records.
func (m *Memory) Records(collection string) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]any, len(m.collections[collection]))
	copy(out, m.collections[collection])
	return out
}

var _ Client = (*Memory)(nil)
