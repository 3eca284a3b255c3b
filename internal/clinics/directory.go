// Package clinics loads and holds the directory of selectable clinics
// for one widget session.
package clinics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakdental/booking-platform/internal/store"
	"github.com/oakdental/booking-platform/pkg/logging"
)

// LoadError marks a failed directory fetch. The directory keeps its
// previous contents when this is returned.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("clinics: directory load failed: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Directory holds the clinic set for one widget session. It is loaded
// once on activation and replaced wholesale on each successful load; a
// failed load never clobbers what is already there.
type Directory struct {
	store  store.Client
	cache  *Cache
	logger *logging.Logger

	clinics []Clinic
	loaded  bool
}

// NewDirectory creates an empty directory. cache may be nil.
func NewDirectory(st store.Client, cache *Cache, logger *logging.Logger) *Directory {
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{store: st, cache: cache, logger: logger}
}

// Load fetches the full clinic list ordered by name ascending. An empty
// result is valid. On failure the previous contents are kept and a
// *LoadError is returned; there is no automatic retry.
//
// Load is not safe for concurrent use; the owning session serializes
// calls to it.
func (d *Directory) Load(ctx context.Context) ([]Clinic, error) {
	if cached, ok := d.cache.Get(ctx); ok {
		d.clinics = cached
		d.loaded = true
		d.logger.Debug("clinics: directory served from cache", "count", len(cached))
		return d.Snapshot(), nil
	}

	data, err := d.store.Query(ctx, store.CollectionClinics, store.QueryOptions{OrderBy: "name"})
	if err != nil {
		d.logger.Error("clinics: directory query failed", "error", err)
		return nil, &LoadError{Err: err}
	}

	var fetched []Clinic
	if err := json.Unmarshal(data, &fetched); err != nil {
		d.logger.Error("clinics: directory payload malformed", "error", err)
		return nil, &LoadError{Err: err}
	}
	if fetched == nil {
		fetched = []Clinic{}
	}

	d.cache.Set(ctx, fetched)
	d.clinics = fetched
	d.loaded = true
	d.logger.Info("clinics: directory loaded", "count", len(fetched))
	return d.Snapshot(), nil
}

// Snapshot returns a copy of the current clinic set. Validation always
// works against a snapshot, never against the live directory.
func (d *Directory) Snapshot() []Clinic {
	out := make([]Clinic, len(d.clinics))
	copy(out, d.clinics)
	return out
}

// Loaded reports whether at least one load has succeeded.
func (d *Directory) Loaded() bool {
	return d.loaded
}

// Find returns the clinic with the given id, if present.
func (d *Directory) Find(id string) (Clinic, bool) {
	for _, c := range d.clinics {
		if c.ID == id {
			return c, true
		}
	}
	return Clinic{}, false
}
