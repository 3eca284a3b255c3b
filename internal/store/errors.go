package store

import (
	"errors"
	"fmt"
)

// ErrUnknownCollection is returned for collections no driver maps.
var ErrUnknownCollection = errors.New("store: unknown collection")

// StoreError wraps any driver failure. Callers treat transport and
// server errors the same way, so the wrapper only records where the
// failure happened.
type StoreError struct {
	Op         string // "query" or "insert"
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s %s failed: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func queryError(collection string, err error) error {
	return &StoreError{Op: "query", Collection: collection, Err: err}
}

func insertError(collection string, err error) error {
	return &StoreError{Op: "insert", Collection: collection, Err: err}
}
