// Package store persists records as JSON values in named buckets.
//
// Two drivers implement Backend: a bbolt file for durable deployments and a
// go-memdb database for tests and throwaway runs. Account data and system data
// are kept in separate backends, see Open.
package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrClosed   = errors.New("store closed")
)

// DuplicateError is returned when a unique field is already taken.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %s", e.Field, e.Value)
}

// Tx is a read or read-write view of a backend.
type Tx interface {
	// Get returns ErrNotFound when key is absent. The returned slice is owned by the caller.
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, val []byte) error
	Delete(bucket, key string) error
	// ForEach visits entries in key order. Returning an error stops the walk.
	ForEach(bucket string, fn func(key string, val []byte) error) error
}

type Backend interface {
	View(fn func(Tx) error) error
	Update(fn func(Tx) error) error
	Close() error
}
