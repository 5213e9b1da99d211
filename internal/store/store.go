package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no document exists under a key.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by Save when the stored version is not the one
	// the caller expected.
	ErrConflict = errors.New("document version conflict")
)

// Document is a serialized blob stored under a fixed key. Version starts at 1
// and grows by one with every successful Save.
type Document struct {
	Key       string    `db:"key"`
	Body      []byte    `db:"body"`
	Version   int       `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DocumentStore is a key-value store holding one serialized document per key.
type DocumentStore interface {
	// Load returns the document stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) (Document, error)
	// Save replaces the document stored under key if its version equals
	// expected (0 meaning no document yet) and stores it as expected+1.
	// Otherwise it returns ErrConflict and leaves the document untouched.
	Save(ctx context.Context, key string, body []byte, expected int) error
}
