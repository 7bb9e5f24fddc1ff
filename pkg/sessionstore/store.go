package sessionstore

import (
	"context"
	"time"
)

// Store defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists a snapshot. Called when a session detaches and on
	// graceful shutdown. If id already exists, it is overwritten.
	// The expiresAt parameter is the end of the session's resume window.
	Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Load retrieves a snapshot by session ID.
	// Returns (nil, nil) if the snapshot doesn't exist or has expired.
	// Returns (data, nil) if found and still inside the resume window.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes a snapshot. Called when a session resumes or is
	// evicted. Must not return an error if the snapshot doesn't exist.
	Delete(ctx context.Context, id string) error

	// Touch extends the resume window without rewriting the snapshot.
	// Must not return an error if the snapshot doesn't exist.
	Touch(ctx context.Context, id string, expiresAt time.Time) error

	// SaveAll persists multiple snapshots, atomically where the backend
	// allows. Used during graceful shutdown to park all live sessions.
	SaveAll(ctx context.Context, snapshots map[string]Record) error

	// Close releases any resources held by the store.
	Close() error
}

// Record pairs encoded snapshot bytes with their expiry for SaveAll.
type Record struct {
	// Data is the encoded snapshot.
	Data []byte

	// ExpiresAt is the end of the resume window.
	ExpiresAt time.Time
}

// NotFoundError reports a snapshot that doesn't exist.
// Note: Load returns (nil, nil) for missing snapshots, not this error.
// It exists for callers that need an explicit error type.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return "sessionstore: snapshot not found: " + e.ID
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "sessionstore: store is closed"
}
