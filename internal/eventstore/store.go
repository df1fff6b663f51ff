package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving run events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events of a run, oldest first.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// Recorder appends typed events to a store.
type Recorder struct {
	store Store
}

// NewRecorder returns a Recorder writing to store. A nil store discards events.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends e. Errors are classified as event store errors.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if r == nil || r.store == nil {
		return nil
	}
	if err := r.store.Append(ctx, e.RunID(), e.Type(), e.Payload(), e.Metadata()); err != nil {
		return ErrEventAppendFailed.WithContext("event", e.Type()).WithContext("cause", err.Error())
	}
	return nil
}
