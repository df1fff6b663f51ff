package eventstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

const testRunID = "run-123"

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	payload := []byte(`{"test": "data"}`)

	if err := store.Append(ctx, testRunID, "TestEvent", payload, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	if err := store.Append(ctx, "other-run", "TestEvent", nil, nil); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := store.GetByRunID(ctx, testRunID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.RunID() != testRunID {
		t.Errorf("expected run_id %s, got %s", testRunID, event.RunID())
	}
	if event.Type() != "TestEvent" {
		t.Errorf("expected event_type TestEvent, got %s", event.Type())
	}
	if !bytes.Equal(event.Payload(), payload) {
		t.Errorf("expected payload %s, got %s", payload, event.Payload())
	}
	if event.Metadata()["key"] != "value" {
		t.Errorf("expected metadata key=value, got %v", event.Metadata())
	}
	if event.ID() == 0 {
		t.Error("expected a store-assigned id")
	}
}

func TestEventStoreGetRange(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, testRunID, "TestEvent", []byte("{}"), nil); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	events, err := store.GetRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	events, err = store.GetRange(ctx, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events in the future, got %d", len(events))
	}
}

func TestEventStorePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Append(context.Background(), testRunID, "TestEvent", []byte("{}"), nil); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByRunID(context.Background(), testRunID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after reopen, got %d", len(events))
	}
}

func TestRecorderNilStoreDiscards(t *testing.T) {
	e, err := NewConfigRestored(testRunID, "angular.json")
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := NewRecorder(nil).Record(context.Background(), e); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRecorderClosedStoreFails(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	_ = store.Close()

	e, err := NewConfigRestored(testRunID, "angular.json")
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	err = NewRecorder(store).Record(context.Background(), e)
	if !errors.HasCategory(err, errors.CategoryEventStore) {
		t.Fatalf("expected eventstore error, got %v", err)
	}
}
