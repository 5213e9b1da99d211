package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/event"
	"github.com/jensholdgaard/cpl-auction/internal/store"
	"github.com/jensholdgaard/cpl-auction/internal/store/memory"
)

func TestDocumentStore_LoadMissing(t *testing.T) {
	s := memory.NewDocumentStore()
	_, err := s.Load(context.Background(), "absent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentStore_SaveAndLoad(t *testing.T) {
	s := memory.NewDocumentStore()
	ctx := context.Background()

	body := []byte(`{"playersPool":[]}`)
	if err := s.Save(ctx, "k", body, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Mutating the caller's slice must not leak into the store.
	body[0] = 'X'

	got, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got.Body) != `{"playersPool":[]}` || got.Version != 1 {
		t.Errorf("Load() = %s at version %d", got.Body, got.Version)
	}

	if err := s.Save(ctx, "k", []byte(`{}`), 1); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _ = s.Load(ctx, "k")
	if string(got.Body) != `{}` || got.Version != 2 {
		t.Errorf("Load() after overwrite = %s at version %d", got.Body, got.Version)
	}
}

func TestDocumentStore_SaveConflict(t *testing.T) {
	tests := []struct {
		name     string
		seed     bool
		expected int
	}{
		{name: "create over existing", seed: true, expected: 0},
		{name: "stale version", seed: true, expected: 3},
		{name: "update of missing document", expected: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.NewDocumentStore()
			ctx := context.Background()
			if tt.seed {
				if err := s.Save(ctx, "k", []byte(`{"v":1}`), 0); err != nil {
					t.Fatal(err)
				}
			}
			err := s.Save(ctx, "k", []byte(`{"v":2}`), tt.expected)
			if !errors.Is(err, store.ErrConflict) {
				t.Fatalf("Save() error = %v, want ErrConflict", err)
			}
			if got, err := s.Load(ctx, "k"); err == nil && string(got.Body) != `{"v":1}` {
				t.Errorf("document changed after conflict: %s", got.Body)
			}
		})
	}
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	es := memory.NewEventStore(clock.Mock{T: fixed})
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "ledger", Type: event.PlayersImported, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "ledger", Type: event.PlayerAssigned, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "other", Type: event.PlayerAssigned, Data: json.RawMessage(`{}`), Version: 1},
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, "ledger")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}
	if loaded[0].ID == "" || !loaded[0].CreatedAt.Equal(fixed) {
		t.Errorf("event not stamped: %+v", loaded[0])
	}

	assigned, err := es.LoadByType(ctx, event.PlayerAssigned)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(assigned) != 2 {
		t.Errorf("LoadByType returned %d events, want 2", len(assigned))
	}
}
