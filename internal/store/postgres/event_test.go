package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/event"
	"github.com/jensholdgaard/cpl-auction/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, clock.Real{})
	ctx := context.Background()

	aggID := "cpl-auction-state-v1"
	events := []event.Event{
		{AggregateID: aggID, Type: event.PlayersImported, Data: json.RawMessage(`{"processed":2,"added":1}`), Version: 1, Actor: "admin"},
		{AggregateID: aggID, Type: event.PlayerAssigned, Data: json.RawMessage(`{"player_id":"p1","coins":100}`), Version: 2, Actor: "admin"},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, aggID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}

	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("versions = [%d, %d], want [1, 2]", loaded[0].Version, loaded[1].Version)
	}
	if loaded[0].Type != event.PlayersImported {
		t.Errorf("event[0].Type = %q, want %q", loaded[0].Type, event.PlayersImported)
	}
	if loaded[1].Actor != "admin" {
		t.Errorf("event[1].Actor = %q, want %q", loaded[1].Actor, "admin")
	}

	var payload event.PlayersImportedData
	if err := json.Unmarshal(loaded[0].Data, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.Processed != 2 || payload.Added != 1 {
		t.Errorf("payload = %+v, want processed=2 added=1", payload)
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, clock.Real{})
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "a1", Type: event.PlayerAssigned, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "a1", Type: event.PlayerMoved, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "a2", Type: event.PlayerAssigned, Data: json.RawMessage(`{}`), Version: 1},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	assigned, err := es.LoadByType(ctx, event.PlayerAssigned)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(assigned) != 2 {
		t.Fatalf("LoadByType(PlayerAssigned) returned %d, want 2", len(assigned))
	}

	moved, err := es.LoadByType(ctx, event.PlayerMoved)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(moved) != 1 {
		t.Fatalf("LoadByType(PlayerMoved) returned %d, want 1", len(moved))
	}
}

func TestEventStore_LoadEmpty(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, clock.Real{})

	loaded, err := es.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d events", len(loaded))
	}
}
