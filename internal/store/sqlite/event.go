package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/event"
)

// EventStore implements event.Store using database/sql.
type EventStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *sql.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, aggregate_id, type, data, version, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.clock.Now()
		}
		data := []byte(e.Data)
		if len(data) == 0 {
			data = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, id, e.AggregateID, string(e.Type), data, e.Version, e.Actor,
			createdAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting event (aggregate=%s, version=%d): %w", e.AggregateID, e.Version, err)
		}
	}

	return tx.Commit()
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, type, data, version, actor, created_at
		 FROM events WHERE aggregate_id = ? ORDER BY version ASC, created_at ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return scanEvents(rows)
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, type, data, version, actor, created_at
		 FROM events WHERE type = ? ORDER BY created_at ASC`, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			e         event.Event
			eventType string
			data      []byte
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &eventType, &data, &e.Version, &e.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", createdAt, err)
		}
		e.Type = event.Type(eventType)
		e.Data = data
		e.CreatedAt = ts
		events = append(events, e)
	}
	return events, rows.Err()
}
