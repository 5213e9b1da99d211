// Package sqlite provides a store.Driver backed by a local SQLite file,
// accessed through database/sql with OTEL instrumentation via otelsql. It is
// the default driver: the auction state lives next to the process that runs
// the auction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/config"
	"github.com/jensholdgaard/cpl-auction/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    key        TEXT PRIMARY KEY,
    body       BLOB NOT NULL,
    version    INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
    id           TEXT PRIMARY KEY,
    aggregate_id TEXT NOT NULL,
    type         TEXT NOT NULL,
    data         BLOB NOT NULL,
    version      INTEGER NOT NULL,
    actor        TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_aggregate ON events (aggregate_id, version);
CREATE INDEX IF NOT EXISTS idx_events_type ON events (type, created_at);
`

func init() {
	store.Register("sqlite", openSQLite)
}

// openSQLite is the store.Driver for the "sqlite" backend.
func openSQLite(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Documents: NewDocumentStore(db, clk),
		Events:    NewEventStore(db, clk),
		Closer:    db,
		Ping:      db.PingContext,
	}, nil
}

// Connect opens the database file at path, verifies it and creates the schema.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection serialises writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}

	return db, nil
}
