package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/store"
)

// DocumentStore implements store.DocumentStore using database/sql.
type DocumentStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewDocumentStore returns a new DocumentStore.
func NewDocumentStore(db *sql.DB, clk clock.Clock) *DocumentStore {
	return &DocumentStore{db: db, clock: clk}
}

func (s *DocumentStore) Load(ctx context.Context, key string) (store.Document, error) {
	doc := store.Document{Key: key}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version, updated_at FROM documents WHERE key = ?`, key,
	).Scan(&doc.Body, &doc.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("loading %q: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("loading document %q: %w", key, err)
	}
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return doc, nil
}

func (s *DocumentStore) Save(ctx context.Context, key string, body []byte, expected int) error {
	now := s.clock.Now().UTC().Format(time.RFC3339Nano)

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (key, body, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT (key) DO NOTHING`,
			key, body, now,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET body = ?, version = version + 1, updated_at = ?
			 WHERE key = ? AND version = ?`,
			body, now, key, expected,
		)
	}
	if err != nil {
		return fmt.Errorf("saving document %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving document %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("saving %q at version %d: %w", key, expected, store.ErrConflict)
	}
	return nil
}
