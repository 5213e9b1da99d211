package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/store"
)

// DocumentStore implements store.DocumentStore with sqlx.
type DocumentStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewDocumentStore returns a new DocumentStore.
func NewDocumentStore(db *sqlx.DB, clk clock.Clock) *DocumentStore {
	return &DocumentStore{db: db, clock: clk}
}

func (s *DocumentStore) Load(ctx context.Context, key string) (store.Document, error) {
	var doc store.Document
	err := s.db.GetContext(ctx, &doc, `SELECT key, body, version, updated_at FROM documents WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("loading %q: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("loading document %q: %w", key, err)
	}
	return doc, nil
}

func (s *DocumentStore) Save(ctx context.Context, key string, body []byte, expected int) error {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (key, body, version, updated_at) VALUES ($1, $2::jsonb, 1, $3)
			 ON CONFLICT (key) DO NOTHING`,
			key, string(body), s.clock.Now().UTC(),
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET body = $2::jsonb, version = version + 1, updated_at = $3
			 WHERE key = $1 AND version = $4`,
			key, string(body), s.clock.Now().UTC(), expected,
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
