// Package memory provides a store.Driver that keeps documents and events in
// process memory. Nothing survives a restart; it backs tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/config"
	"github.com/jensholdgaard/cpl-auction/internal/event"
	"github.com/jensholdgaard/cpl-auction/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

func openMemory(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	return &store.Repositories{
		Documents: NewDocumentStore(),
		Events:    NewEventStore(clk),
		Closer:    store.CloserFunc(func() error { return nil }),
		Ping:      func(context.Context) error { return nil },
	}, nil
}

// DocumentStore implements store.DocumentStore in memory.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]store.Document
	clock clock.Clock
}

// NewDocumentStore returns an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]store.Document), clock: clock.Real{}}
}

func (s *DocumentStore) Load(_ context.Context, key string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return store.Document{}, fmt.Errorf("loading %q: %w", key, store.ErrNotFound)
	}
	doc.Body = append([]byte(nil), doc.Body...)
	return doc, nil
}

func (s *DocumentStore) Save(_ context.Context, key string, body []byte, expected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current := s.docs[key].Version; current != expected {
		return fmt.Errorf("saving %q at version %d (stored %d): %w", key, expected, current, store.ErrConflict)
	}
	s.docs[key] = store.Document{
		Key:       key,
		Body:      append([]byte(nil), body...),
		Version:   expected + 1,
		UpdatedAt: s.clock.Now().UTC(),
	}
	return nil
}

// EventStore implements event.Store in memory.
type EventStore struct {
	mu     sync.RWMutex
	events []event.Event
	clock  clock.Clock
}

// NewEventStore returns an empty EventStore.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now().UTC()
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	return s.filter(func(e event.Event) bool { return e.AggregateID == aggregateID }), nil
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	return s.filter(func(e event.Event) bool { return e.Type == eventType }), nil
}

func (s *EventStore) filter(keep func(event.Event) bool) []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []event.Event
	for _, e := range s.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}
