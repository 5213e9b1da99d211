// Package ledger owns the auction state: the player pool and the team
// rosters. Every mutation goes through a Ledger operation that checks the
// budget and roster-size limits, persists the next state and records an
// audit event.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cpl-auction/internal/auth"
	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/config"
	"github.com/jensholdgaard/cpl-auction/internal/event"
	"github.com/jensholdgaard/cpl-auction/internal/store"
)

const instrumentationName = "github.com/jensholdgaard/cpl-auction/internal/ledger"

// Errors returned by ledger operations.
var (
	ErrUnauthorized       = errors.New("admin role required")
	ErrTeamNotFound       = errors.New("team not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTeamFull           = errors.New("team full")
	ErrDestinationFull    = errors.New("destination full")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrInvalidCoins       = errors.New("coins must be a positive integer")
	ErrAlreadyAssigned    = errors.New("player already assigned")
	ErrNoAvailablePlayers = errors.New("no available players")
	ErrAmbiguous          = errors.New("ambiguous reference")
	ErrStateChanged       = errors.New("auction state changed elsewhere")
)

// Picker draws a random index in [0, n).
type Picker interface {
	Intn(n int) int
}

// Ledger is the single owner of the auction state.
// It is safe for concurrent use; transitions are serialised.
type Ledger struct {
	mu    sync.Mutex
	state State

	docs    store.DocumentStore
	events  event.Store
	key     string
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	clock   clock.Clock
	newID   func() string
	picker  Picker
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStateKey sets the document key the state is stored under.
func WithStateKey(key string) Option {
	return func(l *Ledger) { l.key = key }
}

// WithIDGenerator replaces the uuid-based identifier generator.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithPicker replaces the random source used by Draw.
func WithPicker(p Picker) Option {
	return func(l *Ledger) { l.picker = p }
}

// WithSeed seeds the default random source. Zero seeds from the clock.
func WithSeed(seed int64) Option {
	return func(l *Ledger) {
		if seed != 0 {
			l.picker = rand.New(rand.NewSource(seed))
		}
	}
}

// New creates a Ledger holding the default state. Call Load to read the
// persisted document.
func New(docs store.DocumentStore, events event.Store, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock, opts ...Option) *Ledger {
	l := &Ledger{
		docs:    docs,
		events:  events,
		key:     config.DefaultStateKey,
		logger:  logger,
		tracer:  tp.Tracer(instrumentationName),
		metrics: newMetrics(mp),
		clock:   clk,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.picker == nil {
		l.picker = rand.New(rand.NewSource(clk.Now().UnixNano()))
	}
	l.state = DefaultState(l.newID)
	return l
}

// Load reads the persisted document. A missing or undecodable document
// leaves the ledger with the default state; a document with the wrong
// number of teams is repaired.
func (l *Ledger) Load(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.Load", trace.WithAttributes(attribute.String("state.key", l.key)))
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// load replaces the in-memory state with the stored document. State.Version
// always mirrors the document version. Callers hold l.mu.
func (l *Ledger) load(ctx context.Context) error {
	doc, err := l.docs.Load(ctx, l.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.state = DefaultState(l.newID)
		l.logger.InfoContext(ctx, "no saved auction state, starting fresh", slog.String("key", l.key))
		return nil
	case err != nil:
		return fmt.Errorf("loading auction state: %w", err)
	}

	var st State
	if err := json.Unmarshal(doc.Body, &st); err != nil {
		l.state = DefaultState(l.newID)
		l.state.Version = doc.Version
		l.logger.WarnContext(ctx, "saved auction state is unreadable, starting fresh",
			slog.String("key", l.key),
			slog.Any("error", err),
		)
		return nil
	}
	if st.repair(l.newID) {
		l.logger.WarnContext(ctx, "repaired team list in saved auction state", slog.Int("teams", TeamCount))
	}
	st.Version = doc.Version
	l.state = st

	l.logger.InfoContext(ctx, "auction state loaded",
		slog.Int("players", len(st.PlayersPool)),
		slog.Int("version", st.Version),
	)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

// Available returns the players not on any roster.
func (l *Ledger) Available() []Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Available()
}

// Stats returns the auction progress counters.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Stats()
}

// Draw picks a random player from the available pool.
func (l *Ledger) Draw(ctx context.Context) (Player, error) {
	_, span := l.tracer.Start(ctx, "Ledger.Draw")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	available := l.state.Available()
	if len(available) == 0 {
		return Player{}, ErrNoAvailablePlayers
	}
	p := available[l.picker.Intn(len(available))]
	span.SetAttributes(attribute.String("player.id", p.ID))
	return p, nil
}

// authorize rejects callers without the admin role. Callers hold l.mu.
func (l *Ledger) authorize(ctx context.Context, op string, who auth.Principal) error {
	if who.IsAdmin() {
		return nil
	}
	return l.reject(ctx, op, fmt.Errorf("%w: %s may not %s", ErrUnauthorized, who.Name, op))
}

// reject records a refused operation and returns err unchanged.
func (l *Ledger) reject(ctx context.Context, op string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.SetStatus(codes.Error, err.Error())
	l.metrics.rejected(ctx, op, err)
	l.logger.InfoContext(ctx, "ledger operation rejected",
		slog.String("op", op),
		slog.String("reason", err.Error()),
	)
	return err
}

// commit persists next, publishes it and appends the audit event. If the
// save fails the current state is kept. A save that finds a newer document
// reloads it and rejects the operation with ErrStateChanged. Callers hold l.mu.
func (l *Ledger) commit(ctx context.Context, op string, who auth.Principal, next State, t event.Type, payload any) error {
	expected := l.state.Version
	next.Version = expected + 1

	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding auction state: %w", err)
	}
	err = l.docs.Save(ctx, l.key, body, expected)
	if errors.Is(err, store.ErrConflict) {
		if loadErr := l.load(ctx); loadErr != nil {
			return fmt.Errorf("reloading auction state after conflict: %w", loadErr)
		}
		return l.reject(ctx, op, fmt.Errorf("%w: version %d is now %d, nothing was changed",
			ErrStateChanged, expected, l.state.Version))
	}
	if err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("persisting auction state: %w", err)
	}
	l.state = next
	l.metrics.committed(ctx, op)

	l.record(ctx, who, t, payload)
	return nil
}

// record appends an audit event at the current version. Failures are logged;
// the transition has already been persisted.
func (l *Ledger) record(ctx context.Context, who auth.Principal, t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	evt := event.Event{
		ID:          l.newID(),
		AggregateID: l.key,
		Type:        t,
		Data:        data,
		Version:     l.state.Version,
		Actor:       who.ID,
		CreatedAt:   l.clock.Now().UTC(),
	}
	if err := l.events.Append(ctx, evt); err != nil {
		l.logger.ErrorContext(ctx, "failed to append ledger event",
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
}
