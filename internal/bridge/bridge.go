// Package bridge runs validated queries against the document store.
//
// Batch queries become a find or an aggregate and yield a cursor. Live
// queries become a change stream over the events collection whose documents
// are restored to their original identifiers before they are handed out.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/leapstack-labs/bridgeport/internal/store"
	"github.com/leapstack-labs/bridgeport/pkg/query"
)

// DefaultEventsCollection is the collection live queries watch.
const DefaultEventsCollection = "bridgeport_events"

// ErrExecution is matched by every store failure returned from the bridge.
var ErrExecution = errors.New("execution failed")

// ExecutionError is a store failure. Its message is the store's message.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is reports ErrExecution as a match.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// Config holds the bridge dependencies.
type Config struct {
	Store            store.Reader
	EventsCollection string
	Logger           *slog.Logger
}

// Bridge executes queries. It is safe for concurrent use.
type Bridge struct {
	store  store.Reader
	events string
	logger *slog.Logger
}

// New creates a Bridge.
func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	events := cfg.EventsCollection
	if events == "" {
		events = DefaultEventsCollection
	}
	return &Bridge{store: cfg.Store, events: events, logger: logger}
}

// EventsCollection returns the collection live queries watch.
func (b *Bridge) EventsCollection() string { return b.events }

// Execute runs a batch query and returns its cursor. The caller must close it.
func (b *Bridge) Execute(ctx context.Context, q *query.Query) (store.Cursor, error) {
	if q.Mode() != query.ModeBatch {
		return nil, &ExecutionError{Op: "execute", Err: errors.New("query was not validated for batch execution")}
	}

	plan := q.Plan()
	if plan.Aggregate {
		b.logger.Debug("running aggregate", "collection", plan.Collection, "stages", len(plan.Pipeline))
		cur, err := b.store.Aggregate(ctx, plan.Collection, plan.Pipeline)
		if err != nil {
			return nil, &ExecutionError{Op: "aggregate", Err: err}
		}
		return cur, nil
	}

	opts := store.FindOptions{Skip: plan.Skip, Limit: plan.Limit}
	if plan.Sort != nil {
		opts.Sort = plan.Sort
	}
	if plan.Project != nil {
		opts.Projection = plan.Project
	}

	b.logger.Debug("running find", "collection", plan.Collection, "skip", plan.Skip, "limit", plan.Limit)
	cur, err := b.store.Find(ctx, plan.Collection, plan.Filter, opts)
	if err != nil {
		return nil, &ExecutionError{Op: "find", Err: err}
	}
	return cur, nil
}

// Subscribe opens a change stream for a live query.
func (b *Bridge) Subscribe(ctx context.Context, q *query.Query) (*Subscription, error) {
	if q.Mode() != query.ModeSubscription {
		return nil, &ExecutionError{Op: "watch", Err: errors.New("query was not validated for subscriptions")}
	}

	id := uuid.NewString()
	pipeline := q.SubscriptionPipeline()
	cur, err := b.store.Watch(ctx, b.events, pipeline)
	if err != nil {
		return nil, &ExecutionError{Op: "watch", Err: err}
	}

	logger := b.logger.With("subscription", id)
	logger.Debug("change stream opened", "collection", b.events, "stages", len(pipeline))
	return &Subscription{id: id, cursor: cur, logger: logger}, nil
}

// Subscription is an open change stream. Next must not be called
// concurrently; Close may be called from any goroutine.
type Subscription struct {
	id     string
	cursor store.Cursor
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// Next blocks until the next event and returns it with its original _id
// restored. It returns false when ctx is done, the subscription is closed, or
// the stream failed; Err tells them apart.
func (s *Subscription) Next(ctx context.Context) (bson.M, bool) {
	for s.cursor.Next(ctx) {
		var event bson.M
		if err := s.cursor.Decode(&event); err != nil {
			s.logger.Warn("skipping undecodable change event", "error", err)
			continue
		}
		return query.RestoreIdentifier(event), true
	}
	return nil, false
}

// Err returns the error that stopped Next, if any. Cancellation of the
// context passed to Next is not reported.
func (s *Subscription) Err() error {
	err := s.cursor.Err()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return &ExecutionError{Op: "watch", Err: err}
}

// Close closes the change stream. Only the first call reaches the store.
func (s *Subscription) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.cursor.Close(ctx)
		s.logger.Debug("change stream closed")
	})
	return s.closeErr
}
