// Package storetest provides an in-memory store.Store for tests.
//
// Find understands top-level equality filters only; operator expressions are
// ignored. Watch returns a ChangeStream that emits whatever the test sends
// with ChangeStream.Send, without evaluating the pipeline.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/leapstack-labs/bridgeport/internal/store"
)

// Call records one store operation.
type Call struct {
	Op         string
	Collection string
	Filter     any
	Pipeline   any
	Options    store.FindOptions
	ID         any
}

// Store is an in-memory store.Store.
type Store struct {
	// Errors returned by the matching operation when set.
	FindErr      error
	AggregateErr error
	WatchErr     error
	PingErr      error
	WriteErr     error
	// CursorErr is reported by cursors after their last document.
	CursorErr error
	// AggregateResults replaces the collection contents for Aggregate.
	AggregateResults []bson.M

	mu      sync.Mutex
	docs    map[string][]bson.M
	calls   []Call
	streams chan *ChangeStream
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		docs:    make(map[string][]bson.M),
		streams: make(chan *ChangeStream, 16),
	}
}

// Insert appends documents to collection.
func (s *Store) Insert(collection string, docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[collection] = append(s.docs[collection], docs...)
}

// Documents returns the documents stored in collection.
func (s *Store) Documents(collection string) []bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bson.M(nil), s.docs[collection]...)
}

// Calls returns the operations performed so far.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Find implements store.Reader.
func (s *Store) Find(_ context.Context, collection string, filter any, opts store.FindOptions) (store.Cursor, error) {
	s.record(Call{Op: "find", Collection: collection, Filter: filter, Options: opts})
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	var out []bson.M
	for _, doc := range s.Documents(collection) {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	if opts.Skip > 0 {
		if int(opts.Skip) >= len(out) {
			out = nil
		} else {
			out = out[opts.Skip:]
		}
	}
	limit := opts.Limit
	if limit < 0 {
		limit = -limit
	}
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return NewCursor(out, s.CursorErr), nil
}

// Aggregate implements store.Reader.
func (s *Store) Aggregate(_ context.Context, collection string, pipeline any) (store.Cursor, error) {
	s.record(Call{Op: "aggregate", Collection: collection, Pipeline: pipeline})
	if s.AggregateErr != nil {
		return nil, s.AggregateErr
	}
	results := s.AggregateResults
	if results == nil {
		results = s.Documents(collection)
	}
	return NewCursor(results, s.CursorErr), nil
}

// Watch implements store.Reader.
func (s *Store) Watch(_ context.Context, collection string, pipeline any) (store.Cursor, error) {
	s.record(Call{Op: "watch", Collection: collection, Pipeline: pipeline})
	if s.WatchErr != nil {
		return nil, s.WatchErr
	}
	cs := NewChangeStream(collection, pipeline)
	s.streams <- cs
	return cs, nil
}

// WaitForStream returns the next change stream opened by Watch.
func (s *Store) WaitForStream(t testing.TB, timeout time.Duration) *ChangeStream {
	t.Helper()
	select {
	case cs := <-s.streams:
		return cs
	case <-time.After(timeout):
		t.Fatalf("no change stream opened within %s", timeout)
		return nil
	}
}

// Ping implements store.Reader.
func (s *Store) Ping(_ context.Context) error {
	s.record(Call{Op: "ping"})
	return s.PingErr
}

// Upsert implements store.Writer.
func (s *Store) Upsert(_ context.Context, collection string, id any, doc any) error {
	s.record(Call{Op: "upsert", Collection: collection, ID: id})
	if s.WriteErr != nil {
		return s.WriteErr
	}

	m, err := toM(doc)
	if err != nil {
		return err
	}
	m["_id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.docs[collection] {
		if reflect.DeepEqual(existing["_id"], id) {
			s.docs[collection][i] = m
			return nil
		}
	}
	s.docs[collection] = append(s.docs[collection], m)
	return nil
}

// Delete implements store.Writer.
func (s *Store) Delete(_ context.Context, collection string, id any) error {
	s.record(Call{Op: "delete", Collection: collection, ID: id})
	if s.WriteErr != nil {
		return s.WriteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.docs[collection]
	for i, existing := range docs {
		if reflect.DeepEqual(existing["_id"], id) {
			s.docs[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func matches(doc bson.M, filter any) bool {
	d, ok := filter.(bson.D)
	if !ok {
		return true
	}
	for _, e := range d {
		if strings.HasPrefix(e.Key, "$") {
			continue
		}
		if _, isDoc := e.Value.(bson.D); isDoc {
			continue
		}
		if fmt.Sprint(doc[e.Key]) != fmt.Sprint(e.Value) {
			return false
		}
	}
	return true
}

func toM(doc any) (bson.M, error) {
	if m, ok := doc.(bson.M); ok {
		out := make(bson.M, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	var m bson.M
	if err := decode(doc, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// decode round-trips doc through BSON the way the MongoDB adapter decodes
// results, with embedded documents as bson.M.
func decode(doc any, val any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.DefaultDocumentM()
	return dec.Decode(val)
}

// Cursor iterates over a fixed result set.
type Cursor struct {
	mu      sync.Mutex
	docs    []bson.M
	pos     int
	current bson.M
	err     error
	tailErr error
	closed  bool
}

// NewCursor returns a cursor over docs that reports tailErr once exhausted.
func NewCursor(docs []bson.M, tailErr error) *Cursor {
	return &Cursor{docs: docs, tailErr: tailErr}
}

// Next implements store.Cursor.
func (c *Cursor) Next(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos >= len(c.docs) {
		c.err = c.tailErr
		return false
	}
	c.current = c.docs[c.pos]
	c.pos++
	return true
}

// Decode implements store.Cursor.
func (c *Cursor) Decode(val any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return errors.New("storetest: no current document")
	}
	return decode(c.current, val)
}

// Err implements store.Cursor.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close implements store.Cursor.
func (c *Cursor) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Cursor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ChangeStream is a store.Cursor fed by the test.
type ChangeStream struct {
	Collection string
	Pipeline   any

	events chan bson.M
	failed chan struct{}
	done   chan struct{}

	mu         sync.Mutex
	current    bson.M
	err        error
	failErr    error
	closeCalls int
	failOnce   sync.Once
	closeOnce  sync.Once
}

// NewChangeStream returns an open change stream.
func NewChangeStream(collection string, pipeline any) *ChangeStream {
	return &ChangeStream{
		Collection: collection,
		Pipeline:   pipeline,
		events:     make(chan bson.M, 64),
		failed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Send delivers an already evaluated event document.
func (cs *ChangeStream) Send(doc bson.M) {
	cs.events <- doc
}

// Fail makes the stream stop with err once pending events are consumed.
func (cs *ChangeStream) Fail(err error) {
	cs.failOnce.Do(func() {
		cs.mu.Lock()
		cs.failErr = err
		cs.mu.Unlock()
		close(cs.failed)
	})
}

// Next implements store.Cursor.
func (cs *ChangeStream) Next(ctx context.Context) bool {
	select {
	case doc := <-cs.events:
		cs.mu.Lock()
		cs.current = doc
		cs.mu.Unlock()
		return true
	default:
	}

	select {
	case doc := <-cs.events:
		cs.mu.Lock()
		cs.current = doc
		cs.mu.Unlock()
		return true
	case <-ctx.Done():
		cs.setErr(ctx.Err())
		return false
	case <-cs.failed:
		cs.mu.Lock()
		cs.err = cs.failErr
		cs.mu.Unlock()
		return false
	case <-cs.done:
		return false
	}
}

func (cs *ChangeStream) setErr(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.err = err
}

// Decode implements store.Cursor.
func (cs *ChangeStream) Decode(val any) error {
	cs.mu.Lock()
	current := cs.current
	cs.mu.Unlock()
	if current == nil {
		return errors.New("storetest: no current event")
	}
	return decode(current, val)
}

// Err implements store.Cursor.
func (cs *ChangeStream) Err() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.err
}

// Close implements store.Cursor.
func (cs *ChangeStream) Close(_ context.Context) error {
	cs.mu.Lock()
	cs.closeCalls++
	cs.mu.Unlock()
	cs.closeOnce.Do(func() { close(cs.done) })
	return nil
}

// CloseCalls returns how many times Close was called.
func (cs *ChangeStream) CloseCalls() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.closeCalls
}

// Done is closed once the stream has been closed.
func (cs *ChangeStream) Done() <-chan struct{} { return cs.done }
