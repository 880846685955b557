// Package store defines the document store port used by the reader and the
// ledger transformer.
//
// The MongoDB implementation lives in store/mongostore; store/storetest
// provides an in-memory fake for tests.
package store

import (
	"context"
)

// Cursor iterates over query results or change stream events.
// *mongo.Cursor and *mongo.ChangeStream both satisfy it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// FindOptions modify a find. Nil documents and zero numbers are not applied.
type FindOptions struct {
	Sort       any
	Projection any
	Skip       int64
	Limit      int64
}

// Reader is the read side of the store.
type Reader interface {
	// Find runs filter against collection.
	Find(ctx context.Context, collection string, filter any, opts FindOptions) (Cursor, error)
	// Aggregate runs pipeline against collection.
	Aggregate(ctx context.Context, collection string, pipeline any) (Cursor, error)
	// Watch opens a change stream on collection, evaluated through pipeline.
	Watch(ctx context.Context, collection string, pipeline any) (Cursor, error)
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// Writer is the write side of the store.
type Writer interface {
	// Upsert stores doc under id, replacing any existing document.
	Upsert(ctx context.Context, collection string, id any, doc any) error
	// Delete removes the document stored under id. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, collection string, id any) error
}

// Store is a full store connection.
type Store interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
