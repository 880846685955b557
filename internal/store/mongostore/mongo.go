// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/leapstack-labs/bridgeport/internal/store"
)

const defaultConnectTimeout = 10 * time.Second

// Config holds connection settings.
type Config struct {
	URI            string
	Database       string
	AppName        string
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Store is a MongoDB backed store.Store. It is safe for concurrent use.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// ClientOptions returns the client options used by Open. Embedded documents
// decode as bson.M so results serialize as plain JSON objects.
func ClientOptions(cfg Config) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	return opts
}

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	client, err := mongo.Connect(ClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return New(client, cfg.Database, cfg.Logger), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client: client,
		db:     client.Database(database),
		logger: logger.With("database", database),
	}
}

// Find implements store.Reader.
func (s *Store) Find(ctx context.Context, collection string, filter any, opts store.FindOptions) (store.Cursor, error) {
	findOpts := options.Find()
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}
	if opts.Skip != 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit != 0 {
		findOpts.SetLimit(opts.Limit)
	}

	s.logger.Debug("find", "collection", collection, "skip", opts.Skip, "limit", opts.Limit)
	cur, err := s.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// Aggregate implements store.Reader.
func (s *Store) Aggregate(ctx context.Context, collection string, pipeline any) (store.Cursor, error) {
	s.logger.Debug("aggregate", "collection", collection)
	cur, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// Watch implements store.Reader. Update events carry the current version of
// the document.
func (s *Store) Watch(ctx context.Context, collection string, pipeline any) (store.Cursor, error) {
	s.logger.Debug("watch", "collection", collection)
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// Ping implements store.Reader.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Upsert implements store.Writer.
func (s *Store) Upsert(ctx context.Context, collection string, id any, doc any) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

// Delete implements store.Writer.
func (s *Store) Delete(ctx context.Context, collection string, id any) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	if res.DeletedCount == 0 {
		s.logger.Debug("delete matched no document", "collection", collection, "id", id)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
