// Package staging reads, watches and sweeps the document store that sensor
// readings land in before they are normalized.
package staging

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

const connectMaxElapsed = 30 * time.Second

// Store wraps one staging collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client for uri and pings it until the server answers or
// the retry window closes.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx, readpref.Primary())
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectMaxElapsed),
	)
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Documents enumerates the collection lazily in natural order. The sequence
// stops after the first error it yields.
func (s *Store) Documents(ctx context.Context) iter.Seq2[models.Document, error] {
	return func(yield func(models.Document, error) bool) {
		cur, err := s.coll.Find(ctx, bson.D{})
		if err != nil {
			yield(models.Document{}, fmt.Errorf("find staging documents: %w", err))
			return
		}
		for doc, err := range iterate(ctx, cur) {
			if !yield(doc, err) {
				return
			}
		}
	}
}

// DeleteMany removes every document whose _id is in ids.
func (s *Store) DeleteMany(ctx context.Context, ids []any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return 0, fmt.Errorf("delete staging documents: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteOne removes the document with the given _id. It reports whether a
// document was deleted.
func (s *Store) DeleteOne(ctx context.Context, id any) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete staging document: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// WatchInserts opens a change stream restricted to inserts.
func (s *Store) WatchInserts(ctx context.Context) (Feed, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
	cs, err := s.coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}
	return newSubscription(ctx, cs), nil
}

// cursor is the subset of *mongo.Cursor used for enumeration.
type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

func iterate(ctx context.Context, cur cursor) iter.Seq2[models.Document, error] {
	return func(yield func(models.Document, error) bool) {
		defer func() { _ = cur.Close(context.WithoutCancel(ctx)) }()

		for cur.Next(ctx) {
			var raw bson.D
			if err := cur.Decode(&raw); err != nil {
				yield(models.Document{}, fmt.Errorf("decode staging document: %w", err))
				return
			}
			if !yield(DocumentFromBSON(raw), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(models.Document{}, fmt.Errorf("iterate staging documents: %w", err))
		}
	}
}
