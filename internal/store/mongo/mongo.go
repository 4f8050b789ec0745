// Package mongo is the production Store on MongoDB. Identifiers are the hex
// form of the documents' ObjectIDs.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MinTimeout is the floor applied to connect and server-selection timeouts.
const MinTimeout = 30 * time.Second

// Config describes the client.
type Config struct {
	URI      string
	Database string
	// ConnectTimeout bounds both dialing and server selection.
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects and pings the primary.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: mongodb connection string is empty", store.ErrUnavailable)
	}
	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, unavailable("connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("ping", err)
	}
	return newStore(client, cfg.Database), nil
}

// clientOptions applies the URI and the timeouts, each at least MinTimeout.
func clientOptions(cfg Config) *options.ClientOptions {
	timeout := max(cfg.ConnectTimeout, MinTimeout)
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if cfg.IdleTimeout > 0 {
		opts.SetMaxConnIdleTime(cfg.IdleTimeout)
	}
	return opts
}

func newStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}

func (s *Store) Insert(ctx context.Context, collection string, doc store.Document) (string, error) {
	clean, _ := store.Strip(doc)
	res, err := s.db.Collection(collection).InsertOne(ctx, bson.M(clean))
	if err != nil {
		return "", unavailable("insert", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", unavailable("insert", fmt.Errorf("unexpected id type %T", res.InsertedID))
	}
	return oid.Hex(), nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc store.Document) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	clean, _ := store.Strip(doc)
	res, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": oid}, bson.M(clean))
	if err != nil {
		return unavailable("replace", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var raw bson.M
	err = s.db.Collection(collection).FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return document(raw), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, collection string, filter store.Filter) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		q, err := query(filter)
		if err != nil {
			return
		}
		cur, err := s.db.Collection(collection).Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			yield(nil, unavailable("find", err))
			return
		}
		defer cur.Close(context.Background())
		for cur.Next(ctx) {
			var raw bson.M
			if err := cur.Decode(&raw); err != nil {
				yield(nil, unavailable("decode document", err))
				return
			}
			if !yield(document(raw), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, unavailable("find", err))
		}
	}
}

func (s *Store) List(ctx context.Context, collection string, skip, limit int) (store.Page, error) {
	coll := s.db.Collection(collection)
	total, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return store.Page{}, unavailable("count", err)
	}
	page := store.Page{Total: total}
	if limit == 0 {
		return page, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(max(skip, 0)))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return store.Page{}, unavailable("list", err)
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return store.Page{}, unavailable("list", err)
	}
	page.Items = make([]store.Document, 0, len(raws))
	for _, raw := range raws {
		page.Items = append(page.Items, document(raw))
	}
	return page, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// query converts a filter, translating an identifier lookup to its
// ObjectID. An unparsable identifier matches nothing.
func query(filter store.Filter) (bson.M, error) {
	q := bson.M{}
	for k, v := range filter {
		if k == store.IDField {
			hex, _ := v.(string)
			oid, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				return nil, err
			}
			q[k] = oid
			continue
		}
		q[k] = v
	}
	return q, nil
}

// document converts driver values to plain Go values, with the ObjectID
// rendered as hex.
func document(raw bson.M) store.Document {
	out := make(store.Document, len(raw))
	for k, v := range raw {
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case primitive.M:
		return map[string]any(document(bson.M(t)))
	case map[string]any:
		return map[string]any(document(bson.M(t)))
	}
	return v
}
