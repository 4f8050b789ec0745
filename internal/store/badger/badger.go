// Package badger is an embedded Store on BadgerDB. Documents are JSON
// values under "<collection>/<id>" keys; ids are time-ordered UUIDs so a
// prefix scan yields insertion order.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/store"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is
	// true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger logging.Logger

	// GCInterval is how often to run value log garbage collection. Zero
	// disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts logging.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	log logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed store.Store.
type Store struct {
	db   *badger.DB
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: badger path is required for a persistent database", store.ErrUnavailable)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create database directory %s: %v", store.ErrUnavailable, cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database: %v", store.ErrUnavailable, err)
	}
	s := &Store{db: db, stop: make(chan struct{})}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.wg.Add(1)
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(every time.Duration, ratio float64) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// Rewrite until nothing is left to reclaim.
			for s.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

func key(collection, id string) []byte { return []byte(collection + "/" + id) }

func prefix(collection string) []byte { return []byte(collection + "/") }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}

func encode(doc store.Document) ([]byte, error) {
	clean, _ := store.Strip(doc)
	return json.Marshal(clean)
}

func decode(raw []byte, id string) (store.Document, error) {
	doc := store.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc[store.IDField] = id
	return doc, nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc store.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("insert", err)
	}
	raw, err := encode(doc)
	if err != nil {
		return "", unavailable("encode document", err)
	}
	u, err := uuid.NewV7()
	if err != nil {
		return "", unavailable("generate id", err)
	}
	id := u.String()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(collection, id), raw)
	})
	if err != nil {
		return "", unavailable("insert", err)
	}
	return id, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc store.Document) error {
	if err := ctx.Err(); err != nil {
		return unavailable("replace", err)
	}
	raw, err := encode(doc)
	if err != nil {
		return unavailable("encode document", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		k := key(collection, id)
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Set(k, raw)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return unavailable("replace", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", err)
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	doc, err := decode(raw, id)
	if err != nil {
		return nil, unavailable("decode document", err)
	}
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(collection, id))
	})
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

var errStopped = errors.New("iteration stopped")

// scan walks the collection in key order inside one read transaction.
func (s *Store) scan(collection string, fn func(id string, raw []byte) error) error {
	p := prefix(collection)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(p):])
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(id, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Find(ctx context.Context, collection string, filter store.Filter) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		err := s.scan(collection, func(id string, raw []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := decode(raw, id)
			if err != nil {
				return err
			}
			if !filter.Matches(doc) {
				return nil
			}
			if !yield(doc, nil) {
				return errStopped
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopped) {
			yield(nil, unavailable("find", err))
		}
	}
}

func (s *Store) List(ctx context.Context, collection string, skip, limit int) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, unavailable("list", err)
	}
	var page store.Page
	var pos int64
	err := s.scan(collection, func(id string, raw []byte) error {
		pos++
		if pos <= int64(skip) || (limit >= 0 && len(page.Items) >= limit) {
			return nil
		}
		doc, err := decode(raw, id)
		if err != nil {
			return err
		}
		page.Items = append(page.Items, doc)
		return nil
	})
	if err != nil {
		return store.Page{}, unavailable("list", err)
	}
	page.Total = pos
	return page, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable("ping", err)
	}
	if s.db.IsClosed() {
		return unavailable("ping", errors.New("database closed"))
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close(context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
