// Package memory is an in-process Store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/signalsfoundry/rocketflight/internal/store"
)

type collection struct {
	docs  map[string]store.Document
	order []string
}

// Store keeps documents in maps guarded by a single RWMutex. Documents are
// deep-copied on the way in and out.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: map[string]store.Document{}}
		s.collections[name] = c
	}
	return c
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if s.closed {
		return fmt.Errorf("%w: store closed", store.ErrUnavailable)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, name string, doc store.Document) (string, error) {
	clean, _ := store.Strip(doc)
	cp, err := store.Clone(clean)
	if err != nil {
		return "", fmt.Errorf("%w: encode document: %v", store.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	id := uuid.NewString()
	c := s.coll(name)
	c.docs[id] = cp
	c.order = append(c.order, id)
	return id, nil
}

func (s *Store) Replace(ctx context.Context, name, id string, doc store.Document) error {
	clean, _ := store.Strip(doc)
	cp, err := store.Clone(clean)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", store.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	c := s.coll(name)
	if _, ok := c.docs[id]; !ok {
		return store.ErrNotFound
	}
	c.docs[id] = cp
	return nil
}

func (s *Store) Get(ctx context.Context, name, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return withID(doc, id)
}

func (s *Store) Delete(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return nil
}

// Find takes a snapshot of the matching documents under the read lock and
// yields them after releasing it.
func (s *Store) Find(ctx context.Context, name string, filter store.Filter) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		matches, err := s.snapshot(ctx, name, filter)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, doc := range matches {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (s *Store) snapshot(ctx context.Context, name string, filter store.Filter) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	var out []store.Document
	for _, id := range c.order {
		doc := c.docs[id]
		if !filter.Matches(doc) {
			continue
		}
		cp, err := withID(doc, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, name string, skip, limit int) (store.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return store.Page{}, err
	}
	c, ok := s.collections[name]
	if !ok {
		return store.Page{}, nil
	}
	lo, hi := store.Window(len(c.order), skip, limit)
	page := store.Page{Total: int64(len(c.order)), Items: make([]store.Document, 0, hi-lo)}
	for _, id := range c.order[lo:hi] {
		cp, err := withID(c.docs[id], id)
		if err != nil {
			return store.Page{}, err
		}
		page.Items = append(page.Items, cp)
	}
	return page, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx)
}

// Close marks the store closed; later operations fail with
// store.ErrUnavailable.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func withID(doc store.Document, id string) (store.Document, error) {
	cp, err := store.Clone(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", store.ErrUnavailable, err)
	}
	cp[store.IDField] = id
	return cp, nil
}
