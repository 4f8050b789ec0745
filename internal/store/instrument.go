package store

import (
	"context"
	"iter"
)

// Observer records the outcome of a store operation.
type Observer interface {
	ObserveStoreOp(collection, op string, err error)
}

// Instrument wraps s so that every operation is reported to o.
func Instrument(s Store, o Observer) Store {
	if o == nil {
		return s
	}
	return &instrumented{next: s, obs: o}
}

type instrumented struct {
	next Store
	obs  Observer
}

func (i *instrumented) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id, err := i.next.Insert(ctx, collection, doc)
	i.obs.ObserveStoreOp(collection, "insert", err)
	return id, err
}

func (i *instrumented) Replace(ctx context.Context, collection, id string, doc Document) error {
	err := i.next.Replace(ctx, collection, id, doc)
	i.obs.ObserveStoreOp(collection, "replace", err)
	return err
}

func (i *instrumented) Get(ctx context.Context, collection, id string) (Document, error) {
	doc, err := i.next.Get(ctx, collection, id)
	i.obs.ObserveStoreOp(collection, "get", err)
	return doc, err
}

func (i *instrumented) Delete(ctx context.Context, collection, id string) error {
	err := i.next.Delete(ctx, collection, id)
	i.obs.ObserveStoreOp(collection, "delete", err)
	return err
}

func (i *instrumented) Find(ctx context.Context, collection string, filter Filter) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		var failed error
		defer func() { i.obs.ObserveStoreOp(collection, "find", failed) }()
		for doc, err := range i.next.Find(ctx, collection, filter) {
			if err != nil {
				failed = err
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}

func (i *instrumented) List(ctx context.Context, collection string, skip, limit int) (Page, error) {
	page, err := i.next.List(ctx, collection, skip, limit)
	i.obs.ObserveStoreOp(collection, "list", err)
	return page, err
}

func (i *instrumented) Ping(ctx context.Context) error { return i.next.Ping(ctx) }

func (i *instrumented) Close(ctx context.Context) error { return i.next.Close(ctx) }
