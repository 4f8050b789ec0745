// Package repository persists resources in the document store, one
// collection per resource schema.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/observability"
	"github.com/signalsfoundry/rocketflight/internal/store"
	"github.com/signalsfoundry/rocketflight/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repository stores resources of one schema.
type Repository[T model.Resource] struct {
	schema model.Schema[T]
	conn   *Connection
}

// New returns a repository for schema over conn.
func New[T model.Resource](conn *Connection, schema model.Schema[T]) *Repository[T] {
	return &Repository[T]{schema: schema, conn: conn}
}

// Collection is the store collection of the repository.
func (r *Repository[T]) Collection() string { return r.schema.Name }

func (r *Repository[T]) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, "repository."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.collection", r.schema.Name),
			attribute.String("db.operation", op),
		),
	)
}

func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Insert stores v and attaches the new identifier to it.
func (r *Repository[T]) Insert(ctx context.Context, v T) (id string, err error) {
	ctx, span := r.span(ctx, "insert")
	defer func() { finish(span, err) }()

	doc, err := toDocument(v)
	if err != nil {
		return "", err
	}
	s, err := r.conn.Acquire(ctx)
	if err != nil {
		return "", err
	}
	id, err = s.Insert(ctx, r.schema.Name, doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", r.schema.Name, err)
	}
	v.SetID(id)
	return id, nil
}

// UpdateByID replaces the stored resource. It returns model.ErrNotFound for
// unknown identifiers.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, v T) (err error) {
	ctx, span := r.span(ctx, "update")
	span.SetAttributes(attribute.String("resource.id", id))
	defer func() { finish(span, err) }()

	doc, err := toDocument(v)
	if err != nil {
		return err
	}
	s, err := r.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := s.Replace(ctx, r.schema.Name, id, doc); err != nil {
		return r.notFound(id, err)
	}
	v.SetID(id)
	return nil
}

// FindByID loads a resource. A missing document, or one that no longer
// validates, is reported as model.ErrNotFound.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (v T, err error) {
	ctx, span := r.span(ctx, "find")
	span.SetAttributes(attribute.String("resource.id", id))
	defer func() { finish(span, err) }()

	s, err := r.conn.Acquire(ctx)
	if err != nil {
		return v, err
	}
	doc, err := s.Get(ctx, r.schema.Name, id)
	if err != nil {
		return v, r.notFound(id, err)
	}
	v, ok := r.fromDocument(ctx, doc)
	if !ok {
		return v, fmt.Errorf("%w: %s %s", model.ErrNotFound, r.schema.Name, id)
	}
	return v, nil
}

// DeleteByID removes a resource. Deleting an unknown identifier succeeds.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (err error) {
	ctx, span := r.span(ctx, "delete")
	span.SetAttributes(attribute.String("resource.id", id))
	defer func() { finish(span, err) }()

	s, err := r.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, r.schema.Name, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", r.schema.Name, id, err)
	}
	return nil
}

// FindByQuery lazily yields the resources matching filter. Documents that
// fail validation are skipped.
func (r *Repository[T]) FindByQuery(ctx context.Context, filter store.Filter) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		s, err := r.conn.Acquire(ctx)
		if err != nil {
			yield(zero, err)
			return
		}
		for doc, err := range s.Find(ctx, r.schema.Name, filter) {
			if err != nil {
				yield(zero, fmt.Errorf("find %s: %w", r.schema.Name, err))
				return
			}
			v, ok := r.fromDocument(ctx, doc)
			if !ok {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Page is one window of a collection.
type Page[T model.Resource] struct {
	Total int64
	Items []T
}

// FindAllPaginated returns up to limit resources after skipping skip, and
// the collection size. Invalid documents are left out of the window.
func (r *Repository[T]) FindAllPaginated(ctx context.Context, skip, limit int) (page Page[T], err error) {
	ctx, span := r.span(ctx, "list")
	span.SetAttributes(attribute.Int("page.skip", skip), attribute.Int("page.limit", limit))
	defer func() { finish(span, err) }()

	s, err := r.conn.Acquire(ctx)
	if err != nil {
		return page, err
	}
	raw, err := s.List(ctx, r.schema.Name, skip, limit)
	if err != nil {
		return page, fmt.Errorf("list %s: %w", r.schema.Name, err)
	}
	page.Total = raw.Total
	page.Items = make([]T, 0, len(raw.Items))
	for _, doc := range raw.Items {
		if v, ok := r.fromDocument(ctx, doc); ok {
			page.Items = append(page.Items, v)
		}
	}
	return page, nil
}

func (r *Repository[T]) notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, r.schema.Name, id)
	}
	return fmt.Errorf("%s %s: %w", r.schema.Name, id, err)
}

// fromDocument strips the store identifier, decodes and re-validates the
// body, and reattaches the identifier.
func (r *Repository[T]) fromDocument(ctx context.Context, doc store.Document) (T, bool) {
	var zero T
	body, id := store.Strip(doc)
	raw, err := json.Marshal(body)
	if err == nil {
		var v T
		if v, err = r.schema.Decode(raw); err == nil {
			if err = v.Validate(); err == nil {
				v.SetID(id)
				return v, true
			}
		}
	}
	logging.FromContext(ctx).Warn(ctx, "stored document failed validation; treating as absent",
		logging.String("collection", r.schema.Name),
		logging.String("id", id),
		logging.Err(err),
	)
	return zero, false
}

// toDocument renders v as a store document. The identifier is never part
// of the body.
func toDocument(v model.Resource) (store.Document, error) {
	view, err := model.View(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode resource: %v", model.ErrValidation, err)
	}
	return store.Document(view), nil
}
