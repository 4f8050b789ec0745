package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/repository"
	"github.com/signalsfoundry/rocketflight/model"
)

// Pagination bounds of list operations.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Simulator renders live simulator objects of one resource type.
type Simulator[T model.Resource] interface {
	Simulate(ctx context.Context, v T) (map[string]any, error)
	Snapshot(ctx context.Context, v T) ([]byte, error)
}

// Binding ties a schema to its repository and, optionally, its simulator.
type Binding[T model.Resource] struct {
	Schema    model.Schema[T]
	Repo      *repository.Repository[T]
	Simulator Simulator[T]
}

type defaulter interface {
	ApplyDefaults(now time.Time)
}

// Register installs the operations of b in e.
func Register[T model.Resource](e *Engine, b Binding[T]) {
	c := crud[T]{Binding: b, clock: e.clock.Now}
	name := b.Schema.Name
	collection := "/" + b.Schema.Plural
	item := collection + "/:id"
	add := func(op, method, path string, h Handler) {
		e.add(Operation{Name: op, Resource: name, Method: method, Path: path, Handle: h})
	}

	for _, verb := range b.Schema.Methods {
		switch verb {
		case model.VerbPost:
			add("post_"+name, http.MethodPost, collection, c.postModel)
		case model.VerbGet:
			add("get_"+name+"_by_id", http.MethodGet, item, c.getModel)
		case model.VerbPut:
			add("put_"+name+"_by_id", http.MethodPut, item, c.putModel)
		case model.VerbDelete:
			add("delete_"+name+"_by_id", http.MethodDelete, item, c.deleteModel)
		}
	}
	if b.Schema.Supports(model.VerbGet) {
		add("list_"+b.Schema.Plural, http.MethodGet, collection, c.listModels)
	}
	if b.Simulator != nil {
		add("simulate_"+name, http.MethodGet, item+"/simulate", c.simulate)
		add("get_rocketpy_"+name, http.MethodGet, item+"/rocketpy", c.snapshot)
	}
}

// crud holds the generic handlers of one schema.
type crud[T model.Resource] struct {
	Binding[T]
	clock func() time.Time
}

func (c crud[T]) postModel(ctx context.Context, req Request) (Response, error) {
	v, err := decodeResource(c.Schema, req.Body, c.clock())
	if err != nil {
		return Response{}, err
	}
	id, err := c.Repo.Insert(ctx, v)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusCreated, Body: c.Schema.Created(id)}, nil
}

func (c crud[T]) getModel(ctx context.Context, req Request) (Response, error) {
	v, err := c.Repo.FindByID(ctx, req.ID)
	if err != nil {
		return Response{}, err
	}
	body, err := c.Schema.Retrieved(v)
	if err != nil {
		return Response{}, fmt.Errorf("render %s: %w", c.Schema.Name, err)
	}
	return Response{Status: http.StatusOK, Body: body}, nil
}

func (c crud[T]) putModel(ctx context.Context, req Request) (Response, error) {
	v, err := decodeResource(c.Schema, req.Body, c.clock())
	if err != nil {
		return Response{}, err
	}
	if err := c.Repo.UpdateByID(ctx, req.ID, v); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusNoContent}, nil
}

func (c crud[T]) deleteModel(ctx context.Context, req Request) (Response, error) {
	if err := c.Repo.DeleteByID(ctx, req.ID); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusNoContent}, nil
}

func (c crud[T]) listModels(ctx context.Context, req Request) (Response, error) {
	skip, limit, err := ParsePage(req.Query)
	if err != nil {
		return Response{}, err
	}
	page, err := c.Repo.FindAllPaginated(ctx, skip, limit)
	if err != nil {
		return Response{}, err
	}
	items := make([]map[string]any, 0, len(page.Items))
	for _, v := range page.Items {
		view, err := model.View(v)
		if err != nil {
			return Response{}, fmt.Errorf("render %s: %w", c.Schema.Name, err)
		}
		view[c.Schema.IDKey()] = v.ID()
		items = append(items, view)
	}
	return Response{Status: http.StatusOK, Body: map[string]any{
		"items": items,
		"total": page.Total,
		"skip":  skip,
		"limit": limit,
	}}, nil
}

func (c crud[T]) simulate(ctx context.Context, req Request) (Response, error) {
	v, err := c.Repo.FindByID(ctx, req.ID)
	if err != nil {
		return Response{}, err
	}
	out, err := c.Simulator.Simulate(ctx, v)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: out}, nil
}

func (c crud[T]) snapshot(ctx context.Context, req Request) (Response, error) {
	v, err := c.Repo.FindByID(ctx, req.ID)
	if err != nil {
		return Response{}, err
	}
	blob, err := c.Simulator.Snapshot(ctx, v)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Status:   http.StatusNonAuthoritativeInfo,
		Blob:     blob,
		Filename: fmt.Sprintf("rocketpy_%s_%s.bin", c.Schema.Name, req.ID),
	}, nil
}

// decodeResource parses body, stamps clock-dependent defaults and validates.
func decodeResource[T model.Resource](schema model.Schema[T], body []byte, now time.Time) (T, error) {
	v, err := schema.Decode(body)
	if err != nil {
		return v, err
	}
	if d, ok := any(v).(defaulter); ok {
		d.ApplyDefaults(now)
	}
	if err := v.Validate(); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// ParsePage reads skip (default 0, at least 0) and limit (default 20,
// 1..100) from q.
func ParsePage(q url.Values) (skip, limit int, err error) {
	skip, limit = 0, DefaultLimit
	if s := q.Get("skip"); s != "" {
		if skip, err = strconv.Atoi(s); err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("%w: skip must be a non-negative integer", model.ErrValidation)
		}
	}
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 || limit > MaxLimit {
			return 0, 0, fmt.Errorf("%w: limit must be an integer in [1, %d]", model.ErrValidation, MaxLimit)
		}
	}
	return skip, limit, nil
}
