// Package service materialises validated resources into live simulator
// objects and renders them, either as a bounded projection or as an opaque
// binary snapshot.
//
// Services never translate errors into transport statuses. Anything the
// simulator or the projection raises is wrapped in ErrSimulation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/observability"
	"github.com/signalsfoundry/rocketflight/internal/projection"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrSimulation marks failures raised while building, running or rendering
// a simulator object.
var ErrSimulation = errors.New("simulation failed")

// Observer records simulation outcomes.
type Observer interface {
	ObserveSimulation(resource string, d time.Duration, err error)
}

// Options configures the services.
type Options struct {
	// Fetcher retrieves atmospheric model files. Defaults to an HTTP fetcher.
	Fetcher  core.SourceFetcher
	Observer Observer
}

// Services bundles the composition services of every resource.
type Services struct {
	Environments *EnvironmentService
	Motors       *MotorService
	Rockets      *RocketService
	Flights      *FlightService
}

// New wires the services so that rockets compose motors and flights compose
// environments and rockets.
func New(opts Options) *Services {
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(nil)
	}
	envs := &EnvironmentService{fetcher: opts.Fetcher, run: newRunner("environment", projection.EnvironmentView, opts.Observer)}
	motors := &MotorService{run: newRunner("motor", projection.MotorView, opts.Observer)}
	rockets := &RocketService{motors: motors, run: newRunner("rocket", projection.RocketView, opts.Observer)}
	flights := &FlightService{
		environments: envs,
		rockets:      rockets,
		run:          newRunner("flight", projection.FlightView, opts.Observer),
	}
	return &Services{Environments: envs, Motors: motors, Rockets: rockets, Flights: flights}
}

// runner renders live objects of one resource kind.
type runner struct {
	resource string
	view     projection.View
	observer Observer
}

func newRunner(resource string, view projection.View, observer Observer) runner {
	return runner{resource: resource, view: view, observer: observer}
}

// simulate builds the object and projects it.
func (r runner) simulate(ctx context.Context, build func(context.Context) (core.Object, error)) (out map[string]any, err error) {
	ctx, span := r.span(ctx, "simulate")
	began := time.Now()
	defer func() { r.finish(ctx, span, began, err) }()

	obj, err := r.build(ctx, build)
	if err != nil {
		return nil, err
	}
	err = guard(r.resource, func() error {
		out, err = projection.Project(obj, r.view)
		return err
	})
	return out, err
}

// snapshot builds the object and serialises it in full.
func (r runner) snapshot(ctx context.Context, build func(context.Context) (core.Object, error)) (blob []byte, err error) {
	ctx, span := r.span(ctx, "snapshot")
	began := time.Now()
	defer func() { r.finish(ctx, span, began, err) }()

	obj, err := r.build(ctx, build)
	if err != nil {
		return nil, err
	}
	err = guard(r.resource, func() error {
		blob, err = Snapshot(obj, r.view.Bounds)
		return err
	})
	if err == nil {
		span.SetAttributes(attribute.Int("snapshot.bytes", len(blob)))
	}
	return blob, err
}

func (r runner) build(ctx context.Context, build func(context.Context) (core.Object, error)) (obj core.Object, err error) {
	err = guard(r.resource, func() error {
		obj, err = build(ctx)
		return err
	})
	return obj, err
}

func (r runner) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, "service."+r.resource+"."+op,
		trace.WithAttributes(attribute.String("resource", r.resource)),
	)
}

func (r runner) finish(ctx context.Context, span trace.Span, began time.Time, err error) {
	elapsed := time.Since(began)
	if r.observer != nil {
		r.observer.ObserveSimulation(r.resource, elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.FromContext(ctx).Warn(ctx, "simulation failed",
			logging.String("resource", r.resource),
			logging.Duration("elapsed", elapsed),
			logging.Err(err),
		)
	}
	span.End()
}

// guard runs fn, converting panics and errors into ErrSimulation.
func guard(resource string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: %v", ErrSimulation, resource, p)
		}
	}()
	if err = fn(); err != nil && !errors.Is(err, ErrSimulation) {
		err = fmt.Errorf("%w: %s: %w", ErrSimulation, resource, err)
	}
	return err
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
