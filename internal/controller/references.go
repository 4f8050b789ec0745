package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/repository"
	"github.com/signalsfoundry/rocketflight/model"
)

// RegisterReferences installs the composition operations that build flights
// and rockets from stored resources. Composed resources embed full copies of
// their references, so later changes to the referenced resources do not
// reach them.
func RegisterReferences(e *Engine, repos *repository.Repositories) {
	r := references{repos: repos, clock: e.clock.Now}
	add := func(name, resource, method, path string, h Handler) {
		e.add(Operation{Name: name, Resource: resource, Method: method, Path: path, Handle: h})
	}
	add("post_flight_from_references", "flight", http.MethodPost, "/flights/from-references", r.postFlight)
	add("put_flight_from_references", "flight", http.MethodPut, "/flights/:id/from-references", r.putFlight)
	add("put_flight_environment", "flight", http.MethodPut, "/flights/:id/environment", r.putFlightEnvironment)
	add("put_flight_rocket", "flight", http.MethodPut, "/flights/:id/rocket", r.putFlightRocket)
	add("post_rocket_from_motor_reference", "rocket", http.MethodPost, "/rockets/from-motor-reference", r.postRocket)
	add("put_rocket_from_motor_reference", "rocket", http.MethodPut, "/rockets/:id/from-motor-reference", r.putRocket)
}

type references struct {
	repos *repository.Repositories
	clock func() time.Time
}

func decodeReference(body []byte, v interface{ Check() error }) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: references body: %v", model.ErrValidation, err)
	}
	return v.Check()
}

// flight composes a flight from the references in body.
func (r references) flight(ctx context.Context, body []byte) (*model.Flight, error) {
	var refs model.FlightReferences
	if err := decodeReference(body, &refs); err != nil {
		return nil, err
	}
	env, err := r.repos.ReadEnvironmentByID(ctx, refs.EnvironmentID)
	if err != nil {
		return nil, err
	}
	rocket, err := r.repos.ReadRocketByID(ctx, refs.RocketID)
	if err != nil {
		return nil, err
	}
	flight, err := refs.Compose(env, rocket)
	if err != nil {
		return nil, err
	}
	return flight, r.validate(flight)
}

func (r references) postFlight(ctx context.Context, req Request) (Response, error) {
	flight, err := r.flight(ctx, req.Body)
	if err != nil {
		return Response{}, err
	}
	id, err := r.repos.CreateFlight(ctx, flight)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusCreated, Body: model.FlightSchema.Created(id)}, nil
}

func (r references) putFlight(ctx context.Context, req Request) (Response, error) {
	flight, err := r.flight(ctx, req.Body)
	if err != nil {
		return Response{}, err
	}
	if err := r.repos.UpdateFlightByID(ctx, req.ID, flight); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusNoContent}, nil
}

func (r references) putFlightEnvironment(ctx context.Context, req Request) (Response, error) {
	env, err := decodeResource(model.EnvironmentSchema, req.Body, r.clock())
	if err != nil {
		return Response{}, err
	}
	return r.amendFlight(ctx, req.ID, func(f *model.Flight) { f.Environment = *env })
}

func (r references) putFlightRocket(ctx context.Context, req Request) (Response, error) {
	rocket, err := decodeResource(model.RocketSchema, req.Body, r.clock())
	if err != nil {
		return Response{}, err
	}
	return r.amendFlight(ctx, req.ID, func(f *model.Flight) { f.Rocket = *rocket })
}

// amendFlight replaces part of a stored flight.
func (r references) amendFlight(ctx context.Context, id string, amend func(*model.Flight)) (Response, error) {
	flight, err := r.repos.ReadFlightByID(ctx, id)
	if err != nil {
		return Response{}, err
	}
	amend(flight)
	if err := r.validate(flight); err != nil {
		return Response{}, err
	}
	if err := r.repos.UpdateFlightByID(ctx, id, flight); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusNoContent}, nil
}

// rocket composes a rocket from the motor reference in body.
func (r references) rocket(ctx context.Context, body []byte) (*model.Rocket, error) {
	var ref model.RocketMotorReference
	if err := decodeReference(body, &ref); err != nil {
		return nil, err
	}
	motor, err := r.repos.ReadMotorByID(ctx, ref.MotorID)
	if err != nil {
		return nil, err
	}
	rocket, err := ref.Compose(motor)
	if err != nil {
		return nil, err
	}
	return rocket, r.validate(rocket)
}

func (r references) postRocket(ctx context.Context, req Request) (Response, error) {
	rocket, err := r.rocket(ctx, req.Body)
	if err != nil {
		return Response{}, err
	}
	id, err := r.repos.CreateRocket(ctx, rocket)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusCreated, Body: model.RocketSchema.Created(id)}, nil
}

func (r references) putRocket(ctx context.Context, req Request) (Response, error) {
	rocket, err := r.rocket(ctx, req.Body)
	if err != nil {
		return Response{}, err
	}
	if err := r.repos.UpdateRocketByID(ctx, req.ID, rocket); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusNoContent}, nil
}

func (r references) validate(v model.Resource) error {
	if d, ok := v.(defaulter); ok {
		d.ApplyDefaults(r.clock())
	}
	return v.Validate()
}
