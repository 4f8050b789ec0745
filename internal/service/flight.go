package service

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/model"
)

// FlightService materialises flights by composing the environment and
// rocket services.
type FlightService struct {
	environments *EnvironmentService
	rockets      *RocketService
	run          runner
}

// Materialise builds the environment and rocket of f and integrates the
// trajectory. Only the integration controls set on f override the
// simulator defaults.
func (s *FlightService) Materialise(ctx context.Context, f *model.Flight) (*core.Flight, error) {
	env, err := s.environments.Materialise(ctx, &f.Environment)
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	rocket, err := s.rockets.Materialise(ctx, &f.Rocket)
	if err != nil {
		return nil, fmt.Errorf("rocket: %w", err)
	}
	return core.NewFlight(ctx, env, rocket, core.FlightConfig{
		Name:              f.Name,
		RailLength:        f.RailLength,
		Inclination:       f.Inclination,
		Heading:           f.Heading,
		TimeOvershoot:     f.TimeOvershoot,
		TerminateOnApogee: f.TerminateOnApogee,
		EquationsOfMotion: core.EquationsOfMotion(f.EquationsOfMotion),
		MaxTime:           deref(f.MaxTime),
		MaxTimeStep:       deref(f.MaxTimeStep),
		MinTimeStep:       deref(f.MinTimeStep),
		Rtol:              deref(f.Rtol),
		Atol:              deref(f.Atol),
		Verbose:           deref(f.Verbose),
	})
}

// Simulate returns the projection of f.
func (s *FlightService) Simulate(ctx context.Context, f *model.Flight) (map[string]any, error) {
	return s.run.simulate(ctx, s.object(f))
}

// Snapshot returns the binary snapshot of f.
func (s *FlightService) Snapshot(ctx context.Context, f *model.Flight) ([]byte, error) {
	return s.run.snapshot(ctx, s.object(f))
}

func (s *FlightService) object(f *model.Flight) func(context.Context) (core.Object, error) {
	return func(ctx context.Context) (core.Object, error) { return s.Materialise(ctx, f) }
}
