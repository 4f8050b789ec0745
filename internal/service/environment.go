package service

import (
	"context"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/model"
)

// EnvironmentService materialises launch sites.
type EnvironmentService struct {
	fetcher core.SourceFetcher
	run     runner
}

// Materialise builds the site and applies its atmospheric model.
func (s *EnvironmentService) Materialise(ctx context.Context, e *model.Environment) (*core.Environment, error) {
	env := core.NewEnvironment(core.EnvironmentConfig{
		Latitude:  deref(e.Latitude),
		Longitude: deref(e.Longitude),
		Elevation: e.Elevation,
		Date:      e.Date,
	})
	kind := core.AtmosphericModel(e.AtmosphericModelType)
	if err := env.SetAtmosphericModel(ctx, kind, e.AtmosphericModelFile, s.fetcher); err != nil {
		return nil, err
	}
	return env, nil
}

// Simulate returns the projection of e.
func (s *EnvironmentService) Simulate(ctx context.Context, e *model.Environment) (map[string]any, error) {
	return s.run.simulate(ctx, s.object(e))
}

// Snapshot returns the binary snapshot of e.
func (s *EnvironmentService) Snapshot(ctx context.Context, e *model.Environment) ([]byte, error) {
	return s.run.snapshot(ctx, s.object(e))
}

func (s *EnvironmentService) object(e *model.Environment) func(context.Context) (core.Object, error) {
	return func(ctx context.Context) (core.Object, error) { return s.Materialise(ctx, e) }
}
