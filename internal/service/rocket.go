package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/trigger"
	"github.com/signalsfoundry/rocketflight/model"
)

// RocketService materialises rockets with their motor and components.
type RocketService struct {
	motors *MotorService
	run    runner
}

// Materialise builds the body and attaches rail buttons, motor, nose, fins,
// tail and parachutes. Parachutes whose trigger is not admissible are
// dropped; the rest of the rocket is unaffected.
func (s *RocketService) Materialise(ctx context.Context, r *model.Rocket) (*core.Rocket, error) {
	rocket, err := core.NewRocket(core.RocketConfig{
		Radius:                   r.Radius,
		Mass:                     r.Mass,
		Inertia:                  r.Inertia,
		PowerOffDrag:             r.PowerOffDrag,
		PowerOnDrag:              r.PowerOnDrag,
		CenterOfMassWithoutMotor: r.CenterOfMassWithoutMotor,
		Orientation:              core.Orientation(r.CoordinateSystemOrientation),
	})
	if err != nil {
		return nil, err
	}

	if b := r.RailButtons; b != nil {
		rocket.SetRailButtons(core.RailButtons{
			Name:            b.Name,
			UpperPosition:   b.UpperButtonPosition,
			LowerPosition:   b.LowerButtonPosition,
			AngularPosition: b.AngularPosition,
		}, 0)
	}

	motor, err := s.motors.Materialise(ctx, &r.Motor)
	if err != nil {
		return nil, fmt.Errorf("motor: %w", err)
	}
	rocket.AddMotor(motor, r.MotorPosition)

	nose, err := core.NewNoseCone(r.Nose.Name, r.Nose.Length, strings.ToLower(r.Nose.Kind),
		r.Nose.BaseRadius, r.Nose.RocketRadius, deref(r.Nose.Bluffness))
	if err != nil {
		return nil, fmt.Errorf("nose: %w", err)
	}
	rocket.AddSurface(nose, r.Nose.Position)

	for i := range r.Fins {
		fins, err := core.NewFins(finsConfig(&r.Fins[i]))
		if err != nil {
			return nil, fmt.Errorf("fins[%d]: %w", i, err)
		}
		rocket.AddSurface(fins, r.Fins[i].Position)
	}

	if t := r.Tail; t != nil {
		tail, err := core.NewTail(t.Name, t.TopRadius, t.BottomRadius, t.Length, t.Radius)
		if err != nil {
			return nil, fmt.Errorf("tail: %w", err)
		}
		rocket.AddSurface(tail, t.Position)
	}

	log := logging.FromContext(ctx)
	for i := range r.Parachutes {
		p := &r.Parachutes[i]
		fire, err := compileTrigger(p.Trigger)
		if err != nil {
			log.Warn(ctx, "dropping parachute with inadmissible trigger",
				logging.String("parachute", p.Name),
				logging.String("trigger", p.Trigger.String()),
				logging.Err(err),
			)
			continue
		}
		chute := &core.Parachute{
			Name:         p.Name,
			CdS:          p.CdS,
			Trigger:      fire,
			TriggerLabel: p.Trigger.String(),
			SamplingRate: p.SamplingRate,
			Lag:          p.Lag,
			Noise:        p.Noise,
		}
		if err := rocket.AddParachute(chute); err != nil {
			return nil, err
		}
	}
	return rocket, nil
}

// Simulate returns the projection of r.
func (s *RocketService) Simulate(ctx context.Context, r *model.Rocket) (map[string]any, error) {
	return s.run.simulate(ctx, s.object(r))
}

// Snapshot returns the binary snapshot of r.
func (s *RocketService) Snapshot(ctx context.Context, r *model.Rocket) ([]byte, error) {
	return s.run.snapshot(ctx, s.object(r))
}

func (s *RocketService) object(r *model.Rocket) func(context.Context) (core.Object, error) {
	return func(ctx context.Context) (core.Object, error) { return s.Materialise(ctx, r) }
}

// finsConfig resolves the sweep of trapezoidal fins: an explicit angle wins
// over a length, and elliptical fins carry neither.
func finsConfig(f *model.Fins) core.FinsConfig {
	cfg := core.FinsConfig{
		Name:         f.Name,
		FinsKind:     core.FinsKind(f.FinsKind),
		N:            f.N,
		RootChord:    f.RootChord,
		TipChord:     deref(f.TipChord),
		Span:         f.Span,
		CantAngle:    f.CantAngle,
		RocketRadius: f.RocketRadius,
	}
	if f.Airfoil != nil {
		cfg.Airfoil = &core.Airfoil{Points: f.Airfoil.Points, Unit: f.Airfoil.Unit}
	}
	if f.FinsKind == model.TrapezoidalFins {
		switch {
		case f.SweepAngle != nil:
			cfg.SweepAngle = f.SweepAngle
		case f.SweepLength != nil:
			cfg.SweepLength = f.SweepLength
		}
	}
	return cfg
}

// compileTrigger admits t and compiles it into a deployment predicate.
func compileTrigger(t model.Trigger) (core.Trigger, error) {
	var (
		admitted *trigger.Trigger
		err      error
	)
	if t.Number != nil {
		admitted, err = trigger.AdmitNumber(*t.Number)
	} else {
		admitted, err = trigger.Admit(t.Expr)
	}
	if err != nil {
		return nil, err
	}
	return admitted.Compile()
}
