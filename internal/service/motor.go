package service

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/model"
)

// MotorService materialises motors of every family.
type MotorService struct {
	run runner
}

// Materialise builds the family-specific motor of m and mounts its tanks.
func (s *MotorService) Materialise(_ context.Context, m *model.Motor) (*core.Motor, error) {
	cfg := core.MotorConfig{
		ThrustSource:       m.ThrustSource,
		BurnTime:           m.BurnTime,
		NozzleRadius:       m.NozzleRadius,
		DryMass:            m.DryMass,
		DryInertia:         m.DryInertia,
		CenterOfDryMass:    m.CenterOfDryMassPosition,
		Interpolation:      core.Interpolation(m.InterpolationMethod),
		Orientation:        core.MotorOrientation(m.CoordinateSystemOrientation),
		ReshapeThrustCurve: m.ReshapeThrustCurve,
	}

	switch m.MotorKind {
	case model.LiquidMotor:
		tanks, err := mountTanks(m.Tanks)
		if err != nil {
			return nil, err
		}
		return core.NewLiquidMotor(cfg, tanks)
	case model.HybridMotor:
		cfg.ThroatRadius = deref(m.ThroatRadius)
		tanks, err := mountTanks(m.Tanks)
		if err != nil {
			return nil, err
		}
		return core.NewHybridMotor(cfg, grains(m), tanks)
	case model.SolidMotor:
		return core.NewSolidMotor(cfg, grains(m))
	case model.GenericMotor:
		cfg.NozzlePosition = deref(m.NozzlePosition)
		return core.NewGenericMotor(cfg, core.ChamberConfig{
			Radius:                deref(m.ChamberRadius),
			Height:                deref(m.ChamberHeight),
			Position:              deref(m.ChamberPosition),
			PropellantInitialMass: deref(m.PropellantInitialMass),
		})
	default:
		return nil, fmt.Errorf("%w: unknown motor kind %q", core.ErrInvalidMotor, m.MotorKind)
	}
}

// Simulate returns the projection of m.
func (s *MotorService) Simulate(ctx context.Context, m *model.Motor) (map[string]any, error) {
	return s.run.simulate(ctx, s.object(m))
}

// Snapshot returns the binary snapshot of m.
func (s *MotorService) Snapshot(ctx context.Context, m *model.Motor) ([]byte, error) {
	return s.run.snapshot(ctx, s.object(m))
}

func (s *MotorService) object(m *model.Motor) func(context.Context) (core.Object, error) {
	return func(ctx context.Context) (core.Object, error) { return s.Materialise(ctx, m) }
}

func grains(m *model.Motor) core.GrainConfig {
	return core.GrainConfig{
		Number:             deref(m.GrainNumber),
		Density:            deref(m.GrainDensity),
		OuterRadius:        deref(m.GrainOuterRadius),
		InitialInnerRadius: deref(m.GrainInitialInnerRadius),
		InitialHeight:      deref(m.GrainInitialHeight),
		Separation:         deref(m.GrainSeparation),
		CenterOfMass:       deref(m.GrainsCenterOfMassPosition),
	}
}

func mountTanks(tanks []model.MotorTank) ([]core.MountedTank, error) {
	out := make([]core.MountedTank, 0, len(tanks))
	for i := range tanks {
		tank, err := materialiseTank(&tanks[i])
		if err != nil {
			return nil, fmt.Errorf("tanks[%d]: %w", i, err)
		}
		out = append(out, core.MountedTank{Tank: tank, Position: tanks[i].Position})
	}
	return out, nil
}

// materialiseTank fills only the fields of the tank's own family.
func materialiseTank(t *model.MotorTank) (*core.Tank, error) {
	geometry := make([]core.TankSection, len(t.Geometry))
	for i, s := range t.Geometry {
		geometry[i] = core.TankSection{Bottom: s.Bottom, Top: s.Top, Radius: s.Radius}
	}
	cfg := core.TankConfig{
		Name:       t.Name,
		Kind:       core.TankKind(t.TankKind),
		Geometry:   geometry,
		Gas:        core.Fluid{Name: t.Gas.Name, Density: t.Gas.Density},
		Liquid:     core.Fluid{Name: t.Liquid.Name, Density: t.Liquid.Density},
		FluxTime:   t.FluxTime,
		Discretize: t.Discretize,
	}
	switch t.TankKind {
	case model.LevelTank:
		cfg.LiquidHeight = deref(t.LiquidHeight)
	case model.MassTank:
		cfg.LiquidMass = deref(t.LiquidMass)
		cfg.GasMass = deref(t.GasMass)
	case model.MassFlowTank:
		cfg.GasMassFlowRateIn = deref(t.GasMassFlowRateIn)
		cfg.GasMassFlowRateOut = deref(t.GasMassFlowRateOut)
		cfg.LiquidMassFlowRateIn = deref(t.LiquidMassFlowRateIn)
		cfg.LiquidMassFlowRateOut = deref(t.LiquidMassFlowRateOut)
		cfg.InitialLiquidMass = deref(t.InitialLiquidMass)
		cfg.InitialGasMass = deref(t.InitialGasMass)
	case model.UllageTank:
		cfg.Ullage = deref(t.Ullage)
	default:
		return nil, fmt.Errorf("%w: unknown tank kind %q", core.ErrInvalidTank, t.TankKind)
	}
	return core.NewTank(cfg)
}
