package core

import (
	"errors"
	"fmt"
	"math"
)

// Orientation fixes the direction of the rocket's positional axis.
type Orientation string

const (
	TailToNose Orientation = "tail_to_nose"
	NoseToTail Orientation = "nose_to_tail"
)

// ErrInvalidRocket is returned when a rocket configuration cannot be built.
var ErrInvalidRocket = errors.New("invalid rocket")

// Trigger decides parachute deployment from the sensed pressure (Pa), height
// above ground level (m) and the 13-element state vector
// [x, y, z, vx, vy, vz, e0, e1, e2, e3, w1, w2, w3].
type Trigger func(pressure, height float64, state []float64) bool

// Parachute is a drag device released by its trigger.
type Parachute struct {
	Name         string
	CdS          float64
	Trigger      Trigger
	TriggerLabel string
	SamplingRate float64
	Lag          float64
	Noise        [3]float64
}

func (p *Parachute) Kind() string { return "parachute" }

func (p *Parachute) Encode() map[string]any {
	return map[string]any{
		"name":          p.Name,
		"cd_s":          p.CdS,
		"trigger":       p.TriggerLabel,
		"sampling_rate": p.SamplingRate,
		"lag":           p.Lag,
		"noise":         p.Noise[:],
	}
}

func (p *Parachute) Attr(name string) (any, error) {
	return attrTable{
		"noise_std":  value(p.Noise[1]),
		"noise_corr": value(p.Noise[2]),
	}.get(p.Kind(), name)
}

// RocketConfig is the flat configuration of a rocket body.
type RocketConfig struct {
	Radius                   float64
	Mass                     float64
	Inertia                  []float64
	PowerOffDrag             [][2]float64
	PowerOnDrag              [][2]float64
	CenterOfMassWithoutMotor float64
	Orientation              Orientation
}

type placedSurface struct {
	surface  Surface
	position float64
}

// Rocket is a materialised rocket with attached components.
type Rocket struct {
	cfg          RocketConfig
	area         float64
	PowerOffDrag *Function
	PowerOnDrag  *Function

	motor         *Motor
	motorPosition float64

	surfaces    []placedSurface
	railButtons *RailButtons
	railPos     float64
	parachutes  []*Parachute

	cpPosition   float64
	totalCNalpha float64

	TotalMass    *Function
	CenterOfMass *Function
	StaticMargin *Function

	attrs attrTable
}

// NewRocket builds a rocket body without motor or components.
func NewRocket(cfg RocketConfig) (*Rocket, error) {
	if cfg.Radius <= 0 || cfg.Mass <= 0 {
		return nil, fmt.Errorf("%w: radius and mass must be positive", ErrInvalidRocket)
	}
	if cfg.Orientation == "" {
		cfg.Orientation = TailToNose
	}
	if len(cfg.Inertia) != 0 && len(cfg.Inertia) != 3 && len(cfg.Inertia) != 6 {
		return nil, fmt.Errorf("%w: inertia must have 3 or 6 components", ErrInvalidRocket)
	}
	drag := func(points [][2]float64, out string) (*Function, error) {
		if len(points) == 0 {
			points = [][2]float64{{0, 0}}
		}
		f, err := NewFunction(points, "Mach Number", out, InterpLinear, ExtrapConstant)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRocket, err)
		}
		return f, nil
	}
	r := &Rocket{cfg: cfg, area: math.Pi * cfg.Radius * cfg.Radius}
	var err error
	if r.PowerOffDrag, err = drag(cfg.PowerOffDrag, "Power-Off Drag Coefficient"); err != nil {
		return nil, err
	}
	if r.PowerOnDrag, err = drag(cfg.PowerOnDrag, "Power-On Drag Coefficient"); err != nil {
		return nil, err
	}
	r.refreshMass()
	r.attrs = r.attributeTable()
	return r, nil
}

// Sign returns +1 when positions grow from tail to nose.
func (r *Rocket) Sign() float64 {
	if r.cfg.Orientation == NoseToTail {
		return -1
	}
	return 1
}

// AddMotor attaches the motor with its nozzle reference at position.
func (r *Rocket) AddMotor(m *Motor, position float64) {
	r.motor = m
	r.motorPosition = position
	r.refreshMass()
}

// AddSurface attaches an aerodynamic surface with its reference point at
// position and recomputes the centre of pressure and static margin.
func (r *Rocket) AddSurface(s Surface, position float64) {
	r.surfaces = append(r.surfaces, placedSurface{surface: s, position: position})
	r.refreshAerodynamics()
}

// SetRailButtons places the rail buttons relative to position.
func (r *Rocket) SetRailButtons(b RailButtons, position float64) {
	r.railButtons = &b
	r.railPos = position
}

// AddParachute attaches a parachute.
func (r *Rocket) AddParachute(p *Parachute) error {
	if p.CdS <= 0 || p.SamplingRate <= 0 || p.Lag < 0 {
		return fmt.Errorf("%w: parachute %q has invalid cd_s, sampling rate or lag", ErrInvalidRocket, p.Name)
	}
	if p.Trigger == nil {
		return fmt.Errorf("%w: parachute %q has no trigger", ErrInvalidRocket, p.Name)
	}
	r.parachutes = append(r.parachutes, p)
	return nil
}

// Parachutes returns the attached parachutes.
func (r *Rocket) Parachutes() []*Parachute { return r.parachutes }

// Motor returns the attached motor, or nil.
func (r *Rocket) Motor() *Motor { return r.motor }

// Radius returns the reference radius in metres.
func (r *Rocket) Radius() float64 { return r.cfg.Radius }

// Area returns the reference cross-section in m².
func (r *Rocket) Area() float64 { return r.area }

// motorAxis converts a motor-frame coordinate to the rocket frame.
func (r *Rocket) motorAxis(local float64) float64 {
	return r.motorPosition + r.Sign()*r.motor.Sign()*local
}

func (r *Rocket) refreshMass() {
	body, bodyCM := r.cfg.Mass, r.cfg.CenterOfMassWithoutMotor
	if r.motor == nil {
		r.TotalMass = Constant(body, timeInput, "Total Mass (kg)")
		r.CenterOfMass = Constant(bodyCM, timeInput, "Center of Mass (m)")
	} else {
		motor := r.motor
		r.TotalMass = motor.TotalMass.Map("Total Mass (kg)", func(_, m float64) float64 { return body + m })
		r.CenterOfMass = NewCallable(func(t float64) float64 {
			mm := motor.TotalMass.Eval(t)
			return (body*bodyCM + mm*r.motorAxis(motor.CenterOfMass.Eval(t))) / (body + mm)
		}, timeInput, "Center of Mass (m)")
	}
	r.refreshAerodynamics()
}

func (r *Rocket) refreshAerodynamics() {
	total, moment := 0.0, 0.0
	for _, ps := range r.surfaces {
		cn := ps.surface.NormalForceSlope(r.cfg.Radius)
		cp := ps.position - r.Sign()*ps.surface.CenterOfPressure()
		total += cn
		moment += cn * cp
	}
	r.totalCNalpha = total
	if total != 0 {
		r.cpPosition = moment / total
	} else {
		r.cpPosition = 0
	}
	com := r.CenterOfMass
	cp, sign, diameter := r.cpPosition, r.Sign(), 2*r.cfg.Radius
	r.StaticMargin = NewCallable(func(t float64) float64 {
		return sign * (com.Eval(t) - cp) / diameter
	}, timeInput, "Static Margin (c)")
}

// CenterOfPressure returns the aggregate centre of pressure position.
func (r *Rocket) CenterOfPressure() float64 { return r.cpPosition }

// DragCoefficient returns the drag coefficient at mach, with the power-on
// curve while the motor burns.
func (r *Rocket) DragCoefficient(t, mach float64) float64 {
	if r.motor != nil && t >= 0 && t <= r.motor.BurnOutTime() {
		return r.PowerOnDrag.Eval(mach)
	}
	return r.PowerOffDrag.Eval(mach)
}

// Thrust returns motor thrust at t, or zero without a motor.
func (r *Rocket) Thrust(t float64) float64 {
	if r.motor == nil {
		return 0
	}
	return r.motor.Thrust.Eval(t)
}

func (r *Rocket) Kind() string { return "rocket" }

func (r *Rocket) Encode() map[string]any {
	out := map[string]any{
		"radius":                        r.cfg.Radius,
		"mass":                          r.cfg.Mass,
		"inertia":                       r.cfg.Inertia,
		"center_of_mass_without_motor":  r.cfg.CenterOfMassWithoutMotor,
		"coordinate_system_orientation": string(r.cfg.Orientation),
		"power_off_drag":                r.PowerOffDrag,
		"power_on_drag":                 r.PowerOnDrag,
		"motor_position":                r.motorPosition,
		"total_mass":                    r.TotalMass,
		"center_of_mass":                r.CenterOfMass,
		"static_margin":                 r.StaticMargin,
		"cp_position":                   r.cpPosition,
		"area":                          r.area,
	}
	if r.motor != nil {
		out["motor"] = r.motor
	}
	var aero []map[string]any
	for _, ps := range r.surfaces {
		enc := ps.surface.Encode()
		enc["position"] = ps.position
		enc["component"] = ps.surface.Kind()
		aero = append(aero, enc)
	}
	out["aerodynamic_surfaces"] = aero
	if r.railButtons != nil {
		enc := r.railButtons.Encode()
		enc["position"] = r.railPos
		out["rail_buttons"] = enc
	}
	chutes := make([]Object, 0, len(r.parachutes))
	for _, p := range r.parachutes {
		chutes = append(chutes, p)
	}
	out["parachutes"] = chutes
	return out
}

func (r *Rocket) Attr(name string) (any, error) { return r.attrs.get(r.Kind(), name) }

func (r *Rocket) attributeTable() attrTable {
	return attrTable{
		"total_lift_coeff_der": func() (any, error) { return r.totalCNalpha, nil },
		"thrust_to_weight": func() (any, error) {
			if r.motor == nil {
				return nil, errors.New("rocket has no motor")
			}
			mass := r.TotalMass
			thrust := r.motor.Thrust
			return thrust.Map("Thrust to Weight", func(t, v float64) float64 {
				return v / (mass.Eval(t) * StandardGravity)
			}), nil
		},
		"initial_static_margin": func() (any, error) { return r.StaticMargin.Eval(0), nil },
		"final_static_margin": func() (any, error) {
			if r.motor == nil {
				return r.StaticMargin.Eval(0), nil
			}
			return r.StaticMargin.Eval(r.motor.BurnOutTime()), nil
		},
		"dry_mass": func() (any, error) {
			if r.motor == nil {
				return r.cfg.Mass, nil
			}
			return r.cfg.Mass + r.motor.cfg.DryMass, nil
		},
		"reduced_mass": func() (any, error) {
			if r.motor == nil {
				return nil, errors.New("rocket has no motor")
			}
			body := r.cfg.Mass
			return r.motor.TotalMass.Map("Reduced Mass (kg)", func(_, m float64) float64 {
				return body * m / (body + m)
			}), nil
		},
		"nose_to_tail_length": func() (any, error) {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, ps := range r.surfaces {
				lo = math.Min(lo, ps.position)
				hi = math.Max(hi, ps.position)
			}
			if len(r.surfaces) == 0 {
				return 0.0, nil
			}
			return hi - lo, nil
		},
	}
}
