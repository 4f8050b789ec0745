package core

import (
	"errors"
	"fmt"
	"math"
)

// MotorKind is the propulsion family of a motor.
type MotorKind string

const (
	SolidMotor   MotorKind = "SOLID"
	HybridMotor  MotorKind = "HYBRID"
	LiquidMotor  MotorKind = "LIQUID"
	GenericMotor MotorKind = "GENERIC"
)

// MotorOrientation fixes the direction of the motor's positional axis.
type MotorOrientation string

const (
	NozzleToCombustionChamber MotorOrientation = "nozzle_to_combustion_chamber"
	CombustionChamberToNozzle MotorOrientation = "combustion_chamber_to_nozzle"
)

// ErrInvalidMotor is returned when a motor configuration cannot be built.
var ErrInvalidMotor = errors.New("invalid motor")

const timeInput = "Time (s)"

// MotorConfig is the configuration shared by all motor families.
type MotorConfig struct {
	ThrustSource       [][2]float64
	BurnTime           float64
	NozzleRadius       float64
	DryMass            float64
	DryInertia         [3]float64
	CenterOfDryMass    float64
	Interpolation      Interpolation
	Orientation        MotorOrientation
	ReshapeThrustCurve *[2]float64
	NozzlePosition     float64
	ThroatRadius       float64
}

// GrainConfig describes a stack of identical BATES grains.
type GrainConfig struct {
	Number             int
	Density            float64
	OuterRadius        float64
	InitialInnerRadius float64
	InitialHeight      float64
	Separation         float64
	CenterOfMass       float64
}

// ChamberConfig describes the lumped combustion chamber of a generic motor.
type ChamberConfig struct {
	Radius                float64
	Height                float64
	Position              float64
	PropellantInitialMass float64
}

// MountedTank is a tank attached at a position along the motor axis.
type MountedTank struct {
	Tank     *Tank
	Position float64
}

// Motor is a materialised motor of any family.
type Motor struct {
	kind        MotorKind
	cfg         MotorConfig
	grains      *GrainConfig
	chamber     *ChamberConfig
	tanks       []MountedTank
	burnOutTime float64

	Thrust                 *Function
	PropellantMass         *Function
	MassFlowRate           *Function
	CenterOfPropellantMass *Function
	TotalMass              *Function
	CenterOfMass           *Function
	GrainInnerRadius       *Function
	GrainHeight            *Function

	totalImpulse    float64
	exhaustVelocity float64
	propellantMass0 float64

	attrs attrTable
}

// NewSolidMotor builds a solid motor with BATES grain regression.
func NewSolidMotor(cfg MotorConfig, grains GrainConfig) (*Motor, error) {
	m, err := newMotor(SolidMotor, cfg)
	if err != nil {
		return nil, err
	}
	if err := validateGrains(grains); err != nil {
		return nil, err
	}
	m.grains = &grains
	m.propellantMass0 = grainMass(grains, grains.InitialInnerRadius, grains.InitialHeight)
	if err := m.finish(); err != nil {
		return nil, err
	}
	m.regressGrains()
	return m, nil
}

// NewHybridMotor builds a hybrid motor: a solid fuel grain set burning with
// oxidiser from one or more tanks.
func NewHybridMotor(cfg MotorConfig, grains GrainConfig, tanks []MountedTank) (*Motor, error) {
	m, err := newMotor(HybridMotor, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ThroatRadius <= 0 {
		return nil, fmt.Errorf("%w: hybrid motor requires a positive throat radius", ErrInvalidMotor)
	}
	if len(tanks) == 0 {
		return nil, fmt.Errorf("%w: hybrid motor requires at least one tank", ErrInvalidMotor)
	}
	if err := validateGrains(grains); err != nil {
		return nil, err
	}
	m.grains = &grains
	m.tanks = tanks
	m.propellantMass0 = grainMass(grains, grains.InitialInnerRadius, grains.InitialHeight) + m.tankMass(0)
	if err := m.finish(); err != nil {
		return nil, err
	}
	m.regressGrains()
	return m, nil
}

// NewLiquidMotor builds a liquid motor fed entirely by tanks.
func NewLiquidMotor(cfg MotorConfig, tanks []MountedTank) (*Motor, error) {
	m, err := newMotor(LiquidMotor, cfg)
	if err != nil {
		return nil, err
	}
	if len(tanks) == 0 {
		return nil, fmt.Errorf("%w: liquid motor requires at least one tank", ErrInvalidMotor)
	}
	m.tanks = tanks
	m.propellantMass0 = m.tankMass(0)
	if err := m.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewGenericMotor builds a motor whose propellant is a single lumped mass
// inside a cylindrical chamber.
func NewGenericMotor(cfg MotorConfig, chamber ChamberConfig) (*Motor, error) {
	m, err := newMotor(GenericMotor, cfg)
	if err != nil {
		return nil, err
	}
	if chamber.Radius <= 0 || chamber.Height <= 0 || chamber.PropellantInitialMass <= 0 {
		return nil, fmt.Errorf("%w: generic chamber needs positive radius, height and propellant mass", ErrInvalidMotor)
	}
	m.chamber = &chamber
	m.propellantMass0 = chamber.PropellantInitialMass
	if err := m.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

func newMotor(kind MotorKind, cfg MotorConfig) (*Motor, error) {
	if len(cfg.ThrustSource) < 2 {
		return nil, fmt.Errorf("%w: thrust curve needs at least two samples", ErrInvalidMotor)
	}
	if cfg.BurnTime <= 0 {
		return nil, fmt.Errorf("%w: burn time must be positive", ErrInvalidMotor)
	}
	if cfg.NozzleRadius <= 0 {
		return nil, fmt.Errorf("%w: nozzle radius must be positive", ErrInvalidMotor)
	}
	if cfg.Orientation == "" {
		cfg.Orientation = NozzleToCombustionChamber
	}
	thrust, err := NewFunction(cfg.ThrustSource, timeInput, "Thrust (N)", cfg.Interpolation, ExtrapZero)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMotor, err)
	}
	m := &Motor{kind: kind, cfg: cfg, burnOutTime: cfg.BurnTime}
	if r := cfg.ReshapeThrustCurve; r != nil {
		thrust, err = reshapeThrust(thrust, cfg.BurnTime, r[0], r[1])
		if err != nil {
			return nil, err
		}
		m.burnOutTime = r[0]
	}
	// clip the curve to the burn window.
	burnOut := m.burnOutTime
	m.Thrust = thrust.Map("Thrust (N)", func(t, v float64) float64 {
		if t < 0 || t > burnOut {
			return 0
		}
		return math.Max(v, 0)
	})
	m.totalImpulse = m.Thrust.Integral(0, burnOut)
	if m.totalImpulse <= 0 {
		return nil, fmt.Errorf("%w: thrust curve has no impulse", ErrInvalidMotor)
	}
	return m, nil
}

// reshapeThrust rescales a curve to a new burn time and total impulse.
func reshapeThrust(thrust *Function, burnTime, newBurnTime, newImpulse float64) (*Function, error) {
	if newBurnTime <= 0 || newImpulse <= 0 {
		return nil, fmt.Errorf("%w: reshape target must be positive", ErrInvalidMotor)
	}
	oldImpulse := thrust.Integral(0, burnTime)
	if oldImpulse <= 0 {
		return nil, fmt.Errorf("%w: cannot reshape a curve without impulse", ErrInvalidMotor)
	}
	timeScale := newBurnTime / burnTime
	thrustScale := newImpulse / (oldImpulse * timeScale)
	samples := thrust.Samples()
	points := make([][2]float64, len(samples))
	for i, p := range samples {
		points[i] = [2]float64{p[0] * timeScale, p[1] * thrustScale}
	}
	return NewFunction(points, thrust.Input, thrust.Output, thrust.Interpolation(), ExtrapZero)
}

func validateGrains(g GrainConfig) error {
	switch {
	case g.Number < 1:
		return fmt.Errorf("%w: grain number must be at least 1", ErrInvalidMotor)
	case g.Density <= 0:
		return fmt.Errorf("%w: grain density must be positive", ErrInvalidMotor)
	case g.OuterRadius <= 0 || g.InitialHeight <= 0:
		return fmt.Errorf("%w: grain dimensions must be positive", ErrInvalidMotor)
	case g.InitialInnerRadius < 0 || g.InitialInnerRadius >= g.OuterRadius:
		return fmt.Errorf("%w: grain inner radius must lie in [0, outer radius)", ErrInvalidMotor)
	}
	return nil
}

func grainMass(g GrainConfig, inner, height float64) float64 {
	if height <= 0 || inner >= g.OuterRadius {
		return 0
	}
	return float64(g.Number) * g.Density * math.Pi * (g.OuterRadius*g.OuterRadius - inner*inner) * height
}

func (m *Motor) tankMass(t float64) float64 {
	total := 0.0
	for _, mt := range m.tanks {
		total += mt.Tank.FluidMass.Eval(t)
	}
	return total
}

// finish derives the mass properties shared by every family.
func (m *Motor) finish() error {
	if m.propellantMass0 <= 0 {
		return fmt.Errorf("%w: propellant mass must be positive", ErrInvalidMotor)
	}
	m.exhaustVelocity = m.totalImpulse / m.propellantMass0
	burnOut := m.burnOutTime

	const n = 200
	mass := make([][2]float64, 0, n+1)
	com := make([][2]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		t := burnOut * float64(i) / n
		pm := m.propellantMassAt(t)
		mass = append(mass, [2]float64{t, pm})
		com = append(com, [2]float64{t, m.propellantCenterAt(t)})
	}
	m.PropellantMass = MustFunction(mass, timeInput, "Propellant Mass (kg)")
	m.CenterOfPropellantMass = MustFunction(com, timeInput, "Center of Propellant Mass (m)")
	prop := m.PropellantMass
	m.MassFlowRate = NewCallable(func(t float64) float64 {
		if t < 0 || t > burnOut {
			return 0
		}
		return prop.Derivative(t)
	}, timeInput, "Mass Flow Rate (kg/s)")

	dry, cdm := m.cfg.DryMass, m.cfg.CenterOfDryMass
	m.TotalMass = prop.Map("Total Mass (kg)", func(_, p float64) float64 { return dry + p })
	cpm := m.CenterOfPropellantMass
	m.CenterOfMass = NewCallable(func(t float64) float64 {
		p := prop.Eval(t)
		if dry+p == 0 {
			return cdm
		}
		return (dry*cdm + p*cpm.Eval(t)) / (dry + p)
	}, timeInput, "Center of Mass (m)")
	m.attrs = m.attributeTable()
	return nil
}

// propellantMassAt returns the remaining propellant mass at time t.
func (m *Motor) propellantMassAt(t float64) float64 {
	switch m.kind {
	case LiquidMotor:
		return m.tankMass(t)
	case HybridMotor:
		// tanks drain on their own schedule; the grain burns the rest of the impulse.
		fuel0 := m.propellantMass0 - m.tankMass(0)
		return m.tankMass(t) + fuel0*(1-m.impulseFraction(t))
	default:
		return m.propellantMass0 * (1 - m.impulseFraction(t))
	}
}

func (m *Motor) impulseFraction(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= m.burnOutTime {
		return 1
	}
	return m.Thrust.Integral(0, t) / m.totalImpulse
}

// propellantCenterAt returns the propellant centre of mass along the motor
// axis.
func (m *Motor) propellantCenterAt(t float64) float64 {
	switch m.kind {
	case SolidMotor:
		return m.grains.CenterOfMass
	case GenericMotor:
		return m.chamber.Position
	}
	num, den := 0.0, 0.0
	for _, mt := range m.tanks {
		w := mt.Tank.FluidMass.Eval(t)
		num += w * (mt.Position + mt.Tank.CenterOfMass.Eval(t))
		den += w
	}
	if m.kind == HybridMotor {
		fuel := m.propellantMassAt(t) - m.tankMass(t)
		num += fuel * m.grains.CenterOfMass
		den += fuel
	}
	if den <= 0 {
		return m.cfg.CenterOfDryMass
	}
	return num / den
}

// regressGrains integrates BATES grain burnback driven by the grain mass flow.
func (m *Motor) regressGrains() {
	g := m.grains
	burnOut := m.burnOutTime
	const n = 200
	dt := burnOut / n
	inner, height := g.InitialInnerRadius, g.InitialHeight
	radius := [][2]float64{{0, inner}}
	heights := [][2]float64{{0, height}}
	fuel0 := grainMass(*g, g.InitialInnerRadius, g.InitialHeight)
	for i := 1; i <= n; i++ {
		t := float64(i) * dt
		var mdot float64
		if m.kind == HybridMotor {
			mdot = fuel0 * (m.impulseFraction(t) - m.impulseFraction(t-dt)) / dt
		} else {
			mdot = (m.PropellantMass.Eval(t-dt) - m.PropellantMass.Eval(t)) / dt
		}
		area := float64(g.Number) * (2*math.Pi*inner*height + 2*math.Pi*(g.OuterRadius*g.OuterRadius-inner*inner))
		if area > 0 && inner < g.OuterRadius && height > 0 {
			rate := mdot / (g.Density * area)
			inner = math.Min(g.OuterRadius, inner+rate*dt)
			height = math.Max(0, height-2*rate*dt)
		}
		radius = append(radius, [2]float64{t, inner})
		heights = append(heights, [2]float64{t, height})
	}
	m.GrainInnerRadius = MustFunction(radius, timeInput, "Grain Inner Radius (m)")
	m.GrainHeight = MustFunction(heights, timeInput, "Grain Height (m)")
}

// MotorKind returns the propulsion family.
func (m *Motor) MotorKind() MotorKind { return m.kind }

// BurnOutTime returns the time at which thrust ends.
func (m *Motor) BurnOutTime() float64 { return m.burnOutTime }

// TotalImpulse returns the integral of thrust over the burn in N s.
func (m *Motor) TotalImpulse() float64 { return m.totalImpulse }

// NozzleRadius returns the nozzle exit radius in metres.
func (m *Motor) NozzleRadius() float64 { return m.cfg.NozzleRadius }

// Sign returns +1 when positions grow from the nozzle towards the chamber.
func (m *Motor) Sign() float64 {
	if m.cfg.Orientation == CombustionChamberToNozzle {
		return -1
	}
	return 1
}

// Kind implements Object.
func (m *Motor) Kind() string { return "motor" }

// Encode implements Object.
func (m *Motor) Encode() map[string]any {
	out := map[string]any{
		"motor_kind":                    string(m.kind),
		"burn_time":                     []float64{0, m.burnOutTime},
		"burn_out_time":                 m.burnOutTime,
		"nozzle_radius":                 m.cfg.NozzleRadius,
		"nozzle_position":               m.cfg.NozzlePosition,
		"dry_mass":                      m.cfg.DryMass,
		"dry_inertia":                   m.cfg.DryInertia[:],
		"center_of_dry_mass_position":   m.cfg.CenterOfDryMass,
		"coordinate_system_orientation": string(m.cfg.Orientation),
		"interpolate":                   string(m.Thrust.Interpolation()),
		"thrust":                        m.Thrust,
		"total_mass":                    m.TotalMass,
		"propellant_mass":               m.PropellantMass,
		"center_of_mass":                m.CenterOfMass,
	}
	if m.grains != nil {
		out["grain_number"] = m.grains.Number
		out["grain_density"] = m.grains.Density
		out["grain_outer_radius"] = m.grains.OuterRadius
		out["grain_initial_inner_radius"] = m.grains.InitialInnerRadius
		out["grain_initial_height"] = m.grains.InitialHeight
		out["grain_separation"] = m.grains.Separation
		out["grains_center_of_mass_position"] = m.grains.CenterOfMass
	}
	if m.kind == HybridMotor {
		out["throat_radius"] = m.cfg.ThroatRadius
	}
	if m.chamber != nil {
		out["chamber_radius"] = m.chamber.Radius
		out["chamber_height"] = m.chamber.Height
		out["chamber_position"] = m.chamber.Position
		out["propellant_initial_mass"] = m.chamber.PropellantInitialMass
	}
	if len(m.tanks) > 0 {
		tanks := make([]map[string]any, 0, len(m.tanks))
		for _, mt := range m.tanks {
			enc := mt.Tank.Encode()
			enc["position"] = mt.Position
			tanks = append(tanks, enc)
		}
		out["positioned_tanks"] = tanks
	}
	return out
}

// Attr implements Object.
func (m *Motor) Attr(name string) (any, error) { return m.attrs.get(m.Kind(), name) }

func (m *Motor) attributeTable() attrTable {
	t := attrTable{
		"total_impulse":             value(m.totalImpulse),
		"exhaust_velocity":          value(m.exhaustVelocity),
		"propellant_initial_mass":   value(m.propellantMass0),
		"mass_flow_rate":            func() (any, error) { return m.MassFlowRate, nil },
		"center_of_propellant_mass": func() (any, error) { return m.CenterOfPropellantMass, nil },
		"average_thrust":            func() (any, error) { return m.totalImpulse / m.burnOutTime, nil },
		"max_thrust": func() (any, error) {
			_, v := m.Thrust.Max()
			return v, nil
		},
		"max_thrust_time": func() (any, error) {
			t, _ := m.Thrust.Max()
			return t, nil
		},
		"propellant_I_11": func() (any, error) { return m.propellantInertia(false), nil },
		"propellant_I_33": func() (any, error) { return m.propellantInertia(true), nil },
	}
	if m.grains != nil {
		t["grain_inner_radius"] = func() (any, error) { return m.GrainInnerRadius, nil }
		t["grain_height"] = func() (any, error) { return m.GrainHeight, nil }
		t["grain_initial_mass"] = value(grainMass(*m.grains, m.grains.InitialInnerRadius, m.grains.InitialHeight))
	}
	return t
}

// propellantInertia approximates the propellant as a solid cylinder of the
// grain or chamber radius. axial selects I_33, otherwise I_11 about the
// propellant centre of mass.
func (m *Motor) propellantInertia(axial bool) *Function {
	r, h := m.cfg.NozzleRadius, 0.0
	switch {
	case m.grains != nil:
		r = m.grains.OuterRadius
		h = float64(m.grains.Number)*m.grains.InitialHeight + float64(m.grains.Number-1)*m.grains.Separation
	case m.chamber != nil:
		r, h = m.chamber.Radius, m.chamber.Height
	}
	prop := m.PropellantMass
	out := "Propellant Inertia I_11 (kg m²)"
	if axial {
		out = "Propellant Inertia I_33 (kg m²)"
	}
	return prop.Map(out, func(_, p float64) float64 {
		if axial {
			return p * r * r / 2
		}
		return p * (3*r*r + h*h) / 12
	})
}
