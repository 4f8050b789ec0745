package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// MotorKind is the propulsion family of a motor.
type MotorKind string

const (
	SolidMotor   MotorKind = "SOLID"
	HybridMotor  MotorKind = "HYBRID"
	LiquidMotor  MotorKind = "LIQUID"
	GenericMotor MotorKind = "GENERIC"
)

// TankKind selects which quantitative fields describe a tank's contents.
type TankKind string

const (
	LevelTank    TankKind = "LEVEL"
	MassTank     TankKind = "MASS"
	MassFlowTank TankKind = "MASS_FLOW"
	UllageTank   TankKind = "ULLAGE"
)

// Motor describes a rocket motor of any family. Grain fields apply to SOLID
// and HYBRID motors, chamber fields to GENERIC motors and tanks to HYBRID and
// LIQUID motors.
type Motor struct {
	Identity `json:"-"`

	ThrustSource                [][2]float64 `json:"thrust_source" validate:"required,min=2"`
	BurnTime                    float64      `json:"burn_time" validate:"gt=0"`
	NozzleRadius                float64      `json:"nozzle_radius" validate:"gt=0"`
	DryMass                     float64      `json:"dry_mass" validate:"gte=0"`
	DryInertia                  [3]float64   `json:"dry_inertia"`
	CenterOfDryMassPosition     float64      `json:"center_of_dry_mass_position"`
	MotorKind                   MotorKind    `json:"motor_kind" validate:"required,oneof=SOLID HYBRID LIQUID GENERIC"`
	InterpolationMethod         string       `json:"interpolation_method" validate:"oneof=linear spline akima polynomial shepard"`
	CoordinateSystemOrientation string       `json:"coordinate_system_orientation" validate:"oneof=nozzle_to_combustion_chamber combustion_chamber_to_nozzle"`
	ReshapeThrustCurve          *[2]float64  `json:"reshape_thrust_curve,omitempty"`

	GrainNumber                *int     `json:"grain_number,omitempty" validate:"omitempty,gte=1"`
	GrainDensity               *float64 `json:"grain_density,omitempty" validate:"omitempty,gt=0"`
	GrainOuterRadius           *float64 `json:"grain_outer_radius,omitempty" validate:"omitempty,gt=0"`
	GrainInitialInnerRadius    *float64 `json:"grain_initial_inner_radius,omitempty" validate:"omitempty,gte=0"`
	GrainInitialHeight         *float64 `json:"grain_initial_height,omitempty" validate:"omitempty,gt=0"`
	GrainSeparation            *float64 `json:"grain_separation,omitempty" validate:"omitempty,gte=0"`
	GrainsCenterOfMassPosition *float64 `json:"grains_center_of_mass_position,omitempty"`
	ThroatRadius               *float64 `json:"throat_radius,omitempty" validate:"omitempty,gt=0"`

	ChamberRadius         *float64 `json:"chamber_radius,omitempty" validate:"omitempty,gt=0"`
	ChamberHeight         *float64 `json:"chamber_height,omitempty" validate:"omitempty,gt=0"`
	ChamberPosition       *float64 `json:"chamber_position,omitempty"`
	PropellantInitialMass *float64 `json:"propellant_initial_mass,omitempty" validate:"omitempty,gte=0"`
	NozzlePosition        *float64 `json:"nozzle_position,omitempty"`

	Tanks List[MotorTank] `json:"tanks,omitempty" validate:"omitempty,dive"`
}

// NewMotor returns a Motor with defaults applied.
func NewMotor() *Motor {
	return &Motor{
		InterpolationMethod:         "linear",
		CoordinateSystemOrientation: "nozzle_to_combustion_chamber",
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Motor) UnmarshalJSON(data []byte) error {
	type plain Motor
	p := plain(*NewMotor())
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	id := m.id
	*m = Motor(p)
	m.id = id
	return nil
}

// Validate implements Resource.
func (m *Motor) Validate() error {
	if err := checkStruct(m); err != nil {
		return err
	}
	return m.crossCheck()
}

// crossCheck enforces the family rules: HYBRID and LIQUID motors carry at
// least one tank, SOLID and GENERIC motors none, and each family brings its
// own required fields.
func (m *Motor) crossCheck() error {
	prev := math.Inf(-1)
	for i, p := range m.ThrustSource {
		if !finite(p[0]) || !finite(p[1]) {
			return invalid("thrust_source[%d] must be finite", i)
		}
		if p[0] < prev {
			return invalid("thrust_source times must be non-decreasing")
		}
		prev = p[0]
	}
	if r := m.ReshapeThrustCurve; r != nil && (r[0] <= 0 || r[1] <= 0) {
		return invalid("reshape_thrust_curve must hold a positive burn time and total impulse")
	}

	switch m.MotorKind {
	case HybridMotor, LiquidMotor:
		if m.Tanks == nil {
			return invalid("%s motors require tanks", m.MotorKind)
		}
		if len(m.Tanks) == 0 {
			return invalid("%s motors require at least one tank", m.MotorKind)
		}
	case SolidMotor, GenericMotor:
		if m.Tanks != nil {
			return invalid("%s motors do not accept tanks", m.MotorKind)
		}
	}

	switch m.MotorKind {
	case SolidMotor, HybridMotor:
		if err := requireFields(map[string]bool{
			"grain_number":                   m.GrainNumber != nil,
			"grain_density":                  m.GrainDensity != nil,
			"grain_outer_radius":             m.GrainOuterRadius != nil,
			"grain_initial_inner_radius":     m.GrainInitialInnerRadius != nil,
			"grain_initial_height":           m.GrainInitialHeight != nil,
			"grain_separation":               m.GrainSeparation != nil,
			"grains_center_of_mass_position": m.GrainsCenterOfMassPosition != nil,
		}, m.MotorKind); err != nil {
			return err
		}
		if *m.GrainInitialInnerRadius >= *m.GrainOuterRadius {
			return invalid("grain_initial_inner_radius must be smaller than grain_outer_radius")
		}
		if m.MotorKind == HybridMotor && m.ThroatRadius == nil {
			return invalid("HYBRID motors require throat_radius")
		}
	case GenericMotor:
		if err := requireFields(map[string]bool{
			"chamber_radius":          m.ChamberRadius != nil,
			"chamber_height":          m.ChamberHeight != nil,
			"chamber_position":        m.ChamberPosition != nil,
			"propellant_initial_mass": m.PropellantInitialMass != nil,
		}, m.MotorKind); err != nil {
			return err
		}
	}

	for i := range m.Tanks {
		if err := m.Tanks[i].crossCheck(); err != nil {
			return fmt.Errorf("tanks[%d]: %w", i, err)
		}
	}
	return nil
}

// Fluid is a named fluid of constant density.
type Fluid struct {
	Name    string  `json:"name" validate:"required"`
	Density float64 `json:"density" validate:"gt=0"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Fluid) UnmarshalJSON(data []byte) error {
	type plain Fluid
	var p plain
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	*f = Fluid(p)
	return nil
}

// TankSection is one cylindrical slice of a tank, encoded as
// [[bottom, top], radius].
type TankSection struct {
	Bottom float64
	Top    float64
	Radius float64
}

// MarshalJSON implements json.Marshaler.
func (s TankSection) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{[]float64{s.Bottom, s.Top}, s.Radius})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *TankSection) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tank section must be [[bottom, top], radius]: %w", err)
	}
	var span [2]float64
	if err := json.Unmarshal(raw[0], &span); err != nil {
		return fmt.Errorf("tank section height range: %w", err)
	}
	var radius float64
	if err := json.Unmarshal(raw[1], &radius); err != nil {
		return fmt.Errorf("tank section radius: %w", err)
	}
	*s = TankSection{Bottom: span[0], Top: span[1], Radius: radius}
	return nil
}

// MotorTank describes a propellant tank mounted in a HYBRID or LIQUID motor.
// Only the fields of the selected tank kind are read.
type MotorTank struct {
	Name       string        `json:"name" validate:"required"`
	Geometry   []TankSection `json:"geometry" validate:"required,min=1"`
	Gas        Fluid         `json:"gas"`
	Liquid     Fluid         `json:"liquid"`
	FluxTime   [2]float64    `json:"flux_time"`
	Position   float64       `json:"position"`
	Discretize int           `json:"discretize" validate:"gte=1"`
	TankKind   TankKind      `json:"tank_kind" validate:"oneof=LEVEL MASS MASS_FLOW ULLAGE"`

	LiquidHeight *float64 `json:"liquid_height,omitempty" validate:"omitempty,gte=0"`

	LiquidMass *float64 `json:"liquid_mass,omitempty" validate:"omitempty,gte=0"`
	GasMass    *float64 `json:"gas_mass,omitempty" validate:"omitempty,gte=0"`

	GasMassFlowRateIn     *float64 `json:"gas_mass_flow_rate_in,omitempty" validate:"omitempty,gte=0"`
	GasMassFlowRateOut    *float64 `json:"gas_mass_flow_rate_out,omitempty" validate:"omitempty,gte=0"`
	LiquidMassFlowRateIn  *float64 `json:"liquid_mass_flow_rate_in,omitempty" validate:"omitempty,gte=0"`
	LiquidMassFlowRateOut *float64 `json:"liquid_mass_flow_rate_out,omitempty" validate:"omitempty,gte=0"`
	InitialLiquidMass     *float64 `json:"initial_liquid_mass,omitempty" validate:"omitempty,gte=0"`
	InitialGasMass        *float64 `json:"initial_gas_mass,omitempty" validate:"omitempty,gte=0"`

	Ullage *float64 `json:"ullage,omitempty" validate:"omitempty,gte=0"`
}

func defaultTank() MotorTank {
	return MotorTank{Discretize: 100, TankKind: LevelTank}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *MotorTank) UnmarshalJSON(data []byte) error {
	type plain MotorTank
	p := plain(defaultTank())
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	*t = MotorTank(p)
	return nil
}

func (t *MotorTank) crossCheck() error {
	for i, s := range t.Geometry {
		if s.Top <= s.Bottom || s.Radius <= 0 {
			return invalid("geometry[%d] needs top above bottom and a positive radius", i)
		}
	}
	if t.FluxTime[1] < t.FluxTime[0] {
		return invalid("flux_time must be ordered")
	}
	var fields map[string]bool
	switch t.TankKind {
	case LevelTank:
		fields = map[string]bool{"liquid_height": t.LiquidHeight != nil}
	case MassTank:
		fields = map[string]bool{
			"liquid_mass": t.LiquidMass != nil,
			"gas_mass":    t.GasMass != nil,
		}
	case MassFlowTank:
		fields = map[string]bool{
			"gas_mass_flow_rate_in":     t.GasMassFlowRateIn != nil,
			"gas_mass_flow_rate_out":    t.GasMassFlowRateOut != nil,
			"liquid_mass_flow_rate_in":  t.LiquidMassFlowRateIn != nil,
			"liquid_mass_flow_rate_out": t.LiquidMassFlowRateOut != nil,
			"initial_liquid_mass":       t.InitialLiquidMass != nil,
			"initial_gas_mass":          t.InitialGasMass != nil,
		}
	case UllageTank:
		fields = map[string]bool{"ullage": t.Ullage != nil}
	}
	return requireFields(fields, t.TankKind)
}

// requireFields fails on the first absent field, in name order.
func requireFields[K ~string](present map[string]bool, kind K) error {
	var missing []string
	for name, ok := range present {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return invalid("%s requires %s", kind, missing[0])
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
