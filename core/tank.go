package core

import (
	"errors"
	"fmt"
	"math"
)

// TankKind selects how a tank's fluid content is described.
type TankKind string

const (
	LevelTank    TankKind = "LEVEL"
	MassTank     TankKind = "MASS"
	MassFlowTank TankKind = "MASS_FLOW"
	UllageTank   TankKind = "ULLAGE"
)

// ErrInvalidTank is returned when a tank configuration is physically
// inconsistent.
var ErrInvalidTank = errors.New("invalid tank")

// Fluid is a named fluid of constant density (kg/m³).
type Fluid struct {
	Name    string
	Density float64
}

// TankSection is one cylindrical slice of a tank, in the tank's own frame.
type TankSection struct {
	Bottom float64
	Top    float64
	Radius float64
}

// TankConfig is the flat configuration of a propellant tank. Only the fields
// of the selected Kind are read.
type TankConfig struct {
	Name       string
	Kind       TankKind
	Geometry   []TankSection
	Gas        Fluid
	Liquid     Fluid
	FluxTime   [2]float64
	Discretize int

	LiquidHeight float64

	LiquidMass float64
	GasMass    float64

	GasMassFlowRateIn     float64
	GasMassFlowRateOut    float64
	LiquidMassFlowRateIn  float64
	LiquidMassFlowRateOut float64
	InitialLiquidMass     float64
	InitialGasMass        float64

	Ullage float64
}

// Tank is a materialised fluid tank whose contents vary over its flux window.
type Tank struct {
	cfg      TankConfig
	bottom   float64
	top      float64
	volume   float64
	t0, t1   float64
	samples  int
	geometry []TankSection

	LiquidMass   *Function
	GasMass      *Function
	FluidMass    *Function
	NetFlowRate  *Function
	LiquidHeight *Function
	CenterOfMass *Function

	attrs attrTable
}

// NewTank validates the geometry and builds the fluid-mass profiles.
func NewTank(cfg TankConfig) (*Tank, error) {
	if len(cfg.Geometry) == 0 {
		return nil, fmt.Errorf("%w: %s: geometry must have at least one section", ErrInvalidTank, cfg.Name)
	}
	if cfg.FluxTime[1] < cfg.FluxTime[0] {
		return nil, fmt.Errorf("%w: %s: flux time window is reversed", ErrInvalidTank, cfg.Name)
	}
	if cfg.Discretize <= 1 {
		cfg.Discretize = 100
	}
	if cfg.Kind == "" {
		cfg.Kind = LevelTank
	}
	t := &Tank{
		cfg:      cfg,
		bottom:   math.Inf(1),
		top:      math.Inf(-1),
		t0:       cfg.FluxTime[0],
		t1:       cfg.FluxTime[1],
		samples:  cfg.Discretize,
		geometry: cfg.Geometry,
	}
	for _, s := range cfg.Geometry {
		if s.Top <= s.Bottom || s.Radius <= 0 {
			return nil, fmt.Errorf("%w: %s: section [%g, %g] r=%g", ErrInvalidTank, cfg.Name, s.Bottom, s.Top, s.Radius)
		}
		t.bottom = math.Min(t.bottom, s.Bottom)
		t.top = math.Max(t.top, s.Top)
	}
	t.volume = t.volumeBelow(t.top)

	liquid, gas, err := t.profiles()
	if err != nil {
		return nil, err
	}
	if err := t.build(liquid, gas); err != nil {
		return nil, err
	}
	t.attrs = attrTable{
		"volume":       value(t.volume),
		"height":       value(t.top - t.bottom),
		"bottom":       value(t.bottom),
		"top":          value(t.top),
		"flux_time":    value([]float64{t.t0, t.t1}),
		"initial_mass": func() (any, error) { return t.FluidMass.Eval(t.t0), nil },
	}
	return t, nil
}

// progress returns the fraction of the flux window elapsed at time s.
func (t *Tank) progress(s float64) float64 {
	if t.t1 <= t.t0 {
		if s < t.t0 {
			return 0
		}
		return 1
	}
	return clamp((s-t.t0)/(t.t1-t.t0), 0, 1)
}

// profiles returns liquid and gas mass as functions of time for the
// configured tank kind.
func (t *Tank) profiles() (func(float64) float64, func(float64) float64, error) {
	c := t.cfg
	switch c.Kind {
	case LevelTank:
		if c.LiquidHeight < t.bottom || c.LiquidHeight > t.top {
			return nil, nil, fmt.Errorf("%w: %s: liquid height %g outside tank", ErrInvalidTank, c.Name, c.LiquidHeight)
		}
		level := func(s float64) float64 {
			return c.LiquidHeight - (c.LiquidHeight-t.bottom)*t.progress(s)
		}
		liquid := func(s float64) float64 { return c.Liquid.Density * t.volumeBelow(level(s)) }
		gas := func(s float64) float64 { return c.Gas.Density * (t.volume - t.volumeBelow(level(s))) }
		return liquid, gas, nil
	case MassTank:
		if c.LiquidMass/nonZero(c.Liquid.Density) > t.volume {
			return nil, nil, fmt.Errorf("%w: %s: liquid mass overfills tank", ErrInvalidTank, c.Name)
		}
		liquid := func(s float64) float64 { return c.LiquidMass * (1 - t.progress(s)) }
		gas := func(s float64) float64 { return c.GasMass * (1 - t.progress(s)) }
		return liquid, gas, nil
	case MassFlowTank:
		if c.InitialLiquidMass/nonZero(c.Liquid.Density) > t.volume {
			return nil, nil, fmt.Errorf("%w: %s: initial liquid mass overfills tank", ErrInvalidTank, c.Name)
		}
		elapsed := func(s float64) float64 { return t.progress(s) * (t.t1 - t.t0) }
		liquid := func(s float64) float64 {
			return math.Max(0, c.InitialLiquidMass+(c.LiquidMassFlowRateIn-c.LiquidMassFlowRateOut)*elapsed(s))
		}
		gas := func(s float64) float64 {
			return math.Max(0, c.InitialGasMass+(c.GasMassFlowRateIn-c.GasMassFlowRateOut)*elapsed(s))
		}
		return liquid, gas, nil
	case UllageTank:
		if c.Ullage < 0 || c.Ullage > t.volume {
			return nil, nil, fmt.Errorf("%w: %s: ullage %g outside [0, %g]", ErrInvalidTank, c.Name, c.Ullage, t.volume)
		}
		ullage := func(s float64) float64 { return c.Ullage + (t.volume-c.Ullage)*t.progress(s) }
		liquid := func(s float64) float64 { return c.Liquid.Density * (t.volume - ullage(s)) }
		gas := func(s float64) float64 { return c.Gas.Density * ullage(s) }
		return liquid, gas, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s: unknown tank kind %q", ErrInvalidTank, c.Name, c.Kind)
	}
}

func (t *Tank) build(liquid, gas func(float64) float64) error {
	n := t.samples
	var lm, gm, fm, lh, com [][2]float64
	for i := 0; i < n; i++ {
		s := t.t0
		if n > 1 {
			s += (t.t1 - t.t0) * float64(i) / float64(n-1)
		}
		l, g := liquid(s), gas(s)
		level := t.heightOfVolume(l / nonZero(t.cfg.Liquid.Density))
		lm = append(lm, [2]float64{s, l})
		gm = append(gm, [2]float64{s, g})
		fm = append(fm, [2]float64{s, l + g})
		lh = append(lh, [2]float64{s, level})
		com = append(com, [2]float64{s, t.centroid(level, l, g)})
		if t.t1 <= t.t0 {
			break
		}
	}
	mk := func(points [][2]float64, out string) *Function {
		if len(points) == 1 {
			return Constant(points[0][1], "Time (s)", out)
		}
		return MustFunction(points, "Time (s)", out)
	}
	t.LiquidMass = mk(lm, "Liquid Mass (kg)")
	t.GasMass = mk(gm, "Gas Mass (kg)")
	t.FluidMass = mk(fm, "Fluid Mass (kg)")
	t.LiquidHeight = mk(lh, "Liquid Height (m)")
	t.CenterOfMass = mk(com, "Center of Mass (m)")
	fluid := t.FluidMass
	t.NetFlowRate = NewCallable(func(s float64) float64 {
		if s < t.t0 || s > t.t1 {
			return 0
		}
		return fluid.Derivative(s)
	}, "Time (s)", "Net Mass Flow Rate (kg/s)")
	return nil
}

// volumeBelow returns the tank volume between its bottom and height h.
func (t *Tank) volumeBelow(h float64) float64 {
	v := 0.0
	for _, s := range t.geometry {
		lo, hi := s.Bottom, math.Min(s.Top, h)
		if hi > lo {
			v += math.Pi * s.Radius * s.Radius * (hi - lo)
		}
	}
	return v
}

// firstMomentBelow returns the integral of z dV between bottom and h.
func (t *Tank) firstMomentBelow(h float64) float64 {
	m := 0.0
	for _, s := range t.geometry {
		lo, hi := s.Bottom, math.Min(s.Top, h)
		if hi > lo {
			m += math.Pi * s.Radius * s.Radius * (hi*hi - lo*lo) / 2
		}
	}
	return m
}

// heightOfVolume inverts volumeBelow by bisection.
func (t *Tank) heightOfVolume(v float64) float64 {
	if v <= 0 {
		return t.bottom
	}
	if v >= t.volume {
		return t.top
	}
	lo, hi := t.bottom, t.top
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if t.volumeBelow(mid) < v {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// centroid returns the combined centre of mass with liquid filling up to
// level and gas occupying the rest of the tank.
func (t *Tank) centroid(level, liquid, gas float64) float64 {
	total := liquid + gas
	if total <= 0 {
		return (t.bottom + t.top) / 2
	}
	vl := t.volumeBelow(level)
	zl := (t.bottom + level) / 2
	if vl > 0 {
		zl = t.firstMomentBelow(level) / vl
	}
	vg := t.volume - vl
	zg := (level + t.top) / 2
	if vg > 0 {
		zg = (t.firstMomentBelow(t.top) - t.firstMomentBelow(level)) / vg
	}
	return (liquid*zl + gas*zg) / total
}

// Name returns the tank's name.
func (t *Tank) Name() string { return t.cfg.Name }

// Volume returns the tank's internal volume in m³.
func (t *Tank) Volume() float64 { return t.volume }

// Kind implements Object.
func (t *Tank) Kind() string { return "tank" }

// Encode implements Object.
func (t *Tank) Encode() map[string]any {
	geometry := make([][]float64, 0, len(t.geometry))
	for _, s := range t.geometry {
		geometry = append(geometry, []float64{s.Bottom, s.Top, s.Radius})
	}
	return map[string]any{
		"name":               t.cfg.Name,
		"tank_kind":          string(t.cfg.Kind),
		"geometry":           geometry,
		"flux_time":          []float64{t.t0, t.t1},
		"discretize":         t.samples,
		"gas":                map[string]any{"name": t.cfg.Gas.Name, "density": t.cfg.Gas.Density},
		"liquid":             map[string]any{"name": t.cfg.Liquid.Name, "density": t.cfg.Liquid.Density},
		"liquid_mass":        t.LiquidMass,
		"gas_mass":           t.GasMass,
		"fluid_mass":         t.FluidMass,
		"liquid_height":      t.LiquidHeight,
		"center_of_mass":     t.CenterOfMass,
		"net_mass_flow_rate": t.NetFlowRate,
	}
}

// Attr implements Object.
func (t *Tank) Attr(name string) (any, error) { return t.attrs.get(t.Kind(), name) }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func nonZero(v float64) float64 {
	if v == 0 {
		return math.SmallestNonzeroFloat64
	}
	return v
}
