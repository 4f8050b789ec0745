package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSurface is returned for aerodynamic surfaces with impossible
// geometry.
var ErrInvalidSurface = errors.New("invalid aerodynamic surface")

// Surface is an aerodynamic component evaluated with Barrowman's method.
// Positions are measured along the rocket axis; CenterOfPressure is the
// distance from the component's reference point towards the tail.
type Surface interface {
	Object
	Name() string
	NormalForceSlope(refRadius float64) float64
	CenterOfPressure() float64
}

// noseCPFactor is the centre of pressure as a fraction of nose length.
var noseCPFactor = map[string]float64{
	"conical":     2.0 / 3.0,
	"ogive":       0.466,
	"tangent":     0.466,
	"von karman":  0.5,
	"lvhaack":     0.437,
	"parabolic":   0.5,
	"elliptical":  0.333,
	"powerseries": 0.5,
}

// NoseCone is the forward-most body component.
type NoseCone struct {
	name         string
	Length       float64
	ConeKind     string
	BaseRadius   float64
	RocketRadius float64
	Bluffness    float64
}

// NewNoseCone validates a nose cone.
func NewNoseCone(name string, length float64, kind string, baseRadius, rocketRadius, bluffness float64) (*NoseCone, error) {
	if _, ok := noseCPFactor[kind]; !ok {
		return nil, fmt.Errorf("%w: unknown nose cone kind %q", ErrInvalidSurface, kind)
	}
	if length <= 0 || baseRadius <= 0 || rocketRadius <= 0 {
		return nil, fmt.Errorf("%w: nose cone dimensions must be positive", ErrInvalidSurface)
	}
	if bluffness < 0 || bluffness > 1 {
		return nil, fmt.Errorf("%w: bluffness %g outside [0, 1]", ErrInvalidSurface, bluffness)
	}
	return &NoseCone{name: name, Length: length, ConeKind: kind, BaseRadius: baseRadius, RocketRadius: rocketRadius, Bluffness: bluffness}, nil
}

func (n *NoseCone) Name() string { return n.name }

func (n *NoseCone) NormalForceSlope(refRadius float64) float64 {
	r := n.BaseRadius / refRadius
	return 2 * r * r
}

func (n *NoseCone) CenterOfPressure() float64 {
	// a blunted tip shortens the effective cone.
	return noseCPFactor[n.ConeKind] * n.Length * (1 - n.Bluffness*n.BaseRadius/(2*n.Length))
}

func (n *NoseCone) Kind() string { return "nose" }

func (n *NoseCone) Encode() map[string]any {
	return map[string]any{
		"name":          n.name,
		"length":        n.Length,
		"kind":          n.ConeKind,
		"base_radius":   n.BaseRadius,
		"rocket_radius": n.RocketRadius,
		"bluffness":     n.Bluffness,
	}
}

func (n *NoseCone) Attr(name string) (any, error) {
	return attrTable{
		"cp":      func() (any, error) { return n.CenterOfPressure(), nil },
		"clalpha": func() (any, error) { return n.NormalForceSlope(n.RocketRadius), nil },
	}.get(n.Kind(), name)
}

// FinsKind selects the planform of a fin set.
type FinsKind string

const (
	TrapezoidalFins FinsKind = "trapezoidal"
	EllipticalFins  FinsKind = "elliptical"
)

// Airfoil references a lift-coefficient curve for the fin section.
type Airfoil struct {
	Points [][2]float64
	Unit   string
}

// FinsConfig is the flat configuration of a fin set. SweepLength is ignored
// when SweepAngle is set.
type FinsConfig struct {
	Name         string
	FinsKind     FinsKind
	N            int
	RootChord    float64
	TipChord     float64
	Span         float64
	CantAngle    float64
	RocketRadius float64
	SweepLength  *float64
	SweepAngle   *float64
	Airfoil      *Airfoil
}

// Fins is a set of identical fins evenly spaced around the body.
type Fins struct {
	cfg   FinsConfig
	sweep float64
}

// NewFins validates a fin set and resolves its sweep.
func NewFins(cfg FinsConfig) (*Fins, error) {
	if cfg.N < 1 {
		return nil, fmt.Errorf("%w: fin count must be at least 1", ErrInvalidSurface)
	}
	if cfg.RootChord <= 0 || cfg.Span <= 0 || cfg.RocketRadius <= 0 {
		return nil, fmt.Errorf("%w: fin dimensions must be positive", ErrInvalidSurface)
	}
	f := &Fins{cfg: cfg}
	switch cfg.FinsKind {
	case TrapezoidalFins:
		if cfg.TipChord < 0 {
			return nil, fmt.Errorf("%w: tip chord must not be negative", ErrInvalidSurface)
		}
		switch {
		case cfg.SweepAngle != nil:
			f.sweep = cfg.Span * math.Tan(*cfg.SweepAngle*math.Pi/180)
			f.cfg.SweepLength = nil
		case cfg.SweepLength != nil:
			f.sweep = *cfg.SweepLength
		default:
			f.sweep = cfg.RootChord - cfg.TipChord
		}
	case EllipticalFins:
		f.cfg.TipChord = 0
		f.cfg.SweepAngle, f.cfg.SweepLength = nil, nil
		f.sweep = cfg.RootChord / 2
	default:
		return nil, fmt.Errorf("%w: unknown fins kind %q", ErrInvalidSurface, cfg.FinsKind)
	}
	return f, nil
}

func (f *Fins) Name() string { return f.cfg.Name }

// SweepLength returns the resolved leading-edge sweep in metres.
func (f *Fins) SweepLength() float64 { return f.sweep }

func (f *Fins) NormalForceSlope(refRadius float64) float64 {
	c := f.cfg
	s, r := c.Span, c.RocketRadius
	midChord := math.Hypot(s, f.sweep+c.TipChord/2-c.RootChord/2)
	interference := 1 + r/(s+r)
	four := 4 * float64(c.N) * (s / (2 * refRadius)) * (s / (2 * refRadius))
	cn := interference * four / (1 + math.Sqrt(1+math.Pow(2*midChord/(c.RootChord+c.TipChord), 2)))
	if f.cfg.FinsKind == EllipticalFins {
		// elliptical planforms carry π/4 of the rectangular area.
		cn *= math.Pi / 4
	}
	return cn * math.Cos(c.CantAngle*math.Pi/180)
}

func (f *Fins) CenterOfPressure() float64 {
	c := f.cfg
	if c.FinsKind == EllipticalFins {
		return 0.288 * c.RootChord
	}
	cr, ct := c.RootChord, c.TipChord
	return f.sweep*(cr+2*ct)/(3*(cr+ct)) + (cr+ct-cr*ct/(cr+ct))/6
}

func (f *Fins) Kind() string { return "fins" }

func (f *Fins) Encode() map[string]any {
	c := f.cfg
	out := map[string]any{
		"name":          c.Name,
		"fins_kind":     string(c.FinsKind),
		"n":             c.N,
		"root_chord":    c.RootChord,
		"span":          c.Span,
		"cant_angle":    c.CantAngle,
		"rocket_radius": c.RocketRadius,
		"sweep_length":  f.sweep,
	}
	if c.FinsKind == TrapezoidalFins {
		out["tip_chord"] = c.TipChord
	}
	if c.SweepAngle != nil {
		out["sweep_angle"] = *c.SweepAngle
	}
	if c.Airfoil != nil {
		out["airfoil"] = map[string]any{"points": c.Airfoil.Points, "unit": c.Airfoil.Unit}
	}
	return out
}

func (f *Fins) Attr(name string) (any, error) {
	return attrTable{
		"cp":           func() (any, error) { return f.CenterOfPressure(), nil },
		"clalpha":      func() (any, error) { return f.NormalForceSlope(f.cfg.RocketRadius), nil },
		"area":         func() (any, error) { return f.Area(), nil },
		"aspect_ratio": func() (any, error) { return 2 * f.cfg.Span * f.cfg.Span / f.Area(), nil },
	}.get(f.Kind(), name)
}

// Area returns the planform area of one fin.
func (f *Fins) Area() float64 {
	if f.cfg.FinsKind == EllipticalFins {
		return math.Pi * f.cfg.RootChord * f.cfg.Span / 4
	}
	return (f.cfg.RootChord + f.cfg.TipChord) * f.cfg.Span / 2
}

// Tail is a conical transition between two body radii.
type Tail struct {
	name         string
	TopRadius    float64
	BottomRadius float64
	Length       float64
	RocketRadius float64
}

// NewTail validates a tail.
func NewTail(name string, top, bottom, length, rocketRadius float64) (*Tail, error) {
	if length <= 0 || top < 0 || bottom < 0 || rocketRadius <= 0 {
		return nil, fmt.Errorf("%w: tail dimensions must be positive", ErrInvalidSurface)
	}
	if top == bottom {
		return nil, fmt.Errorf("%w: tail radii must differ", ErrInvalidSurface)
	}
	return &Tail{name: name, TopRadius: top, BottomRadius: bottom, Length: length, RocketRadius: rocketRadius}, nil
}

func (t *Tail) Name() string { return t.name }

func (t *Tail) NormalForceSlope(refRadius float64) float64 {
	return 2 * (math.Pow(t.BottomRadius/refRadius, 2) - math.Pow(t.TopRadius/refRadius, 2))
}

func (t *Tail) CenterOfPressure() float64 {
	ratio := t.TopRadius / t.BottomRadius
	return t.Length / 3 * (1 + (1-ratio)/(1-ratio*ratio))
}

func (t *Tail) Kind() string { return "tail" }

func (t *Tail) Encode() map[string]any {
	return map[string]any{
		"name":          t.name,
		"top_radius":    t.TopRadius,
		"bottom_radius": t.BottomRadius,
		"length":        t.Length,
		"radius":        t.RocketRadius,
	}
}

func (t *Tail) Attr(name string) (any, error) {
	return attrTable{
		"cp":      func() (any, error) { return t.CenterOfPressure(), nil },
		"clalpha": func() (any, error) { return t.NormalForceSlope(t.RocketRadius), nil },
		"slant_length": func() (any, error) {
			return math.Hypot(t.Length, t.TopRadius-t.BottomRadius), nil
		},
	}.get(t.Kind(), name)
}

// RailButtons locate the rocket on the launch rail.
type RailButtons struct {
	Name            string
	UpperPosition   float64
	LowerPosition   float64
	AngularPosition float64
}

func (b RailButtons) Kind() string { return "rail_buttons" }

func (b RailButtons) Encode() map[string]any {
	return map[string]any{
		"name":                  b.Name,
		"upper_button_position": b.UpperPosition,
		"lower_button_position": b.LowerPosition,
		"angular_position":      b.AngularPosition,
	}
}

func (b RailButtons) Attr(name string) (any, error) {
	return attrTable{
		"buttons_distance": value(math.Abs(b.UpperPosition - b.LowerPosition)),
	}.get(b.Kind(), name)
}
