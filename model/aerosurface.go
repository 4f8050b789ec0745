package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var noseKinds = map[string]bool{
	"conical":     true,
	"ogive":       true,
	"tangent":     true,
	"von karman":  true,
	"lvhaack":     true,
	"parabolic":   true,
	"elliptical":  true,
	"powerseries": true,
}

// NoseCone describes the nose of a rocket.
type NoseCone struct {
	Name         string   `json:"name"`
	Length       float64  `json:"length" validate:"gt=0"`
	Kind         string   `json:"kind" validate:"required"`
	Position     float64  `json:"position"`
	BaseRadius   float64  `json:"base_radius" validate:"gt=0"`
	RocketRadius float64  `json:"rocket_radius" validate:"gt=0"`
	Bluffness    *float64 `json:"bluffness,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NoseCone) UnmarshalJSON(data []byte) error {
	type plain NoseCone
	p := plain{Name: "nose"}
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	*n = NoseCone(p)
	return nil
}

func (n *NoseCone) crossCheck() error {
	if !noseKinds[strings.ToLower(n.Kind)] {
		return invalid("nose kind %q is not supported", n.Kind)
	}
	return nil
}

// FinsKind is the planform of a fin set.
type FinsKind string

const (
	TrapezoidalFins FinsKind = "trapezoidal"
	EllipticalFins  FinsKind = "elliptical"
)

// Airfoil references a lift-coefficient curve of the fin section.
type Airfoil struct {
	Points [][2]float64 `json:"points" validate:"required,min=2"`
	Unit   string       `json:"unit" validate:"oneof=radians degrees"`
}

// Fins describes a fin set. When both sweep fields are present the sweep
// angle wins.
type Fins struct {
	FinsKind     FinsKind `json:"fins_kind" validate:"oneof=trapezoidal elliptical"`
	Name         string   `json:"name"`
	N            int      `json:"n" validate:"gte=1"`
	RootChord    float64  `json:"root_chord" validate:"gt=0"`
	Span         float64  `json:"span" validate:"gt=0"`
	Position     float64  `json:"position"`
	TipChord     *float64 `json:"tip_chord,omitempty" validate:"omitempty,gte=0"`
	CantAngle    float64  `json:"cant_angle"`
	RocketRadius float64  `json:"rocket_radius" validate:"gt=0"`
	Airfoil      *Airfoil `json:"airfoil,omitempty"`
	SweepLength  *float64 `json:"sweep_length,omitempty"`
	SweepAngle   *float64 `json:"sweep_angle,omitempty" validate:"omitempty,gt=-90,lt=90"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Fins) UnmarshalJSON(data []byte) error {
	type plain Fins
	p := plain{Name: "fins", FinsKind: TrapezoidalFins}
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	*f = Fins(p)
	return nil
}

func (f *Fins) crossCheck() error {
	if f.FinsKind == TrapezoidalFins && f.TipChord == nil {
		return invalid("trapezoidal fins require tip_chord")
	}
	return nil
}

// Tail describes a transition between two body radii.
type Tail struct {
	Name         string  `json:"name"`
	TopRadius    float64 `json:"top_radius" validate:"gte=0"`
	BottomRadius float64 `json:"bottom_radius" validate:"gte=0"`
	Length       float64 `json:"length" validate:"gt=0"`
	Position     float64 `json:"position"`
	Radius       float64 `json:"radius" validate:"gt=0"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tail) UnmarshalJSON(data []byte) error {
	type plain Tail
	p := plain{Name: "tail"}
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	*t = Tail(p)
	return nil
}

func (t *Tail) crossCheck() error {
	if t.TopRadius == t.BottomRadius {
		return invalid("tail top_radius and bottom_radius must differ")
	}
	return nil
}

// RailButtons describes the launch rail guides.
type RailButtons struct {
	Name                string  `json:"name"`
	UpperButtonPosition float64 `json:"upper_button_position"`
	LowerButtonPosition float64 `json:"lower_button_position"`
	AngularPosition     float64 `json:"angular_position"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *RailButtons) UnmarshalJSON(data []byte) error {
	type plain RailButtons
	p := plain{Name: "rail_buttons", AngularPosition: 45}
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	*b = RailButtons(p)
	return nil
}

// Trigger is a parachute trigger given either as a number (a deployment
// height) or as an expression string. Admissibility is decided when the
// rocket is materialised, not here.
type Trigger struct {
	Expr   string
	Number *float64
}

// NumberTrigger returns a numeric trigger.
func NumberTrigger(v float64) Trigger { return Trigger{Number: &v} }

// ExprTrigger returns an expression trigger.
func ExprTrigger(s string) Trigger { return Trigger{Expr: s} }

// IsZero reports whether no trigger was given.
func (t Trigger) IsZero() bool { return t.Number == nil && strings.TrimSpace(t.Expr) == "" }

// String returns the trigger source text.
func (t Trigger) String() string {
	if t.Number != nil {
		return strconv.FormatFloat(*t.Number, 'g', -1, 64)
	}
	return t.Expr
}

// MarshalJSON implements json.Marshaler.
func (t Trigger) MarshalJSON() ([]byte, error) {
	if t.Number != nil {
		return json.Marshal(*t.Number)
	}
	return json.Marshal(t.Expr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = ExprTrigger(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("trigger must be a number or a string: %w", err)
	}
	*t = NumberTrigger(v)
	return nil
}

// Parachute describes a recovery device.
type Parachute struct {
	Name         string     `json:"name" validate:"required"`
	CdS          float64    `json:"cd_s" validate:"gt=0"`
	Trigger      Trigger    `json:"trigger"`
	SamplingRate float64    `json:"sampling_rate" validate:"gt=0"`
	Lag          float64    `json:"lag" validate:"gte=0"`
	Noise        [3]float64 `json:"noise"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Parachute) UnmarshalJSON(data []byte) error {
	type plain Parachute
	v := plain{SamplingRate: 100, Lag: 1.5}
	if err := decodeObject(data, &v); err != nil {
		return err
	}
	*p = Parachute(v)
	return nil
}

func (p *Parachute) crossCheck() error {
	if p.Trigger.IsZero() {
		return invalid("parachute %q requires a trigger", p.Name)
	}
	if p.Noise[1] < 0 {
		return invalid("parachute %q noise standard deviation must not be negative", p.Name)
	}
	if p.Noise[2] < 0 || p.Noise[2] >= 1 {
		return invalid("parachute %q noise correlation must be in [0, 1)", p.Name)
	}
	return nil
}
