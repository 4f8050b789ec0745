package model

import (
	"fmt"
)

// Rocket describes a rocket with its motor and aerodynamic components.
type Rocket struct {
	Identity `json:"-"`

	Motor                       Motor           `json:"motor"`
	Radius                      float64         `json:"radius" validate:"gt=0"`
	Mass                        float64         `json:"mass" validate:"gt=0"`
	MotorPosition               float64         `json:"motor_position"`
	CenterOfMassWithoutMotor    float64         `json:"center_of_mass_without_motor"`
	Inertia                     []float64       `json:"inertia"`
	PowerOffDrag                [][2]float64    `json:"power_off_drag" validate:"min=1"`
	PowerOnDrag                 [][2]float64    `json:"power_on_drag" validate:"min=1"`
	CoordinateSystemOrientation string          `json:"coordinate_system_orientation" validate:"oneof=tail_to_nose nose_to_tail"`
	Nose                        NoseCone        `json:"nose"`
	Fins                        List[Fins]      `json:"fins" validate:"min=1,dive"`
	Tail                        *Tail           `json:"tail,omitempty"`
	RailButtons                 *RailButtons    `json:"rail_buttons,omitempty"`
	Parachutes                  List[Parachute] `json:"parachutes,omitempty" validate:"omitempty,dive"`
}

func defaultRocket() Rocket {
	return Rocket{
		Inertia:                     []float64{0, 0, 0},
		PowerOffDrag:                [][2]float64{{0, 0}},
		PowerOnDrag:                 [][2]float64{{0, 0}},
		CoordinateSystemOrientation: "tail_to_nose",
	}
}

// NewRocket returns a Rocket with defaults applied.
func NewRocket() *Rocket {
	r := defaultRocket()
	return &r
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rocket) UnmarshalJSON(data []byte) error {
	type plain Rocket
	p := plain(defaultRocket())
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	id := r.id
	*r = Rocket(p)
	r.id = id
	return nil
}

// Validate implements Resource.
func (r *Rocket) Validate() error {
	if err := checkStruct(r); err != nil {
		return err
	}
	return r.crossCheck()
}

func (r *Rocket) crossCheck() error {
	if len(r.Motor.ThrustSource) == 0 {
		return invalid("rocket requires a motor")
	}
	if err := r.Motor.crossCheck(); err != nil {
		return fmt.Errorf("motor: %w", err)
	}
	if n := len(r.Inertia); n != 3 && n != 6 {
		return invalid("inertia must have 3 or 6 components, got %d", n)
	}
	if err := r.Nose.crossCheck(); err != nil {
		return err
	}
	for i := range r.Fins {
		if err := r.Fins[i].crossCheck(); err != nil {
			return fmt.Errorf("fins[%d]: %w", i, err)
		}
	}
	if r.Tail != nil {
		if err := r.Tail.crossCheck(); err != nil {
			return err
		}
	}
	for i := range r.Parachutes {
		if err := r.Parachutes[i].crossCheck(); err != nil {
			return fmt.Errorf("parachutes[%d]: %w", i, err)
		}
	}
	return nil
}
