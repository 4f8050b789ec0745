package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Flight describes a launch of a rocket from an environment. Both are
// embedded by value.
type Flight struct {
	Identity `json:"-"`

	Name              string      `json:"name"`
	Environment       Environment `json:"environment"`
	Rocket            Rocket      `json:"rocket"`
	RailLength        float64     `json:"rail_length" validate:"gt=0"`
	TimeOvershoot     bool        `json:"time_overshoot"`
	TerminateOnApogee bool        `json:"terminate_on_apogee"`
	EquationsOfMotion string      `json:"equations_of_motion" validate:"oneof=standard solid_propulsion"`
	Inclination       float64     `json:"inclination" validate:"gte=0,lte=90"`
	Heading           float64     `json:"heading" validate:"gte=0,lte=360"`

	MaxTime     *float64 `json:"max_time,omitempty" validate:"omitempty,gt=0"`
	MaxTimeStep *float64 `json:"max_time_step,omitempty" validate:"omitempty,gt=0"`
	MinTimeStep *float64 `json:"min_time_step,omitempty" validate:"omitempty,gte=0"`
	Rtol        *float64 `json:"rtol,omitempty" validate:"omitempty,gt=0"`
	Atol        *float64 `json:"atol,omitempty" validate:"omitempty,gt=0"`
	Verbose     *bool    `json:"verbose,omitempty"`
}

func defaultFlight() Flight {
	return Flight{
		Name:              "flight",
		Environment:       *NewEnvironment(),
		Rocket:            defaultRocket(),
		RailLength:        1,
		TimeOvershoot:     true,
		EquationsOfMotion: "standard",
		Inclination:       90,
	}
}

// NewFlight returns a Flight with defaults applied.
func NewFlight() *Flight {
	f := defaultFlight()
	return &f
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flight) UnmarshalJSON(data []byte) error {
	type plain Flight
	p := plain(defaultFlight())
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	id := f.id
	*f = Flight(p)
	f.id = id
	return nil
}

// ApplyDefaults stamps time-dependent defaults of the embedded environment.
func (f *Flight) ApplyDefaults(now time.Time) {
	f.Environment.ApplyDefaults(now)
}

// Validate implements Resource.
func (f *Flight) Validate() error {
	if err := checkStruct(f); err != nil {
		return err
	}
	if err := f.Environment.crossCheck(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if err := f.Rocket.crossCheck(); err != nil {
		return fmt.Errorf("rocket: %w", err)
	}
	if f.MaxTimeStep != nil && f.MinTimeStep != nil && *f.MinTimeStep > *f.MaxTimeStep {
		return invalid("min_time_step must not exceed max_time_step")
	}
	return nil
}

// FlightReferences is the body of the reference-based flight flows: the
// identifiers of a stored environment and rocket plus the flight-only fields.
type FlightReferences struct {
	EnvironmentID string          `json:"environment_id" validate:"required"`
	RocketID      string          `json:"rocket_id" validate:"required"`
	Flight        json.RawMessage `json:"flight"`
}

// Check validates the reference fields.
func (r *FlightReferences) Check() error { return checkStruct(r) }

// Compose builds a Flight from the flight-partial and the resolved
// references. Fields of the partial that name an environment or rocket are
// overridden by the references.
func (r *FlightReferences) Compose(env *Environment, rocket *Rocket) (*Flight, error) {
	f := NewFlight()
	if len(r.Flight) > 0 {
		if err := json.Unmarshal(r.Flight, f); err != nil {
			return nil, fmt.Errorf("%w: flight: %v", ErrValidation, err)
		}
	}
	f.Environment = *env
	f.Environment.SetID("")
	f.Rocket = *rocket
	f.Rocket.SetID("")
	return f, nil
}

// RocketMotorReference is the body of the reference-based rocket flows.
type RocketMotorReference struct {
	MotorID string          `json:"motor_id" validate:"required"`
	Rocket  json.RawMessage `json:"rocket"`
}

// Check validates the reference fields.
func (r *RocketMotorReference) Check() error { return checkStruct(r) }

// Compose builds a Rocket from the rocket-partial and the resolved motor.
func (r *RocketMotorReference) Compose(motor *Motor) (*Rocket, error) {
	rocket := NewRocket()
	if len(r.Rocket) > 0 {
		if err := json.Unmarshal(r.Rocket, rocket); err != nil {
			return nil, fmt.Errorf("%w: rocket: %v", ErrValidation, err)
		}
	}
	rocket.Motor = *motor
	rocket.Motor.SetID("")
	return rocket, nil
}
