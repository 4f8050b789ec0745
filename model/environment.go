package model

import (
	"time"
)

// AtmosphericModel names an atmosphere source.
type AtmosphericModel string

const (
	StandardAtmosphere AtmosphericModel = "standard_atmosphere"
	CustomAtmosphere   AtmosphericModel = "custom_atmosphere"
	WyomingSounding    AtmosphericModel = "wyoming_sounding"
	Forecast           AtmosphericModel = "forecast"
	Reanalysis         AtmosphericModel = "reanalysis"
	Ensemble           AtmosphericModel = "ensemble"
)

// DefaultDateOffset is added to the current time when an environment is
// submitted without a date.
const DefaultDateOffset = 24 * time.Hour

// Environment describes a launch site and its atmosphere.
type Environment struct {
	Identity `json:"-"`

	Latitude             *float64         `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude            *float64         `json:"longitude" validate:"required,gte=-180,lte=180"`
	Elevation            float64          `json:"elevation"`
	AtmosphericModelType AtmosphericModel `json:"atmospheric_model_type" validate:"oneof=standard_atmosphere custom_atmosphere wyoming_sounding forecast reanalysis ensemble"`
	AtmosphericModelFile string           `json:"atmospheric_model_file,omitempty"`
	Date                 time.Time        `json:"date"`
}

// NewEnvironment returns an Environment with defaults applied.
func NewEnvironment() *Environment {
	return &Environment{AtmosphericModelType: StandardAtmosphere}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Environment) UnmarshalJSON(data []byte) error {
	type plain Environment
	p := plain(*NewEnvironment())
	if err := decodeObject(data, &p); err != nil {
		return err
	}
	id := e.id
	*e = Environment(p)
	e.id = id
	return nil
}

// ApplyDefaults stamps the reference date when none was given.
func (e *Environment) ApplyDefaults(now time.Time) {
	if e.Date.IsZero() {
		e.Date = now.Add(DefaultDateOffset).UTC().Truncate(time.Second)
	}
}

// Validate implements Resource.
func (e *Environment) Validate() error {
	if err := checkStruct(e); err != nil {
		return err
	}
	return e.crossCheck()
}

func (e *Environment) crossCheck() error {
	if e.Date.IsZero() {
		return invalid("date is required")
	}
	return nil
}
