package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// AtmosphericModel names the supported atmosphere sources.
type AtmosphericModel string

const (
	StandardAtmosphere AtmosphericModel = "standard_atmosphere"
	CustomAtmosphere   AtmosphericModel = "custom_atmosphere"
	WyomingSounding    AtmosphericModel = "wyoming_sounding"
	Forecast           AtmosphericModel = "forecast"
	Reanalysis         AtmosphericModel = "reanalysis"
	Ensemble           AtmosphericModel = "ensemble"
)

var (
	// ErrUnsupportedModel is returned for atmospheric models that need gridded
	// weather data this engine cannot read.
	ErrUnsupportedModel = errors.New("unsupported atmospheric model")
	// ErrModelSource is returned when a model file cannot be retrieved.
	ErrModelSource = errors.New("atmospheric model source unavailable")
)

// SourceFetcher retrieves atmospheric model files referenced by URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
}

// EnvironmentConfig is the flat configuration of a launch site.
type EnvironmentConfig struct {
	Latitude  float64
	Longitude float64
	Elevation float64
	Date      time.Time
	Timezone  string
}

// Environment is a live launch-site model: gravity, atmosphere and wind as
// functions of height above sea level.
type Environment struct {
	cfg      EnvironmentConfig
	location *time.Location

	modelType AtmosphericModel
	modelFile string

	Gravity          *Function
	Pressure         *Function
	Temperature      *Function
	Density          *Function
	SpeedOfSound     *Function
	DynamicViscosity *Function
	WindVelocityX    *Function
	WindVelocityY    *Function
	WindSpeed        *Function
	WindHeading      *Function

	maxExpectedHeight float64
	attrs             attrTable
}

// NewEnvironment builds an Environment with the standard atmosphere applied.
func NewEnvironment(cfg EnvironmentConfig) *Environment {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	if cfg.Date.IsZero() {
		cfg.Date = time.Now().Add(24 * time.Hour)
	}
	env := &Environment{cfg: cfg, location: loc}

	radius := EarthRadiusAt(cfg.Latitude)
	env.Gravity = NewCallable(func(h float64) float64 {
		r := radius / (radius + h)
		return StandardGravity * r * r
	}, heightInput, "Gravity (m/s²)")

	env.apply(StandardAtmosphere, "", standardAtmosphere())
	env.attrs = env.attributeTable()
	return env
}

// SetAtmosphericModel replaces the atmosphere profiles.
func (e *Environment) SetAtmosphericModel(ctx context.Context, kind AtmosphericModel, file string, fetcher SourceFetcher) error {
	switch kind {
	case StandardAtmosphere, CustomAtmosphere, "":
		// custom atmospheres without explicit profiles fall back to ISA and calm air.
		if kind == "" {
			kind = StandardAtmosphere
		}
		e.apply(kind, file, standardAtmosphere())
		return nil
	case WyomingSounding:
		if file == "" {
			return fmt.Errorf("%w: wyoming_sounding requires a model file URL", ErrModelSource)
		}
		if fetcher == nil {
			return fmt.Errorf("%w: no fetcher configured", ErrModelSource)
		}
		body, err := fetcher.Fetch(ctx, file)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrModelSource, err)
		}
		defer body.Close()
		atm, err := parseWyomingSounding(body)
		if err != nil {
			return err
		}
		e.apply(kind, file, atm)
		return nil
	case Forecast, Reanalysis, Ensemble:
		return fmt.Errorf("%w: %s", ErrUnsupportedModel, kind)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedModel, kind)
	}
}

func (e *Environment) apply(kind AtmosphericModel, file string, atm atmosphere) {
	e.modelType = kind
	e.modelFile = file
	e.Pressure = atm.pressure
	e.Temperature = atm.temperature
	e.WindVelocityX = atm.windX
	e.WindVelocityY = atm.windY
	e.maxExpectedHeight = atm.maxHeight

	temp := e.Temperature
	pres := e.Pressure
	e.Density = NewCallable(func(h float64) float64 {
		return pres.Eval(h) / (AirGasConstant * temp.Eval(h))
	}, heightInput, "Density (kg/m³)")
	e.SpeedOfSound = NewCallable(func(h float64) float64 {
		return math.Sqrt(airHeatRatio * AirGasConstant * temp.Eval(h))
	}, heightInput, "Speed of Sound (m/s)")
	e.DynamicViscosity = NewCallable(func(h float64) float64 {
		t := temp.Eval(h)
		return sutherlandBeta * math.Pow(t, 1.5) / (t + sutherlandConst)
	}, heightInput, "Dynamic Viscosity (Pa s)")

	wx, wy := e.WindVelocityX, e.WindVelocityY
	e.WindSpeed = NewCallable(func(h float64) float64 {
		return math.Hypot(wx.Eval(h), wy.Eval(h))
	}, heightInput, "Wind Speed (m/s)")
	e.WindHeading = NewCallable(func(h float64) float64 {
		deg := math.Atan2(wx.Eval(h), wy.Eval(h)) * 180 / math.Pi
		return math.Mod(deg+360, 360)
	}, heightInput, "Wind Heading (deg)")
}

// Latitude returns the launch-site latitude in degrees.
func (e *Environment) Latitude() float64 { return e.cfg.Latitude }

// Longitude returns the launch-site longitude in degrees.
func (e *Environment) Longitude() float64 { return e.cfg.Longitude }

// Elevation returns the launch-site height above sea level in metres.
func (e *Environment) Elevation() float64 { return e.cfg.Elevation }

// Date returns the launch reference datetime in UTC.
func (e *Environment) Date() time.Time { return e.cfg.Date.UTC() }

// ModelType returns the atmospheric model currently applied.
func (e *Environment) ModelType() AtmosphericModel { return e.modelType }

// JulianDate returns the Julian date of the launch datetime.
func (e *Environment) JulianDate() float64 {
	d := e.Date()
	return satellite.JDay(d.Year(), int(d.Month()), d.Day(), d.Hour(), d.Minute(), d.Second())
}

// Kind implements Object.
func (e *Environment) Kind() string { return "environment" }

// Encode implements Object.
func (e *Environment) Encode() map[string]any {
	return map[string]any{
		"latitude":               e.cfg.Latitude,
		"longitude":              e.cfg.Longitude,
		"elevation":              e.cfg.Elevation,
		"timezone":               e.cfg.Timezone,
		"date":                   e.Date(),
		"datetime_date":          e.Date(),
		"local_date":             e.cfg.Date.In(e.location),
		"atmospheric_model_type": string(e.modelType),
		"atmospheric_model_file": e.modelFile,
		"max_expected_height":    e.maxExpectedHeight,
		"gravity":                e.Gravity,
		"pressure":               e.Pressure,
		"temperature":            e.Temperature,
		"wind_velocity_x":        e.WindVelocityX,
		"wind_velocity_y":        e.WindVelocityY,
	}
}

// Attr implements Object.
func (e *Environment) Attr(name string) (any, error) { return e.attrs.get(e.Kind(), name) }

// AttrNames lists the derived attributes available through Attr.
func (e *Environment) AttrNames() []string { return e.attrs.names() }

func (e *Environment) attributeTable() attrTable {
	return attrTable{
		"density":            func() (any, error) { return e.Density, nil },
		"speed_of_sound":     func() (any, error) { return e.SpeedOfSound, nil },
		"dynamic_viscosity":  func() (any, error) { return e.DynamicViscosity, nil },
		"wind_speed":         func() (any, error) { return e.WindSpeed, nil },
		"wind_heading":       func() (any, error) { return e.WindHeading, nil },
		"earth_radius":       func() (any, error) { return EarthRadiusAt(e.cfg.Latitude), nil },
		"julian_date":        func() (any, error) { return e.JulianDate(), nil },
		"standard_g":         value(StandardGravity),
		"air_gas_constant":   value(AirGasConstant),
		"surface_gravity":    func() (any, error) { return e.Gravity.Eval(e.cfg.Elevation), nil },
		"surface_pressure":   func() (any, error) { return e.Pressure.Eval(e.cfg.Elevation), nil },
		"surface_density":    func() (any, error) { return e.Density.Eval(e.cfg.Elevation), nil },
		"greenwich_sidereal": func() (any, error) { return satellite.ThetaG_JD(e.JulianDate()), nil },
	}
}
