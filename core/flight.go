package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// EquationsOfMotion selects the dynamics model used by a Flight.
type EquationsOfMotion string

const (
	// StandardEquations include the Coriolis acceleration of the rotating Earth.
	StandardEquations EquationsOfMotion = "standard"
	// SolidPropulsionEquations model an inertial launch frame.
	SolidPropulsionEquations EquationsOfMotion = "solid_propulsion"
)

// ErrIntegration is returned when the trajectory cannot be integrated.
var ErrIntegration = errors.New("flight integration failed")

// FlightConfig is the flat configuration of a flight. Zero-valued integration
// controls take their defaults.
type FlightConfig struct {
	Name              string
	RailLength        float64
	Inclination       float64
	Heading           float64
	TimeOvershoot     bool
	TerminateOnApogee bool
	EquationsOfMotion EquationsOfMotion
	MaxTime           float64
	MaxTimeStep       float64
	MinTimeStep       float64
	Rtol              float64
	Atol              float64
	Verbose           bool

	// Seed feeds the parachute sensor noise.
	Seed uint64
}

const (
	defaultMaxTime = 600.0
	defaultRtol    = 1e-6
	defaultAtol    = 6e-3
	stateDim       = 13
)

// FlightPhase records a discrete event along the trajectory.
type FlightPhase struct {
	Time  float64
	Event string
}

type chuteState struct {
	p          *Parachute
	nextSample float64
	noise      float64
	triggered  bool
	release    float64
}

// Flight integrates a rocket trajectory through an environment. The
// trajectory is computed on construction.
type Flight struct {
	cfg      FlightConfig
	env      *Environment
	rocket   *Rocket
	dir      Vec3
	attitude [4]float64

	onRail bool
	chutes []*chuteState
	rng    *rand.Rand
	omega  Vec3

	solution [][]float64
	phases   []FlightPhase
	evals    int

	outOfRailTime     float64
	outOfRailVelocity float64
	apogee            float64
	apogeeTime        float64
	apogeeX, apogeeY  float64
	impactTime        float64
	impactVelocity    float64
	xImpact, yImpact  float64
	impacted          bool

	X, Y, Z         *Function
	Vx, Vy, Vz      *Function
	Altitude        *Function
	Speed           *Function
	MachNumber      *Function
	DynamicPressure *Function

	attrs attrTable
}

// NewFlight validates the configuration and integrates the trajectory.
func NewFlight(ctx context.Context, env *Environment, rocket *Rocket, cfg FlightConfig) (*Flight, error) {
	if env == nil || rocket == nil {
		return nil, fmt.Errorf("%w: flight needs an environment and a rocket", ErrIntegration)
	}
	if rocket.Motor() == nil {
		return nil, fmt.Errorf("%w: rocket has no motor", ErrIntegration)
	}
	if cfg.RailLength <= 0 {
		return nil, fmt.Errorf("%w: rail length must be positive", ErrIntegration)
	}
	if cfg.Inclination < 0 || cfg.Inclination > 90 {
		return nil, fmt.Errorf("%w: inclination %g outside [0, 90]", ErrIntegration, cfg.Inclination)
	}
	if cfg.Name == "" {
		cfg.Name = "flight"
	}
	if cfg.EquationsOfMotion == "" {
		cfg.EquationsOfMotion = StandardEquations
	}
	if cfg.MaxTime <= 0 {
		cfg.MaxTime = defaultMaxTime
	}
	if cfg.MaxTimeStep <= 0 {
		cfg.MaxTimeStep = math.Inf(1)
	}
	if cfg.Rtol <= 0 {
		cfg.Rtol = defaultRtol
	}
	if cfg.Atol <= 0 {
		cfg.Atol = defaultAtol
	}
	if cfg.MinTimeStep < 0 || cfg.MinTimeStep > cfg.MaxTimeStep {
		return nil, fmt.Errorf("%w: time step bounds [%g, %g] are inconsistent", ErrIntegration, cfg.MinTimeStep, cfg.MaxTimeStep)
	}

	f := &Flight{
		cfg:    cfg,
		env:    env,
		rocket: rocket,
		dir:    launchDirection(cfg.Inclination, cfg.Heading),
		onRail: true,
		rng:    rand.New(rand.NewPCG(cfg.Seed, 0x5eed)),
	}
	f.attitude = attitudeQuaternion(f.dir)
	lat := env.Latitude() * math.Pi / 180
	f.omega = Vec3{Y: EarthRotationRate * math.Cos(lat), Z: EarthRotationRate * math.Sin(lat)}
	for _, p := range rocket.Parachutes() {
		f.chutes = append(f.chutes, &chuteState{p: p, nextSample: 1 / p.SamplingRate})
	}
	if err := f.integrate(ctx); err != nil {
		return nil, err
	}
	f.buildFunctions()
	f.attrs = f.attributeTable()
	return f, nil
}

// attitudeQuaternion returns the rotation carrying the body axis +Z onto d.
func attitudeQuaternion(d Vec3) [4]float64 {
	up := Vec3{Z: 1}
	axis := up.Cross(d)
	angle := math.Acos(clamp(up.Dot(d), -1, 1))
	if axis.Norm() < 1e-12 {
		return [4]float64{1, 0, 0, 0}
	}
	axis = axis.Unit()
	s := math.Sin(angle / 2)
	return [4]float64{math.Cos(angle / 2), axis.X * s, axis.Y * s, axis.Z * s}
}

func (f *Flight) initialState() []float64 {
	y := make([]float64, stateDim)
	y[2] = f.env.Elevation()
	copy(y[6:10], f.attitude[:])
	return y
}

// derivatives is the right-hand side of the translational dynamics.
func (f *Flight) derivatives(t float64, y, out []float64) {
	for i := range out {
		out[i] = 0
	}
	pos := Vec3{y[0], y[1], y[2]}
	vel := Vec3{y[3], y[4], y[5]}
	h := pos.Z
	mass := f.rocket.TotalMass.Eval(t)
	rho := f.env.Density.Eval(h)
	g := f.env.Gravity.Eval(h)
	thrust := f.rocket.Thrust(t)

	if f.onRail {
		speed := vel.Dot(f.dir)
		mach := speed / f.env.SpeedOfSound.Eval(h)
		drag := 0.5 * rho * speed * speed * f.rocket.DragCoefficient(t, mach) * f.rocket.Area()
		a := (thrust-drag)/mass - g*f.dir.Z
		if a < 0 && speed <= 0 {
			a = 0
		}
		v := f.dir.Scale(math.Max(speed, 0))
		out[0], out[1], out[2] = v.X, v.Y, v.Z
		out[3], out[4], out[5] = a*f.dir.X, a*f.dir.Y, a*f.dir.Z
		return
	}

	wind := Vec3{f.env.WindVelocityX.Eval(h), f.env.WindVelocityY.Eval(h), 0}
	rel := vel.Sub(wind)
	speed := rel.Norm()
	axis := f.dir
	if speed > 1e-6 {
		axis = rel.Unit()
	}
	acc := axis.Scale(thrust / mass)
	if speed > 0 {
		mach := speed / f.env.SpeedOfSound.Eval(h)
		cdA := f.rocket.DragCoefficient(t, mach) * f.rocket.Area()
		for _, c := range f.chutes {
			if c.triggered && t >= c.release {
				cdA += c.p.CdS
			}
		}
		acc = acc.Sub(rel.Scale(0.5 * rho * speed * cdA / mass))
	}
	acc.Z -= g
	if f.cfg.EquationsOfMotion == StandardEquations {
		acc = acc.Sub(f.omega.Cross(vel).Scale(2))
	}
	out[0], out[1], out[2] = vel.X, vel.Y, vel.Z
	out[3], out[4], out[5] = acc.X, acc.Y, acc.Z
}

func (f *Flight) integrate(ctx context.Context) error {
	cfg := f.cfg
	st := newStepper(f.derivatives, stateDim, cfg.Rtol, cfg.Atol, cfg.MinTimeStep, cfg.MaxTimeStep)
	t, y := 0.0, f.initialState()
	elevation := f.env.Elevation()
	origin := Vec3{y[0], y[1], y[2]}
	f.record(t, y)
	f.phases = append(f.phases, FlightPhase{Time: 0, Event: "rail"})
	f.apogee, f.apogeeTime = elevation, 0

	h := math.Min(0.01, cfg.MaxTimeStep)
	for iter := 0; t < cfg.MaxTime; iter++ {
		if iter%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		step := math.Min(h, cfg.MaxTime-t)
		if !cfg.TimeOvershoot {
			if next, ok := f.nextSampleTime(); ok && next > t && next-t < step {
				step = next - t
			}
		}
		next, taken, proposal := st.step(t, y, step)
		for _, v := range next {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite state at t=%g", ErrIntegration, t)
			}
		}
		tNext := t + taken

		if f.onRail {
			travelled := Vec3{next[0], next[1], next[2]}.Sub(origin).Dot(f.dir)
			if travelled >= cfg.RailLength {
				f.onRail = false
				f.outOfRailTime = tNext
				f.outOfRailVelocity = Vec3{next[3], next[4], next[5]}.Norm()
				f.phases = append(f.phases, FlightPhase{Time: tNext, Event: "rail exit"})
			}
		}

		f.sampleTriggers(t, y, tNext, next)

		if y[5] > 0 && next[5] <= 0 {
			frac := y[5] / (y[5] - next[5])
			at := lerpState(y, next, frac)
			// vertical velocity is close to linear across the step.
			at[2] = y[2] + y[5]*frac*taken/2
			ta := t + frac*taken
			if at[2] > f.apogee {
				f.apogee, f.apogeeTime, f.apogeeX, f.apogeeY = at[2], ta, at[0], at[1]
			}
			f.phases = append(f.phases, FlightPhase{Time: ta, Event: "apogee"})
			if cfg.TerminateOnApogee {
				f.record(ta, at)
				break
			}
		}
		if next[5] > 0 && next[2] > f.apogee {
			f.apogee, f.apogeeTime, f.apogeeX, f.apogeeY = next[2], tNext, next[0], next[1]
		}

		if !f.onRail && next[2] < elevation && y[2] >= elevation {
			frac := (y[2] - elevation) / (y[2] - next[2])
			at := lerpState(y, next, frac)
			at[2] = elevation
			ti := t + frac*taken
			f.record(ti, at)
			f.impacted = true
			f.impactTime = ti
			f.impactVelocity = at[5]
			f.xImpact, f.yImpact = at[0], at[1]
			f.phases = append(f.phases, FlightPhase{Time: ti, Event: "impact"})
			break
		}

		f.record(tNext, next)
		t, y, h = tNext, next, proposal
	}
	f.evals = st.evals
	if len(f.solution) < 2 {
		return fmt.Errorf("%w: no trajectory was produced", ErrIntegration)
	}
	return nil
}

// nextSampleTime returns the earliest pending parachute sampling instant.
func (f *Flight) nextSampleTime() (float64, bool) {
	best, ok := math.Inf(1), false
	for _, c := range f.chutes {
		if !c.triggered && c.nextSample < best {
			best, ok = c.nextSample, true
		}
	}
	return best, ok
}

// sampleTriggers evaluates every pending parachute at each of its sampling
// instants inside (t0, t1].
func (f *Flight) sampleTriggers(t0 float64, y0 []float64, t1 float64, y1 []float64) {
	if f.onRail {
		return
	}
	elevation := f.env.Elevation()
	for _, c := range f.chutes {
		for !c.triggered && c.nextSample <= t1+1e-9 {
			ts := c.nextSample
			c.nextSample += 1 / c.p.SamplingRate
			if ts <= t0 {
				continue
			}
			state := lerpState(y0, y1, (ts-t0)/(t1-t0))
			mean, std, corr := c.p.Noise[0], c.p.Noise[1], c.p.Noise[2]
			c.noise = corr*c.noise + math.Sqrt(1-corr*corr)*std*f.rng.NormFloat64()
			pressure := f.env.Pressure.Eval(state[2]) + mean + c.noise
			if c.p.Trigger(pressure, state[2]-elevation, state) {
				c.triggered = true
				c.release = ts + c.p.Lag
				f.phases = append(f.phases, FlightPhase{Time: ts, Event: "parachute " + c.p.Name + " triggered"})
			}
		}
	}
}

func lerpState(a, b []float64, frac float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + (b[i]-a[i])*frac
	}
	return out
}

func (f *Flight) record(t float64, y []float64) {
	row := make([]float64, 0, stateDim+1)
	row = append(row, t)
	row = append(row, y...)
	f.solution = append(f.solution, row)
}

func (f *Flight) column(i int, output string) *Function {
	points := make([][2]float64, len(f.solution))
	for k, row := range f.solution {
		points[k] = [2]float64{row[0], row[i]}
	}
	return MustFunction(points, timeInput, output)
}

func (f *Flight) buildFunctions() {
	f.X = f.column(1, "X (m)")
	f.Y = f.column(2, "Y (m)")
	f.Z = f.column(3, "Z (m)")
	f.Vx = f.column(4, "Vx (m/s)")
	f.Vy = f.column(5, "Vy (m/s)")
	f.Vz = f.column(6, "Vz (m/s)")
	elevation := f.env.Elevation()
	f.Altitude = f.Z.Map("Altitude AGL (m)", func(_, z float64) float64 { return z - elevation })

	speed := make([][2]float64, len(f.solution))
	mach := make([][2]float64, len(f.solution))
	dyn := make([][2]float64, len(f.solution))
	for k, row := range f.solution {
		h := row[3]
		wind := Vec3{f.env.WindVelocityX.Eval(h), f.env.WindVelocityY.Eval(h), 0}
		v := Vec3{row[4], row[5], row[6]}
		rel := v.Sub(wind).Norm()
		speed[k] = [2]float64{row[0], v.Norm()}
		mach[k] = [2]float64{row[0], rel / f.env.SpeedOfSound.Eval(h)}
		dyn[k] = [2]float64{row[0], 0.5 * f.env.Density.Eval(h) * rel * rel}
	}
	f.Speed = MustFunction(speed, timeInput, "Speed (m/s)")
	f.MachNumber = MustFunction(mach, timeInput, "Mach Number")
	f.DynamicPressure = MustFunction(dyn, timeInput, "Dynamic Pressure (Pa)")
}

// Solution returns the trajectory rows [t, x, y, z, vx, vy, vz, e0, e1, e2,
// e3, w1, w2, w3].
func (f *Flight) Solution() [][]float64 { return f.solution }

// Apogee returns the highest altitude above sea level reached.
func (f *Flight) Apogee() float64 { return f.apogee }

// OutOfRailVelocity returns the speed at rail exit, zero if never left.
func (f *Flight) OutOfRailVelocity() float64 { return f.outOfRailVelocity }

// Phases returns the discrete events recorded while integrating.
func (f *Flight) Phases() []FlightPhase { return f.phases }

// Impacted reports whether the flight ended at ground level.
func (f *Flight) Impacted() bool { return f.impacted }

func (f *Flight) Kind() string { return "flight" }

func (f *Flight) Encode() map[string]any {
	phases := make([]map[string]any, 0, len(f.phases))
	for _, p := range f.phases {
		phases = append(phases, map[string]any{"time": p.Time, "event": p.Event})
	}
	last := f.solution[len(f.solution)-1]
	return map[string]any{
		"name":                 f.cfg.Name,
		"env":                  f.env,
		"rocket":               f.rocket,
		"rail_length":          f.cfg.RailLength,
		"inclination":          f.cfg.Inclination,
		"heading":              f.cfg.Heading,
		"terminate_on_apogee":  f.cfg.TerminateOnApogee,
		"time_overshoot":       f.cfg.TimeOvershoot,
		"equations_of_motion":  string(f.cfg.EquationsOfMotion),
		"max_time":             f.cfg.MaxTime,
		"max_time_step":        finiteOrZero(f.cfg.MaxTimeStep),
		"min_time_step":        f.cfg.MinTimeStep,
		"rtol":                 f.cfg.Rtol,
		"atol":                 f.cfg.Atol,
		"solution":             f.solution,
		"t_final":              last[0],
		"flight_phases":        phases,
		"function_evaluations": f.evals,
		"x":                    f.X,
		"y":                    f.Y,
		"z":                    f.Z,
		"vx":                   f.Vx,
		"vy":                   f.Vy,
		"vz":                   f.Vz,
	}
}

func (f *Flight) Attr(name string) (any, error) { return f.attrs.get(f.Kind(), name) }

// AttrNames lists the derived attributes available through Attr.
func (f *Flight) AttrNames() []string { return f.attrs.names() }

func (f *Flight) attributeTable() attrTable {
	lat0, lon0 := f.env.Latitude(), f.env.Longitude()
	t := attrTable{
		"apogee":               value(f.apogee),
		"apogee_time":          value(f.apogeeTime),
		"apogee_x":             value(f.apogeeX),
		"apogee_y":             value(f.apogeeY),
		"out_of_rail_time":     value(f.outOfRailTime),
		"out_of_rail_velocity": value(f.outOfRailVelocity),
		"altitude":             value(f.Altitude),
		"speed":                value(f.Speed),
		"mach_number":          value(f.MachNumber),
		"dynamic_pressure":     value(f.DynamicPressure),
		"max_speed": func() (any, error) {
			_, v := f.Speed.Max()
			return v, nil
		},
		"max_mach_number": func() (any, error) {
			_, v := f.MachNumber.Max()
			return v, nil
		},
		"apogee_altitude": func() (any, error) { return f.apogee - f.env.Elevation(), nil },
		"apogee_latitude": func() (any, error) {
			lat, _ := offsetToLatLon(lat0, lon0, f.apogeeX, f.apogeeY)
			return lat, nil
		},
		"apogee_longitude": func() (any, error) {
			_, lon := offsetToLatLon(lat0, lon0, f.apogeeX, f.apogeeY)
			return lon, nil
		},
	}
	if f.impacted {
		t["impact_velocity"] = value(f.impactVelocity)
		t["x_impact"] = value(f.xImpact)
		t["y_impact"] = value(f.yImpact)
		t["impact_time"] = value(f.impactTime)
		t["latitude"] = func() (any, error) {
			lat, _ := offsetToLatLon(lat0, lon0, f.xImpact, f.yImpact)
			return lat, nil
		}
		t["longitude"] = func() (any, error) {
			_, lon := offsetToLatLon(lat0, lon0, f.xImpact, f.yImpact)
			return lon, nil
		}
	}
	return t
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
