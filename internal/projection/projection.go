// Package projection reduces live simulator objects to bounded,
// JSON-representable views.
//
// Continuous functions are discretised over the resource's bounds and then
// resampled to at most MaxSamples points; a flight's solution matrix is
// thinned the same way. Datetimes travel through the encoder as component
// sequences and are reassembled at the end. Finally each view merges the
// extra attributes it enumerates, best-effort per attribute.
package projection

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/rocketflight/core"
)

// MaxSamples caps the length of any projected function or matrix.
const MaxSamples = 25

// Bounds is the domain and sample count used to discretise callables.
type Bounds struct {
	Lo, Hi  float64
	Samples int
}

// View describes the projection of one resource kind.
type View struct {
	Bounds Bounds
	// Extra lists attributes read from the live object and merged in
	// without overwriting encoded keys.
	Extra []string
	// Drop lists encoded keys left out of the projection.
	Drop []string
}

var (
	EnvironmentView = View{
		Bounds: Bounds{Lo: 0, Hi: 50000, Samples: 100},
		Extra: []string{
			"density", "speed_of_sound", "dynamic_viscosity", "wind_speed",
			"wind_heading", "earth_radius", "julian_date", "standard_g",
			"air_gas_constant", "surface_gravity", "surface_pressure",
			"surface_density", "greenwich_sidereal",
		},
	}
	MotorView = View{
		Bounds: Bounds{Lo: 0, Hi: 10, Samples: 150},
		Extra: []string{
			"total_impulse", "exhaust_velocity", "propellant_initial_mass",
			"mass_flow_rate", "center_of_propellant_mass", "average_thrust",
			"max_thrust", "max_thrust_time", "propellant_I_11", "propellant_I_33",
			"grain_inner_radius", "grain_height", "grain_initial_mass",
		},
	}
	RocketView = View{
		Bounds: Bounds{Lo: 0, Hi: 1, Samples: 100},
		Extra: []string{
			"total_lift_coeff_der", "thrust_to_weight", "initial_static_margin",
			"final_static_margin", "dry_mass", "reduced_mass", "nose_to_tail_length",
		},
	}
	FlightView = View{
		Bounds: Bounds{Lo: 0, Hi: 30, Samples: 200},
		Extra: []string{
			"apogee", "apogee_time", "apogee_x", "apogee_y", "apogee_altitude",
			"apogee_latitude", "apogee_longitude", "out_of_rail_time",
			"out_of_rail_velocity", "max_speed", "max_mach_number", "altitude",
			"speed", "mach_number", "dynamic_pressure", "impact_velocity",
			"x_impact", "y_impact", "impact_time", "latitude", "longitude",
		},
		Drop: []string{"flight_phases", "function_evaluations"},
	}
)

// Project renders obj under view.
func Project(obj core.Object, view View) (map[string]any, error) {
	if obj == nil {
		return nil, fmt.Errorf("projection: nil object")
	}
	out := encodeMap(obj.Encode(), view.Bounds)
	for _, k := range view.Drop {
		delete(out, k)
	}
	if rows, ok := out["solution"].([][]float64); ok {
		out["solution"] = ReduceSolution(rows, MaxSamples)
	}
	merge(out, obj, view)
	recoverDates(out)
	return out, nil
}

func merge(out map[string]any, obj core.Object, view View) {
	for _, name := range view.Extra {
		if _, ok := out[name]; ok {
			continue
		}
		if enc, ok := attribute(obj, name, view.Bounds); ok {
			out[name] = enc
		}
	}
}

// attribute evaluates and encodes a single attribute, reporting values that
// cannot be computed or represented instead of failing the projection.
func attribute(obj core.Object, name string, b Bounds) (enc any, ok bool) {
	defer func() {
		if recover() != nil {
			enc, ok = nil, false
		}
	}()
	v, err := obj.Attr(name)
	if err != nil {
		return nil, false
	}
	enc = encode(v, b)
	if _, err := json.Marshal(enc); err != nil {
		return nil, false
	}
	return enc, true
}

func encodeMap(m map[string]any, b Bounds) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = encode(v, b)
	}
	return out
}

func encode(v any, b Bounds) any {
	switch t := v.(type) {
	case nil, bool, string, int, int64:
		return t
	case float64:
		return finite(t)
	case time.Time:
		return components(t)
	case []float64:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = finite(x)
		}
		return out
	case [][]float64:
		return t
	case *core.Function:
		return discretise(t, b)
	case core.Object:
		return encodeMap(t.Encode(), b)
	case []core.Object:
		out := make([]any, len(t))
		for i, o := range t {
			out[i] = encodeMap(o.Encode(), b)
		}
		return out
	case map[string]any:
		return encodeMap(t, b)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = encodeMap(m, b)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encode(e, b)
		}
		return out
	case *float64:
		if t == nil {
			return nil
		}
		return finite(*t)
	case fmt.Stringer:
		return t.String()
	}
	if _, err := json.Marshal(v); err == nil {
		return v
	}
	return fmt.Sprint(v)
}

func finite(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

// discretise samples callables over b, then caps the samples at MaxSamples.
// Functions that cannot be sampled render as their description.
func discretise(f *core.Function, b Bounds) any {
	if f == nil {
		return nil
	}
	if f.IsCallable() {
		f = f.SetDiscrete(b.Lo, b.Hi, b.Samples)
		if f.IsCallable() {
			return f.String()
		}
	}
	points := Resample(f.Samples(), MaxSamples)
	out := make([]any, len(points))
	for i, p := range points {
		out[i] = []any{finite(p[0]), finite(p[1])}
	}
	return out
}

// Resample returns at most n evenly spaced points over the domain of
// samples, linearly interpolated. Shorter inputs are returned unchanged.
func Resample(samples [][2]float64, n int) [][2]float64 {
	if len(samples) <= n || n < 2 {
		return samples
	}
	lo, hi := samples[0][0], samples[len(samples)-1][0]
	out := make([][2]float64, n)
	j := 0
	for i := range out {
		x := lo + (hi-lo)*float64(i)/float64(n-1)
		for j < len(samples)-2 && samples[j+1][0] < x {
			j++
		}
		out[i] = [2]float64{x, lerp(samples[j][0], samples[j][1], samples[j+1][0], samples[j+1][1], x)}
	}
	return out
}

func lerp(x0, y0, x1, y1, x float64) float64 {
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// ReduceSolution thins a time-ordered matrix whose first column is time.
// With more than limit rows it keeps len/ceil(len/limit) rows on an evenly
// spaced time grid, interpolating every column.
func ReduceSolution(rows [][]float64, limit int) [][]float64 {
	n := len(rows)
	if n <= limit || limit < 2 {
		return rows
	}
	factor := (n + limit - 1) / limit
	size := n / factor
	if size < 2 {
		size = 2
	}
	t0, t1 := rows[0][0], rows[n-1][0]
	out := make([][]float64, size)
	j := 0
	for i := range out {
		t := t0 + (t1-t0)*float64(i)/float64(size-1)
		for j < n-2 && rows[j+1][0] < t {
			j++
		}
		a, b := rows[j], rows[j+1]
		row := make([]float64, len(a))
		for c := range a {
			row[c] = lerp(a[0], a[c], b[0], b[c], t)
		}
		row[0] = t
		out[i] = row
	}
	return out
}
