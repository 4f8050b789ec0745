package projection

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/rocketflight/core"
)

type fakeObject struct {
	enc   map[string]any
	attrs map[string]any
}

func (o fakeObject) Kind() string           { return "fake" }
func (o fakeObject) Encode() map[string]any { return o.enc }
func (o fakeObject) Attr(name string) (any, error) {
	if name == "explodes" {
		panic("boom")
	}
	v, ok := o.attrs[name]
	if !ok {
		return nil, core.ErrUnknownAttribute
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	return v, nil
}

func TestResampleCapsLength(t *testing.T) {
	samples := make([][2]float64, 100)
	for i := range samples {
		x := float64(i)
		samples[i] = [2]float64{x, 2 * x}
	}
	got := Resample(samples, MaxSamples)
	if len(got) != MaxSamples {
		t.Fatalf("len = %d, want %d", len(got), MaxSamples)
	}
	if got[0][0] != 0 || got[len(got)-1][0] != 99 {
		t.Fatalf("domain = [%v, %v], want [0, 99]", got[0][0], got[len(got)-1][0])
	}
	for _, p := range got {
		if math.Abs(p[1]-2*p[0]) > 1e-9 {
			t.Fatalf("point %v is off the line y = 2x", p)
		}
	}
}

func TestResampleKeepsShortInput(t *testing.T) {
	samples := [][2]float64{{0, 1}, {1, 2}}
	if got := Resample(samples, MaxSamples); len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestReduceSolutionBoundsRows(t *testing.T) {
	rows := make([][]float64, 10000)
	for i := range rows {
		ti := float64(i) * 0.01
		rows[i] = []float64{ti, 3 * ti, 7}
	}
	got := ReduceSolution(rows, MaxSamples)
	if len(got) == 0 || len(got) > MaxSamples {
		t.Fatalf("len = %d, want 1..%d", len(got), MaxSamples)
	}
	if got[0][0] != 0 || math.Abs(got[len(got)-1][0]-99.99) > 1e-9 {
		t.Fatalf("time span = [%v, %v], want [0, 99.99]", got[0][0], got[len(got)-1][0])
	}
	step := got[1][0] - got[0][0]
	for i, row := range got {
		if math.Abs(row[0]-float64(i)*step) > 1e-9 {
			t.Fatalf("row %d time = %v, want evenly spaced grid", i, row[0])
		}
		if math.Abs(row[1]-3*row[0]) > 1e-6 || row[2] != 7 {
			t.Fatalf("row %d = %v, want interpolated columns", i, row)
		}
	}
}

func TestReduceSolutionKeepsShortMatrix(t *testing.T) {
	rows := [][]float64{{0, 1}, {1, 2}, {2, 3}}
	if got := ReduceSolution(rows, MaxSamples); len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
}

func TestProjectDiscretisesCallables(t *testing.T) {
	obj := fakeObject{enc: map[string]any{
		"curve": core.NewCallable(func(x float64) float64 { return x * x }, "x", "y"),
	}}
	out, err := Project(obj, View{Bounds: Bounds{Lo: 0, Hi: 10, Samples: 100}})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	points, ok := out["curve"].([]any)
	if !ok {
		t.Fatalf("curve = %T, want sampled points", out["curve"])
	}
	if len(points) != MaxSamples {
		t.Fatalf("len = %d, want %d", len(points), MaxSamples)
	}
	last := points[len(points)-1].([]any)
	if math.Abs(last[0].(float64)-10) > 1e-9 || math.Abs(last[1].(float64)-100) > 1e-6 {
		t.Fatalf("last point = %v, want [10 100]", last)
	}
}

func TestProjectRendersUnsampleableCallableAsText(t *testing.T) {
	obj := fakeObject{enc: map[string]any{
		"curve": core.NewCallable(func(float64) float64 { return math.NaN() }, "x", "y"),
	}}
	out, err := Project(obj, View{Bounds: Bounds{Lo: 0, Hi: 1, Samples: 10}})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	text, ok := out["curve"].(string)
	if !ok || !strings.HasPrefix(text, "Function from R1 to R1") {
		t.Fatalf("curve = %#v, want function description", out["curve"])
	}
}

func TestProjectMergesWithoutOverwriting(t *testing.T) {
	obj := fakeObject{
		enc: map[string]any{"apogee": 1.0, "bad": math.Inf(1)},
		attrs: map[string]any{
			"apogee":    2.0,
			"max_speed": 3.0,
			"broken":    errors.New("cannot evaluate"),
		},
	}
	view := View{Extra: []string{"apogee", "max_speed", "broken", "explodes", "missing"}}
	out, err := Project(obj, view)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if out["apogee"] != 1.0 {
		t.Fatalf("apogee = %v, want encoded value 1", out["apogee"])
	}
	if out["max_speed"] != 3.0 {
		t.Fatalf("max_speed = %v, want 3", out["max_speed"])
	}
	for _, k := range []string{"broken", "explodes", "missing"} {
		if _, ok := out[k]; ok {
			t.Fatalf("%s present, want skipped", k)
		}
	}
	if out["bad"] != nil {
		t.Fatalf("bad = %v, want nil for non-finite", out["bad"])
	}
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("projection not JSON-representable: %v", err)
	}
}

func TestProjectRecoversDates(t *testing.T) {
	when := time.Date(2025, 6, 21, 12, 30, 15, 250000000, time.UTC)
	local := time.Date(2025, 6, 21, 6, 30, 15, 0, time.FixedZone("MDT", -6*3600))
	inner := fakeObject{enc: map[string]any{"datetime_date": when}}
	obj := fakeObject{enc: map[string]any{
		"date":       when,
		"local_date": local,
		"env":        inner,
	}}
	out, err := Project(obj, View{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if got, ok := out["date"].(time.Time); !ok || !got.Equal(when) {
		t.Fatalf("date = %v, want %v", out["date"], when)
	}
	if got := out["local_date"]; got != "2025-06-21T06:30:15" {
		t.Fatalf("local_date = %v, want naive wall clock", got)
	}
	env := out["env"].(map[string]any)
	if got, ok := env["datetime_date"].(time.Time); !ok || !got.Equal(when) {
		t.Fatalf("env.datetime_date = %v, want %v", env["datetime_date"], when)
	}
}

func TestProjectDropsFlightBookkeeping(t *testing.T) {
	rows := make([][]float64, 1000)
	for i := range rows {
		rows[i] = []float64{float64(i) * 0.1, float64(i)}
	}
	obj := fakeObject{enc: map[string]any{
		"solution":             rows,
		"flight_phases":        []map[string]any{{"time": 0.0, "event": "launch"}},
		"function_evaluations": 4000,
	}}
	out, err := Project(obj, FlightView)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	for _, k := range FlightView.Drop {
		if _, ok := out[k]; ok {
			t.Fatalf("%s present, want dropped", k)
		}
	}
	if got := out["solution"].([][]float64); len(got) > MaxSamples {
		t.Fatalf("solution rows = %d, want at most %d", len(got), MaxSamples)
	}
}

func TestProjectEnvironment(t *testing.T) {
	date := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)
	env := core.NewEnvironment(core.EnvironmentConfig{
		Latitude:  32.990254,
		Longitude: -106.974998,
		Elevation: 1400,
		Date:      date,
		Timezone:  "America/Denver",
	})
	out, err := Project(env, EnvironmentView)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if got, ok := out["date"].(time.Time); !ok || !got.Equal(date) {
		t.Fatalf("date = %v, want %v", out["date"], date)
	}
	for _, k := range []string{"gravity", "pressure", "density"} {
		points, ok := out[k].([]any)
		if !ok || len(points) == 0 || len(points) > MaxSamples {
			t.Fatalf("%s = %T with %d points, want 1..%d", k, out[k], len(points), MaxSamples)
		}
	}
	if _, ok := out["julian_date"]; !ok {
		t.Fatal("julian_date missing from merged attributes")
	}
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("projection not JSON-representable: %v", err)
	}
}

func TestProjectNil(t *testing.T) {
	if _, err := Project(nil, EnvironmentView); err == nil {
		t.Fatal("Project(nil) error = nil, want error")
	}
}
