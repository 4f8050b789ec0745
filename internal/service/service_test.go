package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/internal/fixtures"
	"github.com/signalsfoundry/rocketflight/internal/projection"
	"github.com/signalsfoundry/rocketflight/model"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type countingObserver struct {
	runs     map[string]int
	failures map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{runs: map[string]int{}, failures: map[string]int{}}
}

func (o *countingObserver) ObserveSimulation(resource string, _ time.Duration, err error) {
	o.runs[resource]++
	if err != nil {
		o.failures[resource]++
	}
}

func decode[T model.Resource](t *testing.T, schema model.Schema[T], body string) T {
	t.Helper()
	v, err := schema.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode %s: %v", schema.Name, err)
	}
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate %s: %v", schema.Name, err)
	}
	return v
}

func soundingServer(t *testing.T) *httptest.Server {
	t.Helper()
	row := func(pres float64, hght int, temp float64, drct, sknt int) string {
		return fmt.Sprintf("%7.1f%7d%7.1f%7.1f%7d%7.2f%7d%7d%7.1f%7.1f%7.1f", pres, hght, temp, temp-10, 50, 5.0, drct, sknt, 290.0, 300.0, 291.0)
	}
	dash := strings.Repeat("-", 77)
	body := strings.Join([]string{
		"<PRE>",
		dash,
		"   PRES   HGHT   TEMP   DWPT   RELH   MIXR   DRCT   SKNT   THTA   THTE   THTV",
		"    hPa     m      C      C      %    g/kg    deg   knot     K      K      K ",
		dash,
		row(1000, 100, 20, 180, 10),
		row(925, 780, 15, 200, 20),
		row(850, 1500, 10, 270, 30),
		"</PRE>",
	}, "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sounding" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnvironmentSimulate(t *testing.T) {
	obs := newCountingObserver()
	svc := New(Options{Observer: obs})
	env := decode(t, model.EnvironmentSchema, fixtures.Environment)

	out, err := svc.Environments.Simulate(context.Background(), env)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if got, ok := out["date"].(time.Time); !ok || !got.Equal(env.Date) {
		t.Fatalf("date = %v, want %v", out["date"], env.Date)
	}
	if out["latitude"] != *env.Latitude {
		t.Fatalf("latitude = %v, want %v", out["latitude"], *env.Latitude)
	}
	if obs.runs["environment"] != 1 || obs.failures["environment"] != 0 {
		t.Fatalf("observer runs = %v failures = %v, want one success", obs.runs, obs.failures)
	}
}

func TestEnvironmentWyomingSoundingIsFetched(t *testing.T) {
	srv := soundingServer(t)
	svc := New(Options{Fetcher: NewHTTPFetcher(srv.Client())})
	env := decode(t, model.EnvironmentSchema, fixtures.With(fixtures.Environment, map[string]any{
		"atmospheric_model_type": "wyoming_sounding",
		"atmospheric_model_file": srv.URL + "/sounding",
	}))

	live, err := svc.Environments.Materialise(context.Background(), env)
	if err != nil {
		t.Fatalf("Materialise: %v", err)
	}
	if live.ModelType() != core.WyomingSounding {
		t.Fatalf("ModelType() = %q, want %q", live.ModelType(), core.WyomingSounding)
	}
}

func TestEnvironmentFailuresAreSimulationErrors(t *testing.T) {
	srv := soundingServer(t)
	obs := newCountingObserver()
	svc := New(Options{Fetcher: NewHTTPFetcher(srv.Client()), Observer: obs})
	ctx := context.Background()

	forecast := decode(t, model.EnvironmentSchema, fixtures.With(fixtures.Environment, map[string]any{
		"atmospheric_model_type": "forecast",
		"atmospheric_model_file": "GFS",
	}))
	_, err := svc.Environments.Simulate(ctx, forecast)
	if !errors.Is(err, ErrSimulation) || !errors.Is(err, core.ErrUnsupportedModel) {
		t.Fatalf("forecast error = %v, want ErrSimulation wrapping ErrUnsupportedModel", err)
	}

	missing := decode(t, model.EnvironmentSchema, fixtures.With(fixtures.Environment, map[string]any{
		"atmospheric_model_type": "wyoming_sounding",
		"atmospheric_model_file": srv.URL + "/absent",
	}))
	_, err = svc.Environments.Snapshot(ctx, missing)
	if !errors.Is(err, ErrSimulation) || !errors.Is(err, core.ErrModelSource) {
		t.Fatalf("missing sounding error = %v, want ErrSimulation wrapping ErrModelSource", err)
	}
	if obs.failures["environment"] != 2 {
		t.Fatalf("failures = %d, want 2", obs.failures["environment"])
	}
}

func TestMotorFamilies(t *testing.T) {
	svc := New(Options{})
	ctx := context.Background()
	tanks := []any{fixtures.Raw(fixtures.MassFlowTank)}

	cases := []struct {
		name string
		body string
		kind core.MotorKind
	}{
		{"solid", fixtures.SolidMotor, core.SolidMotor},
		{"liquid", fixtures.With(fixtures.LiquidMotor, map[string]any{"tanks": tanks}), core.LiquidMotor},
		{"hybrid", fixtures.With(fixtures.SolidMotor, map[string]any{"motor_kind": "HYBRID", "throat_radius": 0.026, "tanks": tanks}), core.HybridMotor},
		{"generic", fixtures.With(fixtures.LiquidMotor, map[string]any{
			"motor_kind":              "GENERIC",
			"chamber_radius":          0.033,
			"chamber_height":          0.6,
			"chamber_position":        0.3,
			"propellant_initial_mass": 2.5,
			"nozzle_position":         0,
		}), core.GenericMotor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := decode(t, model.MotorSchema, tc.body)
			live, err := svc.Motors.Materialise(ctx, m)
			if err != nil {
				t.Fatalf("Materialise: %v", err)
			}
			if live.MotorKind() != tc.kind {
				t.Fatalf("MotorKind() = %q, want %q", live.MotorKind(), tc.kind)
			}
			out, err := svc.Motors.Simulate(ctx, m)
			if err != nil {
				t.Fatalf("Simulate: %v", err)
			}
			if thrust, ok := out["thrust"].([]any); !ok || len(thrust) > projection.MaxSamples {
				t.Fatalf("thrust = %T, want at most %d samples", out["thrust"], projection.MaxSamples)
			}
		})
	}
}

func TestRocketDropsInadmissibleParachute(t *testing.T) {
	svc := New(Options{})
	ctx := context.Background()
	body := fixtures.With(fixtures.Rocket, map[string]any{"parachutes": fixtures.Raw(fixtures.Parachutes)})
	rocket := decode(t, model.RocketSchema, body)
	if len(rocket.Parachutes) != 2 {
		t.Fatalf("decoded %d parachutes, want 2", len(rocket.Parachutes))
	}

	live, err := svc.Rockets.Materialise(ctx, rocket)
	if err != nil {
		t.Fatalf("Materialise: %v", err)
	}
	chutes := live.Parachutes()
	if len(chutes) != 1 || chutes[0].Name != "drogue" {
		t.Fatalf("parachutes = %v, want only drogue", chutes)
	}

	out, err := svc.Rockets.Simulate(ctx, rocket)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if got := out["parachutes"].([]any); len(got) != 1 {
		t.Fatalf("projected parachutes = %d, want 1", len(got))
	}
}

func TestFinsSweepPolicy(t *testing.T) {
	angle, length, tip := 30.0, 0.2, 0.05
	trapezoidal := &model.Fins{FinsKind: model.TrapezoidalFins, TipChord: &tip, SweepAngle: &angle, SweepLength: &length}
	if cfg := finsConfig(trapezoidal); cfg.SweepAngle == nil || cfg.SweepLength != nil {
		t.Fatalf("trapezoidal sweep = (%v, %v), want angle only", cfg.SweepAngle, cfg.SweepLength)
	}
	trapezoidal.SweepAngle = nil
	if cfg := finsConfig(trapezoidal); cfg.SweepLength == nil || *cfg.SweepLength != length {
		t.Fatalf("trapezoidal sweep length = %v, want %v", cfg.SweepLength, length)
	}
	elliptical := &model.Fins{FinsKind: model.EllipticalFins, SweepAngle: &angle, SweepLength: &length}
	if cfg := finsConfig(elliptical); cfg.SweepAngle != nil || cfg.SweepLength != nil {
		t.Fatalf("elliptical sweep = (%v, %v), want none", cfg.SweepAngle, cfg.SweepLength)
	}
}

func TestCompileTrigger(t *testing.T) {
	if _, err := compileTrigger(model.ExprTrigger("apogee")); err != nil {
		t.Fatalf("apogee: %v", err)
	}
	if _, err := compileTrigger(model.NumberTrigger(800)); err != nil {
		t.Fatalf("800: %v", err)
	}
	if _, err := compileTrigger(model.ExprTrigger("lambda p, h, y: y[5] < 0 and h < 800")); err != nil {
		t.Fatalf("expression: %v", err)
	}
	if _, err := compileTrigger(model.ExprTrigger("lambda h,v,s: os.system('x')")); err == nil {
		t.Fatal("call trigger compiled, want rejection")
	}
}

func TestFlightSimulateIsBounded(t *testing.T) {
	svc := New(Options{})
	ctx := context.Background()
	flight := decode(t, model.FlightSchema, fixtures.Flight)

	live, err := svc.Flights.Materialise(ctx, flight)
	if err != nil {
		t.Fatalf("Materialise: %v", err)
	}
	if live.Apogee() <= flight.Environment.Elevation {
		t.Fatalf("apogee = %v, want above the launch site", live.Apogee())
	}

	out, err := svc.Flights.Simulate(ctx, flight)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if rows := out["solution"].([][]float64); len(rows) > projection.MaxSamples {
		t.Fatalf("solution rows = %d, want at most %d", len(rows), projection.MaxSamples)
	}
	for _, k := range []string{"flight_phases", "function_evaluations"} {
		if _, ok := out[k]; ok {
			t.Fatalf("%s present in projection", k)
		}
	}
	env := out["env"].(map[string]any)
	if got, ok := env["date"].(time.Time); !ok || !got.Equal(flight.Environment.Date) {
		t.Fatalf("env.date = %v, want %v", env["date"], flight.Environment.Date)
	}
	if _, ok := out["apogee"]; !ok {
		t.Fatal("apogee missing from projection")
	}
}

func TestSnapshotDecodesAsStruct(t *testing.T) {
	svc := New(Options{})
	rocket := decode(t, model.RocketSchema, fixtures.Rocket)

	blob, err := svc.Rockets.Snapshot(context.Background(), rocket)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var st structpb.Struct
	if err := proto.Unmarshal(blob, &st); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := st.Fields["kind"].GetStringValue(); got != "rocket" {
		t.Fatalf("kind = %q, want rocket", got)
	}
	attrs := st.Fields["attributes"].GetStructValue()
	if attrs == nil || attrs.Fields["motor"].GetStructValue() == nil {
		t.Fatalf("attributes = %v, want nested motor", attrs)
	}
	samples := attrs.Fields["power_off_drag"].GetStructValue().Fields["samples"].GetListValue()
	if samples == nil || len(samples.Values) != 2 {
		t.Fatalf("power_off_drag samples = %v, want the 2 source points", samples)
	}
}

func TestGuardRecoversPanics(t *testing.T) {
	err := guard("rocket", func() error { panic("index out of range") })
	if !errors.Is(err, ErrSimulation) {
		t.Fatalf("guard error = %v, want ErrSimulation", err)
	}
	if err := guard("rocket", func() error { return nil }); err != nil {
		t.Fatalf("guard(nil) = %v, want nil", err)
	}
}
