package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/fixtures"
	"github.com/signalsfoundry/rocketflight/model"
)

var now = time.Date(2025, time.March, 1, 10, 30, 0, 0, time.UTC)

func decodeEnvironment(t *testing.T, body string) *model.Environment {
	t.Helper()
	env, err := model.EnvironmentSchema.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	env.ApplyDefaults(now)
	return env
}

func TestEnvironmentDefaults(t *testing.T) {
	env := decodeEnvironment(t, `{"latitude": 0, "longitude": 0}`)
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if env.AtmosphericModelType != model.StandardAtmosphere {
		t.Fatalf("AtmosphericModelType = %q, want %q", env.AtmosphericModelType, model.StandardAtmosphere)
	}
	if want := now.Add(24 * time.Hour); !env.Date.Equal(want) {
		t.Fatalf("Date = %v, want %v", env.Date, want)
	}
	if env.Elevation != 0 {
		t.Fatalf("Elevation = %v, want 0", env.Elevation)
	}
}

func TestEnvironmentKeepsGivenDate(t *testing.T) {
	env := decodeEnvironment(t, fixtures.Environment)
	want := time.Date(2025, time.June, 21, 12, 0, 0, 0, time.UTC)
	if !env.Date.Equal(want) {
		t.Fatalf("Date = %v, want %v", env.Date, want)
	}
}

func TestEnvironmentValidation(t *testing.T) {
	cases := []string{
		`{"longitude": 0}`,
		`{"latitude": 91, "longitude": 0}`,
		`{"latitude": 0, "longitude": 0, "atmospheric_model_type": "martian"}`,
	}
	for _, body := range cases {
		env := decodeEnvironment(t, body)
		if err := env.Validate(); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("Validate(%s) error = %v, want ErrValidation", body, err)
		}
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := model.MotorSchema.Decode([]byte(`{"burn_time": "long"}`)); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("Decode error = %v, want ErrValidation", err)
	}
}

func decodeMotor(t *testing.T, body string) *model.Motor {
	t.Helper()
	m, err := model.MotorSchema.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

func TestMotorFamilyGuard(t *testing.T) {
	if err := decodeMotor(t, fixtures.LiquidMotor).Validate(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("LIQUID without tanks: error = %v, want ErrValidation", err)
	}
	withTank := fixtures.With(fixtures.LiquidMotor, map[string]any{
		"tanks": []json.RawMessage{fixtures.Raw(fixtures.MassFlowTank)},
	})
	if err := decodeMotor(t, withTank).Validate(); err != nil {
		t.Fatalf("LIQUID with tank: %v", err)
	}

	solidWithTank := fixtures.With(fixtures.SolidMotor, map[string]any{
		"tanks": []json.RawMessage{fixtures.Raw(fixtures.MassFlowTank)},
	})
	if err := decodeMotor(t, solidWithTank).Validate(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("SOLID with tanks: error = %v, want ErrValidation", err)
	}

	emptyTanks := fixtures.With(fixtures.LiquidMotor, map[string]any{"tanks": []any{}})
	if err := decodeMotor(t, emptyTanks).Validate(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("LIQUID with empty tanks: error = %v, want ErrValidation", err)
	}
}

func TestMotorFamilyFields(t *testing.T) {
	hybrid := fixtures.With(fixtures.SolidMotor, map[string]any{
		"motor_kind": "HYBRID",
		"tanks":      fixtures.Raw(fixtures.MassFlowTank),
	})
	err := decodeMotor(t, hybrid).Validate()
	if !errors.Is(err, model.ErrValidation) || !strings.Contains(err.Error(), "throat_radius") {
		t.Fatalf("HYBRID without throat radius: error = %v", err)
	}

	generic := fixtures.With(fixtures.SolidMotor, map[string]any{"motor_kind": "GENERIC"})
	err = decodeMotor(t, generic).Validate()
	if !errors.Is(err, model.ErrValidation) || !strings.Contains(err.Error(), "chamber_height") {
		t.Fatalf("GENERIC without chamber: error = %v", err)
	}

	unordered := fixtures.With(fixtures.SolidMotor, map[string]any{
		"thrust_source": [][2]float64{{0, 0}, {2, 10}, {1, 0}},
	})
	if err := decodeMotor(t, unordered).Validate(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("unordered thrust source: error = %v, want ErrValidation", err)
	}
}

func TestTankKindSelectsRequiredFields(t *testing.T) {
	level := fixtures.With(fixtures.MassFlowTank, map[string]any{"tank_kind": "LEVEL"})
	body := fixtures.With(fixtures.LiquidMotor, map[string]any{"tanks": []json.RawMessage{fixtures.Raw(level)}})
	err := decodeMotor(t, body).Validate()
	if !errors.Is(err, model.ErrValidation) || !strings.Contains(err.Error(), "liquid_height") {
		t.Fatalf("LEVEL tank without liquid_height: error = %v", err)
	}

	level = fixtures.With(level, map[string]any{"liquid_height": 0.4})
	body = fixtures.With(fixtures.LiquidMotor, map[string]any{"tanks": []json.RawMessage{fixtures.Raw(level)}})
	if err := decodeMotor(t, body).Validate(); err != nil {
		t.Fatalf("LEVEL tank with liquid_height: %v", err)
	}
}

func TestTankDefaultsAndGeometry(t *testing.T) {
	body := fixtures.With(fixtures.LiquidMotor, map[string]any{"tanks": fixtures.Raw(fixtures.MassFlowTank)})
	m := decodeMotor(t, body)
	if len(m.Tanks) != 1 {
		t.Fatalf("len(Tanks) = %d, want 1 after promotion", len(m.Tanks))
	}
	tank := m.Tanks[0]
	if tank.Discretize != 100 {
		t.Fatalf("Discretize = %d, want default 100", tank.Discretize)
	}
	want := model.TankSection{Bottom: -0.5, Top: 0.5, Radius: 0.0744}
	if tank.Geometry[0] != want {
		t.Fatalf("Geometry[0] = %+v, want %+v", tank.Geometry[0], want)
	}
	raw, err := json.Marshal(tank.Geometry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != `[[[-0.5,0.5],0.0744]]` {
		t.Fatalf("geometry JSON = %s", raw)
	}
}

func decodeRocket(t *testing.T, body string) *model.Rocket {
	t.Helper()
	r, err := model.RocketSchema.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return r
}

func TestRocketComposition(t *testing.T) {
	r := decodeRocket(t, fixtures.Rocket)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	view, err := model.View(r)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if _, ok := view["tail"]; ok {
		t.Fatalf("view contains tail, want it omitted")
	}
	if fins, _ := view["fins"].([]any); len(fins) != 1 {
		t.Fatalf("view fins = %v, want exactly one entry", view["fins"])
	}
}

func TestRocketRequiresFins(t *testing.T) {
	r := decodeRocket(t, fixtures.With(fixtures.Rocket, map[string]any{"fins": []any{}}))
	if err := r.Validate(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("Validate error = %v, want ErrValidation", err)
	}
}

func TestFlexibleSubObjects(t *testing.T) {
	var inner map[string]any
	if err := json.Unmarshal([]byte(fixtures.Rocket), &inner); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fins, _ := json.Marshal(inner["fins"].([]any)[0])
	nose, _ := json.Marshal(inner["nose"])
	body := fixtures.With(fixtures.Rocket, map[string]any{
		"fins": json.RawMessage(fins),
		"nose": string(nose),
	})
	r := decodeRocket(t, body)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(r.Fins) != 1 || r.Fins[0].N != 4 {
		t.Fatalf("Fins = %+v, want one promoted fin set", r.Fins)
	}
	if r.Nose.Kind != "von karman" {
		t.Fatalf("Nose.Kind = %q, want parsed from string", r.Nose.Kind)
	}
}

func TestTriggerValues(t *testing.T) {
	body := fixtures.With(fixtures.Rocket, map[string]any{"parachutes": fixtures.Raw(`[
		{"name": "main", "cd_s": 10, "trigger": 800},
		{"name": "drogue", "cd_s": 1, "trigger": "apogee"}
	]`)})
	r := decodeRocket(t, body)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	main, drogue := r.Parachutes[0], r.Parachutes[1]
	if main.Trigger.Number == nil || *main.Trigger.Number != 800 {
		t.Fatalf("main trigger = %+v, want number 800", main.Trigger)
	}
	if drogue.Trigger.Expr != "apogee" {
		t.Fatalf("drogue trigger = %+v, want apogee", drogue.Trigger)
	}
	if main.SamplingRate != 100 || main.Lag != 1.5 {
		t.Fatalf("defaults = (%v, %v), want (100, 1.5)", main.SamplingRate, main.Lag)
	}
	raw, _ := json.Marshal(r.Parachutes)
	if !strings.Contains(string(raw), `"trigger":800`) || !strings.Contains(string(raw), `"trigger":"apogee"`) {
		t.Fatalf("parachutes JSON = %s", raw)
	}
}

func TestInadmissibleTriggerStillValidates(t *testing.T) {
	body := fixtures.With(fixtures.Rocket, map[string]any{"parachutes": fixtures.Raw(fixtures.Parachutes)})
	if err := decodeRocket(t, body).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFinsSweepFields(t *testing.T) {
	body := fixtures.With(fixtures.Rocket, map[string]any{"fins": fixtures.Raw(`{
		"fins_kind": "trapezoidal", "n": 3, "root_chord": 0.1, "span": 0.1, "rocket_radius": 0.0635
	}`)})
	if err := decodeRocket(t, body).Validate(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("trapezoidal fins without tip chord: error = %v, want ErrValidation", err)
	}
	body = fixtures.With(fixtures.Rocket, map[string]any{"fins": fixtures.Raw(`{
		"fins_kind": "elliptical", "n": 3, "root_chord": 0.1, "span": 0.1, "rocket_radius": 0.0635
	}`)})
	if err := decodeRocket(t, body).Validate(); err != nil {
		t.Fatalf("elliptical fins: %v", err)
	}
}

func TestFlightDefaults(t *testing.T) {
	f, err := model.FlightSchema.Decode([]byte(fmt.Sprintf(`{"environment": %s, "rocket": %s}`, `{"latitude": 1, "longitude": 2}`, fixtures.Rocket)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f.ApplyDefaults(now)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if f.Name != "flight" || f.RailLength != 1 || !f.TimeOvershoot || f.TerminateOnApogee || f.Inclination != 90 || f.EquationsOfMotion != "standard" {
		t.Fatalf("defaults = %+v", f)
	}
	if f.Environment.Date.IsZero() {
		t.Fatalf("embedded environment date not defaulted")
	}
}

func TestFlightReferencesCompose(t *testing.T) {
	env := decodeEnvironment(t, fixtures.Environment)
	env.SetID("env-1")
	rocket := decodeRocket(t, fixtures.Rocket)
	rocket.SetID("rocket-1")

	var refs model.FlightReferences
	if err := json.Unmarshal([]byte(`{"environment_id": "env-1", "rocket_id": "rocket-1", "flight": {"rail_length": 5}}`), &refs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := refs.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	f, err := refs.Compose(env, rocket)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if f.RailLength != 5 {
		t.Fatalf("RailLength = %v, want 5", f.RailLength)
	}
	if f.Environment.ID() != "" || f.Rocket.ID() != "" {
		t.Fatalf("embedded snapshots kept identifiers")
	}
	if *f.Environment.Latitude != *env.Latitude || f.Rocket.Mass != rocket.Mass {
		t.Fatalf("embedded snapshots differ from references")
	}

	var missing model.FlightReferences
	if err := missing.Check(); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("Check on empty references = %v, want ErrValidation", err)
	}
}

func TestRocketMotorReferenceCompose(t *testing.T) {
	motor := decodeMotor(t, fixtures.SolidMotor)
	motor.SetID("motor-1")
	var body map[string]any
	if err := json.Unmarshal([]byte(fixtures.Rocket), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	delete(body, "motor")
	partial, _ := json.Marshal(body)

	ref := model.RocketMotorReference{MotorID: "motor-1", Rocket: partial}
	rocket, err := ref.Compose(motor)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if err := rocket.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rocket.Motor.BurnTime != 3.9 {
		t.Fatalf("Motor.BurnTime = %v, want 3.9", rocket.Motor.BurnTime)
	}
}

func TestSchemaResponses(t *testing.T) {
	created := model.MotorSchema.Created("abc")
	if created["motor_id"] != "abc" {
		t.Fatalf("Created = %v, want motor_id abc", created)
	}
	env := decodeEnvironment(t, `{"latitude": 0, "longitude": 0}`)
	env.SetID("xyz")
	got, err := model.EnvironmentSchema.Retrieved(env)
	if err != nil {
		t.Fatalf("Retrieved: %v", err)
	}
	view, ok := got["environment"].(map[string]any)
	if !ok {
		t.Fatalf("Retrieved = %v, want environment view", got)
	}
	if view["environment_id"] != "xyz" || view["latitude"] != 0.0 {
		t.Fatalf("view = %v", view)
	}
	if _, ok := view["atmospheric_model_file"]; ok {
		t.Fatalf("view contains empty atmospheric_model_file")
	}
	if !model.FlightSchema.Supports(model.VerbPut) {
		t.Fatalf("flight schema does not support PUT")
	}
}
