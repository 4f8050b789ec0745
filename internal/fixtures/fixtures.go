// Package fixtures holds request bodies shared by package tests: a launch
// site, a Calisto-like rocket with a solid motor, and variants of them.
package fixtures

import (
	"encoding/json"
	"fmt"
)

// Environment is a launch site at Spaceport America.
const Environment = `{
	"latitude": 32.990254,
	"longitude": -106.974998,
	"elevation": 1400,
	"atmospheric_model_type": "standard_atmosphere",
	"date": "2025-06-21T12:00:00Z"
}`

// SolidMotor is a Cesaroni M1670-like motor.
const SolidMotor = `{
	"thrust_source": [[0, 0], [0.1, 2000], [3.8, 1600], [3.9, 0]],
	"burn_time": 3.9,
	"nozzle_radius": 0.033,
	"dry_mass": 1.815,
	"dry_inertia": [0.125, 0.125, 0.002],
	"center_of_dry_mass_position": 0.317,
	"motor_kind": "SOLID",
	"grain_number": 5,
	"grain_density": 1815,
	"grain_outer_radius": 0.033,
	"grain_initial_inner_radius": 0.015,
	"grain_initial_height": 0.12,
	"grain_separation": 0.005,
	"grains_center_of_mass_position": 0.397
}`

// MassFlowTank is a valid MASS_FLOW oxidiser tank.
const MassFlowTank = `{
	"name": "oxidizer",
	"tank_kind": "MASS_FLOW",
	"geometry": [[[-0.5, 0.5], 0.0744]],
	"gas": {"name": "N2O vapour", "density": 1.9},
	"liquid": {"name": "N2O", "density": 860},
	"flux_time": [0, 3.9],
	"position": 1.0,
	"gas_mass_flow_rate_in": 0,
	"gas_mass_flow_rate_out": 0.001,
	"liquid_mass_flow_rate_in": 0,
	"liquid_mass_flow_rate_out": 2,
	"initial_liquid_mass": 8,
	"initial_gas_mass": 0.01
}`

// LiquidMotor is SolidMotor turned LIQUID, without tanks.
var LiquidMotor = With(SolidMotor, map[string]any{
	"motor_kind":                     "LIQUID",
	"grain_number":                   nil,
	"grain_density":                  nil,
	"grain_outer_radius":             nil,
	"grain_initial_inner_radius":     nil,
	"grain_initial_height":           nil,
	"grain_separation":               nil,
	"grains_center_of_mass_position": nil,
})

// Rocket is a Calisto-like rocket without parachutes.
var Rocket = fmt.Sprintf(`{
	"motor": %s,
	"radius": 0.0635,
	"mass": 14.426,
	"motor_position": -1.255,
	"center_of_mass_without_motor": 0,
	"inertia": [6.321, 6.321, 0.034],
	"power_off_drag": [[0, 0.5], [2, 0.5]],
	"power_on_drag": [[0, 0.45], [2, 0.45]],
	"coordinate_system_orientation": "tail_to_nose",
	"nose": {"name": "nose", "length": 0.55829, "kind": "von karman", "position": 1.278, "base_radius": 0.0635, "rocket_radius": 0.0635},
	"fins": [{"fins_kind": "trapezoidal", "name": "fins", "n": 4, "root_chord": 0.12, "tip_chord": 0.06, "span": 0.11, "position": -1.04956, "cant_angle": 0, "rocket_radius": 0.0635}]
}`, SolidMotor)

// Parachutes holds one admissible and one inadmissible parachute.
const Parachutes = `[
	{"name": "drogue", "cd_s": 1.0, "trigger": "apogee", "sampling_rate": 105, "lag": 1.5, "noise": [0, 8.3, 0.5]},
	{"name": "rogue", "cd_s": 10.0, "trigger": "lambda h,v,s: os.system('x')", "sampling_rate": 105, "lag": 1.5, "noise": [0, 8.3, 0.5]}
]`

// Flight is a short flight of Rocket from Environment.
var Flight = fmt.Sprintf(`{
	"name": "calisto",
	"environment": %s,
	"rocket": %s,
	"rail_length": 5.2,
	"inclination": 85,
	"heading": 0,
	"terminate_on_apogee": true,
	"max_time": 60
}`, Environment, Rocket)

// With returns body with the given top-level keys replaced. A nil value
// removes the key.
func With(body string, changes map[string]any) string {
	doc := map[string]any{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		panic(fmt.Sprintf("fixtures: invalid body: %v", err))
	}
	for k, v := range changes {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	out, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("fixtures: %v", err))
	}
	return string(out)
}

// Raw wraps a JSON body so that it can be embedded in With changes.
func Raw(body string) json.RawMessage { return json.RawMessage(body) }
