package controller

import (
	"github.com/signalsfoundry/rocketflight/internal/repository"
	"github.com/signalsfoundry/rocketflight/internal/service"
	"github.com/signalsfoundry/rocketflight/model"
	"github.com/signalsfoundry/rocketflight/timectrl"
)

// Build registers every resource schema together with the composition
// operations. A nil svcs leaves the simulate and rocketpy operations out.
func Build(clock timectrl.Clock, repos *repository.Repositories, svcs *service.Services) *Engine {
	e := NewEngine(clock)
	env := Binding[*model.Environment]{Schema: model.EnvironmentSchema, Repo: repos.Environments}
	motor := Binding[*model.Motor]{Schema: model.MotorSchema, Repo: repos.Motors}
	rocket := Binding[*model.Rocket]{Schema: model.RocketSchema, Repo: repos.Rockets}
	flight := Binding[*model.Flight]{Schema: model.FlightSchema, Repo: repos.Flights}
	if svcs != nil {
		env.Simulator = svcs.Environments
		motor.Simulator = svcs.Motors
		rocket.Simulator = svcs.Rockets
		flight.Simulator = svcs.Flights
	}
	Register(e, env)
	Register(e, motor)
	Register(e, rocket)
	Register(e, flight)
	RegisterReferences(e, repos)
	return e
}
