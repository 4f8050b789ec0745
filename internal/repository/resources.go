package repository

import (
	"context"

	"github.com/signalsfoundry/rocketflight/model"
)

// Repositories groups the resource repositories over one connection.
type Repositories struct {
	Environments *Repository[*model.Environment]
	Motors       *Repository[*model.Motor]
	Rockets      *Repository[*model.Rocket]
	Flights      *Repository[*model.Flight]
}

// NewRepositories binds a repository per registered schema to conn.
func NewRepositories(conn *Connection) *Repositories {
	return &Repositories{
		Environments: New(conn, model.EnvironmentSchema),
		Motors:       New(conn, model.MotorSchema),
		Rockets:      New(conn, model.RocketSchema),
		Flights:      New(conn, model.FlightSchema),
	}
}

func (r *Repositories) CreateEnvironment(ctx context.Context, e *model.Environment) (string, error) {
	return r.Environments.Insert(ctx, e)
}

func (r *Repositories) ReadEnvironmentByID(ctx context.Context, id string) (*model.Environment, error) {
	return r.Environments.FindByID(ctx, id)
}

func (r *Repositories) UpdateEnvironmentByID(ctx context.Context, id string, e *model.Environment) error {
	return r.Environments.UpdateByID(ctx, id, e)
}

func (r *Repositories) DeleteEnvironmentByID(ctx context.Context, id string) error {
	return r.Environments.DeleteByID(ctx, id)
}

func (r *Repositories) CreateMotor(ctx context.Context, m *model.Motor) (string, error) {
	return r.Motors.Insert(ctx, m)
}

func (r *Repositories) ReadMotorByID(ctx context.Context, id string) (*model.Motor, error) {
	return r.Motors.FindByID(ctx, id)
}

func (r *Repositories) UpdateMotorByID(ctx context.Context, id string, m *model.Motor) error {
	return r.Motors.UpdateByID(ctx, id, m)
}

func (r *Repositories) DeleteMotorByID(ctx context.Context, id string) error {
	return r.Motors.DeleteByID(ctx, id)
}

func (r *Repositories) CreateRocket(ctx context.Context, rocket *model.Rocket) (string, error) {
	return r.Rockets.Insert(ctx, rocket)
}

func (r *Repositories) ReadRocketByID(ctx context.Context, id string) (*model.Rocket, error) {
	return r.Rockets.FindByID(ctx, id)
}

func (r *Repositories) UpdateRocketByID(ctx context.Context, id string, rocket *model.Rocket) error {
	return r.Rockets.UpdateByID(ctx, id, rocket)
}

func (r *Repositories) DeleteRocketByID(ctx context.Context, id string) error {
	return r.Rockets.DeleteByID(ctx, id)
}

func (r *Repositories) CreateFlight(ctx context.Context, f *model.Flight) (string, error) {
	return r.Flights.Insert(ctx, f)
}

func (r *Repositories) ReadFlightByID(ctx context.Context, id string) (*model.Flight, error) {
	return r.Flights.FindByID(ctx, id)
}

func (r *Repositories) UpdateFlightByID(ctx context.Context, id string, f *model.Flight) error {
	return r.Flights.UpdateByID(ctx, id, f)
}

func (r *Repositories) DeleteFlightByID(ctx context.Context, id string) error {
	return r.Flights.DeleteByID(ctx, id)
}
