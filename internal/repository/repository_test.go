package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/rocketflight/internal/config"
	"github.com/signalsfoundry/rocketflight/internal/fixtures"
	"github.com/signalsfoundry/rocketflight/internal/store"
	"github.com/signalsfoundry/rocketflight/internal/store/memory"
	"github.com/signalsfoundry/rocketflight/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConnection(t *testing.T) (*Connection, *memory.Store) {
	t.Helper()
	mem := memory.New()
	conn := NewConnection(func(context.Context) (store.Store, error) { return mem, nil }, ConnectionOptions{Backoff: time.Millisecond})
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	return conn, mem
}

func decodeEnvironment(t *testing.T, body string) *model.Environment {
	t.Helper()
	env, err := model.EnvironmentSchema.Decode([]byte(body))
	require.NoError(t, err)
	require.NoError(t, env.Validate())
	return env
}

func TestConnectionOpensOnceUnderConcurrency(t *testing.T) {
	var opens atomic.Int32
	release := make(chan struct{})
	conn := NewConnection(func(context.Context) (store.Store, error) {
		opens.Add(1)
		<-release
		return memory.New(), nil
	}, ConnectionOptions{})

	var wg sync.WaitGroup
	stores := make([]store.Store, 8)
	for i := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := conn.Acquire(context.Background())
			assert.NoError(t, err)
			stores[i] = s
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
}

func TestConnectionRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	conn := NewConnection(func(context.Context) (store.Store, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return memory.New(), nil
	}, ConnectionOptions{Attempts: 5, Backoff: time.Millisecond})

	s, err := conn.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestConnectionGivesUpAfterBoundedAttempts(t *testing.T) {
	var attempts atomic.Int32
	healthy := atomic.Bool{}
	conn := NewConnection(func(context.Context) (store.Store, error) {
		attempts.Add(1)
		if healthy.Load() {
			return memory.New(), nil
		}
		return nil, errors.New("no reachable servers")
	}, ConnectionOptions{Attempts: 2, Backoff: time.Millisecond})

	_, err := conn.Acquire(context.Background())
	require.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, int32(2), attempts.Load())

	healthy.Store(true)
	s, err := conn.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestConnectionAcquireHonoursCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	conn := NewConnection(func(context.Context) (store.Store, error) {
		<-block
		return memory.New(), nil
	}, ConnectionOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := conn.Acquire(ctx)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestOpenerForMemory(t *testing.T) {
	var cfg config.Config
	cfg.Store.Backend = config.BackendMemory
	s, err := OpenerFor(cfg, nil)(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestCreateReadRoundTrip(t *testing.T) {
	conn, _ := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	env := decodeEnvironment(t, fixtures.Environment)
	id, err := repos.CreateEnvironment(ctx, env)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, env.ID())

	got, err := repos.ReadEnvironmentByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID())

	want, err := model.View(env)
	require.NoError(t, err)
	have, err := model.View(got)
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestInsertIgnoresClientIdentifiers(t *testing.T) {
	conn, _ := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	body := fixtures.With(fixtures.Environment, map[string]any{"_id": "mine", "environment_id": "mine"})
	env := decodeEnvironment(t, body)
	id, err := repos.CreateEnvironment(ctx, env)
	require.NoError(t, err)
	assert.NotEqual(t, "mine", id)

	_, err = repos.ReadEnvironmentByID(ctx, "mine")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateReplacesContent(t *testing.T) {
	conn, _ := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	id, err := repos.CreateEnvironment(ctx, decodeEnvironment(t, fixtures.Environment))
	require.NoError(t, err)

	updated := decodeEnvironment(t, fixtures.With(fixtures.Environment, map[string]any{"elevation": 0, "latitude": -10}))
	require.NoError(t, repos.UpdateEnvironmentByID(ctx, id, updated))

	got, err := repos.ReadEnvironmentByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, -10.0, *got.Latitude)
	assert.Equal(t, 0.0, got.Elevation)
}

func TestUpdateUnknownIsNotFound(t *testing.T) {
	conn, _ := memoryConnection(t)
	repos := NewRepositories(conn)

	err := repos.UpdateEnvironmentByID(context.Background(), "absent", decodeEnvironment(t, fixtures.Environment))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteThenReadIsNotFound(t *testing.T) {
	conn, _ := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	motor, err := model.MotorSchema.Decode([]byte(fixtures.SolidMotor))
	require.NoError(t, err)
	id, err := repos.CreateMotor(ctx, motor)
	require.NoError(t, err)

	require.NoError(t, repos.DeleteMotorByID(ctx, id))
	_, err = repos.ReadMotorByID(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, repos.DeleteMotorByID(ctx, id))
}

func TestInvalidStoredDocumentIsAbsent(t *testing.T) {
	conn, mem := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	id, err := mem.Insert(ctx, "environment", store.Document{"latitude": 500.0, "longitude": 0.0})
	require.NoError(t, err)

	_, err = repos.ReadEnvironmentByID(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFindByQuerySkipsInvalidDocuments(t *testing.T) {
	conn, mem := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	solid, err := model.MotorSchema.Decode([]byte(fixtures.SolidMotor))
	require.NoError(t, err)
	_, err = repos.CreateMotor(ctx, solid)
	require.NoError(t, err)
	_, err = mem.Insert(ctx, "motor", store.Document{"motor_kind": "SOLID"})
	require.NoError(t, err)

	var found []*model.Motor
	for m, err := range repos.Motors.FindByQuery(ctx, store.Filter{"motor_kind": "SOLID"}) {
		require.NoError(t, err)
		found = append(found, m)
	}
	require.Len(t, found, 1)
	assert.Equal(t, solid.ID(), found[0].ID())
}

func TestFindAllPaginated(t *testing.T) {
	conn, _ := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	var ids []string
	for lat := range 5 {
		env := decodeEnvironment(t, fixtures.With(fixtures.Environment, map[string]any{"latitude": lat}))
		id, err := repos.CreateEnvironment(ctx, env)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	page, err := repos.Environments.FindAllPaginated(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID())
	assert.Equal(t, ids[3], page.Items[1].ID())
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	conn, mem := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	_, err := conn.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, mem.Close(ctx))

	_, err = repos.CreateEnvironment(ctx, decodeEnvironment(t, fixtures.Environment))
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = repos.ReadEnvironmentByID(ctx, "x")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

func TestStoredBodyCarriesNoIdentifier(t *testing.T) {
	conn, mem := memoryConnection(t)
	repos := NewRepositories(conn)
	ctx := context.Background()

	rocket, err := model.RocketSchema.Decode([]byte(fixtures.Rocket))
	require.NoError(t, err)
	id, err := repos.CreateRocket(ctx, rocket)
	require.NoError(t, err)

	doc, err := mem.Get(ctx, "rocket", id)
	require.NoError(t, err)
	body, _ := store.Strip(doc)
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), id)
}
