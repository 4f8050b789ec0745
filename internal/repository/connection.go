package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/signalsfoundry/rocketflight/internal/config"
	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/store"
	storebadger "github.com/signalsfoundry/rocketflight/internal/store/badger"
	"github.com/signalsfoundry/rocketflight/internal/store/memory"
	storemongo "github.com/signalsfoundry/rocketflight/internal/store/mongo"
)

// Opener opens a store backend.
type Opener func(ctx context.Context) (store.Store, error)

// OpenerFor returns the opener of the backend selected by cfg.
func OpenerFor(cfg config.Config, log logging.Logger) Opener {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return func(context.Context) (store.Store, error) { return memory.New(), nil }
	case config.BackendBadger:
		return func(context.Context) (store.Store, error) {
			bc := storebadger.DefaultConfig(cfg.Store.BadgerPath)
			bc.Logger = log
			return storebadger.Open(bc)
		}
	default:
		return func(ctx context.Context) (store.Store, error) {
			return storemongo.Open(ctx, storemongo.Config{
				URI:            cfg.Secrets.MongoDBConnectionString,
				Database:       cfg.Store.Database,
				ConnectTimeout: cfg.Store.ConnectTimeout,
				IdleTimeout:    cfg.Store.IdleTimeout,
			})
		}
	}
}

// ConnectionOptions tune initialisation of a Connection.
type ConnectionOptions struct {
	// Attempts bounds the number of open attempts. Defaults to 5.
	Attempts int
	// Backoff is the fixed wait between attempts. Defaults to 2s.
	Backoff  time.Duration
	Observer store.Observer
	Logger   logging.Logger
}

// Connection is the process-wide holder of the store. The first Acquire
// starts the initialiser in the background; every caller, including the
// first, waits on a one-shot latch that the initialiser closes. A failed
// initialisation is reported to its waiters and retried by the next
// Acquire.
type Connection struct {
	open     Opener
	attempts uint
	backoff  time.Duration
	observer store.Observer
	log      logging.Logger

	mu      sync.Mutex
	pending *initRound
	store   store.Store
}

// initRound is one run of the initialiser. Its fields are written before
// done is closed.
type initRound struct {
	done  chan struct{}
	store store.Store
	err   error
}

// NewConnection returns an uninitialised connection.
func NewConnection(open Opener, opts ConnectionOptions) *Connection {
	if opts.Attempts < 1 {
		opts.Attempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	return &Connection{
		open:     open,
		attempts: uint(opts.Attempts),
		backoff:  opts.Backoff,
		observer: opts.Observer,
		log:      opts.Logger,
	}
}

// Acquire returns the store, initialising it on first use.
func (c *Connection) Acquire(ctx context.Context) (store.Store, error) {
	c.mu.Lock()
	if c.store != nil {
		s := c.store
		c.mu.Unlock()
		return s, nil
	}
	if c.pending == nil {
		c.pending = &initRound{done: make(chan struct{})}
		go c.initialise(c.pending)
	}
	round := c.pending
	c.mu.Unlock()

	select {
	case <-round.done:
		return round.store, round.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for store: %v", store.ErrUnavailable, ctx.Err())
	}
}

func (c *Connection) initialise(round *initRound) {
	defer close(round.done)

	ctx := context.Background()
	op := func() (store.Store, error) { return c.open(ctx) }
	s, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.backoff)),
		backoff.WithMaxTries(c.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn(ctx, "store initialisation failed; retrying",
				logging.Err(err),
				logging.Duration("backoff", next),
			)
		}),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	if err != nil {
		round.err = fmt.Errorf("%w: initialise store: %w", store.ErrUnavailable, err)
		c.log.Error(ctx, "store initialisation gave up", logging.Err(err), logging.Int("attempts", int(c.attempts)))
		return
	}
	c.store = store.Instrument(s, c.observer)
	round.store = c.store
	c.log.Info(ctx, "store initialised")
}

// Ping checks the store, initialising it when needed.
func (c *Connection) Ping(ctx context.Context) error {
	s, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close releases the store if it was opened.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	s := c.store
	c.store = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close(ctx)
}
