package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/rocketflight/internal/api"
	"github.com/signalsfoundry/rocketflight/internal/config"
	"github.com/signalsfoundry/rocketflight/internal/controller"
	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/observability"
	"github.com/signalsfoundry/rocketflight/internal/repository"
	"github.com/signalsfoundry/rocketflight/internal/service"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the process environment")
	flag.Parse()

	ctx := context.Background()
	cfg, log, err := setup(*envFile, os.Stdout)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTP.Addr), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// setup loads the configuration, .env included, and builds the logger from
// it. On a configuration error the logger falls back to LOG_LEVEL and
// LOG_FORMAT as found in the environment.
func setup(envFile string, out io.Writer) (config.Config, logging.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, logging.NewFromEnv(), err
	}
	return cfg, logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: true,
		Output:    out,
	}), nil
}

// run serves the API on lis, and metrics on cfg.HTTP.MetricsAddr when set,
// until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	gin.SetMode(gin.ReleaseMode)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFrom(cfg), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return err
	}

	conn := repository.NewConnection(repository.OpenerFor(cfg, log), repository.ConnectionOptions{
		Attempts: cfg.Store.InitAttempts,
		Backoff:  cfg.Store.InitBackoff,
		Observer: collector,
		Logger:   log,
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			log.Warn(closeCtx, "store close failed", logging.Err(err))
		}
	}()

	services := service.New(service.Options{Observer: collector})
	engine := controller.Build(nil, repository.NewRepositories(conn), services)
	router := api.NewRouter(api.Options{
		Engine:      engine,
		Logger:      log,
		Collector:   collector,
		Health:      conn,
		ServiceName: cfg.Tracing.ServiceName,
	})
	handler, err := api.Handler(router)
	if err != nil {
		return err
	}

	apiSrv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	servers := []*http.Server{apiSrv}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "serving rocket flight API",
			logging.String("addr", lis.Addr().String()),
			logging.String("store", cfg.Store.Backend),
			logging.Int("operations", len(engine.Operations())),
		)
		return serve(apiSrv.Serve(lis))
	})

	if cfg.HTTP.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv := &http.Server{Addr: cfg.HTTP.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		servers = append(servers, metricsSrv)
		g.Go(func() error {
			log.Info(ctx, "serving Prometheus metrics", logging.String("addr", cfg.HTTP.MetricsAddr))
			return serve(metricsSrv.ListenAndServe())
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down rocket flight API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func serve(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
