// Package server wires configuration, storage, the session services and the
// listeners (HTTP API, gRPC health, metrics) into a runnable application
// with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/cache"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/hasher"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/obs"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	gs "github.com/dmitrijs2005/tokenkeeper/internal/server/grpc"
)

const healthProbeInterval = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	otel    *obs.OTel
	repos   repomanager.RepositoryManager
	closers []func() error

	httpServer    *httpapi.Server
	healthServer  *gs.HealthServer
	metricsServer *http.Server
}

// NewApp builds every component from c. On failure, anything already opened
// is released.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	app := &App{config: c}
	defer func() {
		if err != nil {
			app.close(context.Background())
		}
	}()

	if app.logger, err = app.newLogger(); err != nil {
		return nil, err
	}

	app.otel, err = obs.SetupOTel(ctx, obs.OTELConfig{
		Enable:         c.OTEL.Enable,
		Endpoint:       c.OTEL.Endpoint,
		ServiceName:    c.OTEL.ServiceName,
		ServiceVersion: buildinfo.Version(),
		SampleRatio:    c.OTEL.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("otel init error: %w", err)
	}

	if app.repos, err = app.openStorage(ctx); err != nil {
		return nil, err
	}

	h, err := hasher.New(c.HasherConfig())
	if err != nil {
		return nil, fmt.Errorf("hasher init error: %w", err)
	}
	signer, err := auth.NewSigner(c.SignerConfig())
	if err != nil {
		return nil, fmt.Errorf("signer init error: %w", err)
	}

	store, err := app.openCache()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	deps := services.Deps{
		Repos:   app.repos,
		Hasher:  h,
		Tokens:  signer,
		Cache:   cache.NewAside(store, app.logger, m),
		Metrics: m,
		Logger:  app.logger,
		Policy:  c.PasswordPolicy(),
	}

	app.httpServer = httpapi.NewServer(c.HTTPAddr, app.logger, httpapi.Deps{
		Sessions: services.NewSessionService(deps),
		Profiles: services.NewProfileService(deps, c.ProfileCacheTTL),
		Tokens:   signer,
		Metrics:  m,
	}, c.ShutdownTimeout)
	app.healthServer = gs.NewHealthServer(c.GRPCHealthAddr, app.logger, app.repos.Ping, healthProbeInterval)
	app.metricsServer = metrics.NewServer(c.MetricsAddr, reg, app.repos.Ping)

	return app, nil
}

func (app *App) newLogger() (logging.Logger, error) {
	lc := app.config.Log
	if lc.Backend == config.LogBackendSlog {
		return logging.NewSlogLogger(logging.NewSlog(os.Stdout, lc.Level, lc.Pretty)), nil
	}

	zl, err := logging.NewZap(logging.ZapConfig{
		Level:   lc.Level,
		Pretty:  lc.Pretty,
		Service: app.config.OTEL.ServiceName,
		Version: buildinfo.Version(),
	})
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() error {
		_ = zl.Sync()
		return nil
	})
	zap.RedirectStdLog(zl)
	return logging.NewZapLogger(zl), nil
}

func (app *App) openStorage(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.Storage == config.StorageMemory {
		app.logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return rm, nil
}

// openCache returns nil when no Redis URL is configured.
func (app *App) openCache() (cache.Cache, error) {
	if app.config.RedisURL == "" {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(app.config.RedisURL, "tokenkeeper")
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.closers = append(app.closers, rc.Close)
	return rc, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run serves until ctx is canceled, a termination signal arrives or a
// listener fails. The first listener error is returned.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	stop := app.initSignalHandler(cancelFunc)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, "listener failed", "listener", name, "error", err)
				once.Do(func() { firstErr = fmt.Errorf("%s: %w", name, err) })
				cancelFunc()
			}
		}()
	}

	start("http", app.httpServer.Run)
	start("grpc_health", app.healthServer.Run)
	start("metrics", func(ctx context.Context) error {
		return metrics.Serve(ctx, app.metricsServer, app.logger)
	})

	wg.Wait()

	app.logger.Info(ctx, "Stopping app...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	app.close(shutdownCtx)

	return firstErr
}

func (app *App) close(ctx context.Context) {
	var errs []error
	if app.otel != nil {
		errs = append(errs, app.otel.Shutdown(ctx))
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil

	if err := errors.Join(errs...); err != nil && app.logger != nil {
		app.logger.Warn(ctx, "shutdown incomplete", "error", err)
	}
}
