// Package app wires the API together: configuration, resources, services,
// the HTTP pipeline, and background maintenance.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"

	biblesvc "github.com/rootedapp/portal/internal/app/services/bible"
	healthsvc "github.com/rootedapp/portal/internal/app/services/health"
	"github.com/rootedapp/portal/internal/app/httpapi"
	"github.com/rootedapp/portal/internal/app/storage/postgres"
	"github.com/rootedapp/portal/internal/cache"
	"github.com/rootedapp/portal/internal/config"
	"github.com/rootedapp/portal/internal/container"
	"github.com/rootedapp/portal/internal/database"
	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/internal/maintenance"
	"github.com/rootedapp/portal/internal/middleware"
	"github.com/rootedapp/portal/pkg/logger"
)

// Application owns the process-lifetime resources and the HTTP server.
type Application struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *container.Registry
	driver   database.Driver
	redis    *redis.Client
	server   *http.Server
	cleanup  *maintenance.Scheduler

	Bible  *biblesvc.Service
	Health *healthsvc.Service
}

// New builds a fully wired application. Construction order: config is
// already loaded, then logger, resource registry, registrations, startup
// validation, services, pipeline. Any failure aborts the boot.
func New(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Service: cfg.App.Name,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})
	cache.SetAppName(cfg.App.Name)

	driver, err := database.NewPostgresDriver(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	rdb, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	registry := container.New(log)
	if err := registerResources(registry, driver, rdb); err != nil {
		return nil, err
	}
	if err := registry.Validate(database.KindPostgres, database.KindRedis, database.KindSession); err != nil {
		return nil, fmt.Errorf("resource validation: %w", err)
	}

	app := &Application{
		cfg:      cfg,
		log:      log,
		registry: registry,
		driver:   driver,
		redis:    rdb,
		cleanup:  maintenance.New(log),
	}

	if err := app.buildPipeline(); err != nil {
		return nil, err
	}
	return app, nil
}

// registerResources declares every resource kind the request pipeline
// resolves. The session kind is per-request: each resolution begins a new
// transaction on the shared pool.
func registerResources(registry *container.Registry, driver database.Driver, rdb *redis.Client) error {
	if err := registry.Register(database.KindPostgres, container.ScopeSingleton, func(context.Context) (interface{}, error) {
		return driver, nil
	}); err != nil {
		return err
	}
	if err := registry.Register(database.KindRedis, container.ScopeSingleton, func(context.Context) (interface{}, error) {
		return rdb, nil
	}); err != nil {
		return err
	}
	return registry.Register(database.KindSession, container.ScopePerRequest, func(ctx context.Context) (interface{}, error) {
		return database.OpenSession(ctx, driver)
	})
}

func (a *Application) buildPipeline() error {
	// Business code queries through the proxy, so every store call joins
	// the transaction the lifecycle stage bound for the request.
	store := postgres.New(database.NewSessionProxy())

	a.Bible = biblesvc.New(store, a.redis, a.log)
	a.Health = healthsvc.New(a.cfg.App.Version, a.driver, a.redis, a.log)

	blacklist := identity.NewTokenBlacklist(a.redis)
	verifier := identity.NewJWTVerifier(a.cfg.Auth.JWTSecret, identity.WithRevocations(blacklist))
	checker := identity.NewRedisPermissionChecker(a.redis)
	auth := middleware.NewAuthMiddleware(verifier, checker, a.log)

	limits := httpapi.RateLimiters{
		Default: middleware.NewRateLimiter("default", a.cfg.RateLimits.Default, a.log),
		Read:    middleware.NewRateLimiter("read", a.cfg.RateLimits.Read, a.log),
		Write:   middleware.NewRateLimiter("write", a.cfg.RateLimits.Write, a.log),
	}

	handler := httpapi.NewHandler(a.Bible, a.Health, auth, limits)
	router := handler.Router()
	router.Use(middleware.MetricsMiddleware())

	lifecycle := middleware.NewLifecycleMiddleware(a.registry, a.log, []string{"/healthz", "/metrics"})
	cors := middleware.NewCORSMiddleware(a.cfg.Server.CORSOrigins)

	a.server = &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      cors.Handler(lifecycle.Handler(router)),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	if err := a.cleanup.AddBlacklistCleanup(blacklist, a.cfg.Auth.BlacklistCleanupEvery); err != nil {
		return fmt.Errorf("schedule blacklist cleanup: %w", err)
	}
	if err := a.cleanup.AddLimiterCleanup(a.cfg.Auth.RateLimitCleanupEvery, limits.Default, limits.Read, limits.Write); err != nil {
		return fmt.Errorf("schedule limiter cleanup: %w", err)
	}
	return nil
}

// Run starts background maintenance and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	a.cleanup.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(map[string]interface{}{
			"addr": a.cfg.Server.Addr(),
			"env":  a.cfg.App.Environment,
		}).Info("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the server and releases process-lifetime resources.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.cleanup.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("maintenance jobs did not stop cleanly")
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("error closing redis client")
	}
	if err := a.driver.Close(); err != nil {
		a.log.WithError(err).Warn("error closing database pool")
	}
	return nil
}
