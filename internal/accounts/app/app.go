package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/gate"
	httpapi "github.com/aussiebroadwan/accounts/internal/accounts/http"
	"github.com/aussiebroadwan/accounts/internal/accounts/policy"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/redis"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the accounts service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sessions store.Sessions
	secrets  Secrets
	carrier  *httpx.SessionCarrier
	engine   *policy.Engine

	// Services
	identityService     *service.IdentityService
	sessionManager      *service.SessionManager
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accounts-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := httpx.SetTrustedProxies(cfg.TrustedProxies...); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	secrets, err := InitSecrets(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.secrets = secrets

	app.carrier, err = httpx.NewSessionCarrier(secrets.SessionKey, httpx.CookieConfig{
		Name:   cfg.CookieName,
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session carrier: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessionStore(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	// Routes that declare no policy require a signed-in user.
	app.engine, err = policy.NewEngine(policy.RequiresAuthentication)
	if err != nil {
		_ = app.closeStores()
		return nil, fmt.Errorf("failed to build policy engine: %w", err)
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"session_backend", app.cfg.SessionBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing stores", "error", err)
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

// initDatabase opens the user and role store and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSessionStore selects where session records live. The sqlite backend
// shares the main database; redis keeps them out of it with native expiry.
func (app *Application) initSessionStore() error {
	switch app.cfg.SessionBackend {
	case SessionBackendRedis:
		if app.cfg.RedisAddr == "" {
			return errors.New("ACCOUNTS_REDIS_ADDR is required for the redis session backend")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rs, err := redis.Open(ctx, redis.Config{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect session store: %w", err)
		}
		app.sessions = rs
		app.logger.Info("redis session store connected", "addr", app.cfg.RedisAddr)

	case SessionBackendSQLite, "":
		app.sessions = app.db.Sessions()

	default:
		return fmt.Errorf("unknown session backend %q", app.cfg.SessionBackend)
	}
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if c, ok := app.sessions.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.identityService = &service.IdentityService{
		Store:  app.db,
		Hasher: cryptox.NewHasher(app.cfg.Hashing, app.secrets.Pepper),
		Policy: app.cfg.PasswordPolicy,
	}

	app.sessionManager = &service.SessionManager{
		Store:         app.db,
		Sessions:      app.sessions,
		PersistentTTL: app.cfg.PersistentSessionTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Retention = app.cfg.SessionRetention
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	g := gate.New(app.carrier, app.sessionManager, app.engine, app.cfg.LoginPath)

	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.sessions,
		g,
		app.logger,
		app.cfg.CookieSecure,
	)

	router.IdentityService = app.identityService
	router.SessionManager = app.sessionManager
	router.Carrier = app.carrier
	router.Redirect = service.LoginRedirect{
		HomePath:   app.cfg.HomePath,
		AdminPath:  app.cfg.AdminPath,
		AdminFirst: app.cfg.AdminRedirectFirst,
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
