package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/tabwatch/fleetwatch/internal/auth/http"
	"github.com/tabwatch/fleetwatch/internal/auth/resolver"
	"github.com/tabwatch/fleetwatch/internal/auth/service"
	"github.com/tabwatch/fleetwatch/internal/auth/store"
	"github.com/tabwatch/fleetwatch/internal/auth/store/drivers/sqlite"
	"github.com/tabwatch/fleetwatch/pkg/jwtx"
	"github.com/tabwatch/fleetwatch/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db   store.Store
	keys *jwtx.Keypair

	tokenService        *service.TokenService
	apiKeyService       *service.APIKeyService
	oauthService        *service.OAuthService
	sessionService      *service.SessionService
	auditService        *service.AuditService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "fleetwatch-authd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initKeys(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrapService.EnsureAdmin(
		context.Background(),
		cfg.BootstrapAdminUser,
		cfg.BootstrapAdminPassword,
	); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to bootstrap admin operator: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the store and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initKeys loads the signing keypair from the configured seed file, or
// generates an ephemeral one.
func (app *Application) initKeys() error {
	opts := jwtx.VerifyOptions{Issuer: app.cfg.Issuer}

	if app.cfg.SigningSeedFile != "" {
		keys, err := jwtx.NewKeypairFromSeedFile(app.cfg.SigningSeedFile, opts)
		if err != nil {
			return fmt.Errorf("failed to load signing seed: %w", err)
		}
		app.keys = keys
		app.logger.Info("signing keypair loaded", "kid", keys.KID, "issuer", app.cfg.Issuer)
		return nil
	}

	keys, err := jwtx.NewEphemeralKeypair(opts)
	if err != nil {
		return fmt.Errorf("failed to generate signing keypair: %w", err)
	}
	app.keys = keys
	app.logger.Info("generated ephemeral signing keypair", "kid", keys.KID, "issuer", app.cfg.Issuer)
	app.logger.Warn("all previously issued tokens are now invalid")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.auditService = &service.AuditService{Store: app.db}

	app.tokenService = &service.TokenService{
		Keys:       app.keys,
		Store:      app.db,
		Audit:      app.auditService,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.apiKeyService = &service.APIKeyService{
		Store: app.db,
		Audit: app.auditService,
	}

	app.oauthService = &service.OAuthService{
		Store:   app.db,
		Tokens:  app.tokenService,
		Audit:   app.auditService,
		CodeTTL: service.DefaultAuthorizationCodeTTL,
	}

	app.sessionService = &service.SessionService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.Resolver = &resolver.Resolver{
		Tokens:   app.tokenService,
		Keys:     app.apiKeyService,
		Sessions: app.sessionService,
		Audit:    app.auditService,
	}
	router.TokenService = app.tokenService
	router.APIKeyService = app.apiKeyService
	router.OAuthService = app.oauthService
	router.SessionService = app.sessionService
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
