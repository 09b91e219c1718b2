// Package server wires the auth server together: logging, the user store,
// the authentication service and its HTTP and gRPC fronts. It also handles
// graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/dmitrijs2005/notematic/internal/server/auth"
	"github.com/dmitrijs2005/notematic/internal/server/config"
	"github.com/dmitrijs2005/notematic/internal/server/httpapi"
	"github.com/dmitrijs2005/notematic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notematic/internal/server/services"

	gs "github.com/dmitrijs2005/notematic/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       *repomanager.Store
	authService *services.AuthService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogBackend, c.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	logConfiguration(ctx, logger, c)

	store, err := repomanager.Open(ctx, c, logger.With("module", "store"))
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	codec, err := auth.NewTokenCodec(c.AccessTokenSecret, c.RefreshTokenSecret)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("token codec init error: %w", err)
	}

	as, err := services.NewAuthService(store.Users, auth.NewPasswordHasher(c.BcryptCost), codec, logger.With("module", "auth_service"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("auth service init error: %w", err)
	}

	return &App{config: c, logger: logger, store: store, authService: as}, nil
}

// logConfiguration prints the effective settings without secrets.
func logConfiguration(ctx context.Context, logger logging.Logger, c *config.Config) {
	logger.Info(ctx, "configuration loaded",
		"environment", c.Environment,
		"http_addr", c.HTTPAddr,
		"grpc_addr", c.GRPCAddr,
		"store_backend", c.StoreBackend,
		"couchdb_url", c.CouchDBURL,
		"couchdb_database", c.CouchDBDatabase,
		"bcrypt_cost", c.BcryptCost,
		"redis_enabled", c.RedisAddr != "",
	)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.authService, app.store, app.logger.With("module", "http_server"))
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.authService, app.store)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "store close error", "error", err)
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
	app.logger.Info(ctx, "App stopped")
}
