package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/gocup/internal/api"
	"github.com/mcoot/gocup/internal/config"
	"github.com/mcoot/gocup/internal/dependencies/clock"
	"github.com/mcoot/gocup/internal/dependencies/random"
	"github.com/mcoot/gocup/internal/gateway"
	"github.com/mcoot/gocup/internal/realtime"
	"github.com/mcoot/gocup/internal/services/auth"
	"github.com/mcoot/gocup/internal/services/presence"
	"github.com/mcoot/gocup/internal/services/queue"
	"github.com/mcoot/gocup/internal/services/rules"
	"github.com/mcoot/gocup/internal/services/session"
	"github.com/mcoot/gocup/internal/services/user"
	"github.com/mcoot/gocup/internal/storage"
	"github.com/mcoot/gocup/internal/storage/memory"
	redisstorage "github.com/mcoot/gocup/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage, bounded by the configured timeout
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService *auth.Service
	Users       *user.Service
	Registry    *realtime.Registry
	Queue       *queue.Queue
	Sessions    *session.Controller
	Presence    *presence.Tracker
	Gateway     *gateway.Gateway

	logger *slog.Logger
	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Settings is the server configuration.
	// If zero value, defaults to config.Default()
	Settings config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	settings := cfg.Settings
	if settings.Storage.Type == "" {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Create storage based on type
	var store storage.Storage
	var closer io.Closer
	switch settings.Storage.Type {
	case config.StorageTypeMemory:
		store = memory.New()
	case config.StorageTypeRedis:
		redisStore, err := redisstorage.New(settings.Storage.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		store = redisStore
		closer = redisStore
	default:
		return nil, errors.New("invalid storage type: must be 'memory' or 'redis'")
	}

	app := newWithDependencies(store, clock.New(), random.New(), settings, logger)
	app.closer = closer
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, settings config.Config, logger *slog.Logger) *App {
	if settings.Storage.Timeout > 0 {
		store = storage.NewBounded(store, settings.Storage.Timeout)
	}

	// Create services
	authService := auth.New(store, clk, settings.Auth)
	users := user.New(store, authService)
	registry := realtime.NewRegistry(logger)
	matchQueue := queue.New(registry, clk, logger)
	sessions := session.NewController(store, users, rules.Basic{}, matchQueue, queue.FIFOMatcher{},
		registry, clk, rnd, logger, settings.Session)
	registry.SetCountObserver(sessions.UpdateViewers)
	tracker := presence.NewTracker(users, registry, logger)
	gw := gateway.New(registry, matchQueue, sessions, users, tracker, logger, settings.GatewayConfig())

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		AuthService: authService,
		Users:       users,
		Registry:    registry,
		Queue:       matchQueue,
		Sessions:    sessions,
		Presence:    tracker,
		Gateway:     gw,
		logger:      logger,
	}
}

// Router returns the HTTP handler serving the REST API and the websocket endpoint
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.logger,
		AuthService: a.AuthService,
		Users:       a.Users,
		Queue:       a.Queue,
		Sessions:    a.Sessions,
		Gateway:     a.Gateway,
	})
}

// Close drains realtime connections, stops background timers and releases storage
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Gateway.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gateway shutdown: %w", err))
	}
	a.Sessions.Close()
	a.Queue.Close()
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
