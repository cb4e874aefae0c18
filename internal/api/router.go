package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gocup/internal/api/handler"
	"github.com/mcoot/gocup/internal/api/middleware"
	"github.com/mcoot/gocup/internal/services/auth"
	"github.com/mcoot/gocup/internal/services/queue"
	"github.com/mcoot/gocup/internal/services/session"
	"github.com/mcoot/gocup/internal/services/user"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Users       user.ServiceInterface
	Queue       *queue.Queue
	Sessions    session.ControllerInterface
	// Gateway serves the realtime websocket endpoint
	Gateway http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.Users)
	queueHandler := handler.NewQueueHandler(cfg.Queue)
	gameHandler := handler.NewGameHandler(cfg.Sessions)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Users)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.Users)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// Realtime endpoint. Recovery is left out because the gateway owns the
	// connection once upgraded.
	if cfg.Gateway != nil {
		r.Handle("/ws", loggingMiddleware(cfg.Gateway)).Methods(http.MethodGet)
	}

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Player routes (no auth required for registering/logging in)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)

	// Queue status is public; logged in players also see their wait time
	queueRoutes := api.PathPrefix("/queue").Subrouter()
	queueRoutes.Use(optionalAuthMiddleware)
	queueRoutes.HandleFunc("", queueHandler.Get).Methods(http.MethodGet)

	// Games can be spectated without an account
	api.HandleFunc("/games/{id}", gameHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/chat", gameHandler.Chat).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
