package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/gocup/internal/api"
	"github.com/mcoot/gocup/internal/config"
	"github.com/mcoot/gocup/internal/factory"
)

func main() {
	// Load configuration from the optional file and the environment
	settings, err := config.FromEnvironment()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: settings.LogLevel(),
	}))
	slog.SetDefault(logger)

	// Create application factory
	app, err := factory.New(factory.Config{
		Settings: settings,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create application", slog.Any("error", err))
		os.Exit(1)
	}

	server := api.NewServer(app.Router(), settings.Server, logger, app.Close)
	listener, err := server.Listen()
	if err != nil {
		logger.Error("failed to listen", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server started",
		slog.String("addr", listener.Addr().String()),
		slog.String("storage", settings.Storage.Type))

	// Serve until SIGINT or SIGTERM, then drain websockets before HTTP
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, listener); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
