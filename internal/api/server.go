package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultServerConfig returns sensible defaults for server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		IdleTimeout:     60 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Addr returns the host:port the server listens on. Port 0 picks a free port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DrainFunc releases connections the HTTP server does not track, such as
// upgraded websockets. It runs before the HTTP server shuts down.
type DrainFunc func(ctx context.Context) error

// Server serves the router until its context ends, then shuts down in order
type Server struct {
	server *http.Server
	logger *slog.Logger
	config ServerConfig
	drain  DrainFunc
}

// NewServer creates a new API server. drain may be nil.
func NewServer(handler http.Handler, config ServerConfig, logger *slog.Logger, drain DrainFunc) *Server {
	return &Server{
		server: &http.Server{
			Addr:              config.Addr(),
			Handler:           handler,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		logger: logger.With(slog.String("component", "server")),
		config: config,
		drain:  drain,
	}
}

// Listen binds the configured address
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	return l, nil
}

// Serve accepts connections on l until ctx is done. It then runs the drain
// function and shuts the HTTP server down, both bounded by ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("serving HTTP", slog.String("addr", l.Addr().String()))
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if s.drain != nil {
		if err := s.drain(ctx); err != nil {
			s.logger.Warn("drain incomplete", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown error: %w", err))
	}

	s.logger.Info("HTTP server stopped")
	return errors.Join(errs...)
}
