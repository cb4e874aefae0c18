package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/gocup/internal/api"
	"github.com/mcoot/gocup/internal/gateway"
	"github.com/mcoot/gocup/internal/services/auth"
	"github.com/mcoot/gocup/internal/services/session"
	redisstorage "github.com/mcoot/gocup/internal/storage/redis"
)

// PathEnv names the environment variable holding the config file path
const PathEnv = "GOCUP_CONFIG"

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Config is the complete server configuration
type Config struct {
	Server  api.ServerConfig `yaml:"server"`
	Log     LogConfig        `yaml:"log"`
	Storage StorageConfig    `yaml:"storage"`
	Auth    auth.Config      `yaml:"auth"`
	Session session.Config   `yaml:"session"`
	Queue   QueueConfig      `yaml:"queue"`
	Gateway gateway.Config   `yaml:"gateway"`
}

// LogConfig configures the process logger
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	// Type is "memory" or "redis"
	Type string `yaml:"type"`

	// Timeout bounds every storage call
	Timeout time.Duration `yaml:"timeout"`

	Redis redisstorage.Config `yaml:"redis"`
}

// QueueConfig configures the match queue
type QueueConfig struct {
	// DisconnectGrace is how long a disconnected player stays queued.
	// Zero removes them immediately.
	DisconnectGrace time.Duration `yaml:"disconnect_grace"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Server:  api.DefaultServerConfig(),
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{Type: StorageTypeMemory, Timeout: 3 * time.Second, Redis: redisstorage.DefaultConfig()},
		Auth:    auth.DefaultConfig(),
		Session: session.DefaultConfig(),
		Gateway: gateway.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults, if path is not empty,
// then applies environment overrides looked up through getenv
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnvironment loads the config file named by GOCUP_CONFIG, if set, and the
// process environment overrides
func FromEnvironment() (Config, error) {
	return Load(os.Getenv(PathEnv), os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Storage.Redis.URL = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required when storage type is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage type %q: must be 'memory' or 'redis'", c.Storage.Type))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.jwt_secret must not be empty"))
	}
	if c.Queue.DisconnectGrace < 0 {
		errs = append(errs, errors.New("queue.disconnect_grace must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured slog level
func (c Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// GatewayConfig returns the gateway settings with the queue grace period applied
func (c Config) GatewayConfig() gateway.Config {
	cfg := c.Gateway
	cfg.QueueGrace = c.Queue.DisconnectGrace
	return cfg
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
