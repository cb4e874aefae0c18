package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables read by DefaultConfig
const (
	EnvServer    = "GOCUP_SERVER"
	EnvToken     = "GOCUP_TOKEN"
	EnvTokenFile = "GOCUP_TOKEN_FILE"
)

// ErrNotLoggedIn is returned by commands that need a session token
var ErrNotLoggedIn = errors.New("not logged in: run 'gocup player login' first")

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Token     string
	TokenFile string
	Output    string
	Verbose   bool

	// RequestTimeout bounds HTTP requests and one-shot realtime calls
	RequestTimeout time.Duration
}

// DefaultConfig returns a Config seeded from the environment
func DefaultConfig() *Config {
	tokenFile := os.Getenv(EnvTokenFile)
	if tokenFile == "" {
		tokenFile = defaultTokenFile()
	}
	server := os.Getenv(EnvServer)
	if server == "" {
		server = "http://localhost:8080"
	}
	return &Config{
		ServerURL:      server,
		Token:          strings.TrimSpace(os.Getenv(EnvToken)),
		TokenFile:      tokenFile,
		Output:         "text",
		RequestTimeout: 30 * time.Second,
	}
}

// RequireToken fails with ErrNotLoggedIn when no token is configured
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return ErrNotLoggedIn
	}
	return nil
}

// RealtimeURL returns the websocket endpoint of the configured server
func (c *Config) RealtimeURL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.ServerURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", c.ServerURL, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// LoadToken reads the token file unless a token was given by flag or env.
// A missing file leaves the CLI logged out.
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token file: %w", err)
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken stores token for later commands
func (c *Config) SaveToken(token string) error {
	c.Token = token

	if err := os.MkdirAll(filepath.Dir(c.TokenFile), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	return os.WriteFile(c.TokenFile, []byte(token+"\n"), 0o600)
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gocup", "token")
	}
	return filepath.Join(home, ".gocup", "token")
}
