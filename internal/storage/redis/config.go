package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string `yaml:"url"`

	// Pool settings
	PoolSize     int `yaml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns"`

	// ArchivedGameTTL bounds how long finished or cancelled games and their
	// chat are kept. Zero keeps them forever.
	ArchivedGameTTL time.Duration `yaml:"archived_game_ttl"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:             "redis://localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		ArchivedGameTTL: 30 * 24 * time.Hour,
	}
}
