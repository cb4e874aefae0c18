package factory

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gocup/internal/config"
	"github.com/mcoot/gocup/internal/dependencies/mocks"
	"github.com/mcoot/gocup/internal/storage"
	"github.com/mcoot/gocup/internal/storage/memory"
	redisstorage "github.com/mcoot/gocup/internal/storage/redis"
	"github.com/mcoot/gocup/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// TestSettings returns a configuration suited to tests: cheap password
// hashing and a fixed signing secret
func TestSettings() config.Config {
	settings := config.Default()
	settings.Auth.Secret = "test-secret"
	settings.Auth.BcryptCost = bcrypt.MinCost
	settings.Auth.TokenTTL = time.Hour
	return settings
}

// NewTestApp creates an App backed by memory storage with mocked dependencies
func NewTestApp() *TestApp {
	return newTestApp(memory.New(), testutil.NopLogger())
}

// NewTestAppWithRedis creates an App backed by the given Redis client with
// mocked dependencies
func NewTestAppWithRedis(client *redis.Client) *TestApp {
	store := redisstorage.NewWithClient(client, redisstorage.DefaultConfig())
	return newTestApp(store, testutil.NopLogger())
}

func newTestApp(store storage.Storage, logger *slog.Logger) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, TestSettings(), logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
