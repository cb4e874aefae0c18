package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/realtime"
	"github.com/mcoot/gocup/internal/services/queue"
	"github.com/mcoot/gocup/internal/services/session"
)

// Config holds configuration for the real-time gateway
type Config struct {
	// OperationTimeout bounds the handling of one inbound event
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// WriteWait is the time allowed to write a message to the peer
	WriteWait time.Duration `yaml:"write_wait"`

	// PongWait is the time allowed to read the next pong from the peer
	PongWait time.Duration `yaml:"pong_wait"`

	// PingPeriod must be less than PongWait
	PingPeriod time.Duration `yaml:"ping_period"`

	// MaxMessageSize is the largest inbound message accepted, in bytes
	MaxMessageSize int64 `yaml:"max_message_size"`

	// SendBufferSize is the number of outbound messages queued per connection
	SendBufferSize int `yaml:"send_buffer_size"`

	// QueueGrace is how long a disconnected player keeps their queue entry
	QueueGrace time.Duration `yaml:"-"`

	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		OperationTimeout: 10 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       54 * time.Second,
		MaxMessageSize:   8192,
		SendBufferSize:   realtime.DefaultSendBufferSize,
	}
}

// Users authenticates tokens and lists a user's active games
type Users interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
	GetGamesOfUser(ctx context.Context, username model.Username) ([]model.GameID, error)
}

// Presence tracks the authenticated connections of each user
type Presence interface {
	Connect(ctx context.Context, username model.Username) error
	Disconnect(ctx context.Context, username model.Username) error
}

// Gateway accepts websocket connections and runs one actor per connection.
// Each actor owns its connection state and handles that connection's events
// one at a time; actors only affect each other through the shared components.
type Gateway struct {
	registry *realtime.Registry
	queue    *queue.Queue
	sessions session.ControllerInterface
	users    Users
	presence Presence
	logger   *slog.Logger
	cfg      Config
	upgrader websocket.Upgrader
	handlers map[model.EventName]handler

	mu       sync.Mutex
	clients  map[*client]struct{}
	closing  bool
	tasks    sync.WaitGroup
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a new Gateway
func New(
	registry *realtime.Registry,
	q *queue.Queue,
	sessions session.ControllerInterface,
	users Users,
	presence Presence,
	logger *slog.Logger,
	cfg Config,
) *Gateway {
	defaults := DefaultConfig()
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		registry: registry,
		queue:    q,
		sessions: sessions,
		users:    users,
		presence: presence,
		logger:   logger.With(slog.String("component", "gateway")),
		cfg:      cfg,
		clients:  make(map[*client]struct{}),
		ctx:      ctx,
		cancelFn: cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	g.handlers = g.routes()
	return g
}

// ServeHTTP upgrades the request to a websocket and starts the connection actor
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		conn:  realtime.NewConn(g.cfg.SendBufferSize),
		ws:    ws,
		state: unauthenticated{},
	}
	c.logger = g.logger.With(slog.String("conn_id", c.conn.ID()))

	if !g.register(c) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(g.cfg.WriteWait))
		_ = ws.Close()
		return
	}

	c.logger.Info("connection opened", slog.String("remote_addr", r.RemoteAddr))
	g.run(func(context.Context) { g.writePump(c) })
	g.run(func(context.Context) { g.readPump(c) })
}

// Go runs fn in a goroutine tracked for graceful shutdown. The context passed
// to fn is cancelled when Shutdown begins. Returns false without running fn
// once Shutdown has started.
func (g *Gateway) Go(fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		return false
	}
	g.tasks.Add(1)
	g.mu.Unlock()

	g.run(fn)
	return true
}

// run starts fn on a task slot already added to g.tasks
func (g *Gateway) run(fn func(ctx context.Context)) {
	go func() {
		defer g.tasks.Done()
		fn(g.ctx)
	}()
}

// ConnectionCount returns the number of open connections
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Shutdown stops accepting connections, closes every open connection and waits
// for all connection actors and tracked tasks to finish cleaning up
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closing = true
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	g.logger.Info("shutting down gateway", slog.Int("connections", len(clients)))
	for _, c := range clients {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(g.cfg.WriteWait))
		_ = c.ws.Close()
	}

	done := make(chan struct{})
	go func() {
		g.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.cancelFn()
		return nil
	case <-ctx.Done():
		g.cancelFn()
		return ctx.Err()
	}
}

func (g *Gateway) register(c *client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.clients[c] = struct{}{}
	// slots for the two pumps ServeHTTP starts
	g.tasks.Add(2)
	return true
}

func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, c)
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
