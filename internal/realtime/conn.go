package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/gocup/internal/model"
)

// DefaultSendBufferSize is the number of outbound messages buffered per connection
const DefaultSendBufferSize = 256

// Conn is the registry's view of one client connection. The transport drains
// Messages and writes them to the peer; the registry only ever enqueues.
type Conn struct {
	id          string
	connectedAt time.Time
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once

	mu       sync.RWMutex
	username model.Username
}

// NewConn creates a connection with a fresh anonymous id
func NewConn(bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBufferSize
	}
	return &Conn{
		id:          uuid.NewString(),
		connectedAt: time.Now(),
		send:        make(chan []byte, bufferSize),
		done:        make(chan struct{}),
	}
}

// ID returns the connection-scoped identifier
func (c *Conn) ID() string {
	return c.id
}

// ConnectedAt returns when the connection was created
func (c *Conn) ConnectedAt() time.Time {
	return c.connectedAt
}

// Username returns the authenticated identity, or "" when anonymous
func (c *Conn) Username() model.Username {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// SetUsername binds an identity to the connection. An empty username clears it.
func (c *Conn) SetUsername(username model.Username) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
}

// DisplayName is the name announced to rooms: the username, or the
// connection id for anonymous connections
func (c *Conn) DisplayName() string {
	if username := c.Username(); username != "" {
		return string(username)
	}
	return c.id
}

// Messages returns the outbound message queue
func (c *Conn) Messages() <-chan []byte {
	return c.send
}

// Done is closed once the connection is closed
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection closed. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close has been called
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// deliver enqueues a message without blocking. It returns false if the
// connection is closed or its buffer is full.
func (c *Conn) deliver(message []byte) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}
