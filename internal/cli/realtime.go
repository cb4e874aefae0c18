package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is a message received over the realtime connection: either an event
// or the reply to an acknowledged request
type Frame struct {
	Event string            `json:"event,omitempty"`
	Args  []json.RawMessage `json:"args"`
	Ack   *int              `json:"ack,omitempty"`
	Error string            `json:"error,omitempty"`
}

// IsAck reports whether the frame replies to request id
func (f Frame) IsAck(id int) bool {
	return f.Ack != nil && *f.Ack == id
}

// ErrDisconnected is returned once the server has closed the connection
var ErrDisconnected = errors.New("disconnected from server")

// RealtimeClient is a websocket client for the /ws endpoint
type RealtimeClient struct {
	ws     *websocket.Conn
	frames chan Frame

	writeMu sync.Mutex
	nextAck int

	// Events received while waiting for an ack, returned by Next first
	pending []Frame
}

// DialRealtime connects to a realtime endpoint. If token is set the
// connection is authenticated before returning.
func DialRealtime(ctx context.Context, url, token string) (*RealtimeClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	c := &RealtimeClient{ws: ws, frames: make(chan Frame, 64)}
	go c.readLoop()

	if token != "" {
		if _, err := c.Call(ctx, "authenticate", token); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}
	return c, nil
}

func (c *RealtimeClient) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.frames <- f
	}
}

// Emit sends an event without waiting for a reply
func (c *RealtimeClient) Emit(event string, args ...any) error {
	return c.write(map[string]any{"event": event, "args": nonNilArgs(args)})
}

// Call sends an event and waits for its acknowledgement. Events that arrive
// in the meantime are kept for Next.
func (c *RealtimeClient) Call(ctx context.Context, event string, args ...any) ([]json.RawMessage, error) {
	c.writeMu.Lock()
	c.nextAck++
	id := c.nextAck
	c.writeMu.Unlock()

	if err := c.write(map[string]any{"event": event, "args": nonNilArgs(args), "ack": id}); err != nil {
		return nil, err
	}

	for {
		f, err := c.receive(ctx)
		if err != nil {
			return nil, err
		}
		if f.IsAck(id) {
			if f.Error != "" {
				return nil, errors.New(f.Error)
			}
			return f.Args, nil
		}
		if f.Ack == nil {
			c.pending = append(c.pending, f)
		}
	}
}

// Next returns the next event frame
func (c *RealtimeClient) Next(ctx context.Context) (Frame, error) {
	if len(c.pending) > 0 {
		f := c.pending[0]
		c.pending = c.pending[1:]
		return f, nil
	}
	for {
		f, err := c.receive(ctx)
		if err != nil {
			return Frame{}, err
		}
		if f.Ack == nil {
			return f, nil
		}
	}
}

// Close sends a close frame and releases the connection
func (c *RealtimeClient) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *RealtimeClient) receive(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return Frame{}, ErrDisconnected
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *RealtimeClient) write(msg map[string]any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

func nonNilArgs(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
