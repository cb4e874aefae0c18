package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// readPump is the connection actor: it reads client messages and handles
// them one at a time, then runs disconnect cleanup when the peer goes away
func (g *Gateway) readPump(c *client) {
	defer func() {
		g.disconnect(c)
		g.unregister(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(g.cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait)); err != nil {
		c.logger.Warn("failed to set read deadline", slog.Any("error", err))
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		g.handleMessage(c, data)
	}
}

// writePump drains the connection's outbound queue to the peer and keeps the
// connection alive with pings. It is the only writer of data frames.
func (g *Gateway) writePump(c *client) {
	ticker := time.NewTicker(g.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.conn.Messages():
			if err := g.write(c, websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			if err := g.write(c, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.conn.Done():
			_ = g.write(c, websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (g *Gateway) write(c *client, messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

// operationContext bounds the handling of one inbound event
func (g *Gateway) operationContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.cfg.OperationTimeout)
}
