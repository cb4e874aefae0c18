package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mcoot/gocup/internal/model"
)

// handler handles one inbound event. The returned values, if any, are sent as
// the acknowledgement when the client asked for one.
type handler func(ctx context.Context, c *client, args []json.RawMessage) ([]any, error)

// authedHandler handles an event that requires an authenticated connection
type authedHandler func(ctx context.Context, c *client, user *model.User, args []json.RawMessage) ([]any, error)

func requireAuth(fn authedHandler) handler {
	return func(ctx context.Context, c *client, args []json.RawMessage) ([]any, error) {
		switch s := c.state.(type) {
		case authenticated:
			return fn(ctx, c, s.user, args)
		default:
			return nil, model.ErrNotAuthenticated
		}
	}
}

func (g *Gateway) routes() map[model.EventName]handler {
	return map[model.EventName]handler{
		model.EventAuthenticate:    g.handleAuthenticate,
		model.EventLogout:          g.handleLogout,
		model.EventPlay:            requireAuth(g.handlePlay),
		model.EventCancel:          requireAuth(g.handleCancel),
		model.EventFetchQueueData:  requireAuth(g.handleFetchQueueData),
		model.EventJoinGameRoom:    g.handleJoinGameRoom,
		model.EventLeaveGameRoom:   g.handleLeaveGameRoom,
		model.EventGameChatMessage: requireAuth(g.handleGameChatMessage),
		model.EventCancelGame:      requireAuth(g.handleCancelGame),
		model.EventPlayMove:        requireAuth(g.handlePlayMove),
		model.EventPass:            requireAuth(g.handlePass),
		model.EventResign:          requireAuth(g.handleResign),
	}
}

// handleMessage decodes and dispatches one client message. Errors go back to
// this connection only, as errorOccured, and never close it.
func (g *Gateway) handleMessage(c *client, data []byte) {
	msg, err := decodeInbound(data)
	if err != nil {
		g.fail(c, "", nil, err)
		return
	}

	h, ok := g.handlers[msg.Event]
	if !ok {
		g.fail(c, msg.Event, msg.Ack, model.ErrUnknownEvent)
		return
	}

	ctx, cancel := g.operationContext()
	defer cancel()

	result, err := h(ctx, c, msg.Args)
	if err != nil {
		g.fail(c, msg.Event, msg.Ack, err)
		return
	}
	if msg.Ack != nil {
		g.ack(c, ackReply{Ack: *msg.Ack, Args: result})
	}
}

func (g *Gateway) fail(c *client, event model.EventName, ack *int, err error) {
	message := model.UserMessage(err)

	attrs := []any{slog.String("event", string(event)), slog.Any("error", err)}
	switch {
	case model.IsRetryable(err):
		c.logger.Warn("event failed", attrs...)
	case isClientError(err):
		c.logger.Debug("event rejected", attrs...)
	default:
		c.logger.Error("event failed", attrs...)
	}

	g.registry.Send(c.conn, model.NewEvent(model.EventErrorOccured, message))
	if ack != nil {
		g.ack(c, ackReply{Ack: *ack, Args: []any{}, Error: message})
	}
}

func (g *Gateway) ack(c *client, reply ackReply) {
	if reply.Args == nil {
		reply.Args = []any{}
	}
	data, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error("failed to encode ack", slog.Any("error", err))
		return
	}
	g.registry.SendRaw(c.conn, data)
}

func isClientError(err error) bool {
	return errors.Is(err, model.ErrUnauthorized) ||
		errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrConflict)
}
