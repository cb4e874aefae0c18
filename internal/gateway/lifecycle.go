package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mcoot/gocup/internal/model"
)

// handleAuthenticate binds the identity behind a token to the connection.
// A failed attempt leaves the connection state unchanged.
func (g *Gateway) handleAuthenticate(ctx context.Context, c *client, args []json.RawMessage) ([]any, error) {
	token, err := arg[string](args, 0)
	if err != nil {
		return nil, err
	}

	user, err := g.users.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if current, ok := c.state.(authenticated); ok {
		if current.user.Username == user.Username {
			current.user, current.token = user, token
			// Presence is retried until one attempt succeeds
			var connectErr error
			if !current.online {
				connectErr = g.presence.Connect(ctx, user.Username)
				current.online = connectErr == nil
			}
			c.state = current
			g.registry.Send(c.conn, model.NewEvent(model.EventAuthenticated, user))
			if connectErr != nil {
				return nil, connectErr
			}
			return []any{user}, nil
		}
		if err := g.logout(ctx, c); err != nil {
			c.logger.Warn("logout before re-authentication failed", slog.Any("error", err))
		}
	}

	c.conn.SetUsername(user.Username)
	state := authenticated{user: user, token: token}
	c.logger = g.logger.With(
		slog.String("conn_id", c.conn.ID()),
		slog.String("username", string(user.Username)))

	var errs []error
	if err := g.presence.Connect(ctx, user.Username); err != nil {
		errs = append(errs, err)
	} else {
		state.online = true
	}
	c.state = state

	gameIDs, err := g.users.GetGamesOfUser(ctx, user.Username)
	if err != nil {
		errs = append(errs, err)
	}
	for _, id := range gameIDs {
		g.registry.Join(c.conn, model.GameRoom(id))
	}
	g.registry.Join(c.conn, model.UserRoom(user.Username))

	c.logger.Info("connection authenticated", slog.Int("active_games", len(gameIDs)))
	g.registry.Send(c.conn, model.NewEvent(model.EventAuthenticated, user))

	// The connection stays authenticated; the client is told about the
	// partial failure and may retry
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return []any{user}, nil
}

func (g *Gateway) handleLogout(ctx context.Context, c *client, _ []json.RawMessage) ([]any, error) {
	if _, ok := c.state.(authenticated); !ok {
		return nil, nil
	}
	err := g.logout(ctx, c)
	g.registry.Send(c.conn, model.NewEvent(model.EventLoggedOut))
	return nil, err
}

// logout reverts an authenticated connection to anonymous. The connection
// stays in its game rooms as a spectator; those rooms are told the player left.
// Anonymous connections are left untouched.
func (g *Gateway) logout(ctx context.Context, c *client) error {
	s, ok := c.state.(authenticated)
	if !ok {
		return nil
	}
	username := s.user.Username

	g.registry.AnnounceDeparture(c.conn, string(username))
	g.registry.Leave(c.conn, model.UserRoom(username))
	if g.registry.Leave(c.conn, model.QueueRoom) && g.registry.Count(model.UserRoom(username)) == 0 {
		g.queue.Dequeue(username)
	}

	c.conn.SetUsername("")
	c.state = unauthenticated{}
	c.logger.Info("connection logged out")
	c.logger = g.logger.With(slog.String("conn_id", c.conn.ID()))

	if !s.online {
		return nil
	}
	return g.presence.Disconnect(ctx, username)
}

// disconnect is the final cleanup of a closed connection. It is safe to run
// after logout already did part of the work.
func (g *Gateway) disconnect(c *client) {
	c.conn.Close()
	rooms := g.registry.LeaveAll(c.conn)

	ctx, cancel := g.operationContext()
	defer cancel()

	if s, ok := c.state.(authenticated); ok {
		username := s.user.Username
		if g.registry.Count(model.UserRoom(username)) == 0 {
			g.queue.ScheduleRemoval(username, g.cfg.QueueGrace)
		}
		if s.online {
			if err := g.presence.Disconnect(ctx, username); err != nil {
				c.logger.Warn("failed to mark user offline", slog.Any("error", err))
			}
		}
		c.state = unauthenticated{}
	}

	c.logger.Info("connection closed", slog.Int("rooms_left", len(rooms)))
}
