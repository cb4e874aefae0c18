package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/gocup/internal/model"
)

// handlePlay puts the player in the queue and tries to form a match
func (g *Gateway) handlePlay(ctx context.Context, c *client, user *model.User, args []json.RawMessage) ([]any, error) {
	prefs, err := optionalArg[model.Preferences](args, 0)
	if err != nil {
		return nil, err
	}
	if prefs, err = prefs.Normalize(); err != nil {
		return nil, err
	}

	active, err := g.users.GetGamesOfUser(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, model.ErrAlreadyInGame
	}

	// The requester sees searching before the queueUpdated of its own enqueue
	joined := g.registry.Join(c.conn, model.QueueRoom)
	inQueue, err := g.queue.EnqueueThen(user.Username, prefs, func(inQueue int) {
		g.registry.Send(c.conn, model.NewEvent(model.EventSearching, model.QueueStatus{InQueue: inQueue}))
	})
	if err != nil {
		if joined {
			g.registry.Leave(c.conn, model.QueueRoom)
		}
		return nil, err
	}

	status := model.QueueStatus{InQueue: inQueue}

	if _, err := g.matchQueued(ctx); err != nil {
		c.logger.Warn("matchmaking failed", slog.Any("error", err))
	}
	return []any{status}, nil
}

// matchQueued creates a session for the next compatible pair, if any, and
// moves every connection of both players from the queue room to the game room
func (g *Gateway) matchQueued(ctx context.Context) (*model.GameSession, error) {
	game, err := g.sessions.TryMatch(ctx)
	if err != nil || game == nil {
		return nil, err
	}

	room := model.GameRoom(game.ID)
	for _, username := range game.Participants() {
		for _, conn := range g.registry.MembersOf(model.UserRoom(username)) {
			g.registry.Leave(conn, model.QueueRoom)
			g.registry.Join(conn, room)
		}
	}
	for _, username := range game.Participants() {
		g.registry.Broadcast(model.UserRoom(username), model.NewEvent(model.EventGameFound, game))
	}

	g.logger.Info("match found",
		slog.String("game_id", string(game.ID)),
		slog.String("black", string(game.Black.Username)),
		slog.String("white", string(game.White.Username)))
	return game, nil
}

// handleCancel takes the player out of the queue. Cancelling while not queued
// is not an error.
func (g *Gateway) handleCancel(_ context.Context, c *client, user *model.User, _ []json.RawMessage) ([]any, error) {
	cancelled := func(int) { g.registry.Send(c.conn, model.NewEvent(model.EventCancelled)) }
	removed, inQueue := g.queue.DequeueThen(user.Username, cancelled)
	if !removed {
		cancelled(inQueue)
	}
	for _, conn := range g.registry.MembersOf(model.UserRoom(user.Username)) {
		g.registry.Leave(conn, model.QueueRoom)
	}
	return []any{model.QueueStatus{InQueue: inQueue}}, nil
}

func (g *Gateway) handleFetchQueueData(_ context.Context, _ *client, user *model.User, _ []json.RawMessage) ([]any, error) {
	return []any{g.queue.Data(user.Username)}, nil
}

// handleJoinGameRoom lets any connection watch a game
func (g *Gateway) handleJoinGameRoom(ctx context.Context, c *client, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	game, err := g.sessions.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	g.registry.Join(c.conn, model.GameRoom(id))
	return []any{game}, nil
}

func (g *Gateway) handleLeaveGameRoom(_ context.Context, c *client, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	g.registry.Leave(c.conn, model.GameRoom(id))
	return nil, nil
}

func (g *Gateway) handleGameChatMessage(ctx context.Context, _ *client, user *model.User, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	message, err := arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	entry, err := g.sessions.CreateChatEntryByGameID(ctx, id, user.Username, message)
	if err != nil {
		return nil, err
	}
	return []any{entry}, nil
}

func (g *Gateway) handleCancelGame(ctx context.Context, _ *client, user *model.User, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	result, err := g.sessions.CancelGame(ctx, id, user.Username)
	if err != nil {
		return nil, err
	}
	return []any{result.CancelledBy, result.LatestSystemChatEntry}, nil
}

func (g *Gateway) handlePlayMove(ctx context.Context, _ *client, user *model.User, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	point, err := arg[model.Point](args, 1)
	if err != nil {
		return nil, err
	}
	move, err := g.sessions.PlayMove(ctx, id, user.Username, point)
	if err != nil {
		return nil, err
	}
	return []any{move}, nil
}

func (g *Gateway) handlePass(ctx context.Context, _ *client, user *model.User, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	move, err := g.sessions.Pass(ctx, id, user.Username)
	if err != nil {
		return nil, err
	}
	return []any{move}, nil
}

func (g *Gateway) handleResign(ctx context.Context, _ *client, user *model.User, args []json.RawMessage) ([]any, error) {
	id, err := gameIDArg(args, 0)
	if err != nil {
		return nil, err
	}
	move, err := g.sessions.Resign(ctx, id, user.Username)
	if err != nil {
		return nil, err
	}
	return []any{move}, nil
}
