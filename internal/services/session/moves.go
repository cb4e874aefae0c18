package session

import (
	"context"
	"log/slog"

	"github.com/mcoot/gocup/internal/model"
)

// PlayMove places a stone for actor. Black's first move starts a waiting game.
func (c *Controller) PlayMove(ctx context.Context, id model.GameID, actor model.Username, p model.Point) (*model.Move, error) {
	return c.act(ctx, id, actor, func(next *model.GameSession, color model.Color) (*model.Move, error) {
		if next.Turn != color {
			return nil, model.ErrNotYourTurn
		}
		board, captured, err := c.rules.Place(next.Board, color, p)
		if err != nil {
			return nil, err
		}

		next.Board = board
		next.MoveCount++
		next.ConsecutivePasses = 0
		next.Turn = color.Opponent()
		if next.Status == model.StatusWaiting {
			next.Status = model.StatusStarted
		}

		point := p
		return &model.Move{Kind: model.MovePlace, Point: &point, Captured: captured}, nil
	})
}

// Pass skips actor's turn. Two consecutive passes finish the game.
func (c *Controller) Pass(ctx context.Context, id model.GameID, actor model.Username) (*model.Move, error) {
	return c.act(ctx, id, actor, func(next *model.GameSession, color model.Color) (*model.Move, error) {
		if next.Status != model.StatusStarted {
			return nil, model.ErrInvalidMove
		}
		if next.Turn != color {
			return nil, model.ErrNotYourTurn
		}

		next.MoveCount++
		next.ConsecutivePasses++
		next.Turn = color.Opponent()
		if next.ConsecutivePasses >= 2 {
			next.Status = model.StatusFinished
		}
		return &model.Move{Kind: model.MovePass}, nil
	})
}

// Resign ends a started game with the opponent as winner
func (c *Controller) Resign(ctx context.Context, id model.GameID, actor model.Username) (*model.Move, error) {
	return c.act(ctx, id, actor, func(next *model.GameSession, color model.Color) (*model.Move, error) {
		if next.Status != model.StatusStarted {
			return nil, model.ErrGameNotActive
		}

		next.MoveCount++
		next.Status = model.StatusFinished
		next.Winner = color.Opponent()
		return &model.Move{Kind: model.MoveResign}, nil
	})
}

type moveFunc func(next *model.GameSession, color model.Color) (*model.Move, error)

// act applies fn to a copy of the session, persists the result and only then
// makes it visible. The room is sent gameMove, followed by gameUpdated when the
// status changed.
func (c *Controller) act(ctx context.Context, id model.GameID, actor model.Username, fn moveFunc) (*model.Move, error) {
	e, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	color, ok := e.game.ColorOf(actor)
	if !ok {
		return nil, model.ErrNotParticipant
	}
	if !e.game.Status.IsActive() {
		return nil, model.ErrGameNotActive
	}

	prev := e.game.Status
	next := e.game.Clone()
	move, err := fn(next, color)
	if err != nil {
		return nil, err
	}
	if next.Status != prev && !prev.CanTransitionTo(next.Status) {
		return nil, model.ErrInvalidTransition
	}

	now := c.clock.Now()
	next.UpdatedAt = now
	if next.Status.IsTerminal() {
		next.EndedAt = &now
	}
	move.GameID = next.ID
	move.Color = color
	move.Number = next.MoveCount
	move.PlayedAt = now

	if err := c.storage.SaveGame(ctx, next); err != nil {
		c.logger.Error("failed to save game",
			slog.String("game_id", string(next.ID)),
			slog.Any("error", err))
		return nil, err
	}
	e.game = next

	if prev == model.StatusWaiting && next.Status != model.StatusWaiting {
		c.stopTimerLocked(e)
	}
	if next.Status.IsTerminal() {
		c.forget(next.ID)
		c.queue.Release(next.Participants()...)
	}

	events := []model.Event{model.NewEvent(model.EventGameMove, move)}
	if next.Status != prev {
		events = append(events, model.NewEvent(model.EventGameUpdated, next.Clone()))
	}
	c.broadcaster.Broadcast(model.GameRoom(next.ID), events...)

	c.logger.Debug("move played",
		slog.String("game_id", string(next.ID)),
		slog.String("player", string(actor)),
		slog.String("kind", string(move.Kind)),
		slog.Int("number", move.Number))
	if next.Status != prev {
		c.logger.Info("game status changed",
			slog.String("game_id", string(next.ID)),
			slog.String("from", string(prev)),
			slog.String("to", string(next.Status)))
	}
	return move, nil
}
