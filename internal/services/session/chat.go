package session

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcoot/gocup/internal/model"
)

// CreateChatEntryByGameID appends a chat message from author to a game and
// broadcasts it to the game room. Any logged-in user may chat in any game.
func (c *Controller) CreateChatEntryByGameID(ctx context.Context, id model.GameID, author model.Username, message string) (*model.ChatEntry, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return nil, model.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > c.cfg.MaxChatLength {
		return nil, model.ErrMessageTooLong
	}

	e, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	authorID, err := c.users.GetUserIDByUser(ctx, author)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	chatEntry := &model.ChatEntry{
		ID:         model.ChatEntryID(uuid.NewString()),
		GameID:     id,
		AuthorID:   authorID,
		AuthorName: author,
		Message:    text,
		CreatedAt:  c.clock.Now(),
	}
	if err := c.storage.AppendChatEntry(ctx, chatEntry); err != nil {
		c.logger.Error("failed to save chat entry",
			slog.String("game_id", string(id)),
			slog.Any("error", err))
		return nil, err
	}

	c.broadcaster.Broadcast(model.GameRoom(id), model.NewEvent(model.EventGameChatMessage, chatEntry))
	return chatEntry, nil
}

// ChatHistory returns the chat entries of a game in order
func (c *Controller) ChatHistory(ctx context.Context, id model.GameID) ([]*model.ChatEntry, error) {
	if _, err := c.load(ctx, id); err != nil {
		return nil, err
	}
	return c.storage.GetChatEntries(ctx, id)
}

func (c *Controller) systemEntry(id model.GameID, message string) *model.ChatEntry {
	return &model.ChatEntry{
		ID:        model.ChatEntryID(uuid.NewString()),
		GameID:    id,
		System:    true,
		Message:   message,
		CreatedAt: c.clock.Now(),
	}
}
