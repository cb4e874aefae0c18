package storage

import (
	"context"

	"github.com/mcoot/gocup/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, username model.Username) (*model.User, error)
	SetUserOnline(ctx context.Context, username model.Username, online bool) error
	IsUserOnline(ctx context.Context, username model.Username) (bool, error)

	// Registered user operations
	SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error
	GetRegisteredUser(ctx context.Context, username model.Username) (*model.RegisteredUser, error)

	// Game operations. SaveGame keeps the per-user index of active games in
	// sync with the game's status.
	SaveGame(ctx context.Context, game *model.GameSession) error
	GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error)
	GetActiveGameIDs(ctx context.Context, username model.Username) ([]model.GameID, error)

	// Chat operations. AppendChatEntry assigns the entry's Seq.
	AppendChatEntry(ctx context.Context, entry *model.ChatEntry) error
	GetChatEntries(ctx context.Context, gameID model.GameID) ([]*model.ChatEntry, error)
}
