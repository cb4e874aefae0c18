package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users           map[model.Username]*model.User
	registeredUsers map[model.Username]*model.RegisteredUser
	games           map[model.GameID]*model.GameSession
	activeGames     map[model.Username]map[model.GameID]struct{}
	chat            map[model.GameID][]*model.ChatEntry
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:           make(map[model.Username]*model.User),
		registeredUsers: make(map[model.Username]*model.RegisteredUser),
		games:           make(map[model.GameID]*model.GameSession),
		activeGames:     make(map[model.Username]map[model.GameID]struct{}),
		chat:            make(map[model.GameID][]*model.ChatEntry),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *user
	s.users[user.Username] = &stored
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	result := *user
	return &result, nil
}

func (s *Storage) SetUserOnline(ctx context.Context, username model.Username, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return model.ErrUserNotFound
	}
	user.Online = online
	return nil
}

func (s *Storage) IsUserOnline(ctx context.Context, username model.Username) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return false, model.ErrUserNotFound
	}
	return user.Online, nil
}

// Registered user operations

func (s *Storage) SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *ru
	s.registeredUsers[ru.Username] = &stored
	return nil
}

func (s *Storage) GetRegisteredUser(ctx context.Context, username model.Username) (*model.RegisteredUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ru, ok := s.registeredUsers[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	result := *ru
	return &result, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game.Clone()

	for _, username := range game.Participants() {
		if game.Status.IsActive() {
			if s.activeGames[username] == nil {
				s.activeGames[username] = make(map[model.GameID]struct{})
			}
			s.activeGames[username][game.ID] = struct{}{}
		} else {
			delete(s.activeGames[username], game.ID)
		}
	}
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return game.Clone(), nil
}

func (s *Storage) GetActiveGameIDs(ctx context.Context, username model.Username) ([]model.GameID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]model.GameID, 0, len(s.activeGames[username]))
	for id := range s.activeGames[username] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Chat operations

func (s *Storage) AppendChatEntry(ctx context.Context, entry *model.ChatEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.chat[entry.GameID]
	entry.Seq = int64(len(entries) + 1)
	stored := *entry
	s.chat[entry.GameID] = append(entries, &stored)
	return nil
}

func (s *Storage) GetChatEntries(ctx context.Context, gameID model.GameID) ([]*model.ChatEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*model.ChatEntry, 0, len(s.chat[gameID]))
	for _, entry := range s.chat[gameID] {
		e := *entry
		entries = append(entries, &e)
	}
	storage.SortChatEntries(entries)
	return entries, nil
}
