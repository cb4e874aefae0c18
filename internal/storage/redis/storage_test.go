package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gocup/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.ArchivedGameTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) newGame(id model.GameID, status model.GameStatus) *model.GameSession {
	return &model.GameSession{
		ID:     id,
		Black:  model.Participant{Username: "alice", Elo: 1500},
		White:  model.Participant{Username: "bob", Elo: 1480},
		Status: status,
		Size:   9,
		Board:  model.NewBoard(9),
	}
}

// User tests

func (s *StorageSuite) TestSaveAndGetUser() {
	user := &model.User{ID: "u1", Username: "alice", Elo: 1500, CreatedAt: time.Now()}

	err := s.storage.SaveUser(s.ctx, user)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.ID, retrieved.ID)
	s.Equal(1500, retrieved.Elo)
	s.False(retrieved.Online)
}

func (s *StorageSuite) TestGetUserNotFound() {
	_, err := s.storage.GetUser(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestOnlineSet() {
	_ = s.storage.SaveUser(s.ctx, &model.User{Username: "alice"})

	s.Require().NoError(s.storage.SetUserOnline(s.ctx, "alice", true))
	s.True(s.mini.Exists(onlineUsersKey()))

	user, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(user.Online)

	// Idempotent
	s.Require().NoError(s.storage.SetUserOnline(s.ctx, "alice", true))
	s.Require().NoError(s.storage.SetUserOnline(s.ctx, "alice", false))

	online, err := s.storage.IsUserOnline(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(online)
}

func (s *StorageSuite) TestSetUserOnlineUnknownUser() {
	err := s.storage.SetUserOnline(s.ctx, "ghost", true)
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.storage.IsUserOnline(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Registered user tests

func (s *StorageSuite) TestSaveAndGetRegisteredUser() {
	ru := &model.RegisteredUser{UserID: "u1", Username: "alice", PasswordHash: "hash123"}

	err := s.storage.SaveRegisteredUser(s.ctx, ru)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetRegisteredUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), retrieved.UserID)
	s.Equal("hash123", retrieved.PasswordHash)
}

func (s *StorageSuite) TestGetRegisteredUserNotFound() {
	_, err := s.storage.GetRegisteredUser(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Game tests

func (s *StorageSuite) TestSaveAndGetGame() {
	game := s.newGame("g1", model.StatusWaiting)
	game.Board[2][3] = model.ColorBlack

	err := s.storage.SaveGame(s.ctx, game)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(model.StatusWaiting, retrieved.Status)
	s.Equal(model.ColorBlack, retrieved.Board.At(model.Point{X: 3, Y: 2}))
	s.Equal(1480, retrieved.White.Elo)
}

func (s *StorageSuite) TestGetGameNotFound() {
	_, err := s.storage.GetGame(s.ctx, "missing")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestActiveGamesHaveNoTTL() {
	_ = s.storage.SaveGame(s.ctx, s.newGame("g1", model.StatusStarted))

	s.Equal(time.Duration(0), s.mini.TTL(gameKey("g1")))
	s.True(s.mini.Exists(activeGamesIndexKey("alice")))
}

func (s *StorageSuite) TestArchivedGameExpiresWithChat() {
	game := s.newGame("g1", model.StatusWaiting)
	_ = s.storage.SaveGame(s.ctx, game)
	_ = s.storage.AppendChatEntry(s.ctx, &model.ChatEntry{GameID: "g1", Message: "gg"})

	game.Status = model.StatusCancelled
	s.Require().NoError(s.storage.SaveGame(s.ctx, game))

	s.Equal(time.Hour, s.mini.TTL(gameKey("g1")))
	s.Equal(time.Hour, s.mini.TTL(chatKey("g1")))

	ids, err := s.storage.GetActiveGameIDs(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *StorageSuite) TestGetActiveGameIDsSorted() {
	_ = s.storage.SaveGame(s.ctx, s.newGame("g2", model.StatusStarted))
	_ = s.storage.SaveGame(s.ctx, s.newGame("g1", model.StatusWaiting))

	ids, err := s.storage.GetActiveGameIDs(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal([]model.GameID{"g1", "g2"}, ids)
}

// Chat tests

func (s *StorageSuite) TestChatAppendAssignsSequence() {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	first := &model.ChatEntry{ID: "c1", GameID: "g1", Message: "first", CreatedAt: t0}
	second := &model.ChatEntry{ID: "c2", GameID: "g1", Message: "second", CreatedAt: t0}

	s.Require().NoError(s.storage.AppendChatEntry(s.ctx, first))
	s.Require().NoError(s.storage.AppendChatEntry(s.ctx, second))
	s.Equal(int64(1), first.Seq)
	s.Equal(int64(2), second.Seq)

	entries, err := s.storage.GetChatEntries(s.ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("first", entries[0].Message)
	s.Equal("second", entries[1].Message)
}

func (s *StorageSuite) TestChatOrderedByCreationTime() {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_ = s.storage.AppendChatEntry(s.ctx, &model.ChatEntry{GameID: "g1", Message: "later", CreatedAt: t0.Add(time.Minute)})
	_ = s.storage.AppendChatEntry(s.ctx, &model.ChatEntry{GameID: "g1", Message: "sooner", CreatedAt: t0})

	entries, err := s.storage.GetChatEntries(s.ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("sooner", entries[0].Message)
}

func (s *StorageSuite) TestBackendFailure() {
	s.mini.Close()

	_, err := s.storage.GetGame(s.ctx, "g1")
	s.Error(err)
	s.NotErrorIs(err, model.ErrGameNotFound)
}
