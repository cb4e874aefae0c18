package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/storage"
	"github.com/mcoot/gocup/internal/storage/memory"
)

// slowStorage blocks GetGame until the context is done and fails SaveUser
type slowStorage struct {
	*memory.Storage
}

func (s *slowStorage) GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *slowStorage) SaveUser(ctx context.Context, user *model.User) error {
	return errors.New("connection refused")
}

type BoundedSuite struct {
	suite.Suite
	storage *storage.Bounded
	ctx     context.Context
}

func TestBoundedSuite(t *testing.T) {
	suite.Run(t, new(BoundedSuite))
}

func (s *BoundedSuite) SetupTest() {
	s.storage = storage.NewBounded(&slowStorage{Storage: memory.New()}, 20*time.Millisecond)
	s.ctx = context.Background()
}

func (s *BoundedSuite) TestTimeoutIsRetryable() {
	_, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrStorageTimeout)
	s.ErrorIs(err, model.ErrStorage)
	s.True(model.IsRetryable(err))
}

func (s *BoundedSuite) TestBackendErrorBecomesStorageError() {
	err := s.storage.SaveUser(s.ctx, &model.User{Username: "alice"})
	s.ErrorIs(err, model.ErrStorage)
	s.Equal(model.ErrStorageUnavailable.Error(), model.UserMessage(err))
}

func (s *BoundedSuite) TestDomainErrorsPassThrough() {
	_, err := s.storage.GetUser(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
	s.NotErrorIs(err, model.ErrStorage)
}

func (s *BoundedSuite) TestSuccessfulCall() {
	err := s.storage.SaveRegisteredUser(s.ctx, &model.RegisteredUser{Username: "alice"})
	s.Require().NoError(err)

	ru, err := s.storage.GetRegisteredUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.Username("alice"), ru.Username)
}
