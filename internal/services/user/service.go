package user

import (
	"context"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/storage"
)

// TokenVerifier resolves an auth token to a user
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Service answers questions about users for the real-time layer
type Service struct {
	storage  storage.Storage
	verifier TokenVerifier
}

// New creates a new user Service
func New(storage storage.Storage, verifier TokenVerifier) *Service {
	return &Service{
		storage:  storage,
		verifier: verifier,
	}
}

// Authenticate resolves token to the user it was issued for
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	return s.verifier.Authenticate(ctx, token)
}

// GetUser returns the profile of username
func (s *Service) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	return s.storage.GetUser(ctx, username)
}

// SetUserOnline persists that username is online
func (s *Service) SetUserOnline(ctx context.Context, username model.Username) error {
	return s.storage.SetUserOnline(ctx, username, true)
}

// SetUserOffline persists that username is offline
func (s *Service) SetUserOffline(ctx context.Context, username model.Username) error {
	return s.storage.SetUserOnline(ctx, username, false)
}

// IsUserOnline returns the persisted online flag of username
func (s *Service) IsUserOnline(ctx context.Context, username model.Username) (bool, error) {
	return s.storage.IsUserOnline(ctx, username)
}

// GetGamesOfUser returns the ids of the waiting or started games username plays in
func (s *Service) GetGamesOfUser(ctx context.Context, username model.Username) ([]model.GameID, error) {
	return s.storage.GetActiveGameIDs(ctx, username)
}

// GetUserIDByUser returns the storage id of username
func (s *Service) GetUserIDByUser(ctx context.Context, username model.Username) (model.UserID, error) {
	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ServiceInterface is the contract the real-time layer needs from the user service
type ServiceInterface interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
	GetUser(ctx context.Context, username model.Username) (*model.User, error)
	SetUserOnline(ctx context.Context, username model.Username) error
	SetUserOffline(ctx context.Context, username model.Username) error
	IsUserOnline(ctx context.Context, username model.Username) (bool, error)
	GetGamesOfUser(ctx context.Context, username model.Username) ([]model.GameID, error)
	GetUserIDByUser(ctx context.Context, username model.Username) (model.UserID, error)
}

var _ ServiceInterface = (*Service)(nil)
