package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gocup/internal/dependencies/clock"
	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/storage"
)

const issuer = "gocup"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// Session is the result of a successful login or registration
type Session struct {
	Token     string
	User      model.User
	ExpiresAt time.Time
}

// Claims are the JWT claims issued for a user
type Claims struct {
	UserID model.UserID `json:"uid"`
	jwt.RegisteredClaims
}

// Service handles registration, login and token verification
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	cfg     Config
}

// Config holds configuration for the auth service
type Config struct {
	// Secret signs issued tokens with HS256
	Secret string `yaml:"jwt_secret"`

	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Secret:     "change-me",
		TokenTTL:   24 * time.Hour,
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		cfg:     cfg,
	}
}

// Register creates a user account and issues a token for it
func (s *Service) Register(ctx context.Context, username model.Username, password string) (*Session, error) {
	if !usernamePattern.MatchString(string(username)) {
		return nil, model.ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, model.ErrInvalidPassword
	}

	// Check if username exists
	_, err := s.storage.GetRegisteredUser(ctx, username)
	if err == nil {
		return nil, model.ErrUsernameTaken
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:        model.UserID(uuid.NewString()),
		Username:  username,
		Elo:       model.DefaultElo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	registered := &model.RegisteredUser{
		UserID:       user.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.storage.SaveRegisteredUser(ctx, registered); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login verifies credentials and issues a token
func (s *Service) Login(ctx context.Context, username model.Username, password string) (*Session, error) {
	ru, err := s.storage.GetRegisteredUser(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ru.PasswordHash), []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

// ParseToken verifies a token's signature and expiry and returns its claims
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.cfg.Secret), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, model.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}

// Authenticate resolves a token to the current profile of its user
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.storage.GetUser(ctx, model.Username(claims.Subject))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// issue signs a token for user
func (s *Service) issue(user *model.User) (*Session, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(user.Username),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}
