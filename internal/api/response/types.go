package response

import (
	"time"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/services/auth"
)

// User represents a player in API responses
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
	Avatar   string `json:"avatar,omitempty"`
	Country  string `json:"country,omitempty"`
	IsOnline bool   `json:"isOnline"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:       string(u.ID),
		Username: string(u.Username),
		Elo:      u.Elo,
		Avatar:   u.Avatar,
		Country:  u.Country,
		IsOnline: u.Online,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		User:      UserFromModel(&s.User),
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
	}
}

// ChatHistory is the chat log of a game, oldest first
type ChatHistory struct {
	GameID  string             `json:"gameId"`
	Entries []*model.ChatEntry `json:"entries"`
}
