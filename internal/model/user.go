package model

import "time"

// Username is the stable, unique handle of a user. It doubles as the identity
// carried by an authenticated connection.
type Username string

// UserID is the storage identifier of a user
type UserID string

// DefaultElo is the rating assigned at registration
const DefaultElo = 1500

// User is the public profile of a player
type User struct {
	ID        UserID    `json:"id"`
	Username  Username  `json:"username"`
	Elo       int       `json:"elo"`
	Avatar    string    `json:"avatar,omitempty"`
	Country   string    `json:"country,omitempty"`
	Online    bool      `json:"isOnline"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisteredUser holds the credentials of a user.
// Stored separately so the password hash never travels with the profile.
type RegisteredUser struct {
	UserID       UserID
	Username     Username
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
