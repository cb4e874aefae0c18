package request

import (
	"errors"
	"strings"
)

// Credentials identify a player account. Format rules for usernames and
// passwords are enforced by the auth service.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate reports the first missing field
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// RegisterRequest is the body of POST /api/v1/players/register
type RegisterRequest struct {
	Credentials
}

// LoginRequest is the body of POST /api/v1/players/login
type LoginRequest struct {
	Credentials
}
