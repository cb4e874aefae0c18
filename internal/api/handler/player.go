package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcoot/gocup/internal/api/middleware"
	"github.com/mcoot/gocup/internal/api/request"
	"github.com/mcoot/gocup/internal/api/response"
	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/services/auth"
)

// Accounts registers and logs in players
type Accounts interface {
	Register(ctx context.Context, username model.Username, password string) (*auth.Session, error)
	Login(ctx context.Context, username model.Username, password string) (*auth.Session, error)
}

// UserLookup reads player profiles
type UserLookup interface {
	GetUser(ctx context.Context, username model.Username) (*model.User, error)
}

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	accounts Accounts
	users    UserLookup
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(accounts Accounts, users UserLookup) *PlayerHandler {
	return &PlayerHandler{
		accounts: accounts,
		users:    users,
	}
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if !decodeCredentials(w, r, &req, &req.Credentials) {
		return
	}

	session, err := h.accounts.Register(r.Context(), model.Username(req.Username), req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if !decodeCredentials(w, r, &req, &req.Credentials) {
		return
	}

	session, err := h.accounts.Login(r.Context(), model.Username(req.Username), req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// decodeCredentials decodes the body into dst and validates creds, writing
// an INVALID_REQUEST error on failure
func decodeCredentials(w http.ResponseWriter, r *http.Request, dst any, creds *request.Credentials) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return false
	}
	if err := creds.Validate(); err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return false
	}
	return true
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	// Re-read so the online flag is current
	fresh, err := h.users.GetUser(r.Context(), user.Username)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(fresh))
}
