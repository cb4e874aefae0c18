package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/gocup/internal/api/response"
	"github.com/mcoot/gocup/internal/model"
)

// GameReader reads game sessions and their chat
type GameReader interface {
	GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error)
	ChatHistory(ctx context.Context, id model.GameID) ([]*model.ChatEntry, error)
}

// GameHandler serves read-only views of game sessions
type GameHandler struct {
	games GameReader
}

// NewGameHandler creates a new game handler
func NewGameHandler(games GameReader) *GameHandler {
	return &GameHandler{games: games}
}

// Get handles GET /api/v1/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDFromPath(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	game, err := h.games.GetGame(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, game)
}

// Chat handles GET /api/v1/games/{id}/chat
func (h *GameHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDFromPath(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	entries, err := h.games.ChatHistory(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.ChatEntry{}
	}
	response.JSON(w, http.StatusOK, response.ChatHistory{GameID: string(id), Entries: entries})
}
