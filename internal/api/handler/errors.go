package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gocup/internal/api/apierr"
	"github.com/mcoot/gocup/internal/model"
)

// maxGameIDLength bounds path ids before they reach storage
const maxGameIDLength = 64

// WriteError writes err as a JSON error envelope
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an INVALID_REQUEST error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// gameIDFromPath reads the {id} route variable. Ids that could never have
// been issued are rejected as not found.
func gameIDFromPath(r *http.Request) (model.GameID, error) {
	id := mux.Vars(r)["id"]
	if id == "" || len(id) > maxGameIDLength {
		return "", model.ErrGameNotFound
	}
	return model.GameID(id), nil
}
