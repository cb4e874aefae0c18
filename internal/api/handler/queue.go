package handler

import (
	"net/http"

	"github.com/mcoot/gocup/internal/api/middleware"
	"github.com/mcoot/gocup/internal/api/response"
	"github.com/mcoot/gocup/internal/model"
)

// QueueReader answers queue position queries
type QueueReader interface {
	Data(username model.Username) model.QueueData
}

// QueueHandler serves the match queue status
type QueueHandler struct {
	queue QueueReader
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queue QueueReader) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Get handles GET /api/v1/queue. Authenticated callers also get their
// time spent waiting.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	var username model.Username
	if user := middleware.GetUser(r.Context()); user != nil {
		username = user.Username
	}
	response.JSON(w, http.StatusOK, h.queue.Data(username))
}
