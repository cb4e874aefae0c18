package gateway

import (
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/realtime"
)

// connState is either unauthenticated or authenticated
type connState interface {
	isConnState()
}

type unauthenticated struct{}

type authenticated struct {
	user  *model.User
	token string

	// online is set once the presence tracker counted this connection
	online bool
}

func (unauthenticated) isConnState() {}
func (authenticated) isConnState()   {}

// client is the actor-owned context of one connection. Only the connection's
// read loop touches state.
type client struct {
	conn   *realtime.Conn
	ws     *websocket.Conn
	state  connState
	logger *slog.Logger
}

// identity returns the authenticated user, or ErrNotAuthenticated
func (c *client) identity() (*model.User, error) {
	switch s := c.state.(type) {
	case authenticated:
		return s.user, nil
	case unauthenticated:
		return nil, model.ErrNotAuthenticated
	}
	return nil, model.ErrNotAuthenticated
}
