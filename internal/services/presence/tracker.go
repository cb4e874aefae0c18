package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/gocup/internal/model"
)

// Directory persists the online flag and knows which games a user plays in
type Directory interface {
	SetUserOnline(ctx context.Context, username model.Username) error
	SetUserOffline(ctx context.Context, username model.Username) error
	IsUserOnline(ctx context.Context, username model.Username) (bool, error)
	GetGamesOfUser(ctx context.Context, username model.Username) ([]model.GameID, error)
}

// Broadcaster delivers events to a room
type Broadcaster interface {
	Broadcast(room string, events ...model.Event)
}

// Tracker maintains each user's online status and tells the rooms of the
// user's active games about changes. Calls for the same user are serialized;
// calls for different users proceed independently.
type Tracker struct {
	directory   Directory
	broadcaster Broadcaster
	logger      *slog.Logger

	mu          sync.Mutex
	locks       map[model.Username]*keyLock
	connections map[model.Username]int
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewTracker creates a new presence Tracker
func NewTracker(directory Directory, broadcaster Broadcaster, logger *slog.Logger) *Tracker {
	return &Tracker{
		directory:   directory,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "presence")),
		locks:       make(map[model.Username]*keyLock),
		connections: make(map[model.Username]int),
	}
}

// SetOnline marks username online and broadcasts playerOnlineStatus(username, true)
// once to each of the user's active game rooms
func (t *Tracker) SetOnline(ctx context.Context, username model.Username) error {
	unlock := t.lock(username)
	defer unlock()
	return t.set(ctx, username, true)
}

// SetOffline marks username offline and broadcasts playerOnlineStatus(username, false)
// once to each of the user's active game rooms
func (t *Tracker) SetOffline(ctx context.Context, username model.Username) error {
	unlock := t.lock(username)
	defer unlock()
	return t.set(ctx, username, false)
}

// IsOnline reports whether username is online. Users with an open connection
// on this server are answered from memory.
func (t *Tracker) IsOnline(ctx context.Context, username model.Username) (bool, error) {
	t.mu.Lock()
	connected := t.connections[username] > 0
	t.mu.Unlock()
	if connected {
		return true, nil
	}

	online, err := t.directory.IsUserOnline(ctx, username)
	if err != nil {
		return false, fmt.Errorf("%w: %w", model.ErrPresenceUpdate, err)
	}
	return online, nil
}

// Connect records a new authenticated connection for username. The first
// connection marks the user online. If that fails the connection is not
// recorded, so the caller can retry.
func (t *Tracker) Connect(ctx context.Context, username model.Username) error {
	unlock := t.lock(username)
	defer unlock()

	t.mu.Lock()
	t.connections[username]++
	first := t.connections[username] == 1
	t.mu.Unlock()

	if !first {
		return nil
	}
	if err := t.set(ctx, username, true); err != nil {
		t.mu.Lock()
		t.connections[username]--
		if t.connections[username] <= 0 {
			delete(t.connections, username)
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// Disconnect records that a connection of username went away. When the last
// one is gone the user is marked offline.
func (t *Tracker) Disconnect(ctx context.Context, username model.Username) error {
	unlock := t.lock(username)
	defer unlock()

	t.mu.Lock()
	if t.connections[username] == 0 {
		t.mu.Unlock()
		return nil
	}
	t.connections[username]--
	last := t.connections[username] == 0
	if last {
		delete(t.connections, username)
	}
	t.mu.Unlock()

	if !last {
		return nil
	}
	return t.set(ctx, username, false)
}

// Connections returns the number of open connections recorded for username
func (t *Tracker) Connections(username model.Username) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connections[username]
}

func (t *Tracker) set(ctx context.Context, username model.Username, online bool) error {
	var err error
	if online {
		err = t.directory.SetUserOnline(ctx, username)
	} else {
		err = t.directory.SetUserOffline(ctx, username)
	}
	if err != nil {
		t.logger.Warn("failed to update presence",
			slog.String("username", string(username)),
			slog.Bool("online", online),
			slog.Any("error", err))
		return fmt.Errorf("%w: %w", model.ErrPresenceUpdate, err)
	}

	gameIDs, err := t.directory.GetGamesOfUser(ctx, username)
	if err != nil {
		t.logger.Warn("failed to look up games for presence broadcast",
			slog.String("username", string(username)),
			slog.Any("error", err))
		return fmt.Errorf("%w: %w", model.ErrPresenceUpdate, err)
	}

	seen := make(map[model.GameID]struct{}, len(gameIDs))
	for _, id := range gameIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		t.broadcaster.Broadcast(model.GameRoom(id),
			model.NewEvent(model.EventPlayerOnlineStatus, string(username), online))
	}

	t.logger.Info("presence updated",
		slog.String("username", string(username)),
		slog.Bool("online", online),
		slog.Int("rooms", len(seen)))
	return nil
}

// lock acquires the per-user lock and returns its release function
func (t *Tracker) lock(username model.Username) func() {
	t.mu.Lock()
	kl, ok := t.locks[username]
	if !ok {
		kl = &keyLock{}
		t.locks[username] = kl
	}
	kl.refs++
	t.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		t.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(t.locks, username)
		}
		t.mu.Unlock()
	}
}
