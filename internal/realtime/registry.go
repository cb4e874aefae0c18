package realtime

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/gocup/internal/model"
)

// CountObserver is notified after the member count of a game room changes
type CountObserver func(room string, count int)

// Registry maps room names to the live connections in them and fans events
// out to those connections. All deliveries happen under the registry lock, so
// every member of a room observes that room's events in the same order and the
// events of one broadcast call arrive contiguously.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Conn]struct{}
	memberships map[*Conn]map[string]struct{}
	observer    CountObserver
	logger      *slog.Logger
}

// NewRegistry creates an empty Registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]map[*Conn]struct{}),
		memberships: make(map[*Conn]map[string]struct{}),
		logger:      logger.With(slog.String("component", "rooms")),
	}
}

// SetCountObserver registers a callback for game room count changes.
// It must be set before connections start joining rooms.
func (r *Registry) SetCountObserver(observer CountObserver) {
	r.observer = observer
}

// Join adds conn to room. For game rooms, every member including conn receives
// userJoinedGameRoom with the new member count. Joining a room twice or joining
// with a closed connection is a no-op that returns false.
func (r *Registry) Join(conn *Conn, room string) bool {
	r.mu.Lock()
	if conn.Closed() {
		r.mu.Unlock()
		return false
	}
	if _, ok := r.rooms[room][conn]; ok {
		r.mu.Unlock()
		return false
	}

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*Conn]struct{})
	}
	r.rooms[room][conn] = struct{}{}
	if r.memberships[conn] == nil {
		r.memberships[conn] = make(map[string]struct{})
	}
	r.memberships[conn][room] = struct{}{}

	count := len(r.rooms[room])
	if model.IsGameRoom(room) {
		r.deliverLocked(room, nil, model.NewEvent(model.EventUserJoinedGameRoom, conn.DisplayName(), count))
	}
	r.mu.Unlock()

	r.logger.Debug("connection joined room",
		slog.String("conn_id", conn.ID()),
		slog.String("room", room),
		slog.Int("members", count))
	r.notify(room, count)
	return true
}

// Leave removes conn from room. For game rooms, the remaining members receive
// userLeftGameRoom with the new member count. Returns false if conn was not a member.
func (r *Registry) Leave(conn *Conn, room string) bool {
	r.mu.Lock()
	count, ok := r.removeLocked(conn, room)
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.logger.Debug("connection left room",
		slog.String("conn_id", conn.ID()),
		slog.String("room", room),
		slog.Int("members", count))
	r.notify(room, count)
	return true
}

// LeaveAll removes conn from every room it belongs to, announcing the
// departure to each game room, and returns the rooms it left
func (r *Registry) LeaveAll(conn *Conn) []string {
	r.mu.Lock()
	rooms := sortedKeys(r.memberships[conn])
	counts := make(map[string]int, len(rooms))
	for _, room := range rooms {
		counts[room], _ = r.removeLocked(conn, room)
	}
	delete(r.memberships, conn)
	r.mu.Unlock()

	for _, room := range rooms {
		r.notify(room, counts[room])
	}
	if len(rooms) > 0 {
		r.logger.Debug("connection left all rooms",
			slog.String("conn_id", conn.ID()),
			slog.Any("rooms", rooms))
	}
	return rooms
}

// AnnounceDeparture sends userLeftGameRoom(name, count) to every game room conn
// is in, without changing membership. Used when an identity logs out but the
// connection stays in its rooms as a spectator.
func (r *Registry) AnnounceDeparture(conn *Conn, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range sortedKeys(r.memberships[conn]) {
		if model.IsGameRoom(room) {
			r.deliverLocked(room, nil, model.NewEvent(model.EventUserLeftGameRoom, name, len(r.rooms[room])))
		}
	}
}

// MembersOf returns a snapshot of the connections in room
func (r *Registry) MembersOf(room string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Conn, 0, len(r.rooms[room]))
	for conn := range r.rooms[room] {
		members = append(members, conn)
	}
	return members
}

// Count returns the number of connections in room
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// IsMember reports whether conn is in room
func (r *Registry) IsMember(conn *Conn, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][conn]
	return ok
}

// RoomsOf returns the rooms conn is in, sorted by name
func (r *Registry) RoomsOf(conn *Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.memberships[conn])
}

// Broadcast delivers events, in order, to every member of room
func (r *Registry) Broadcast(room string, events ...model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliverLocked(room, nil, events...)
}

// BroadcastExcept delivers events to every member of room other than except
func (r *Registry) BroadcastExcept(except *Conn, room string, events ...model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliverLocked(room, except, events...)
}

// Send delivers events to a single connection
func (r *Registry) Send(conn *Conn, events ...model.Event) {
	messages := r.encode(events)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range messages {
		if !conn.deliver(message) && !conn.Closed() {
			r.logger.Warn("message dropped - connection buffer full",
				slog.String("conn_id", conn.ID()))
		}
	}
}

// SendRaw delivers an already encoded message to a single connection
func (r *Registry) SendRaw(conn *Conn, message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !conn.deliver(message) && !conn.Closed() {
		r.logger.Warn("message dropped - connection buffer full",
			slog.String("conn_id", conn.ID()))
	}
}

// removeLocked removes conn from room and announces it for game rooms.
// Returns the remaining member count and whether conn was a member.
func (r *Registry) removeLocked(conn *Conn, room string) (int, bool) {
	members, ok := r.rooms[room]
	if !ok {
		return 0, false
	}
	if _, ok := members[conn]; !ok {
		return len(members), false
	}

	delete(members, conn)
	delete(r.memberships[conn], room)
	count := len(members)
	if count == 0 {
		delete(r.rooms, room)
	}
	if model.IsGameRoom(room) && count > 0 {
		r.deliverLocked(room, nil, model.NewEvent(model.EventUserLeftGameRoom, conn.DisplayName(), count))
	}
	return count, true
}

func (r *Registry) deliverLocked(room string, except *Conn, events ...model.Event) {
	members := r.rooms[room]
	if len(members) == 0 {
		return
	}
	messages := r.encode(events)

	sentCount := 0
	droppedCount := 0
	for conn := range members {
		if conn == except {
			continue
		}
		for _, message := range messages {
			if conn.deliver(message) {
				sentCount++
			} else if !conn.Closed() {
				droppedCount++
				r.logger.Warn("message dropped - connection buffer full",
					slog.String("conn_id", conn.ID()),
					slog.String("room", room))
			}
		}
	}
	if droppedCount > 0 {
		r.logger.Warn("broadcast partial failure",
			slog.String("room", room),
			slog.Int("sent", sentCount),
			slog.Int("dropped", droppedCount))
	}
}

func (r *Registry) encode(events []model.Event) [][]byte {
	messages := make([][]byte, 0, len(events))
	for _, event := range events {
		message, err := json.Marshal(event)
		if err != nil {
			r.logger.Error("failed to encode event",
				slog.String("event", string(event.Name)),
				slog.Any("error", err))
			continue
		}
		messages = append(messages, message)
	}
	return messages
}

func (r *Registry) notify(room string, count int) {
	if r.observer != nil && model.IsGameRoom(room) {
		r.observer(room, count)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
