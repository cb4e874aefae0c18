package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/gocup/internal/dependencies/clock"
	"github.com/mcoot/gocup/internal/model"
)

// Broadcaster delivers events to a room
type Broadcaster interface {
	Broadcast(room string, events ...model.Event)
}

// Queue is the ordered list of players waiting for a game. Every effective
// change is followed by a queueUpdated broadcast to the queue room, issued
// while the queue lock is held so broadcasts follow mutation order.
//
// The queue also counts, per player, the active sessions they hold. A player
// with an active session cannot be enqueued; the check and the session
// reservation made by Match happen under the same lock.
type Queue struct {
	mu       sync.Mutex
	entries  []model.QueueEntry
	removals map[model.Username]clock.Timer
	playing  map[model.Username]int

	broadcaster Broadcaster
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates an empty Queue
func New(broadcaster Broadcaster, clk clock.Clock, logger *slog.Logger) *Queue {
	return &Queue{
		removals:    make(map[model.Username]clock.Timer),
		playing:     make(map[model.Username]int),
		broadcaster: broadcaster,
		clock:       clk,
		logger:      logger.With(slog.String("component", "queue")),
	}
}

// Notify is run with the new queue length while the queue lock is held, just
// before the queueUpdated broadcast of the same change
type Notify func(inQueue int)

// Enqueue adds username to the queue and returns the new length. If username is
// already queued its preferences are replaced in place, keeping its position and
// wait time, and the length is unchanged. A pending disconnect removal is cancelled.
// Fails with ErrAlreadyInGame while username holds an active session.
func (q *Queue) Enqueue(username model.Username, prefs model.Preferences) (int, error) {
	return q.EnqueueThen(username, prefs, nil)
}

// EnqueueThen is Enqueue with a Notify hook, which may be nil
func (q *Queue) EnqueueThen(username model.Username, prefs model.Preferences, notify Notify) (int, error) {
	prefs, err := prefs.Normalize()
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.playing[username] > 0 {
		return 0, model.ErrAlreadyInGame
	}
	q.cancelRemovalLocked(username)

	if i := q.indexLocked(username); i >= 0 {
		q.entries[i].Preferences = prefs
	} else {
		q.entries = append(q.entries, model.QueueEntry{
			Username:    username,
			Preferences: prefs,
			EnqueuedAt:  q.clock.Now(),
		})
	}

	length := len(q.entries)
	q.logger.Info("player enqueued",
		slog.String("username", string(username)),
		slog.Int("board_size", prefs.BoardSize),
		slog.Int("in_queue", length))
	if notify != nil {
		notify(length)
	}
	q.broadcastLocked()
	return length, nil
}

// Dequeue removes username from the queue. Removing an absent username is a
// no-op that returns false and broadcasts nothing.
func (q *Queue) Dequeue(username model.Username) (bool, int) {
	return q.DequeueThen(username, nil)
}

// DequeueThen is Dequeue with a Notify hook, run only when username was removed
func (q *Queue) DequeueThen(username model.Username, notify Notify) (bool, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancelRemovalLocked(username)

	i := q.indexLocked(username)
	if i < 0 {
		return false, len(q.entries)
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)

	length := len(q.entries)
	q.logger.Info("player dequeued",
		slog.String("username", string(username)),
		slog.Int("in_queue", length))
	if notify != nil {
		notify(length)
	}
	q.broadcastLocked()
	return true, length
}

// Length returns the number of queued players
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether username is queued
func (q *Queue) Contains(username model.Username) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(username) >= 0
}

// ElapsedSeconds returns how long username has been waiting. The second
// result is false when username is not queued.
func (q *Queue) ElapsedSeconds(username model.Username) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(username)
	if i < 0 {
		return 0, false
	}
	return int(q.clock.Now().Sub(q.entries[i].EnqueuedAt) / time.Second), true
}

// Data returns the fetchQueueData answer for username
func (q *Queue) Data(username model.Username) model.QueueData {
	q.mu.Lock()
	defer q.mu.Unlock()

	data := model.QueueData{InQueue: len(q.entries)}
	if i := q.indexLocked(username); i >= 0 {
		elapsed := int(q.clock.Now().Sub(q.entries[i].EnqueuedAt) / time.Second)
		data.TimeElapsed = &elapsed
	}
	return data
}

// Entries returns a snapshot of the queue in order
func (q *Queue) Entries() []model.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.QueueEntry(nil), q.entries...)
}

// Match asks matcher for a pair and atomically removes both players, reserving
// a session for each. The caller must Release the pair once the session ends,
// or Requeue it if no session could be created. Returns false when no pair
// could be formed.
func (q *Queue) Match(matcher Matcher) (model.QueueEntry, model.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i, j, ok := matcher.Pair(q.entries)
	if !ok || i == j || i < 0 || j < 0 || i >= len(q.entries) || j >= len(q.entries) {
		return model.QueueEntry{}, model.QueueEntry{}, false
	}

	first, second := q.entries[i], q.entries[j]
	remaining := make([]model.QueueEntry, 0, len(q.entries)-2)
	for k, entry := range q.entries {
		if k != i && k != j {
			remaining = append(remaining, entry)
		}
	}
	q.entries = remaining
	q.playing[first.Username]++
	q.playing[second.Username]++

	q.logger.Info("players matched",
		slog.String("first", string(first.Username)),
		slog.String("second", string(second.Username)),
		slog.Int("in_queue", len(q.entries)))
	q.broadcastLocked()
	return first, second, true
}

// Requeue drops the reservations made by Match and puts entries back at the
// front of the queue with their original wait time. Used when a match could
// not be turned into a game.
func (q *Queue) Requeue(entries ...model.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var restored []model.QueueEntry
	for _, entry := range entries {
		q.releaseLocked(entry.Username)
		if q.playing[entry.Username] == 0 && q.indexLocked(entry.Username) < 0 {
			restored = append(restored, entry)
		}
	}
	if len(restored) == 0 {
		return
	}
	q.entries = append(restored, q.entries...)
	q.broadcastLocked()
}

// Reserve records an active session for each username and takes them out of
// the queue
func (q *Queue) Reserve(usernames ...model.Username) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := false
	for _, username := range usernames {
		q.playing[username]++
		q.cancelRemovalLocked(username)
		if i := q.indexLocked(username); i >= 0 {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			removed = true
		}
	}
	if removed {
		q.broadcastLocked()
	}
}

// Release drops one active session reservation for each username
func (q *Queue) Release(usernames ...model.Username) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, username := range usernames {
		q.releaseLocked(username)
	}
}

// Playing reports whether username holds an active session reservation
func (q *Queue) Playing(username model.Username) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing[username] > 0
}

func (q *Queue) releaseLocked(username model.Username) {
	if q.playing[username] <= 1 {
		delete(q.playing, username)
		return
	}
	q.playing[username]--
}

// ScheduleRemoval dequeues username after grace unless it is cancelled by a
// new Enqueue or Dequeue first. A non-positive grace dequeues immediately.
func (q *Queue) ScheduleRemoval(username model.Username, grace time.Duration) {
	if grace <= 0 {
		q.Dequeue(username)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexLocked(username) < 0 {
		return
	}
	q.cancelRemovalLocked(username)

	var timer clock.Timer
	timer = q.clock.AfterFunc(grace, func() {
		q.mu.Lock()
		current, ok := q.removals[username]
		if !ok || current != timer {
			q.mu.Unlock()
			return
		}
		delete(q.removals, username)
		q.mu.Unlock()

		if removed, _ := q.Dequeue(username); removed {
			q.logger.Info("removed disconnected player after grace period",
				slog.String("username", string(username)))
		}
	})
	q.removals[username] = timer
}

// CancelRemoval stops a pending ScheduleRemoval for username
func (q *Queue) CancelRemoval(username model.Username) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelRemovalLocked(username)
}

// Close stops all pending removals
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for username, timer := range q.removals {
		timer.Stop()
		delete(q.removals, username)
	}
}

func (q *Queue) cancelRemovalLocked(username model.Username) {
	if timer, ok := q.removals[username]; ok {
		timer.Stop()
		delete(q.removals, username)
	}
}

func (q *Queue) indexLocked(username model.Username) int {
	for i, entry := range q.entries {
		if entry.Username == username {
			return i
		}
	}
	return -1
}

func (q *Queue) broadcastLocked() {
	q.broadcaster.Broadcast(model.QueueRoom,
		model.NewEvent(model.EventQueueUpdated, model.QueueStatus{InQueue: len(q.entries)}))
}
