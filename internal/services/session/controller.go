package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/gocup/internal/dependencies/clock"
	"github.com/mcoot/gocup/internal/dependencies/random"
	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/services/queue"
	"github.com/mcoot/gocup/internal/services/rules"
	"github.com/mcoot/gocup/internal/storage"
)

// GameIDLength is the length of generated game ids
const GameIDLength = 12

// Broadcaster delivers events to a room
type Broadcaster interface {
	Broadcast(room string, events ...model.Event)
}

// Users looks up player profiles
type Users interface {
	GetUser(ctx context.Context, username model.Username) (*model.User, error)
	GetUserIDByUser(ctx context.Context, username model.Username) (model.UserID, error)
}

// Config holds configuration for the session controller
type Config struct {
	// WaitingTimeout is how long black has to play the first move
	WaitingTimeout time.Duration `yaml:"waiting_timeout"`

	// MaxChatLength limits chat messages, in runes
	MaxChatLength int `yaml:"max_chat_length"`

	// TaskTimeout bounds work started by timers rather than by a client
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		WaitingTimeout: 60 * time.Second,
		MaxChatLength:  model.MaxChatMessageLength,
		TaskTimeout:    5 * time.Second,
	}
}

// CancelResult is returned by CancelGame
type CancelResult struct {
	CancelledBy           model.Color
	LatestSystemChatEntry *model.ChatEntry
}

// Controller owns the lifecycle of game sessions: creation from matched queue
// entries, the waiting deadline, participant actions, cancellation and chat.
//
// Active sessions are cached in memory and are authoritative. Operations on one
// session are serialized by that session's lock, which is held while the session
// is persisted; the controller-wide map lock is never held across storage calls.
type Controller struct {
	storage     storage.Storage
	users       Users
	rules       rules.Engine
	queue       *queue.Queue
	matcher     queue.Matcher
	broadcaster Broadcaster
	clock       clock.Clock
	random      random.Random
	logger      *slog.Logger
	cfg         Config

	mu       sync.Mutex
	sessions map[model.GameID]*entry
	closed   bool
	tasks    sync.WaitGroup
}

type entry struct {
	mu    sync.Mutex
	game  *model.GameSession
	timer clock.Timer
}

// NewController creates a new session Controller
func NewController(
	storage storage.Storage,
	users Users,
	engine rules.Engine,
	q *queue.Queue,
	matcher queue.Matcher,
	broadcaster Broadcaster,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
	cfg Config,
) *Controller {
	defaults := DefaultConfig()
	if cfg.WaitingTimeout <= 0 {
		cfg.WaitingTimeout = defaults.WaitingTimeout
	}
	if cfg.MaxChatLength <= 0 {
		cfg.MaxChatLength = defaults.MaxChatLength
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	if matcher == nil {
		matcher = queue.FIFOMatcher{}
	}
	return &Controller{
		storage:     storage,
		users:       users,
		rules:       engine,
		queue:       q,
		matcher:     matcher,
		broadcaster: broadcaster,
		clock:       clock,
		random:      random,
		logger:      logger.With(slog.String("component", "sessions")),
		cfg:         cfg,
		sessions:    make(map[model.GameID]*entry),
	}
}

// TryMatch pairs two queued players, if possible, and creates their session.
// Returns nil without error when nobody can be matched. If the session cannot
// be created both players are put back at the front of the queue.
func (c *Controller) TryMatch(ctx context.Context) (*model.GameSession, error) {
	first, second, ok := c.queue.Match(c.matcher)
	if !ok {
		return nil, nil
	}

	black, white := first, second
	if c.random.Intn(2) == 1 {
		black, white = second, first
	}

	game, err := c.createFromEntries(ctx, black, white)
	if err != nil {
		c.logger.Warn("failed to create matched session, requeueing players",
			slog.String("black", string(black.Username)),
			slog.String("white", string(white.Username)),
			slog.Any("error", err))
		c.queue.Requeue(first, second)
		return nil, err
	}
	return game, nil
}

func (c *Controller) createFromEntries(ctx context.Context, black, white model.QueueEntry) (*model.GameSession, error) {
	blackPlayer, err := c.participant(ctx, black.Username)
	if err != nil {
		return nil, err
	}
	whitePlayer, err := c.participant(ctx, white.Username)
	if err != nil {
		return nil, err
	}
	return c.createSession(ctx, blackPlayer, whitePlayer, black.Preferences)
}

func (c *Controller) participant(ctx context.Context, username model.Username) (model.Participant, error) {
	user, err := c.users.GetUser(ctx, username)
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{Username: user.Username, Elo: user.Elo, Avatar: user.Avatar}, nil
}

// CreateSession persists a new waiting session and starts its waiting deadline.
// Both players are taken out of the queue and cannot rejoin it until the
// session ends.
func (c *Controller) CreateSession(ctx context.Context, black, white model.Participant, prefs model.Preferences) (*model.GameSession, error) {
	c.queue.Reserve(black.Username, white.Username)
	game, err := c.createSession(ctx, black, white, prefs)
	if err != nil {
		c.queue.Release(black.Username, white.Username)
		return nil, err
	}
	return game, nil
}

// createSession expects both players to be reserved in the queue already
func (c *Controller) createSession(ctx context.Context, black, white model.Participant, prefs model.Preferences) (*model.GameSession, error) {
	prefs, err := prefs.Normalize()
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	game := &model.GameSession{
		ID:            model.GameID(c.random.String(GameIDLength, random.IDAlphabet)),
		Black:         black,
		White:         white,
		Status:        model.StatusWaiting,
		Size:          prefs.BoardSize,
		Board:         model.NewBoard(prefs.BoardSize),
		Turn:          model.ColorBlack,
		WaitingEndsAt: now.Add(c.cfg.WaitingTimeout),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.storage.SaveGame(ctx, game); err != nil {
		c.logger.Error("failed to save game",
			slog.String("game_id", string(game.ID)),
			slog.Any("error", err))
		return nil, err
	}

	e := &entry{game: game}
	e.mu.Lock()
	c.mu.Lock()
	c.sessions[game.ID] = e
	c.mu.Unlock()
	c.armTimerLocked(e, c.cfg.WaitingTimeout)
	snapshot := game.Clone()
	e.mu.Unlock()

	c.logger.Info("game created",
		slog.String("game_id", string(game.ID)),
		slog.String("black", string(black.Username)),
		slog.String("white", string(white.Username)),
		slog.Int("size", game.Size),
		slog.Time("waiting_ends_at", game.WaitingEndsAt))
	return snapshot, nil
}

// GetGame returns a snapshot of a session
func (c *Controller) GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error) {
	e, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Clone(), nil
}

// ActiveGamesOf returns the ids of the waiting or started games username plays in
func (c *Controller) ActiveGamesOf(ctx context.Context, username model.Username) ([]model.GameID, error) {
	return c.storage.GetActiveGameIDs(ctx, username)
}

// ActiveGameCount returns the number of waiting or started sessions held in memory
func (c *Controller) ActiveGameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// CancelGame cancels a waiting session on behalf of one of its participants.
// The room receives gameCancelled(side) strictly before the system chat entry
// recording the cancellation.
func (c *Controller) CancelGame(ctx context.Context, id model.GameID, actor model.Username) (*CancelResult, error) {
	e, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	side, ok := e.game.ColorOf(actor)
	if !ok {
		return nil, model.ErrNotParticipant
	}
	if e.game.Status != model.StatusWaiting {
		return nil, model.ErrGameNotWaiting
	}

	chatEntry, err := c.cancelLocked(ctx, e, side.CancelledStatus(), side, "Game cancelled by "+string(side)+".")
	if err != nil {
		return nil, err
	}
	return &CancelResult{CancelledBy: side, LatestSystemChatEntry: chatEntry}, nil
}

// cancelLocked moves a waiting session to a cancelled status, records a system
// chat entry and broadcasts both. A chat failure does not undo the cancellation.
func (c *Controller) cancelLocked(ctx context.Context, e *entry, status model.GameStatus, side model.Color, message string) (*model.ChatEntry, error) {
	if !e.game.Status.CanTransitionTo(status) {
		return nil, model.ErrInvalidTransition
	}

	now := c.clock.Now()
	next := e.game.Clone()
	next.Status = status
	next.UpdatedAt = now
	next.EndedAt = &now

	if err := c.storage.SaveGame(ctx, next); err != nil {
		c.logger.Error("failed to save cancelled game",
			slog.String("game_id", string(next.ID)),
			slog.Any("error", err))
		return nil, err
	}
	e.game = next
	c.stopTimerLocked(e)
	c.forget(next.ID)
	c.queue.Release(next.Participants()...)

	var sideArg any
	if side != model.ColorNone {
		sideArg = string(side)
	}
	events := []model.Event{model.NewEvent(model.EventGameCancelled, sideArg)}

	chatEntry := c.systemEntry(next.ID, message)
	if err := c.storage.AppendChatEntry(ctx, chatEntry); err != nil {
		c.logger.Warn("failed to record cancellation in chat",
			slog.String("game_id", string(next.ID)),
			slog.Any("error", err))
		chatEntry = nil
	} else {
		events = append(events, model.NewEvent(model.EventGameChatMessage, chatEntry))
	}

	c.broadcaster.Broadcast(model.GameRoom(next.ID), events...)

	c.logger.Info("game cancelled",
		slog.String("game_id", string(next.ID)),
		slog.String("status", string(status)))
	return chatEntry, nil
}

// expire cancels a session whose waiting deadline passed
func (c *Controller) expire(id model.GameID) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e := c.sessions[id]
	c.tasks.Add(1)
	c.mu.Unlock()
	defer c.tasks.Done()

	if e == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.TaskTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Status != model.StatusWaiting {
		return
	}
	e.timer = nil

	if _, err := c.cancelLocked(ctx, e, model.StatusCancelled, model.ColorNone,
		"Game cancelled: black did not play in time."); err != nil {
		c.logger.Error("failed to cancel expired game",
			slog.String("game_id", string(id)),
			slog.Any("error", err))
		// Try again shortly rather than leaving the session waiting forever
		c.armTimerLocked(e, c.cfg.TaskTimeout)
	}
}

// UpdateViewers records the live member count of a game room
func (c *Controller) UpdateViewers(room string, count int) {
	id, ok := model.GameIDFromRoom(room)
	if !ok {
		return
	}
	c.mu.Lock()
	e := c.sessions[id]
	c.mu.Unlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.game.ViewersCount = count
}

// Close stops all waiting timers and waits for timer work already running
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	entries := make([]*entry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		c.stopTimerLocked(e)
		e.mu.Unlock()
	}
	c.tasks.Wait()
}

// load returns the cached entry for id, reading it from storage on a miss.
// Only active sessions are cached; a waiting session loaded from storage gets
// a timer for the rest of its deadline.
func (c *Controller) load(ctx context.Context, id model.GameID) (*entry, error) {
	c.mu.Lock()
	e, ok := c.sessions[id]
	c.mu.Unlock()
	if ok {
		return e, nil
	}

	game, err := c.storage.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}

	e = &entry{game: game}
	if !game.Status.IsActive() {
		return e, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	c.mu.Lock()
	if existing, ok := c.sessions[id]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.sessions[id] = e
	c.mu.Unlock()
	c.queue.Reserve(game.Participants()...)

	if game.Status == model.StatusWaiting {
		remaining := game.WaitingEndsAt.Sub(c.clock.Now())
		if remaining < 0 {
			remaining = 0
		}
		c.armTimerLocked(e, remaining)
	}
	return e, nil
}

func (c *Controller) forget(id model.GameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

func (c *Controller) armTimerLocked(e *entry, d time.Duration) {
	id := e.game.ID
	e.timer = c.clock.AfterFunc(d, func() { c.expire(id) })
}

func (c *Controller) stopTimerLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// ControllerInterface is the contract the real-time gateway depends on
type ControllerInterface interface {
	TryMatch(ctx context.Context) (*model.GameSession, error)
	CreateSession(ctx context.Context, black, white model.Participant, prefs model.Preferences) (*model.GameSession, error)
	GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error)
	ActiveGamesOf(ctx context.Context, username model.Username) ([]model.GameID, error)
	CancelGame(ctx context.Context, id model.GameID, actor model.Username) (*CancelResult, error)
	CreateChatEntryByGameID(ctx context.Context, id model.GameID, author model.Username, message string) (*model.ChatEntry, error)
	ChatHistory(ctx context.Context, id model.GameID) ([]*model.ChatEntry, error)
	PlayMove(ctx context.Context, id model.GameID, actor model.Username, p model.Point) (*model.Move, error)
	Pass(ctx context.Context, id model.GameID, actor model.Username) (*model.Move, error)
	Resign(ctx context.Context, id model.GameID, actor model.Username) (*model.Move, error)
}

var _ ControllerInterface = (*Controller)(nil)
