package model

import "time"

// GameID uniquely identifies a game session
type GameID string

// GameStatus is the lifecycle state of a game session
type GameStatus string

const (
	StatusWaiting          GameStatus = "waiting" // Waiting for black to play the first move
	StatusStarted          GameStatus = "started"
	StatusFinished         GameStatus = "finished"
	StatusCancelled        GameStatus = "cancelled" // Cancelled by the system, e.g. waiting deadline expired
	StatusCancelledByBlack GameStatus = "cancelled_by_black"
	StatusCancelledByWhite GameStatus = "cancelled_by_white"
)

var gameTransitions = map[GameStatus][]GameStatus{
	StatusWaiting: {StatusStarted, StatusCancelled, StatusCancelledByBlack, StatusCancelledByWhite},
	StatusStarted: {StatusFinished},
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	for _, allowed := range gameTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s GameStatus) IsTerminal() bool {
	return len(gameTransitions[s]) == 0
}

// IsActive reports whether the game is waiting or in progress
func (s GameStatus) IsActive() bool {
	return s == StatusWaiting || s == StatusStarted
}

// Color is the side a participant plays
type Color string

const (
	ColorNone  Color = ""
	ColorBlack Color = "black"
	ColorWhite Color = "white"
)

// Opponent returns the other side
func (c Color) Opponent() Color {
	switch c {
	case ColorBlack:
		return ColorWhite
	case ColorWhite:
		return ColorBlack
	}
	return ColorNone
}

// CancelledStatus returns the status recorded when this side cancels
func (c Color) CancelledStatus() GameStatus {
	switch c {
	case ColorBlack:
		return StatusCancelledByBlack
	case ColorWhite:
		return StatusCancelledByWhite
	}
	return StatusCancelled
}

// Participant is one of the two players of a session
type Participant struct {
	Username Username `json:"username"`
	Elo      int      `json:"elo"`
	Avatar   string   `json:"avatar,omitempty"`
}

// Point is an intersection on the board
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Board is a square grid of intersections indexed [y][x]
type Board [][]Color

// NewBoard creates an empty board of the given size
func NewBoard(size int) Board {
	board := make(Board, size)
	for y := range board {
		board[y] = make([]Color, size)
	}
	return board
}

// InBounds reports whether p lies on the board
func (b Board) InBounds(p Point) bool {
	return p.Y >= 0 && p.Y < len(b) && p.X >= 0 && p.X < len(b[p.Y])
}

// At returns the stone at p
func (b Board) At(p Point) Color {
	return b[p.Y][p.X]
}

// Clone returns a deep copy of the board
func (b Board) Clone() Board {
	clone := make(Board, len(b))
	for y, row := range b {
		clone[y] = append([]Color(nil), row...)
	}
	return clone
}

// GameSession is a two-player game from matchmaking to its terminal state
type GameSession struct {
	ID     GameID      `json:"id"`
	Black  Participant `json:"black"`
	White  Participant `json:"white"`
	Status GameStatus  `json:"status"`
	Size   int         `json:"size"`
	Board  Board       `json:"board"`

	// Turn management
	Turn              Color `json:"turn"`
	MoveCount         int   `json:"moveCount"`
	ConsecutivePasses int   `json:"consecutivePasses"`
	Winner            Color `json:"winner,omitempty"`

	ViewersCount int `json:"viewersCount"`

	// Timing
	WaitingEndsAt time.Time  `json:"waitingEndsAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
}

// ColorOf returns the side played by username, or false for non-participants
func (g *GameSession) ColorOf(username Username) (Color, bool) {
	switch username {
	case g.Black.Username:
		return ColorBlack, true
	case g.White.Username:
		return ColorWhite, true
	}
	return ColorNone, false
}

// Participants returns both players' usernames, black first
func (g *GameSession) Participants() []Username {
	return []Username{g.Black.Username, g.White.Username}
}

// Clone returns a deep copy so callers can read a snapshot outside the owner's lock
func (g *GameSession) Clone() *GameSession {
	clone := *g
	clone.Board = g.Board.Clone()
	if g.EndedAt != nil {
		endedAt := *g.EndedAt
		clone.EndedAt = &endedAt
	}
	return &clone
}

// MoveKind distinguishes the actions a participant can take on their turn
type MoveKind string

const (
	MovePlace  MoveKind = "place"
	MovePass   MoveKind = "pass"
	MoveResign MoveKind = "resign"
)

// Move is an accepted participant action relayed to the game room
type Move struct {
	GameID   GameID    `json:"gameId"`
	Kind     MoveKind  `json:"kind"`
	Color    Color     `json:"color"`
	Point    *Point    `json:"point,omitempty"`
	Captured []Point   `json:"captured,omitempty"`
	Number   int       `json:"number"`
	PlayedAt time.Time `json:"playedAt"`
}
