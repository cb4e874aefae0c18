package model

import "time"

// DefaultBoardSize is used when a play request does not specify one
const DefaultBoardSize = 19

// ValidBoardSizes lists the supported board sizes
var ValidBoardSizes = []int{9, 13, 19}

// Preferences are the options a player searches with
type Preferences struct {
	BoardSize int `json:"boardSize"`
}

// Normalize fills defaults and validates the preferences
func (p Preferences) Normalize() (Preferences, error) {
	if p.BoardSize == 0 {
		p.BoardSize = DefaultBoardSize
	}
	for _, size := range ValidBoardSizes {
		if p.BoardSize == size {
			return p, nil
		}
	}
	return p, ErrInvalidBoardSize
}

// QueueEntry is a player waiting to be matched
type QueueEntry struct {
	Username    Username
	Preferences Preferences
	EnqueuedAt  time.Time
}

// QueueStatus is the payload of searching and queueUpdated events
type QueueStatus struct {
	InQueue int `json:"inQueue"`
}

// QueueData answers fetchQueueData. TimeElapsed is nil when the caller is not queued.
type QueueData struct {
	InQueue     int  `json:"inQueue"`
	TimeElapsed *int `json:"timeElapsed"`
}
