package model

import "time"

// ChatEntryID uniquely identifies a chat entry
type ChatEntryID string

// MaxChatMessageLength is the default limit on chat message length, in runes
const MaxChatMessageLength = 500

// ChatEntry is one append-only message attached to a game session.
// Entries are ordered by CreatedAt, then Seq.
type ChatEntry struct {
	ID         ChatEntryID `json:"id"`
	GameID     GameID      `json:"gameId"`
	AuthorID   UserID      `json:"authorId,omitempty"`
	AuthorName Username    `json:"authorName,omitempty"`
	System     bool        `json:"system"`
	Message    string      `json:"message"`
	CreatedAt  time.Time   `json:"createdAt"`
	Seq        int64       `json:"seq"`
}
