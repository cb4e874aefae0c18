package model

import "strings"

// EventName identifies a real-time event exchanged with clients
type EventName string

// Inbound events (client to server)
const (
	EventAuthenticate   EventName = "authenticate"
	EventLogout         EventName = "logout"
	EventPlay           EventName = "play"
	EventCancel         EventName = "cancel"
	EventFetchQueueData EventName = "fetchQueueData"
	EventJoinGameRoom   EventName = "joinGameRoom"
	EventLeaveGameRoom  EventName = "leaveGameRoom"
	EventCancelGame     EventName = "cancelGame"
	EventPlayMove       EventName = "playMove"
	EventPass           EventName = "pass"
	EventResign         EventName = "resign"
)

// Outbound events (server to client or room)
const (
	EventErrorOccured       EventName = "errorOccured"
	EventPlayerOnlineStatus EventName = "playerOnlineStatus"
	EventUserJoinedGameRoom EventName = "userJoinedGameRoom"
	EventUserLeftGameRoom   EventName = "userLeftGameRoom"
	EventSearching          EventName = "searching"
	EventQueueUpdated       EventName = "queueUpdated"
	EventCancelled          EventName = "cancelled"
	EventGameCancelled      EventName = "gameCancelled"
	EventAuthenticated      EventName = "authenticated"
	EventLoggedOut          EventName = "loggedOut"
	EventGameFound          EventName = "gameFound"
	EventGameMove           EventName = "gameMove"
	EventGameUpdated        EventName = "gameUpdated"
)

// EventGameChatMessage is both sent by clients and relayed to game rooms
const EventGameChatMessage EventName = "gameChatMessage"

// Event is an outbound message with positional arguments
type Event struct {
	Name EventName `json:"event"`
	Args []any     `json:"args"`
}

// NewEvent creates an event with the given arguments
func NewEvent(name EventName, args ...any) Event {
	if args == nil {
		args = []any{}
	}
	return Event{Name: name, Args: args}
}

// Room names
const (
	QueueRoom      = "queue"
	gameRoomPrefix = "game-"
	userRoomPrefix = "user-"
)

// GameRoom returns the room name for a game session
func GameRoom(id GameID) string {
	return gameRoomPrefix + string(id)
}

// UserRoom returns the room used to address every connection of a user
func UserRoom(username Username) string {
	return userRoomPrefix + string(username)
}

// IsGameRoom reports whether room belongs to a game session
func IsGameRoom(room string) bool {
	return strings.HasPrefix(room, gameRoomPrefix)
}

// GameIDFromRoom extracts the game id from a game room name
func GameIDFromRoom(room string) (GameID, bool) {
	if !IsGameRoom(room) {
		return "", false
	}
	return GameID(strings.TrimPrefix(room, gameRoomPrefix)), true
}
