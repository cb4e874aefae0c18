package redis

import (
	"fmt"

	"github.com/mcoot/gocup/internal/model"
)

// Key prefix for all gocup data
const keyPrefix = "gocup"

// userKey returns the Redis key for a User profile
func userKey(username model.Username) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, username)
}

// registeredUserKey returns the Redis key for a user's credentials
func registeredUserKey(username model.Username) string {
	return fmt.Sprintf("%s:registered_user:%s", keyPrefix, username)
}

// onlineUsersKey returns the Redis key for the SET of online usernames
func onlineUsersKey() string {
	return fmt.Sprintf("%s:online", keyPrefix)
}

// gameKey returns the Redis key for a GameSession
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// activeGamesIndexKey returns the Redis key for the SET of a user's active games
func activeGamesIndexKey(username model.Username) string {
	return fmt.Sprintf("%s:idx:active_games:%s", keyPrefix, username)
}

// chatKey returns the Redis key for the LIST of a game's chat entries
func chatKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:chat:%s", keyPrefix, gameID)
}

// chatSeqKey returns the Redis key for a game's chat sequence counter
func chatSeqKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:chat_seq:%s", keyPrefix, gameID)
}
