package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection, used by health checks
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKey(user.Username), data, 0).Err()
}

func (s *Storage) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, userKey(username))
	onlineCmd := pipe.SIsMember(ctx, onlineUsersKey(), string(username))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	data, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	user.Online = onlineCmd.Val()
	return &user, nil
}

func (s *Storage) SetUserOnline(ctx context.Context, username model.Username, online bool) error {
	exists, err := s.client.Exists(ctx, userKey(username)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrUserNotFound
	}

	if online {
		return s.client.SAdd(ctx, onlineUsersKey(), string(username)).Err()
	}
	return s.client.SRem(ctx, onlineUsersKey(), string(username)).Err()
}

func (s *Storage) IsUserOnline(ctx context.Context, username model.Username) (bool, error) {
	exists, err := s.client.Exists(ctx, userKey(username)).Result()
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, model.ErrUserNotFound
	}
	return s.client.SIsMember(ctx, onlineUsersKey(), string(username)).Result()
}

// Registered user operations

func (s *Storage) SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error {
	data, err := json.Marshal(ru)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, registeredUserKey(ru.Username), data, 0).Err()
}

func (s *Storage) GetRegisteredUser(ctx context.Context, username model.Username) (*model.RegisteredUser, error) {
	data, err := s.client.Get(ctx, registeredUserKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var ru model.RegisteredUser
	if err := json.Unmarshal(data, &ru); err != nil {
		return nil, err
	}
	return &ru, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.GameSession) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	// Archived games expire, active ones never do
	var ttl time.Duration
	if game.Status.IsTerminal() {
		ttl = s.cfg.ArchivedGameTTL
	}

	// Use transaction for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, gameKey(game.ID), data, ttl)
	for _, username := range game.Participants() {
		if game.Status.IsActive() {
			pipe.SAdd(ctx, activeGamesIndexKey(username), string(game.ID))
		} else {
			pipe.SRem(ctx, activeGamesIndexKey(username), string(game.ID))
		}
	}
	if ttl > 0 {
		pipe.Expire(ctx, chatKey(game.ID), ttl)
		pipe.Expire(ctx, chatSeqKey(game.ID), ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.GameSession
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) GetActiveGameIDs(ctx context.Context, username model.Username) ([]model.GameID, error) {
	members, err := s.client.SMembers(ctx, activeGamesIndexKey(username)).Result()
	if err != nil {
		return nil, err
	}

	sort.Strings(members)
	ids := make([]model.GameID, len(members))
	for i, member := range members {
		ids[i] = model.GameID(member)
	}
	return ids, nil
}

// Chat operations

func (s *Storage) AppendChatEntry(ctx context.Context, entry *model.ChatEntry) error {
	seq, err := s.client.Incr(ctx, chatSeqKey(entry.GameID)).Result()
	if err != nil {
		return err
	}
	entry.Seq = seq

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, chatKey(entry.GameID), data).Err()
}

func (s *Storage) GetChatEntries(ctx context.Context, gameID model.GameID) ([]*model.ChatEntry, error) {
	items, err := s.client.LRange(ctx, chatKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*model.ChatEntry, 0, len(items))
	for _, item := range items {
		var entry model.ChatEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	storage.SortChatEntries(entries)
	return entries, nil
}
