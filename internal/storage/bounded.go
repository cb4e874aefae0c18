package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mcoot/gocup/internal/model"
)

// Bounded wraps a Storage so that every call is limited by a timeout.
// Backend failures are reported as model.ErrStorage and timeouts as
// model.ErrStorageTimeout, both of which are retryable. Domain errors such as
// model.ErrGameNotFound pass through unchanged.
type Bounded struct {
	next    Storage
	timeout time.Duration
}

// NewBounded creates a Bounded storage. A non-positive timeout disables the limit.
func NewBounded(next Storage, timeout time.Duration) *Bounded {
	return &Bounded{next: next, timeout: timeout}
}

// Ensure Bounded implements the interface
var _ Storage = (*Bounded)(nil)

func (b *Bounded) SaveUser(ctx context.Context, user *model.User) error {
	return do(ctx, b, func(ctx context.Context) error { return b.next.SaveUser(ctx, user) })
}

func (b *Bounded) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	return call(ctx, b, func(ctx context.Context) (*model.User, error) { return b.next.GetUser(ctx, username) })
}

func (b *Bounded) SetUserOnline(ctx context.Context, username model.Username, online bool) error {
	return do(ctx, b, func(ctx context.Context) error { return b.next.SetUserOnline(ctx, username, online) })
}

func (b *Bounded) IsUserOnline(ctx context.Context, username model.Username) (bool, error) {
	return call(ctx, b, func(ctx context.Context) (bool, error) { return b.next.IsUserOnline(ctx, username) })
}

func (b *Bounded) SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error {
	return do(ctx, b, func(ctx context.Context) error { return b.next.SaveRegisteredUser(ctx, ru) })
}

func (b *Bounded) GetRegisteredUser(ctx context.Context, username model.Username) (*model.RegisteredUser, error) {
	return call(ctx, b, func(ctx context.Context) (*model.RegisteredUser, error) {
		return b.next.GetRegisteredUser(ctx, username)
	})
}

func (b *Bounded) SaveGame(ctx context.Context, game *model.GameSession) error {
	return do(ctx, b, func(ctx context.Context) error { return b.next.SaveGame(ctx, game) })
}

func (b *Bounded) GetGame(ctx context.Context, id model.GameID) (*model.GameSession, error) {
	return call(ctx, b, func(ctx context.Context) (*model.GameSession, error) { return b.next.GetGame(ctx, id) })
}

func (b *Bounded) GetActiveGameIDs(ctx context.Context, username model.Username) ([]model.GameID, error) {
	return call(ctx, b, func(ctx context.Context) ([]model.GameID, error) {
		return b.next.GetActiveGameIDs(ctx, username)
	})
}

func (b *Bounded) AppendChatEntry(ctx context.Context, entry *model.ChatEntry) error {
	return do(ctx, b, func(ctx context.Context) error { return b.next.AppendChatEntry(ctx, entry) })
}

func (b *Bounded) GetChatEntries(ctx context.Context, gameID model.GameID) ([]*model.ChatEntry, error) {
	return call(ctx, b, func(ctx context.Context) ([]*model.ChatEntry, error) {
		return b.next.GetChatEntries(ctx, gameID)
	})
}

func do(ctx context.Context, b *Bounded, fn func(context.Context) error) error {
	_, err := call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func call[T any](ctx context.Context, b *Bounded, fn func(context.Context) (T, error)) (T, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	result, err := fn(ctx)
	return result, classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *model.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrStorageTimeout, err)
	}
	return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
}

// SortChatEntries orders entries by creation time, then insertion sequence
func SortChatEntries(entries []*model.ChatEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})
}
