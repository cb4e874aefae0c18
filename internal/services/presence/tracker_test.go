package presence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/testutil"
)

// fakeDirectory is an in-memory Directory with injectable failures
type fakeDirectory struct {
	mu      sync.Mutex
	online  map[model.Username]bool
	games   map[model.Username][]model.GameID
	failSet error
	calls   int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		online: make(map[model.Username]bool),
		games:  make(map[model.Username][]model.GameID),
	}
}

func (d *fakeDirectory) SetUserOnline(ctx context.Context, username model.Username) error {
	return d.set(username, true)
}

func (d *fakeDirectory) SetUserOffline(ctx context.Context, username model.Username) error {
	return d.set(username, false)
}

func (d *fakeDirectory) set(username model.Username, online bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failSet != nil {
		return d.failSet
	}
	d.online[username] = online
	return nil
}

func (d *fakeDirectory) IsUserOnline(ctx context.Context, username model.Username) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[username], nil
}

func (d *fakeDirectory) GetGamesOfUser(ctx context.Context, username model.Username) ([]model.GameID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.games[username], nil
}

type broadcast struct {
	room  string
	event model.Event
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *recordingBroadcaster) Broadcast(room string, events ...model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		b.sent = append(b.sent, broadcast{room: room, event: event})
	}
}

type TrackerSuite struct {
	suite.Suite
	directory   *fakeDirectory
	broadcaster *recordingBroadcaster
	tracker     *Tracker
	ctx         context.Context
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.directory = newFakeDirectory()
	s.broadcaster = &recordingBroadcaster{}
	s.tracker = NewTracker(s.directory, s.broadcaster, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *TrackerSuite) TestSetOnlineBroadcastsToActiveGameRooms() {
	s.directory.games["alice"] = []model.GameID{"1", "2"}

	err := s.tracker.SetOnline(s.ctx, "alice")
	s.Require().NoError(err)

	s.True(s.directory.online["alice"])
	s.Require().Len(s.broadcaster.sent, 2)
	s.Equal("game-1", s.broadcaster.sent[0].room)
	s.Equal("game-2", s.broadcaster.sent[1].room)
	s.Equal(model.EventPlayerOnlineStatus, s.broadcaster.sent[0].event.Name)
	s.Equal([]any{"alice", true}, s.broadcaster.sent[0].event.Args)
}

func (s *TrackerSuite) TestSetOnlineWithoutGamesBroadcastsNothing() {
	err := s.tracker.SetOnline(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(s.broadcaster.sent)
}

func (s *TrackerSuite) TestSetOfflineTwiceBroadcastsOncePerRoomPerCall() {
	s.directory.games["alice"] = []model.GameID{"1", "1", "2"}

	s.Require().NoError(s.tracker.SetOffline(s.ctx, "alice"))
	s.Require().NoError(s.tracker.SetOffline(s.ctx, "alice"))

	s.Len(s.broadcaster.sent, 4)
	for _, b := range s.broadcaster.sent {
		s.Equal([]any{"alice", false}, b.event.Args)
	}
}

func (s *TrackerSuite) TestStorageFailureIsPresenceUpdateError() {
	s.directory.failSet = errors.New("connection refused")
	s.directory.games["alice"] = []model.GameID{"1"}

	err := s.tracker.SetOnline(s.ctx, "alice")

	s.ErrorIs(err, model.ErrPresenceUpdate)
	s.True(model.IsRetryable(err))
	s.Empty(s.broadcaster.sent)
}

func (s *TrackerSuite) TestIsOnline() {
	online, err := s.tracker.IsOnline(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(online)

	_ = s.tracker.SetOnline(s.ctx, "alice")

	online, err = s.tracker.IsOnline(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(online)
}

func (s *TrackerSuite) TestMultipleConnectionsStayOnlineUntilLast() {
	s.directory.games["alice"] = []model.GameID{"1"}

	s.Require().NoError(s.tracker.Connect(s.ctx, "alice"))
	s.Require().NoError(s.tracker.Connect(s.ctx, "alice"))
	s.Equal(2, s.tracker.Connections("alice"))
	s.Len(s.broadcaster.sent, 1)

	s.Require().NoError(s.tracker.Disconnect(s.ctx, "alice"))
	s.True(s.directory.online["alice"])
	s.Len(s.broadcaster.sent, 1)

	s.Require().NoError(s.tracker.Disconnect(s.ctx, "alice"))
	s.False(s.directory.online["alice"])
	s.Require().Len(s.broadcaster.sent, 2)
	s.Equal([]any{"alice", false}, s.broadcaster.sent[1].event.Args)
}

func (s *TrackerSuite) TestFailedConnectCanBeRetried() {
	s.directory.games["alice"] = []model.GameID{"1"}
	s.directory.failSet = errors.New("connection refused")

	err := s.tracker.Connect(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPresenceUpdate)
	s.Equal(0, s.tracker.Connections("alice"))
	s.False(s.directory.online["alice"])

	s.directory.failSet = nil
	s.Require().NoError(s.tracker.Connect(s.ctx, "alice"))

	s.Equal(1, s.tracker.Connections("alice"))
	s.True(s.directory.online["alice"])
	s.Require().Len(s.broadcaster.sent, 1)
	s.Equal(model.GameRoom("1"), s.broadcaster.sent[0].room)
	s.Equal([]any{"alice", true}, s.broadcaster.sent[0].event.Args)
}

func (s *TrackerSuite) TestDisconnectWithoutConnectIsNoOp() {
	s.Require().NoError(s.tracker.Disconnect(s.ctx, "alice"))
	s.Equal(0, s.directory.calls)
}

func (s *TrackerSuite) TestConcurrentTogglesForSameUser() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.tracker.Connect(s.ctx, "alice")
		}()
		go func() {
			defer wg.Done()
			_ = s.tracker.SetOnline(s.ctx, "bob")
		}()
	}
	wg.Wait()

	s.Equal(50, s.tracker.Connections("alice"))
	s.True(s.directory.online["alice"])
	s.Empty(s.tracker.locks)
}
