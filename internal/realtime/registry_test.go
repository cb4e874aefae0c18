package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gocup/internal/model"
	"github.com/mcoot/gocup/internal/testutil"
)

type received struct {
	Event model.EventName `json:"event"`
	Args  []any           `json:"args"`
}

func drain(conn *Conn) []received {
	var events []received
	for {
		select {
		case message := <-conn.Messages():
			var ev received
			if err := json.Unmarshal(message, &ev); err == nil {
				events = append(events, ev)
			}
		default:
			return events
		}
	}
}

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry(testutil.NopLogger())
}

func (s *RegistrySuite) newConn(username model.Username) *Conn {
	conn := NewConn(16)
	conn.SetUsername(username)
	return conn
}

// Membership tests

func (s *RegistrySuite) TestJoinIsImmediatelyVisible() {
	conn := s.newConn("alice")

	s.True(s.registry.Join(conn, "game-1"))

	s.Contains(s.registry.MembersOf("game-1"), conn)
	s.Equal(1, s.registry.Count("game-1"))
	s.True(s.registry.IsMember(conn, "game-1"))
	s.Equal([]string{"game-1"}, s.registry.RoomsOf(conn))
}

func (s *RegistrySuite) TestJoinTwiceIsNoOp() {
	conn := s.newConn("alice")
	s.registry.Join(conn, "game-1")
	drain(conn)

	s.False(s.registry.Join(conn, "game-1"))
	s.Equal(1, s.registry.Count("game-1"))
	s.Empty(drain(conn))
}

func (s *RegistrySuite) TestLeaveIsImmediatelyVisible() {
	conn := s.newConn("alice")
	s.registry.Join(conn, "game-1")

	s.True(s.registry.Leave(conn, "game-1"))

	s.NotContains(s.registry.MembersOf("game-1"), conn)
	s.Equal(0, s.registry.Count("game-1"))
	s.Empty(s.registry.RoomsOf(conn))
}

func (s *RegistrySuite) TestLeaveNonMemberIsNoOp() {
	conn := s.newConn("alice")
	s.False(s.registry.Leave(conn, "game-1"))
}

func (s *RegistrySuite) TestClosedConnectionCannotJoin() {
	conn := s.newConn("alice")
	conn.Close()

	s.False(s.registry.Join(conn, "queue"))
	s.Equal(0, s.registry.Count("queue"))
}

// Game room announcement tests

func (s *RegistrySuite) TestJoinGameRoomAnnouncesIncrementingCounts() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")

	s.registry.Join(alice, "game-7")
	s.registry.Join(bob, "game-7")

	aliceEvents := drain(alice)
	s.Require().Len(aliceEvents, 2)
	s.Equal(model.EventUserJoinedGameRoom, aliceEvents[0].Event)
	s.Equal([]any{"alice", float64(1)}, aliceEvents[0].Args)
	s.Equal([]any{"bob", float64(2)}, aliceEvents[1].Args)

	bobEvents := drain(bob)
	s.Require().Len(bobEvents, 1)
	s.Equal([]any{"bob", float64(2)}, bobEvents[0].Args)
}

func (s *RegistrySuite) TestAnonymousConnectionUsesConnectionID() {
	anon := NewConn(16)

	s.registry.Join(anon, "game-7")

	events := drain(anon)
	s.Require().Len(events, 1)
	s.Equal(anon.ID(), events[0].Args[0])
}

func (s *RegistrySuite) TestNonGameRoomsAreSilent() {
	conn := s.newConn("alice")

	s.registry.Join(conn, model.QueueRoom)
	s.registry.Join(conn, model.UserRoom("alice"))
	s.registry.Leave(conn, model.QueueRoom)

	s.Empty(drain(conn))
}

func (s *RegistrySuite) TestLeaveGameRoomAnnouncesToRemainingMembers() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")
	s.registry.Join(alice, "game-7")
	s.registry.Join(bob, "game-7")
	drain(alice)
	drain(bob)

	s.registry.Leave(bob, "game-7")

	s.Empty(drain(bob))
	events := drain(alice)
	s.Require().Len(events, 1)
	s.Equal(model.EventUserLeftGameRoom, events[0].Event)
	s.Equal([]any{"bob", float64(1)}, events[0].Args)
}

func (s *RegistrySuite) TestLeaveAllAnnouncesOncePerGameRoom() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")
	s.registry.Join(alice, "game-42")
	s.registry.Join(alice, model.QueueRoom)
	s.registry.Join(bob, "game-42")
	drain(bob)

	rooms := s.registry.LeaveAll(alice)

	s.ElementsMatch([]string{"game-42", model.QueueRoom}, rooms)
	s.Empty(s.registry.RoomsOf(alice))
	s.Equal(0, s.registry.Count(model.QueueRoom))

	events := drain(bob)
	s.Require().Len(events, 1)
	s.Equal(model.EventUserLeftGameRoom, events[0].Event)
	s.Equal([]any{"alice", float64(1)}, events[0].Args)
}

func (s *RegistrySuite) TestAnnounceDepartureKeepsMembership() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")
	s.registry.Join(alice, "game-1")
	s.registry.Join(bob, "game-1")
	drain(alice)
	drain(bob)

	s.registry.AnnounceDeparture(alice, "alice")

	s.True(s.registry.IsMember(alice, "game-1"))
	events := drain(bob)
	s.Require().Len(events, 1)
	s.Equal([]any{"alice", float64(2)}, events[0].Args)
}

// Broadcast tests

func (s *RegistrySuite) TestBroadcastPreservesOrder() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")
	s.registry.Join(alice, "game-1")
	s.registry.Join(bob, "game-1")
	drain(alice)
	drain(bob)

	s.registry.Broadcast("game-1",
		model.NewEvent(model.EventGameCancelled, "black"),
		model.NewEvent(model.EventGameChatMessage, "entry"))

	for _, conn := range []*Conn{alice, bob} {
		events := drain(conn)
		s.Require().Len(events, 2)
		s.Equal(model.EventGameCancelled, events[0].Event)
		s.Equal(model.EventGameChatMessage, events[1].Event)
	}
}

func (s *RegistrySuite) TestBroadcastExcept() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")
	s.registry.Join(alice, model.QueueRoom)
	s.registry.Join(bob, model.QueueRoom)

	s.registry.BroadcastExcept(alice, model.QueueRoom, model.NewEvent(model.EventQueueUpdated, model.QueueStatus{InQueue: 2}))

	s.Empty(drain(alice))
	s.Len(drain(bob), 1)
}

func (s *RegistrySuite) TestBroadcastToEmptyRoom() {
	s.NotPanics(func() {
		s.registry.Broadcast("game-unknown", model.NewEvent(model.EventGameUpdated))
	})
}

func (s *RegistrySuite) TestFullBufferDropsInsteadOfBlocking() {
	conn := NewConn(1)
	s.registry.Join(conn, model.QueueRoom)

	s.registry.Broadcast(model.QueueRoom,
		model.NewEvent(model.EventQueueUpdated, model.QueueStatus{InQueue: 1}),
		model.NewEvent(model.EventQueueUpdated, model.QueueStatus{InQueue: 2}))

	s.Len(drain(conn), 1)
}

func (s *RegistrySuite) TestSendToSingleConnection() {
	alice := s.newConn("alice")
	bob := s.newConn("bob")

	s.registry.Send(alice, model.NewEvent(model.EventErrorOccured, "boom"))

	events := drain(alice)
	s.Require().Len(events, 1)
	s.Equal([]any{"boom"}, events[0].Args)
	s.Empty(drain(bob))
}

func (s *RegistrySuite) TestCountObserver() {
	var mu sync.Mutex
	counts := map[string][]int{}
	s.registry.SetCountObserver(func(room string, count int) {
		mu.Lock()
		defer mu.Unlock()
		counts[room] = append(counts[room], count)
	})

	alice := s.newConn("alice")
	bob := s.newConn("bob")
	s.registry.Join(alice, "game-1")
	s.registry.Join(bob, "game-1")
	s.registry.Join(bob, model.QueueRoom)
	s.registry.LeaveAll(bob)

	s.Equal([]int{1, 2, 1}, counts["game-1"])
	s.NotContains(counts, model.QueueRoom)
}

func (s *RegistrySuite) TestConcurrentJoinLeave() {
	var wg sync.WaitGroup
	conns := make([]*Conn, 50)
	for i := range conns {
		conns[i] = NewConn(512)
	}

	for _, conn := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			s.registry.Join(c, "game-1")
			s.registry.Join(c, model.QueueRoom)
			s.registry.Leave(c, model.QueueRoom)
		}(conn)
	}
	wg.Wait()

	s.Equal(50, s.registry.Count("game-1"))
	s.Equal(0, s.registry.Count(model.QueueRoom))
}
