package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/capitalduel/internal/dependencies/mocks"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/testutil"
)

const grace = 30 * time.Second

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []model.Event
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ev model.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *fakeConn) received() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Event(nil), c.events...)
}

type RegistrySuite struct {
	suite.Suite
	clock    *clockwork.FakeClock
	registry *Registry
	expired  chan model.Username
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewFakeClock()
	s.registry = New(s.clock, grace, testutil.NopLogger())
	s.expired = make(chan model.Username, 10)
	s.registry.OnExpired(func(identity model.Username) {
		s.expired <- identity
	})
}

func (s *RegistrySuite) waitForTimers(n int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.clock.BlockUntilContext(ctx, n))
}

func (s *RegistrySuite) requireExpired(identity model.Username) {
	select {
	case got := <-s.expired:
		s.Equal(identity, got)
	case <-time.After(time.Second):
		s.FailNow("expected identity to expire", string(identity))
	}
}

func (s *RegistrySuite) requireNoExpiry() {
	select {
	case got := <-s.expired:
		s.FailNow("unexpected expiry", string(got))
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *RegistrySuite) TestRegisterMakesPresent() {
	s.registry.Register("alice", &fakeConn{id: "c1"})

	s.True(s.registry.IsPresent("alice"))
	state, _ := s.registry.State("alice")
	s.Equal(StatePresent, state)
	s.Len(s.registry.Connections("alice"), 1)
}

func (s *RegistrySuite) TestUnknownIdentityIsAbsent() {
	state, _ := s.registry.State("nobody")
	s.Equal(StateAbsent, state)
	s.False(s.registry.IsPresent("nobody"))
	s.False(s.registry.Deregister("nobody", &fakeConn{id: "c1"}))
}

func (s *RegistrySuite) TestDeregisterLastConnectionStartsGrace() {
	conn := &fakeConn{id: "c1"}
	s.registry.Register("alice", conn)

	absent := s.registry.Deregister("alice", conn)
	s.True(absent)

	state, deadline := s.registry.State("alice")
	s.Equal(StatePendingAbsence, state)
	s.Equal(mocks.Epoch.Add(grace), deadline)
	s.False(s.registry.IsPresent("alice"))
}

func (s *RegistrySuite) TestDeregisterWithRemainingConnections() {
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	s.registry.Register("alice", c1)
	s.registry.Register("alice", c2)

	s.False(s.registry.Deregister("alice", c1))
	s.True(s.registry.IsPresent("alice"))
	s.True(s.registry.Deregister("alice", c2))
}

func (s *RegistrySuite) TestDeregisterUnknownConnectionIsIgnored() {
	s.registry.Register("alice", &fakeConn{id: "c1"})

	s.False(s.registry.Deregister("alice", &fakeConn{id: "other"}))
	s.True(s.registry.IsPresent("alice"))
}

func (s *RegistrySuite) TestGraceExpiryFiresOnce() {
	conn := &fakeConn{id: "c1"}
	s.registry.Register("alice", conn)
	s.registry.Deregister("alice", conn)

	s.waitForTimers(1)
	s.clock.Advance(grace)

	s.requireExpired("alice")
	s.requireNoExpiry()

	state, _ := s.registry.State("alice")
	s.Equal(StateAbsent, state)
}

func (s *RegistrySuite) TestReconnectBeforeGracePreventsExpiry() {
	conn := &fakeConn{id: "c1"}
	s.registry.Register("alice", conn)
	s.registry.Deregister("alice", conn)

	s.waitForTimers(1)
	s.clock.Advance(grace - time.Millisecond)
	s.registry.Register("alice", &fakeConn{id: "c2"})
	s.clock.Advance(time.Hour)

	s.requireNoExpiry()
	s.True(s.registry.IsPresent("alice"))
}

func (s *RegistrySuite) TestRepeatedFlappingExpiresExactlyOnce() {
	for i := 0; i < 5; i++ {
		conn := &fakeConn{id: "c"}
		s.registry.Register("alice", conn)
		s.registry.Deregister("alice", conn)
		s.clock.Advance(grace / 2)
	}

	s.waitForTimers(1)
	s.clock.Advance(grace)

	s.requireExpired("alice")
	s.requireNoExpiry()
}

func (s *RegistrySuite) TestRegisterAfterExpiryStartsFresh() {
	conn := &fakeConn{id: "c1"}
	s.registry.Register("alice", conn)
	s.registry.Deregister("alice", conn)
	s.waitForTimers(1)
	s.clock.Advance(grace)
	s.requireExpired("alice")

	s.registry.Register("alice", &fakeConn{id: "c2"})
	s.True(s.registry.IsPresent("alice"))
}

func (s *RegistrySuite) TestIdentitiesExpireIndependently() {
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	s.registry.Register("alice", a)
	s.registry.Register("bob", b)

	s.registry.Deregister("alice", a)
	s.waitForTimers(1)
	s.clock.Advance(grace / 2)
	s.registry.Deregister("bob", b)
	s.waitForTimers(2)
	s.clock.Advance(grace / 2)

	s.requireExpired("alice")
	s.requireNoExpiry()
	state, _ := s.registry.State("bob")
	s.Equal(StatePendingAbsence, state)
}

func (s *RegistrySuite) TestSendReachesEveryConnection() {
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	s.registry.Register("alice", c1)
	s.registry.Register("alice", c2)

	delivered := s.registry.Send("alice", model.Event{Type: model.EventTimersUpdated})
	s.Equal(2, delivered)
	s.Len(c1.received(), 1)
	s.Len(c2.received(), 1)

	s.Equal(0, s.registry.Send("nobody", model.Event{Type: model.EventTimersUpdated}))
}

func (s *RegistrySuite) TestStats() {
	a := &fakeConn{id: "a"}
	s.registry.Register("alice", a)
	s.registry.Register("alice", &fakeConn{id: "a2"})
	b := &fakeConn{id: "b"}
	s.registry.Register("bob", b)
	s.registry.Deregister("bob", b)

	stats := s.registry.Stats()
	s.Equal(1, stats.Present)
	s.Equal(1, stats.PendingAbsence)
	s.Equal(2, stats.Connections)
}

func (s *RegistrySuite) TestCloseCancelsPendingExpiry() {
	conn := &fakeConn{id: "c1"}
	s.registry.Register("alice", conn)
	s.registry.Deregister("alice", conn)

	s.registry.Close()
	s.clock.Advance(time.Hour)

	s.requireNoExpiry()
}
