package match

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

const waitTimeout = time.Second

type recordingNotifier struct {
	mu     sync.Mutex
	queues map[model.Username]chan model.Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{queues: make(map[model.Username]chan model.Event)}
}

func (n *recordingNotifier) queue(u model.Username) chan model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	q, ok := n.queues[u]
	if !ok {
		q = make(chan model.Event, 256)
		n.queues[u] = q
	}
	return q
}

func (n *recordingNotifier) Notify(to model.Username, ev model.Event) {
	n.queue(to) <- ev
}

type RoomSuite struct {
	suite.Suite
	clock    *clockwork.FakeClock
	random   *mocks.MockRandom
	notifier *recordingNotifier
	manager  *Manager
	results  chan model.MatchResult
	ctx      context.Context
}

func TestRoomSuite(t *testing.T) {
	suite.Run(t, new(RoomSuite))
}

func (s *RoomSuite) SetupTest() {
	s.clock = mocks.NewFakeClock()
	s.random = mocks.NewMockRandom()
	s.notifier = newRecordingNotifier()
	s.manager = NewManager(s.clock, s.random, s.notifier, DefaultConfig(), testutil.NopLogger())
	s.results = make(chan model.MatchResult, 10)
	s.manager.OnResult(func(result model.MatchResult) {
		s.results <- result
	})
	s.ctx = context.Background()
}

func (s *RoomSuite) TearDownTest() {
	s.manager.Shutdown()
}

func (s *RoomSuite) next(u model.Username) model.Event {
	select {
	case ev := <-s.notifier.queue(u):
		return ev
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for event", string(u))
		return model.Event{}
	}
}

func (s *RoomSuite) expect(u model.Username, t model.EventType) model.Event {
	ev := s.next(u)
	s.Require().Equal(t, ev.Type, "unexpected event for %s", u)
	return ev
}

func (s *RoomSuite) requireQuiet(u model.Username) {
	select {
	case ev := <-s.notifier.queue(u):
		s.FailNow("unexpected event", "%s received %s", u, ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *RoomSuite) start(settings model.MatchSettings) *Room {
	room, _, err := s.manager.Create(pair, settings, []model.Question{france, japan, peru})
	s.Require().NoError(err)
	for _, u := range []model.Username{alice, bob} {
		s.expect(u, model.EventMatchStarted)
		s.expect(u, model.EventTurnChanged)
		s.expect(u, model.EventTimersUpdated)
	}
	return room
}

func (s *RoomSuite) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
	defer cancel()
	s.Require().NoError(s.clock.BlockUntilContext(ctx, s.manager.Count()))
	s.clock.Advance(time.Second)
}

func (s *RoomSuite) TestMatchStartedAnnouncesRoomToBoth() {
	room, snapshot, err := s.manager.Create(pair, model.DefaultMatchSettings(), []model.Question{france, japan})
	s.Require().NoError(err)
	s.Equal(model.RoomID("alice-bob"), room.ID())
	s.Equal(alice, snapshot.TurnHolder)

	for _, u := range []model.Username{alice, bob} {
		started := s.expect(u, model.EventMatchStarted)
		s.Equal(room.ID(), started.RoomID)
		payload := started.Payload.(model.MatchStartedPayload)
		s.Equal(pair, payload.Players)
	}
}

func (s *RoomSuite) TestRoomStateMatchesFirstBroadcast() {
	room, _, err := s.manager.Create(pair, model.DefaultMatchSettings(), []model.Question{france, japan, peru})
	s.Require().NoError(err)

	s.expect(alice, model.EventMatchStarted)
	turn := s.expect(alice, model.EventTurnChanged).Payload.(model.TurnChangedPayload)

	snapshot, err := room.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(turn.TurnHolder, snapshot.TurnHolder)
	s.Equal(turn.Prompt.Country, snapshot.Prompt.Country)
	s.Equal(turn.Prompt.Capital, snapshot.Prompt.Capital)
	s.Equal(pair, snapshot.Players)
}

func (s *RoomSuite) TestClockExpiresTurnHolder() {
	room := s.start(model.MatchSettings{Duration: 10, SkipPenalty: 5})

	for i := 1; i < 10; i++ {
		s.tick()
		for _, u := range []model.Username{alice, bob} {
			ev := s.expect(u, model.EventTimersUpdated)
			remaining := ev.Payload.(model.TimersUpdatedPayload).Remaining
			s.Equal(10-i, remaining[alice])
			s.Equal(10, remaining[bob])
		}
	}

	s.tick()
	for _, u := range []model.Username{alice, bob} {
		over := s.expect(u, model.EventMatchOver).Payload.(model.MatchOverPayload)
		s.Equal(bob, over.Winner)
		s.Equal(alice, over.Loser)
	}

	<-room.Done()
	s.Zero(s.manager.Count())
	_, err := s.manager.Get(room.ID())
	s.ErrorIs(err, model.ErrRoomNotFound)

	result := <-s.results
	s.Equal(model.OutcomeTimeExpired, result.Outcome.Reason)
	s.Equal(10*time.Second, result.Duration)

	s.clock.Advance(5 * time.Second)
	s.requireQuiet(alice)
	s.requireQuiet(bob)
}

func (s *RoomSuite) TestSkipBroadcastsSameOrderToBoth() {
	room := s.start(model.MatchSettings{Duration: 30, SkipPenalty: 5})

	room.Skip(alice)
	room.Skip(bob)
	room.Advance(alice, "")

	want := []model.EventType{
		model.EventTimersUpdated, model.EventTurnChanged,
		model.EventTimersUpdated, model.EventTurnChanged,
		model.EventTurnChanged,
	}
	var seen [2][]model.Event
	for i, u := range []model.Username{alice, bob} {
		for _, t := range want {
			seen[i] = append(seen[i], s.expect(u, t))
		}
	}
	s.Equal(seen[0], seen[1])

	snapshot, err := room.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(bob, snapshot.TurnHolder)
	s.Equal(map[model.Username]int{alice: 25, bob: 25}, snapshot.Remaining)
}

func (s *RoomSuite) TestOnlyTurnHolderClockRuns() {
	room := s.start(model.MatchSettings{Duration: 30, SkipPenalty: 5})

	room.Advance(alice, "")
	s.expect(alice, model.EventTurnChanged)
	s.expect(bob, model.EventTurnChanged)

	s.tick()
	remaining := s.expect(alice, model.EventTimersUpdated).Payload.(model.TimersUpdatedPayload).Remaining
	s.Equal(30, remaining[alice])
	s.Equal(29, remaining[bob])
}

func (s *RoomSuite) TestStaleActionsAreIgnored() {
	room := s.start(model.DefaultMatchSettings())

	room.Skip(bob)
	room.Advance(bob, "")
	room.Leave("mallory")

	snapshot, err := room.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(alice, snapshot.TurnHolder)
	s.requireQuiet(alice)
}

func (s *RoomSuite) TestLeaveEndsMatch() {
	room := s.start(model.DefaultMatchSettings())

	room.Leave(bob)

	for _, u := range []model.Username{alice, bob} {
		left := s.expect(u, model.EventParticipantLeft)
		s.Equal(bob, left.Payload.(model.ParticipantLeftPayload).Who)
		over := s.expect(u, model.EventMatchOver).Payload.(model.MatchOverPayload)
		s.Equal(alice, over.Winner)
		s.Equal(model.OutcomeLeft, over.Reason)
	}

	<-room.Done()
	_, err := room.Snapshot(s.ctx)
	s.ErrorIs(err, model.ErrRoomNotFound)

	// Actions after the room ended are no-ops
	room.Skip(alice)
	s.requireQuiet(alice)
}

func (s *RoomSuite) TestForfeitWaitsForBroadcast() {
	room := s.start(model.DefaultMatchSettings())

	s.Require().NoError(room.Forfeit(s.ctx, alice))

	s.expect(bob, model.EventParticipantLeft)
	over := s.expect(bob, model.EventMatchOver).Payload.(model.MatchOverPayload)
	s.Equal(bob, over.Winner)
	s.Equal(model.OutcomeAbsent, over.Reason)

	// Forfeiting an ended room returns immediately
	<-room.Done()
	s.Require().NoError(room.Forfeit(s.ctx, alice))
}

func (s *RoomSuite) TestStopHaltsTicks() {
	room := s.start(model.DefaultMatchSettings())

	room.Stop()
	s.clock.Advance(5 * time.Second)

	s.requireQuiet(alice)
	_, err := room.Snapshot(s.ctx)
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Empty(s.results)
}

func (s *RoomSuite) TestSyncSendsRoomState() {
	room := s.start(model.DefaultMatchSettings())

	got := make(chan model.Event, 1)
	s.NoError(room.Sync(s.ctx, func(ev model.Event) bool {
		got <- ev
		return true
	}))

	select {
	case ev := <-got:
		s.Equal(model.EventRoomState, ev.Type)
		state := ev.Payload.(model.RoomStatePayload)
		s.Equal(alice, state.TurnHolder)
		s.Equal(pair, state.Players)
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for room state")
	}
}

func (s *RoomSuite) TestSyncAfterMatchOverReportsNotFound() {
	release := make(chan struct{})
	finishing := make(chan struct{})
	s.manager.OnResult(func(result model.MatchResult) {
		close(finishing)
		<-release
		s.results <- result
	})
	room := s.start(model.DefaultMatchSettings())

	room.Leave(bob)
	select {
	case <-finishing:
	case <-time.After(waitTimeout):
		s.FailNow("match did not finish")
	}

	// The worker has left its loop but done is still open
	synced := make(chan error, 1)
	sent := make(chan model.Event, 1)
	go func() {
		synced <- room.Sync(s.ctx, func(ev model.Event) bool {
			sent <- ev
			return true
		})
	}()
	s.requireSyncPending(synced)
	close(release)

	select {
	case err := <-synced:
		s.ErrorIs(err, model.ErrRoomNotFound)
	case <-time.After(waitTimeout):
		s.FailNow("sync never returned")
	}
	s.Empty(sent)
	s.ErrorIs(room.Sync(s.ctx, func(model.Event) bool { return true }), model.ErrRoomNotFound)
}

func (s *RoomSuite) requireSyncPending(synced <-chan error) {
	select {
	case err := <-synced:
		s.FailNow("sync returned while the room was finishing", "%v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *RoomSuite) TestDuplicatePairRejectedWhileLive() {
	room := s.start(model.DefaultMatchSettings())

	_, _, err := s.manager.Create(model.Players{Initiator: bob, Responder: alice}, model.DefaultMatchSettings(), []model.Question{france})
	s.ErrorIs(err, model.ErrMatchInProgress)

	room.Leave(alice)
	<-room.Done()

	_, _, err = s.manager.Create(model.Players{Initiator: bob, Responder: alice}, model.DefaultMatchSettings(), []model.Question{france})
	s.NoError(err)
}

func (s *RoomSuite) TestCreateWithoutQuestions() {
	_, _, err := s.manager.Create(pair, model.DefaultMatchSettings(), nil)
	s.ErrorIs(err, model.ErrNoQuestionsAvailable)
	s.Zero(s.manager.Count())
}

func (s *RoomSuite) TestRoomsTickIndependently() {
	s.start(model.DefaultMatchSettings())
	other := model.Players{Initiator: "carol", Responder: "dave"}
	_, _, err := s.manager.Create(other, model.DefaultMatchSettings(), []model.Question{france})
	s.Require().NoError(err)
	for _, u := range []model.Username{"carol", "dave"} {
		s.expect(u, model.EventMatchStarted)
		s.expect(u, model.EventTurnChanged)
		s.expect(u, model.EventTimersUpdated)
	}

	s.tick()

	s.expect(alice, model.EventTimersUpdated)
	s.expect("carol", model.EventTimersUpdated)
	s.Len(s.manager.RoomsFor(alice), 1)
	s.Len(s.manager.RoomsFor("dave"), 1)
	s.Empty(s.manager.RoomsFor("erin"))
}

func (s *RoomSuite) TestShutdownStopsAllRooms() {
	room := s.start(model.DefaultMatchSettings())

	s.manager.Shutdown()

	<-room.Done()
	s.Zero(s.manager.Count())
	s.Empty(s.results)
}
