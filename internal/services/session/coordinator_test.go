package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/capitalduel/internal/dependencies/mocks"
	"github.com/mcoot/capitalduel/internal/events"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/testutil"
)

const (
	alice model.Username = "alice"
	bob   model.Username = "bob"

	waitTimeout = time.Second
	grace       = 30 * time.Second
)

type chanConn struct {
	id     string
	events chan model.Event
}

func newChanConn(id string) *chanConn {
	return &chanConn{id: id, events: make(chan model.Event, 256)}
}

func (c *chanConn) ID() string { return c.id }

func (c *chanConn) Send(ev model.Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

type fakeQuestions struct {
	mu        sync.Mutex
	banks     map[model.Username][]model.Question
	forgotten []model.Username
}

func (f *fakeQuestions) Fetch(ctx context.Context, u model.Username) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.banks[u], nil
}

func (f *fakeQuestions) Forget(ctx context.Context, u model.Username) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.banks, u)
	f.forgotten = append(f.forgotten, u)
	return nil
}

type fakeAccounts struct {
	forgotten chan model.Username
}

func (f *fakeAccounts) Forget(ctx context.Context, u model.Username) error {
	f.forgotten <- u
	return nil
}

type recordingPublisher struct {
	results chan model.MatchResult
}

func (p *recordingPublisher) PublishMatchResult(ctx context.Context, result model.MatchResult) error {
	p.results <- result
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var _ events.Publisher = (*recordingPublisher)(nil)

type CoordinatorSuite struct {
	suite.Suite
	clock       *clockwork.FakeClock
	random      *mocks.MockRandom
	questions   *fakeQuestions
	accounts    *fakeAccounts
	publisher   *recordingPublisher
	coordinator *Coordinator
	ctx         context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.clock = mocks.NewFakeClock()
	s.random = mocks.NewMockRandom()
	s.questions = &fakeQuestions{banks: map[model.Username][]model.Question{
		alice: {
			{Country: "France", Capital: "Paris"},
			{Country: "Japan", Capital: "Tokyo"},
			{Country: "Peru", Capital: "Lima"},
		},
	}}
	s.accounts = &fakeAccounts{forgotten: make(chan model.Username, 10)}
	s.publisher = &recordingPublisher{results: make(chan model.MatchResult, 10)}

	cfg := DefaultConfig()
	cfg.GracePeriod = grace
	s.coordinator = New(s.clock, s.random, s.questions, s.accounts, s.publisher, nil, cfg, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *CoordinatorSuite) TearDownTest() {
	s.coordinator.Shutdown()
}

func (s *CoordinatorSuite) connect(u model.Username) *chanConn {
	conn := newChanConn(string(u) + "-conn")
	s.coordinator.Connect(u, conn)
	return conn
}

func (s *CoordinatorSuite) send(u model.Username, conn *chanConn, msg model.ClientMessage) error {
	return s.coordinator.HandleMessage(s.ctx, u, conn, msg)
}

func (s *CoordinatorSuite) expect(conn *chanConn, t model.EventType) model.Event {
	select {
	case ev := <-conn.events:
		s.Require().Equal(t, ev.Type, "unexpected event on %s", conn.id)
		return ev
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for event", "%s on %s", t, conn.id)
		return model.Event{}
	}
}

// skipUntil drains events until one of type t arrives
func (s *CoordinatorSuite) skipUntil(conn *chanConn, t model.EventType) model.Event {
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-conn.events:
			if ev.Type == t {
				return ev
			}
		case <-deadline:
			s.FailNow("timed out waiting for event", "%s on %s", t, conn.id)
			return model.Event{}
		}
	}
}

func (s *CoordinatorSuite) requireQuiet(conn *chanConn) {
	select {
	case ev := <-conn.events:
		s.FailNow("unexpected event", "%s received %s", conn.id, ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *CoordinatorSuite) startMatch(aliceConn, bobConn *chanConn) model.RoomID {
	s.Require().NoError(s.send(alice, aliceConn, model.ClientMessage{Type: model.MessageInvite, To: bob}))
	s.expect(bobConn, model.EventInvitationReceived)

	s.Require().NoError(s.send(bob, bobConn, model.ClientMessage{Type: model.MessageInviteResponse, From: alice, Accept: true}))
	var room model.RoomID
	for _, conn := range []*chanConn{aliceConn, bobConn} {
		room = s.expect(conn, model.EventMatchStarted).RoomID
		s.expect(conn, model.EventTurnChanged)
		s.expect(conn, model.EventTimersUpdated)
	}
	return room
}

func (s *CoordinatorSuite) advanceAfterWaiters(n int, d time.Duration) {
	ctx, cancel := context.WithTimeout(s.ctx, waitTimeout)
	defer cancel()
	s.Require().NoError(s.clock.BlockUntilContext(ctx, n))
	s.clock.Advance(d)
}

func (s *CoordinatorSuite) TestInviteAcceptStartsMatch() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)

	room := s.startMatch(aliceConn, bobConn)
	s.Equal(model.RoomID("alice-bob"), room)
	s.Equal(1, s.coordinator.Stats().ActiveRooms)
}

func (s *CoordinatorSuite) TestDeclineNotifiesInitiator() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)

	s.Require().NoError(s.send(alice, aliceConn, model.ClientMessage{Type: model.MessageInvite, To: bob}))
	s.expect(bobConn, model.EventInvitationReceived)
	s.Require().NoError(s.send(bob, bobConn, model.ClientMessage{Type: model.MessageInviteResponse, From: alice}))

	declined := s.expect(aliceConn, model.EventInvitationDeclined)
	s.Equal(bob, declined.Payload.(model.InvitationDeclinedPayload).By)
	s.Equal(0, s.coordinator.Stats().ActiveRooms)
}

func (s *CoordinatorSuite) TestAcceptWithoutQuestionsReportsToInitiator() {
	s.questions.banks = map[model.Username][]model.Question{}
	aliceConn, bobConn := s.connect(alice), s.connect(bob)

	err := s.send(bob, bobConn, model.ClientMessage{Type: model.MessageInviteResponse, From: alice, Accept: true})
	s.ErrorIs(err, model.ErrNoQuestionsAvailable)

	s.expect(aliceConn, model.EventError)
	s.Equal(0, s.coordinator.Stats().ActiveRooms)
}

func (s *CoordinatorSuite) TestAcceptWithAbsentInitiatorFails() {
	bobConn := s.connect(bob)

	err := s.send(bob, bobConn, model.ClientMessage{Type: model.MessageInviteResponse, From: alice, Accept: true})
	s.ErrorIs(err, model.ErrParticipantUnavailable)
}

func (s *CoordinatorSuite) TestAnswerAndSkipDriveTurns() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	// Out of turn
	s.Require().NoError(s.send(bob, bobConn, model.ClientMessage{Type: model.MessageSkip, RoomID: room}))
	s.requireQuiet(aliceConn)

	s.Require().NoError(s.send(alice, aliceConn, model.ClientMessage{Type: model.MessageAnswerAccepted, RoomID: room}))
	turn := s.expect(bobConn, model.EventTurnChanged).Payload.(model.TurnChangedPayload)
	s.Equal(bob, turn.TurnHolder)

	s.Require().NoError(s.send(bob, bobConn, model.ClientMessage{Type: model.MessageSkip, RoomID: room}))
	timers := s.skipUntil(aliceConn, model.EventTimersUpdated)
	s.Equal(25, timers.Payload.(model.TimersUpdatedPayload).Remaining[bob])
}

func (s *CoordinatorSuite) TestZeroSkipPenaltyLeavesClockUntouched() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	settings := model.Propose(model.MatchSettings{Duration: 30, SkipPenalty: 0})

	s.Require().NoError(s.send(alice, aliceConn, model.ClientMessage{Type: model.MessageInvite, To: bob, Settings: settings}))
	invite := s.expect(bobConn, model.EventInvitationReceived).Payload.(model.InvitationReceivedPayload)
	s.Equal(0, invite.Settings.SkipPenalty)

	s.Require().NoError(s.send(bob, bobConn, model.ClientMessage{Type: model.MessageInviteResponse, From: alice, Accept: true, Settings: settings}))
	started := s.expect(aliceConn, model.EventMatchStarted)
	s.Equal(0, started.Payload.(model.MatchStartedPayload).Settings.SkipPenalty)
	s.expect(aliceConn, model.EventTurnChanged)
	s.expect(aliceConn, model.EventTimersUpdated)

	s.Require().NoError(s.send(alice, aliceConn, model.ClientMessage{Type: model.MessageSkip, RoomID: started.RoomID}))
	timers := s.expect(aliceConn, model.EventTimersUpdated).Payload.(model.TimersUpdatedPayload)
	s.Equal(30, timers.Remaining[alice])
	turn := s.expect(aliceConn, model.EventTurnChanged).Payload.(model.TurnChangedPayload)
	s.Equal(bob, turn.TurnHolder)
}

func (s *CoordinatorSuite) TestPartialSettingsFallBackToDefaults() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	duration := 90

	s.Require().NoError(s.send(alice, aliceConn, model.ClientMessage{
		Type:     model.MessageInvite,
		To:       bob,
		Settings: &model.SettingsProposal{Duration: &duration},
	}))

	invite := s.expect(bobConn, model.EventInvitationReceived).Payload.(model.InvitationReceivedPayload)
	s.Equal(model.MatchSettings{Duration: 90, SkipPenalty: model.DefaultSkipPenalty}, invite.Settings)
}

func (s *CoordinatorSuite) TestLeaveEndsMatchAndPublishes() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	s.Require().NoError(s.send(bob, bobConn, model.ClientMessage{Type: model.MessageLeave, RoomID: room}))

	s.expect(aliceConn, model.EventParticipantLeft)
	over := s.expect(aliceConn, model.EventMatchOver).Payload.(model.MatchOverPayload)
	s.Equal(alice, over.Winner)
	s.Equal(model.OutcomeLeft, over.Reason)

	select {
	case result := <-s.publisher.results:
		s.Equal(room, result.RoomID)
		s.Equal(bob, result.Outcome.Loser)
	case <-time.After(waitTimeout):
		s.FailNow("match result not published")
	}
}

func (s *CoordinatorSuite) TestRejoinSendsRoomState() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	s.coordinator.Disconnect(bob, bobConn)
	again := s.connect(bob)
	s.Require().NoError(s.send(bob, again, model.ClientMessage{Type: model.MessageRejoin, RoomID: room}))

	state := s.expect(again, model.EventRoomState).Payload.(model.RoomStatePayload)
	s.Equal(alice, state.TurnHolder)
	s.requireQuiet(aliceConn)
}

func (s *CoordinatorSuite) TestRejoinUnknownRoom() {
	conn := s.connect(alice)
	err := s.send(alice, conn, model.ClientMessage{Type: model.MessageRejoin, RoomID: "alice-zed"})
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *CoordinatorSuite) TestActionsOnForeignRoomAreIgnored() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	carol := model.Username("carol")
	carolConn := s.connect(carol)
	s.Require().NoError(s.send(carol, carolConn, model.ClientMessage{Type: model.MessageLeave, RoomID: room}))
	s.requireQuiet(aliceConn)
	s.Equal(1, s.coordinator.Stats().ActiveRooms)
}

func (s *CoordinatorSuite) TestUnknownMessageType() {
	conn := s.connect(alice)
	err := s.send(alice, conn, model.ClientMessage{Type: "shout"})
	s.ErrorIs(err, ErrUnknownMessage)
}

func (s *CoordinatorSuite) TestReconnectWithinGraceKeepsMatch() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	s.coordinator.Disconnect(bob, bobConn)
	s.False(s.coordinator.IsOnline(bob))
	s.connect(bob)
	s.True(s.coordinator.IsOnline(bob))

	// Only the room ticker is left waiting on the clock
	s.advanceAfterWaiters(1, grace)
	s.requireQuietOf(aliceConn, model.EventMatchOver)

	state, err := s.coordinator.RoomState(s.ctx, alice, room)
	s.Require().NoError(err)
	s.NotEqual(model.MatchStatusOver, state.Status)
	s.Empty(s.questions.forgotten)
}

func (s *CoordinatorSuite) TestGraceExpiryForfeitsAndPurges() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	s.coordinator.Disconnect(bob, bobConn)
	// Room ticker plus bob's grace timer
	s.advanceAfterWaiters(2, grace)

	left := s.skipUntil(aliceConn, model.EventParticipantLeft)
	s.Equal(room, left.RoomID)
	over := s.expect(aliceConn, model.EventMatchOver).Payload.(model.MatchOverPayload)
	s.Equal(alice, over.Winner)
	s.Equal(bob, over.Loser)
	s.Equal(model.OutcomeAbsent, over.Reason)

	select {
	case u := <-s.accounts.forgotten:
		s.Equal(bob, u)
	case <-time.After(waitTimeout):
		s.FailNow("account not forgotten")
	}
	s.Contains(s.questions.forgotten, bob)

	_, err := s.coordinator.RoomState(s.ctx, alice, room)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *CoordinatorSuite) TestRoomStateRejectsOutsiders() {
	aliceConn, bobConn := s.connect(alice), s.connect(bob)
	room := s.startMatch(aliceConn, bobConn)

	_, err := s.coordinator.RoomState(s.ctx, "carol", room)
	s.ErrorIs(err, model.ErrNotParticipant)
}

// requireQuietOf fails if an event of type t arrives shortly
func (s *CoordinatorSuite) requireQuietOf(conn *chanConn, t model.EventType) {
	deadline := time.After(50 * time.Millisecond)
	for {
		select {
		case ev := <-conn.events:
			s.Require().NotEqual(t, ev.Type)
		case <-deadline:
			return
		}
	}
}
