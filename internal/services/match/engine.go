package match

import (
	"strings"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/dependencies/random"
	"github.com/mcoot/capitalduel/internal/model"
)

// Engine applies turn transitions to a match and returns the events to broadcast.
// It holds no match state; the room worker that owns the match serializes all calls.
type Engine struct {
	clock         clock.Clock
	random        random.Random
	verifyAnswers bool
}

// NewEngine creates an Engine. When verifyAnswers is set, advances must carry
// the correct answer and prompts are broadcast without it.
func NewEngine(clk clock.Clock, rnd random.Random, verifyAnswers bool) *Engine {
	return &Engine{clock: clk, random: rnd, verifyAnswers: verifyAnswers}
}

// NewMatch builds the initial state of a match. Duplicate prompts are dropped
// and the first prompt is drawn uniformly from what remains.
func (e *Engine) NewMatch(players model.Players, settings model.MatchSettings, questions []model.Question) (*model.Match, error) {
	pool := dedupe(questions)
	if len(pool) == 0 {
		return nil, model.ErrNoQuestionsAvailable
	}
	return model.NewMatch(players, settings, pool, e.random.Intn(len(pool)), e.clock.Now()), nil
}

// Start returns the events announcing a new match
func (e *Engine) Start(m *model.Match) []model.Event {
	return []model.Event{
		e.event(m, model.EventMatchStarted, model.MatchStartedPayload{
			Players:  m.Players,
			Settings: m.Settings,
		}),
		e.turnChanged(m),
		e.timersUpdated(m),
	}
}

// Advance passes the turn after the turn holder answered correctly.
// Anything else is a no-op.
func (e *Engine) Advance(m *model.Match, by model.Username, answer string) []model.Event {
	if m.IsOver() || by != m.TurnHolder {
		return nil
	}
	if e.verifyAnswers && !m.Prompt().Matches(answer) {
		return nil
	}

	m.TurnHolder = m.Players.Other(m.TurnHolder)
	if e.drawPrompt(m) {
		m.SkipStreak = 0
	}
	return []model.Event{e.turnChanged(m)}
}

// Skip charges the turn holder the skip penalty and passes the turn.
// Every second consecutive skip replaces the prompt.
func (e *Engine) Skip(m *model.Match, by model.Username) []model.Event {
	if m.IsOver() || by != m.TurnHolder {
		return nil
	}

	holder := m.TurnHolder
	m.Remaining[holder] = max(0, m.Remaining[holder]-m.Settings.SkipPenalty)
	m.SkipStreak++
	if m.SkipStreak >= 2 {
		e.drawPrompt(m)
		m.SkipStreak = 0
	}
	m.TurnHolder = m.Players.Other(holder)

	return []model.Event{e.timersUpdated(m), e.turnChanged(m)}
}

// Tick takes one second from the turn holder. At zero the turn holder loses.
func (e *Engine) Tick(m *model.Match) []model.Event {
	if m.IsOver() {
		return nil
	}

	holder := m.TurnHolder
	m.Remaining[holder] = max(0, m.Remaining[holder]-1)
	if m.Remaining[holder] == 0 {
		return e.Expire(m, holder)
	}
	return []model.Event{e.timersUpdated(m)}
}

// Expire ends the match with loser out of time
func (e *Engine) Expire(m *model.Match, loser model.Username) []model.Event {
	if m.IsOver() || !m.Players.Has(loser) {
		return nil
	}
	e.end(m, loser, model.OutcomeTimeExpired)
	return []model.Event{e.matchOver(m)}
}

// Leave ends the match with the departing player as loser
func (e *Engine) Leave(m *model.Match, who model.Username, reason model.OutcomeReason) []model.Event {
	if m.IsOver() || !m.Players.Has(who) {
		return nil
	}
	e.end(m, who, reason)
	return []model.Event{
		e.event(m, model.EventParticipantLeft, model.ParticipantLeftPayload{Who: who}),
		e.matchOver(m),
	}
}

// State returns the room-state event sent to a rejoining connection
func (e *Engine) State(m *model.Match) model.Event {
	return e.event(m, model.EventRoomState, model.RoomStatePayload{
		Players:    m.Players,
		Settings:   m.Settings,
		TurnHolder: m.TurnHolder,
		Remaining:  m.RemainingCopy(),
		Prompt:     e.PromptView(m.Prompt()),
		SkipStreak: m.SkipStreak,
	})
}

// PromptView renders a question for clients
func (e *Engine) PromptView(q model.Question) model.PromptView {
	view := model.PromptView{Country: q.Country}
	if !e.verifyAnswers {
		view.Capital = q.Capital
	}
	return view
}

func (e *Engine) end(m *model.Match, loser model.Username, reason model.OutcomeReason) {
	m.Status = model.MatchStatusOver
	m.Outcome = &model.Outcome{
		Winner: m.Players.Other(loser),
		Loser:  loser,
		Reason: reason,
	}
}

// drawPrompt picks a prompt other than the current one and reports whether it changed.
// With a single prompt there is nothing else to pick and the prompt stays.
func (e *Engine) drawPrompt(m *model.Match) bool {
	n := len(m.PromptPool)
	if n <= 1 {
		return false
	}
	next := e.random.Intn(n - 1)
	if next >= m.CurrentPrompt {
		next++
	}
	m.CurrentPrompt = next
	return true
}

func (e *Engine) turnChanged(m *model.Match) model.Event {
	return e.event(m, model.EventTurnChanged, model.TurnChangedPayload{
		Prompt:     e.PromptView(m.Prompt()),
		TurnHolder: m.TurnHolder,
	})
}

func (e *Engine) timersUpdated(m *model.Match) model.Event {
	return e.event(m, model.EventTimersUpdated, model.TimersUpdatedPayload{
		Remaining: m.RemainingCopy(),
	})
}

func (e *Engine) matchOver(m *model.Match) model.Event {
	return e.event(m, model.EventMatchOver, model.MatchOverPayload{
		Winner: m.Outcome.Winner,
		Loser:  m.Outcome.Loser,
		Reason: m.Outcome.Reason,
	})
}

func (e *Engine) event(m *model.Match, t model.EventType, payload any) model.Event {
	return model.Event{
		Type:      t,
		Timestamp: e.clock.Now(),
		RoomID:    m.ID,
		Payload:   payload,
	}
}

func dedupe(questions []model.Question) []model.Question {
	seen := make(map[model.Question]bool, len(questions))
	pool := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		q = q.Normalize()
		if q.Validate() != nil {
			continue
		}
		key := model.Question{Country: strings.ToLower(q.Country), Capital: strings.ToLower(q.Capital)}
		if seen[key] {
			continue
		}
		seen[key] = true
		pool = append(pool, q)
	}
	return pool
}
