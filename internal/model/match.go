package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RoomID identifies the room for a pair of users
type RoomID string

const roomIDSeparator = "-"

// NewRoomID derives the room id for a pair. The order of the arguments does
// not matter, so the same pair always addresses the same room.
func NewRoomID(a, b Username) RoomID {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return RoomID(strings.Join(pair, roomIDSeparator))
}

// Includes reports whether the username is one half of the room id
func (r RoomID) Includes(u Username) bool {
	a, b, ok := strings.Cut(string(r), roomIDSeparator)
	return ok && (a == string(u) || b == string(u))
}

// Default match settings
const (
	DefaultDuration    = 30
	DefaultSkipPenalty = 5
	MaxDuration        = 3600
)

// MatchSettings are proposed with an invitation and fixed for the life of a match.
// Both values are whole seconds.
type MatchSettings struct {
	Duration    int `json:"duration"`
	SkipPenalty int `json:"skip_penalty"`
}

// DefaultMatchSettings returns the settings used when an invitation carries none
func DefaultMatchSettings() MatchSettings {
	return MatchSettings{Duration: DefaultDuration, SkipPenalty: DefaultSkipPenalty}
}

// SettingsProposal is the settings object carried by invite messages. A
// nil field was left out by the client; zero is a real value.
type SettingsProposal struct {
	Duration    *int `json:"duration,omitempty"`
	SkipPenalty *int `json:"skip_penalty,omitempty"`
}

// Propose wraps concrete settings as a proposal with every field present
func Propose(s MatchSettings) *SettingsProposal {
	return &SettingsProposal{Duration: &s.Duration, SkipPenalty: &s.SkipPenalty}
}

// Resolve fills the fields the client left out from def. A nil proposal
// resolves to def.
func (p *SettingsProposal) Resolve(def MatchSettings) MatchSettings {
	if p == nil {
		return def
	}
	s := def
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.SkipPenalty != nil {
		s.SkipPenalty = *p.SkipPenalty
	}
	return s
}

// Validate checks the settings are playable
func (s MatchSettings) Validate() error {
	if s.Duration <= 0 || s.Duration > MaxDuration {
		return fmt.Errorf("%w: duration must be between 1 and %d seconds", ErrInvalidSettings, MaxDuration)
	}
	if s.SkipPenalty < 0 {
		return fmt.Errorf("%w: skip penalty must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Players holds both participants of a match
type Players struct {
	Initiator Username `json:"initiator"`
	Responder Username `json:"responder"`
}

// Has reports whether u is one of the players
func (p Players) Has(u Username) bool {
	return u == p.Initiator || u == p.Responder
}

// Other returns the opponent of u
func (p Players) Other(u Username) Username {
	if u == p.Initiator {
		return p.Responder
	}
	return p.Initiator
}

// MatchStatus represents the phase of a match
type MatchStatus string

const (
	MatchStatusAwaitingAnswer MatchStatus = "awaiting_answer"
	MatchStatusOver           MatchStatus = "over"
)

// OutcomeReason explains how a match ended
type OutcomeReason string

const (
	OutcomeTimeExpired OutcomeReason = "time_expired"
	OutcomeLeft        OutcomeReason = "left"
	OutcomeAbsent      OutcomeReason = "absent"
)

// Outcome is the terminal result of a match
type Outcome struct {
	Winner Username
	Loser  Username
	Reason OutcomeReason
}

// Match is the authoritative state of one active room.
// It is owned by a single room worker and never shared.
type Match struct {
	ID            RoomID
	Players       Players
	Settings      MatchSettings
	Status        MatchStatus
	TurnHolder    Username
	Remaining     map[Username]int
	CurrentPrompt int // index into PromptPool
	PromptPool    []Question
	SkipStreak    int
	Outcome       *Outcome
	StartedAt     time.Time
}

// NewMatch builds the initial state for a match. The pool must not be empty.
func NewMatch(players Players, settings MatchSettings, pool []Question, firstPrompt int, now time.Time) *Match {
	return &Match{
		ID:       NewRoomID(players.Initiator, players.Responder),
		Players:  players,
		Settings: settings,
		Status:   MatchStatusAwaitingAnswer,
		Remaining: map[Username]int{
			players.Initiator: settings.Duration,
			players.Responder: settings.Duration,
		},
		TurnHolder:    players.Initiator,
		CurrentPrompt: firstPrompt,
		PromptPool:    pool,
		StartedAt:     now,
	}
}

// IsOver returns true once the match has an outcome
func (m *Match) IsOver() bool {
	return m.Status == MatchStatusOver
}

// Prompt returns the current question
func (m *Match) Prompt() Question {
	if len(m.PromptPool) == 0 {
		return Question{}
	}
	return m.PromptPool[m.CurrentPrompt]
}

// RemainingCopy returns a copy of the per-player clocks
func (m *Match) RemainingCopy() map[Username]int {
	out := make(map[Username]int, len(m.Remaining))
	for k, v := range m.Remaining {
		out[k] = v
	}
	return out
}

// Snapshot captures the publicly visible state of the match
func (m *Match) Snapshot() MatchSnapshot {
	return MatchSnapshot{
		RoomID:     m.ID,
		Players:    m.Players,
		Settings:   m.Settings,
		Status:     m.Status,
		TurnHolder: m.TurnHolder,
		Remaining:  m.RemainingCopy(),
		Prompt:     m.Prompt(),
		SkipStreak: m.SkipStreak,
		StartedAt:  m.StartedAt,
	}
}

// MatchSnapshot is a point-in-time copy of a match, safe to share
type MatchSnapshot struct {
	RoomID     RoomID
	Players    Players
	Settings   MatchSettings
	Status     MatchStatus
	TurnHolder Username
	Remaining  map[Username]int
	Prompt     Question
	SkipStreak int
	StartedAt  time.Time
}

// MatchResult is published when a match reaches its outcome
type MatchResult struct {
	RoomID   RoomID
	Players  Players
	Settings MatchSettings
	Outcome  Outcome
	Duration time.Duration
	EndedAt  time.Time
}
