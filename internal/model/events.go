package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Invitation events
	EventInvitationReceived EventType = "invitation-received"
	EventInvitationDeclined EventType = "invitation-declined"

	// Match events
	EventMatchStarted    EventType = "match-started"
	EventTurnChanged     EventType = "turn-changed"
	EventTimersUpdated   EventType = "timers-updated"
	EventMatchOver       EventType = "match-over"
	EventParticipantLeft EventType = "participant-left"
	EventRoomState       EventType = "room-state"

	// Errors reported to the connection that caused them
	EventError EventType = "error"
)

// Event is the base structure for all outbound events
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    RoomID    `json:"room,omitempty"` // Empty for events outside a room
	Payload   any       `json:"payload,omitempty"`
}

// InvitationReceivedPayload contains data for invitation received events
type InvitationReceivedPayload struct {
	From     Username      `json:"from"`
	Settings MatchSettings `json:"settings"`
}

// InvitationDeclinedPayload contains data for invitation declined events
type InvitationDeclinedPayload struct {
	By Username `json:"by"`
}

// MatchStartedPayload contains data for match started events
type MatchStartedPayload struct {
	Players  Players       `json:"players"`
	Settings MatchSettings `json:"settings"`
}

// PromptView is the prompt as shown to clients. The answer is omitted when
// answers are checked by the server.
type PromptView struct {
	Country string `json:"country"`
	Capital string `json:"capital,omitempty"`
}

// TurnChangedPayload contains data for turn changed events
type TurnChangedPayload struct {
	Prompt     PromptView `json:"prompt"`
	TurnHolder Username   `json:"turn_holder"`
}

// TimersUpdatedPayload contains data for timers updated events
type TimersUpdatedPayload struct {
	Remaining map[Username]int `json:"remaining"`
}

// MatchOverPayload contains data for match over events
type MatchOverPayload struct {
	Winner Username      `json:"winner"`
	Loser  Username      `json:"loser"`
	Reason OutcomeReason `json:"reason"`
}

// ParticipantLeftPayload contains data for participant left events
type ParticipantLeftPayload struct {
	Who Username `json:"who"`
}

// RoomStatePayload is sent to a connection that rejoins a room
type RoomStatePayload struct {
	Players    Players          `json:"players"`
	Settings   MatchSettings    `json:"settings"`
	TurnHolder Username         `json:"turn_holder"`
	Remaining  map[Username]int `json:"remaining"`
	Prompt     PromptView       `json:"prompt"`
	SkipStreak int              `json:"skip_streak"`
}

// ErrorPayload reports a rejected client message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
