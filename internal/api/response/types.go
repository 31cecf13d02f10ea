package response

import (
	"time"

	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/session"
)

// User represents a user in API responses
type User struct {
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
	Online      bool   `json:"online"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User, online bool) User {
	return User{
		Username:    string(u.Username),
		HasPassword: u.HasPassword(),
		Online:      online,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *model.Session) AuthResponse {
	return AuthResponse{
		Username:     string(s.Username),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// UserSearchResult is a single user search hit
type UserSearchResult struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// UserSearchResponse is the response for user search
type UserSearchResponse struct {
	Users []UserSearchResult `json:"users"`
}

// QuestionsResponse holds a user's question bank
type QuestionsResponse struct {
	Questions []model.Question `json:"questions"`
}

// QuestionsFromModel wraps questions, never returning a null list
func QuestionsFromModel(qs []model.Question) QuestionsResponse {
	if qs == nil {
		qs = []model.Question{}
	}
	return QuestionsResponse{Questions: qs}
}

// RoomState is the get-room-state view of a live room
type RoomState struct {
	Room       string              `json:"room"`
	Players    model.Players       `json:"players"`
	Settings   model.MatchSettings `json:"settings"`
	TurnHolder string              `json:"turn_holder"`
	Remaining  map[string]int      `json:"remaining"`
	Prompt     model.PromptView    `json:"prompt"`
	SkipStreak int                 `json:"skip_streak"`
	StartedAt  time.Time           `json:"started_at"`
}

// RoomStateFromSnapshot converts a match snapshot, rendering the prompt
// the same way room broadcasts do
func RoomStateFromSnapshot(s model.MatchSnapshot, prompt model.PromptView) RoomState {
	remaining := make(map[string]int, len(s.Remaining))
	for u, secs := range s.Remaining {
		remaining[string(u)] = secs
	}
	return RoomState{
		Room:       string(s.RoomID),
		Players:    s.Players,
		Settings:   s.Settings,
		TurnHolder: string(s.TurnHolder),
		Remaining:  remaining,
		Prompt:     prompt,
		SkipStreak: s.SkipStreak,
		StartedAt:  s.StartedAt,
	}
}

// Stats summarises live activity
type Stats struct {
	Online         int `json:"online"`
	PendingAbsence int `json:"pending_absence"`
	Connections    int `json:"connections"`
	ActiveRooms    int `json:"active_rooms"`
}

// StatsFromSession converts coordinator stats
func StatsFromSession(s session.Stats) Stats {
	return Stats{
		Online:         s.Presence.Present,
		PendingAbsence: s.Presence.PendingAbsence,
		Connections:    s.Presence.Connections,
		ActiveRooms:    s.ActiveRooms,
	}
}

// Health is the response for the health check
type Health struct {
	Status string `json:"status"`
}
