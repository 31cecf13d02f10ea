package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mcoot/capitalduel/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

// PrintEvent outputs a websocket event as it arrives
func (o *Output) PrintEvent(ev Event) {
	if o.format == "json" {
		data, _ := json.Marshal(ev)
		fmt.Println(string(data))
		return
	}
	fmt.Printf("[%s] %s\n", ev.Timestamp.Local().Format(time.TimeOnly), describeEvent(ev))
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case AuthResult:
		o.printAuthResult(v)
	case Questions:
		o.printQuestions(v)
	case UserSearch:
		o.printUserSearch(v)
	case RoomState:
		o.printRoomState(v)
	case Stats:
		o.printStats(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
	Online      bool   `json:"online"`
}

// AuthResult is the login response
type AuthResult struct {
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Questions response type
type Questions struct {
	Questions []model.Question `json:"questions"`
}

// UserSearch response type
type UserSearch struct {
	Users []struct {
		Username string `json:"username"`
		Online   bool   `json:"online"`
	} `json:"users"`
}

// RoomState response type
type RoomState struct {
	Room       string              `json:"room"`
	Players    model.Players       `json:"players"`
	Settings   model.MatchSettings `json:"settings"`
	TurnHolder string              `json:"turn_holder"`
	Remaining  map[string]int      `json:"remaining"`
	Prompt     model.PromptView    `json:"prompt"`
	SkipStreak int                 `json:"skip_streak"`
}

// Stats response type
type Stats struct {
	Online         int `json:"online"`
	PendingAbsence int `json:"pending_absence"`
	Connections    int `json:"connections"`
	ActiveRooms    int `json:"active_rooms"`
}

// HealthResult response type
type HealthResult struct {
	Status    string `json:"status"`
	Server    string `json:"server,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Event is an event received over the websocket. The payload is kept raw
// and decoded by type when printed.
type Event struct {
	Type      model.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	RoomID    string          `json:"room,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (o *Output) printUser(u User) {
	fmt.Printf("User: %s\n", u.Username)
	fmt.Printf("Password: %s\n", yesNo(u.HasPassword))
	fmt.Printf("Online: %s\n", yesNo(u.Online))
}

func (o *Output) printAuthResult(a AuthResult) {
	fmt.Printf("Logged in as %s\n", a.Username)
	fmt.Printf("Token: %s\n", a.SessionToken)
	fmt.Printf("Expires: %s\n", a.ExpiresAt.Local().Format(time.RFC1123))
}

func (o *Output) printQuestions(q Questions) {
	fmt.Printf("Questions (%d):\n", len(q.Questions))
	for _, item := range q.Questions {
		fmt.Printf("  - %s: %s\n", item.Country, item.Capital)
	}
}

func (o *Output) printUserSearch(s UserSearch) {
	if len(s.Users) == 0 {
		fmt.Println("No users found")
		return
	}
	for _, u := range s.Users {
		status := "offline"
		if u.Online {
			status = "online"
		}
		fmt.Printf("  - %s (%s)\n", u.Username, status)
	}
}

func (o *Output) printRoomState(r RoomState) {
	fmt.Printf("Room: %s\n", r.Room)
	fmt.Printf("Players: %s vs %s\n", r.Players.Initiator, r.Players.Responder)
	fmt.Printf("Settings: %ds each, %ds skip penalty\n", r.Settings.Duration, r.Settings.SkipPenalty)
	fmt.Printf("Turn: %s\n", r.TurnHolder)
	fmt.Printf("Prompt: %s\n", formatPrompt(r.Prompt))
	fmt.Printf("Skip streak: %d\n", r.SkipStreak)
	fmt.Println("Remaining:")
	for _, name := range sortedKeys(r.Remaining) {
		fmt.Printf("  %s: %ds\n", name, r.Remaining[name])
	}
}

func (o *Output) printStats(s Stats) {
	fmt.Printf("Online: %d\n", s.Online)
	fmt.Printf("Pending absence: %d\n", s.PendingAbsence)
	fmt.Printf("Connections: %d\n", s.Connections)
	fmt.Printf("Active rooms: %d\n", s.ActiveRooms)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status:  %s\n", h.Status)
	if h.Server != "" {
		fmt.Printf("Server:  %s\n", h.Server)
	}
	fmt.Printf("Latency: %dms\n", h.LatencyMS)
}

// describeEvent renders an event as one line of text
func describeEvent(ev Event) string {
	switch ev.Type {
	case model.EventInvitationReceived:
		var p model.InvitationReceivedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s invites you (%ds, %ds skip penalty). Reply with: accept %s", p.From, p.Settings.Duration, p.Settings.SkipPenalty, p.From)
		}
	case model.EventInvitationDeclined:
		var p model.InvitationDeclinedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s declined your invitation", p.By)
		}
	case model.EventMatchStarted:
		var p model.MatchStartedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("match %s started: %s vs %s", ev.RoomID, p.Players.Initiator, p.Players.Responder)
		}
	case model.EventTurnChanged:
		var p model.TurnChangedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s: %s to answer %s", ev.RoomID, p.TurnHolder, formatPrompt(p.Prompt))
		}
	case model.EventTimersUpdated:
		var p struct {
			Remaining map[string]int `json:"remaining"`
		}
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s: %s", ev.RoomID, formatRemaining(p.Remaining))
		}
	case model.EventMatchOver:
		var p model.MatchOverPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s: %s wins, %s loses (%s)", ev.RoomID, p.Winner, p.Loser, p.Reason)
		}
	case model.EventParticipantLeft:
		var p model.ParticipantLeftPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s: %s left", ev.RoomID, p.Who)
		}
	case model.EventRoomState:
		var p struct {
			TurnHolder string           `json:"turn_holder"`
			Remaining  map[string]int   `json:"remaining"`
			Prompt     model.PromptView `json:"prompt"`
		}
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("%s: %s to answer %s, %s", ev.RoomID, p.TurnHolder, formatPrompt(p.Prompt), formatRemaining(p.Remaining))
		}
	case model.EventError:
		var p model.ErrorPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			return fmt.Sprintf("error: %s (%s)", p.Message, p.Code)
		}
	}
	return fmt.Sprintf("%s %s", ev.Type, string(ev.Payload))
}

func formatPrompt(p model.PromptView) string {
	if p.Capital == "" {
		return p.Country
	}
	return fmt.Sprintf("%s (%s)", p.Country, p.Capital)
}

func formatRemaining(remaining map[string]int) string {
	out := ""
	for i, name := range sortedKeys(remaining) {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %ds", name, remaining[name])
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
