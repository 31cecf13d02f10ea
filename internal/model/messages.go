package model

// MessageType identifies a message sent by a client over its connection
type MessageType string

const (
	MessageInvite         MessageType = "invite"
	MessageInviteResponse MessageType = "invite-response"
	MessageAnswerAccepted MessageType = "answer-accepted"
	MessageSkip           MessageType = "skip"
	MessageLeave          MessageType = "leave"
	MessageRejoin         MessageType = "rejoin"
)

// ClientMessage is the union of all inbound messages. Only the fields
// relevant to Type are read.
type ClientMessage struct {
	Type     MessageType       `json:"type"`
	To       Username          `json:"to,omitempty"`
	From     Username          `json:"from,omitempty"`
	Accept   bool              `json:"accept,omitempty"`
	Settings *SettingsProposal `json:"settings,omitempty"`
	RoomID   RoomID            `json:"room,omitempty"`
	Answer   string            `json:"answer,omitempty"`
}
