package types

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one (speaker, text) unit in a session transcript. Turns are
// append-only and always land in user/agent pairs for successful turns.
type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// SessionStatus tracks the per-session turn state machine.
type SessionStatus string

const (
	StatusReady  SessionStatus = "ready"
	StatusInTurn SessionStatus = "in_turn"
	StatusError  SessionStatus = "error"
)

// SessionInfo is the read-only view of a session exposed to the debug API.
type SessionInfo struct {
	SessionID  SessionID     `json:"session_id"`
	SessionKey SessionKey    `json:"session_key"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	TurnCount  int           `json:"turn_count"`
}

// InboundMessage is a user message entering the gateway from any channel.
// Credential is the raw bearer token presented with the request; it is
// carried alongside the message, never stored with the session.
type InboundMessage struct {
	Source     string     `json:"source"`
	SessionKey SessionKey `json:"session_key"`
	Credential string     `json:"-"`
	Text       string     `json:"text"`
}

// Schedule is one calendar row. Time and Description are empty strings when
// the row holds NULL.
type Schedule struct {
	ID          int64  `json:"schedule_id"`
	UserID      UserID `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
}
