package bridge

import "strings"

// Event is one frame pushed by the bridge over the event socket.
type Event struct {
	Type    string  `json:"type"`
	Sender  *string `json:"sender,omitempty"`
	Content string  `json:"content"`
}

const EventChat = "chat"

// SenderName returns the sender exactly as sent, false when it is absent or
// blank. Role checks compare it verbatim.
func (e Event) SenderName() (string, bool) {
	if e.Sender == nil || strings.TrimSpace(*e.Sender) == "" {
		return "", false
	}
	return *e.Sender, true
}

// ChatRequest is the outgoing line, sent as an HTTP body or a WS frame.
type ChatRequest struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Status is the bridge's view of the game session.
type Status struct {
	Connected bool   `json:"connected"`
	Username  string `json:"username"`
	Server    string `json:"server"`
	Players   int    `json:"players"`
}

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)
