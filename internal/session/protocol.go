package session

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// Envelope is the JSON frame for everything crossing the socket, both
// directions. Type selects the payload shape.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client commands.
const (
	CmdReady   = "ready"
	CmdUnready = "unready"
	CmdStart   = "start"
	CmdAdvance = "advance"
	CmdChat    = "chat"
	CmdState   = "state"
)

// Server events.
const (
	EvtSessionState       = "session_state"
	EvtPlayerConnected    = "player_connected"
	EvtPlayerDisconnected = "player_disconnected"
	EvtPlayerReady        = "player_ready"
	EvtPlayerUnready      = "player_unready"
	EvtAllReady           = "all_ready"
	EvtGameStarted        = "game_started"
	EvtWeekAdvanced       = "week_advanced"
	EvtChat               = "chat"
	EvtError              = "error"
)

type chatPayload struct {
	Text string `json:"text"`
}

type playerPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type chatEvent struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// truncateChat caps a message at maxChatLength bytes without splitting a
// multi-byte rune.
func truncateChat(s string) string {
	if len(s) <= maxChatLength {
		return s
	}
	cut := maxChatLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

type errorEvent struct {
	Message string `json:"message"`
}

func encode(msgType string, payload any) ([]byte, error) {
	env := struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: msgType, Payload: payload}
	return json.Marshal(env)
}
