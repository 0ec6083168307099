package session

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestEncodeEnvelope(t *testing.T) {
	data, err := encode(EvtChat, chatEvent{UserID: "u1", Username: "casey", Text: "hello"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != EvtChat {
		t.Fatalf("type = %q, want %q", env.Type, EvtChat)
	}
	var evt chatEvent
	if err := json.Unmarshal(env.Payload, &evt); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if evt.Text != "hello" || evt.Username != "casey" {
		t.Fatalf("payload = %+v", evt)
	}
}

func TestChatEventCarriesTimestamp(t *testing.T) {
	at := time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)
	data, err := encode(EvtChat, chatEvent{UserID: "u1", Username: "casey", Text: "hi", Timestamp: at})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var evt chatEvent
	if err := json.Unmarshal(env.Payload, &evt); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !evt.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v, want %v", evt.Timestamp, at)
	}
}

func TestTruncateChatKeepsRunesWhole(t *testing.T) {
	short := "hello"
	if got := truncateChat(short); got != short {
		t.Fatalf("short message changed: %q", got)
	}

	long := strings.Repeat("a", maxChatLength+10)
	if got := truncateChat(long); len(got) != maxChatLength {
		t.Fatalf("ascii truncation length = %d, want %d", len(got), maxChatLength)
	}

	// 3-byte runes that do not divide the limit evenly force a mid-rune cut.
	multi := strings.Repeat("世", maxChatLength)
	got := truncateChat(multi)
	if len(got) > maxChatLength {
		t.Fatalf("truncated length = %d, want <= %d", len(got), maxChatLength)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got[len(got)-4:])
	}
}

func TestEncodeOmitsNilPayload(t *testing.T) {
	data, err := encode(EvtAllReady, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["payload"]; ok {
		t.Fatalf("nil payload must be omitted, got %s", data)
	}
}

func TestEnvelopeRejectsUnknownShape(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"type":"chat","payload":{"text":"hi"}}`), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != CmdChat {
		t.Fatalf("type = %q", env.Type)
	}
	var p chatPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Text != "hi" {
		t.Fatalf("text = %q", p.Text)
	}
}
