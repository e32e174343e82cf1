package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/heartlink/chat-app/internal/chat"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid open_chat message
// ---------------------------------------------------------------------------

func TestParseClientMessage_OpenChat(t *testing.T) {
	input := []byte(`{"type":"open_chat","user_id":"user-1","counterpart_id":"user-2"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeOpenChat {
		t.Fatalf("expected type %q, got %q", TypeOpenChat, msgType)
	}

	oc, ok := msg.(OpenChatMsg)
	if !ok {
		t.Fatalf("expected OpenChatMsg, got %T", msg)
	}
	if oc.UserID != "user-1" {
		t.Errorf("expected user_id %q, got %q", "user-1", oc.UserID)
	}
	if oc.CounterpartID != "user-2" {
		t.Errorf("expected counterpart_id %q, got %q", "user-2", oc.CounterpartID)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid message (send) message
// ---------------------------------------------------------------------------

func TestParseClientMessage_SendMsg(t *testing.T) {
	input := []byte(`{"type":"message","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessage {
		t.Fatalf("expected type %q, got %q", TypeMessage, msgType)
	}

	sm, ok := msg.(SendMsg)
	if !ok {
		t.Fatalf("expected SendMsg, got %T", msg)
	}
	if sm.Text != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", sm.Text)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a typing message carries the input text
// ---------------------------------------------------------------------------

func TestParseClientMessage_Typing(t *testing.T) {
	input := []byte(`{"type":"typing","text":"hel"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeTyping {
		t.Fatalf("expected type %q, got %q", TypeTyping, msgType)
	}

	tm, ok := msg.(TypingMsg)
	if !ok {
		t.Fatalf("expected TypingMsg, got %T", msg)
	}
	if tm.Text != "hel" {
		t.Errorf("expected text %q, got %q", "hel", tm.Text)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing bare retry and close_chat messages
// ---------------------------------------------------------------------------

func TestParseClientMessage_BareTypes(t *testing.T) {
	cases := []struct {
		input    string
		wantType string
	}{
		{`{"type":"retry"}`, TypeRetry},
		{`{"type":"close_chat"}`, TypeCloseChat},
		{`{"type":"ping"}`, TypePing},
	}
	for _, tc := range cases {
		msgType, msg, err := ParseClientMessage([]byte(tc.input))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.input, err)
		}
		if msgType != tc.wantType {
			t.Errorf("%s: expected type %q, got %q", tc.input, tc.wantType, msgType)
		}
		if msg == nil {
			t.Errorf("%s: expected a decoded message, got nil", tc.input)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a chat_ready server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_ChatReady(t *testing.T) {
	payload := ChatReadyMsg{
		Counterpart: &chat.Profile{ID: "user-2", DisplayName: "Jordan"},
		History: []chat.Message{
			{ID: "m1", ConversationID: "conv-1", SenderID: "user-2", Content: "hey", CreatedAt: time.Now()},
		},
	}

	data, err := NewServerMessage(TypeChatReady, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeChatReady {
		t.Errorf("expected type %q, got %v", TypeChatReady, result["type"])
	}

	counterpart, ok := result["counterpart"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected counterpart to be an object, got %T", result["counterpart"])
	}
	if counterpart["display_name"] != "Jordan" {
		t.Errorf("expected display_name %q, got %v", "Jordan", counterpart["display_name"])
	}

	history, ok := result["history"].([]interface{})
	if !ok {
		t.Fatalf("expected history to be an array, got %T", result["history"])
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"unknown_type","data":"something"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for unknown message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown type, got %v", msg)
	}
	if msgType != "unknown_type" {
		t.Errorf("expected returned type %q, got %q", "unknown_type", msgType)
	}
}

// ---------------------------------------------------------------------------
// Test: Server-only types are rejected from clients
// ---------------------------------------------------------------------------

func TestParseClientMessage_ServerOnlyType(t *testing.T) {
	input := []byte(`{"type":"chat_ready"}`)

	_, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for server-only message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message, got %v", msg)
	}
}

// ---------------------------------------------------------------------------
// Test: Round-trip fidelity through the parser
// ---------------------------------------------------------------------------

func TestRoundTrip_OpenChat(t *testing.T) {
	original := OpenChatMsg{
		Type:          TypeOpenChat,
		UserID:        "user-9",
		CounterpartID: "user-10",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	msgType, msg, err := ParseClientMessage(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeOpenChat {
		t.Fatalf("expected type %q, got %q", TypeOpenChat, msgType)
	}

	decoded, ok := msg.(OpenChatMsg)
	if !ok {
		t.Fatalf("expected OpenChatMsg, got %T", msg)
	}
	if decoded != original {
		t.Errorf("round-trip mismatch: expected %+v, got %+v", original, decoded)
	}
}

func TestRoundTrip_ChatFailed(t *testing.T) {
	original := ChatFailedMsg{
		Stage:     "history",
		Message:   "could not load message history",
		Retryable: true,
	}

	data, err := NewServerMessage(TypeChatFailed, original)
	if err != nil {
		t.Fatalf("failed to create server message: %v", err)
	}

	var decoded ChatFailedMsg
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if decoded.Type != TypeChatFailed {
		t.Errorf("type mismatch: expected %q, got %q", TypeChatFailed, decoded.Type)
	}
	if decoded.Stage != original.Stage {
		t.Errorf("stage mismatch: expected %q, got %q", original.Stage, decoded.Stage)
	}
	if decoded.Message != original.Message {
		t.Errorf("message mismatch: expected %q, got %q", original.Message, decoded.Message)
	}
	if !decoded.Retryable {
		t.Error("expected retryable=true")
	}
}

// ---------------------------------------------------------------------------
// Test: Envelope UnmarshalJSON edge cases
// ---------------------------------------------------------------------------

func TestEnvelope_MissingType(t *testing.T) {
	input := []byte(`{"data":"no type field"}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected an error for missing type field, got nil")
	}
}

func TestEnvelope_InvalidJSON(t *testing.T) {
	input := []byte(`{not json`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected an error for invalid JSON, got nil")
	}
}

func TestEnvelope_PreservesRaw(t *testing.T) {
	input := []byte(`{"type":"message","text":"kept"}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m SendMsg
	if err := json.Unmarshal(env.Raw, &m); err != nil {
		t.Fatalf("failed to decode raw payload: %v", err)
	}
	if m.Text != "kept" {
		t.Errorf("expected text %q, got %q", "kept", m.Text)
	}
}
