// Package protocol defines the WebSocket message types and structures used for
// communication between the client and the chat gateway. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/heartlink/chat-app/internal/chat"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeOpenChat  = "open_chat"
	TypeMessage   = "message"
	TypeTyping    = "typing"
	TypeRetry     = "retry"
	TypeCloseChat = "close_chat"
	TypePing      = "ping"
)

// Server -> Client message types.
const (
	TypeChatState   = "chat_state"
	TypeChatReady   = "chat_ready"
	TypeChatFailed  = "chat_failed"
	TypeSent        = "sent"
	TypeSendFailed  = "send_failed"
	TypeRateLimited = "rate_limited"
	TypeError       = "error"
	TypePong        = "pong"
	// TypeMessage and TypeTyping are reused for server -> client delivery.
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// OpenChatMsg asks the gateway to open a chat with the given counterpart.
// The gateway resolves the counterpart, the conversation, and the message
// history before answering with chat_ready or chat_failed.
type OpenChatMsg struct {
	Type          string `json:"type"`
	UserID        string `json:"user_id"`
	CounterpartID string `json:"counterpart_id"`
}

// SendMsg is a text message the client wants delivered to the counterpart.
type SendMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TypingMsg carries the client's current input text. The gateway feeds it
// to the session, which debounces before signalling the counterpart.
type TypingMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RetryMsg asks the gateway to retry a failed chat initialization.
type RetryMsg struct {
	Type string `json:"type"`
}

// CloseChatMsg tears down the active chat but keeps the connection open.
type CloseChatMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// ChatStateMsg reports an initialization state transition so the client can
// render progress.
type ChatStateMsg struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// ChatReadyMsg is sent when the chat reached the live state. It carries the
// counterpart's profile and the loaded history so the client can render the
// conversation in one step.
type ChatReadyMsg struct {
	Type        string         `json:"type"`
	Counterpart *chat.Profile  `json:"counterpart"`
	History     []chat.Message `json:"history"`
}

// ChatFailedMsg is sent when initialization failed. Retryable tells the
// client whether offering a retry makes sense.
type ChatFailedMsg struct {
	Type      string `json:"type"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ServerChatMsg delivers a message record to the client. It is used both
// for counterpart messages and for the local echo of a successful send.
type ServerChatMsg struct {
	Type    string       `json:"type"`
	Message chat.Message `json:"message"`
}

// SentMsg confirms a send completed.
type SentMsg struct {
	Type string `json:"type"`
}

// SendFailedMsg reports that a send did not complete. The composer keeps
// its text; Message is suitable for direct display.
type SendFailedMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerTypingMsg relays the counterpart's typing indicator.
type ServerTypingMsg struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// RateLimitedMsg is sent when the client exceeded a rate limit.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg communicates a protocol-level error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeOpenChat:
		var m OpenChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m SendMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRetry:
		var m RetryMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCloseChat:
		var m CloseChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
