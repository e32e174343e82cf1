// Package chat implements the message-synchronization core for a single
// conversation between two matched users: conversation resolution, history
// load, optimistic send, realtime merge, and the typing-indicator lifecycle.
// Durable storage and realtime delivery are behind the capability
// interfaces in backend.go, so any backend with a persistent store and a
// change feed can sit underneath.
package chat

import "time"

// Conversation is a durable pairing of two users created by the matching
// process once both have expressed mutual interest. The participant pair is
// unordered: (UserA, UserB) and (UserB, UserA) name the same conversation.
type Conversation struct {
	ID    string `json:"id"`
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

// Counterpart returns the other participant's user ID, or "" if userID is
// not a participant.
func (c *Conversation) Counterpart(userID string) string {
	if userID == c.UserA {
		return c.UserB
	}
	if userID == c.UserB {
		return c.UserA
	}
	return ""
}

// IsParticipant reports whether userID is one of the two participants.
func (c *Conversation) IsParticipant(userID string) bool {
	return userID == c.UserA || userID == c.UserB
}

// Message is a single chat message. Messages are immutable once created;
// the backend assigns ID and CreatedAt. Display order is CreatedAt
// ascending, with ID used only for deduplication and list identity.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TypingSignal is the ephemeral "user is typing" state for one participant
// of one conversation. It is keyed by (ConversationID, UserID) with
// last-write-wins semantics; consumers apply a local expiry because the
// backend does not reliably push an explicit stop-typing event.
type TypingSignal struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Profile is the public profile of a user, as shown in the chat header.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}
