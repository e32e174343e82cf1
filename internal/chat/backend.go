package chat

import (
	"context"
	"time"
)

// Directory resolves a participant pair to a conversation. A missing
// conversation is reported as ErrNotFound: the two users have not mutually
// matched yet, which is an expected state rather than a system error.
type Directory interface {
	FindConversation(ctx context.Context, userA, userB string) (*Conversation, error)
}

// Backend is the messaging backend: a persistent store plus a realtime
// change feed. Implementations must return ErrNotFound (possibly wrapped)
// for absent profiles and assign ID and CreatedAt on insert.
//
// Subscribe delivers events via the given callbacks until the returned
// Subscription is released. Delivery is assumed at-least-once; callers
// deduplicate. Callbacks may be invoked from arbitrary goroutines.
type Backend interface {
	FetchProfile(ctx context.Context, userID string) (*Profile, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (*Message, error)
	UpsertTyping(ctx context.Context, sig TypingSignal) error
	Subscribe(conversationID string, onMessage func(Message), onTyping func(TypingSignal)) (Subscription, error)
	Notify(ctx context.Context, userID, eventType string, payload map[string]interface{}) error
}

// Subscription is an active realtime feed subscription. Unsubscribe must be
// safe to call more than once.
type Subscription interface {
	Unsubscribe() error
}

// Tunables with their default values. A zero value in Config selects the
// default.
const (
	DefaultHistoryLimit   = 200
	DefaultTypingDebounce = 500 * time.Millisecond
	DefaultTypingExpiry   = 3 * time.Second
	DefaultCallTimeout    = 10 * time.Second
)
