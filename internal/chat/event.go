package chat

// Feed event types carried on a conversation's realtime subject.
const (
	EventMessage = "message"
	EventTyping  = "typing"
)

// FeedEvent is the envelope published to a conversation's realtime subject.
// Exactly one of Message or Typing is set, according to Type. The feed is
// assumed to be at-least-once: consumers must tolerate redelivery.
type FeedEvent struct {
	Type    string        `json:"type"` // "message" or "typing"
	Message *Message      `json:"message,omitempty"`
	Typing  *TypingSignal `json:"typing,omitempty"`
}

// NotifyNewMessage is the event type dispatched to the counterpart after a
// successful send.
const NotifyNewMessage = "new_message"
