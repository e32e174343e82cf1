// Package backend assembles the storage and realtime layers into the
// single backend the chat session core talks to. Durable writes go to
// PostgreSQL first; only after a write lands is the corresponding event
// published to NATS, so the store is always at least as current as the
// feed. Typing signals skip PostgreSQL entirely and live in Redis.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/heartlink/chat-app/internal/chat"
	"github.com/heartlink/chat-app/internal/messaging"
	"github.com/heartlink/chat-app/internal/store"
	"github.com/heartlink/chat-app/internal/typing"
)

// Backend implements chat.Directory and chat.Backend over PostgreSQL,
// Redis, and NATS.
type Backend struct {
	profiles  *store.ProfileStore
	directory *store.DirectoryStore
	messages  *store.MessageStore
	notifs    *store.NotificationStore
	typing    *typing.Store
	nats      *messaging.NATSClient
}

// New creates a backend over the given stores and NATS client.
func New(db *store.DB, typingStore *typing.Store, natsClient *messaging.NATSClient) *Backend {
	return &Backend{
		profiles:  store.NewProfileStore(db),
		directory: store.NewDirectoryStore(db),
		messages:  store.NewMessageStore(db),
		notifs:    store.NewNotificationStore(db),
		typing:    typingStore,
		nats:      natsClient,
	}
}

// FindConversation resolves the conversation between two users.
func (b *Backend) FindConversation(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	return b.directory.FindConversation(ctx, userA, userB)
}

// FetchProfile returns the profile for a user id.
func (b *Backend) FetchProfile(ctx context.Context, userID string) (*chat.Profile, error) {
	return b.profiles.Fetch(ctx, userID)
}

// ListMessages returns the most recent limit messages of a conversation in
// chronological order.
func (b *Backend) ListMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	return b.messages.List(ctx, conversationID, limit)
}

// InsertMessage persists a message and publishes it to the conversation's
// realtime subject. The insert is authoritative: a publish failure is
// logged and swallowed, since subscribers will still see the message in
// history and the feed is at-least-once anyway.
func (b *Backend) InsertMessage(ctx context.Context, conversationID, senderID, content string) (*chat.Message, error) {
	msg, err := b.messages.Insert(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, err
	}

	event := chat.FeedEvent{Type: chat.EventMessage, Message: msg}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[backend] marshal message event: %v", err)
		return msg, nil
	}
	if err := b.nats.PublishConversationEvent(conversationID, data); err != nil {
		log.Printf("[backend] publish message event conv=%s: %v", conversationID, err)
	}
	return msg, nil
}

// UpsertTyping writes the typing signal to Redis and publishes it to the
// conversation's realtime subject.
func (b *Backend) UpsertTyping(ctx context.Context, sig chat.TypingSignal) error {
	if err := b.typing.Upsert(ctx, sig); err != nil {
		return fmt.Errorf("backend: upsert typing: %w", err)
	}

	event := chat.FeedEvent{Type: chat.EventTyping, Typing: &sig}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("backend: marshal typing event: %w", err)
	}
	if err := b.nats.PublishConversationEvent(sig.ConversationID, data); err != nil {
		return fmt.Errorf("backend: publish typing event: %w", err)
	}
	return nil
}

// Subscribe attaches to the conversation's realtime subject and fans feed
// events out to the given callbacks. Events that fail to decode are logged
// and dropped.
func (b *Backend) Subscribe(conversationID string, onMessage func(chat.Message), onTyping func(chat.TypingSignal)) (chat.Subscription, error) {
	subscriberID := uuid.NewString()
	err := b.nats.SubscribeToConversation(conversationID, subscriberID, func(data []byte) {
		var event chat.FeedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[backend] decode feed event conv=%s: %v", conversationID, err)
			return
		}
		switch event.Type {
		case chat.EventMessage:
			if event.Message != nil {
				onMessage(*event.Message)
			}
		case chat.EventTyping:
			if event.Typing != nil {
				onTyping(*event.Typing)
			}
		default:
			log.Printf("[backend] unknown feed event type %q conv=%s", event.Type, conversationID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("backend: subscribe conv=%s: %w", conversationID, err)
	}
	return &subscription{nats: b.nats, subscriberID: subscriberID}, nil
}

// Notify records a notification row for the user and publishes it on
// their notification subject so online clients can react immediately.
func (b *Backend) Notify(ctx context.Context, userID, eventType string, payload map[string]interface{}) error {
	if err := b.notifs.Insert(ctx, userID, eventType, payload); err != nil {
		return err
	}

	wire := map[string]interface{}{"event_type": eventType, "payload": payload}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("backend: marshal notification: %w", err)
	}
	if err := b.nats.PublishNotification(userID, data); err != nil {
		return fmt.Errorf("backend: publish notification: %w", err)
	}
	return nil
}

// subscription is the handle returned by Subscribe. Unsubscribe is
// idempotent.
type subscription struct {
	nats         *messaging.NATSClient
	subscriberID string
	once         sync.Once
	err          error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.nats.UnsubscribeFromConversation(s.subscriberID)
	})
	return s.err
}
