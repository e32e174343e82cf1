// Package messaging provides a NATS client wrapper for the realtime side
// of the chat service. Each conversation has its own subject carrying
// message and typing events, and each user has a notification subject.
// The wrapper handles connection lifecycle and keeps subscriptions keyed
// for later cleanup.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns.
const (
	SubjectConversation = "chat"   // + .<conversation_id>
	SubjectNotify       = "notify" // + .<user_id>
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "heartlink",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// SubscribeToConversation subscribes to the chat.<conversationID> subject.
// The subscription is keyed by subscriberID so that both participants of a
// conversation on the same process can subscribe without overwriting each
// other.
func (c *NATSClient) SubscribeToConversation(conversationID, subscriberID string, handler func(data []byte)) error {
	subject := SubjectConversation + "." + conversationID
	key := "convsub:" + subscriberID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeFromConversation unsubscribes a subscriber's conversation
// subscription. Unsubscribing a key that is not present is a no-op.
func (c *NATSClient) UnsubscribeFromConversation(subscriberID string) error {
	return c.unsubscribe("convsub:" + subscriberID)
}

// PublishConversationEvent publishes data to the chat.<conversationID>
// subject.
func (c *NATSClient) PublishConversationEvent(conversationID string, data []byte) error {
	return c.Publish(SubjectConversation+"."+conversationID, data)
}

// PublishNotification publishes data to the notify.<userID> subject.
func (c *NATSClient) PublishNotification(userID string, data []byte) error {
	return c.Publish(SubjectNotify+"."+userID, data)
}

// SubscribeNotifications subscribes to the notify.<userID> subject and
// passes the raw message data to the handler.
func (c *NATSClient) SubscribeNotifications(userID string, handler func(data []byte)) error {
	subject := SubjectNotify + "." + userID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeNotifications unsubscribes from the notify.<userID> subject.
func (c *NATSClient) UnsubscribeNotifications(userID string) error {
	return c.unsubscribe(SubjectNotify + "." + userID)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", key, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes a stored subscription. A missing
// key is a no-op: releasing an already-released handle must be safe.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
