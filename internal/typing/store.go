// Package typing stores transient typing indicators in Redis. Signals are
// short-lived by nature, so every write carries a TTL and stale entries
// simply expire instead of requiring cleanup jobs.
package typing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heartlink/chat-app/internal/chat"
)

const (
	// KeyPrefix is the Redis key prefix for typing hashes.
	KeyPrefix = "typing:"

	// SignalTTL is the time-to-live for typing keys. It is a little
	// longer than the client-side expiry so readers racing an expiring
	// signal still see it.
	SignalTTL = 10 * time.Second
)

// Store manages typing indicator state in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a typing store connected to Redis.
func NewStore(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("typing: redis connection failed: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing Redis client so the typing store
// can share a connection with other Redis users in the same process.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(conversationID, userID string) string {
	return KeyPrefix + conversationID + ":" + userID
}

// Upsert writes the given typing signal. Writes are last-write-wins; the
// service does not order concurrent updates from the same user.
func (s *Store) Upsert(ctx context.Context, sig chat.TypingSignal) error {
	k := key(sig.ConversationID, sig.UserID)

	fields := map[string]interface{}{
		"is_typing":  sig.IsTyping,
		"updated_at": sig.UpdatedAt.UnixMilli(),
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, k, fields)
	pipe.Expire(ctx, k, SignalTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get reads the stored typing signal for a user in a conversation.
// Returns nil if no signal is stored or it already expired.
func (s *Store) Get(ctx context.Context, conversationID, userID string) (*chat.TypingSignal, error) {
	vals, err := s.client.HGetAll(ctx, key(conversationID, userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil // not found
	}

	ms, _ := strconv.ParseInt(vals["updated_at"], 10, 64)
	isTyping, _ := strconv.ParseBool(vals["is_typing"])

	return &chat.TypingSignal{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
		UpdatedAt:      time.UnixMilli(ms),
	}, nil
}

// Clear removes a user's typing signal for a conversation.
func (s *Store) Clear(ctx context.Context, conversationID, userID string) error {
	return s.client.Del(ctx, key(conversationID, userID)).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
