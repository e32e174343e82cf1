package typing

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heartlink/chat-app/internal/chat"
)

// newTestStore creates a Store connected to a local Redis instance and
// flushes test typing keys before returning. Tests that call this helper
// require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	flush := func() {
		iter := client.Scan(ctx, 0, KeyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	flush()
	t.Cleanup(func() {
		flush()
		client.Close()
	})
	return NewStoreWithClient(client)
}

func TestGetMissingSignal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sig, err := store.Get(ctx, "test_conv", "test_nobody")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sig != nil {
		t.Errorf("expected nil signal, got %+v", sig)
	}
}

func TestUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	err := store.Upsert(ctx, chat.TypingSignal{
		ConversationID: "test_conv",
		UserID:         "test_alice",
		IsTyping:       true,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	sig, err := store.Get(ctx, "test_conv", "test_alice")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal, got nil")
	}
	if !sig.IsTyping {
		t.Error("expected is_typing=true")
	}
	if sig.UpdatedAt.UnixMilli() != now.UnixMilli() {
		t.Errorf("expected updated_at=%d, got %d", now.UnixMilli(), sig.UpdatedAt.UnixMilli())
	}
}

func TestLastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := chat.TypingSignal{ConversationID: "test_conv", UserID: "test_bob", IsTyping: true, UpdatedAt: time.Now()}
	second := first
	second.IsTyping = false
	second.UpdatedAt = first.UpdatedAt.Add(time.Second)

	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	sig, err := store.Get(ctx, "test_conv", "test_bob")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal, got nil")
	}
	if sig.IsTyping {
		t.Error("expected the later write to win with is_typing=false")
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, chat.TypingSignal{
		ConversationID: "test_conv",
		UserID:         "test_carol",
		IsTyping:       true,
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if err := store.Clear(ctx, "test_conv", "test_carol"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	sig, err := store.Get(ctx, "test_conv", "test_carol")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sig != nil {
		t.Errorf("expected signal cleared, got %+v", sig)
	}
}
