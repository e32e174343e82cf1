package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartlink/chat-app/internal/chat"
)

// DirectoryStore resolves conversations from the matches table. A match
// row is stored once per pair with the lower user id first, so lookups
// normalize the pair before querying.
type DirectoryStore struct {
	db *sql.DB
}

// NewDirectoryStore creates a directory store backed by the given database.
func NewDirectoryStore(d *DB) *DirectoryStore {
	return &DirectoryStore{db: d.db}
}

// orderPair returns the two user ids in storage order.
func orderPair(userA, userB string) (string, string) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// FindConversation returns the conversation between two users, regardless
// of argument order. chat.ErrNotFound means the users have not matched.
func (s *DirectoryStore) FindConversation(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	lo, hi := orderPair(userA, userB)

	const query = `
		SELECT id, user_a, user_b
		FROM matches
		WHERE user_a = $1 AND user_b = $2`

	var conv chat.Conversation
	err := s.db.QueryRowContext(ctx, query, lo, hi).Scan(&conv.ID, &conv.UserA, &conv.UserB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find conversation: %w", err)
	}
	return &conv, nil
}

// CreateMatch records a match between two users and returns the resulting
// conversation. Matching the same pair twice returns the existing row.
func (s *DirectoryStore) CreateMatch(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	lo, hi := orderPair(userA, userB)

	const query = `
		INSERT INTO matches (id, user_a, user_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_a, user_b) DO UPDATE SET user_a = EXCLUDED.user_a
		RETURNING id, user_a, user_b`

	var conv chat.Conversation
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), lo, hi).Scan(&conv.ID, &conv.UserA, &conv.UserB)
	if err != nil {
		return nil, fmt.Errorf("store: create match: %w", err)
	}
	return &conv, nil
}
