package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartlink/chat-app/internal/chat"
)

// MessageStore reads and writes chat messages.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a message store backed by the given database.
func NewMessageStore(d *DB) *MessageStore {
	return &MessageStore{db: d.db}
}

// List returns the most recent limit messages of a conversation in
// ascending created_at order. The inner query selects the newest rows;
// the outer query flips them back into chronological order.
func (s *MessageStore) List(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	const query = `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM (
			SELECT id, conversation_id, sender_id, content, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return msgs, nil
}

// Insert persists a new message and returns the canonical stored record.
// The id and created_at come from the database so every reader sees the
// same values the sender echoed locally.
func (s *MessageStore) Insert(ctx context.Context, conversationID, senderID, content string) (*chat.Message, error) {
	const query = `
		INSERT INTO messages (id, conversation_id, sender_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, sender_id, content, created_at`

	var m chat.Message
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), conversationID, senderID, content).
		Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}
	return &m, nil
}
