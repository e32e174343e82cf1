package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// NotificationStore records per-user notification rows. Notifications are
// best-effort from the sender's point of view; a failed insert never fails
// the message that triggered it.
type NotificationStore struct {
	db *sql.DB
}

// Notification is one stored notification row.
type Notification struct {
	ID        int64
	UserID    string
	EventType string
	Payload   map[string]interface{}
	Read      bool
}

// NewNotificationStore creates a notification store backed by the given
// database.
func NewNotificationStore(d *DB) *NotificationStore {
	return &NotificationStore{db: d.db}
}

// Insert stores a notification for a user. The payload is marshalled to
// JSONB.
func (s *NotificationStore) Insert(ctx context.Context, userID, eventType string, payload map[string]interface{}) error {
	var payloadJSON []byte
	if len(payload) > 0 {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("store: marshal notification payload: %w", err)
		}
	}

	const query = `
		INSERT INTO notifications (user_id, event_type, payload)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, userID, eventType, payloadJSON); err != nil {
		return fmt.Errorf("store: insert notification: %w", err)
	}
	return nil
}

// ListUnread returns a user's unread notifications, oldest first.
func (s *NotificationStore) ListUnread(ctx context.Context, userID string, limit int) ([]Notification, error) {
	const query = `
		SELECT id, user_id, event_type, payload, read
		FROM notifications
		WHERE user_id = $1 AND NOT read
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var payloadJSON []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventType, &payloadJSON, &n.Read); err != nil {
			return nil, fmt.Errorf("store: scan notification: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
				return nil, fmt.Errorf("store: unmarshal notification payload: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks a notification as read.
func (s *NotificationStore) MarkRead(ctx context.Context, id int64) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("store: mark notification read: %w", err)
	}
	return nil
}
