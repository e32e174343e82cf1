package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/heartlink/chat-app/internal/chat"
)

// ProfileStore reads and writes user profiles.
type ProfileStore struct {
	db *sql.DB
}

// NewProfileStore creates a profile store backed by the given database.
func NewProfileStore(d *DB) *ProfileStore {
	return &ProfileStore{db: d.db}
}

// Fetch returns the profile for a user id. A missing or removed profile
// yields chat.ErrNotFound.
func (s *ProfileStore) Fetch(ctx context.Context, userID string) (*chat.Profile, error) {
	const query = `
		SELECT id, display_name, avatar_url
		FROM profiles
		WHERE id = $1`

	var p chat.Profile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetch profile: %w", err)
	}
	return &p, nil
}

// Create inserts a profile. Used by the CLI and by tests to seed users.
func (s *ProfileStore) Create(ctx context.Context, p *chat.Profile) error {
	const query = `
		INSERT INTO profiles (id, display_name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    avatar_url = EXCLUDED.avatar_url`

	_, err := s.db.ExecContext(ctx, query, p.ID, p.DisplayName, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("store: create profile: %w", err)
	}
	return nil
}
