package store

import (
	"context"
	"database/sql"
	"time"
)

// LoadSession returns the serialized conversation state for id.
// It reports false when the session is unknown or has expired.
func (s *Store) LoadSession(ctx context.Context, id string) ([]byte, bool, error) {
	var state string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM conversation_sessions WHERE id = ?`, id,
	).Scan(&state, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().Unix() > expiresAt {
		_ = s.DeleteSession(ctx, id)
		return nil, false, nil
	}
	return []byte(state), true, nil
}

// SaveSession upserts the serialized conversation state for id.
func (s *Store) SaveSession(ctx context.Context, id string, state []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_sessions (id, state, updated_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state,
		   updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		id, string(state), now.Unix(), now.Add(ttl).Unix(),
	)
	return err
}

// DeleteSession removes a stored conversation.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE id = ?`, id)
	return err
}

// CleanupExpiredSessions removes all expired conversations.
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE expires_at < ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
