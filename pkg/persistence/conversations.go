package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConversationInfo summarizes one stored conversation for listing endpoints.
type ConversationInfo struct {
	ID          string    `json:"conversation_id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// CreateConversation inserts a new conversation for the user and returns its
// generated id.
func (s *Store) CreateConversation(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, created_at, last_updated, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, userID, now, now, nullableTime(s.expiresAt(now)))
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Debug("created conversation %s for user %s", id, userID)
	return id, nil
}

// ListConversations returns the user's conversations, newest activity first.
// Expired conversations are excluded.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]ConversationInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, user_id, created_at, last_updated
		 FROM conversations
		 WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY last_updated DESC`,
		userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var infos []ConversationInfo
	for rows.Next() {
		var info ConversationInfo
		if err := rows.Scan(&info.ID, &info.UserID, &info.CreatedAt, &info.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteConversation removes a conversation and its messages and state data.
// Deleting an unknown conversation is not an error.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM state_data WHERE conversation_id = ?`,
		`DELETE FROM messages WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE conversation_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, conversationID); err != nil {
			return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
		}
	}
	return tx.Commit()
}

// CleanupExpired deletes every conversation whose expiry stamp has passed and
// returns how many were removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id FROM conversations WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired conversations: %w", err)
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired conversation id: %w", err)
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range expired {
		if err := s.DeleteConversation(ctx, id); err != nil {
			return 0, err
		}
	}

	if len(expired) > 0 {
		s.logger.Info("cleaned up %d expired conversations", len(expired))
	}
	return len(expired), nil
}

// nullableTime maps the zero time to NULL so disabled expiry stores cleanly.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
