package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SetContextValue stores one shared-context entry for the conversation.
// Last write wins. Returns false without error when the conversation does not
// exist; a dropped update is a routing bug upstream, not a storage failure.
func (s *Store) SetContextValue(ctx context.Context, conversationID, key string, value any) (bool, error) {
	exists, err := s.conversationExists(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode context value %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin context transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertStateValue(ctx, tx, conversationID, SharedContextPrefix+key, string(encoded), time.Now().UTC()); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ContextValues returns every shared-context entry of the conversation with
// the namespace prefix stripped. A missing conversation yields an empty map.
func (s *Store) ContextValues(ctx context.Context, conversationID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM state_data WHERE conversation_id = ? AND key LIKE ?`,
		conversationID, SharedContextPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to load shared context: %w", err)
	}
	defer rows.Close()

	values := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan context row: %w", err)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to decode context value %s: %w", key, err)
		}
		values[strings.TrimPrefix(key, SharedContextPrefix)] = value
	}
	return values, rows.Err()
}
