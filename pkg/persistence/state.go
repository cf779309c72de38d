package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finchat/pkg/chat"
)

// SharedContextPrefix namespaces cross-agent context entries within
// state_data so they never collide with workflow state keys.
const SharedContextPrefix = "shared_context."

// Workflow state keys stored one row each in state_data.
const (
	keyPlan       = "task_plan"
	keySubtasks   = "subtasks"
	keyCompleted  = "completed_subtasks"
	keyCurrent    = "current_subtask"
	keyTarget     = "agent_id"
	keyEndReason  = "end_reason"
	keyHistory    = "conversation_history"
	keyErrorCount = "error_count"
	keyUserGroups = "user_groups"
)

// SaveState persists the conversation state. Messages are append-only: rows
// beyond the stored count are inserted, existing rows are never rewritten.
// Workflow state fields are serialized one key per row.
func (s *Store) SaveState(ctx context.Context, state *chat.State) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_updated = ?, expires_at = ? WHERE conversation_id = ?`,
		now, nullableTime(s.expiresAt(now)), state.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation %s: %w", state.ConversationID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		createdAt := now
		if state.CreatedAt > 0 {
			createdAt = time.Unix(state.CreatedAt, 0).UTC()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversations (conversation_id, user_id, created_at, last_updated, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			state.ConversationID, state.UserID, createdAt, now, nullableTime(s.expiresAt(now)))
		if err != nil {
			return fmt.Errorf("failed to insert conversation %s: %w", state.ConversationID, err)
		}
	}

	var stored int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, state.ConversationID).Scan(&stored)
	if err != nil {
		return fmt.Errorf("failed to count stored messages: %w", err)
	}
	for i := stored; i < len(state.Messages); i++ {
		msg := &state.Messages[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, agent_id, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			state.ConversationID, string(msg.Role), msg.Content, msg.AgentID, now)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	fields := map[string]any{
		keyPlan:       state.Plan,
		keySubtasks:   state.Subtasks,
		keyCompleted:  state.Completed,
		keyCurrent:    state.Current,
		keyTarget:     state.Target,
		keyEndReason:  state.EndReason,
		keyHistory:    state.History,
		keyErrorCount: state.ErrorCount,
		keyUserGroups: state.UserGroups,
	}
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode state key %s: %w", key, err)
		}
		if err := upsertStateValue(ctx, tx, state.ConversationID, key, string(encoded), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetState loads the conversation state. It returns (nil, nil) when the
// conversation does not exist or has expired. A state_data row with an
// unrecognized key is an error: it means the schema and the code disagree.
func (s *Store) GetState(ctx context.Context, conversationID string) (*chat.State, error) {
	var userID string
	var createdAt time.Time
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, created_at, expires_at FROM conversations WHERE conversation_id = ?`,
		conversationID).Scan(&userID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}
	if expiresAt.Valid && !expiresAt.Time.After(time.Now().UTC()) {
		return nil, nil
	}

	state := chat.NewState(conversationID, userID)
	state.CreatedAt = createdAt.Unix()

	if err := s.loadMessages(ctx, state); err != nil {
		return nil, err
	}
	if err := s.loadStateData(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) loadMessages(ctx context.Context, state *chat.State) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, agent_id FROM messages WHERE conversation_id = ? ORDER BY id`,
		state.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role, content string
		var agentID sql.NullString
		if err := rows.Scan(&role, &content, &agentID); err != nil {
			return fmt.Errorf("failed to scan message row: %w", err)
		}
		state.Messages = append(state.Messages, chat.Message{
			Role:    chat.Role(role),
			Content: content,
			AgentID: agentID.String,
		})
	}
	return rows.Err()
}

func (s *Store) loadStateData(ctx context.Context, state *chat.State) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM state_data WHERE conversation_id = ?`, state.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to load state data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to scan state row: %w", err)
		}
		if strings.HasPrefix(key, SharedContextPrefix) {
			continue
		}

		var dst any
		switch key {
		case keyPlan:
			dst = &state.Plan
		case keySubtasks:
			dst = &state.Subtasks
		case keyCompleted:
			dst = &state.Completed
		case keyCurrent:
			dst = &state.Current
		case keyTarget:
			dst = &state.Target
		case keyEndReason:
			dst = &state.EndReason
		case keyHistory:
			dst = &state.History
		case keyErrorCount:
			dst = &state.ErrorCount
		case keyUserGroups:
			dst = &state.UserGroups
		default:
			return fmt.Errorf("unknown state key %q in conversation %s", key, state.ConversationID)
		}
		if err := json.Unmarshal([]byte(value), dst); err != nil {
			return fmt.Errorf("failed to decode state key %s: %w", key, err)
		}
	}
	return rows.Err()
}

func upsertStateValue(ctx context.Context, tx *sql.Tx, conversationID, key, value string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO state_data (conversation_id, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(conversation_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		conversationID, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to upsert state key %s: %w", key, err)
	}
	return nil
}
