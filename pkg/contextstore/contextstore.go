// Package contextstore exposes the cross-agent shared context: a
// per-conversation key/value map agents use to pass derived facts (active run
// ids, result types) to each other between turns.
package contextstore

import (
	"context"
	"fmt"
	"strings"

	"finchat/pkg/logx"
	"finchat/pkg/persistence"
)

// Capability declares which shared-context keys a reader is entitled to see.
// Each agent implements it; the store never inspects agent ids.
type Capability interface {
	ContextKeys() []string
}

// Store provides filtered reads and last-write-wins updates over the shared
// context persisted in the conversation database.
type Store struct {
	db      *persistence.Store
	enabled bool
	logger  *logx.Logger
}

// New creates a context store backed by db. When enabled is false the store
// degrades to a no-op: reads yield empty views and updates succeed without
// persisting, so agents keep working with context sharing switched off.
func New(db *persistence.Store, enabled bool) *Store {
	return &Store{db: db, enabled: enabled, logger: logx.NewLogger("contextstore")}
}

// Get returns the reader's view of the conversation context: the base
// metadata every agent receives (user id, the two most recent user messages
// newest first, a one-line summary) plus the keys the reader declares.
// An unknown conversation yields an empty map.
func (s *Store) Get(ctx context.Context, conversationID string, reader Capability) (map[string]any, error) {
	if !s.enabled {
		return map[string]any{}, nil
	}
	state, err := s.db.GetState(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation for context: %w", err)
	}
	if state == nil {
		return map[string]any{}, nil
	}

	shared, err := s.db.ContextValues(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var recent []string
	for i := len(state.Messages) - 1; i >= 0 && len(recent) < 2; i-- {
		if state.Messages[i].Role == "user" {
			recent = append(recent, state.Messages[i].Content)
		}
	}

	view := map[string]any{
		"user_id":              state.UserID,
		"recent_user_messages": recent,
		"conversation_summary": Summary(shared),
	}
	if reader != nil {
		for _, key := range reader.ContextKeys() {
			view[key] = shared[key]
		}
	}
	return view, nil
}

// Update merges updates into the conversation's shared context, last write
// wins. Returns false without error when the conversation does not exist.
func (s *Store) Update(ctx context.Context, conversationID, agentID string, updates map[string]any) (bool, error) {
	if !s.enabled {
		return true, nil
	}
	for key, value := range updates {
		ok, err := s.db.SetContextValue(ctx, conversationID, key, value)
		if err != nil {
			return false, err
		}
		if !ok {
			s.logger.Warn("agent %s updated context of unknown conversation %s", agentID, conversationID)
			return false, nil
		}
	}
	s.logger.Debug("agent %s updated %d context keys in %s", agentID, len(updates), conversationID)
	return true, nil
}

// Summary derives a one-line description of the conversation from the shared
// data. Topics are emitted in a fixed order so the summary is deterministic.
func Summary(shared map[string]any) string {
	var topics []string

	if runType, ok := shared["run_type"].(string); ok && runType != "" {
		topics = append(topics, runType+" run")
	}
	if resultsType, ok := shared["results_type"].(string); ok && resultsType != "" {
		topics = append(topics, resultsType+" results")
	}
	if runID, ok := shared["active_run_id"].(string); ok && runID != "" {
		topics = append(topics, "run management")
	}

	if len(topics) == 0 {
		return "Conversation just started"
	}
	return "Conversation about " + strings.Join(topics, ", ")
}
