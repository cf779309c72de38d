// Package persistence provides SQLite-backed storage for conversations,
// message logs, and per-conversation state data.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"finchat/pkg/logx"
)

// Store owns the database connection. All conversation storage goes through
// it; callers construct one at startup and pass it where needed.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger *logx.Logger
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Conversations expire ttl after their last update; ttl <= 0 disables expiry.
func Open(path string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db, ttl: ttl, logger: logx.NewLogger("persistence")}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		last_updated    TIMESTAMP NOT NULL,
		expires_at      TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		agent_id        TEXT,
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

	CREATE TABLE IF NOT EXISTS state_data (
		conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
		key             TEXT NOT NULL,
		value           TEXT NOT NULL,
		updated_at      TIMESTAMP NOT NULL,
		PRIMARY KEY (conversation_id, key)
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// expiresAt computes the expiry stamp for a conversation touched at now.
// Returns the zero time when expiry is disabled.
func (s *Store) expiresAt(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}

// conversationExists reports whether the conversation row is present,
// regardless of expiry.
func (s *Store) conversationExists(ctx context.Context, conversationID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE conversation_id = ?`, conversationID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query conversation %s: %w", conversationID, err)
	}
	return true, nil
}
