// Package postgres provides a PostgreSQL-backed [history.Store].
//
// All messages live in a single conversation_messages table indexed by
// conversation and timestamp. [NewStore] runs the DDL on startup via
// CREATE TABLE IF NOT EXISTS, so no external migration step is needed.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxloop/voxloop/internal/history"
)

const ddlConversationMessages = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id              UUID         PRIMARY KEY,
    conversation_id TEXT         NOT NULL,
    role            TEXT         NOT NULL,
    content         TEXT         NOT NULL,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv_time
    ON conversation_messages (conversation_id, created_at);
`

// Store is a PostgreSQL-backed history store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

var _ history.Store = (*Store)(nil)

// NewStore connects to the database at dsn, verifies the connection, and
// ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlConversationMessages); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("history postgres: ping: %w", err)
	}
	return nil
}

// Load implements [history.Store].
func (s *Store) Load(ctx context.Context, conversationID string, since time.Time) ([]history.Message, error) {
	const q = `
		SELECT id, role, content, created_at
		FROM   conversation_messages
		WHERE  conversation_id = $1
		  AND  created_at >= $2
		ORDER  BY created_at, id`

	rows, err := s.pool.Query(ctx, q, conversationID, since)
	if err != nil {
		return nil, fmt.Errorf("history postgres: load: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Message, error) {
		var m history.Message
		err := row.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan: %w", err)
	}
	return msgs, nil
}

// Append implements [history.Store].
func (s *Store) Append(ctx context.Context, conversationID string, msgs ...history.Message) error {
	const q = `
		INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(q, m.ID, conversationID, string(m.Role), m.Content, m.Timestamp)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("history postgres: append: %w", err)
	}
	return nil
}

// Clear implements [history.Store].
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	const q = `DELETE FROM conversation_messages WHERE conversation_id = $1`
	if _, err := s.pool.Exec(ctx, q, conversationID); err != nil {
		return fmt.Errorf("history postgres: clear: %w", err)
	}
	return nil
}
