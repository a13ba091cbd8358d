// Package conversation persists chat exchanges in PostgreSQL. The pipeline
// reads a bounded history suffix per query and appends the completed
// exchange; it never caches history across requests.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taxline/taxline/internal/log"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleExpert    Role = "expert"
)

// ErrNotFound indicates the conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Message is one turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Querier defines the database operations the store needs.
// *pgxpool.Pool satisfies this; tests substitute a mock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages conversation persistence.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger log.Logger
}

// New creates a Store.
func New(db Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new conversation for a user and returns its id.
func (s *Store) Create(ctx context.Context, userID string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (id, user_id)
		VALUES ($1, $2)`,
		id, userID,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", id, "user_id", userID)
	return id, nil
}

// Exists reports whether a conversation exists.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var found bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, id,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("checking conversation %s: %w", id, err)
	}
	return found, nil
}

// AppendMessage appends one turn to a conversation and touches its
// updated_at timestamp.
func (s *Store) AppendMessage(ctx context.Context, conversationID uuid.UUID, msg Message) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO messages (conversation_id, role, content)
		SELECT id, $2, $3 FROM conversations WHERE id = $1`,
		conversationID, string(msg.Role), msg.Content,
	)
	if err != nil {
		return fmt.Errorf("appending message to %s: %w", conversationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appending message to %s: %w", conversationID, ErrNotFound)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, conversationID,
	); err != nil {
		// The message landed; a stale timestamp is not worth failing over.
		s.logger.Warn("failed to touch conversation", "id", conversationID, "error", err)
	}
	return nil
}

// History returns the last limit messages of a conversation in
// chronological order.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", limit)
	}

	rows, err := s.db.Query(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id DESC
		LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", conversationID, err)
	}

	// Reverse from newest-first query order to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
