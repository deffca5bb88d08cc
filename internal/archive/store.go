package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the archive operations used by the comment cycle and the
// retention task. Methods accept a context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts one archived message.
	SaveMessage(ctx context.Context, message *Message) error

	// RecentMessages returns the most recent messages for one identity and
	// chat, oldest first.
	RecentMessages(ctx context.Context, botName string, chatID int64, limit int) ([]Message, error)

	// DeleteOlderThan removes messages with a timestamp before the cutoff and
	// returns the number of deleted rows.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "archive_store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.BotName == "" {
		return fmt.Errorf("message must have a bot name")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.Content == "" {
		return fmt.Errorf("message must have non-empty content")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	message.CreatedAt = time.Now().UTC()

	query := `INSERT INTO messages (created_at, bot_name, chat_id, user_id, role, content, timestamp)
	          VALUES (:created_at, :bot_name, :chat_id, :user_id, :role, :content, :timestamp)`

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save archived message",
			"bot", message.BotName, "chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to save archived message: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		message.ID = uint(id)
	}
	return nil
}

func (s *sqlxStore) RecentMessages(ctx context.Context, botName string, chatID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM (
	            SELECT * FROM messages WHERE bot_name = ? AND chat_id = ?
	            ORDER BY timestamp DESC, id DESC LIMIT ?
	          ) ORDER BY timestamp ASC, id ASC`

	var messages []Message
	if err := s.db.SelectContext(ctx, &messages, query, botName, chatID, limit); err != nil {
		return nil, fmt.Errorf("failed to query archived messages: %w", err)
	}
	return messages, nil
}

func (s *sqlxStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old archived messages: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "Trimmed archive", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
