package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/punchagency/ycc-assist/internal/domain"
)

// HistoryRepository persists per-(user, session) chat history.
// Messages are append-only; sessions are pruned by age, never edited.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// FindSession retrieves a session by (userID, sessionID). Returns nil
// without error when the session does not exist.
func (r *HistoryRepository) FindSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session := &domain.Session{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND id = ?
	`, userID, sessionID).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpsertAppend creates the session if absent and appends the given
// messages, in one transaction. This is the only write path for history.
func (r *HistoryRepository) UpsertAppend(ctx context.Context, userID, sessionID string, messages []*domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET updated_at = excluded.updated_at
	`, sessionID, userID, now, now); err != nil {
		return err
	}

	for _, m := range messages {
		if m.UID == "" {
			m.UID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		var toolCalls sql.NullString
		if len(m.ToolCalls) > 0 {
			b, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return err
			}
			toolCalls = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (uid, session_id, user_id, role, content, tool_calls, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.UID, sessionID, userID, m.Role, m.Content, toolCalls, m.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentMessages returns the most recent n messages of a session in
// chronological order.
func (r *HistoryRepository) RecentMessages(ctx context.Context, userID, sessionID string, n int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uid, session_id, user_id, role, content, tool_calls, created_at
		FROM chat_messages
		WHERE user_id = ? AND session_id = ?
		ORDER BY id DESC LIMIT ?
	`, userID, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Query returns newest-first; flip to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Messages returns the full message list of a session in insertion order.
func (r *HistoryRepository) Messages(ctx context.Context, userID, sessionID string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uid, session_id, user_id, role, content, tool_calls, created_at
		FROM chat_messages
		WHERE user_id = ? AND session_id = ?
		ORDER BY id ASC
	`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DeleteOlderThan removes a user's sessions created before cutoff,
// together with their messages.
func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chat_messages WHERE user_id = ? AND session_id IN (
			SELECT id FROM chat_sessions WHERE user_id = ? AND created_at < ?
		)
	`, userID, userID, cutoff); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chat_sessions WHERE user_id = ? AND created_at < ?
	`, userID, cutoff); err != nil {
		return err
	}

	return tx.Commit()
}

// CountSessions returns the total number of sessions
func (r *HistoryRepository) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of messages
func (r *HistoryRepository) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&count)
	return count, err
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		var toolCalls sql.NullString

		if err := rows.Scan(&message.UID, &message.SessionID, &message.UserID,
			&message.Role, &message.Content, &toolCalls, &message.CreatedAt); err != nil {
			return nil, err
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &message.ToolCalls); err != nil {
				return nil, err
			}
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
