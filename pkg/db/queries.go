package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrChatIDRequired is returned when a query is issued without a chat id.
	ErrChatIDRequired = errors.New("chat_id is required")
	// ErrNotFound is returned when the chat does not exist.
	ErrNotFound = errors.New("not found")
)

// ChatQueries provides chat history queries.
type ChatQueries struct {
	db  *sql.DB
	now func() time.Time
}

// NewChatQueries creates a new ChatQueries instance.
func NewChatQueries(db *sql.DB) *ChatQueries {
	return &ChatQueries{db: db, now: time.Now}
}

// Queries returns chat queries bound to this database.
func (d *Database) Queries() *ChatQueries {
	return NewChatQueries(d.DB)
}

// SaveChat records chatID. Saving an existing id is a no-op and keeps its position.
func (q *ChatQueries) SaveChat(ctx context.Context, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ErrChatIDRequired
	}
	ts := q.now().UnixMilli()
	if _, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chats (id, created_at, updated_at) VALUES (?, ?, ?)`,
		chatID, ts, ts,
	); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// ChatIDs returns every chat id in the order it was first saved.
func (q *ChatQueries) ChatIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM chats ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChat returns one chat or ErrNotFound.
func (q *ChatQueries) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrChatIDRequired
	}
	var created, updated int64
	err := q.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM chats WHERE id = ?`, chatID,
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	return &Chat{ID: chatID, CreatedAt: time.UnixMilli(created), UpdatedAt: time.UnixMilli(updated)}, nil
}

// AppendMessage stores m, saving its chat first when needed. An empty m.ID gets a uuid.
func (q *ChatQueries) AppendMessage(ctx context.Context, m ChatMessage) (ChatMessage, error) {
	m.ChatID = strings.TrimSpace(m.ChatID)
	if m.ChatID == "" {
		return m, ErrChatIDRequired
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = q.now()
	}
	ts := m.CreatedAt.UnixMilli()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return m, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO chats (id, created_at, updated_at) VALUES (?, ?, ?)`,
		m.ChatID, ts, ts,
	); err != nil {
		return m, fmt.Errorf("save chat: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, ts,
	); err != nil {
		return m, fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, ts, m.ChatID,
	); err != nil {
		return m, fmt.Errorf("touch chat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return m, fmt.Errorf("commit message: %w", err)
	}
	return m, nil
}

// Messages returns the messages of chatID in insertion order.
// A chat that was never saved yields ErrNotFound.
func (q *ChatQueries) Messages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	if _, err := q.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM chat_messages WHERE chat_id = ? ORDER BY rowid ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []ChatMessage{}
	for rows.Next() {
		m := ChatMessage{ChatID: chatID}
		var ts int64
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}
