// Package history records chat ids and the turns exchanged in each chat.
package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"advisor-core/pkg/db"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrChatIDRequired = db.ErrChatIDRequired
	ErrNotFound       = db.ErrNotFound
)

// Message is one stored turn.
type Message struct {
	ID        string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"-"`
}

// Store keeps chat ids in the order they were first saved.
type Store interface {
	Save(ctx context.Context, chatID string) error
	ChatIDs(ctx context.Context) ([]string, error)
	Append(ctx context.Context, chatID, role, content string) error
	Messages(ctx context.Context, chatID string) ([]Message, error)
}

// SQLStore persists history through pkg/db.
type SQLStore struct {
	q *db.ChatQueries
}

// NewSQLStore wraps an opened and migrated database.
func NewSQLStore(database *db.Database) *SQLStore {
	return &SQLStore{q: database.Queries()}
}

func (s *SQLStore) Save(ctx context.Context, chatID string) error {
	return s.q.SaveChat(ctx, chatID)
}

func (s *SQLStore) ChatIDs(ctx context.Context) ([]string, error) {
	return s.q.ChatIDs(ctx)
}

func (s *SQLStore) Append(ctx context.Context, chatID, role, content string) error {
	_, err := s.q.AppendMessage(ctx, db.ChatMessage{ChatID: chatID, Role: role, Content: content})
	return err
}

func (s *SQLStore) Messages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.q.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{ID: r.ID, Role: r.Role, Content: r.Content, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	chats map[string][]Message
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string][]Message)}
}

func (m *MemoryStore) Save(_ context.Context, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ErrChatIDRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(chatID)
	return nil
}

func (m *MemoryStore) saveLocked(chatID string) {
	if _, ok := m.chats[chatID]; ok {
		return
	}
	m.chats[chatID] = []Message{}
	m.order = append(m.order, chatID)
}

func (m *MemoryStore) ChatIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.order...), nil
}

func (m *MemoryStore) Append(_ context.Context, chatID, role, content string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ErrChatIDRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(chatID)
	m.chats[chatID] = append(m.chats[chatID], Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemoryStore) Messages(_ context.Context, chatID string) ([]Message, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrChatIDRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs, ok := m.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Message{}, msgs...), nil
}

// IsNotFound reports whether err means the chat is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
