package db

import "time"

// Chat is a conversation id with its activity timestamps.
type Chat struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one stored turn of a chat.
type ChatMessage struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}
