package domain

import "time"

// DefaultSessionTitle is used when a new session is created without a title.
const DefaultSessionTitle = "New Conversation"

// Session represents a chat conversation
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// NewSession creates a new Session instance
func NewSession(id, title string, createdAt time.Time) *Session {
	if title == "" {
		title = DefaultSessionTitle
	}
	return &Session{
		ID:        id,
		Title:     title,
		CreatedAt: createdAt,
	}
}
