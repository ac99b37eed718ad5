package domain

import "time"

// ChatTurn represents one question/answer exchange in a session.
// Turns are append-only and ordered by CreatedAt.
type ChatTurn struct {
	ID        string
	SessionID string
	Query     string
	Answer    string
	ReasonID  string
	CreatedAt time.Time
}

// ContextChunk is one retrieved context item used to answer a question.
type ContextChunk struct {
	Text      string  `json:"text"`
	Score     float32 `json:"score"`
	Source    string  `json:"source"`
	PageRange string  `json:"page_range"`
}

// ReasoningTrace records which context chunks produced a given answer.
// Each trace belongs to exactly one ChatTurn via the turn's ReasonID.
type ReasoningTrace struct {
	ID        string
	SessionID string
	Question  string
	Chunks    []ContextChunk
	CreatedAt time.Time
}
