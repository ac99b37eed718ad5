package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/pagination"
	"github.com/google/uuid"
)

// SessionRepository persists chat sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	List(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Session], error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

// HistoryReader loads a session's turns and the traces they reference.
type HistoryReader interface {
	ListTurns(ctx context.Context, sessionID string) ([]*domain.ChatTurn, error)
	GetTrace(ctx context.Context, id string) (*domain.ReasoningTrace, error)
}

// HistoryEntry is one rendered message of a session's history.
// Assistant entries carry the context chunks the answer was based on.
type HistoryEntry struct {
	Role    string                `json:"role"`
	Content string                `json:"content"`
	Chunks  []domain.ContextChunk `json:"chunks,omitempty"`
}

// SessionService manages chat sessions and their histories.
type SessionService struct {
	sessions SessionRepository
	history  HistoryReader
}

func NewSessionService(sessions SessionRepository, history HistoryReader) *SessionService {
	return &SessionService{sessions: sessions, history: history}
}

// Create starts a new session. An empty title falls back to the default.
func (s *SessionService) Create(ctx context.Context, title string) (*domain.Session, error) {
	session := domain.NewSession(uuid.NewString(), strings.TrimSpace(title), time.Now().UTC())
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, domain.NewDependencyError("failed to create session", err)
	}
	return session, nil
}

// List returns one page of sessions, most recent first. An unreadable
// cursor is treated as no cursor.
func (s *SessionService) List(ctx context.Context, cursorStr string, limit int) (*pagination.PageResult[*domain.Session], error) {
	cursor, _ := pagination.DecodeCursor(cursorStr)

	page, err := s.sessions.List(ctx, cursor, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list sessions", err)
	}
	return page, nil
}

// Rename changes a session's title.
func (s *SessionService) Rename(ctx context.Context, id, title string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrMissingSessionID
	}
	if strings.TrimSpace(title) == "" {
		return domain.ErrMissingTitle
	}
	if err := s.sessions.Rename(ctx, id, title); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrSessionNotFound
		}
		return domain.NewDependencyError("failed to rename session", err)
	}
	return nil
}

// Delete removes a session. Its turns and traces go with it.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrMissingSessionID
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrSessionNotFound
		}
		return domain.NewDependencyError("failed to delete session", err)
	}
	return nil
}

// History returns the session's messages in chronological order as
// alternating user/assistant entries. A turn whose trace cannot be
// loaded still renders, just without chunks.
func (s *SessionService) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrMissingSessionID
	}

	turns, err := s.history.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDependencyError("failed to load chat history", err)
	}

	entries := make([]HistoryEntry, 0, len(turns)*2)
	for _, turn := range turns {
		entries = append(entries, HistoryEntry{Role: "user", Content: turn.Query})

		assistant := HistoryEntry{Role: "assistant", Content: turn.Answer}
		if turn.ReasonID != "" {
			trace, err := s.history.GetTrace(ctx, turn.ReasonID)
			switch {
			case err == nil:
				assistant.Chunks = trace.Chunks
			case errors.Is(err, domain.ErrTraceNotFound):
				// Swept or imported without a trace; render without chunks.
			default:
				log.Printf("session: failed to load trace %s for turn %s: %v", turn.ReasonID, turn.ID, err)
			}
		}
		entries = append(entries, assistant)
	}
	return entries, nil
}
