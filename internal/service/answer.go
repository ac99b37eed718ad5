package service

import (
	"context"
	"strings"
	"time"

	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ContextRetriever supplies ranked context chunks for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.ContextChunk, error)
}

// ChatRepository persists chat turns and their reasoning traces.
type ChatRepository interface {
	ListTurns(ctx context.Context, sessionID string) ([]*domain.ChatTurn, error)
	// AppendTurn writes the trace and the turn referencing it as one
	// transactional unit.
	AppendTurn(ctx context.Context, trace *domain.ReasoningTrace, turn *domain.ChatTurn) error
}

// AnswerResult is the outcome of one answered question.
type AnswerResult struct {
	Answer   string
	Reason   []domain.ContextChunk
	ReasonID string
	History  []*domain.ChatTurn
}

// AnswerService runs one ask request through its stages: retrieve
// context, assemble the prompt, generate, persist, return.
type AnswerService struct {
	retriever ContextRetriever
	chats     ChatRepository
	generator GenerativeClient
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewAnswerService creates an AnswerService. The limiter is the shared
// generative-model token bucket.
func NewAnswerService(
	retriever ContextRetriever,
	chats ChatRepository,
	generator GenerativeClient,
	limiter *rate.Limiter,
) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		chats:     chats,
		generator: generator,
		limiter:   limiter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ask answers the question for the session and appends the exchange to
// its history. Any dependency failure surfaces as a generic server
// error at the API layer.
func (s *AnswerService) Ask(ctx context.Context, sessionID, question string) (*AnswerResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.Ask", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "ask",
	})
	defer span.End()

	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrMissingSessionID
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrMissingQuestion
	}

	// Retrieving
	chunks, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	// Assembling
	history, err := s.chats.ListTurns(ctx, sessionID)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDependencyError("failed to load chat history", err)
	}
	prompt := AssemblePrompt(chunks, history, question)

	// Generating
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, domain.NewDependencyError("rate limiter interrupted", err)
	}
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDependencyError("generation failed", err)
	}
	answer = strings.TrimSpace(answer)

	// Persisting: trace and turn land in one transaction.
	now := s.now()
	trace := &domain.ReasoningTrace{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Question:  question,
		Chunks:    chunks,
		CreatedAt: now,
	}
	turn := &domain.ChatTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     question,
		Answer:    answer,
		ReasonID:  trace.ID,
		CreatedAt: now,
	}
	if err := s.chats.AppendTurn(ctx, trace, turn); err != nil {
		span.SetError(err)
		return nil, domain.NewDependencyError("failed to persist chat turn", err)
	}

	// Done
	return &AnswerResult{
		Answer:   answer,
		Reason:   chunks,
		ReasonID: trace.ID,
		History:  append(history, turn),
	}, nil
}
