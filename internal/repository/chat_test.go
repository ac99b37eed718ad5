//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTraceAndTurn(sessionID string) (*domain.ReasoningTrace, *domain.ChatTurn) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	trace := &domain.ReasoningTrace{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Question:  "What was Q4 revenue?",
		Chunks: []domain.ContextChunk{
			{Text: "Revenue was 12M.", Score: 0.92, Source: "report.pdf", PageRange: "1-5"},
		},
		CreatedAt: now,
	}
	turn := &domain.ChatTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     trace.Question,
		Answer:    "Q4 revenue was 12M.",
		ReasonID:  trace.ID,
		CreatedAt: now,
	}
	return trace, turn
}

func TestChatRepository_AppendTurn_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessionRepo := NewSessionRepository(pool)
	chatRepo := NewChatRepository(pool)

	session := newTestSession("chat")
	require.NoError(t, sessionRepo.Create(ctx, session))

	trace, turn := newTestTraceAndTurn(session.ID)
	require.NoError(t, chatRepo.AppendTurn(ctx, trace, turn))

	turns, err := chatRepo.ListTurns(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, turn.Query, turns[0].Query)
	assert.Equal(t, turn.Answer, turns[0].Answer)
	assert.Equal(t, trace.ID, turns[0].ReasonID)

	retrieved, err := chatRepo.GetTrace(ctx, trace.ID)
	require.NoError(t, err)
	assert.Equal(t, trace.Question, retrieved.Question)
	assert.Equal(t, trace.Chunks, retrieved.Chunks)
}

func TestChatRepository_AppendTurn_AtomicOnFailure(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessionRepo := NewSessionRepository(pool)
	chatRepo := NewChatRepository(pool)

	session := newTestSession("chat")
	require.NoError(t, sessionRepo.Create(ctx, session))

	// Point the turn at a different session so its FK insert fails; the
	// trace written earlier in the transaction must roll back with it.
	trace, turn := newTestTraceAndTurn(session.ID)
	turn.SessionID = uuid.NewString()

	err := chatRepo.AppendTurn(ctx, trace, turn)
	require.Error(t, err)

	_, err = chatRepo.GetTrace(ctx, trace.ID)
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)
}

func TestChatRepository_ListTurns_ChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessionRepo := NewSessionRepository(pool)
	chatRepo := NewChatRepository(pool)

	session := newTestSession("chat")
	require.NoError(t, sessionRepo.Create(ctx, session))

	first, firstTurn := newTestTraceAndTurn(session.ID)
	firstTurn.Query = "first"
	firstTurn.CreatedAt = time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	require.NoError(t, chatRepo.AppendTurn(ctx, first, firstTurn))

	second, secondTurn := newTestTraceAndTurn(session.ID)
	secondTurn.Query = "second"
	require.NoError(t, chatRepo.AppendTurn(ctx, second, secondTurn))

	turns, err := chatRepo.ListTurns(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Query)
	assert.Equal(t, "second", turns[1].Query)
}

func TestChatRepository_DeleteOrphanTraces(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessionRepo := NewSessionRepository(pool)
	chatRepo := NewChatRepository(pool)

	session := newTestSession("chat")
	require.NoError(t, sessionRepo.Create(ctx, session))

	// Referenced trace, old enough to sweep but kept by its turn.
	trace, turn := newTestTraceAndTurn(session.ID)
	trace.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, chatRepo.AppendTurn(ctx, trace, turn))

	// Orphan traces written directly, one old and one fresh.
	oldOrphan := &domain.ReasoningTrace{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Question:  "orphaned",
		Chunks:    []domain.ContextChunk{},
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	freshOrphan := &domain.ReasoningTrace{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Question:  "recent",
		Chunks:    []domain.ContextChunk{},
		CreatedAt: time.Now().UTC(),
	}
	for _, tr := range []*domain.ReasoningTrace{oldOrphan, freshOrphan} {
		_, err := pool.Exec(ctx,
			`INSERT INTO reasoning_traces (id, session_id, question, chunks, created_at)
			 VALUES ($1, $2, $3, '[]', $4)`,
			tr.ID, tr.SessionID, tr.Question, tr.CreatedAt,
		)
		require.NoError(t, err)
	}

	deleted, err := chatRepo.DeleteOrphanTraces(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = chatRepo.GetTrace(ctx, oldOrphan.ID)
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)

	_, err = chatRepo.GetTrace(ctx, freshOrphan.ID)
	assert.NoError(t, err)

	_, err = chatRepo.GetTrace(ctx, trace.ID)
	assert.NoError(t, err)
}
